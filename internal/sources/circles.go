package sources

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"cohortSnapshot/internal/model"
)

const DefaultCircleURL = "https://coordinape.me/api/users"

// DefaultCircleIDs are the circles whose members count as givers.
var DefaultCircleIDs = []int64{1, 2, 3}

// CircleMember is one roster entry.
type CircleMember struct {
	Address  string `json:"address" validate:"required,eth_addr"`
	CircleID *int64 `json:"circle_id" validate:"required"`
}

// CircleConfig configures the roster request.
type CircleConfig struct {
	URL       string
	CircleIDs []int64
}

// CircleClient reads members of allow-listed circles from the roster API.
type CircleClient struct {
	cfg     CircleConfig
	allowed model.Set[int64]
	client  *retryablehttp.Client
	logger  *zap.Logger
}

func NewCircleClient(cfg CircleConfig, client *retryablehttp.Client, logger *zap.Logger) *CircleClient {
	if cfg.URL == "" {
		cfg.URL = DefaultCircleURL
	}
	if len(cfg.CircleIDs) == 0 {
		cfg.CircleIDs = DefaultCircleIDs
	}
	if client == nil {
		client = NewHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircleClient{
		cfg:     cfg,
		allowed: model.NewSet(cfg.CircleIDs...),
		client:  client,
		logger:  logger,
	}
}

// CacheArgs identifies the roster request for result caching.
func (c *CircleClient) CacheArgs() interface{} {
	return struct {
		URL       string  `json:"url"`
		CircleIDs []int64 `json:"circle_ids"`
	}{c.cfg.URL, model.Sorted(c.allowed)}
}

// Members returns the normalized addresses of members in allowed circles.
func (c *CircleClient) Members(ctx context.Context) (model.Set[string], error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build roster request: %w", err)
	}

	var roster []CircleMember
	if err := doJSON(ctx, c.client, req, &roster); err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}

	members := model.NewSet[string]()
	for i, member := range roster {
		if err := validate.Struct(member); err != nil {
			return nil, fmt.Errorf("invalid roster entry %d: %w", i, err)
		}
		if !c.allowed.Has(*member.CircleID) {
			continue
		}
		address, err := model.NormalizeAddress(member.Address)
		if err != nil {
			return nil, fmt.Errorf("roster entry %d: %w", i, err)
		}
		members.Add(address)
	}

	c.logger.Info("circle members loaded", zap.Int("entries", len(roster)), zap.Int("members", len(members)))
	return members, nil
}
