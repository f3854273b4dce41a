package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"cohortSnapshot/internal/model"
)

const (
	DefaultVoteURL   = "https://hub.snapshot.page/graphql"
	DefaultVoteFirst = 100000
)

// DefaultVoteSpaces are the governance spaces counted as voters.
var DefaultVoteSpaces = []string{"yearn", "ybaby.eth"}

// Vote is one vote export entry.
type Vote struct {
	Voter   string `json:"voter" validate:"required,eth_addr"`
	Created *int64 `json:"created" validate:"required"`
}

type votesResponse struct {
	Data *struct {
		Votes *[]Vote `json:"votes" validate:"required"`
	} `json:"data" validate:"required"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// VoteConfig configures the vote export query.
type VoteConfig struct {
	URL    string
	Spaces []string
	First  int
}

// VoteClient reads voters from the governance vote export.
type VoteClient struct {
	cfg    VoteConfig
	client *retryablehttp.Client
	logger *zap.Logger
}

func NewVoteClient(cfg VoteConfig, client *retryablehttp.Client, logger *zap.Logger) *VoteClient {
	if cfg.URL == "" {
		cfg.URL = DefaultVoteURL
	}
	if len(cfg.Spaces) == 0 {
		cfg.Spaces = DefaultVoteSpaces
	}
	if cfg.First <= 0 {
		cfg.First = DefaultVoteFirst
	}
	if client == nil {
		client = NewHTTPClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoteClient{cfg: cfg, client: client, logger: logger}
}

// Query returns the GraphQL query sent to the vote export.
func (c *VoteClient) Query() string {
	quoted := make([]string, 0, len(c.cfg.Spaces))
	for _, space := range c.cfg.Spaces {
		quoted = append(quoted, fmt.Sprintf("%q", space))
	}
	return fmt.Sprintf(`{ votes(first: %d, where: {space_in: [%s]}) { voter created } }`,
		c.cfg.First, strings.Join(quoted, ", "))
}

// CacheArgs identifies the export request for result caching.
func (c *VoteClient) CacheArgs() interface{} {
	return struct {
		URL   string `json:"url"`
		Query string `json:"query"`
	}{c.cfg.URL, c.Query()}
}

// Voters returns the distinct voters whose vote was created at or before
// cutoff (unix seconds). A zero cutoff keeps every vote.
func (c *VoteClient) Voters(ctx context.Context, cutoff uint64) (model.Set[string], error) {
	payload, err := json.Marshal(map[string]string{"query": c.Query()})
	if err != nil {
		return nil, fmt.Errorf("marshal vote query: %w", err)
	}
	req, err := retryablehttp.NewRequest(http.MethodPost, c.cfg.URL, payload)
	if err != nil {
		return nil, fmt.Errorf("build vote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp votesResponse
	if err := doJSON(ctx, c.client, req, &resp); err != nil {
		return nil, fmt.Errorf("fetch votes: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("vote export error: %s", resp.Errors[0].Message)
	}
	if err := validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("invalid vote export response: %w", err)
	}

	voters := model.NewSet[string]()
	for i, vote := range *resp.Data.Votes {
		if err := validate.Struct(vote); err != nil {
			return nil, fmt.Errorf("invalid vote %d: %w", i, err)
		}
		if cutoff != 0 && *vote.Created > int64(cutoff) {
			continue
		}
		voter, err := model.NormalizeAddress(vote.Voter)
		if err != nil {
			return nil, fmt.Errorf("vote %d: %w", i, err)
		}
		voters.Add(voter)
	}

	c.logger.Info("voters loaded",
		zap.Int("votes", len(*resp.Data.Votes)),
		zap.Int("voters", len(voters)),
		zap.Uint64("cutoff", cutoff),
	)
	return voters, nil
}
