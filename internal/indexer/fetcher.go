package indexer

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"cohortSnapshot/internal/cache"
	"cohortSnapshot/internal/model"
)

const getLogsOp = "get_logs"

// LogSource is the chain log query the fetcher consumes.
type LogSource interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Query selects logs emitted by Addresses matching any of Topics within Range.
type Query struct {
	Addresses []common.Address
	Topics    []common.Hash
	Range     BlockRange
}

type getLogsArgs struct {
	Addresses []string `json:"addresses"`
	Topics    []string `json:"topics"`
	From      uint64   `json:"from"`
	To        uint64   `json:"to"`
}

// Fetcher runs a single range query and memoizes its result. Ranges are
// expected to be finalized, so cached entries never go stale.
type Fetcher struct {
	source LogSource
	store  cache.Store
	logger *zap.Logger
}

// NewFetcher builds a Fetcher. A nil store disables caching.
func NewFetcher(source LogSource, store cache.Store, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{source: source, store: store, logger: logger}
}

// Fetch returns the logs matching q.
func (f *Fetcher) Fetch(ctx context.Context, q Query) ([]model.LogRecord, error) {
	if f.source == nil {
		return nil, fmt.Errorf("log source is nil")
	}
	if q.Range.To < q.Range.From {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	records, err := cache.Memoize(ctx, f.store, getLogsOp, canonicalArgs(q), func() ([]model.LogRecord, error) {
		logs, err := f.source.FilterLogs(ctx, q.Range.From, q.Range.To, q.Addresses, q.Topics)
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", q.Range.From, q.Range.To, err)
		}

		out := make([]model.LogRecord, 0, len(logs))
		for _, log := range logs {
			if log.Removed {
				continue
			}
			out = append(out, buildLogRecord(log))
		}
		f.logger.Debug("fetched logs", zap.Uint64("from", q.Range.From), zap.Uint64("to", q.Range.To), zap.Int("logs", len(out)))
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func canonicalArgs(q Query) getLogsArgs {
	addresses := make([]string, 0, len(q.Addresses))
	for _, address := range q.Addresses {
		addresses = append(addresses, address.Hex())
	}
	slices.Sort(addresses)
	addresses = slices.Compact(addresses)

	topics := make([]string, 0, len(q.Topics))
	for _, topic := range q.Topics {
		topics = append(topics, strings.ToLower(topic.Hex()))
	}
	slices.Sort(topics)

	return getLogsArgs{
		Addresses: addresses,
		Topics:    topics,
		From:      q.Range.From,
		To:        q.Range.To,
	}
}
