package indexer

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"cohortSnapshot/internal/model"
)

const (
	DefaultBatchSize   uint64 = 10_000
	DefaultConcurrency        = 8
)

// SchedulerConfig holds batching settings.
type SchedulerConfig struct {
	BatchSize   uint64
	Concurrency int
	// Progress receives a progress bar over completed sub-ranges. Nil disables it.
	Progress io.Writer
}

// Scheduler splits a block range into sub-ranges and fetches them concurrently.
type Scheduler struct {
	cfg     SchedulerConfig
	fetcher *Fetcher
	logger  *zap.Logger
}

func NewScheduler(cfg SchedulerConfig, fetcher *Fetcher, logger *zap.Logger) *Scheduler {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, fetcher: fetcher, logger: logger}
}

// FetchAll fetches every sub-range of q.Range and returns the flattened logs.
// The result order is unspecified. A failure in any sub-range fails the call
// and no records are returned.
func (s *Scheduler) FetchAll(ctx context.Context, q Query) ([]model.LogRecord, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("fetcher is nil")
	}
	if q.Range.From > q.Range.To {
		s.logger.Info("nothing to fetch", zap.Uint64("from", q.Range.From), zap.Uint64("to", q.Range.To))
		return nil, nil
	}

	ranges, err := SplitRange(q.Range.From, q.Range.To, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	s.logger.Info("fetch logs",
		zap.Uint64("from", q.Range.From),
		zap.Uint64("to", q.Range.To),
		zap.Int("batches", len(ranges)),
		zap.Int("addresses", len(q.Addresses)),
	)

	bar := s.newProgressBar(len(ranges))

	p := pool.NewWithResults[[]model.LogRecord]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(s.cfg.Concurrency)
	for _, blockRange := range ranges {
		sub := Query{Addresses: q.Addresses, Topics: q.Topics, Range: blockRange}
		p.Go(func(ctx context.Context) ([]model.LogRecord, error) {
			records, err := s.fetcher.Fetch(ctx, sub)
			if err != nil {
				return nil, err
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			return records, nil
		})
	}

	batches, err := p.Wait()
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return nil, fmt.Errorf("fetch batches: %w", err)
	}

	total := 0
	for _, batch := range batches {
		total += len(batch)
	}
	out := make([]model.LogRecord, 0, total)
	for _, batch := range batches {
		out = append(out, batch...)
	}

	s.logger.Info("batch complete", zap.Int("logs", len(out)), zap.Uint64("from", q.Range.From), zap.Uint64("to", q.Range.To))
	return out, nil
}

func (s *Scheduler) newProgressBar(total int) *progressbar.ProgressBar {
	if s.cfg.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(s.cfg.Progress),
		progressbar.OptionSetDescription("fetching logs"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
