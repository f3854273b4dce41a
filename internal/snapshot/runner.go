package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"cohortSnapshot/internal/aggregate"
	"cohortSnapshot/internal/cache"
	"cohortSnapshot/internal/decoder"
	"cohortSnapshot/internal/indexer"
	"cohortSnapshot/internal/model"
)

const (
	SourceVoters = "voters"
	SourceCircle = "coordinape"
	SourceGift   = "ygift"
)

// Chain is the chain access the runner needs beyond log queries.
type Chain interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// VoteSource returns governance voters up to a timestamp cutoff.
type VoteSource interface {
	Voters(ctx context.Context, cutoff uint64) (model.Set[string], error)
	CacheArgs() interface{}
}

// RosterSource returns community circle members.
type RosterSource interface {
	Members(ctx context.Context) (model.Set[string], error)
	CacheArgs() interface{}
}

// Pool is a staking contract and its source label.
type Pool struct {
	Label   string
	Address common.Address
}

// RunConfig holds the snapshot parameters.
type RunConfig struct {
	// SnapshotBlock bounds all historical data. 0 means the current chain height.
	SnapshotBlock uint64
	FromBlock     uint64
	GiftFromBlock uint64
	GiftContract  common.Address
	Pools         []Pool
	StakeTopic    string
	GiftTopic     string
	VoteCutoff    bool
	Cohorts       aggregate.CohortConfig
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Chain     Chain
	Scheduler *indexer.Scheduler
	Votes     VoteSource
	Roster    RosterSource
	Cache     cache.Store
	Writer    *Writer
}

// Runner computes the cohort snapshot end to end.
type Runner struct {
	cfg    RunConfig
	deps   Deps
	logger *zap.Logger
}

func NewRunner(cfg RunConfig, deps Deps, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger}
}

// Run fetches every source, aggregates cohorts and writes the snapshot.
// Nothing is written unless every step succeeds.
func (r *Runner) Run(ctx context.Context) (*aggregate.Cohorts, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	snapshotBlock, err := r.resolveSnapshotBlock(ctx)
	if err != nil {
		return nil, err
	}

	sources := model.SourceSet{}

	voters, err := r.loadVoters(ctx, snapshotBlock)
	if err != nil {
		return nil, err
	}
	sources[SourceVoters] = voters

	members, err := r.loadCircleMembers(ctx)
	if err != nil {
		return nil, err
	}
	sources[SourceCircle] = members

	gifts, err := r.loadGiftUsers(ctx, snapshotBlock)
	if err != nil {
		return nil, err
	}
	sources.Merge(gifts)

	stakers, err := r.loadPoolStakers(ctx, snapshotBlock)
	if err != nil {
		return nil, err
	}
	sources.Merge(stakers)

	for _, key := range sources.Keys() {
		r.logger.Info("source loaded", zap.String("source", key), zap.Int("addresses", len(sources[key])))
	}

	cohorts, err := aggregate.NewCohortAggregator(r.cfg.Cohorts, r.logger).Run(sources)
	if err != nil {
		return nil, fmt.Errorf("aggregate cohorts: %w", err)
	}

	if r.deps.Writer != nil {
		if err := r.deps.Writer.Write(cohorts); err != nil {
			return nil, err
		}
	}
	return cohorts, nil
}

func (r *Runner) validate() error {
	if r.deps.Chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.deps.Scheduler == nil {
		return fmt.Errorf("scheduler is nil")
	}
	if r.deps.Votes == nil {
		return fmt.Errorf("vote source is nil")
	}
	if r.deps.Roster == nil {
		return fmt.Errorf("roster source is nil")
	}
	if len(r.cfg.Pools) == 0 {
		return fmt.Errorf("at least one pool is required")
	}
	seen := model.NewSet[string]()
	for _, pool := range r.cfg.Pools {
		if pool.Label == "" {
			return fmt.Errorf("pool %s has no label", pool.Address.Hex())
		}
		if seen.Has(pool.Label) {
			return fmt.Errorf("duplicate pool label: %s", pool.Label)
		}
		seen.Add(pool.Label)
	}
	return nil
}

func (r *Runner) resolveSnapshotBlock(ctx context.Context) (uint64, error) {
	if r.cfg.SnapshotBlock != 0 {
		return r.cfg.SnapshotBlock, nil
	}
	latest, err := r.deps.Chain.LatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}
	r.logger.Warn("snapshot at chain head, recent ranges may not be final", zap.Uint64("snapshot_block", latest))
	return latest, nil
}

func (r *Runner) loadVoters(ctx context.Context, snapshotBlock uint64) (model.Set[string], error) {
	var cutoff uint64
	if r.cfg.VoteCutoff {
		ts, err := cache.Memoize(ctx, r.deps.Cache, "block_timestamp", snapshotBlock, func() (uint64, error) {
			return r.deps.Chain.BlockTimestamp(ctx, snapshotBlock)
		})
		if err != nil {
			return nil, fmt.Errorf("snapshot block timestamp: %w", err)
		}
		cutoff = ts
	}

	args := struct {
		Source interface{} `json:"source"`
		Cutoff uint64      `json:"cutoff"`
	}{r.deps.Votes.CacheArgs(), cutoff}

	voters, err := cache.Memoize(ctx, r.deps.Cache, "snapshot_voters", args, func() ([]string, error) {
		set, err := r.deps.Votes.Voters(ctx, cutoff)
		if err != nil {
			return nil, err
		}
		return model.Sorted(set), nil
	})
	if err != nil {
		return nil, fmt.Errorf("load voters: %w", err)
	}
	return model.NewSet(voters...), nil
}

func (r *Runner) loadCircleMembers(ctx context.Context) (model.Set[string], error) {
	members, err := cache.Memoize(ctx, r.deps.Cache, "circle_members", r.deps.Roster.CacheArgs(), func() ([]string, error) {
		set, err := r.deps.Roster.Members(ctx)
		if err != nil {
			return nil, err
		}
		return model.Sorted(set), nil
	})
	if err != nil {
		return nil, fmt.Errorf("load circle members: %w", err)
	}
	return model.NewSet(members...), nil
}

func (r *Runner) loadGiftUsers(ctx context.Context, snapshotBlock uint64) (model.SourceSet, error) {
	dec, err := decoder.NewGiftDecoder(r.cfg.GiftTopic)
	if err != nil {
		return nil, err
	}

	logs, err := r.deps.Scheduler.FetchAll(ctx, indexer.Query{
		Addresses: []common.Address{r.cfg.GiftContract},
		Topics:    []common.Hash{dec.Topic()},
		Range:     indexer.BlockRange{From: r.cfg.GiftFromBlock, To: snapshotBlock},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch gift logs: %w", err)
	}

	sources, err := decoder.DecodeAll(dec, logs)
	if err != nil {
		return nil, err
	}
	sources.Ensure(decoder.SourceGiftSenders)
	sources.Ensure(decoder.SourceGiftReceivers)
	sources[SourceGift] = sources[decoder.SourceGiftSenders].Union(sources[decoder.SourceGiftReceivers])
	return sources, nil
}

func (r *Runner) loadPoolStakers(ctx context.Context, snapshotBlock uint64) (model.SourceSet, error) {
	dec, err := decoder.NewStakeDecoder(r.cfg.StakeTopic)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(r.cfg.Pools))
	addresses := make([]common.Address, 0, len(r.cfg.Pools))
	for _, pool := range r.cfg.Pools {
		labels[pool.Address.Hex()] = pool.Label
		addresses = append(addresses, pool.Address)
	}

	logs, err := r.deps.Scheduler.FetchAll(ctx, indexer.Query{
		Addresses: addresses,
		Topics:    []common.Hash{dec.Topic()},
		Range:     indexer.BlockRange{From: r.cfg.FromBlock, To: snapshotBlock},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch stake logs: %w", err)
	}

	byContract, err := decoder.DecodeAll(dec, logs)
	if err != nil {
		return nil, err
	}

	sources := model.SourceSet{}
	for _, pool := range r.cfg.Pools {
		sources.Ensure(pool.Label)
	}
	for contract, stakers := range byContract {
		label, ok := labels[contract]
		if !ok {
			return nil, fmt.Errorf("stake log from unexpected contract %s", contract)
		}
		sources[label] = sources[label].Union(stakers)
	}
	return sources, nil
}

// ParsePools parses "label=address" entries.
func ParsePools(inputs []string) ([]Pool, error) {
	pools := make([]Pool, 0, len(inputs))
	for _, input := range inputs {
		parts := strings.SplitN(input, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid pool %q, want label=address", input)
		}
		label := strings.TrimSpace(parts[0])
		if label == "" {
			return nil, fmt.Errorf("invalid pool %q, want label=address", input)
		}
		address, err := indexer.ParseAddress(parts[1])
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", label, err)
		}
		pools = append(pools, Pool{Label: label, Address: address})
	}
	return pools, nil
}
