package snapshot

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortSnapshot/internal/aggregate"
	"cohortSnapshot/internal/cache"
	"cohortSnapshot/internal/decoder"
	"cohortSnapshot/internal/indexer"
	"cohortSnapshot/internal/model"
)

type fakeChain struct {
	latest     uint64
	timestamps map[uint64]uint64
	logs       []types.Log
	failLogs   error
	tsCalls    int
}

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeChain) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	f.tsCalls++
	return f.timestamps[number], nil
}

func (f *fakeChain) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	if f.failLogs != nil {
		return nil, f.failLogs
	}
	wanted := model.NewSet(addresses...)
	topics := model.NewSet(topic0...)
	var out []types.Log
	for _, log := range f.logs {
		if log.BlockNumber < from || log.BlockNumber > to {
			continue
		}
		if !wanted.Has(log.Address) || !topics.Has(log.Topics[0]) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

type fakeVotes struct {
	voters map[string]uint64
	calls  int
	cutoff uint64
}

func (f *fakeVotes) Voters(_ context.Context, cutoff uint64) (model.Set[string], error) {
	f.calls++
	f.cutoff = cutoff
	out := model.NewSet[string]()
	for voter, created := range f.voters {
		if cutoff == 0 || created <= cutoff {
			out.Add(voter)
		}
	}
	return out, nil
}

func (f *fakeVotes) CacheArgs() interface{} { return "votes" }

type fakeRoster struct {
	members []string
	err     error
	calls   int
}

func (f *fakeRoster) Members(context.Context) (model.Set[string], error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return model.NewSet(f.members...), nil
}

func (f *fakeRoster) CacheArgs() interface{} { return "roster" }

var (
	poolYCRV  = common.HexToAddress("0x0001FB050Fe7312791bF6475b96569D83F695C9f")
	poolYGov  = common.HexToAddress("0xBa37B002AbaFDd8E89a1995dA52740bbC013D992")
	poolEmpty = common.HexToAddress("0x033E52f513F9B98e129381c6708F9faA2DEE5db5")
	giftAddr  = common.HexToAddress("0x020171085bcd43b6FD36aD8C95aD61848B1211A2")

	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol = common.HexToAddress("0x3333333333333333333333333333333333333333")
	dave  = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func stakeLog(t *testing.T, pool, user common.Address, block uint64) types.Log {
	t.Helper()
	poolABI, err := decoder.StakingPoolABI()
	require.NoError(t, err)
	event := poolABI.Events["Staked"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1))
	require.NoError(t, err)
	return types.Log{
		Address:     pool,
		Topics:      []common.Hash{event.ID, addressTopic(user)},
		Data:        data,
		BlockNumber: block,
	}
}

func giftLog(t *testing.T, from, to common.Address, block uint64) types.Log {
	t.Helper()
	giftABI, err := decoder.GiftABI()
	require.NoError(t, err)
	event := giftABI.Events["GiftMinted"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1700000000))
	require.NoError(t, err)
	return types.Log{
		Address:     giftAddr,
		Topics:      []common.Hash{event.ID, addressTopic(from), addressTopic(to), common.BigToHash(big.NewInt(int64(block)))},
		Data:        data,
		BlockNumber: block,
	}
}

type harness struct {
	chain  *fakeChain
	votes  *fakeVotes
	roster *fakeRoster
	store  *cache.MemoryStore
	out    string
}

func newHarness(t *testing.T) *harness {
	return &harness{
		chain: &fakeChain{
			latest:     200,
			timestamps: map[uint64]uint64{100: 1000},
			logs: []types.Log{
				stakeLog(t, poolYCRV, alice, 10),
				stakeLog(t, poolYCRV, bob, 55),
				stakeLog(t, poolYGov, alice, 90),
				stakeLog(t, poolYGov, dave, 150), // after the snapshot block
				giftLog(t, carol, alice, 60),
				giftLog(t, dave, bob, 20), // before the gift deploy block
			},
		},
		votes: &fakeVotes{voters: map[string]uint64{
			alice.Hex(): 900,
			carol.Hex(): 1000,
			dave.Hex():  1001,
		}},
		roster: &fakeRoster{members: []string{bob.Hex()}},
		store:  cache.NewMemoryStore(),
		out:    filepath.Join(t.TempDir(), "blue-pill.json"),
	}
}

func (h *harness) runner(cfg RunConfig) *Runner {
	fetcher := indexer.NewFetcher(h.chain, h.store, nil)
	scheduler := indexer.NewScheduler(indexer.SchedulerConfig{BatchSize: 7, Concurrency: 3}, fetcher, nil)
	return NewRunner(cfg, Deps{
		Chain:     h.chain,
		Scheduler: scheduler,
		Votes:     h.votes,
		Roster:    h.roster,
		Cache:     h.store,
		Writer:    NewWriter(WriterConfig{Path: h.out}, nil, nil),
	}, nil)
}

func defaultRunConfig() RunConfig {
	return RunConfig{
		SnapshotBlock: 100,
		FromBlock:     1,
		GiftFromBlock: 50,
		GiftContract:  giftAddr,
		Pools: []Pool{
			{Label: "ycrv", Address: poolYCRV},
			{Label: "yfi/dai", Address: poolEmpty},
			{Label: "ygov", Address: poolYGov},
		},
		VoteCutoff: true,
		Cohorts: aggregate.CohortConfig{
			Base: []aggregate.BaseSpec{
				{Name: "01 The Farmer", Sources: []string{"ycrv", "yfi/dai"}},
				{Name: "02 The Staker", Sources: []string{"ygov"}},
				{Name: "03 The Voter", Sources: []string{"voters"}},
				{Name: "04 The Giver", Sources: []string{"coordinape", "ygift"}},
			},
			Derived:       aggregate.DefaultDerivedSpecs(),
			DeriveEnabled: true,
		},
	}
}

func members(t *testing.T, cohorts *aggregate.Cohorts, name string) []string {
	t.Helper()
	set, ok := cohorts.Get(name)
	require.True(t, ok, "missing cohort %s", name)
	return model.Sorted(set)
}

func TestRunnerEndToEnd(t *testing.T) {
	h := newHarness(t)
	cohorts, err := h.runner(defaultRunConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{alice.Hex(), bob.Hex()}, members(t, cohorts, "01 The Farmer"))
	assert.Equal(t, []string{alice.Hex()}, members(t, cohorts, "02 The Staker"))
	assert.Equal(t, []string{alice.Hex(), carol.Hex()}, members(t, cohorts, "03 The Voter"))
	assert.Equal(t, []string{alice.Hex(), bob.Hex(), carol.Hex()}, members(t, cohorts, "04 The Giver"))

	// alice is in all four base cohorts, bob in two, carol in two.
	assert.Equal(t, []string{alice.Hex(), bob.Hex(), carol.Hex()}, members(t, cohorts, "05 The Lunar Guild"))
	assert.Equal(t, []string{alice.Hex()}, members(t, cohorts, "06 The Sun's Work"))
	assert.Equal(t, []string{alice.Hex()}, members(t, cohorts, "07 The Celestial Sphere"))

	assert.Equal(t, uint64(1000), h.votes.cutoff)

	loaded, err := ReadFile(h.out)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Len())
	voters, _ := loaded.Get("03 The Voter")
	assert.Equal(t, []string{alice.Hex(), carol.Hex()}, voters)
}

func TestRunnerSecondRunUsesCache(t *testing.T) {
	h := newHarness(t)
	_, err := h.runner(defaultRunConfig()).Run(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(h.out)
	require.NoError(t, err)

	h.chain.failLogs = errors.New("provider down")
	_, err = h.runner(defaultRunConfig()).Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(h.out)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, 1, h.votes.calls)
	assert.Equal(t, 1, h.roster.calls)
	assert.Equal(t, 1, h.chain.tsCalls)
}

func TestRunnerWithoutCutoffOrDerived(t *testing.T) {
	h := newHarness(t)
	cfg := defaultRunConfig()
	cfg.VoteCutoff = false
	cfg.Cohorts.DeriveEnabled = false

	cohorts, err := h.runner(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, cohorts.Len())
	assert.Equal(t, []string{alice.Hex(), carol.Hex(), dave.Hex()}, members(t, cohorts, "03 The Voter"))
	assert.Equal(t, uint64(0), h.votes.cutoff)
	assert.Equal(t, 0, h.chain.tsCalls)
}

func TestRunnerResolvesLatestBlock(t *testing.T) {
	h := newHarness(t)
	cfg := defaultRunConfig()
	cfg.SnapshotBlock = 0
	cfg.VoteCutoff = false

	cohorts, err := h.runner(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{alice.Hex(), dave.Hex()}, members(t, cohorts, "02 The Staker"))
}

func TestRunnerFailureLeavesNoFile(t *testing.T) {
	h := newHarness(t)
	h.roster.err = errors.New("roster unavailable")

	_, err := h.runner(defaultRunConfig()).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "roster unavailable")

	_, statErr := os.Stat(h.out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunnerUnknownCohortSource(t *testing.T) {
	h := newHarness(t)
	cfg := defaultRunConfig()
	cfg.Cohorts.Base = append(cfg.Cohorts.Base, aggregate.BaseSpec{Name: "08 Extra", Sources: []string{"rewards"}})

	_, err := h.runner(cfg).Run(context.Background())
	require.Error(t, err)

	_, statErr := os.Stat(h.out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunnerRejectsDuplicatePoolLabels(t *testing.T) {
	h := newHarness(t)
	cfg := defaultRunConfig()
	cfg.Pools = append(cfg.Pools, Pool{Label: "ycrv", Address: poolYGov})

	_, err := h.runner(cfg).Run(context.Background())
	assert.ErrorContains(t, err, "duplicate pool label")
}

func TestParsePools(t *testing.T) {
	pools, err := ParsePools([]string{
		"ycrv=0x0001fb050fe7312791bf6475b96569d83f695c9f",
		" ygov = 0xBa37B002AbaFDd8E89a1995dA52740bbC013D992",
	})
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, "ycrv", pools[0].Label)
	assert.Equal(t, poolYCRV, pools[0].Address)
	assert.Equal(t, "ygov", pools[1].Label)

	_, err = ParsePools([]string{"ycrv"})
	assert.Error(t, err)
	_, err = ParsePools([]string{"=0x0001fb050fe7312791bf6475b96569d83f695c9f"})
	assert.Error(t, err)
	_, err = ParsePools([]string{"ycrv=nothex"})
	assert.Error(t, err)
}
