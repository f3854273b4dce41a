package indexer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortSnapshot/internal/cache"
)

var (
	addrA = common.HexToAddress("0x0001FB050Fe7312791bF6475b96569D83F695C9f")
	addrB = common.HexToAddress("0x033E52f513F9B98e129381c6708F9faA2DEE5db5")
	topic = common.HexToHash("0x9e71bc8eea02a63969f509818f2dafb9254532904319f9dbda79b67bd34a5f3d")
)

func TestFetcherCachesResults(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{every: 2}
	store := cache.NewMemoryStore()
	fetcher := NewFetcher(source, store, nil)

	q := Query{Addresses: []common.Address{addrA}, Topics: []common.Hash{topic}, Range: BlockRange{From: 10, To: 19}}

	first, err := fetcher.Fetch(ctx, q)
	require.NoError(t, err)
	require.Len(t, first, 5)
	assert.Equal(t, addrA.Hex(), first[0].Address)
	assert.Equal(t, topic.Hex(), first[0].Topic0())

	second, err := fetcher.Fetch(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.callCount())
}

func TestFetcherKeyIgnoresAddressOrder(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{}
	store := cache.NewMemoryStore()
	fetcher := NewFetcher(source, store, nil)

	r := BlockRange{From: 1, To: 3}
	_, err := fetcher.Fetch(ctx, Query{Addresses: []common.Address{addrA, addrB}, Topics: []common.Hash{topic}, Range: r})
	require.NoError(t, err)
	_, err = fetcher.Fetch(ctx, Query{Addresses: []common.Address{addrB, addrA}, Topics: []common.Hash{topic}, Range: r})
	require.NoError(t, err)

	assert.Equal(t, 1, source.callCount())
	assert.Equal(t, 1, store.Len())
}

func TestFetcherDistinctRangesDistinctKeys(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{}
	store := cache.NewMemoryStore()
	fetcher := NewFetcher(source, store, nil)

	for _, r := range []BlockRange{{From: 1, To: 3}, {From: 4, To: 6}} {
		_, err := fetcher.Fetch(ctx, Query{Addresses: []common.Address{addrA}, Range: r})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Len())
}

func TestFetcherProviderError(t *testing.T) {
	source := &fakeSource{failFrom: 5}
	store := cache.NewMemoryStore()
	fetcher := NewFetcher(source, store, nil)

	_, err := fetcher.Fetch(context.Background(), Query{Addresses: []common.Address{addrA}, Range: BlockRange{From: 1, To: 10}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filter logs 1-10")
	assert.Equal(t, 0, store.Len())
}
