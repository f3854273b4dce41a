package indexer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeSource emits one log per block in the requested range that is a
// multiple of every, attributed to the first queried address.
type fakeSource struct {
	mu       sync.Mutex
	every    uint64
	failFrom uint64
	jitter   bool
	calls    []BlockRange
	inFlight int
	peak     int
}

func (f *fakeSource) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	f.calls = append(f.calls, BlockRange{From: fromBlock, To: toBlock})
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.jitter {
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
	}

	if f.failFrom != 0 && fromBlock <= f.failFrom && f.failFrom <= toBlock {
		return nil, fmt.Errorf("provider error at %d", f.failFrom)
	}

	every := f.every
	if every == 0 {
		every = 1
	}

	var logs []types.Log
	for block := fromBlock; block <= toBlock; block++ {
		if block%every != 0 {
			continue
		}
		log := types.Log{
			BlockNumber: block,
			TxHash:      common.BigToHash(common.Big1),
			Index:       uint(block % 7),
		}
		if len(addresses) > 0 {
			log.Address = addresses[0]
		}
		if len(topic0) > 0 {
			log.Topics = []common.Hash{topic0[0]}
		}
		logs = append(logs, log)
		if block == toBlock {
			break
		}
	}
	return logs, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
