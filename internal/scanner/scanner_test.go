package scanner

import (
	"context"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/althea-net/ambient-indexer/internal/ambient/events"
	"github.com/althea-net/ambient-indexer/internal/ambient/pool"
	"github.com/althea-net/ambient-indexer/internal/store"
)

// fakeChain is a deterministic stand-in for *ethclient.Client. logs maps a
// topic to the logs returned for every FilterLogs call carrying that topic.
type fakeChain struct {
	head uint64
	logs map[common.Hash][]types.Log
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fakeChain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if len(q.Topics) == 0 || len(q.Topics[0]) == 0 {
		return nil, nil
	}
	return f.logs[q.Topics[0][0]], nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func initPoolLog(base, quote common.Address, poolIdx *big.Int, block uint64) types.Log {
	data := make([]byte, 5*32)
	copy(data[32+12:64], base.Bytes()) // creator slot reuses base for test simplicity; liq/flows left zero
	return types.Log{
		Topics: []common.Hash{
			events.InitPoolSignature,
			common.BytesToHash(base.Bytes()),
			common.BytesToHash(quote.Bytes()),
			common.BigToHash(poolIdx),
		},
		Data:        data,
		BlockNumber: block,
	}
}

func TestRunOnceInitializesPoolFromInitPoolLog(t *testing.T) {
	s := openTestStore(t)
	base, quote, idx := common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(36000)
	require.NoError(t, s.PutTemplate(idx, pool.Template{FeeRatePips: 500, TickSize: 64}))

	chain := &fakeChain{
		head: 50,
		logs: map[common.Hash][]types.Log{
			events.InitPoolSignature: {initPoolLog(base, quote, idx, 10)},
		},
	}

	sc := New(chain, s, nil, Config{Window: 1000, HaltAfterIndexing: true}, nil)
	halt, err := sc.runOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, halt)

	tp, err := s.GetTrackedPool(base, quote, idx)
	require.NoError(t, err)
	assert.Equal(t, float64(500), tp.FeeRate)

	cursor, err := s.GetBlockCursor()
	require.NoError(t, err)
	assert.Equal(t, uint64(50), cursor)
}

func TestRunOnceSleepsWhenCaughtUp(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutBlockCursor(50))
	chain := &fakeChain{head: 50}
	sc := New(chain, s, nil, Config{PollInterval: 1}, nil)
	halt, err := sc.runOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, halt)
}

func TestRunOnceDropsEventsOutsideAllowList(t *testing.T) {
	s := openTestStore(t)
	base, quote, idx := common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(36000)
	require.NoError(t, s.PutTemplate(idx, pool.Template{FeeRatePips: 500}))

	chain := &fakeChain{
		head: 10,
		logs: map[common.Hash][]types.Log{
			events.InitPoolSignature: {initPoolLog(base, quote, idx, 1)},
		},
	}

	allow := AllowList{PoolIdx: map[string]bool{"999": true}}
	sc := New(chain, s, nil, Config{HaltAfterIndexing: true, Allow: allow}, nil)
	_, err := sc.runOnce(context.Background())
	require.NoError(t, err)

	_, err = s.GetTrackedPool(base, quote, idx)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunOnceSetsSyncingWhenFarBehindHead(t *testing.T) {
	s := openTestStore(t)
	chain := &fakeChain{head: 10000}
	sc := New(chain, s, nil, Config{Window: 1000, SyncThreshold: 500, HaltAfterIndexing: true}, nil)
	_, err := sc.runOnce(context.Background())
	require.NoError(t, err)

	syncing, err := s.GetSyncing()
	require.NoError(t, err)
	assert.True(t, syncing)
}
