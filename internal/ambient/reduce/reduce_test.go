package reduce

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/althea-net/ambient-indexer/internal/ambient/events"
	"github.com/althea-net/ambient-indexer/internal/ambient/pool"
	"github.com/althea-net/ambient-indexer/internal/ambient/tracking"
	"github.com/althea-net/ambient-indexer/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPoolInitializesFromInitPoolWhenLastBlockZero(t *testing.T) {
	s := openTestStore(t)
	base, quote, idx := common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(36000)

	require.NoError(t, s.PutTemplate(idx, pool.Template{FeeRatePips: 500, TickSize: 64}))
	require.NoError(t, s.PutInitPool(events.InitPoolEvent{
		BlockHeight: 100, Base: base, Quote: quote, PoolIdx: idx,
		Liq: big.NewInt(1000), BaseFlow: big.NewInt(2000), QuoteFlow: big.NewInt(1000),
	}))

	d := tracking.DirtyPoolTracker{Dirty: true, LastBlock: 0, Base: base, Quote: quote, PoolIdx: idx}
	require.NoError(t, Pool(s, nil, d, 100))

	tp, err := s.GetTrackedPool(base, quote, idx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), tp.AmbientLiq)
	assert.Equal(t, float64(500), tp.FeeRate)

	dp, err := s.GetDirtyPool(base, quote, idx)
	require.NoError(t, err)
	assert.False(t, dp.Dirty)
	assert.Equal(t, uint64(100), dp.LastBlock)
}

func TestPoolSkipsWhenInitPoolMissing(t *testing.T) {
	s := openTestStore(t)
	base, quote, idx := common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(1)
	d := tracking.DirtyPoolTracker{Dirty: true, LastBlock: 0, Base: base, Quote: quote, PoolIdx: idx}
	require.NoError(t, Pool(s, nil, d, 50))

	_, err := s.GetTrackedPool(base, quote, idx)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPoolFoldsSubsequentEventsInOrder(t *testing.T) {
	s := openTestStore(t)
	base, quote, idx := common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(36000)

	require.NoError(t, s.PutTemplate(idx, pool.Template{FeeRatePips: 0}))
	require.NoError(t, s.PutInitPool(events.InitPoolEvent{
		BlockHeight: 1, Base: base, Quote: quote, PoolIdx: idx,
		Liq: big.NewInt(0), BaseFlow: big.NewInt(0), QuoteFlow: big.NewInt(0),
	}))
	d0 := tracking.DirtyPoolTracker{Dirty: true, LastBlock: 0, Base: base, Quote: quote, PoolIdx: idx}
	require.NoError(t, Pool(s, nil, d0, 1))

	mint := events.MintAmbientEvent{}
	mint.BlockHeight = 2
	mint.Base, mint.Quote, mint.PoolIdx = base, quote, idx
	mint.Liq = big.NewInt(5000)
	mint.BaseFlow, mint.QuoteFlow = big.NewInt(10000), big.NewInt(10000)
	require.NoError(t, s.PutMintAmbient(mint))

	d1 := tracking.DirtyPoolTracker{Dirty: true, LastBlock: 1, Base: base, Quote: quote, PoolIdx: idx}
	require.NoError(t, Pool(s, nil, d1, 2))

	tp, err := s.GetTrackedPool(base, quote, idx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5000), tp.AmbientLiq)
	assert.Equal(t, big.NewInt(10000), tp.BaseTVL)
}

// TestPoolFoldsSameWindowMintAfterInit covers the case where a scanner
// window commits InitPool and the pool's first mint together, so the
// reducer sees last_block == 0 with a mint already sitting above the
// InitPool event's own block.
func TestPoolFoldsSameWindowMintAfterInit(t *testing.T) {
	s := openTestStore(t)
	base, quote, idx := common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(36000)

	require.NoError(t, s.PutTemplate(idx, pool.Template{FeeRatePips: 0}))
	require.NoError(t, s.PutInitPool(events.InitPoolEvent{
		BlockHeight: 1, Base: base, Quote: quote, PoolIdx: idx,
		Liq: big.NewInt(0), BaseFlow: big.NewInt(0), QuoteFlow: big.NewInt(0),
	}))

	mint := events.MintAmbientEvent{}
	mint.BlockHeight = 2
	mint.Base, mint.Quote, mint.PoolIdx = base, quote, idx
	mint.Liq = big.NewInt(5000)
	mint.BaseFlow, mint.QuoteFlow = big.NewInt(10000), big.NewInt(10000)
	require.NoError(t, s.PutMintAmbient(mint))

	d := tracking.DirtyPoolTracker{Dirty: true, LastBlock: 0, Base: base, Quote: quote, PoolIdx: idx}
	require.NoError(t, Pool(s, nil, d, 2))

	tp, err := s.GetTrackedPool(base, quote, idx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5000), tp.AmbientLiq)
	assert.Equal(t, big.NewInt(10000), tp.BaseTVL)

	dp, err := s.GetDirtyPool(base, quote, idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), dp.LastBlock)
}
