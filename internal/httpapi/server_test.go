package httpapi

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/althea-net/ambient-indexer/configs"
	"github.com/althea-net/ambient-indexer/internal/ambient/events"
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

func TestConstantsReturnsAllowLists(t *testing.T) {
	s := openTestStore(t)
	cfg := &configs.Config{AllowedTokens: []string{"0x01"}, AllowedPools: []string{"36000"}}
	srv := New(s, cfg, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/constants", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["allowed_pool_idx"], "36000")
}

func TestGcgoRoutesReturn503WhileSyncing(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutSyncing(true))
	srv := New(s, nil, nil)

	base, quote := common.HexToAddress("0x01"), common.HexToAddress("0x02")
	path := "/gcgo/pool/" + base.Hex() + "/" + quote.Hex() + "/36000"

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandlePoolReturnsNotFoundForUnknownPool(t *testing.T) {
	s := openTestStore(t)
	srv := New(s, nil, nil)

	base, quote := common.HexToAddress("0x01"), common.HexToAddress("0x02")
	path := "/gcgo/pool/" + base.Hex() + "/" + quote.Hex() + "/36000"

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlePoolReturnsTrackedPool(t *testing.T) {
	s := openTestStore(t)
	base, quote, idx := common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(36000)
	require.NoError(t, s.PutTrackedPool(base, quote, idx, tracking.TrackedPool{
		FeeRate: 0.0005,
	}))
	srv := New(s, nil, nil)

	path := "/gcgo/pool/" + base.Hex() + "/" + quote.Hex() + "/36000"
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var tp tracking.TrackedPool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tp))
	assert.Equal(t, 0.0005, tp.FeeRate)
}

func TestHandleRangedPositionsCombinesMintsAndBurns(t *testing.T) {
	s := openTestStore(t)
	base, quote, idx := common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(36000)
	user := common.HexToAddress("0x03")

	mint := events.MintRangedEvent{}
	mint.BlockHeight, mint.User, mint.Base, mint.Quote, mint.PoolIdx = 1, user, base, quote, idx
	mint.BidTick, mint.AskTick = -100, 100
	mint.Liq, mint.BaseFlow, mint.QuoteFlow = big.NewInt(500), big.NewInt(10), big.NewInt(20)
	require.NoError(t, s.PutMintRanged(mint))

	srv := New(s, nil, nil)
	path := "/gcgo/position/ranged/" + base.Hex() + "/" + quote.Hex() + "/36000"
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	positions, ok := body["positions"].([]any)
	require.True(t, ok)
	assert.Len(t, positions, 1)
}

func TestHandleUserPositionsAggregatesAcrossPools(t *testing.T) {
	s := openTestStore(t)
	user := common.HexToAddress("0x03")
	base1, quote1, idx1 := common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(36000)
	base2, quote2, idx2 := common.HexToAddress("0x04"), common.HexToAddress("0x05"), big.NewInt(42000)

	ranged := events.MintRangedEvent{}
	ranged.BlockHeight, ranged.User, ranged.Base, ranged.Quote, ranged.PoolIdx = 1, user, base1, quote1, idx1
	ranged.BidTick, ranged.AskTick = -100, 100
	ranged.Liq, ranged.BaseFlow, ranged.QuoteFlow = big.NewInt(500), big.NewInt(10), big.NewInt(20)
	require.NoError(t, s.PutMintRanged(ranged))

	ambient := events.MintAmbientEvent{}
	ambient.BlockHeight, ambient.User, ambient.Base, ambient.Quote, ambient.PoolIdx = 2, user, base2, quote2, idx2
	ambient.Liq, ambient.BaseFlow, ambient.QuoteFlow = big.NewInt(300), big.NewInt(5), big.NewInt(15)
	require.NoError(t, s.PutMintAmbient(ambient))

	srv := New(s, nil, nil)
	path := "/gcgo/user/" + user.Hex() + "/positions"
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body["ranged"], 1)
	assert.Len(t, body["ambient"], 1)
}

func TestDebugStatusReportsCursorAndDirtyCount(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutBlockCursor(123))
	require.NoError(t, s.PutDirtyPool(tracking.DirtyPoolTracker{
		Dirty: true, Base: common.HexToAddress("0x01"), Quote: common.HexToAddress("0x02"), PoolIdx: big.NewInt(1),
	}))
	srv := New(s, nil, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(123), body["block_cursor"])
	assert.Equal(t, float64(1), body["dirty_pools"])
}

func TestErc20PriceRejectsInvalidAddress(t *testing.T) {
	s := openTestStore(t)
	srv := New(s, nil, nil)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/erc20/not-an-address/price", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
