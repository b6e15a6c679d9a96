package db

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/althea-net/ambient-indexer/internal/ambient/events"
)

func TestOpenIndexerStoreFreshStorePersistsVersion(t *testing.T) {
	s, err := OpenIndexerStore(OpenOptions{InMemory: true, Version: "v1.2.3"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	matches, stored, err := s.CheckVersion("v1.2.3")
	require.NoError(t, err)
	assert.True(t, matches)
	assert.Equal(t, "v1.2.3", stored)
}

func TestOpenIndexerStoreRejectsMismatchWithoutOverride(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenIndexerStore(OpenOptions{Path: dir, Version: "v1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = OpenIndexerStore(OpenOptions{Path: dir, Version: "v2"})
	assert.True(t, errors.Is(err, ErrVersionMismatch))
}

func TestOpenIndexerStoreAllowsMismatchUnderOverride(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenIndexerStore(OpenOptions{Path: dir, Version: "v1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := OpenIndexerStore(OpenOptions{Path: dir, Version: "v2", AllowMismatch: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })
}

func TestOpenIndexerStoreReindexRebuildsDerivedStateAndResetsCursor(t *testing.T) {
	dir := t.TempDir()
	base, quote, idx := common.HexToAddress("0x01"), common.HexToAddress("0x02"), big.NewInt(1)

	s, err := OpenIndexerStore(OpenOptions{Path: dir, Version: "v1"})
	require.NoError(t, err)
	require.NoError(t, s.PutInitPool(events.InitPoolEvent{BlockHeight: 1, Base: base, Quote: quote, PoolIdx: idx}))
	require.NoError(t, s.PutBlockCursor(500))
	require.NoError(t, s.Close())

	s2, err := OpenIndexerStore(OpenOptions{Path: dir, Version: "v1", Reindex: true, DefaultStart: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })

	cursor, err := s2.GetBlockCursor()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), cursor)

	d, err := s2.GetDirtyPool(base, quote, idx)
	require.NoError(t, err)
	assert.True(t, d.Dirty)
	assert.Equal(t, uint64(0), d.LastBlock)
}
