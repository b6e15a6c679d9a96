package store

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/althea-net/ambient-indexer/internal/ambient/events"
	"github.com/althea-net/ambient-indexer/internal/ambient/pool"
	"github.com/althea-net/ambient-indexer/internal/ambient/tracking"
)

// PutInitPool, PutSwap, etc. persist a decoded event at its event key and
// are the only writers the scanner uses for raw event data. Each mirrors
// the same pattern: key by pool triple plus block/log-index, gob-encode the
// event struct as the value. Ranged and ambient mints/burns are also
// written under a user-prefixed key. InitPool and the knockout events carry
// no log index, so their keys use 0 in its place.

func (s *Store) PutInitPool(e events.InitPoolEvent) error {
	return s.Put(EventKey(PrefixInitPool, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, 0), e)
}

func (s *Store) PutPoolRevision(e events.PoolRevisionEvent) error {
	return s.Put(EventKey(PrefixRevision, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index), e)
}

func (s *Store) PutSwap(e events.SwapEvent) error {
	return s.Put(EventKey(PrefixSwap, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index), e)
}

func (s *Store) PutMintRanged(e events.MintRangedEvent) error {
	k := EventKey(PrefixMintRanged, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index)
	if err := s.Put(k, e); err != nil {
		return err
	}
	return s.Put(UserEventKey(PrefixMintRanged, e.User, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index), e)
}

func (s *Store) PutBurnRanged(e events.BurnRangedEvent) error {
	k := EventKey(PrefixBurnRanged, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index)
	if err := s.Put(k, e); err != nil {
		return err
	}
	return s.Put(UserEventKey(PrefixBurnRanged, e.User, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index), e)
}

func (s *Store) PutHarvest(e events.HarvestEvent) error {
	return s.Put(EventKey(PrefixHarvest, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index), e)
}

func (s *Store) PutMintAmbient(e events.MintAmbientEvent) error {
	k := EventKey(PrefixMintAmbient, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index)
	if err := s.Put(k, e); err != nil {
		return err
	}
	return s.Put(UserEventKey(PrefixMintAmbient, e.User, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index), e)
}

func (s *Store) PutBurnAmbient(e events.BurnAmbientEvent) error {
	k := EventKey(PrefixBurnAmbient, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index)
	if err := s.Put(k, e); err != nil {
		return err
	}
	return s.Put(UserEventKey(PrefixBurnAmbient, e.User, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, e.Index), e)
}

func (s *Store) PutMintKnockout(e events.MintKnockoutEvent) error {
	return s.Put(EventKey(PrefixMintKnockout, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, 0), e)
}

func (s *Store) PutBurnKnockout(e events.BurnKnockoutEvent) error {
	return s.Put(EventKey(PrefixBurnKnockout, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, 0), e)
}

func (s *Store) PutWithdrawKnockout(e events.WithdrawKnockoutEvent) error {
	return s.Put(EventKey(PrefixWithdrawKnockout, e.Base, e.Quote, e.PoolIdx, e.BlockHeight, 0), e)
}

// PutTemplate persists a pool template; cmd seeds one per allow-listed
// pool_idx from the YAML config at startup.
func (s *Store) PutTemplate(poolIdx *big.Int, t pool.Template) error {
	return s.Put(TemplateKey(poolIdx), t)
}

func (s *Store) GetTemplate(poolIdx *big.Int) (pool.Template, error) {
	var t pool.Template
	err := s.Get(TemplateKey(poolIdx), &t)
	return t, err
}

// PutDirtyPool and GetDirtyPool manage the per-pool dirty marker.
func (s *Store) PutDirtyPool(d tracking.DirtyPoolTracker) error {
	return s.Put(DirtyPoolKey(d.Base, d.Quote, d.PoolIdx), d)
}

func (s *Store) GetDirtyPool(base, quote common.Address, poolIdx *big.Int) (tracking.DirtyPoolTracker, error) {
	var d tracking.DirtyPoolTracker
	err := s.Get(DirtyPoolKey(base, quote, poolIdx), &d)
	return d, err
}

// PutTrackedPool and GetTrackedPool manage the per-pool derived state.
func (s *Store) PutTrackedPool(base, quote common.Address, poolIdx *big.Int, tp tracking.TrackedPool) error {
	return s.Put(TrackedPoolKey(base, quote, poolIdx), tp)
}

func (s *Store) GetTrackedPool(base, quote common.Address, poolIdx *big.Int) (tracking.TrackedPool, error) {
	var tp tracking.TrackedPool
	err := s.Get(TrackedPoolKey(base, quote, poolIdx), &tp)
	return tp, err
}

// ScanDirtyPools visits every DirtyPoolTracker record.
func (s *Store) ScanDirtyPools(fn func(tracking.DirtyPoolTracker) error) error {
	return s.ScanPrefix([]byte(PrefixDirtyPool), func(_, value []byte) (bool, error) {
		var d tracking.DirtyPoolTracker
		if err := decodeGob(value, &d); err != nil {
			return false, err
		}
		if err := fn(d); err != nil {
			return false, err
		}
		return true, nil
	})
}
