package store

import (
	"fmt"

	"github.com/althea-net/ambient-indexer/internal/ambient/events"
	"github.com/althea-net/ambient-indexer/internal/ambient/tracking"
)

// ResetDerivedState implements the reset operation described alongside the
// data model: delete every DirtyPoolTracker and TrackedPool, then recreate
// a dirty marker (last_block = 0) for every pool with a stored InitPool
// event, so the reducer rebuilds every TrackedPool from scratch on the next
// pass. Raw events are untouched; this never forces a chain re-fetch.
func (s *Store) ResetDerivedState() error {
	if err := s.deleteAllUnderPrefix(PrefixDirtyPool); err != nil {
		return fmt.Errorf("store: reset: clear dirty pools: %w", err)
	}
	if err := s.deleteAllUnderPrefix(PrefixTrackedPool); err != nil {
		return fmt.Errorf("store: reset: clear tracked pools: %w", err)
	}

	var inits []events.InitPoolEvent
	err := s.ScanPrefix([]byte(PrefixInitPool), func(_, value []byte) (bool, error) {
		var e events.InitPoolEvent
		if err := decodeGob(value, &e); err != nil {
			return true, nil
		}
		inits = append(inits, e)
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("store: reset: scan init pools: %w", err)
	}

	for _, e := range inits {
		if err := s.PutDirtyPool(tracking.DirtyPoolTracker{
			Dirty: true, LastBlock: 0, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		}); err != nil {
			return fmt.Errorf("store: reset: recreate dirty marker: %w", err)
		}
	}
	return nil
}

func (s *Store) deleteAllUnderPrefix(prefix Prefix) error {
	var keys [][]byte
	err := s.ScanPrefix([]byte(prefix), func(key, _ []byte) (bool, error) {
		keys = append(keys, append([]byte(nil), key...))
		return true, nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
