// Package reduce orchestrates the per-pool reducer invocation described
// in §4.6: given a dirty pool marker, it loads or initializes the
// pool's TrackedPool, gathers every stored event newer than last_block
// across all event kinds, folds them through the state machine in
// (block, log_index) order, and persists the result. The pure folding
// logic lives in internal/ambient/tracking; this package supplies the
// store-backed event collection tracking itself cannot depend on
// without an import cycle.
package reduce

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/althea-net/ambient-indexer/internal/ambient/events"
	"github.com/althea-net/ambient-indexer/internal/ambient/tracking"
	"github.com/althea-net/ambient-indexer/internal/store"
)

// Pool runs the reducer for a single dirty pool and clears its dirty
// marker by advancing last_block to upTo. Callers (the scanner) decide
// upTo as the window's end block.
func Pool(s *store.Store, log *zap.Logger, d tracking.DirtyPoolTracker, upTo uint64) error {
	if log == nil {
		log = zap.NewNop()
	}
	base, quote, poolIdx := d.Base, d.Quote, d.PoolIdx

	var tp tracking.TrackedPool
	lastBlock := d.LastBlock

	if d.LastBlock == 0 {
		initialized, err := initPool(s, base, quote, poolIdx)
		if err != nil {
			if err == store.ErrNotFound {
				log.Warn("dirty pool has no InitPool event, skipping",
					zap.String("base", base.Hex()), zap.String("quote", quote.Hex()), zap.String("pool_idx", poolIdx.String()))
				return nil
			}
			return err
		}
		tp = *initialized
		lastBlock = tp.LastBlock
	} else {
		loaded, err := s.GetTrackedPool(base, quote, poolIdx)
		if err != nil {
			return fmt.Errorf("reduce: load tracked pool: %w", err)
		}
		tp = loaded
	}

	// §4.4 step 9: fold every stored event whose block height is beyond the
	// pool's last_block, whether that's the dirty marker's own last_block or
	// (on first init) the InitPool event's block — a mint committed in the
	// same window as InitPool must not be dropped.
	updates, err := collectUpdates(s, base, quote, poolIdx, lastBlock)
	if err != nil {
		return fmt.Errorf("reduce: collect updates: %w", err)
	}
	sort.Slice(updates, func(i, j int) bool {
		if updates[i].Block != updates[j].Block {
			return updates[i].Block < updates[j].Block
		}
		return updates[i].Index < updates[j].Index
	})
	for _, u := range updates {
		if err := tracking.Apply(&tp, u); err != nil {
			log.Error("reducer failed on update, skipping event",
				zap.Uint64("block", u.Block), zap.Error(err))
			continue
		}
	}
	if err := s.PutTrackedPool(base, quote, poolIdx, tp); err != nil {
		return fmt.Errorf("reduce: persist tracked pool: %w", err)
	}
	return advanceDirty(s, d, upTo)
}

func advanceDirty(s *store.Store, d tracking.DirtyPoolTracker, upTo uint64) error {
	d.Dirty = false
	d.LastBlock = upTo
	return s.PutDirtyPool(d)
}

// initPool implements §4.6.1: the pool's sole InitPool event (there is
// ever exactly one) becomes the TrackedPool's starting state.
func initPool(s *store.Store, base, quote common.Address, poolIdx *big.Int) (*tracking.TrackedPool, error) {
	inits, err := store.ScanPoolEvents[events.InitPoolEvent](s, store.PrefixInitPool, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	if len(inits) == 0 {
		return nil, store.ErrNotFound
	}
	tmpl, err := s.GetTemplate(poolIdx)
	if err != nil {
		return nil, fmt.Errorf("reduce: load template for pool_idx %s: %w", poolIdx.String(), err)
	}
	update := tracking.FromInitPool(inits[0])
	return tracking.InitFromInitPool(update, tmpl.FeeRatePips), nil
}

// collectUpdates gathers every stored event for the pool across every
// event kind with block_height > lastBlock, normalized into
// PoolUpdateEvent form.
func collectUpdates(s *store.Store, base, quote common.Address, poolIdx *big.Int, lastBlock uint64) ([]tracking.PoolUpdateEvent, error) {
	var out []tracking.PoolUpdateEvent

	revisions, err := store.ScanPoolEvents[events.PoolRevisionEvent](s, store.PrefixRevision, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range revisions {
		if e.BlockHeight > lastBlock {
			out = append(out, tracking.FromPoolRevision(e))
		}
	}

	swaps, err := store.ScanPoolEvents[events.SwapEvent](s, store.PrefixSwap, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range swaps {
		if e.BlockHeight > lastBlock {
			out = append(out, tracking.FromSwap(e))
		}
	}

	mintRanged, err := store.ScanPoolEvents[events.MintRangedEvent](s, store.PrefixMintRanged, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range mintRanged {
		if e.BlockHeight > lastBlock {
			out = append(out, tracking.FromMintRanged(e))
		}
	}

	burnRanged, err := store.ScanPoolEvents[events.BurnRangedEvent](s, store.PrefixBurnRanged, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range burnRanged {
		if e.BlockHeight > lastBlock {
			out = append(out, tracking.FromBurnRanged(e))
		}
	}

	harvests, err := store.ScanPoolEvents[events.HarvestEvent](s, store.PrefixHarvest, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range harvests {
		if e.BlockHeight > lastBlock {
			out = append(out, tracking.FromHarvest(e))
		}
	}

	mintAmbient, err := store.ScanPoolEvents[events.MintAmbientEvent](s, store.PrefixMintAmbient, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range mintAmbient {
		if e.BlockHeight > lastBlock {
			out = append(out, tracking.FromMintAmbient(e))
		}
	}

	burnAmbient, err := store.ScanPoolEvents[events.BurnAmbientEvent](s, store.PrefixBurnAmbient, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range burnAmbient {
		if e.BlockHeight > lastBlock {
			out = append(out, tracking.FromBurnAmbient(e))
		}
	}

	mintKnockout, err := store.ScanPoolEvents[events.MintKnockoutEvent](s, store.PrefixMintKnockout, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range mintKnockout {
		if e.BlockHeight > lastBlock {
			out = append(out, tracking.FromMintKnockout(e))
		}
	}

	burnKnockout, err := store.ScanPoolEvents[events.BurnKnockoutEvent](s, store.PrefixBurnKnockout, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range burnKnockout {
		if e.BlockHeight > lastBlock {
			out = append(out, tracking.FromBurnKnockout(e))
		}
	}

	withdrawKnockout, err := store.ScanPoolEvents[events.WithdrawKnockoutEvent](s, store.PrefixWithdrawKnockout, base, quote, poolIdx)
	if err != nil {
		return nil, err
	}
	for _, e := range withdrawKnockout {
		if e.BlockHeight > lastBlock {
			out = append(out, tracking.FromWithdrawKnockout(e))
		}
	}

	return out, nil
}
