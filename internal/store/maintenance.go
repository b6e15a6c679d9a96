package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/althea-net/ambient-indexer/internal/ambient/events"
	"github.com/althea-net/ambient-indexer/internal/ambient/pool"
	"github.com/althea-net/ambient-indexer/internal/ambient/tracking"
)

// prefixSample returns a freshly allocated pointer of the concrete type
// stored under prefix, so the maintenance sweep can attempt a real decode
// rather than decoding into an empty interface (gob requires the concrete
// type be known up front).
func prefixSample(prefix Prefix) any {
	switch prefix {
	case PrefixInitPool:
		return &events.InitPoolEvent{}
	case PrefixTemplate:
		return &pool.Template{}
	case PrefixRevision:
		return &events.PoolRevisionEvent{}
	case PrefixSwap:
		return &events.SwapEvent{}
	case PrefixMintRanged:
		return &events.MintRangedEvent{}
	case PrefixBurnRanged:
		return &events.BurnRangedEvent{}
	case PrefixHarvest:
		return &events.HarvestEvent{}
	case PrefixMintAmbient:
		return &events.MintAmbientEvent{}
	case PrefixBurnAmbient:
		return &events.BurnAmbientEvent{}
	case PrefixMintKnockout:
		return &events.MintKnockoutEvent{}
	case PrefixBurnKnockout:
		return &events.BurnKnockoutEvent{}
	case PrefixWithdrawKnockout:
		return &events.WithdrawKnockoutEvent{}
	case PrefixDirtyPool:
		return &tracking.DirtyPoolTracker{}
	case PrefixTrackedPool:
		return &tracking.TrackedPool{}
	case PrefixCurveSnapshot:
		return &CurveSnapshot{}
	default:
		return nil
	}
}

// ClearInvalidEntries sweeps every known prefix, attempting to decode each
// record; any record whose bytes fail to decode is deleted. If anything
// was deleted, the block cursor is reset to defaultStart to force a full
// re-ingest, per §4.3/§7's DecodeMismatch policy.
func (s *Store) ClearInvalidEntries(defaultStart uint64) (deleted int, err error) {
	for _, prefix := range AllEventPrefixes {
		n, err := s.clearInvalidPrefix(prefix)
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	if deleted > 0 {
		s.log.Warn("deleted invalid records during maintenance sweep, resetting cursor",
			zap.Int("deleted", deleted), zap.Uint64("reset_to", defaultStart))
		if err := s.PutBlockCursor(defaultStart); err != nil {
			return deleted, fmt.Errorf("store: reset cursor after sweep: %w", err)
		}
	}
	return deleted, nil
}

func (s *Store) clearInvalidPrefix(prefix Prefix) (int, error) {
	var badKeys [][]byte
	err := s.ScanPrefix([]byte(prefix), func(key, value []byte) (bool, error) {
		probe := prefixSample(prefix)
		if probe == nil {
			return true, nil
		}
		if err := decodeGob(value, probe); err != nil {
			kc := append([]byte(nil), key...)
			badKeys = append(badKeys, kc)
		}
		return true, nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: scan prefix %s: %w", prefix, err)
	}
	for _, k := range badKeys {
		if err := s.Delete(k); err != nil {
			return len(badKeys), fmt.Errorf("store: delete invalid record %s: %w", k, err)
		}
	}
	return len(badKeys), nil
}

// CheckVersion compares the store's persisted version marker against
// current. An empty persisted version (fresh store) always matches. A
// mismatch is reported to the caller, which aborts unless a force-use flag
// is set, per §7's VersionMismatch policy.
func (s *Store) CheckVersion(current string) (matches bool, stored string, err error) {
	stored, err = s.GetVersion()
	if err != nil {
		return false, "", err
	}
	if stored == "" {
		return true, stored, s.PutVersion(current)
	}
	return stored == current, stored, nil
}
