package store

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ScanPoolEvents decodes every record under prefix for the given pool
// triple into T, in key (chronological) order. Used by the reducer
// orchestration to collect a pool's event history across every event
// kind before folding it through the state machine.
func ScanPoolEvents[T any](s *Store, prefix Prefix, base, quote common.Address, poolIdx *big.Int) ([]T, error) {
	var out []T
	err := s.ScanPrefix(append(PoolKey(prefix, base, quote, poolIdx), '_'), func(_, value []byte) (bool, error) {
		var v T
		if err := decodeGob(value, &v); err != nil {
			return false, err
		}
		out = append(out, v)
		return true, nil
	})
	return out, err
}

// ScanUserEvents decodes every record under prefix indexed by user into T,
// in key order. Used by the per-user position index (§4 additions),
// mirroring the original's user-prefixed secondary index without making it
// the reducer's primary replay path.
func ScanUserEvents[T any](s *Store, prefix Prefix, user common.Address) ([]T, error) {
	var out []T
	err := s.ScanPrefix(UserKey(prefix, user), func(_, value []byte) (bool, error) {
		var v T
		if err := decodeGob(value, &v); err != nil {
			return false, err
		}
		out = append(out, v)
		return true, nil
	})
	return out, err
}
