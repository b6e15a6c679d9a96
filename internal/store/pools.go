package store

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/althea-net/ambient-indexer/internal/ambient/pool"
)

// ListKnownPools returns every pool that has an initialized TrackedPool
// record, parsed back out of its key. Used by the latest-curve query
// (§4.8) which operates over "every known pool" rather than just the
// pools touched in the current window.
func (s *Store) ListKnownPools() ([]pool.Pool, error) {
	var pools []pool.Pool
	err := s.ScanPrefix([]byte(PrefixTrackedPool), func(key, _ []byte) (bool, error) {
		p, ok := parsePoolKey(PrefixTrackedPool, key)
		if ok {
			pools = append(pools, p)
		}
		return true, nil
	})
	return pools, err
}

func parsePoolKey(prefix Prefix, key []byte) (pool.Pool, bool) {
	rest := strings.TrimPrefix(string(key), string(prefix))
	parts := strings.SplitN(rest, "_", 3)
	if len(parts) != 3 {
		return pool.Pool{}, false
	}
	poolIdx, ok := new(big.Int).SetString(parts[2], 10)
	if !ok {
		return pool.Pool{}, false
	}
	return pool.Pool{
		Base:    common.HexToAddress(parts[0]),
		Quote:   common.HexToAddress(parts[1]),
		PoolIdx: poolIdx,
	}, true
}
