package store

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKey builds the `<prefix><base>_<quote>_<pool_idx>` prefix that
// selects a single pool's records under the given event prefix.
func PoolKey(prefix Prefix, base, quote common.Address, poolIdx *big.Int) []byte {
	return []byte(fmt.Sprintf("%s%s_%s_%s", prefix, base.Hex(), quote.Hex(), poolIdx.String()))
}

// EventKey appends `_<block>_<log_index>` to a pool key, yielding a stable
// chronological key within a pool's event scan.
func EventKey(prefix Prefix, base, quote common.Address, poolIdx *big.Int, block, logIndex uint64) []byte {
	return []byte(fmt.Sprintf("%s%s_%s_%s_%020d_%020d", prefix, base.Hex(), quote.Hex(), poolIdx.String(), block, logIndex))
}

// UserKey builds the `<prefix><user>` prefix that selects a user's
// records, independent of pool.
func UserKey(prefix Prefix, user common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefix, user.Hex()))
}

// UserEventKey appends the pool triple and block/log-index to a user key.
func UserEventKey(prefix Prefix, user, base, quote common.Address, poolIdx *big.Int, block, logIndex uint64) []byte {
	return []byte(fmt.Sprintf("%s%s_%s_%s_%s_%020d_%020d", prefix, user.Hex(), base.Hex(), quote.Hex(), poolIdx.String(), block, logIndex))
}

// TemplateKey selects the single PoolTemplate record for a pool_idx.
func TemplateKey(poolIdx *big.Int) []byte {
	return []byte(fmt.Sprintf("%s%s", PrefixTemplate, poolIdx.String()))
}

// DirtyPoolKey and TrackedPoolKey select the single derived-state record
// for a pool.
func DirtyPoolKey(base, quote common.Address, poolIdx *big.Int) []byte {
	return PoolKey(PrefixDirtyPool, base, quote, poolIdx)
}

func TrackedPoolKey(base, quote common.Address, poolIdx *big.Int) []byte {
	return PoolKey(PrefixTrackedPool, base, quote, poolIdx)
}

// Scalar key accessors for the process-wide cursor/syncing/version state.

func (s *Store) GetBlockCursor() (uint64, error) {
	b, err := s.GetScalar(keyBlock)
	if err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return decodeUint64(b), nil
}

func (s *Store) PutBlockCursor(block uint64) error {
	return s.PutScalar(keyBlock, encodeUint64(block))
}

func (s *Store) GetSyncing() (bool, error) {
	b, err := s.GetScalar(keySyncing)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return len(b) > 0 && b[0] != 0, nil
}

func (s *Store) PutSyncing(syncing bool) error {
	v := byte(0)
	if syncing {
		v = 1
	}
	return s.PutScalar(keySyncing, []byte{v})
}

func (s *Store) GetVersion() (string, error) {
	b, err := s.GetScalar(keyVersion)
	if err != nil {
		if err == ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return string(b), nil
}

func (s *Store) PutVersion(v string) error {
	return s.PutScalar(keyVersion, []byte(v))
}

func encodeUint64(v uint64) []byte {
	return []byte(fmt.Sprintf("%020d", v))
}

func decodeUint64(b []byte) uint64 {
	var v uint64
	fmt.Sscanf(string(b), "%d", &v)
	return v
}
