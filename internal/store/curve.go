package store

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CurveSnapshot is the authoritative on-chain curve/price/liquidity record
// fetched straight from the AMM query contract after an ingest window,
// per §4.8. It exists alongside the log-derived TrackedPool as a
// cross-check: log replay reconstructs state from events, this snapshot
// is what the contract itself reports right now.
type CurveSnapshot struct {
	Base      common.Address
	Quote     common.Address
	PoolIdx   *big.Int
	Price     *big.Int   // queryPrice output
	Liquidity *big.Int   // queryLiquidity output
	Curve     []*big.Int // queryCurve outputs, positional
	Block     uint64
}

func CurveSnapshotKey(base, quote common.Address, poolIdx *big.Int) []byte {
	return PoolKey(PrefixCurveSnapshot, base, quote, poolIdx)
}

func (s *Store) PutCurveSnapshot(snap CurveSnapshot) error {
	return s.Put(CurveSnapshotKey(snap.Base, snap.Quote, snap.PoolIdx), snap)
}

func (s *Store) GetCurveSnapshot(base, quote common.Address, poolIdx *big.Int) (CurveSnapshot, error) {
	var snap CurveSnapshot
	err := s.Get(CurveSnapshotKey(base, quote, poolIdx), &snap)
	return snap, err
}
