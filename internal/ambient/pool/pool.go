// Package pool defines the pool identity and template types shared by the
// event model, the tracking reducer, the store, and position reconstruction.
package pool

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool identifies a single concentrated-liquidity pool by the triple
// (base, quote, pool_idx). Base must sort before quote lexicographically;
// use Canonicalize to enforce that on caller-supplied pairs.
type Pool struct {
	Base    common.Address
	Quote   common.Address
	PoolIdx *big.Int
}

// Canonicalize returns (base, quote) reordered so base sorts first, and
// whether the inputs were already in that order.
func Canonicalize(a, b common.Address) (base, quote common.Address, wasOrdered bool) {
	if bytes.Compare(a.Bytes(), b.Bytes()) <= 0 {
		return a, b, true
	}
	return b, a, false
}

// Template holds the governance-set parameters selected by a pool's
// PoolIdx at creation time. FeeRatePips is in units of 0.0001%.
type Template struct {
	Schema       uint64
	FeeRatePips  uint16
	ProtocolTake uint8
	TickSize     uint16
	JitThreshold uint8
	KnockoutBits uint8
	OracleFlags  uint8
}

// FeeRate returns the template's fee rate as a fraction (e.g. 30 pips ->
// 0.0001 * 30 is NOT right; pips here are 0.0001% units per spec, i.e.
// fee_rate = FeeRatePips / 1_000_000).
func (t Template) FeeRate() float64 {
	return float64(t.FeeRatePips) / 1_000_000
}
