// Package tracking implements the pool update normalizer and the
// TrackedPool reducer: the pure state machine that folds an ordered stream
// of decoded chain events into derived per-pool AMM state.
package tracking

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/althea-net/ambient-indexer/internal/ambient/pool"
)

// PoolUpdateEvent is the uniform shape every event variant normalizes into
// before being folded by the reducer.
type PoolUpdateEvent struct {
	Block   uint64
	Index   uint64
	Base    common.Address
	Quote   common.Address
	PoolIdx *big.Int

	BaseFlow  *big.Int
	QuoteFlow *big.Int
	AmbientLiq *big.Int
	ConcLiq    *big.Int

	Price   float64
	FeeRate float64
	Fees    uint64

	BidTick *int32
	AskTick *int32

	IsSwap      bool
	IsLiq       bool
	IsMint      bool
	IsBurn      bool
	IsKnockout  bool
	IsBid       bool
	IsHarvest   bool
	IsBuy       bool
	InBaseQty   bool
	IsTickSkewed   bool
	FlowsAtMarket  bool
}

// Pool returns the pool identity this update targets.
func (u PoolUpdateEvent) Pool() pool.Pool {
	return pool.Pool{Base: u.Base, Quote: u.Quote, PoolIdx: u.PoolIdx}
}

// LiquidityBump is a per-tick record of signed liquidity change crossed
// when the pool's price moves past that tick. Bumps live in a slice kept
// strictly sorted by Tick; total ordering on the remaining fields (using
// bitwise float comparison) exists only so bumps can be compared for
// equality in tests, not to break ties in storage order.
type LiquidityBump struct {
	Tick             int32
	LastBlock        uint64
	LiquidityDelta   float64
	KnockoutBidLiq   float64
	KnockoutAskLiq   float64
	KnockoutBidWidth int32
	KnockoutAskWidth int32
}

// Less implements the bump total order: tick primary, then the remaining
// fields in declared order, using a bitwise (total-order) float compare so
// NaN and signed zero behave deterministically.
func (b LiquidityBump) Less(o LiquidityBump) bool {
	if b.Tick != o.Tick {
		return b.Tick < o.Tick
	}
	if b.LastBlock != o.LastBlock {
		return b.LastBlock < o.LastBlock
	}
	if d := totalOrderCompare(b.LiquidityDelta, o.LiquidityDelta); d != 0 {
		return d < 0
	}
	if d := totalOrderCompare(b.KnockoutBidLiq, o.KnockoutBidLiq); d != 0 {
		return d < 0
	}
	if d := totalOrderCompare(b.KnockoutAskLiq, o.KnockoutAskLiq); d != 0 {
		return d < 0
	}
	if b.KnockoutBidWidth != o.KnockoutBidWidth {
		return b.KnockoutBidWidth < o.KnockoutBidWidth
	}
	return b.KnockoutAskWidth < o.KnockoutAskWidth
}

// totalOrderCompare orders floats the way math.Float64bits ordering does
// for non-NaN values: by bit pattern, which agrees with numeric order
// except it also gives a definite (but otherwise irrelevant) order to NaNs.
func totalOrderCompare(a, b float64) int {
	ab, bb := floatBits(a), floatBits(b)
	switch {
	case ab < bb:
		return -1
	case ab > bb:
		return 1
	default:
		return 0
	}
}

func floatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

// isNearZero reports whether v is within eps of zero.
func isNearZero(v, eps float64) bool {
	return v > -eps && v < eps
}

// collapsed reports whether a bump's three liquidity fields have all
// decayed to within 1e-4 of zero, meaning the bump should be dropped.
func (b LiquidityBump) collapsed() bool {
	const eps = 1e-4
	return isNearZero(b.LiquidityDelta, eps) && isNearZero(b.KnockoutBidLiq, eps) && isNearZero(b.KnockoutAskLiq, eps)
}

// TrackedPool is the derived, reconstructable state of a single pool.
type TrackedPool struct {
	BaseTVL  *big.Int
	QuoteTVL *big.Int

	BaseVolume  *big.Int
	QuoteVolume *big.Int

	BaseFees  float64
	QuoteFees float64

	LastPriceSwap  float64
	LastPriceLiq   float64
	LastPriceIndic float64

	AmbientLiq *big.Int
	ConcLiq    *big.Int
	FeeRate    float64

	LastBlock uint64

	Bumps []LiquidityBump

	// TickBumpsEnabled gates the §4.6.4-5 bump/knockout-crossing
	// maintenance. Default false: bumps are still recorded for ranged
	// mints/burns (needed for invariant 6/7 and the liquidity-curve
	// endpoint), but knockout pivot-crossing cancellation only runs when
	// this is set. See DESIGN.md Open Question decisions.
	TickBumpsEnabled bool
}

// NewTrackedPool returns a zero-valued TrackedPool ready for initialization
// from an InitPool event.
func NewTrackedPool() *TrackedPool {
	return &TrackedPool{
		BaseTVL:     new(big.Int),
		QuoteTVL:    new(big.Int),
		BaseVolume:  new(big.Int),
		QuoteVolume: new(big.Int),
		AmbientLiq:  new(big.Int),
		ConcLiq:     new(big.Int),
	}
}

// DirtyPoolTracker marks a pool as having committed events not yet folded
// into its TrackedPool. LastBlock == 0 means "not yet initialized".
type DirtyPoolTracker struct {
	Dirty     bool
	LastBlock uint64
	Base      common.Address
	Quote     common.Address
	PoolIdx   *big.Int
}

func (d DirtyPoolTracker) Pool() pool.Pool {
	return pool.Pool{Base: d.Base, Quote: d.Quote, PoolIdx: d.PoolIdx}
}
