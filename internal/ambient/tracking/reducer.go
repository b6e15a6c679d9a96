package tracking

import (
	"fmt"
	"math"
	"math/big"
	"sort"
)

// ErrMissingTemplate signals a programmer/config invariant violation: a
// pool's template must already be present by the time InitPool is folded.
var ErrMissingTemplate = fmt.Errorf("tracking: missing pool template")

// InitFromInitPool builds the initial TrackedPool state from the pool's
// InitPool update and its template, per §4.6.1. update must carry
// non-negative base/quote flows; this is asserted (panics), matching the
// reducer's documented invariant-violation policy for malformed InitPool
// data (a condition the chain itself should never produce).
func InitFromInitPool(update PoolUpdateEvent, feeRatePips uint16) *TrackedPool {
	if update.BaseFlow.Sign() < 0 || update.QuoteFlow.Sign() < 0 {
		panic("tracking: InitPool flows must be non-negative")
	}
	tp := NewTrackedPool()
	tp.AmbientLiq = new(big.Int).Set(update.AmbientLiq)
	tp.BaseTVL = absBig(update.BaseFlow)
	tp.QuoteTVL = absBig(update.QuoteFlow)
	tp.FeeRate = float64(feeRatePips)
	price := update.Price
	tp.LastPriceSwap, tp.LastPriceLiq, tp.LastPriceIndic = price, price, price
	tp.LastBlock = update.Block
	return tp
}

// Apply folds a single PoolUpdateEvent into tp, dispatching by the event's
// tags. It updates tp in place and is deterministic: the same (tp, update)
// pair always produces the same result.
func Apply(tp *TrackedPool, update PoolUpdateEvent) error {
	switch {
	case update.IsSwap:
		handleSwap(tp, update)
	case update.IsLiq:
		handleLiq(tp, update)
	case update.IsHarvest:
		handleLiq(tp, update)
	default:
		handleRevision(tp, update)
	}
	tp.LastBlock = update.Block
	return nil
}

const stableFlowThreshold = 1000

// handleLiq implements §4.6.2: TVL accounting, then (when flows are both
// numerically stable and at-market) a price update derived either from the
// concentrated quadratic solve or the simple ambient ratio. It also
// maintains liquidity bumps for ranged (tick-skewed) changes, and
// WithdrawKnockout's pure ambient-liquidity adjustment.
func handleLiq(tp *TrackedPool, update PoolUpdateEvent) {
	tp.BaseTVL.Add(tp.BaseTVL, update.BaseFlow)
	tp.QuoteTVL.Add(tp.QuoteTVL, update.QuoteFlow)
	tp.AmbientLiq.Add(tp.AmbientLiq, update.AmbientLiq)
	tp.ConcLiq.Add(tp.ConcLiq, update.ConcLiq)

	if update.BidTick != nil && update.AskTick != nil {
		applyBumps(tp, update)
	}

	baseMag := math.Abs(bigToFloat(update.BaseFlow))
	quoteMag := math.Abs(bigToFloat(update.QuoteFlow))
	if baseMag < stableFlowThreshold || quoteMag < stableFlowThreshold {
		return
	}
	if !update.FlowsAtMarket {
		return
	}

	if update.IsTickSkewed && update.BidTick != nil && update.AskTick != nil {
		s, ok := knockoutSqrtPrice(baseMag, quoteMag, *update.BidTick, *update.AskTick)
		if ok {
			price := s * s
			tp.LastPriceLiq = price
			tp.LastPriceIndic = price
		}
		return
	}

	price := derivePriceSwap(bigToFloat(update.BaseFlow), bigToFloat(update.QuoteFlow))
	tp.LastPriceLiq = price
	tp.LastPriceIndic = price
}

// handleSwap implements §4.6.3.
func handleSwap(tp *TrackedPool, update PoolUpdateEvent) {
	tp.BaseTVL.Add(tp.BaseTVL, update.BaseFlow)
	tp.QuoteTVL.Add(tp.QuoteTVL, update.QuoteFlow)

	baseMag := absBig(update.BaseFlow)
	quoteMag := absBig(update.QuoteFlow)
	tp.BaseVolume.Add(tp.BaseVolume, baseMag)
	tp.QuoteVolume.Add(tp.QuoteVolume, quoteMag)

	if update.InBaseQty {
		tp.QuoteFees += bigToFloat(quoteMag) * tp.FeeRate
	} else {
		tp.BaseFees += bigToFloat(baseMag) * tp.FeeRate
	}

	baseMagF, quoteMagF := bigToFloat(baseMag), bigToFloat(quoteMag)
	if baseMagF >= stableFlowThreshold && quoteMagF >= stableFlowThreshold {
		oldPrice := tp.LastPriceSwap
		newPrice := derivePriceSwap(bigToFloat(update.BaseFlow), bigToFloat(update.QuoteFlow))
		tp.LastPriceSwap = newPrice
		tp.LastPriceIndic = newPrice

		if tp.TickBumpsEnabled {
			crossKnockoutBumps(tp, math.Sqrt(oldPrice), math.Sqrt(newPrice))
		}
	}
}

// handleRevision implements §4.6.6: overwrite fee_rate, leave everything
// else untouched.
func handleRevision(tp *TrackedPool, update PoolUpdateEvent) {
	tp.FeeRate = update.FeeRate
}

// applyBumps implements the basic (non-knockout-crossing) half of §4.6.4:
// ranged liquidity changes add/remove a signed delta at each endpoint tick.
// Knockout mints additionally record the protected side's knockout
// liquidity and width.
func applyBumps(tp *TrackedPool, update PoolUpdateEvent) {
	bid, ask := *update.BidTick, *update.AskTick
	if bid == ask {
		return
	}
	// ConcLiq already carries the correct sign (positive on mint, negative
	// on burn); the bump at bid takes that sign, ask its negation.
	delta := bigToFloat(update.ConcLiq)

	bumpAt(tp, bid, delta, update)
	bumpAt(tp, ask, -delta, update)
}

func bumpAt(tp *TrackedPool, tick int32, delta float64, update PoolUpdateEvent) {
	idx := sort.Search(len(tp.Bumps), func(i int) bool { return tp.Bumps[i].Tick >= tick })
	if idx < len(tp.Bumps) && tp.Bumps[idx].Tick == tick {
		b := &tp.Bumps[idx]
		b.LiquidityDelta += delta
		b.LastBlock = update.Block
		applyKnockoutSide(b, tick, update)
		if b.collapsed() {
			tp.Bumps = append(tp.Bumps[:idx], tp.Bumps[idx+1:]...)
		}
		return
	}
	nb := LiquidityBump{Tick: tick, LastBlock: update.Block, LiquidityDelta: delta}
	applyKnockoutSide(&nb, tick, update)
	if nb.collapsed() {
		return
	}
	tp.Bumps = append(tp.Bumps, LiquidityBump{})
	copy(tp.Bumps[idx+1:], tp.Bumps[idx:])
	tp.Bumps[idx] = nb
}

func applyKnockoutSide(b *LiquidityBump, tick int32, update PoolUpdateEvent) {
	if !update.IsKnockout || update.BidTick == nil || update.AskTick == nil {
		return
	}
	width := *update.AskTick - *update.BidTick
	conc := bigToFloat(update.ConcLiq)
	if update.IsBid && tick == *update.BidTick {
		b.KnockoutBidLiq += conc
		b.KnockoutBidWidth = width
	} else if !update.IsBid && tick == *update.AskTick {
		b.KnockoutAskLiq += conc
		b.KnockoutAskWidth = width
	}
}

// crossKnockoutBumps implements §4.6.5: when a swap moves the pool's
// sqrt-price from oldPrice to newPrice, cancel knockout principal at every
// bump whose tick lies strictly between the two corresponding ticks,
// re-injecting it at the position's paired endpoint so future crossings of
// that tick don't double-count it.
func crossKnockoutBumps(tp *TrackedPool, oldPrice, newPrice float64) {
	tOld, tNew := tickAtSqrtPrice(oldPrice), tickAtSqrtPrice(newPrice)
	if tOld == tNew {
		return
	}

	lo, hi := tOld, tNew
	upward := tNew > tOld
	if !upward {
		lo, hi = tNew, tOld
	}

	for i := range tp.Bumps {
		b := &tp.Bumps[i]
		if b.Tick <= lo || b.Tick >= hi {
			continue
		}
		if upward && b.KnockoutAskLiq > 0 {
			liq := b.KnockoutAskLiq
			b.LiquidityDelta -= liq
			pairTick := b.Tick - b.KnockoutAskWidth
			b.KnockoutAskLiq = 0
			b.KnockoutAskWidth = 0
			addBumpDelta(tp, pairTick, liq)
		} else if !upward && b.KnockoutBidLiq > 0 {
			liq := b.KnockoutBidLiq
			b.LiquidityDelta += liq
			pairTick := b.Tick + b.KnockoutBidWidth
			b.KnockoutBidLiq = 0
			b.KnockoutBidWidth = 0
			addBumpDelta(tp, pairTick, liq)
		}
	}

	tp.Bumps = removeCollapsed(tp.Bumps)
}

func addBumpDelta(tp *TrackedPool, tick int32, delta float64) {
	idx := sort.Search(len(tp.Bumps), func(i int) bool { return tp.Bumps[i].Tick >= tick })
	if idx < len(tp.Bumps) && tp.Bumps[idx].Tick == tick {
		tp.Bumps[idx].LiquidityDelta += delta
		return
	}
	nb := LiquidityBump{Tick: tick, LiquidityDelta: delta}
	tp.Bumps = append(tp.Bumps, LiquidityBump{})
	copy(tp.Bumps[idx+1:], tp.Bumps[idx:])
	tp.Bumps[idx] = nb
}

func removeCollapsed(bumps []LiquidityBump) []LiquidityBump {
	out := bumps[:0]
	for _, b := range bumps {
		if !b.collapsed() {
			out = append(out, b)
		}
	}
	return out
}
