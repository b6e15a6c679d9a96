package tracking

import "math"

// tickBase is the per-tick price ratio: price = tickBase^tick.
const tickBase = 1.0001

// sqrtPriceAtTick returns sqrt(1.0001^tick).
func sqrtPriceAtTick(tick int32) float64 {
	return math.Pow(tickBase, float64(tick)/2)
}

// tickAtSqrtPrice inverts sqrtPriceAtTick: t = log_1.0001(p^2). Prices with
// negligible magnitude map to tick 0 rather than producing -Inf.
func tickAtSqrtPrice(sqrtPrice float64) int32 {
	if math.Abs(sqrtPrice) <= 1e-4 {
		return 0
	}
	price := sqrtPrice * sqrtPrice
	return int32(math.Round(math.Log(price) / math.Log(tickBase)))
}

// rootPriceFromReserves derives sqrt(price) = sqrt(base/quote) from signed
// flows. Returns 1.0 (not 0.0) when quoteFlow is zero: a pool with no
// quote reserve is a degenerate edge case, and treating it as "price
// unknown, assume parity" is safer than reporting the pool as worthless.
func rootPriceFromReserves(baseFlow, quoteFlow float64) float64 {
	if quoteFlow == 0 {
		return 1.0
	}
	return math.Sqrt(baseFlow / quoteFlow)
}

// derivePriceSwap is the simple base/quote flow-magnitude ratio used to
// update last_price_swap / last_price_liq for ambient liquidity changes and
// swaps.
func derivePriceSwap(baseFlow, quoteFlow float64) float64 {
	qAbs := math.Abs(quoteFlow)
	if qAbs == 0 {
		return 1.0
	}
	return math.Abs(baseFlow) / qAbs
}

// knockoutSqrtPrice implements the §4.5 MintKnockout quadratic solve for
// the pool's sqrt-price s, given |base|, |quote| magnitudes and the
// position's tick range. concLiqFromKnockoutFlows recovers the implied
// concentrated liquidity from this same root; §4.6.2 step 4 derives
// last_price_liq from it directly as s*s.
func knockoutSqrtPrice(baseMag, quoteMag float64, bidTick, askTick int32) (float64, bool) {
	pBid := sqrtPriceAtTick(bidTick)
	pAsk := sqrtPriceAtTick(askTick)

	switch {
	case quoteMag == 0 && baseMag == 0:
		return 0, false
	case quoteMag == 0:
		return pAsk, true
	case baseMag == 0:
		return pBid, true
	}

	a := quoteMag * pAsk
	b := baseMag - quoteMag*pBid*pAsk
	c := -baseMag * pAsk
	return solveQuadraticInRange(a, b, c, pBid, pAsk)
}

// concLiqFromKnockoutFlows implements the §4.5 MintKnockout concentrated
// liquidity derivation: given |base|, |quote| magnitudes and the position's
// tick range, solve for the pool's sqrt-price and recover the implied
// concentrated liquidity.
func concLiqFromKnockoutFlows(baseMag, quoteMag float64, bidTick, askTick int32) float64 {
	s, ok := knockoutSqrtPrice(baseMag, quoteMag, bidTick, askTick)
	if !ok {
		return 0
	}

	pBid := sqrtPriceAtTick(bidTick)
	pAsk := sqrtPriceAtTick(askTick)
	switch {
	case quoteMag == 0:
		return baseMag * (pAsk - pBid)
	case baseMag == 0:
		denom := 1/pBid - 1/pAsk
		if denom == 0 {
			return 0
		}
		return quoteMag / denom
	}

	denom := s - pBid
	if denom == 0 {
		return 0
	}
	return baseMag / denom
}

// solveQuadraticInRange solves a*x^2 + b*x + c = 0 and returns the root
// lying in [lo, hi], preferring it over the other root when both qualify.
func solveQuadraticInRange(a, b, c, lo, hi float64) (float64, bool) {
	if a == 0 {
		if b == 0 {
			return 0, false
		}
		x := -c / b
		return x, inRange(x, lo, hi)
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	x1 := (-b + sq) / (2 * a)
	x2 := (-b - sq) / (2 * a)

	x1In, x2In := inRange(x1, lo, hi), inRange(x2, lo, hi)
	switch {
	case x1In:
		return x1, true
	case x2In:
		return x2, true
	default:
		return x1, false
	}
}

func inRange(x, lo, hi float64) bool {
	return x >= lo && x <= hi
}
