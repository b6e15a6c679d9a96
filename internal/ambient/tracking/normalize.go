package tracking

import (
	"math"
	"math/big"

	"github.com/althea-net/ambient-indexer/internal/ambient/events"
	"github.com/althea-net/ambient-indexer/internal/ambient/pool"
)

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	out, _ := f.Float64()
	return out
}

func absBig(v *big.Int) *big.Int {
	return new(big.Int).Abs(v)
}

// fullLiqImpact computes sqrt(|baseFlow * quoteFlow|), the geometric-mean
// magnitude the original source uses to split a combined principal+fee
// flow into its liquidity and reward components.
func fullLiqImpact(baseFlow, quoteFlow *big.Int) float64 {
	b, q := math.Abs(bigToFloat(baseFlow)), math.Abs(bigToFloat(quoteFlow))
	return math.Sqrt(b * q)
}

// FromInitPool converts an InitPool event into a PoolUpdateEvent.
func FromInitPool(e events.InitPoolEvent) PoolUpdateEvent {
	return PoolUpdateEvent{
		Block: e.BlockHeight, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: e.BaseFlow, QuoteFlow: e.QuoteFlow,
		AmbientLiq: e.Liq, ConcLiq: big.NewInt(0),
		Price:         rootPriceFromReserves(bigToFloat(e.BaseFlow), bigToFloat(e.QuoteFlow)),
		IsLiq:         true,
		FlowsAtMarket: true,
	}
}

// FromPoolRevision converts a PoolRevision event into a PoolUpdateEvent.
func FromPoolRevision(e events.PoolRevisionEvent) PoolUpdateEvent {
	return PoolUpdateEvent{
		Block: e.BlockHeight, Index: e.Index, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: big.NewInt(0), QuoteFlow: big.NewInt(0),
		AmbientLiq: big.NewInt(0), ConcLiq: big.NewInt(0),
		FeeRate: float64(e.FeeRate) / 1_000_000,
	}
}

// FromMintRanged converts a MintRanged event into a PoolUpdateEvent.
func FromMintRanged(e events.MintRangedEvent) PoolUpdateEvent {
	bid, ask := e.BidTick, e.AskTick
	return PoolUpdateEvent{
		Block: e.BlockHeight, Index: e.Index, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: e.BaseFlow, QuoteFlow: e.QuoteFlow,
		AmbientLiq: big.NewInt(0), ConcLiq: e.Liq,
		BidTick: &bid, AskTick: &ask,
		IsLiq: true, IsMint: true, FlowsAtMarket: true,
		IsTickSkewed: bid != ask,
	}
}

// FromBurnRanged converts a BurnRanged event into a PoolUpdateEvent.
//
// Liquidity withdrawn from a ranged position carries both the principal
// (conc liquidity, event.Liq) and any fees collected at burn time, folded
// into the same signed flows. The excess of the geometric-mean flow
// magnitude over the reported liq is treated as the fee-reward component
// subtracted from ambient liquidity, mirroring the split the upstream
// reducer performs.
func FromBurnRanged(e events.BurnRangedEvent) PoolUpdateEvent {
	bid, ask := e.BidTick, e.AskTick
	impact := fullLiqImpact(e.BaseFlow, e.QuoteFlow)
	liq := bigToFloat(e.Liq)
	rewards := impact - liq
	if rewards < 0 {
		rewards = 0
	}
	return PoolUpdateEvent{
		Block: e.BlockHeight, Index: e.Index, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: new(big.Int).Neg(absBig(e.BaseFlow)), QuoteFlow: new(big.Int).Neg(absBig(e.QuoteFlow)),
		AmbientLiq: bigFromFloat(-rewards), ConcLiq: new(big.Int).Neg(e.Liq),
		BidTick: &bid, AskTick: &ask,
		IsLiq: true, IsBurn: true, FlowsAtMarket: true,
		IsTickSkewed: bid != ask,
	}
}

// FromHarvest converts a Harvest event into a PoolUpdateEvent. A harvest
// touches no principal; its entire flow magnitude is treated as the
// fee-reward component subtracted from ambient liquidity.
func FromHarvest(e events.HarvestEvent) PoolUpdateEvent {
	bid, ask := e.BidTick, e.AskTick
	rewards := fullLiqImpact(e.BaseFlow, e.QuoteFlow)
	return PoolUpdateEvent{
		Block: e.BlockHeight, Index: e.Index, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: e.BaseFlow, QuoteFlow: e.QuoteFlow,
		AmbientLiq: bigFromFloat(-rewards), ConcLiq: big.NewInt(0),
		BidTick: &bid, AskTick: &ask,
		IsHarvest: true, FlowsAtMarket: true,
	}
}

// FromMintAmbient converts a MintAmbient event into a PoolUpdateEvent.
func FromMintAmbient(e events.MintAmbientEvent) PoolUpdateEvent {
	return PoolUpdateEvent{
		Block: e.BlockHeight, Index: e.Index, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: e.BaseFlow, QuoteFlow: e.QuoteFlow,
		AmbientLiq: e.Liq, ConcLiq: big.NewInt(0),
		IsLiq: true, IsMint: true, FlowsAtMarket: true,
	}
}

// FromBurnAmbient converts a BurnAmbient event into a PoolUpdateEvent.
func FromBurnAmbient(e events.BurnAmbientEvent) PoolUpdateEvent {
	return PoolUpdateEvent{
		Block: e.BlockHeight, Index: e.Index, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: new(big.Int).Neg(absBig(e.BaseFlow)), QuoteFlow: new(big.Int).Neg(absBig(e.QuoteFlow)),
		AmbientLiq: new(big.Int).Neg(e.Liq), ConcLiq: big.NewInt(0),
		IsLiq: true, IsBurn: true, FlowsAtMarket: true,
	}
}

// FromSwap converts a Swap event (current schema) into a PoolUpdateEvent.
func FromSwap(e events.SwapEvent) PoolUpdateEvent {
	return PoolUpdateEvent{
		Block: e.BlockHeight, Index: e.Index, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: e.BaseFlow, QuoteFlow: e.QuoteFlow,
		AmbientLiq: big.NewInt(0), ConcLiq: big.NewInt(0),
		IsSwap: true, IsBuy: e.IsBuy, InBaseQty: e.InBaseQty, FlowsAtMarket: true,
	}
}

// FromSwapLegacy converts an older-schema Swap event into a PoolUpdateEvent,
// resolving the pool's canonical (base, quote) ordering from the buy/sell
// token pair the way the legacy reducer did.
func FromSwapLegacy(e events.SwapEventLegacy) PoolUpdateEvent {
	base, quote, _ := pool.Canonicalize(e.Buy, e.Sell)
	isBuy := base == e.Sell

	baseFlow, quoteFlow := e.BuyFlow, e.SellFlow
	if base != e.Buy {
		baseFlow, quoteFlow = e.SellFlow, e.BuyFlow
	}
	return PoolUpdateEvent{
		Block: e.BlockHeight, Base: base, Quote: quote, PoolIdx: e.PoolIdx,
		BaseFlow: baseFlow, QuoteFlow: quoteFlow,
		AmbientLiq: big.NewInt(0), ConcLiq: big.NewInt(0),
		IsSwap: true, IsBuy: isBuy, InBaseQty: true, FlowsAtMarket: true,
	}
}

// FromMintKnockout converts a MintKnockout event into a PoolUpdateEvent,
// deriving the implied concentrated liquidity per the §4.5 quadratic solve.
func FromMintKnockout(e events.MintKnockoutEvent) PoolUpdateEvent {
	lower, upper := e.LowerTick, e.UpperTick
	baseMag, quoteMag := math.Abs(bigToFloat(e.BaseFlow)), math.Abs(bigToFloat(e.QuoteFlow))
	conc := concLiqFromKnockoutFlows(baseMag, quoteMag, lower, upper)
	return PoolUpdateEvent{
		Block: e.BlockHeight, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: e.BaseFlow, QuoteFlow: e.QuoteFlow,
		AmbientLiq: big.NewInt(0), ConcLiq: bigFromFloat(conc),
		BidTick: &lower, AskTick: &upper,
		IsLiq: true, IsMint: true, IsKnockout: true, IsBid: e.IsBid,
		IsTickSkewed: true, FlowsAtMarket: true,
	}
}

// FromBurnKnockout converts a BurnKnockout event into a PoolUpdateEvent.
//
// The upstream contract's BurnKnockout log carries no independent fee
// quantity (unlike WithdrawKnockout, which does), so the fee-reward term
// in the §4.5 table is treated as zero here: the conc liquidity recovered
// is the full geometric-mean impact of the flows.
func FromBurnKnockout(e events.BurnKnockoutEvent) PoolUpdateEvent {
	lower, upper := e.LowerTick, e.UpperTick
	impact := fullLiqImpact(e.BaseFlow, e.QuoteFlow)
	return PoolUpdateEvent{
		Block: e.BlockHeight, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: e.BaseFlow, QuoteFlow: e.QuoteFlow,
		AmbientLiq: big.NewInt(0), ConcLiq: bigFromFloat(impact),
		BidTick: &lower, AskTick: &upper,
		IsLiq: true, IsBurn: true, IsKnockout: true, IsBid: e.IsBid,
		IsTickSkewed: true, FlowsAtMarket: true,
	}
}

// FromWithdrawKnockout converts a WithdrawKnockout event into a
// PoolUpdateEvent. Only the fee-reward component affects liquidity here:
// the position's principal liquidity impact already happened at
// pivot-crossing time, not at withdrawal.
func FromWithdrawKnockout(e events.WithdrawKnockoutEvent) PoolUpdateEvent {
	lower, upper := e.LowerTick, e.UpperTick
	rewards := math.Sqrt(math.Abs(bigToFloat(e.FeeRewards)))
	return PoolUpdateEvent{
		Block: e.BlockHeight, Base: e.Base, Quote: e.Quote, PoolIdx: e.PoolIdx,
		BaseFlow: e.BaseFlow, QuoteFlow: e.QuoteFlow,
		AmbientLiq: bigFromFloat(-rewards), ConcLiq: big.NewInt(0),
		BidTick: &lower, AskTick: &upper,
		IsLiq: true, IsKnockout: true, IsBid: e.IsBid, IsTickSkewed: true,
	}
}

// bigFromFloat truncates a float liquidity delta into a *big.Int, rounding
// toward zero. Liquidity deltas accumulated in float space are re-widened
// here only at the point they're folded into TrackedPool's unsigned
// liquidity counters.
func bigFromFloat(f float64) *big.Int {
	bf := big.NewFloat(f)
	i, _ := bf.Int(nil)
	return i
}
