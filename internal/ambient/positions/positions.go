// Package positions reconstructs currently-open mint/burn positions from a
// user's (or a user-pool's) ordered event history. It is a pure folding
// operation over already-decoded events; it does not touch storage itself.
package positions

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/althea-net/ambient-indexer/internal/ambient/events"
)

// Ranged is a reconstructed open concentrated-liquidity position.
type Ranged struct {
	StartBlock uint64
	User       common.Address
	Base       common.Address
	Quote      common.Address
	PoolIdx    *big.Int
	BidTick    int32
	AskTick    int32
	Liq        *big.Int
	BaseFlow   *big.Int
	QuoteFlow  *big.Int
}

// Ambient is a reconstructed open ambient (full-range) liquidity position.
type Ambient struct {
	StartBlock uint64
	User       common.Address
	Base       common.Address
	Quote      common.Address
	PoolIdx    *big.Int
	Liq        *big.Int
	BaseFlow   *big.Int
	QuoteFlow  *big.Int
}

// UnmatchedBurn reports a burn event with no corresponding open position,
// logged and ignored by the caller rather than treated as fatal.
type UnmatchedBurn struct {
	Kind  string
	Block uint64
}

func rangedKey(base, quote common.Address, poolIdx *big.Int, bid, ask int32) [3]string {
	return [3]string{base.Hex() + "_" + quote.Hex() + "_" + poolIdx.String(), itoa32(bid), itoa32(ask)}
}

func itoa32(v int32) string {
	return big.NewInt(int64(v)).String()
}

// CombineRanged folds ordered MintRanged/BurnRanged events (sorted by
// block ascending) into the set of currently-open ranged positions, per
// §4.7: a mint merges into an existing position when (base, quote,
// pool_idx, bid_tick, ask_tick) match and the position's start block is at
// or before the mint's block; matching mints accumulate flows/liq and the
// position's start block is overwritten with the most recent merged mint's
// block. A burn removes the first matching open position; unmatched burns
// are reported, not treated as errors.
func CombineRanged(mints []events.MintRangedEvent, burns []events.BurnRangedEvent) ([]Ranged, []UnmatchedBurn) {
	type timestamped struct {
		block uint64
		index uint64
		isMint bool
		mint  events.MintRangedEvent
		burn  events.BurnRangedEvent
	}
	all := make([]timestamped, 0, len(mints)+len(burns))
	for _, m := range mints {
		all = append(all, timestamped{block: m.BlockHeight, index: m.Index, isMint: true, mint: m})
	}
	for _, b := range burns {
		all = append(all, timestamped{block: b.BlockHeight, index: b.Index, isMint: false, burn: b})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].block != all[j].block {
			return all[i].block < all[j].block
		}
		return all[i].index < all[j].index
	})

	open := make(map[[3]string][]*Ranged)
	var unmatched []UnmatchedBurn

	for _, t := range all {
		if t.isMint {
			m := t.mint
			key := rangedKey(m.Base, m.Quote, m.PoolIdx, m.BidTick, m.AskTick)
			matched := false
			for _, pos := range open[key] {
				if pos.StartBlock <= m.BlockHeight {
					pos.BaseFlow.Add(pos.BaseFlow, m.BaseFlow)
					pos.QuoteFlow.Add(pos.QuoteFlow, m.QuoteFlow)
					pos.Liq.Add(pos.Liq, m.Liq)
					pos.StartBlock = m.BlockHeight
					matched = true
					break
				}
			}
			if !matched {
				open[key] = append(open[key], &Ranged{
					StartBlock: m.BlockHeight, User: m.User, Base: m.Base, Quote: m.Quote,
					PoolIdx: m.PoolIdx, BidTick: m.BidTick, AskTick: m.AskTick,
					Liq: new(big.Int).Set(m.Liq), BaseFlow: new(big.Int).Set(m.BaseFlow),
					QuoteFlow: new(big.Int).Set(m.QuoteFlow),
				})
			}
			continue
		}

		b := t.burn
		key := rangedKey(b.Base, b.Quote, b.PoolIdx, b.BidTick, b.AskTick)
		positions := open[key]
		removed := false
		for i, pos := range positions {
			if pos.StartBlock <= b.BlockHeight {
				open[key] = append(positions[:i], positions[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			unmatched = append(unmatched, UnmatchedBurn{Kind: "BurnRanged", Block: b.BlockHeight})
		}
	}

	var out []Ranged
	for _, positions := range open {
		for _, p := range positions {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartBlock < out[j].StartBlock })
	return out, unmatched
}

func ambientKey(base, quote common.Address, poolIdx *big.Int) [3]string {
	return [3]string{base.Hex(), quote.Hex(), poolIdx.String()}
}

// CombineAmbient is CombineRanged's ambient counterpart: positions match on
// (base, quote, pool_idx) only.
func CombineAmbient(mints []events.MintAmbientEvent, burns []events.BurnAmbientEvent) ([]Ambient, []UnmatchedBurn) {
	type timestamped struct {
		block  uint64
		index  uint64
		isMint bool
		mint   events.MintAmbientEvent
		burn   events.BurnAmbientEvent
	}
	all := make([]timestamped, 0, len(mints)+len(burns))
	for _, m := range mints {
		all = append(all, timestamped{block: m.BlockHeight, index: m.Index, isMint: true, mint: m})
	}
	for _, b := range burns {
		all = append(all, timestamped{block: b.BlockHeight, index: b.Index, isMint: false, burn: b})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].block != all[j].block {
			return all[i].block < all[j].block
		}
		return all[i].index < all[j].index
	})

	open := make(map[[3]string][]*Ambient)
	var unmatched []UnmatchedBurn

	for _, t := range all {
		if t.isMint {
			m := t.mint
			key := ambientKey(m.Base, m.Quote, m.PoolIdx)
			matched := false
			for _, pos := range open[key] {
				if pos.StartBlock <= m.BlockHeight {
					pos.BaseFlow.Add(pos.BaseFlow, m.BaseFlow)
					pos.QuoteFlow.Add(pos.QuoteFlow, m.QuoteFlow)
					pos.Liq.Add(pos.Liq, m.Liq)
					pos.StartBlock = m.BlockHeight
					matched = true
					break
				}
			}
			if !matched {
				open[key] = append(open[key], &Ambient{
					StartBlock: m.BlockHeight, User: m.User, Base: m.Base, Quote: m.Quote,
					PoolIdx: m.PoolIdx, Liq: new(big.Int).Set(m.Liq),
					BaseFlow: new(big.Int).Set(m.BaseFlow), QuoteFlow: new(big.Int).Set(m.QuoteFlow),
				})
			}
			continue
		}

		b := t.burn
		key := ambientKey(b.Base, b.Quote, b.PoolIdx)
		positions := open[key]
		removed := false
		for i, pos := range positions {
			if pos.StartBlock <= b.BlockHeight {
				open[key] = append(positions[:i], positions[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			unmatched = append(unmatched, UnmatchedBurn{Kind: "BurnAmbient", Block: b.BlockHeight})
		}
	}

	var out []Ambient
	for _, positions := range open {
		for _, p := range positions {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartBlock < out[j].StartBlock })
	return out, unmatched
}
