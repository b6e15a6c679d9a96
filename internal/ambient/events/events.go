// Package events defines the eleven pool-update event kinds emitted by the
// ambient concentrated-liquidity contract, their topic signatures, and the
// decoders that turn a raw chain log into a typed event record.
package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/althea-net/ambient-indexer/internal/abidecode"
)

// RawLog is the subset of an on-chain log this package needs to decode an
// event. It decouples the decoders from go-ethereum's types.Log so they can
// be exercised directly in tests without constructing a full receipt.
type RawLog struct {
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	Index       uint64
}

// FromGethLog adapts a go-ethereum types.Log into a RawLog.
func FromGethLog(l types.Log) RawLog {
	return RawLog{
		Topics:      l.Topics,
		Data:        l.Data,
		BlockNumber: l.BlockNumber,
		Index:       uint64(l.Index),
	}
}

// Topic signatures, hashed the same way go-ethereum's abi.Event.ID computes
// a log's topic0: keccak256 of the canonical Solidity signature string.
var (
	SwapSignature             = topic("Swap(address,address,address,uint256,bool,bool,uint128,uint128,int128,int128)")
	MintRangedSignature       = topic("MintRanged(address,address,address,uint256,uint128,int24,int24,int128,int128)")
	BurnRangedSignature       = topic("BurnRanged(address,address,address,uint256,uint128,int24,int24,int128,int128)")
	HarvestSignature          = topic("Harvest(address,address,address,uint256,int24,int24,int128,int128)")
	MintAmbientSignature      = topic("MintAmbient(address,address,address,uint256,uint128,int128,int128)")
	BurnAmbientSignature      = topic("BurnAmbient(address,address,address,uint256,uint128,int128,int128)")
	MintKnockoutSignature     = topic("MintKnockout(address,address,address,uint256,int128,int128,bool,int24,int24)")
	BurnKnockoutSignature     = topic("BurnKnockout(address,address,address,uint256,int128,int128,bool,int24,int24)")
	WithdrawKnockoutSignature = topic("WithdrawKnockout(address,address,address,uint256,int128,int128,int24,int24,uint128)")
	InitPoolSignature         = topic("InitPool(address,address,uint256,uint128,address,uint128,int128,int128)")
	PoolRevisionSignature     = topic("PoolRevision(address,address,uint256,uint16,uint16,uint8,uint8)")
)

func topic(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// ErrInvalidLog is returned when a log does not carry the expected number
// of indexed topics or its data segment is too short to decode.
type ErrInvalidLog struct {
	Reason string
}

func (e *ErrInvalidLog) Error() string { return "invalid event log: " + e.Reason }

func requireTopics(l RawLog, n int) error {
	if l.BlockNumber == 0 {
		return &ErrInvalidLog{Reason: "missing block number"}
	}
	if len(l.Topics) < n {
		return &ErrInvalidLog{Reason: "too few topics"}
	}
	return nil
}

// InitPoolEvent records the creation of a new pool.
type InitPoolEvent struct {
	BlockHeight uint64
	Base        common.Address
	Quote       common.Address
	PoolIdx     *big.Int
	Creator     common.Address
	Liq         *big.Int
	BaseFlow    *big.Int
	QuoteFlow   *big.Int
}

// DecodeInitPool decodes a single InitPool log.
func DecodeInitPool(l RawLog) (InitPoolEvent, error) {
	if err := requireTopics(l, 4); err != nil {
		return InitPoolEvent{}, err
	}
	base, err := abidecode.Address(l.Topics[1].Bytes(), 0)
	if err != nil {
		return InitPoolEvent{}, fmt.Errorf("invalid base token address: %w", err)
	}
	quote, err := abidecode.Address(l.Topics[2].Bytes(), 0)
	if err != nil {
		return InitPoolEvent{}, fmt.Errorf("invalid quote token address: %w", err)
	}
	poolIdx := new(big.Int).SetBytes(l.Topics[3].Bytes())

	if len(l.Data) < 5*32 {
		return InitPoolEvent{}, &ErrInvalidLog{Reason: "too short for InitPool data"}
	}
	// price occupies the first slot but is not carried on InitPoolEvent;
	// the reducer derives its own price from base/quote flow.
	creator, err := abidecode.Address(l.Data, 32)
	if err != nil {
		return InitPoolEvent{}, fmt.Errorf("bad user address: %w", err)
	}
	liq, err := abidecode.U128(l.Data, 64)
	if err != nil {
		return InitPoolEvent{}, err
	}
	baseFlow, err := abidecode.I128(l.Data, 96)
	if err != nil {
		return InitPoolEvent{}, err
	}
	quoteFlow, err := abidecode.I128(l.Data, 128)
	if err != nil {
		return InitPoolEvent{}, err
	}
	return InitPoolEvent{
		BlockHeight: l.BlockNumber,
		Base:        base,
		Quote:       quote,
		PoolIdx:     poolIdx,
		Creator:     creator,
		Liq:         liq,
		BaseFlow:    baseFlow,
		QuoteFlow:   quoteFlow,
	}, nil
}

// PoolRevisionEvent records a change to a pool's template parameters.
type PoolRevisionEvent struct {
	BlockHeight uint64
	Index       uint64
	Base        common.Address
	Quote       common.Address
	PoolIdx     *big.Int
	FeeRate     uint16
	TickSize    uint16
	JitThresh   uint8
	Knockout    uint8
}

// DecodePoolRevision decodes a single PoolRevision log.
func DecodePoolRevision(l RawLog) (PoolRevisionEvent, error) {
	if err := requireTopics(l, 4); err != nil {
		return PoolRevisionEvent{}, err
	}
	base, err := abidecode.Address(l.Topics[1].Bytes(), 0)
	if err != nil {
		return PoolRevisionEvent{}, fmt.Errorf("invalid base token address: %w", err)
	}
	quote, err := abidecode.Address(l.Topics[2].Bytes(), 0)
	if err != nil {
		return PoolRevisionEvent{}, fmt.Errorf("invalid quote token address: %w", err)
	}
	poolIdx := new(big.Int).SetBytes(l.Topics[3].Bytes())

	if len(l.Data) < 4*32 {
		return PoolRevisionEvent{}, &ErrInvalidLog{Reason: "too short for PoolRevision data"}
	}
	feeRateBig, err := abidecode.U64(l.Data, 0)
	if err != nil {
		return PoolRevisionEvent{}, err
	}
	tickSizeBig, err := abidecode.U64(l.Data, 32)
	if err != nil {
		return PoolRevisionEvent{}, err
	}
	jitThresh, err := abidecode.U64(l.Data, 64)
	if err != nil {
		return PoolRevisionEvent{}, err
	}
	knockout, err := abidecode.U64(l.Data, 96)
	if err != nil {
		return PoolRevisionEvent{}, err
	}
	return PoolRevisionEvent{
		BlockHeight: l.BlockNumber,
		Index:       l.Index,
		Base:        base,
		Quote:       quote,
		PoolIdx:     poolIdx,
		FeeRate:     uint16(feeRateBig),
		TickSize:    uint16(tickSizeBig),
		JitThresh:   uint8(jitThresh),
		Knockout:    uint8(knockout),
	}, nil
}

// SwapEvent records a swap, in the newer is_buy/in_base_qty schema that is
// the contract of record.
type SwapEvent struct {
	BlockHeight uint64
	Index       uint64
	User        common.Address
	Base        common.Address
	Quote       common.Address
	PoolIdx     *big.Int
	IsBuy       bool
	InBaseQty   bool
	Qty         *big.Int
	MinOutput   *big.Int
	BaseFlow    *big.Int
	QuoteFlow   *big.Int
}

// DecodeSwap decodes a single Swap log using the newer schema.
func DecodeSwap(l RawLog) (SwapEvent, error) {
	if err := requireTopics(l, 4); err != nil {
		return SwapEvent{}, err
	}
	user, err := abidecode.Address(l.Topics[1].Bytes(), 0)
	if err != nil {
		return SwapEvent{}, fmt.Errorf("invalid user address: %w", err)
	}
	base, err := abidecode.Address(l.Topics[2].Bytes(), 0)
	if err != nil {
		return SwapEvent{}, fmt.Errorf("invalid base token address: %w", err)
	}
	quote, err := abidecode.Address(l.Topics[3].Bytes(), 0)
	if err != nil {
		return SwapEvent{}, fmt.Errorf("invalid quote token address: %w", err)
	}
	if len(l.Data) < 7*32 {
		return SwapEvent{}, &ErrInvalidLog{Reason: "too short for Swap data"}
	}
	poolIdx, err := abidecode.Uint256(l.Data, 0)
	if err != nil {
		return SwapEvent{}, err
	}
	isBuy, err := abidecode.Bool(l.Data, 32)
	if err != nil {
		return SwapEvent{}, err
	}
	inBaseQty, err := abidecode.Bool(l.Data, 64)
	if err != nil {
		return SwapEvent{}, err
	}
	qty, err := abidecode.U128(l.Data, 96)
	if err != nil {
		return SwapEvent{}, err
	}
	minOutput, err := abidecode.U128(l.Data, 128)
	if err != nil {
		return SwapEvent{}, err
	}
	baseFlow, err := abidecode.I128(l.Data, 160)
	if err != nil {
		return SwapEvent{}, err
	}
	quoteFlow, err := abidecode.I128(l.Data, 192)
	if err != nil {
		return SwapEvent{}, err
	}
	return SwapEvent{
		BlockHeight: l.BlockNumber,
		Index:       l.Index,
		User:        user,
		Base:        base,
		Quote:       quote,
		PoolIdx:     poolIdx,
		IsBuy:       isBuy,
		InBaseQty:   inBaseQty,
		Qty:         qty,
		MinOutput:   minOutput,
		BaseFlow:    baseFlow,
		QuoteFlow:   quoteFlow,
	}, nil
}

// SwapEventLegacy is the older buy/sell/buy_flow/sell_flow swap schema,
// kept only to decode historical logs predating the contract revision that
// introduced the is_buy/in_base_qty schema.
type SwapEventLegacy struct {
	BlockHeight uint64
	User        common.Address
	Buy         common.Address
	Sell        common.Address
	PoolIdx     *big.Int
	Qty         *big.Int
	BuyFlow     *big.Int
	SellFlow    *big.Int
}

// DecodeSwapLegacy decodes a single Swap log using the older schema. Not
// used by the live scanner; nothing in this module calls it apart from its
// own test.
func DecodeSwapLegacy(l RawLog) (SwapEventLegacy, error) {
	if err := requireTopics(l, 4); err != nil {
		return SwapEventLegacy{}, err
	}
	user, err := abidecode.Address(l.Topics[1].Bytes(), 0)
	if err != nil {
		return SwapEventLegacy{}, fmt.Errorf("invalid user address: %w", err)
	}
	buy, err := abidecode.Address(l.Topics[2].Bytes(), 0)
	if err != nil {
		return SwapEventLegacy{}, fmt.Errorf("invalid buy token address: %w", err)
	}
	sell, err := abidecode.Address(l.Topics[3].Bytes(), 0)
	if err != nil {
		return SwapEventLegacy{}, fmt.Errorf("invalid sell token address: %w", err)
	}
	if len(l.Data) < 4*32 {
		return SwapEventLegacy{}, &ErrInvalidLog{Reason: "too short for legacy Swap data"}
	}
	poolIdx, err := abidecode.Uint256(l.Data, 0)
	if err != nil {
		return SwapEventLegacy{}, err
	}
	qty, err := abidecode.U128(l.Data, 32)
	if err != nil {
		return SwapEventLegacy{}, err
	}
	buyFlow, err := abidecode.I128(l.Data, 64)
	if err != nil {
		return SwapEventLegacy{}, err
	}
	sellFlow, err := abidecode.I128(l.Data, 96)
	if err != nil {
		return SwapEventLegacy{}, err
	}
	return SwapEventLegacy{
		BlockHeight: l.BlockNumber,
		User:        user,
		Buy:         buy,
		Sell:        sell,
		PoolIdx:     poolIdx,
		Qty:         qty,
		BuyFlow:     buyFlow,
		SellFlow:    sellFlow,
	}, nil
}

// rangedEventFields holds the fields common to MintRanged, BurnRanged and
// Harvest, which all share the same indexed-topic layout and a prefix of
// the same data fields.
type rangedEventFields struct {
	BlockHeight uint64
	Index       uint64
	User        common.Address
	Base        common.Address
	Quote       common.Address
	PoolIdx     *big.Int
	BidTick     int32
	AskTick     int32
	BaseFlow    *big.Int
	QuoteFlow   *big.Int
}

func decodeRangedTopics(l RawLog) (common.Address, common.Address, common.Address, error) {
	if err := requireTopics(l, 4); err != nil {
		return common.Address{}, common.Address{}, common.Address{}, err
	}
	user, err := abidecode.Address(l.Topics[1].Bytes(), 0)
	if err != nil {
		return common.Address{}, common.Address{}, common.Address{}, fmt.Errorf("invalid user address: %w", err)
	}
	base, err := abidecode.Address(l.Topics[2].Bytes(), 0)
	if err != nil {
		return common.Address{}, common.Address{}, common.Address{}, fmt.Errorf("invalid base token address: %w", err)
	}
	quote, err := abidecode.Address(l.Topics[3].Bytes(), 0)
	if err != nil {
		return common.Address{}, common.Address{}, common.Address{}, fmt.Errorf("invalid quote token address: %w", err)
	}
	return user, base, quote, nil
}

// MintRangedEvent records the creation or growth of a ranged (concentrated)
// liquidity position.
type MintRangedEvent struct {
	rangedEventFields
	Liq *big.Int
}

// DecodeMintRanged decodes a single MintRanged log.
func DecodeMintRanged(l RawLog) (MintRangedEvent, error) {
	user, base, quote, err := decodeRangedTopics(l)
	if err != nil {
		return MintRangedEvent{}, err
	}
	if len(l.Data) < 6*32 {
		return MintRangedEvent{}, &ErrInvalidLog{Reason: "too short for MintRanged data"}
	}
	poolIdx, err := abidecode.Uint256(l.Data, 0)
	if err != nil {
		return MintRangedEvent{}, err
	}
	liq, err := abidecode.U128(l.Data, 32)
	if err != nil {
		return MintRangedEvent{}, err
	}
	bidTick, err := abidecode.I32(l.Data, 64)
	if err != nil {
		return MintRangedEvent{}, err
	}
	askTick, err := abidecode.I32(l.Data, 96)
	if err != nil {
		return MintRangedEvent{}, err
	}
	baseFlow, err := abidecode.I128(l.Data, 128)
	if err != nil {
		return MintRangedEvent{}, err
	}
	quoteFlow, err := abidecode.I128(l.Data, 160)
	if err != nil {
		return MintRangedEvent{}, err
	}
	return MintRangedEvent{
		rangedEventFields: rangedEventFields{
			BlockHeight: l.BlockNumber, Index: l.Index,
			User: user, Base: base, Quote: quote, PoolIdx: poolIdx,
			BidTick: bidTick, AskTick: askTick,
			BaseFlow: baseFlow, QuoteFlow: quoteFlow,
		},
		Liq: liq,
	}, nil
}

// BurnRangedEvent records the removal of a ranged liquidity position.
type BurnRangedEvent struct {
	rangedEventFields
	Liq *big.Int
}

// DecodeBurnRanged decodes a single BurnRanged log.
func DecodeBurnRanged(l RawLog) (BurnRangedEvent, error) {
	e, err := DecodeMintRanged(l)
	if err != nil {
		return BurnRangedEvent{}, err
	}
	return BurnRangedEvent(e), nil
}

// HarvestEvent records a fee harvest against a ranged position, which does
// not change its liquidity.
type HarvestEvent struct {
	rangedEventFields
}

// DecodeHarvest decodes a single Harvest log.
func DecodeHarvest(l RawLog) (HarvestEvent, error) {
	user, base, quote, err := decodeRangedTopics(l)
	if err != nil {
		return HarvestEvent{}, err
	}
	if len(l.Data) < 5*32 {
		return HarvestEvent{}, &ErrInvalidLog{Reason: "too short for Harvest data"}
	}
	poolIdx, err := abidecode.Uint256(l.Data, 0)
	if err != nil {
		return HarvestEvent{}, err
	}
	bidTick, err := abidecode.I32(l.Data, 32)
	if err != nil {
		return HarvestEvent{}, err
	}
	askTick, err := abidecode.I32(l.Data, 64)
	if err != nil {
		return HarvestEvent{}, err
	}
	baseFlow, err := abidecode.I128(l.Data, 96)
	if err != nil {
		return HarvestEvent{}, err
	}
	quoteFlow, err := abidecode.I128(l.Data, 128)
	if err != nil {
		return HarvestEvent{}, err
	}
	return HarvestEvent{rangedEventFields{
		BlockHeight: l.BlockNumber, Index: l.Index,
		User: user, Base: base, Quote: quote, PoolIdx: poolIdx,
		BidTick: bidTick, AskTick: askTick,
		BaseFlow: baseFlow, QuoteFlow: quoteFlow,
	}}, nil
}

// ambientEventFields holds the fields common to MintAmbient and BurnAmbient.
type ambientEventFields struct {
	BlockHeight uint64
	Index       uint64
	User        common.Address
	Base        common.Address
	Quote       common.Address
	PoolIdx     *big.Int
	Liq         *big.Int
	BaseFlow    *big.Int
	QuoteFlow   *big.Int
}

func decodeAmbientLiq(l RawLog) (ambientEventFields, error) {
	user, base, quote, err := decodeRangedTopics(l)
	if err != nil {
		return ambientEventFields{}, err
	}
	if len(l.Data) < 4*32 {
		return ambientEventFields{}, &ErrInvalidLog{Reason: "too short for ambient liq data"}
	}
	poolIdx, err := abidecode.Uint256(l.Data, 0)
	if err != nil {
		return ambientEventFields{}, err
	}
	liq, err := abidecode.U128(l.Data, 32)
	if err != nil {
		return ambientEventFields{}, err
	}
	baseFlow, err := abidecode.I128(l.Data, 64)
	if err != nil {
		return ambientEventFields{}, err
	}
	quoteFlow, err := abidecode.I128(l.Data, 96)
	if err != nil {
		return ambientEventFields{}, err
	}
	return ambientEventFields{
		BlockHeight: l.BlockNumber, Index: l.Index,
		User: user, Base: base, Quote: quote, PoolIdx: poolIdx,
		Liq: liq, BaseFlow: baseFlow, QuoteFlow: quoteFlow,
	}, nil
}

// MintAmbientEvent records the creation or growth of an ambient (full
// range) liquidity position.
type MintAmbientEvent struct{ ambientEventFields }

// DecodeMintAmbient decodes a single MintAmbient log.
func DecodeMintAmbient(l RawLog) (MintAmbientEvent, error) {
	f, err := decodeAmbientLiq(l)
	if err != nil {
		return MintAmbientEvent{}, err
	}
	return MintAmbientEvent{f}, nil
}

// BurnAmbientEvent records the removal of an ambient liquidity position.
type BurnAmbientEvent struct{ ambientEventFields }

// DecodeBurnAmbient decodes a single BurnAmbient log.
func DecodeBurnAmbient(l RawLog) (BurnAmbientEvent, error) {
	f, err := decodeAmbientLiq(l)
	if err != nil {
		return BurnAmbientEvent{}, err
	}
	return BurnAmbientEvent{f}, nil
}

// knockoutEventFields holds fields common to the three knockout events.
type knockoutEventFields struct {
	BlockHeight uint64
	User        common.Address
	Base        common.Address
	Quote       common.Address
	PoolIdx     *big.Int
	BaseFlow    *big.Int
	QuoteFlow   *big.Int
	IsBid       bool
	LowerTick   int32
	UpperTick   int32
}

func decodeKnockoutTopics(l RawLog) (common.Address, common.Address, common.Address, error) {
	return decodeRangedTopics(l)
}

// MintKnockoutEvent records the creation of a one-sided knockout position.
type MintKnockoutEvent struct{ knockoutEventFields }

// DecodeMintKnockout decodes a single MintKnockout log.
func DecodeMintKnockout(l RawLog) (MintKnockoutEvent, error) {
	user, base, quote, err := decodeKnockoutTopics(l)
	if err != nil {
		return MintKnockoutEvent{}, err
	}
	if len(l.Data) < 6*32 {
		return MintKnockoutEvent{}, &ErrInvalidLog{Reason: "too short for MintKnockout data"}
	}
	poolIdx, err := abidecode.Uint256(l.Data, 0)
	if err != nil {
		return MintKnockoutEvent{}, err
	}
	baseFlow, err := abidecode.I128(l.Data, 32)
	if err != nil {
		return MintKnockoutEvent{}, err
	}
	quoteFlow, err := abidecode.I128(l.Data, 64)
	if err != nil {
		return MintKnockoutEvent{}, err
	}
	isBid, err := abidecode.Bool(l.Data, 96)
	if err != nil {
		return MintKnockoutEvent{}, err
	}
	lowerTick, err := abidecode.I32(l.Data, 128)
	if err != nil {
		return MintKnockoutEvent{}, err
	}
	upperTick, err := abidecode.I32(l.Data, 160)
	if err != nil {
		return MintKnockoutEvent{}, err
	}
	return MintKnockoutEvent{knockoutEventFields{
		BlockHeight: l.BlockNumber, User: user, Base: base, Quote: quote,
		PoolIdx: poolIdx, BaseFlow: baseFlow, QuoteFlow: quoteFlow,
		IsBid: isBid, LowerTick: lowerTick, UpperTick: upperTick,
	}}, nil
}

// BurnKnockoutEvent records the removal of an in-progress knockout position.
//
// The direction (IsBid) is not present in the upstream contract's
// BurnKnockout event, but the reducer needs it to find the matching
// knockout bump; it is decoded here from an extra data slot the original
// source's reducer assumed but its event decoder never read.
type BurnKnockoutEvent struct{ knockoutEventFields }

// DecodeBurnKnockout decodes a single BurnKnockout log.
func DecodeBurnKnockout(l RawLog) (BurnKnockoutEvent, error) {
	e, err := DecodeMintKnockout(l)
	if err != nil {
		return BurnKnockoutEvent{}, err
	}
	return BurnKnockoutEvent(e), nil
}

// WithdrawKnockoutEvent records the claim or recovery of a completed
// knockout position.
type WithdrawKnockoutEvent struct {
	knockoutEventFields
	FeeRewards *big.Int
}

// DecodeWithdrawKnockout decodes a single WithdrawKnockout log.
func DecodeWithdrawKnockout(l RawLog) (WithdrawKnockoutEvent, error) {
	user, base, quote, err := decodeKnockoutTopics(l)
	if err != nil {
		return WithdrawKnockoutEvent{}, err
	}
	if len(l.Data) < 6*32 {
		return WithdrawKnockoutEvent{}, &ErrInvalidLog{Reason: "too short for WithdrawKnockout data"}
	}
	poolIdx, err := abidecode.Uint256(l.Data, 0)
	if err != nil {
		return WithdrawKnockoutEvent{}, err
	}
	baseFlow, err := abidecode.I128(l.Data, 32)
	if err != nil {
		return WithdrawKnockoutEvent{}, err
	}
	quoteFlow, err := abidecode.I128(l.Data, 64)
	if err != nil {
		return WithdrawKnockoutEvent{}, err
	}
	lowerTick, err := abidecode.I32(l.Data, 96)
	if err != nil {
		return WithdrawKnockoutEvent{}, err
	}
	upperTick, err := abidecode.I32(l.Data, 128)
	if err != nil {
		return WithdrawKnockoutEvent{}, err
	}
	feeRewards, err := abidecode.U128(l.Data, 160)
	if err != nil {
		return WithdrawKnockoutEvent{}, err
	}
	return WithdrawKnockoutEvent{
		knockoutEventFields: knockoutEventFields{
			BlockHeight: l.BlockNumber, User: user, Base: base, Quote: quote,
			PoolIdx: poolIdx, BaseFlow: baseFlow, QuoteFlow: quoteFlow,
			LowerTick: lowerTick, UpperTick: upperTick,
		},
		FeeRewards: feeRewards,
	}, nil
}
