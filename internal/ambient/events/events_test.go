package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrTopic(a common.Address) common.Hash {
	var h common.Hash
	copy(h[12:], a.Bytes())
	return h
}

func u256Topic(v int64) common.Hash {
	var h common.Hash
	b := big.NewInt(v).Bytes()
	copy(h[32-len(b):], b)
	return h
}

func slot32(fill func([]byte)) []byte {
	b := make([]byte, 32)
	fill(b)
	return b
}

func TestDecodeInitPool(t *testing.T) {
	base := common.HexToAddress("0x1111111111111111111111111111111111111a")
	quote := common.HexToAddress("0x2222222222222222222222222222222222222b")
	user := common.HexToAddress("0x3333333333333333333333333333333333333c")

	data := make([]byte, 0, 5*32)
	data = append(data, slot32(func(b []byte) { b[31] = 1 })...)          // price (unused)
	data = append(data, slot32(func(b []byte) { copy(b[12:], user[:]) })...) // user
	data = append(data, slot32(func(b []byte) { b[31] = 50 })...)         // liq
	data = append(data, slot32(func(b []byte) { b[31] = 10 })...)         // baseFlow
	data = append(data, slot32(func(b []byte) { b[31] = 20 })...)         // quoteFlow

	l := RawLog{
		Topics: []common.Hash{InitPoolSignature, addrTopic(base), addrTopic(quote), u256Topic(7)},
		Data:   data, BlockNumber: 100,
	}
	ev, err := DecodeInitPool(l)
	require.NoError(t, err)
	assert.Equal(t, base, ev.Base)
	assert.Equal(t, quote, ev.Quote)
	assert.Equal(t, big.NewInt(7), ev.PoolIdx)
	assert.Equal(t, user, ev.Creator)
	assert.Equal(t, big.NewInt(50), ev.Liq)
	assert.Equal(t, big.NewInt(10), ev.BaseFlow)
	assert.Equal(t, big.NewInt(20), ev.QuoteFlow)
}

func TestDecodeInitPoolShortData(t *testing.T) {
	base := common.HexToAddress("0x1111111111111111111111111111111111111a")
	l := RawLog{
		Topics:      []common.Hash{InitPoolSignature, addrTopic(base), addrTopic(base), u256Topic(1)},
		Data:        make([]byte, 32),
		BlockNumber: 1,
	}
	_, err := DecodeInitPool(l)
	require.Error(t, err)
}

func TestDecodeSwap(t *testing.T) {
	user := common.HexToAddress("0x1111111111111111111111111111111111111a")
	base := common.HexToAddress("0x2222222222222222222222222222222222222b")
	quote := common.HexToAddress("0x3333333333333333333333333333333333333c")

	data := make([]byte, 0, 7*32)
	data = append(data, slot32(func(b []byte) { b[31] = 3 })...) // poolIdx
	data = append(data, slot32(func(b []byte) { b[31] = 1 })...) // isBuy = true
	data = append(data, slot32(func(b []byte) { b[31] = 0 })...) // inBaseQty = false
	data = append(data, slot32(func(b []byte) { b[31] = 9 })...) // qty
	data = append(data, slot32(func(b []byte) { b[31] = 8 })...) // minOutput
	data = append(data, slot32(func(b []byte) { b[31] = 4 })...) // baseFlow
	data = append(data, slot32(func(b []byte) {
		for i := 16; i < 32; i++ {
			b[i] = 0xFF
		}
	})...) // quoteFlow = -1

	l := RawLog{
		Topics: []common.Hash{SwapSignature, addrTopic(user), addrTopic(base), addrTopic(quote)},
		Data:   data, BlockNumber: 1,
	}
	ev, err := DecodeSwap(l)
	require.NoError(t, err)
	assert.True(t, ev.IsBuy)
	assert.False(t, ev.InBaseQty)
	assert.Equal(t, big.NewInt(9), ev.Qty)
	assert.Equal(t, big.NewInt(4), ev.BaseFlow)
	assert.Equal(t, big.NewInt(-1), ev.QuoteFlow)
}

func TestDecodeSwapLegacy(t *testing.T) {
	user := common.HexToAddress("0x1111111111111111111111111111111111111a")
	buy := common.HexToAddress("0x2222222222222222222222222222222222222b")
	sell := common.HexToAddress("0x3333333333333333333333333333333333333c")

	data := make([]byte, 0, 4*32)
	data = append(data, slot32(func(b []byte) { b[31] = 1 })...)
	data = append(data, slot32(func(b []byte) { b[31] = 100 })...)
	data = append(data, slot32(func(b []byte) { b[31] = 50 })...)
	data = append(data, slot32(func(b []byte) {
		for i := 16; i < 32; i++ {
			b[i] = 0xFF
		}
	})...)

	l := RawLog{
		Topics: []common.Hash{u256Topic(0), addrTopic(user), addrTopic(buy), addrTopic(sell)},
		Data:   data, BlockNumber: 1,
	}
	ev, err := DecodeSwapLegacy(l)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), ev.Qty)
	assert.Equal(t, big.NewInt(50), ev.BuyFlow)
	assert.Equal(t, big.NewInt(-1), ev.SellFlow)
}

func TestDecodeMintAndBurnRanged(t *testing.T) {
	user := common.HexToAddress("0x1111111111111111111111111111111111111a")
	base := common.HexToAddress("0x2222222222222222222222222222222222222b")
	quote := common.HexToAddress("0x3333333333333333333333333333333333333c")

	data := make([]byte, 0, 6*32)
	data = append(data, slot32(func(b []byte) { b[31] = 1 })...)  // poolIdx
	data = append(data, slot32(func(b []byte) { b[31] = 77 })...) // liq
	data = append(data, slot32(func(b []byte) {
		for i := 28; i < 32; i++ {
			b[i] = 0xFF
		}
	})...) // bidTick = -1
	data = append(data, slot32(func(b []byte) { b[31] = 5 })...) // askTick = 5
	data = append(data, slot32(func(b []byte) { b[31] = 3 })...) // baseFlow
	data = append(data, slot32(func(b []byte) { b[31] = 9 })...) // quoteFlow

	l := RawLog{
		Topics: []common.Hash{MintRangedSignature, addrTopic(user), addrTopic(base), addrTopic(quote)},
		Data:   data, BlockNumber: 1,
	}
	mint, err := DecodeMintRanged(l)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), mint.BidTick)
	assert.Equal(t, int32(5), mint.AskTick)
	assert.Equal(t, big.NewInt(77), mint.Liq)

	burn, err := DecodeBurnRanged(l)
	require.NoError(t, err)
	assert.Equal(t, mint.PoolIdx, burn.PoolIdx)
	assert.Equal(t, mint.Liq, burn.Liq)
}

func TestDecodeHarvest(t *testing.T) {
	user := common.HexToAddress("0x1111111111111111111111111111111111111a")
	base := common.HexToAddress("0x2222222222222222222222222222222222222b")
	quote := common.HexToAddress("0x3333333333333333333333333333333333333c")

	data := make([]byte, 0, 4*32)
	data = append(data, slot32(func(b []byte) { b[31] = 1 })...)
	data = append(data, slot32(func(b []byte) { b[31] = 2 })...)
	data = append(data, slot32(func(b []byte) { b[31] = 6 })...)
	data = append(data, slot32(func(b []byte) { b[31] = 1 })...)
	data = append(data, slot32(func(b []byte) { b[31] = 2 })...)

	l := RawLog{
		Topics: []common.Hash{HarvestSignature, addrTopic(user), addrTopic(base), addrTopic(quote)},
		Data:   data, BlockNumber: 1,
	}
	ev, err := DecodeHarvest(l)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ev.BidTick)
	assert.Equal(t, int32(6), ev.AskTick)
}

func TestDecodeMintAndBurnAmbient(t *testing.T) {
	user := common.HexToAddress("0x1111111111111111111111111111111111111a")
	base := common.HexToAddress("0x2222222222222222222222222222222222222b")
	quote := common.HexToAddress("0x3333333333333333333333333333333333333c")

	data := make([]byte, 0, 4*32)
	data = append(data, slot32(func(b []byte) { b[31] = 9 })...)
	data = append(data, slot32(func(b []byte) { b[31] = 40 })...)
	data = append(data, slot32(func(b []byte) { b[31] = 1 })...)
	data = append(data, slot32(func(b []byte) { b[31] = 2 })...)

	l := RawLog{
		Topics: []common.Hash{MintAmbientSignature, addrTopic(user), addrTopic(base), addrTopic(quote)},
		Data:   data, BlockNumber: 1,
	}
	mint, err := DecodeMintAmbient(l)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), mint.Liq)

	burn, err := DecodeBurnAmbient(l)
	require.NoError(t, err)
	assert.Equal(t, mint.Liq, burn.Liq)
}

func TestDecodeKnockoutEvents(t *testing.T) {
	user := common.HexToAddress("0x1111111111111111111111111111111111111a")
	base := common.HexToAddress("0x2222222222222222222222222222222222222b")
	quote := common.HexToAddress("0x3333333333333333333333333333333333333c")

	mintData := make([]byte, 0, 6*32)
	mintData = append(mintData, slot32(func(b []byte) { b[31] = 4 })...) // poolIdx
	mintData = append(mintData, slot32(func(b []byte) { b[31] = 10 })...) // baseFlow
	mintData = append(mintData, slot32(func(b []byte) { b[31] = 20 })...) // quoteFlow
	mintData = append(mintData, slot32(func(b []byte) { b[31] = 1 })...)  // isBid
	mintData = append(mintData, slot32(func(b []byte) { b[31] = 100 })...)
	mintData = append(mintData, slot32(func(b []byte) { b[31] = 200 })...)

	l := RawLog{
		Topics: []common.Hash{MintKnockoutSignature, addrTopic(user), addrTopic(base), addrTopic(quote)},
		Data:   mintData, BlockNumber: 1,
	}
	mint, err := DecodeMintKnockout(l)
	require.NoError(t, err)
	assert.True(t, mint.IsBid)
	assert.Equal(t, int32(100), mint.LowerTick)
	assert.Equal(t, int32(200), mint.UpperTick)

	burn, err := DecodeBurnKnockout(l)
	require.NoError(t, err)
	assert.Equal(t, mint.IsBid, burn.IsBid)

	withdrawData := make([]byte, 0, 5*32)
	withdrawData = append(withdrawData, slot32(func(b []byte) { b[31] = 4 })...)
	withdrawData = append(withdrawData, slot32(func(b []byte) { b[31] = 1 })...)
	withdrawData = append(withdrawData, slot32(func(b []byte) { b[31] = 2 })...)
	withdrawData = append(withdrawData, slot32(func(b []byte) { b[31] = 100 })...)
	withdrawData = append(withdrawData, slot32(func(b []byte) { b[31] = 200 })...)
	withdrawData = append(withdrawData, slot32(func(b []byte) { b[31] = 77 })...)

	wl := RawLog{
		Topics: []common.Hash{WithdrawKnockoutSignature, addrTopic(user), addrTopic(base), addrTopic(quote)},
		Data:   withdrawData, BlockNumber: 1,
	}
	wd, err := DecodeWithdrawKnockout(wl)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(77), wd.FeeRewards)
}

func TestRequireTopics(t *testing.T) {
	_, err := DecodeInitPool(RawLog{Topics: []common.Hash{InitPoolSignature}, BlockNumber: 1})
	require.Error(t, err)
}

func TestDecodeRejectsMissingBlockNumber(t *testing.T) {
	base := common.HexToAddress("0x1111111111111111111111111111111111111a")
	quote := common.HexToAddress("0x2222222222222222222222222222222222222b")

	l := RawLog{
		Topics:      []common.Hash{InitPoolSignature, addrTopic(base), addrTopic(quote), u256Topic(7)},
		Data:        make([]byte, 5*32),
		BlockNumber: 0,
	}
	_, err := DecodeInitPool(l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing block number")
}
