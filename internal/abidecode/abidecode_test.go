package abidecode

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBool(t *testing.T) {
	data := make([]byte, 32)
	v, err := Bool(data, 0)
	require.NoError(t, err)
	assert.False(t, v)

	data[31] = 1
	v, err = Bool(data, 0)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestAddress(t *testing.T) {
	data := make([]byte, 32)
	for i := 12; i < 32; i++ {
		data[i] = byte(i)
	}
	addr, err := Address(data, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(12), addr[0])
	assert.Equal(t, byte(31), addr[19])
}

func TestUint256(t *testing.T) {
	data := make([]byte, 32)
	data[31] = 42
	v, err := Uint256(data, 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), v)
}

func TestU64(t *testing.T) {
	data := make([]byte, 32)
	data[31] = 0xFF
	data[30] = 0xFF
	v, err := U64(data, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFF), v)
}

func TestU128(t *testing.T) {
	data := make([]byte, 32)
	data[31] = 5
	v, err := U128(data, 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), v)
}

func TestI32Positive(t *testing.T) {
	data := make([]byte, 32)
	data[31] = 10
	v, err := I32(data, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(10), v)
}

func TestI32Negative(t *testing.T) {
	data := make([]byte, 32)
	// -1 in two's complement, 32-bit: 0xFFFFFFFF
	data[28], data[29], data[30], data[31] = 0xFF, 0xFF, 0xFF, 0xFF
	v, err := I32(data, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)
}

func TestI128Negative(t *testing.T) {
	data := make([]byte, 32)
	for i := 16; i < 32; i++ {
		data[i] = 0xFF
	}
	v, err := I128(data, 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(-1), v)
}

func TestI128Positive(t *testing.T) {
	data := make([]byte, 32)
	data[31] = 7
	v, err := I128(data, 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), v)
}

func TestShortInput(t *testing.T) {
	_, err := Uint256(make([]byte, 10), 0)
	require.Error(t, err)
}

func TestFormatDecimal18(t *testing.T) {
	assert.Equal(t, "1.000000000000000000", FormatDecimal18("1000000000000000000"))
	assert.Equal(t, "0.000000000000000000", FormatDecimal18("not-a-number"))
}

func TestFormatU128ToDecimal18(t *testing.T) {
	assert.Equal(t, "5.000000000000000000", FormatU128ToDecimal18(big.NewInt(50), big.NewInt(10)))
}

func TestCleanProtoString(t *testing.T) {
	assert.Equal(t, "hello", CleanProtoString("  hello  "))
}
