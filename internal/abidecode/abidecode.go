// Package abidecode implements the fixed-width, 32-byte-slot ABI decoding
// primitives used to pull typed values out of raw event log data. Every
// value in a non-indexed log data segment is packed into one or more
// right-aligned 32-byte slots; these helpers pull a single typed value out
// of the slot starting at a given byte offset.
package abidecode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const slotSize = 32

var (
	two128 = new(big.Int).Lsh(big.NewInt(1), 128)
)

// ErrShortInput is returned when the input slice is too short to contain a
// value at the requested offset.
type ErrShortInput struct {
	Start, Need, Have int
}

func (e *ErrShortInput) Error() string {
	return fmt.Sprintf("abidecode: need %d bytes at offset %d, have %d", e.Need, e.Start, e.Have)
}

func checkLen(input []byte, start int) error {
	if start+slotSize > len(input) {
		return &ErrShortInput{Start: start, Need: start + slotSize, Have: len(input)}
	}
	return nil
}

// Bool decodes a bool from the 32-byte slot starting at start. Bools are
// packed into the last byte of the slot; any nonzero value is true.
func Bool(input []byte, start int) (bool, error) {
	if err := checkLen(input, start); err != nil {
		return false, err
	}
	return input[start+31] != 0, nil
}

// Address decodes a 20-byte address right-aligned within the 32-byte slot
// starting at start.
func Address(input []byte, start int) (common.Address, error) {
	if err := checkLen(input, start); err != nil {
		return common.Address{}, err
	}
	var addr common.Address
	copy(addr[:], input[start+12:start+32])
	return addr, nil
}

// Uint256 decodes a full 256-bit unsigned integer occupying the entire
// 32-byte slot starting at start.
func Uint256(input []byte, start int) (*big.Int, error) {
	if err := checkLen(input, start); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(input[start : start+32]), nil
}

// U64 decodes an unsigned 64-bit integer right-aligned within the 32-byte
// slot starting at start.
func U64(input []byte, start int) (uint64, error) {
	if err := checkLen(input, start); err != nil {
		return 0, err
	}
	return new(big.Int).SetBytes(input[start+24 : start+32]).Uint64(), nil
}

// U128 decodes an unsigned 128-bit integer right-aligned within the 32-byte
// slot starting at start.
func U128(input []byte, start int) (*big.Int, error) {
	if err := checkLen(input, start); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(input[start+16 : start+32]), nil
}

// I32 decodes a signed, two's-complement 32-bit integer right-aligned
// within the 32-byte slot starting at start.
func I32(input []byte, start int) (int32, error) {
	if err := checkLen(input, start); err != nil {
		return 0, err
	}
	b := input[start+28 : start+32]
	u := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return int32(u), nil
}

// I128 decodes a signed, two's-complement 128-bit integer right-aligned
// within the 32-byte slot starting at start. Go has no native int128, so
// the result is a *big.Int carrying the correct sign.
func I128(input []byte, start int) (*big.Int, error) {
	if err := checkLen(input, start); err != nil {
		return nil, err
	}
	raw := new(big.Int).SetBytes(input[start+16 : start+32])
	// top bit of the 128-bit value is the sign bit
	if input[start+16]&0x80 != 0 {
		raw.Sub(raw, two128)
	}
	return raw, nil
}

// CleanProtoString strips the protobuf-annotation control bytes cosmos
// attaches to free-form display strings, keeping only the human-readable
// title portion.
func CleanProtoString(input string) string {
	parts := strings.Split(input, "")
	if len(parts) > 1 {
		return strings.TrimSpace(strings.ReplaceAll(parts[0], "", ""))
	}
	return strings.TrimSpace(input)
}

// FormatDecimal18 renders a base-10 integer string as a fixed-point decimal
// with 18 fractional digits, as ERC-20 amounts commonly require for display.
func FormatDecimal18(input string) string {
	val, ok := new(big.Int).SetString(strings.TrimSpace(input), 10)
	if !ok {
		return "0.000000000000000000"
	}
	f := new(big.Float).SetInt(val)
	f.Quo(f, big.NewFloat(1e18))
	return f.Text('f', 18)
}

// FormatU128ToDecimal18 divides amount by divisor and renders the quotient
// as a decimal string with 18 zero fractional digits (matching the
// original's integer-division display convention).
func FormatU128ToDecimal18(amount, divisor *big.Int) string {
	if divisor == nil || divisor.Sign() == 0 {
		return "0.000000000000000000"
	}
	q := new(big.Int).Div(amount, divisor)
	return q.String() + ".000000000000000000"
}
