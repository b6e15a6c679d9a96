package contractclient

import (
	"context"
	"math/big"
	"strings"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testABIJSON = `[
  {"type":"function","name":"tickSpacing","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]}
]`

// fakeBackend implements bind.ContractBackend with only CallContract and
// CodeAt doing anything real. Everything else is unreachable from a
// read-only Call and panics if it's ever invoked.
type fakeBackend struct {
	returnValue *big.Int
}

func (f *fakeBackend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	packed := make([]byte, 32)
	f.returnValue.FillBytes(packed)
	return packed, nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	panic("not implemented in fake backend")
}
func (f *fakeBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	panic("not implemented in fake backend")
}
func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	panic("not implemented in fake backend")
}
func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	panic("not implemented in fake backend")
}
func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	panic("not implemented in fake backend")
}
func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	panic("not implemented in fake backend")
}
func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	panic("not implemented in fake backend")
}
func (f *fakeBackend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	panic("not implemented in fake backend")
}
func (f *fakeBackend) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	panic("not implemented in fake backend")
}

func TestCallReadsValueFromBackend(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(testABIJSON))
	require.NoError(t, err)

	backend := &fakeBackend{returnValue: big.NewInt(500)}
	addr := common.HexToAddress("0x0000000000000000000000000000000000000099")
	cc := NewContractClient(backend, addr, parsed)

	assert.Equal(t, addr, cc.ContractAddress())
	assert.Equal(t, parsed, cc.Abi())

	out, err := cc.Call(context.Background(), "tickSpacing")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, big.NewInt(500), out[0])
}

func TestCallDefaultsNilContext(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(testABIJSON))
	require.NoError(t, err)
	cc := NewContractClient(&fakeBackend{returnValue: big.NewInt(7)}, common.Address{}, parsed)

	out, err := cc.Call(nil, "tickSpacing")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, big.NewInt(7), out[0])
}

func TestCallRejectsUnknownMethod(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(testABIJSON))
	require.NoError(t, err)
	cc := NewContractClient(&fakeBackend{returnValue: big.NewInt(0)}, common.Address{}, parsed)

	_, err = cc.Call(context.Background(), "noSuchMethod")
	require.Error(t, err)
}
