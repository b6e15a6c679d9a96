// Package contractclient provides a thin read-only wrapper around a
// go-ethereum bound contract, used for the AMM query contract's
// curve/price/liquidity/template reads. It intentionally exposes only the
// call surface this indexer needs: no transaction submission.
package contractclient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ContractClient wraps a single deployed contract's ABI and address,
// bound to a read-only backend (an ethclient.Client satisfies
// bind.ContractCaller).
type ContractClient struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
}

// NewContractClient builds a ContractClient for address, using backend for
// calls.
func NewContractClient(backend bind.ContractBackend, address common.Address, contractABI abi.ABI) *ContractClient {
	return &ContractClient{
		address: address,
		abi:     contractABI,
		bound:   bind.NewBoundContract(address, contractABI, backend, backend, backend),
	}
}

// ContractAddress returns the bound contract's address.
func (c *ContractClient) ContractAddress() common.Address {
	return c.address
}

// Abi returns the contract's parsed ABI.
func (c *ContractClient) Abi() abi.ABI {
	return c.abi
}

// Call invokes a read-only method and returns its outputs positionally, in
// declaration order, the same shape go-ethereum's BoundContract.Call
// returns when given a *[]interface{} result container.
func (c *ContractClient) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var out []any
	results := new([]any)
	err := c.bound.Call(&bind.CallOpts{Context: ctx}, results, method, args...)
	if err != nil {
		return nil, fmt.Errorf("contractclient: call %s on %s: %w", method, c.address.Hex(), err)
	}
	out = *results
	return out, nil
}
