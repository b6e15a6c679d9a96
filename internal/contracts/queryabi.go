// Package contracts holds the fixed ABI fragments the indexer needs to call
// the AMM's read-only query contract. It carries no write methods: this
// indexer never submits a transaction.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// queryContractABIJSON declares only the four read-only methods
// internal/ambient/query.Client calls. Real deployments carry a much larger
// ABI; this indexer only needs this slice of it.
const queryContractABIJSON = `[
	{"type":"function","name":"queryPrice","stateMutability":"view",
	 "inputs":[{"name":"base","type":"address"},{"name":"quote","type":"address"},{"name":"poolIdx","type":"uint256"}],
	 "outputs":[{"name":"price","type":"uint256"}]},
	{"type":"function","name":"queryLiquidity","stateMutability":"view",
	 "inputs":[{"name":"base","type":"address"},{"name":"quote","type":"address"},{"name":"poolIdx","type":"uint256"}],
	 "outputs":[{"name":"liq","type":"uint128"}]},
	{"type":"function","name":"queryCurve","stateMutability":"view",
	 "inputs":[{"name":"base","type":"address"},{"name":"quote","type":"address"},{"name":"poolIdx","type":"uint256"}],
	 "outputs":[{"name":"priceRoot","type":"uint256"},{"name":"ambientLiq","type":"uint256"},{"name":"concLiq","type":"uint256"}]},
	{"type":"function","name":"queryPoolTemplate","stateMutability":"view",
	 "inputs":[{"name":"poolIdx","type":"uint256"}],
	 "outputs":[{"name":"feeRate","type":"uint256"},{"name":"protocolTake","type":"uint256"},{"name":"tickSize","type":"uint256"},{"name":"jitThresh","type":"uint256"},{"name":"knockoutBits","type":"uint256"},{"name":"oracleFlags","type":"uint256"}]}
]`

// QueryContractABI parses the query contract's ABI fragment.
func QueryContractABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(queryContractABIJSON))
}
