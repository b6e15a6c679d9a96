// Package query implements the latest-curve query described in §4.8:
// after a non-empty ingest window, it concurrently asks the AMM query
// contract for each known pool's current curve, price, and liquidity,
// and persists the results next to the log-derived TrackedPool, subject to
// shouldPersist's zero-value rule. It never decides ingestion state on its own; the scanner
// calls it once per window and only after the window's events have
// already been committed.
package query

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/althea-net/ambient-indexer/internal/ambient/pool"
	"github.com/althea-net/ambient-indexer/internal/store"
	"github.com/althea-net/ambient-indexer/pkg/contractclient"
)

// Caller is the subset of contractclient.ContractClient this package
// depends on, narrowed for testability.
type Caller interface {
	Call(ctx context.Context, method string, args ...any) ([]any, error)
}

var _ Caller = (*contractclient.ContractClient)(nil)

// Client fetches and persists authoritative on-chain curve state.
type Client struct {
	caller Caller
	store  *store.Store
}

func New(caller Caller, s *store.Store) *Client {
	return &Client{caller: caller, store: s}
}

// RefreshAll fetches curve/price/liquidity for every pool in pools
// concurrently and persists the results, per §4.8 and §5's "joined
// before proceeding" rule. Each pool's snapshot is persisted as soon as
// its own fetches succeed. The first fetch error cancels the shared
// context for the fetches still running and is returned once every
// goroutine has finished; snapshots already persisted are kept.
func (c *Client) RefreshAll(ctx context.Context, pools []pool.Pool) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range pools {
		p := p
		g.Go(func() error {
			return c.refreshOne(ctx, p)
		})
	}
	return g.Wait()
}

func (c *Client) refreshOne(ctx context.Context, p pool.Pool) error {
	prior, priorErr := c.store.GetCurveSnapshot(p.Base, p.Quote, p.PoolIdx)
	hadPrior := priorErr == nil

	price, err := c.queryScalar(ctx, "queryPrice", p)
	if err != nil {
		return err
	}
	liquidity, err := c.queryScalar(ctx, "queryLiquidity", p)
	if err != nil {
		return err
	}
	curve, err := c.queryCurve(ctx, p)
	if err != nil {
		return err
	}

	snap := store.CurveSnapshot{
		Base:      p.Base,
		Quote:     p.Quote,
		PoolIdx:   p.PoolIdx,
		Price:     price,
		Liquidity: liquidity,
		Curve:     curve,
	}

	if !shouldPersist(snap, hadPrior, prior) {
		return nil
	}
	return c.store.PutCurveSnapshot(snap)
}

// shouldPersist implements §4.8's rule: persist only when the new value
// is non-zero, or a prior record already exists (so a pool drained to
// zero keeps its last-known record instead of being erased).
func shouldPersist(snap store.CurveSnapshot, hadPrior bool, _ store.CurveSnapshot) bool {
	if hadPrior {
		return true
	}
	if nonZero(snap.Price) || nonZero(snap.Liquidity) {
		return true
	}
	for _, c := range snap.Curve {
		if nonZero(c) {
			return true
		}
	}
	return false
}

func nonZero(v *big.Int) bool {
	return v != nil && v.Sign() != 0
}

func (c *Client) queryScalar(ctx context.Context, method string, p pool.Pool) (*big.Int, error) {
	out, err := c.caller.Call(ctx, method, p.Base, p.Quote, p.PoolIdx)
	if err != nil {
		return nil, err
	}
	vals := toBigInts(out)
	if len(vals) == 0 {
		return big.NewInt(0), nil
	}
	return vals[0], nil
}

func (c *Client) queryCurve(ctx context.Context, p pool.Pool) ([]*big.Int, error) {
	out, err := c.caller.Call(ctx, "queryCurve", p.Base, p.Quote, p.PoolIdx)
	if err != nil {
		return nil, err
	}
	return toBigInts(out), nil
}

// QueryTemplate fetches a pool's template from the query contract. The
// indexer's startup path does not call it: cmd seeds the store's templates
// from the YAML config instead.
func (c *Client) QueryTemplate(ctx context.Context, poolIdx *big.Int) (pool.Template, error) {
	out, err := c.caller.Call(ctx, "queryPoolTemplate", poolIdx)
	if err != nil {
		return pool.Template{}, err
	}
	vals := toBigInts(out)
	t := pool.Template{}
	if len(vals) > 0 {
		t.FeeRatePips = uint16(vals[0].Uint64())
	}
	if len(vals) > 1 {
		t.ProtocolTake = uint8(vals[1].Uint64())
	}
	if len(vals) > 2 {
		t.TickSize = uint16(vals[2].Uint64())
	}
	if len(vals) > 3 {
		t.JitThreshold = uint8(vals[3].Uint64())
	}
	if len(vals) > 4 {
		t.KnockoutBits = uint8(vals[4].Uint64())
	}
	if len(vals) > 5 {
		t.OracleFlags = uint8(vals[5].Uint64())
	}
	return t, nil
}

// toBigInts extracts every *big.Int-shaped output in declaration order,
// skipping outputs the ABI decoded as some other Go type (addresses,
// bools, etc.) that this read-only summary has no use for.
func toBigInts(out []any) []*big.Int {
	vals := make([]*big.Int, 0, len(out))
	for _, o := range out {
		switch v := o.(type) {
		case *big.Int:
			vals = append(vals, v)
		case common.Address:
			_ = v // addresses carry no liquidity/price signal here
		}
	}
	return vals
}
