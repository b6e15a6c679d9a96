// Package scanner implements the single-worker log-scanning loop of
// §4.4: advance a block cursor, fetch the ten live event topics
// concurrently within a window, decode and allow-list-filter them,
// persist raw events and mark pools dirty, run the reducer over dirty
// pools, and on any update fan out the latest-curve query before
// advancing the cursor. Only one instance of this loop may run against
// a given store at a time — it is the store's single writer.
package scanner

import (
	"context"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/althea-net/ambient-indexer/internal/ambient/events"
	"github.com/althea-net/ambient-indexer/internal/ambient/query"
	"github.com/althea-net/ambient-indexer/internal/ambient/reduce"
	"github.com/althea-net/ambient-indexer/internal/ambient/tracking"
	"github.com/althea-net/ambient-indexer/internal/store"
)

// ChainClient is the upstream chain interface §6 describes: log
// fetching plus a head-block query. *ethclient.Client satisfies this.
type ChainClient interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// AllowList gates which pools and tokens the scanner persists, per
// §4.4 step 7.
type AllowList struct {
	PoolIdx map[string]bool
	Token   map[common.Address]bool
}

func (a AllowList) allowsPool(poolIdx *big.Int) bool {
	if len(a.PoolIdx) == 0 {
		return true
	}
	return a.PoolIdx[poolIdx.String()]
}

func (a AllowList) allowsTokens(base, quote common.Address) bool {
	if len(a.Token) == 0 {
		return true
	}
	return a.Token[base] || a.Token[quote]
}

// Config holds the scanner's tunables, all with the defaults §4.4 names.
type Config struct {
	DispatchAddress common.Address
	DefaultStart    uint64
	Window          uint64 // default 1000
	SyncThreshold   uint64 // default 500
	PollInterval    time.Duration // ~3s, used when head == cursor
	BackoffInterval time.Duration // ~10s, used when the chain is unreachable
	CompactEachWindow bool
	HaltAfterIndexing bool
	Allow           AllowList
	CallTimeout     time.Duration // bound on each external call, default 45s
}

func (c Config) withDefaults() Config {
	if c.Window == 0 {
		c.Window = 1000
	}
	if c.SyncThreshold == 0 {
		c.SyncThreshold = 500
	}
	if c.PollInterval == 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.BackoffInterval == 0 {
		c.BackoffInterval = 10 * time.Second
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 45 * time.Second
	}
	return c
}

// Scanner owns the store's single-writer ingestion loop.
type Scanner struct {
	chain  ChainClient
	store  *store.Store
	query  *query.Client
	log    *zap.Logger
	cfg    Config
	topics []common.Hash
}

func New(chain ChainClient, s *store.Store, q *query.Client, cfg Config, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		chain: chain,
		store: s,
		query: q,
		log:   logger,
		cfg:   cfg.withDefaults(),
		topics: []common.Hash{
			events.InitPoolSignature,
			events.SwapSignature,
			events.MintRangedSignature,
			events.MintAmbientSignature,
			events.BurnRangedSignature,
			events.BurnAmbientSignature,
			events.HarvestSignature,
			events.MintKnockoutSignature,
			events.BurnKnockoutSignature,
			events.WithdrawKnockoutSignature,
		},
	}
}

// Run executes the §4.4 loop until ctx is cancelled, or once if
// cfg.HaltAfterIndexing is set.
func (s *Scanner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		halt, err := s.runOnce(ctx)
		if err != nil {
			s.log.Error("scanner window failed, backing off", zap.Error(err))
			sleep(ctx, s.cfg.BackoffInterval)
			continue
		}
		if halt {
			return nil
		}
	}
}

// runOnce executes one pass of the §4.4 eleven-step loop. It returns
// halt=true when the caller should stop (HaltAfterIndexing is set and a
// window was processed).
func (s *Scanner) runOnce(ctx context.Context) (halt bool, err error) {
	// 1. Read cursor.
	start, err := s.store.GetBlockCursor()
	if err != nil {
		return false, err
	}
	if start == 0 {
		start = s.cfg.DefaultStart
	}

	// 2. Query chain head, backing off on failure.
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	head, err := s.chain.BlockNumber(callCtx)
	cancel()
	if err != nil {
		sleep(ctx, s.cfg.BackoffInterval)
		return false, nil
	}

	// 3. Syncing flag.
	syncing := head > start && head-start > s.cfg.SyncThreshold
	if err := s.store.PutSyncing(syncing); err != nil {
		return false, err
	}

	// 4. Caught up: sleep and continue.
	if head == start {
		sleep(ctx, s.cfg.PollInterval)
		return false, nil
	}

	// 5. Window bound.
	end := start + s.cfg.Window
	if end > head {
		end = head
	}

	// 6. Ten concurrent per-topic fetches, joined before any writes.
	logsByTopic, err := s.fetchWindow(ctx, start, end)
	if err != nil {
		return false, err
	}

	// 7-8. Decode, filter, persist, mark dirty.
	anyPersisted := false
	for _, topic := range s.topics {
		for _, l := range logsByTopic[topic] {
			persisted, perr := s.handleLog(topic, events.FromGethLog(l))
			if perr != nil {
				s.log.Warn("dropping undecodable event", zap.Error(perr), zap.Uint64("block", l.BlockNumber))
				continue
			}
			if persisted {
				anyPersisted = true
			}
		}
	}

	// 9. Reduce every dirty pool, clearing dirty with last_block = end.
	updated, err := s.reduceDirtyPools(end)
	if err != nil {
		return false, err
	}

	// 10. Latest-curve query over every known pool, if anything changed.
	if updated && s.query != nil {
		pools, lerr := s.store.ListKnownPools()
		if lerr != nil {
			return false, lerr
		}
		qCtx, qCancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		qerr := s.query.RefreshAll(qCtx, pools)
		qCancel()
		if qerr != nil {
			s.log.Warn("latest-curve query failed", zap.Error(qerr))
		}
	}

	// 11. Advance cursor, compact on demand, honor halt.
	if err := s.store.PutBlockCursor(end); err != nil {
		return false, err
	}
	if s.cfg.CompactEachWindow {
		if err := s.store.Compact(); err != nil {
			s.log.Warn("compact failed", zap.Error(err))
		}
	}
	s.log.Debug("window complete",
		zap.Uint64("start", start), zap.Uint64("end", end),
		zap.Bool("events_persisted", anyPersisted), zap.Bool("syncing", syncing))
	return s.cfg.HaltAfterIndexing, nil
}

func (s *Scanner) fetchWindow(ctx context.Context, start, end uint64) (map[common.Hash][]types.Log, error) {
	results := make(map[common.Hash][]types.Log, len(s.topics))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, topic := range s.topics {
		topic := topic
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, s.cfg.CallTimeout)
			defer cancel()
			q := ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(start),
				ToBlock:   new(big.Int).SetUint64(end),
				Addresses: []common.Address{s.cfg.DispatchAddress},
				Topics:    [][]common.Hash{{topic}},
			}
			logs, err := s.chain.FilterLogs(callCtx, q)
			if err != nil {
				return err
			}
			mu.Lock()
			results[topic] = logs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// handleLog decodes, allow-list-filters, and persists a single log,
// reporting whether it was actually written.
func (s *Scanner) handleLog(topic common.Hash, l events.RawLog) (bool, error) {
	switch topic {
	case events.InitPoolSignature:
		e, err := events.DecodeInitPool(l)
		if err != nil {
			return false, err
		}
		if !s.cfg.Allow.allowsPool(e.PoolIdx) || !s.cfg.Allow.allowsTokens(e.Base, e.Quote) {
			return false, nil
		}
		if err := s.store.PutInitPool(e); err != nil {
			return false, err
		}
		return true, s.markDirtyForceInit(e.Base, e.Quote, e.PoolIdx)

	case events.SwapSignature:
		e, err := events.DecodeSwap(l)
		if err != nil {
			return false, err
		}
		if !s.cfg.Allow.allowsPool(e.PoolIdx) || !s.cfg.Allow.allowsTokens(e.Base, e.Quote) {
			return false, nil
		}
		if err := s.store.PutSwap(e); err != nil {
			return false, err
		}
		return true, s.markDirty(e.Base, e.Quote, e.PoolIdx)

	case events.MintRangedSignature:
		e, err := events.DecodeMintRanged(l)
		if err != nil {
			return false, err
		}
		if !s.cfg.Allow.allowsPool(e.PoolIdx) || !s.cfg.Allow.allowsTokens(e.Base, e.Quote) {
			return false, nil
		}
		if err := s.store.PutMintRanged(e); err != nil {
			return false, err
		}
		return true, s.markDirty(e.Base, e.Quote, e.PoolIdx)

	case events.BurnRangedSignature:
		e, err := events.DecodeBurnRanged(l)
		if err != nil {
			return false, err
		}
		if !s.cfg.Allow.allowsPool(e.PoolIdx) || !s.cfg.Allow.allowsTokens(e.Base, e.Quote) {
			return false, nil
		}
		if err := s.store.PutBurnRanged(e); err != nil {
			return false, err
		}
		return true, s.markDirty(e.Base, e.Quote, e.PoolIdx)

	case events.MintAmbientSignature:
		e, err := events.DecodeMintAmbient(l)
		if err != nil {
			return false, err
		}
		if !s.cfg.Allow.allowsPool(e.PoolIdx) || !s.cfg.Allow.allowsTokens(e.Base, e.Quote) {
			return false, nil
		}
		if err := s.store.PutMintAmbient(e); err != nil {
			return false, err
		}
		return true, s.markDirty(e.Base, e.Quote, e.PoolIdx)

	case events.BurnAmbientSignature:
		e, err := events.DecodeBurnAmbient(l)
		if err != nil {
			return false, err
		}
		if !s.cfg.Allow.allowsPool(e.PoolIdx) || !s.cfg.Allow.allowsTokens(e.Base, e.Quote) {
			return false, nil
		}
		if err := s.store.PutBurnAmbient(e); err != nil {
			return false, err
		}
		return true, s.markDirty(e.Base, e.Quote, e.PoolIdx)

	case events.HarvestSignature:
		e, err := events.DecodeHarvest(l)
		if err != nil {
			return false, err
		}
		if !s.cfg.Allow.allowsPool(e.PoolIdx) || !s.cfg.Allow.allowsTokens(e.Base, e.Quote) {
			return false, nil
		}
		if err := s.store.PutHarvest(e); err != nil {
			return false, err
		}
		return true, s.markDirty(e.Base, e.Quote, e.PoolIdx)

	case events.MintKnockoutSignature:
		e, err := events.DecodeMintKnockout(l)
		if err != nil {
			return false, err
		}
		if !s.cfg.Allow.allowsPool(e.PoolIdx) || !s.cfg.Allow.allowsTokens(e.Base, e.Quote) {
			return false, nil
		}
		if err := s.store.PutMintKnockout(e); err != nil {
			return false, err
		}
		return true, s.markDirty(e.Base, e.Quote, e.PoolIdx)

	case events.BurnKnockoutSignature:
		e, err := events.DecodeBurnKnockout(l)
		if err != nil {
			return false, err
		}
		if !s.cfg.Allow.allowsPool(e.PoolIdx) || !s.cfg.Allow.allowsTokens(e.Base, e.Quote) {
			return false, nil
		}
		if err := s.store.PutBurnKnockout(e); err != nil {
			return false, err
		}
		return true, s.markDirty(e.Base, e.Quote, e.PoolIdx)

	case events.WithdrawKnockoutSignature:
		e, err := events.DecodeWithdrawKnockout(l)
		if err != nil {
			return false, err
		}
		if !s.cfg.Allow.allowsPool(e.PoolIdx) || !s.cfg.Allow.allowsTokens(e.Base, e.Quote) {
			return false, nil
		}
		if err := s.store.PutWithdrawKnockout(e); err != nil {
			return false, err
		}
		return true, s.markDirty(e.Base, e.Quote, e.PoolIdx)
	}
	return false, nil
}

func (s *Scanner) markDirty(base, quote common.Address, poolIdx *big.Int) error {
	d, err := s.store.GetDirtyPool(base, quote, poolIdx)
	if err != nil && err != store.ErrNotFound {
		return err
	}
	d.Base, d.Quote, d.PoolIdx = base, quote, poolIdx
	d.Dirty = true
	return s.store.PutDirtyPool(d)
}

// markDirtyForceInit implements §4.4 step 8's InitPool special case:
// force last_block = 0 so the reducer always (re-)initializes from this
// pool's InitPool event, even if no other event is ever seen for it.
func (s *Scanner) markDirtyForceInit(base, quote common.Address, poolIdx *big.Int) error {
	return s.store.PutDirtyPool(tracking.DirtyPoolTracker{
		Dirty: true, LastBlock: 0, Base: base, Quote: quote, PoolIdx: poolIdx,
	})
}

// reduceDirtyPools runs the reducer over every pool currently marked
// dirty, reporting whether any pool was dirty. A pool whose reduction fails
// is logged and skipped, and still counts.
func (s *Scanner) reduceDirtyPools(end uint64) (bool, error) {
	var dirties []tracking.DirtyPoolTracker
	if err := s.store.ScanDirtyPools(func(d tracking.DirtyPoolTracker) error {
		if d.Dirty {
			dirties = append(dirties, d)
		}
		return nil
	}); err != nil {
		return false, err
	}
	for _, d := range dirties {
		if err := reduce.Pool(s.store, s.log, d, end); err != nil {
			s.log.Error("reducer failed for pool, skipping",
				zap.String("base", d.Base.Hex()), zap.String("quote", d.Quote.Hex()),
				zap.String("pool_idx", d.PoolIdx.String()), zap.Error(err))
			continue
		}
	}
	return len(dirties) > 0, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
