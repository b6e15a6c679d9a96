// Package httpapi implements the indexer's read-only HTTP query façade: a
// stateless, multi-worker chi router sitting in front of internal/store and
// internal/ambient/positions. It never writes to the store — the
// scanner goroutine is the store's only writer.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/althea-net/ambient-indexer/configs"
	"github.com/althea-net/ambient-indexer/internal/ambient/events"
	"github.com/althea-net/ambient-indexer/internal/ambient/positions"
	"github.com/althea-net/ambient-indexer/internal/ambient/tracking"
	"github.com/althea-net/ambient-indexer/internal/store"
)

// Server wires the query routes against a Store. It holds no mutable state
// of its own beyond the allow-list snapshot used by /constants.
type Server struct {
	store  *store.Store
	log    *zap.Logger
	config *configs.Config
	router chi.Router
}

// New builds the chi router. cfg may be nil (constants/allow-list
// information is simply omitted from /constants in that case).
func New(s *store.Store, cfg *configs.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{store: s, log: logger, config: cfg}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/constants", srv.handleConstants)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/debug", func(r chi.Router) {
		r.Get("/status", srv.handleDebugStatus)
	})

	r.Route("/gcgo", func(r chi.Router) {
		r.Use(srv.requireNotSyncing)
		r.Get("/pool/{base}/{quote}/{poolIdx}", srv.handlePool)
		r.Get("/curve/{base}/{quote}/{poolIdx}", srv.handleCurve)
		r.Get("/position/ranged/{base}/{quote}/{poolIdx}", srv.handleRangedPositions)
		r.Get("/position/ambient/{base}/{quote}/{poolIdx}", srv.handleAmbientPositions)
		r.Get("/user/{addr}/positions", srv.handleUserPositions)
	})

	r.Get("/erc20/{addr}/price", srv.handleErc20Price)

	srv.router = r
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// requireNotSyncing returns 503 for every /gcgo route while the scanner
// reports itself far behind the chain head, per §7's Syncing semantics.
func (s *Server) requireNotSyncing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		syncing, err := s.store.GetSyncing()
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if syncing {
			s.writeError(w, http.StatusServiceUnavailable, errors.New("indexer is syncing"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func parsePoolIdx(raw string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid pool_idx %q", raw)
	}
	return n, nil
}

func (s *Server) poolTriple(w http.ResponseWriter, r *http.Request) (base, quote common.Address, poolIdx *big.Int, ok bool) {
	base, err := parseAddress(chi.URLParam(r, "base"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	quote, err = parseAddress(chi.URLParam(r, "quote"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	poolIdx, err = parsePoolIdx(chi.URLParam(r, "poolIdx"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	return base, quote, poolIdx, true
}

func (s *Server) handleConstants(w http.ResponseWriter, r *http.Request) {
	if s.config == nil {
		s.writeJSON(w, map[string]any{"allowed_tokens": []string{}, "allowed_pool_idx": []string{}})
		return
	}
	s.writeJSON(w, map[string]any{
		"allowed_tokens":   s.config.AllowedTokens,
		"allowed_pool_idx": s.config.AllowedPools,
	})
}

func (s *Server) handleDebugStatus(w http.ResponseWriter, r *http.Request) {
	cursor, err := s.store.GetBlockCursor()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	syncing, err := s.store.GetSyncing()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	dirty := 0
	if err := s.store.ScanDirtyPools(func(tracking.DirtyPoolTracker) error {
		dirty++
		return nil
	}); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	lsm, vlog := s.store.Size()
	s.writeJSON(w, map[string]any{
		"block_cursor": cursor,
		"syncing":      syncing,
		"dirty_pools":  dirty,
		"lsm_bytes":    lsm,
		"vlog_bytes":   vlog,
	})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	base, quote, poolIdx, ok := s.poolTriple(w, r)
	if !ok {
		return
	}
	tp, err := s.store.GetTrackedPool(base, quote, poolIdx)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, errors.New("pool not found"))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, tp)
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	base, quote, poolIdx, ok := s.poolTriple(w, r)
	if !ok {
		return
	}
	snap, err := s.store.GetCurveSnapshot(base, quote, poolIdx)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, errors.New("curve snapshot not found"))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, snap)
}

func (s *Server) handleRangedPositions(w http.ResponseWriter, r *http.Request) {
	base, quote, poolIdx, ok := s.poolTriple(w, r)
	if !ok {
		return
	}
	mints, err := store.ScanPoolEvents[events.MintRangedEvent](s.store, store.PrefixMintRanged, base, quote, poolIdx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	burns, err := store.ScanPoolEvents[events.BurnRangedEvent](s.store, store.PrefixBurnRanged, base, quote, poolIdx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	open, unmatched := positions.CombineRanged(mints, burns)
	s.writeJSON(w, map[string]any{"positions": open, "unmatched_burns": unmatched})
}

func (s *Server) handleAmbientPositions(w http.ResponseWriter, r *http.Request) {
	base, quote, poolIdx, ok := s.poolTriple(w, r)
	if !ok {
		return
	}
	mints, err := store.ScanPoolEvents[events.MintAmbientEvent](s.store, store.PrefixMintAmbient, base, quote, poolIdx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	burns, err := store.ScanPoolEvents[events.BurnAmbientEvent](s.store, store.PrefixBurnAmbient, base, quote, poolIdx)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	open, unmatched := positions.CombineAmbient(mints, burns)
	s.writeJSON(w, map[string]any{"positions": open, "unmatched_burns": unmatched})
}

// handleUserPositions implements GetActiveUserPositions (§4 additions): a
// user's open positions across every pool they have touched, found via the
// user-prefixed secondary index rather than a per-pool scan.
func (s *Server) handleUserPositions(w http.ResponseWriter, r *http.Request) {
	user, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	rangedMints, err := store.ScanUserEvents[events.MintRangedEvent](s.store, store.PrefixMintRanged, user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	rangedBurns, err := store.ScanUserEvents[events.BurnRangedEvent](s.store, store.PrefixBurnRanged, user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	ambientMints, err := store.ScanUserEvents[events.MintAmbientEvent](s.store, store.PrefixMintAmbient, user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	ambientBurns, err := store.ScanUserEvents[events.BurnAmbientEvent](s.store, store.PrefixBurnAmbient, user)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	ranged, unmatchedRanged := positions.CombineRanged(rangedMints, rangedBurns)
	ambient, unmatchedAmbient := positions.CombineAmbient(ambientMints, ambientBurns)
	s.writeJSON(w, map[string]any{
		"ranged":          ranged,
		"ambient":         ambient,
		"unmatched_burns": append(unmatchedRanged, unmatchedAmbient...),
	})
}

// handleErc20Price is a placeholder: it checks that the token parameter is
// an address and otherwise ignores it, and always answers with a zero
// price. No external price quote is fetched.
func (s *Server) handleErc20Price(w http.ResponseWriter, r *http.Request) {
	if _, err := parseAddress(chi.URLParam(r, "addr")); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, map[string]string{"price": "0.000000000000000000"})
}
