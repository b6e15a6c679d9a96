// Package db owns the indexer's store lifecycle: opening the badger-backed
// internal/store.Store, checking it against the running build's version
// marker, and running the one-time reindex/maintenance sweeps that used to
// require a relational migration. The teacher's MySQLRecorder played this
// same "connect, then reconcile schema before anything else touches the
// database" role for its gorm-backed asset-snapshot table; ErrVersionMismatch
// plays the part AutoMigrate failures did there.
package db

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/althea-net/ambient-indexer/internal/store"
)

// ErrVersionMismatch is returned by OpenIndexerStore when the store carries
// a version marker from an incompatible build and AllowVersionMismatch was
// not set.
var ErrVersionMismatch = errors.New("db: store version mismatch")

// OpenOptions configures OpenIndexerStore.
type OpenOptions struct {
	Path          string
	InMemory      bool
	Version       string
	Reindex       bool
	AllowMismatch bool
	DefaultStart  uint64
	Logger        *zap.Logger
}

// OpenIndexerStore opens the store at opts.Path, reconciles its version
// marker, and optionally forces a full reindex by resetting the block
// cursor to opts.DefaultStart. It is the only place in the indexer that
// should call store.Open.
func OpenIndexerStore(opts OpenOptions) (*store.Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s, err := store.Open(store.Options{Path: opts.Path, InMemory: opts.InMemory, Logger: log})
	if err != nil {
		return nil, fmt.Errorf("db: open store: %w", err)
	}

	matches, stored, err := s.CheckVersion(opts.Version)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("db: check version: %w", err)
	}
	if !matches {
		if !opts.AllowMismatch {
			_ = s.Close()
			return nil, fmt.Errorf("%w: store built by %q, running %q", ErrVersionMismatch, stored, opts.Version)
		}
		log.Warn("store version mismatch, clearing invalid entries under override",
			zap.String("stored", stored), zap.String("running", opts.Version))
		if _, err := s.ClearInvalidEntries(opts.DefaultStart); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("db: clear invalid entries after version mismatch: %w", err)
		}
	}

	if opts.Reindex {
		log.Info("reindex requested, rebuilding derived state and resetting block cursor",
			zap.Uint64("default_start", opts.DefaultStart))
		if err := s.ResetDerivedState(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("db: reset derived state for reindex: %w", err)
		}
		if err := s.PutBlockCursor(opts.DefaultStart); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("db: reset cursor for reindex: %w", err)
		}
	}

	return s, nil
}
