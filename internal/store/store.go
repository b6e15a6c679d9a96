// Package store wraps an embedded ordered key-value database (badger) with
// the ASCII byte-prefixed key scheme and gob-encoded values the rest of
// the indexer depends on. It is a stateless utility layer over the event
// model: callers are responsible for deciding what to read and write, the
// store only guarantees ordered prefix scans and atomic point writes.
package store

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Prefix is an ASCII key-namespace tag. Every stored key begins with one.
type Prefix string

const (
	PrefixInitPool         Prefix = "init-pool_"
	PrefixTemplate         Prefix = "template_"
	PrefixSwap             Prefix = "swap_"
	PrefixRevision         Prefix = "revision_"
	PrefixMintAmbient      Prefix = "mint-ambient_"
	PrefixBurnAmbient      Prefix = "burn-ambient_"
	PrefixMintRanged       Prefix = "mint-ranged_"
	PrefixBurnRanged       Prefix = "burn-ranged_"
	PrefixHarvest          Prefix = "harvest_"
	PrefixMintKnockout     Prefix = "mint-knockout_"
	PrefixBurnKnockout     Prefix = "burn-knockout_"
	PrefixWithdrawKnockout Prefix = "withdraw-knockout_"
	PrefixDirtyPool        Prefix = "dirty-pool_"
	PrefixTrackedPool      Prefix = "tracked-pool_"
	PrefixCurveSnapshot    Prefix = "curve-snapshot_"
	PrefixCosmosCache      Prefix = "cosmos_"
)

// AllEventPrefixes lists every prefix the maintenance sweep visits, in the
// order the original's clear_invalid_entries pass used.
var AllEventPrefixes = []Prefix{
	PrefixTrackedPool, PrefixInitPool, PrefixTemplate, PrefixSwap, PrefixRevision,
	PrefixMintAmbient, PrefixBurnAmbient, PrefixMintRanged, PrefixBurnRanged,
	PrefixHarvest, PrefixMintKnockout, PrefixBurnKnockout, PrefixWithdrawKnockout,
	PrefixDirtyPool, PrefixCurveSnapshot,
}

const (
	keyBlock   = "block"
	keySyncing = "syncing"
	keyVersion = "version"
)

// Store is the embedded KV handle shared by the scanner, reducer, position
// reconstruction, and the HTTP query façade.
type Store struct {
	db  *badger.DB
	log *zap.Logger
}

// Options configures Open.
type Options struct {
	Path          string
	InMemory      bool
	CompactOnOpen bool
	Logger        *zap.Logger
}

// Open opens (creating if absent) the badger database at opts.Path.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	badgerOpts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger at %q: %w", opts.Path, err)
	}
	s := &Store{db: db, log: logger}
	if opts.CompactOnOpen {
		if err := s.Compact(); err != nil {
			logger.Warn("compact on open failed", zap.Error(err))
		}
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Compact requests badger value-log GC; it is best-effort and safe to call
// repeatedly.
func (s *Store) Compact() error {
	for {
		if err := s.db.RunValueLogGC(0.5); err != nil {
			if err == badger.ErrNoRewrite {
				return nil
			}
			return fmt.Errorf("store: compact: %w", err)
		}
	}
}

// Size reports the on-disk (or in-memory) size of the LSM tree and value
// log in bytes, for the debug status endpoint.
func (s *Store) Size() (lsm, vlog int64) {
	return s.db.Size()
}

// Put stores value (gob-encoded) at key.
func (s *Store) Put(key []byte, value any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
}

// Get loads the value at key into out (a pointer). Returns ErrNotFound if
// the key is absent.
func (s *Store) Get(key []byte, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(out)
		})
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// ScanPrefix calls fn for every key/value pair whose key starts with
// prefix, in key order, until fn returns an error or false.
func (s *Store) ScanPrefix(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			keyCopy := item.KeyCopy(nil)
			cont := true
			var valErr error
			err := item.Value(func(val []byte) error {
				cont, valErr = fn(keyCopy, val)
				return valErr
			})
			if err != nil {
				return err
			}
			if valErr != nil || !cont {
				return valErr
			}
		}
		return nil
	})
}

// PutScalar stores a small scalar value (the block cursor, the syncing
// flag, the version marker) as raw bytes.
func (s *Store) PutScalar(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// GetScalar loads a scalar value, returning ErrNotFound if absent.
func (s *Store) GetScalar(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}
