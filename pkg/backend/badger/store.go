// Package badger provides the BadgerDB-backed ObjectStore implementation.
//
// Suitable for production single-node deployments requiring persistence
// across restarts. Each object is stored as two entries, data and
// metadata, written in one Badger transaction; conditional writes are
// checked inside the same transaction, making them fully atomic, and the
// store advertises ConditionalPut accordingly.
package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/podstore/podstore/pkg/backend"
)

// Key namespaces. Object data and metadata live under separate prefixes
// so listings can scan metadata without touching data values.
//
//	Data Type         Prefix   Key Format    Value
//	=================================================================
//	Object data       "o:"     o:<key>       raw bytes
//	Object metadata   "m:"     m:<key>       ObjectMeta (JSON)
const (
	dataPrefix = "o:"
	metaPrefix = "m:"
)

// Store is a BadgerDB-backed object store.
type Store struct {
	db *badger.DB

	now func() time.Time
}

// Options configure a badger store.
type Options struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string

	// InMemory runs Badger fully in memory, without persistence.
	InMemory bool

	// SyncWrites forces fsync on every write.
	SyncWrites bool
}

// New opens (or creates) a badger-backed object store.
func New(opts Options) (*Store, error) {
	bOpts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(bOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Head implements backend.ObjectStore.
func (s *Store) Head(ctx context.Context, key string) (*backend.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var meta backend.ObjectMeta
	err := s.db.View(func(txn *badger.Txn) error {
		return readMeta(txn, key, &meta)
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// Get implements backend.ObjectStore.
func (s *Store) Get(ctx context.Context, key string) (*backend.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var meta backend.ObjectMeta
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		if err := readMeta(txn, key, &meta); err != nil {
			return err
		}
		item, err := txn.Get([]byte(dataPrefix + key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return backend.ErrKeyNotFound
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &backend.Object{
		Meta: meta,
		Data: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// Put implements backend.ObjectStore.
func (s *Store) Put(ctx context.Context, key string, data io.Reader, opts backend.PutOptions) (*backend.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	meta := backend.ObjectMeta{
		Key:          key,
		ContentType:  opts.ContentType,
		Size:         int64(len(buf)),
		ETag:         uuid.NewString(),
		LastModified: s.now(),
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		// Conditional checks run inside the write transaction, so the
		// condition and the write are atomic.
		var current backend.ObjectMeta
		readErr := readMeta(txn, key, &current)
		exists := readErr == nil
		if readErr != nil && !errors.Is(readErr, backend.ErrKeyNotFound) {
			return readErr
		}

		if opts.IfNoneMatch && exists {
			return backend.ErrPreconditionFailed
		}
		if opts.IfMatch != "" && (!exists || current.ETag != opts.IfMatch) {
			return backend.ErrPreconditionFailed
		}

		metaVal, err := json.Marshal(&meta)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(metaPrefix+key), metaVal); err != nil {
			return err
		}
		return txn.Set([]byte(dataPrefix+key), buf)
	})
	if err != nil {
		return nil, err
	}

	out := meta
	return &out, nil
}

// Delete implements backend.ObjectStore.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(metaPrefix + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(dataPrefix + key))
	})
}

// List implements backend.ObjectStore.
func (s *Store) List(ctx context.Context, prefix string) ([]backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []backend.Entry

	err := s.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		itOpts.Prefix = []byte(metaPrefix + prefix)

		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := strings.TrimPrefix(string(it.Item().Key()), metaPrefix)
			if key == prefix {
				continue
			}
			rest := key[len(prefix):]
			if i := strings.IndexByte(rest, '/'); i >= 0 && i < len(rest)-1 {
				p := prefix + rest[:i+1]
				if !seen[p] {
					seen[p] = true
					entries = append(entries, backend.Entry{Key: p, IsPrefix: true})
				}
				continue
			}
			if strings.HasSuffix(rest, "/") {
				// Container marker object directly under the prefix.
				if !seen[key] {
					seen[key] = true
					entries = append(entries, backend.Entry{Key: key, IsPrefix: true})
				}
				continue
			}
			if !seen[key] {
				seen[key] = true
				entries = append(entries, backend.Entry{Key: key})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Capabilities implements backend.ObjectStore.
func (s *Store) Capabilities() backend.Capabilities {
	return backend.Capabilities{ConditionalPut: true}
}

// Close implements backend.ObjectStore.
func (s *Store) Close() error {
	return s.db.Close()
}

// readMeta decodes the metadata entry for a key within a transaction.
func readMeta(txn *badger.Txn, key string, meta *backend.ObjectMeta) error {
	item, err := txn.Get([]byte(metaPrefix + key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return backend.ErrKeyNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, meta); err != nil {
			return fmt.Errorf("%w: object metadata for key %q: %v", backend.ErrCorrupt, key, err)
		}
		return nil
	})
}
