// Package memory provides the in-memory ObjectStore implementation.
//
// Suitable for tests, development, and ephemeral spaces where persistence
// is not required. All operations are protected by a single read-write
// mutex; conditional writes are therefore atomic and advertised as such.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/podstore/podstore/pkg/backend"
)

type object struct {
	data []byte
	meta backend.ObjectMeta
}

// Store is an in-memory object store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]*object

	// maxBytes caps the total stored bytes; 0 means unlimited.
	maxBytes int64

	// maxObjects caps the number of stored objects; 0 means unlimited.
	maxObjects int

	usedBytes int64

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Option customizes a memory store.
type Option func(*Store)

// WithMaxBytes caps the total stored bytes.
func WithMaxBytes(n int64) Option {
	return func(s *Store) { s.maxBytes = n }
}

// WithMaxObjects caps the number of stored objects.
func WithMaxObjects(n int) Option {
	return func(s *Store) { s.maxObjects = n }
}

// WithClock replaces the store's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty in-memory object store.
func New(opts ...Option) *Store {
	s := &Store{
		objects: make(map[string]*object),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Head implements backend.ObjectStore.
func (s *Store) Head(ctx context.Context, key string) (*backend.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[key]
	if !ok {
		return nil, backend.ErrKeyNotFound
	}
	meta := o.meta
	return &meta, nil
}

// Get implements backend.ObjectStore.
func (s *Store) Get(ctx context.Context, key string) (*backend.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[key]
	if !ok {
		return nil, backend.ErrKeyNotFound
	}

	// Copy so the caller's reads are unaffected by later writes.
	data := append([]byte(nil), o.data...)
	meta := o.meta
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

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.objects[key]
	if opts.IfNoneMatch && exists {
		return nil, backend.ErrPreconditionFailed
	}
	if opts.IfMatch != "" && (!exists || prev.meta.ETag != opts.IfMatch) {
		return nil, backend.ErrPreconditionFailed
	}

	var prevSize int64
	if exists {
		prevSize = int64(len(prev.data))
	} else if s.maxObjects > 0 && len(s.objects) >= s.maxObjects {
		return nil, backend.ErrCapacityExceeded
	}
	if s.maxBytes > 0 && s.usedBytes-prevSize+int64(len(buf)) > s.maxBytes {
		return nil, backend.ErrCapacityExceeded
	}

	meta := backend.ObjectMeta{
		Key:          key,
		ContentType:  opts.ContentType,
		Size:         int64(len(buf)),
		ETag:         uuid.NewString(),
		LastModified: s.now(),
	}
	s.objects[key] = &object{data: buf, meta: meta}
	s.usedBytes += int64(len(buf)) - prevSize

	out := meta
	return &out, nil
}

// Delete implements backend.ObjectStore.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.objects[key]; ok {
		s.usedBytes -= int64(len(o.data))
		delete(s.objects, key)
	}
	return nil
}

// List implements backend.ObjectStore.
func (s *Store) List(ctx context.Context, prefix string) ([]backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var entries []backend.Entry
	for key := range s.objects {
		if !strings.HasPrefix(key, prefix) || key == prefix {
			continue
		}
		rest := key[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			// Deeper key: roll up into a common prefix entry.
			p := prefix + rest[:i+1]
			if !seen[p] {
				seen[p] = true
				entries = append(entries, backend.Entry{Key: p, IsPrefix: true})
			}
			// The prefix may also exist as a marker object; it is then
			// reported once, as a prefix.
			continue
		}
		if !seen[key] {
			seen[key] = true
			entries = append(entries, backend.Entry{Key: key})
		}
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
	return nil
}
