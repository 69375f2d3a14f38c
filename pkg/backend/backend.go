// Package backend defines the object-store collaborator interface backend
// repos are built on: get/put/delete/list-with-metadata primitives keyed
// by normalized-URI-derived paths.
//
// The interface is deliberately small so that an embedded key-value store,
// an S3-compatible object store, and an in-memory map can all satisfy it.
// Conditional-write support is optional and advertised through
// Capabilities; when present, the repo layer surfaces it through status
// token validators for lost-update detection.
package backend

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors returned by object stores. The repo layer translates
// them into its own error taxonomy.
var (
	// ErrKeyNotFound indicates no object exists at the key.
	ErrKeyNotFound = errors.New("backend: key not found")

	// ErrPreconditionFailed indicates a conditional write's condition did
	// not hold against the current object state.
	ErrPreconditionFailed = errors.New("backend: precondition failed")

	// ErrCapacityExceeded indicates the store refused a write for lack of
	// space.
	ErrCapacityExceeded = errors.New("backend: capacity exceeded")

	// ErrUnavailable indicates the store is unreachable.
	ErrUnavailable = errors.New("backend: store unavailable")

	// ErrCorrupt indicates stored object state that cannot be decoded.
	ErrCorrupt = errors.New("backend: corrupt object state")
)

// ObjectMeta describes a stored object without its data.
type ObjectMeta struct {
	// Key is the object's key.
	Key string

	// ContentType is the object's media type.
	ContentType string

	// Size is the object size in bytes.
	Size int64

	// ETag is a strong validator that changes on every write of the key.
	ETag string

	// LastModified is the time of the last write of the key.
	LastModified time.Time
}

// Object is a stored object: metadata plus a data stream the caller must
// close.
type Object struct {
	Meta ObjectMeta
	Data io.ReadCloser
}

// PutOptions qualify a write.
type PutOptions struct {
	// ContentType is the media type to record for the object.
	ContentType string

	// IfMatch, when non-empty, makes the write conditional on the current
	// object's ETag equaling this value. Fails with
	// ErrPreconditionFailed otherwise.
	IfMatch string

	// IfNoneMatch, when true, makes the write conditional on no object
	// existing at the key. Fails with ErrPreconditionFailed otherwise.
	IfNoneMatch bool
}

// Entry is one result of a delimited listing.
type Entry struct {
	// Key is the object key, or the common prefix when IsPrefix is set.
	Key string

	// IsPrefix marks a common prefix (a "sub-directory" of keys) rather
	// than an object.
	IsPrefix bool
}

// Capabilities advertises optional store features.
type Capabilities struct {
	// ConditionalPut reports whether PutOptions.IfMatch/IfNoneMatch are
	// enforced atomically by the store. Stores without it rely on the
	// engine's name locking alone for write serialization.
	ConditionalPut bool
}

// ObjectStore is the storage collaborator of a backend repo.
//
// Implementations must be safe for concurrent use. All operations respect
// context cancellation and deadlines. Keys use "/" as the hierarchy
// delimiter; a key ending in "/" is a container marker object and is a
// legal object key.
type ObjectStore interface {
	// Head returns the metadata of the object at key, or ErrKeyNotFound.
	Head(ctx context.Context, key string) (*ObjectMeta, error)

	// Get returns the object at key, or ErrKeyNotFound. The caller must
	// close the returned data stream.
	Get(ctx context.Context, key string) (*Object, error)

	// Put writes the object at key, honoring the conditional options, and
	// returns the stored object's metadata.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) (*ObjectMeta, error)

	// Delete removes the object at key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// List returns the immediate children of prefix, using "/" as the
	// delimiter: objects directly under the prefix as plain entries, and
	// deeper keys rolled up into prefix entries. Results are sorted by
	// key.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Capabilities reports the store's optional features.
	Capabilities() Capabilities

	// Close releases the store's resources.
	Close() error
}
