// Package object implements the backend Repo on top of an ObjectStore.
//
// The layout is derived, not indexed: an object's key is the resource URI
// path relative to the space root, a trailing slash marks a container
// marker object, and containment is computed from delimited listings. A
// resource creation is therefore a single (conditionally) atomic Put, and
// host layout linkage appears together with the new object by
// construction.
//
// ============================================================================
// Key schema
// ============================================================================
//
//	<relpath>              non-container representation
//	<relpath>/             container marker object (its stored representation)
//	<relpath>._aux_<kind>  auxiliary representation attached to <relpath>
//	.__root                the root container's representation
//
// The ".__root" key and keys carrying the auxiliary marker are reserved:
// they are filtered out of containment listings and rejected as
// user-resource names by the URI policy.
package object

import (
	"context"
	"errors"

	"github.com/podstore/podstore/pkg/backend"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/space"
)

// rootRepBody is the representation stored for the root container when the
// space is first initialized.
const rootRepBody = "@prefix ldp: <http://www.w3.org/ns/ldp#> .\n\n<> a ldp:BasicContainer .\n"

// rootRepContentType is the content type of the initial root
// representation.
const rootRepContentType = "text/turtle"

// Repo is the object-store-backed repo of one storage space.
//
// Repo performs no locking; callers follow the name-locking discipline
// documented on the repo.Repo interface.
type Repo struct {
	rctx *Context
	caps backend.Capabilities
}

// Interface guard.
var _ repo.Repo = (*Repo)(nil)

// New creates an object-backend repo binding a storage space to an object
// store.
func New(sp *space.StorageSpace, store backend.ObjectStore) *Repo {
	return NewWithContext(NewContext(sp, store))
}

// NewWithContext creates a repo over an existing context. Layered repos
// sharing a backend context use this.
func NewWithContext(rctx *Context) *Repo {
	return &Repo{
		rctx: rctx,
		caps: rctx.Store().Capabilities(),
	}
}

// Space implements repo.Repo.
func (r *Repo) Space() *space.StorageSpace {
	return r.rctx.Space()
}

// ContextID implements repo.Repo.
func (r *Repo) ContextID() string {
	return r.rctx.ID()
}

// Initialize implements repo.Repo. It stores the root container's initial
// representation unless one already exists.
func (r *Repo) Initialize(ctx context.Context) error {
	store := r.rctx.Store()

	_, err := store.Head(ctx, rootRepKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, backend.ErrKeyNotFound) {
		return r.mapStoreErr(err, r.Space().RootURI())
	}

	rep := repo.NewBytesRepresentation(rootRepContentType, []byte(rootRepBody))
	defer rep.Data.Close()

	opts := backend.PutOptions{ContentType: rootRepContentType}
	if r.caps.ConditionalPut {
		opts.IfNoneMatch = true
	}
	_, err = store.Put(ctx, rootRepKey, rep.Data, opts)
	if errors.Is(err, backend.ErrPreconditionFailed) {
		// A concurrent initializer won the race; the root exists.
		return nil
	}
	if err != nil {
		return r.mapStoreErr(err, r.Space().RootURI())
	}
	return nil
}

// checkToken rejects tokens issued by a foreign repo context.
func (r *Repo) checkToken(t *repo.StatusToken) error {
	if t == nil {
		return repo.NewError(repo.ErrInvalidArgument, "nil status token", "")
	}
	if t.ContextID() != r.rctx.ID() {
		return repo.NewError(repo.ErrTokenMismatch,
			"status token was issued by a different repo context", string(t.URI()))
	}
	return nil
}

// mapStoreErr translates object-store errors into the repo error taxonomy.
func (r *Repo) mapStoreErr(err error, uri space.ResourceURI) error {
	switch {
	case errors.Is(err, backend.ErrKeyNotFound):
		return repo.WrapError(repo.ErrNotFound, "no such resource", string(uri), err)
	case errors.Is(err, backend.ErrPreconditionFailed):
		return repo.WrapError(repo.ErrPreconditionFailed, "backend state changed since token resolution", string(uri), err)
	case errors.Is(err, backend.ErrCapacityExceeded):
		return repo.WrapError(repo.ErrCapacityExceeded, "store capacity exceeded", string(uri), err)
	case errors.Is(err, backend.ErrUnavailable):
		return repo.WrapError(repo.ErrBackendUnavailable, "store unavailable", string(uri), err)
	case errors.Is(err, backend.ErrCorrupt):
		return repo.WrapError(repo.ErrCorruptState, "stored object state is undecodable", string(uri), err)
	case errors.Is(err, context.DeadlineExceeded):
		return repo.WrapError(repo.ErrBackendTimeout, "store operation timed out", string(uri), err)
	default:
		return repo.WrapError(repo.ErrBackendIO, "store operation failed", string(uri), err)
	}
}
