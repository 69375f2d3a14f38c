// Package delegating provides the trivial layered repo: a pure forwarder
// around an inner Repo.
//
// Feature layers embed Repo and override only the operations they
// interpose; everything else keeps the inner repo's behavior, which keeps
// layering transparent by construction.
package delegating

import (
	"context"

	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/space"
)

// Repo forwards every operation to an inner repo unchanged.
type Repo struct {
	inner repo.Repo
}

var _ repo.Repo = (*Repo)(nil)

// New creates a delegating repo around inner.
func New(inner repo.Repo) *Repo {
	return &Repo{inner: inner}
}

// Inner returns the wrapped repo.
func (r *Repo) Inner() repo.Repo {
	return r.inner
}

// Space implements repo.Repo.
func (r *Repo) Space() *space.StorageSpace {
	return r.inner.Space()
}

// ContextID implements repo.Repo.
func (r *Repo) ContextID() string {
	return r.inner.ContextID()
}

// Initialize implements repo.Repo.
func (r *Repo) Initialize(ctx context.Context) error {
	return r.inner.Initialize(ctx)
}

// ResolveStatus implements repo.Repo.
func (r *Repo) ResolveStatus(ctx context.Context, uri space.ResourceURI) (*repo.StatusToken, error) {
	return r.inner.ResolveStatus(ctx, uri)
}

// Read implements repo.Repo.
func (r *Repo) Read(ctx context.Context, req repo.ReadRequest) (*repo.ReadResult, error) {
	return r.inner.Read(ctx, req)
}

// Create implements repo.Repo.
func (r *Repo) Create(ctx context.Context, req repo.CreateRequest) (*repo.CreateResult, error) {
	return r.inner.Create(ctx, req)
}

// Update implements repo.Repo.
func (r *Repo) Update(ctx context.Context, req repo.UpdateRequest) (*repo.UpdateResult, error) {
	return r.inner.Update(ctx, req)
}

// Delete implements repo.Repo.
func (r *Repo) Delete(ctx context.Context, req repo.DeleteRequest) error {
	return r.inner.Delete(ctx, req)
}
