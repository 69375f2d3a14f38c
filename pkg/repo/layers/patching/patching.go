// Package patching provides the patch-resolution layer: patch actions are
// resolved into full replacement representations before they reach repos
// further in, which only accept full representations.
package patching

import (
	"context"

	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/repo/layers/delegating"
)

// Repo is a layered repo resolving patch actions with a Patcher.
type Repo struct {
	*delegating.Repo
	patcher repo.Patcher
}

var _ repo.Repo = (*Repo)(nil)

// New creates a patching layer around inner. A nil patcher leaves patch
// actions unresolved; the inner repo then rejects them.
func New(inner repo.Repo, patcher repo.Patcher) *Repo {
	return &Repo{
		Repo:    delegating.New(inner),
		patcher: patcher,
	}
}

// Create implements repo.Repo. A creation patch applies against the patch
// format's empty document.
func (r *Repo) Create(ctx context.Context, req repo.CreateRequest) (*repo.CreateResult, error) {
	if !req.Action.IsPatch() || r.patcher == nil {
		return r.Inner().Create(ctx, req)
	}

	resolved, err := r.patcher.Apply(ctx, nil, req.Action.PatchWith)
	if err != nil {
		return nil, err
	}
	req.Action = repo.SetAction(resolved)
	return r.Inner().Create(ctx, req)
}

// Update implements repo.Repo. A patch on a represented resource applies
// against the stored representation, read through the inner repo under
// the token the caller already holds.
func (r *Repo) Update(ctx context.Context, req repo.UpdateRequest) (*repo.UpdateResult, error) {
	if !req.Action.IsPatch() || r.patcher == nil {
		return r.Inner().Update(ctx, req)
	}
	if req.Token == nil {
		return nil, repo.NewError(repo.ErrInvalidArgument, "nil status token", "")
	}

	var current *repo.Representation
	if req.Token.Variant() == repo.TokenExistingRepresented {
		rr, err := r.Inner().Read(ctx, repo.ReadRequest{Token: req.Token})
		if err != nil {
			return nil, err
		}
		current = rr.Representation
		defer current.Data.Close()
	}

	resolved, err := r.patcher.Apply(ctx, current, req.Action.PatchWith)
	if err != nil {
		return nil, err
	}
	req.Action = repo.SetAction(resolved)
	return r.Inner().Update(ctx, req)
}
