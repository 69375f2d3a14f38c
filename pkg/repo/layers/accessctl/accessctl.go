// Package accessctl provides the access-control layer: every operation is
// cleared with a PolicyDecider before it reaches the inner repo.
//
// The layer is meant to sit outermost in a layer stack, so a denial is
// decided before any patch resolution or validation work happens. The
// acting agent travels in the operation context (repo.WithAgent).
package accessctl

import (
	"context"

	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/repo/layers/delegating"
	"github.com/podstore/podstore/pkg/space"
)

// Repo is an access-controlled layered repo.
type Repo struct {
	*delegating.Repo
	decider repo.PolicyDecider
}

var _ repo.Repo = (*Repo)(nil)

// New creates an access-control layer around inner. A nil decider admits
// every operation.
func New(inner repo.Repo, decider repo.PolicyDecider) *Repo {
	return &Repo{
		Repo:    delegating.New(inner),
		decider: decider,
	}
}

func (r *Repo) decide(ctx context.Context, uri space.ResourceURI, op repo.OpKind) error {
	if r.decider == nil {
		return nil
	}
	allowed, err := r.decider.Decide(ctx, uri, op, repo.AgentFromContext(ctx))
	if err != nil {
		return repo.WrapError(repo.ErrBackendIO, "access decision failed", string(uri), err)
	}
	if !allowed {
		return repo.NewError(repo.ErrAccessDenied, "operation denied by access policy", string(uri))
	}
	return nil
}

// ResolveStatus implements repo.Repo. Resolution discloses a resource's
// existence, so it is cleared as a read.
func (r *Repo) ResolveStatus(ctx context.Context, uri space.ResourceURI) (*repo.StatusToken, error) {
	if err := r.decide(ctx, uri, repo.OpRead); err != nil {
		return nil, err
	}
	return r.Inner().ResolveStatus(ctx, uri)
}

// Read implements repo.Repo.
func (r *Repo) Read(ctx context.Context, req repo.ReadRequest) (*repo.ReadResult, error) {
	if req.Token == nil {
		return nil, repo.NewError(repo.ErrInvalidArgument, "nil status token", "")
	}
	if err := r.decide(ctx, req.Token.URI(), repo.OpRead); err != nil {
		return nil, err
	}
	return r.Inner().Read(ctx, req)
}

// Create implements repo.Repo.
func (r *Repo) Create(ctx context.Context, req repo.CreateRequest) (*repo.CreateResult, error) {
	res := req.Tokens.Res()
	if res == nil {
		return nil, repo.NewError(repo.ErrInvalidArgument, "unpopulated creation token set", "")
	}
	if err := r.decide(ctx, res.URI(), repo.OpCreate); err != nil {
		return nil, err
	}
	return r.Inner().Create(ctx, req)
}

// Update implements repo.Repo.
func (r *Repo) Update(ctx context.Context, req repo.UpdateRequest) (*repo.UpdateResult, error) {
	if req.Token == nil {
		return nil, repo.NewError(repo.ErrInvalidArgument, "nil status token", "")
	}
	if err := r.decide(ctx, req.Token.URI(), repo.OpUpdate); err != nil {
		return nil, err
	}
	return r.Inner().Update(ctx, req)
}

// Delete implements repo.Repo.
func (r *Repo) Delete(ctx context.Context, req repo.DeleteRequest) error {
	if req.Token == nil {
		return repo.NewError(repo.ErrInvalidArgument, "nil status token", "")
	}
	if err := r.decide(ctx, req.Token.URI(), repo.OpDelete); err != nil {
		return err
	}
	return r.Inner().Delete(ctx, req)
}
