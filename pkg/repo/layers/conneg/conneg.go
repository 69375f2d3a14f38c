// Package conneg provides the content-negotiation layer: when the stored
// representation does not satisfy a read's accept list, a Negotiator gets
// a chance to derive one that does.
package conneg

import (
	"context"

	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/repo/layers/delegating"
)

// Repo is a layered repo with derived content negotiation on reads.
type Repo struct {
	*delegating.Repo
	negotiator repo.Negotiator
}

var _ repo.Repo = (*Repo)(nil)

// New creates a content-negotiation layer around inner. A nil negotiator
// keeps the inner repo's simple accept matching.
func New(inner repo.Repo, negotiator repo.Negotiator) *Repo {
	return &Repo{
		Repo:       delegating.New(inner),
		negotiator: negotiator,
	}
}

// Read implements repo.Repo. The stored representation is read
// unconditionally and converted only when it does not already satisfy the
// accept list.
func (r *Repo) Read(ctx context.Context, req repo.ReadRequest) (*repo.ReadResult, error) {
	if r.negotiator == nil || len(req.Accept) == 0 {
		return r.Inner().Read(ctx, req)
	}

	accept := req.Accept
	req.Accept = nil
	rr, err := r.Inner().Read(ctx, req)
	if err != nil {
		return nil, err
	}

	negotiated, err := r.negotiator.Negotiate(ctx, rr.Representation, accept)
	if err != nil {
		rr.Representation.Data.Close()
		return nil, err
	}
	rr.Representation = negotiated
	return rr, nil
}
