// Package validating provides the representation-validation layer:
// incoming representations are vetted by a chain of UpdateValidators
// before a create or update reaches the inner repo.
//
// The layer expects patch actions to be resolved already, so it belongs
// inside the patching layer in a stack.
package validating

import (
	"context"

	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/repo/layers/delegating"
	"github.com/podstore/podstore/pkg/space"
)

// Repo is a layered repo running update validators.
type Repo struct {
	*delegating.Repo
	validators []repo.UpdateValidator
}

var _ repo.Repo = (*Repo)(nil)

// New creates a validating layer around inner.
func New(inner repo.Repo, validators ...repo.UpdateValidator) *Repo {
	return &Repo{
		Repo:       delegating.New(inner),
		validators: validators,
	}
}

func (r *Repo) validate(ctx context.Context, slot *space.ResourceSlot, incoming *repo.Representation) error {
	uc := &repo.UpdateContext{Slot: slot, Incoming: incoming}
	for _, v := range r.validators {
		if err := v.Validate(ctx, uc); err != nil {
			return err
		}
	}
	return nil
}

// Create implements repo.Repo.
func (r *Repo) Create(ctx context.Context, req repo.CreateRequest) (*repo.CreateResult, error) {
	res := req.Tokens.Res()
	if res != nil && !req.Action.IsPatch() && req.Action.SetWith != nil {
		if err := r.validate(ctx, res.CandidateSlot(), req.Action.SetWith); err != nil {
			return nil, err
		}
	}
	return r.Inner().Create(ctx, req)
}

// Update implements repo.Repo.
func (r *Repo) Update(ctx context.Context, req repo.UpdateRequest) (*repo.UpdateResult, error) {
	if req.Token != nil && !req.Action.IsPatch() && req.Action.SetWith != nil {
		if err := r.validate(ctx, req.Token.Slot(), req.Action.SetWith); err != nil {
			return nil, err
		}
	}
	return r.Inner().Update(ctx, req)
}

// ============================================================================
// Stock validators
// ============================================================================

// ContainerRepProtector rejects writes that would shadow the
// server-managed containment rendering of a container.
type ContainerRepProtector struct{}

// Validate implements repo.UpdateValidator.
func (ContainerRepProtector) Validate(_ context.Context, uc *repo.UpdateContext) error {
	if uc.Slot == nil || uc.Incoming == nil {
		return nil
	}
	if uc.Slot.IsContainer() && uc.Incoming.Metadata.ContentType == repo.ContentTypeURIList {
		return repo.NewError(repo.ErrImmutableMetadata,
			"containment rendering is server-managed and not writable", string(uc.Slot.URI()))
	}
	return nil
}

// AuxRepProtector enforces auxiliary-resource content policies: kinds
// configured as RDF-source-only reject non-RDF representations.
type AuxRepProtector struct {
	// Space supplies the auxiliary policies.
	Space *space.StorageSpace
}

// Validate implements repo.UpdateValidator.
func (v AuxRepProtector) Validate(_ context.Context, uc *repo.UpdateContext) error {
	if v.Space == nil || uc.Slot == nil || uc.Incoming == nil || !uc.Slot.IsAuxSlot() {
		return nil
	}
	relType, ok := uc.Slot.RevRelType()
	if !ok {
		return nil
	}
	kind, ok := relType.AuxKind()
	if !ok {
		return nil
	}
	if policy, ok := v.Space.AuxPolicyFor(kind); ok && policy.RDFSourceOnly {
		if !repo.IsRDFSourceContentType(uc.Incoming.Metadata.ContentType) {
			return repo.NewError(repo.ErrInvalidArgument,
				"auxiliary resource representations of this kind must be RDF sources", string(uc.Slot.URI()))
		}
	}
	return nil
}
