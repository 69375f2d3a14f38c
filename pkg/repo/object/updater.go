package object

import (
	"context"

	"github.com/podstore/podstore/pkg/backend"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/space"
)

// Update implements repo.Repo.
//
// The write is guarded by the validators captured in the token: on stores
// with conditional writes via an if-match (or if-none-match, for an
// existing resource with no stored representation) condition, making a
// token held across non-contiguous lock scopes fail with
// PreconditionFailed rather than clobber an interleaved write.
func (r *Repo) Update(ctx context.Context, req repo.UpdateRequest) (*repo.UpdateResult, error) {
	if err := r.checkToken(req.Token); err != nil {
		return nil, err
	}
	if err := req.Token.RequireVariant(repo.TokenExistingRepresented, repo.TokenExistingNonRepresented); err != nil {
		return nil, err
	}

	if !req.Preconditions.Evaluate(req.Token.Validators()) {
		return nil, repo.NewError(repo.ErrPreconditionFailed,
			"supplied preconditions do not hold", string(req.Token.URI()))
	}

	if !req.Action.Valid() {
		return nil, repo.NewError(repo.ErrInvalidArgument,
			"update action must set exactly one representation effect", string(req.Token.URI()))
	}
	if req.Action.IsPatch() {
		return nil, repo.NewError(repo.ErrUnsupportedPatch,
			"backend repos accept only full representations", string(req.Token.URI()))
	}
	rep := req.Action.SetWith

	slot := req.Token.Slot()
	if err := r.checkIncomingRep(slot, rep.Metadata.ContentType); err != nil {
		return nil, err
	}

	rec, err := r.recordOf(req.Token)
	if err != nil {
		return nil, err
	}

	opts := backend.PutOptions{ContentType: rep.Metadata.ContentType}
	if r.caps.ConditionalPut {
		if rec.meta != nil {
			opts.IfMatch = rec.meta.ETag
		} else {
			opts.IfNoneMatch = true
		}
	}

	meta, err := r.rctx.Store().Put(ctx, rec.key, rep.Data, opts)
	rep.Data.Close()
	if err != nil {
		return nil, r.mapStoreErr(err, req.Token.URI())
	}

	return &repo.UpdateResult{
		Slot:       slot,
		Validators: repValidatorsOf(meta),
	}, nil
}

// checkIncomingRep enforces the representation rules a resource's slot
// imposes on incoming content.
func (r *Repo) checkIncomingRep(slot *space.ResourceSlot, contentType string) error {
	if slot.IsContainer() && mediaType(contentType) == repo.ContentTypeURIList {
		return repo.NewError(repo.ErrImmutableMetadata,
			"containment rendering is server-managed and not writable", string(slot.URI()))
	}
	if slot.IsAuxSlot() {
		relType, _ := slot.RevRelType()
		kind, _ := relType.AuxKind()
		if policy, ok := r.Space().AuxPolicyFor(kind); ok && policy.RDFSourceOnly {
			if !repo.IsRDFSourceContentType(mediaType(contentType)) {
				return repo.NewError(repo.ErrInvalidArgument,
					"auxiliary resource representations of this kind must be RDF sources", string(slot.URI()))
			}
		}
	}
	return nil
}
