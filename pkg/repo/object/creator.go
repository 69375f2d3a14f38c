package object

import (
	"context"

	"github.com/podstore/podstore/pkg/backend"
	"github.com/podstore/podstore/pkg/repo"
)

// Create implements repo.Repo.
//
// Because containment is derived from the key space, the new slot, the
// host linkage, and the representation all materialize through one write
// of the representation object. On stores with conditional writes the
// write is guarded with an if-none-match condition, so a creation racing
// past a stale token fails instead of overwriting.
func (r *Repo) Create(ctx context.Context, req repo.CreateRequest) (*repo.CreateResult, error) {
	res, host := req.Tokens.Res(), req.Tokens.Host()
	if res == nil || host == nil {
		return nil, repo.NewError(repo.ErrInvalidArgument, "unpopulated creation token set", "")
	}
	if err := r.checkToken(res); err != nil {
		return nil, err
	}
	if err := r.checkToken(host); err != nil {
		return nil, err
	}
	if err := res.RequireVariant(repo.TokenNonExistingConflictFree); err != nil {
		return nil, err
	}
	if err := host.RequireVariant(repo.TokenExistingRepresented); err != nil {
		return nil, err
	}

	candidate := res.CandidateSlot()
	if candidate == nil {
		return nil, repo.NewError(repo.ErrTokenMismatch,
			"conflict-free token carries no candidate slot", string(res.URI()))
	}

	if req.Kind != candidate.Kind() {
		return nil, repo.NewError(repo.ErrInvalidArgument,
			"requested kind does not match the shape of the name", string(res.URI()))
	}
	relType, ok := candidate.RevRelType()
	if !ok || relType != req.RelType {
		return nil, repo.NewError(repo.ErrInvalidArgument,
			"requested hosting relation does not match the name's derived relation", string(res.URI()))
	}
	hostID, ok := candidate.HostSlotID()
	if !ok || hostID.URI != host.URI() {
		return nil, repo.NewError(repo.ErrInvalidArgument,
			"host token does not name the resource's host", string(res.URI()))
	}

	if !req.Action.Valid() {
		return nil, repo.NewError(repo.ErrInvalidArgument,
			"creation action must set exactly one representation effect", string(res.URI()))
	}
	if req.Action.IsPatch() {
		// There is no current representation to patch at creation time; a
		// patching layer resolves patches into full representations before
		// they reach the backend.
		return nil, repo.NewError(repo.ErrUnsupportedPatch,
			"backend repos accept only full representations", string(res.URI()))
	}
	rep := req.Action.SetWith

	if err := r.checkIncomingRep(candidate, rep.Metadata.ContentType); err != nil {
		return nil, err
	}

	rec, err := r.recordOf(res)
	if err != nil {
		return nil, err
	}

	opts := backend.PutOptions{ContentType: rep.Metadata.ContentType}
	if r.caps.ConditionalPut {
		opts.IfNoneMatch = true
	}

	meta, err := r.rctx.Store().Put(ctx, rec.key, rep.Data, opts)
	rep.Data.Close()
	if err != nil {
		perr := r.mapStoreErr(err, res.URI())
		if repo.IsCode(perr, repo.ErrPreconditionFailed) {
			// An object appeared at the key after the token was resolved.
			return nil, repo.WrapError(repo.ErrConflict,
				"resource came into existence since token resolution", string(res.URI()), err)
		}
		return nil, perr
	}

	return &repo.CreateResult{
		Slot:       candidate,
		Validators: repValidatorsOf(meta),
	}, nil
}
