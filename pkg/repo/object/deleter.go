package object

import (
	"context"

	"github.com/podstore/podstore/pkg/repo"
)

// Delete implements repo.Repo.
//
// Deleting a user resource removes its auxiliary resources first and its
// representation object last, so an interrupted deletion never leaves
// orphan auxiliaries behind a surviving resource key.
func (r *Repo) Delete(ctx context.Context, req repo.DeleteRequest) error {
	if err := r.checkToken(req.Token); err != nil {
		return err
	}
	if err := req.Token.RequireVariant(repo.TokenExistingRepresented, repo.TokenExistingNonRepresented); err != nil {
		return err
	}

	slot := req.Token.Slot()
	if slot.IsRoot() {
		return repo.NewError(repo.ErrInvalidArgument,
			"the storage root container is not deletable", string(slot.URI()))
	}

	if slot.IsContainer() {
		children, err := r.listContainment(ctx, slot.URI())
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return repo.NewError(repo.ErrContainerNotEmpty,
				"container still hosts contained resources", string(slot.URI()))
		}
	}

	rec, err := r.recordOf(req.Token)
	if err != nil {
		return err
	}
	store := r.rctx.Store()

	// Auxiliary resources share their host's lifetime; auxiliaries of an
	// auxiliary do not exist.
	if !slot.IsAuxSlot() {
		for _, policy := range r.Space().AuxPolicies() {
			auxKey := r.repKey(r.Space().AuxURIOf(slot.URI(), policy.Kind))
			if derr := store.Delete(ctx, auxKey); derr != nil {
				return r.mapStoreErr(derr, slot.URI())
			}
		}
	}

	if derr := store.Delete(ctx, rec.key); derr != nil {
		return r.mapStoreErr(derr, slot.URI())
	}
	return nil
}
