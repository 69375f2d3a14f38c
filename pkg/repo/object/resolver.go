package object

import (
	"context"
	"errors"

	"github.com/podstore/podstore/pkg/backend"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/space"
)

// resourceRecord is the backend state a status token carries between
// resolution and the operator that consumes it.
type resourceRecord struct {
	// key is the resource's representation key.
	key string

	// meta is the representation's metadata at resolution time, nil when
	// no representation was found.
	meta *backend.ObjectMeta
}

// ResolveStatus implements repo.Repo.
//
// The decision procedure, in order:
//
//  1. Representation object at the resource's key: Existing+Represented.
//  2. Container URI with surviving children but no marker object:
//     Existing+NonRepresented.
//  3. Slash-variant sibling exists: NonExisting+Conflict.
//  4. Otherwise: NonExisting+ConflictFree, with the candidate slot derived
//     from the URI's structure.
func (r *Repo) ResolveStatus(ctx context.Context, uri space.ResourceURI) (*repo.StatusToken, error) {
	if err := r.checkURI(uri); err != nil {
		return nil, err
	}

	store := r.rctx.Store()
	key := r.repKey(uri)

	meta, err := store.Head(ctx, key)
	if err == nil {
		slot, derr := space.DeriveSlot(r.Space(), uri)
		if derr != nil {
			return nil, repo.WrapError(repo.ErrCorruptState,
				"stored resource has an underivable slot", string(uri), derr)
		}
		return repo.NewExistingRepresentedToken(r.rctx.ID(), slot, repValidatorsOf(meta),
			&resourceRecord{key: key, meta: meta}), nil
	}
	if !errors.Is(err, backend.ErrKeyNotFound) {
		return nil, r.mapStoreErr(err, uri)
	}

	if uri.IsContainerURI() {
		children, lerr := r.listContainment(ctx, uri)
		if lerr != nil {
			return nil, lerr
		}
		if len(children) > 0 {
			slot, derr := space.DeriveSlot(r.Space(), uri)
			if derr != nil {
				return nil, repo.WrapError(repo.ErrCorruptState,
					"stored container has an underivable slot", string(uri), derr)
			}
			return repo.NewExistingNonRepresentedToken(r.rctx.ID(), slot,
				&resourceRecord{key: key}), nil
		}
	}

	if conflict, cerr := r.hasMutexConflict(ctx, uri); cerr != nil {
		return nil, cerr
	} else if conflict {
		return repo.NewConflictToken(r.rctx.ID(), uri,
			"the slash-variant sibling of the name exists"), nil
	}

	candidate, derr := space.DeriveSlot(r.Space(), uri)
	if derr != nil {
		return nil, repo.WrapError(repo.ErrInvalidArgument,
			"name cannot be slotted in this space", string(uri), derr)
	}
	return repo.NewConflictFreeToken(r.rctx.ID(), uri, candidate,
		&resourceRecord{key: key}), nil
}

// checkURI validates a name against the space's URI policy.
func (r *Repo) checkURI(uri space.ResourceURI) error {
	if !r.Space().Contains(uri) {
		return repo.NewError(repo.ErrInvalidArgument,
			"resource uri is outside the storage space", string(uri))
	}
	if r.Space().IsLegalUserResourceURI(uri) {
		return nil
	}
	// The only legal marker-carrying names are well-formed auxiliary URIs
	// of a supported kind.
	if _, _, ok := r.Space().SplitAuxURI(uri); ok {
		return nil
	}
	return repo.NewError(repo.ErrInvalidArgument,
		"resource uri carries a reserved marker", string(uri))
}

// hasMutexConflict reports whether the slash-variant sibling of the uri
// exists.
func (r *Repo) hasMutexConflict(ctx context.Context, uri space.ResourceURI) (bool, error) {
	variant, ok := uri.MutexVariant()
	if !ok {
		return false, nil
	}
	if !r.Space().Contains(variant) {
		return false, nil
	}

	_, err := r.rctx.Store().Head(ctx, r.repKey(variant))
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, backend.ErrKeyNotFound) {
		return false, r.mapStoreErr(err, variant)
	}

	// A container variant without a marker object still exists when it has
	// surviving children.
	if variant.IsContainerURI() {
		children, lerr := r.listContainment(ctx, variant)
		if lerr != nil {
			return false, lerr
		}
		return len(children) > 0, nil
	}
	return false, nil
}

// listContainment lists the immediate contained resources of a container,
// with reserved keys filtered out.
func (r *Repo) listContainment(ctx context.Context, uri space.ResourceURI) ([]space.ResourceURI, error) {
	entries, err := r.rctx.Store().List(ctx, r.listPrefix(uri))
	if err != nil {
		return nil, r.mapStoreErr(err, uri)
	}

	var out []space.ResourceURI
	for _, e := range entries {
		if isReservedKey(e.Key) {
			continue
		}
		out = append(out, r.uriOfKey(e.Key))
	}
	return out, nil
}
