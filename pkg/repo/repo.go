// Package repo defines the resource-operation protocol of the engine: the
// status-token contract, the typed resource operators, and the Repo
// aggregate that backends and feature layers implement.
//
// A caller never mutates resources through any channel other than a Repo.
// The calling discipline is: lock the names of every resource the
// operation touches (see package locker), resolve a status token for each,
// branch on the token variants, pass the tokens into the matching
// operators, then release the locks once all results are finalized.
package repo

import (
	"context"

	"github.com/podstore/podstore/pkg/space"
)

// Repo manages the resources of exactly one storage space.
//
// Implementations fall in two groups: backend repos owning actual storage,
// and layered repos wrapping an inner Repo to interpose one cross-cutting
// behavior (access control, patching, validation, content negotiation)
// while preserving this contract. Layers must forward the operations they
// do not modify unchanged, and an intercepted operation must still produce
// results compatible with the outer contract's variant semantics.
//
// All methods are safe for concurrent use. Callers are responsible for the
// name-locking discipline; a Repo performs no locking of its own.
type Repo interface {
	// Space returns the storage space this repo is bound to.
	Space() *space.StorageSpace

	// ContextID identifies the repo's context. Tokens issued by this repo
	// carry the id, and operators reject foreign tokens.
	ContextID() string

	// Initialize ensures the storage root exists. Idempotent; called once
	// at startup before any other operation.
	Initialize(ctx context.Context) error

	// ResolveStatus resolves the status token for a resource name.
	//
	// Contract: callable only while the caller holds the name lock for
	// uri. Deterministic with respect to backend state observed at
	// resolution time, and never mutates backend state. On success it
	// returns exactly one of the four variants; ambiguity resolves to
	// Conflict conservatively. Fails with ErrBackendUnavailable or
	// ErrCorruptState.
	ResolveStatus(ctx context.Context, uri space.ResourceURI) (*StatusToken, error)

	// Read returns a resolved representation of an existing represented
	// resource. No side effects.
	Read(ctx context.Context, req ReadRequest) (*ReadResult, error)

	// Create atomically establishes a new resource under an existing
	// host: the new slot, the host's layout linkage, and the supplied
	// representation all appear together or not at all.
	Create(ctx context.Context, req CreateRequest) (*CreateResult, error)

	// Update replaces (or patches) the stored representation of an
	// existing resource, honoring the validators captured in the token.
	Update(ctx context.Context, req UpdateRequest) (*UpdateResult, error)

	// Delete removes an existing resource: its slot, representation, and
	// auxiliary resources, detaching the host linkage atomically.
	Delete(ctx context.Context, req DeleteRequest) error
}

// ============================================================================
// Operator messages
// ============================================================================

// ReadRequest asks for a representation of an existing represented
// resource. Token must be of the Existing+Represented variant.
type ReadRequest struct {
	// Token is the capability proof for the target resource.
	Token *StatusToken

	// Accept lists acceptable content types in preference order. Empty
	// accepts anything. Negotiation beyond simple matching is delegated
	// to a content-negotiation layer.
	Accept []string
}

// ReadResult is a resolved resource representation.
type ReadResult struct {
	// Slot is the resource's layout slot.
	Slot *space.ResourceSlot

	// Representation is the resolved representation. The caller must
	// close its data stream.
	Representation *Representation

	// Containment lists the URIs of contained resources when the target
	// is a container. Server-managed, derived from the layout graph.
	Containment []space.ResourceURI
}

// CreateTokenSet is the pair of capability proofs resource creation
// demands: a conflict-free token for the target name and a represented
// token for the intended host.
type CreateTokenSet struct {
	res  *StatusToken
	host *StatusToken
}

// NewCreateTokenSet validates and assembles a creation token set. Both
// tokens must come from the same repo context; the target token must be
// NonExisting+ConflictFree and the host token Existing+Represented.
func NewCreateTokenSet(res, host *StatusToken) (CreateTokenSet, error) {
	if err := res.RequireVariant(TokenNonExistingConflictFree); err != nil {
		return CreateTokenSet{}, err
	}
	if err := host.RequireVariant(TokenExistingRepresented); err != nil {
		return CreateTokenSet{}, err
	}
	if res.ContextID() != host.ContextID() {
		return CreateTokenSet{}, NewError(ErrInvalidArgument,
			"inconsistent token set: tokens issued by different repo contexts", string(res.URI()))
	}
	return CreateTokenSet{res: res, host: host}, nil
}

// Res returns the target resource token.
func (s CreateTokenSet) Res() *StatusToken {
	return s.res
}

// Host returns the host resource token.
func (s CreateTokenSet) Host() *StatusToken {
	return s.host
}

// CreateRequest describes a resource creation.
type CreateRequest struct {
	// Tokens is the validated token set for target and host.
	Tokens CreateTokenSet

	// Kind is the kind of resource to create. Must match the target URI
	// shape.
	Kind space.ResourceKind

	// RelType is the hosting relation: Contains under a container host,
	// or Auxiliary attached to any existing host.
	RelType space.SlotRelType

	// Action supplies the new resource's representation.
	Action RepUpdateAction
}

// CreateResult reports a successful creation.
type CreateResult struct {
	// Slot is the new resource's slot.
	Slot *space.ResourceSlot

	// Validators are the stored representation's validators.
	Validators RepValidators
}

// UpdateRequest describes a representation update. Token must be of an
// Existing variant.
type UpdateRequest struct {
	// Token is the capability proof for the target resource.
	Token *StatusToken

	// Action is the representation effect.
	Action RepUpdateAction

	// Preconditions are additional caller-supplied conditions evaluated
	// against the token's captured validators before any I/O.
	Preconditions Preconditions
}

// UpdateResult reports a successful update.
type UpdateResult struct {
	// Slot is the updated resource's slot.
	Slot *space.ResourceSlot

	// Validators are the new representation's validators.
	Validators RepValidators
}

// DeleteRequest describes a resource deletion. Token must be of an
// Existing variant.
type DeleteRequest struct {
	// Token is the capability proof for the target resource.
	Token *StatusToken
}
