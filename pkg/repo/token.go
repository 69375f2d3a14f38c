package repo

import (
	"github.com/podstore/podstore/pkg/space"
)

// ============================================================================
// Status Tokens
// ============================================================================

// TokenVariant discriminates the four resource status token variants.
type TokenVariant int

const (
	// TokenExistingRepresented: the resource exists and has a stored
	// representation.
	TokenExistingRepresented TokenVariant = iota + 1

	// TokenExistingNonRepresented: the resource exists with no stored
	// representation.
	TokenExistingNonRepresented

	// TokenNonExistingConflict: the resource does not exist and cannot be
	// created because something incompatible occupies the name.
	TokenNonExistingConflict

	// TokenNonExistingConflictFree: the resource does not exist and the
	// name is free to be created.
	TokenNonExistingConflictFree
)

func (v TokenVariant) String() string {
	switch v {
	case TokenExistingRepresented:
		return "Existing+Represented"
	case TokenExistingNonRepresented:
		return "Existing+NonRepresented"
	case TokenNonExistingConflict:
		return "NonExisting+Conflict"
	case TokenNonExistingConflictFree:
		return "NonExisting+ConflictFree"
	default:
		return "Unknown"
	}
}

// StatusToken is a proof object attesting to a resource's
// existence/representation status at the instant of resolution.
//
// Tokens are created only by a repo's status resolver, while the caller
// holds the name lock for the resource, and are consumed at most once by
// an operator. A token's validity is scoped to that lock: using it after
// the lock is released is a contract violation, guarded at the updater by
// validator comparison.
//
// Beyond the variant and the minimal metadata exposed here, tokens are
// opaque. A backend may attach privately resolved state to a token it
// issues so the operator that later consumes it avoids redundant I/O.
type StatusToken struct {
	variant       TokenVariant
	uri           space.ResourceURI
	slot          *space.ResourceSlot
	validators    RepValidators
	conflict      string
	candidateSlot *space.ResourceSlot

	// contextID identifies the issuing repo context. Operators reject
	// tokens issued by a foreign context.
	contextID string

	// backendState carries backend-private resolved state.
	backendState any
}

// NewExistingRepresentedToken creates the Existing+Represented variant.
func NewExistingRepresentedToken(contextID string, slot *space.ResourceSlot, validators RepValidators, backendState any) *StatusToken {
	return &StatusToken{
		variant:      TokenExistingRepresented,
		uri:          slot.URI(),
		slot:         slot,
		validators:   validators,
		contextID:    contextID,
		backendState: backendState,
	}
}

// NewExistingNonRepresentedToken creates the Existing+NonRepresented
// variant.
func NewExistingNonRepresentedToken(contextID string, slot *space.ResourceSlot, backendState any) *StatusToken {
	return &StatusToken{
		variant:      TokenExistingNonRepresented,
		uri:          slot.URI(),
		slot:         slot,
		contextID:    contextID,
		backendState: backendState,
	}
}

// NewConflictToken creates the NonExisting+Conflict variant.
func NewConflictToken(contextID string, uri space.ResourceURI, reason string) *StatusToken {
	return &StatusToken{
		variant:   TokenNonExistingConflict,
		uri:       uri,
		conflict:  reason,
		contextID: contextID,
	}
}

// NewConflictFreeToken creates the NonExisting+ConflictFree variant with a
// candidate slot hint for the would-be resource.
func NewConflictFreeToken(contextID string, uri space.ResourceURI, candidate *space.ResourceSlot, backendState any) *StatusToken {
	return &StatusToken{
		variant:       TokenNonExistingConflictFree,
		uri:           uri,
		candidateSlot: candidate,
		contextID:     contextID,
		backendState:  backendState,
	}
}

// Variant returns the token's variant.
func (t *StatusToken) Variant() TokenVariant {
	return t.variant
}

// URI returns the resource URI the token was resolved for.
func (t *StatusToken) URI() space.ResourceURI {
	return t.uri
}

// IsExisting reports whether the token attests an existing resource.
func (t *StatusToken) IsExisting() bool {
	return t.variant == TokenExistingRepresented || t.variant == TokenExistingNonRepresented
}

// Slot returns the resource slot for existing variants, nil otherwise.
func (t *StatusToken) Slot() *space.ResourceSlot {
	return t.slot
}

// Validators returns the representation validators captured at resolution
// time. Zero for all variants except Existing+Represented.
func (t *StatusToken) Validators() RepValidators {
	return t.validators
}

// ConflictReason returns why the name cannot be created, for the
// NonExisting+Conflict variant.
func (t *StatusToken) ConflictReason() string {
	return t.conflict
}

// CandidateSlot returns the slot the resource would occupy if created, for
// the NonExisting+ConflictFree variant.
func (t *StatusToken) CandidateSlot() *space.ResourceSlot {
	return t.candidateSlot
}

// ContextID returns the id of the repo context that issued the token.
func (t *StatusToken) ContextID() string {
	return t.contextID
}

// BackendState returns the backend-private state attached at resolution.
// Only the issuing backend interprets it.
func (t *StatusToken) BackendState() any {
	return t.backendState
}

// RequireVariant asserts the token has the wanted variant, failing fast
// with an ErrTokenMismatch repo error otherwise. Operators call this at
// their entry points; the check is O(1) and centralizes the capability
// invariant the type system cannot express.
func (t *StatusToken) RequireVariant(want ...TokenVariant) error {
	for _, w := range want {
		if t.variant == w {
			return nil
		}
	}
	return NewError(ErrTokenMismatch,
		"operator requires a "+variantList(want)+" token, got "+t.variant.String(),
		string(t.uri))
}

func variantList(vs []TokenVariant) string {
	s := ""
	for i, v := range vs {
		if i > 0 {
			s += " or "
		}
		s += v.String()
	}
	return s
}
