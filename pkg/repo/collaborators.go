package repo

import (
	"context"

	"github.com/podstore/podstore/pkg/space"
)

// ============================================================================
// External collaborator interfaces
// ============================================================================
//
// The engine treats content negotiation, patch application, update
// validation, and access-control policy evaluation as external
// collaborators: the layered repos call through these interfaces and never
// implement the algorithms themselves.

// OpKind is the kind of resource operation, as seen by access control.
type OpKind int

const (
	// OpRead is a read operation.
	OpRead OpKind = iota + 1

	// OpCreate is a resource creation.
	OpCreate

	// OpUpdate is a representation update.
	OpUpdate

	// OpDelete is a resource deletion.
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "Read"
	case OpCreate:
		return "Create"
	case OpUpdate:
		return "Update"
	case OpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// PolicyDecider evaluates access-control policy for one operation on one
// resource. Consumed by the outermost layered repo before forwarding to
// the inner repo.
type PolicyDecider interface {
	// Decide returns whether the agent may perform op on the resource.
	// An error means policy evaluation itself failed, not a denial.
	Decide(ctx context.Context, uri space.ResourceURI, op OpKind, agent string) (bool, error)
}

// Patcher resolves a patch document against a current representation.
type Patcher interface {
	// Apply returns the patched representation. current is nil when
	// patching a resource with no stored representation; the patcher
	// applies the patch against its format's empty document. A structured
	// patch-application failure is reported as an ErrUnsupportedPatch or
	// ErrInvalidArgument repo error.
	Apply(ctx context.Context, current *Representation, patch *Patch) (*Representation, error)
}

// Negotiator converts a representation to satisfy content-negotiation
// parameters the stored representation does not.
type Negotiator interface {
	// Negotiate returns a representation acceptable under accept, or an
	// ErrNotAcceptable repo error when it cannot produce one.
	Negotiate(ctx context.Context, rep *Representation, accept []string) (*Representation, error)
}

// UpdateContext is the information an update validator sees.
type UpdateContext struct {
	// Slot is the target resource's slot (the candidate slot for a
	// creation).
	Slot *space.ResourceSlot

	// Incoming is the representation about to be stored.
	Incoming *Representation
}

// UpdateValidator vets an incoming representation before a create or
// update is forwarded to the inner repo. A rejection is a typed repo
// error; the inner repo's state is never touched.
type UpdateValidator interface {
	Validate(ctx context.Context, uc *UpdateContext) error
}

// AgentFromContext returns the agent identity (a WebID) attached to the
// request context, or "" for an unauthenticated request. Credential
// verification happens outside the engine; the engine only transports the
// resulting identity.
func AgentFromContext(ctx context.Context) string {
	agent, _ := ctx.Value(agentKey{}).(string)
	return agent
}

// WithAgent attaches an agent identity to a request context.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey{}, agent)
}

type agentKey struct{}
