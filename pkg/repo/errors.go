package repo

import "errors"

// RepoError represents a domain error from repo operations.
//
// These are protocol-level outcomes and faults (resource not found,
// precondition failed, backend unreachable, ...) as opposed to programmer
// errors, with one exception: ErrTokenMismatch and ErrImmutableMetadata
// mark structural API misuse and are detectable without backend I/O.
//
// Outer method-dispatch services translate RepoError codes to wire-level
// status codes; the core never does.
type RepoError struct {
	// Code is the error category.
	Code ErrorCode

	// Message is a human-readable error description.
	Message string

	// URI is the resource URI related to the error, if applicable.
	URI string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *RepoError) Error() string {
	msg := e.Message
	if e.URI != "" {
		msg += ": " + e.URI
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *RepoError) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of a repo error.
type ErrorCode int

const (
	// ErrNotFound indicates the target resource doesn't exist.
	ErrNotFound ErrorCode = iota

	// ErrConflict indicates the target name cannot be created because
	// something incompatible occupies it (for example the slash-variant
	// sibling of the name, or a concurrent create that won the race).
	ErrConflict

	// ErrContainerNotEmpty indicates a container with contained resources
	// cannot be deleted.
	ErrContainerNotEmpty

	// ErrPreconditionFailed indicates the resource's current validators no
	// longer match those captured in the status token or supplied
	// preconditions. The caller recovers by re-resolving a fresh token and
	// retrying the whole lock-scoped operation.
	ErrPreconditionFailed

	// ErrImmutableMetadata indicates an attempt to rewrite server-managed
	// layout metadata (the containment index) through the updater.
	ErrImmutableMetadata

	// ErrTokenMismatch indicates an operator was invoked with a status
	// token of the wrong variant. This is API misuse, detected
	// synchronously without backend I/O.
	ErrTokenMismatch

	// ErrInvalidArgument indicates invalid parameters: a malformed slot,
	// an inconsistent token set, a kind contradicting the target URI.
	ErrInvalidArgument

	// ErrAccessDenied indicates the access-control layer denied the
	// operation.
	ErrAccessDenied

	// ErrNotAcceptable indicates no representation satisfying the
	// requested content-negotiation parameters could be produced.
	ErrNotAcceptable

	// ErrUnsupportedPatch indicates the repo cannot apply the supplied
	// patch document type.
	ErrUnsupportedPatch

	// ErrBackendIO indicates an I/O error against the backend.
	ErrBackendIO

	// ErrBackendTimeout indicates a backend call exceeded the caller's
	// deadline.
	ErrBackendTimeout

	// ErrBackendUnavailable indicates the backend is unreachable.
	ErrBackendUnavailable

	// ErrCorruptState indicates stored metadata could not be decoded.
	ErrCorruptState

	// ErrCapacityExceeded indicates the backend refused a write for lack
	// of space.
	ErrCapacityExceeded

	// ErrLockTimeout indicates a name lock could not be acquired within
	// the caller's deadline. No resolution or mutation occurred.
	ErrLockTimeout
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrConflict:
		return "Conflict"
	case ErrContainerNotEmpty:
		return "ContainerNotEmpty"
	case ErrPreconditionFailed:
		return "PreconditionFailed"
	case ErrImmutableMetadata:
		return "ImmutableMetadata"
	case ErrTokenMismatch:
		return "TokenMismatch"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrAccessDenied:
		return "AccessDenied"
	case ErrNotAcceptable:
		return "NotAcceptable"
	case ErrUnsupportedPatch:
		return "UnsupportedPatch"
	case ErrBackendIO:
		return "BackendIO"
	case ErrBackendTimeout:
		return "BackendTimeout"
	case ErrBackendUnavailable:
		return "BackendUnavailable"
	case ErrCorruptState:
		return "CorruptState"
	case ErrCapacityExceeded:
		return "CapacityExceeded"
	case ErrLockTimeout:
		return "LockTimeout"
	default:
		return "Unknown"
	}
}

// NewError creates a RepoError with the given code and message.
func NewError(code ErrorCode, message, uri string) *RepoError {
	return &RepoError{Code: code, Message: message, URI: uri}
}

// WrapError creates a RepoError wrapping a cause.
func WrapError(code ErrorCode, message, uri string, err error) *RepoError {
	return &RepoError{Code: code, Message: message, URI: uri, Err: err}
}

// CodeOf extracts the error code from an error chain. The second return is
// false when no RepoError is present in the chain.
func CodeOf(err error) (ErrorCode, bool) {
	var re *RepoError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}

// IsCode reports whether the error chain carries a RepoError with the
// given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
