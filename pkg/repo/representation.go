package repo

import (
	"bytes"
	"io"
	"time"

	"github.com/podstore/podstore/pkg/space"
)

// ============================================================================
// Representations
// ============================================================================

// ContentTypeURIList is the content type of the server-managed containment
// rendering of a container. It is derived from the layout graph, never
// stored, and never writable through the updater.
const ContentTypeURIList = "text/uri-list"

// rdfSourceContentTypes are the content types treated as RDF sources.
// Parsing them is out of scope; the engine only needs the classification
// for auxiliary-resource policy enforcement.
var rdfSourceContentTypes = map[string]struct{}{
	"text/turtle":           {},
	"application/ld+json":   {},
	"application/rdf+xml":   {},
	"application/n-triples": {},
}

// IsRDFSourceContentType reports whether a content type is classified as
// an RDF source.
func IsRDFSourceContentType(ct string) bool {
	_, ok := rdfSourceContentTypes[ct]
	return ok
}

// RepMetadata describes a stored representation without its data.
type RepMetadata struct {
	// ContentType is the representation's media type.
	ContentType string

	// Size is the representation size in bytes, or -1 when unknown.
	Size int64

	// ETag is the backend's strong validator for this representation.
	ETag string

	// LastModified is the time of the last representation change.
	LastModified time.Time
}

// Validators returns the conditional-request validators of the metadata.
func (m RepMetadata) Validators() RepValidators {
	return RepValidators{ETag: m.ETag, LastModified: m.LastModified}
}

// Representation is a resource representation: metadata plus a data
// stream. The caller owns the stream and must close it.
type Representation struct {
	// Metadata describes the representation.
	Metadata RepMetadata

	// Data is the representation's byte stream.
	Data io.ReadCloser
}

// NewBytesRepresentation creates an in-memory representation from a byte
// slice.
func NewBytesRepresentation(contentType string, data []byte) *Representation {
	return &Representation{
		Metadata: RepMetadata{
			ContentType: contentType,
			Size:        int64(len(data)),
		},
		Data: io.NopCloser(bytes.NewReader(data)),
	}
}

// RepValidators are the conditional-request validators captured in a
// status token at resolution time. An operator that mutates a resource
// compares them against the backend's current validators, so a stale token
// held across non-contiguous lock scopes fails with PreconditionFailed
// instead of silently overwriting.
type RepValidators struct {
	// ETag is the strong entity validator, empty when unknown.
	ETag string

	// LastModified is the representation's last modification time.
	LastModified time.Time
}

// IsZero reports whether no validators were captured.
func (v RepValidators) IsZero() bool {
	return v.ETag == "" && v.LastModified.IsZero()
}

// Preconditions are caller-supplied conditional-request parameters
// evaluated against a resource's validators before a mutation.
type Preconditions struct {
	// IfMatch requires the resource's current ETag to equal this value.
	// "*" requires only that a representation exists.
	IfMatch string

	// IfUnmodifiedSince requires the resource to be unmodified since this
	// time.
	IfUnmodifiedSince time.Time
}

// IsZero reports whether no preconditions were supplied.
func (p Preconditions) IsZero() bool {
	return p.IfMatch == "" && p.IfUnmodifiedSince.IsZero()
}

// Evaluate checks the preconditions against the given validators.
func (p Preconditions) Evaluate(v RepValidators) bool {
	if p.IfMatch != "" && p.IfMatch != "*" && p.IfMatch != v.ETag {
		return false
	}
	if !p.IfUnmodifiedSince.IsZero() && v.LastModified.After(p.IfUnmodifiedSince) {
		return false
	}
	return true
}

// Patch is an opaque patch document to be resolved against a current
// representation by a Patcher collaborator.
type Patch struct {
	// ContentType identifies the patch document format.
	ContentType string

	// Document is the raw patch document.
	Document []byte
}

// RepUpdateAction is the representation effect of a create or update:
// either a full replacement representation or a patch to apply against the
// current representation. Exactly one field is set.
type RepUpdateAction struct {
	// SetWith replaces the stored representation.
	SetWith *Representation

	// PatchWith patches the current representation.
	PatchWith *Patch
}

// SetAction returns a replace-with action.
func SetAction(rep *Representation) RepUpdateAction {
	return RepUpdateAction{SetWith: rep}
}

// PatchAction returns a patch action.
func PatchAction(p *Patch) RepUpdateAction {
	return RepUpdateAction{PatchWith: p}
}

// IsPatch reports whether the action is a patch.
func (a RepUpdateAction) IsPatch() bool {
	return a.PatchWith != nil
}

// Valid reports whether exactly one of the action's fields is set.
func (a RepUpdateAction) Valid() bool {
	return (a.SetWith != nil) != (a.PatchWith != nil)
}

// ResourceState is a resolved resource: its slot plus, optionally, its
// representation. A resource may exist with no stored representation (a
// container whose representation is derived, for example) and still be
// "existing".
type ResourceState struct {
	// Slot is the resource's layout slot.
	Slot *space.ResourceSlot

	// Representation is the resolved representation, nil when the
	// resource has none.
	Representation *Representation
}
