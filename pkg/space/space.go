package space

import (
	"fmt"
	"strings"
)

// ============================================================================
// Storage Space
// ============================================================================

// AuxRelKind identifies one configured auxiliary relation kind of a storage
// space. Auxiliary resources hang off a host resource outside the
// containment tree (access-control documents, description documents, ...).
type AuxRelKind string

const (
	// AuxACL links a resource to its access-control document.
	AuxACL AuxRelKind = "acl"

	// AuxDescribedBy links a resource to its description document.
	AuxDescribedBy AuxRelKind = "describedby"
)

// AuxMarker is the reserved URI marker that separates a host URI from the
// auxiliary kind in an auxiliary resource URI:
//
//	https://pod.example/docs/report          (host)
//	https://pod.example/docs/report._aux_acl (its acl auxiliary)
//
// User resource URIs must never contain this marker; the URI policy of
// every repo rejects them.
const AuxMarker = "._aux_"

// AuxPolicy describes one auxiliary relation kind a space supports.
type AuxPolicy struct {
	// Kind is the relation kind identifier.
	Kind AuxRelKind

	// RDFSourceOnly restricts the auxiliary resource representations to
	// RDF source content types.
	RDFSourceOnly bool
}

// defaultAuxPolicies are the auxiliary relation kinds every space supports
// unless configured otherwise.
var defaultAuxPolicies = []AuxPolicy{
	{Kind: AuxACL, RDFSourceOnly: true},
	{Kind: AuxDescribedBy, RDFSourceOnly: true},
}

// StorageSpace identifies one independently-governed resource tree.
//
// A space has exactly one root container, one or more owner identities
// (WebIDs), an optional description resource link, and a fixed set of
// supported auxiliary relation kinds. Every resource handled by the system
// belongs to exactly one storage space.
//
// StorageSpace values are immutable after construction and safe to share
// across goroutines.
type StorageSpace struct {
	root        ResourceURI
	owners      []string
	description ResourceURI
	auxPolicies []AuxPolicy
}

// SpaceOption customizes a storage space under construction.
type SpaceOption func(*StorageSpace)

// WithDescription sets the space's description-resource link.
func WithDescription(uri ResourceURI) SpaceOption {
	return func(s *StorageSpace) { s.description = uri }
}

// WithAuxPolicies replaces the default auxiliary relation kinds.
func WithAuxPolicies(policies []AuxPolicy) SpaceOption {
	return func(s *StorageSpace) { s.auxPolicies = policies }
}

// NewStorageSpace creates a storage space rooted at the given container
// URI. The root must be a container URI, and at least one owner identity
// is required.
func NewStorageSpace(root ResourceURI, owners []string, opts ...SpaceOption) (*StorageSpace, error) {
	if !root.IsContainerURI() {
		return nil, fmt.Errorf("storage root %q is not a container uri", root)
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("storage space %q requires at least one owner", root)
	}

	s := &StorageSpace{
		root:        root,
		owners:      append([]string(nil), owners...),
		auxPolicies: defaultAuxPolicies,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RootURI returns the space's root resource URI.
func (s *StorageSpace) RootURI() ResourceURI {
	return s.root
}

// Owners returns the space's owner identities.
func (s *StorageSpace) Owners() []string {
	return s.owners
}

// DescriptionURI returns the space's description-resource link, if any.
func (s *StorageSpace) DescriptionURI() (ResourceURI, bool) {
	return s.description, s.description != ""
}

// AuxPolicies returns the auxiliary relation kinds the space supports.
func (s *StorageSpace) AuxPolicies() []AuxPolicy {
	return s.auxPolicies
}

// AuxPolicyFor returns the policy for the given auxiliary relation kind.
func (s *StorageSpace) AuxPolicyFor(kind AuxRelKind) (AuxPolicy, bool) {
	for _, p := range s.auxPolicies {
		if p.Kind == kind {
			return p, true
		}
	}
	return AuxPolicy{}, false
}

// Contains reports whether a URI belongs to this storage space.
func (s *StorageSpace) Contains(uri ResourceURI) bool {
	return uri == s.root || strings.HasPrefix(string(uri), string(s.root))
}

// IsRootURI reports whether a URI is this space's root resource URI.
func (s *StorageSpace) IsRootURI(uri ResourceURI) bool {
	return uri == s.root
}

// AuxURIOf returns the URI of the auxiliary resource of the given kind
// attached to the given host resource.
func (s *StorageSpace) AuxURIOf(host ResourceURI, kind AuxRelKind) ResourceURI {
	return ResourceURI(string(host) + AuxMarker + string(kind))
}

// SplitAuxURI decomposes an auxiliary resource URI into its host URI and
// relation kind. The second return is false when the URI is not an
// auxiliary URI of a kind this space supports. Auxiliaries attach only
// to user resources, so a host carrying the marker itself disqualifies
// the name.
func (s *StorageSpace) SplitAuxURI(uri ResourceURI) (ResourceURI, AuxRelKind, bool) {
	i := strings.LastIndex(string(uri), AuxMarker)
	if i < 0 {
		return "", "", false
	}
	host := ResourceURI(string(uri)[:i])
	kind := AuxRelKind(string(uri)[i+len(AuxMarker):])
	if _, ok := s.AuxPolicyFor(kind); !ok {
		return "", "", false
	}
	if !s.IsLegalUserResourceURI(host) {
		return "", "", false
	}
	return host, kind, true
}

// IsLegalUserResourceURI reports whether a URI is acceptable as a
// user-managed (non-auxiliary) resource URI in this space: it must belong
// to the space and must not contain reserved markers.
func (s *StorageSpace) IsLegalUserResourceURI(uri ResourceURI) bool {
	if !s.Contains(uri) {
		return false
	}
	return !strings.Contains(string(uri), AuxMarker)
}
