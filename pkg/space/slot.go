package space

import (
	"fmt"
)

// ============================================================================
// Resource Kind & Slot Relation Types
// ============================================================================

// ResourceKind is the kind of a resource. It is an absolute, immutable
// property: once a resource exists, its kind never changes.
type ResourceKind int

const (
	// KindContainer is a container resource. Only containers may host
	// contained resources.
	KindContainer ResourceKind = iota + 1

	// KindNonContainer is a non-container (leaf) resource.
	KindNonContainer
)

func (k ResourceKind) String() string {
	switch k {
	case KindContainer:
		return "Container"
	case KindNonContainer:
		return "NonContainer"
	default:
		return "Unknown"
	}
}

// KindOfURI returns the resource kind encoded in a URI: container URIs end
// in a slash, non-container URIs do not. Auxiliary resources are always
// non-containers regardless of host.
func KindOfURI(uri ResourceURI) ResourceKind {
	if uri.IsContainerURI() {
		return KindContainer
	}
	return KindNonContainer
}

// SlotRelType is the relation linking a host resource to a hosted
// resource. It is either Contains (a container hosting a contained
// resource) or Auxiliary with a kind (any resource hosting one of its
// auxiliary resources). The two are mutually exclusive.
type SlotRelType struct {
	aux   AuxRelKind
	isAux bool
}

// ContainsRel returns the Contains relation type.
func ContainsRel() SlotRelType {
	return SlotRelType{}
}

// AuxiliaryRel returns the Auxiliary relation type of the given kind.
func AuxiliaryRel(kind AuxRelKind) SlotRelType {
	return SlotRelType{aux: kind, isAux: true}
}

// IsContains reports whether the relation is Contains.
func (r SlotRelType) IsContains() bool {
	return !r.isAux
}

// IsAuxiliary reports whether the relation is an Auxiliary relation.
func (r SlotRelType) IsAuxiliary() bool {
	return r.isAux
}

// AuxKind returns the auxiliary relation kind. The second return is false
// for the Contains relation.
func (r SlotRelType) AuxKind() (AuxRelKind, bool) {
	return r.aux, r.isAux
}

func (r SlotRelType) String() string {
	if r.isAux {
		return "Auxiliary(" + string(r.aux) + ")"
	}
	return "Contains"
}

// ============================================================================
// Slot Identity & Links
// ============================================================================

// SlotID uniquely identifies a resource's position within a storage space
// without requiring a live fetch: the pair of space reference and resource
// URI.
type SlotID struct {
	// Space is the storage space the resource belongs to.
	Space *StorageSpace

	// URI is the resource's normalized URI.
	URI ResourceURI
}

// IsRootSlotID reports whether the id names the space's root resource.
func (id SlotID) IsRootSlotID() bool {
	return id.Space != nil && id.Space.IsRootURI(id.URI)
}

// SlotLink is a forward link from a host resource to a hosted resource.
type SlotLink struct {
	// Target is the hosted resource's URI.
	Target ResourceURI

	// RelType is the hosting relation.
	RelType SlotRelType
}

// SlotRevLink is a reverse link from a hosted resource to its host. Every
// existing resource except the storage root has exactly one reverse link;
// this is the no-orphan invariant.
type SlotRevLink struct {
	// Target is the host resource's URI.
	Target ResourceURI

	// RelType is the hosting relation.
	RelType SlotRelType
}

// ============================================================================
// Resource Slot
// ============================================================================

// ResourceSlot is the minimal unit of layout information for one resource:
// its slot id, resource kind, and reverse link to its host. The union of
// all slots in a space reconstructs the entire layout graph.
type ResourceSlot struct {
	id      SlotID
	kind    ResourceKind
	revLink *SlotRevLink
}

// NewResourceSlot validates and creates a resource slot.
//
// Validation enforces the layout invariants structurally, without backend
// I/O:
//   - The root slot is a container and has no reverse link.
//   - Every non-root slot has exactly one reverse link (no orphans).
//   - The kind matches the URI shape (container URIs end in a slash).
//   - A Contains reverse link targets the slash-parent container URI.
//   - An Auxiliary reverse link targets the host encoded in the aux URI.
func NewResourceSlot(id SlotID, kind ResourceKind, revLink *SlotRevLink) (*ResourceSlot, error) {
	if id.Space == nil {
		return nil, fmt.Errorf("slot %q has no storage space", id.URI)
	}
	if !id.Space.Contains(id.URI) {
		return nil, fmt.Errorf("slot uri %q is outside storage space %q", id.URI, id.Space.RootURI())
	}

	if id.IsRootSlotID() {
		if kind != KindContainer {
			return nil, fmt.Errorf("root slot %q must be a container", id.URI)
		}
		if revLink != nil {
			return nil, fmt.Errorf("root slot %q must not have a host", id.URI)
		}
		return &ResourceSlot{id: id, kind: kind, revLink: nil}, nil
	}

	if revLink == nil {
		return nil, fmt.Errorf("non-root slot %q must have a reverse link", id.URI)
	}
	if KindOfURI(id.URI) != kind {
		return nil, fmt.Errorf("slot %q kind %s does not match its uri shape", id.URI, kind)
	}

	if revLink.RelType.IsContains() {
		if !revLink.Target.IsContainerURI() {
			return nil, fmt.Errorf("contains reverse link of %q targets non-container %q", id.URI, revLink.Target)
		}
		parent, ok := id.URI.SlashParent()
		if !ok || parent != revLink.Target {
			return nil, fmt.Errorf("contains reverse link of %q must target its parent container, got %q", id.URI, revLink.Target)
		}
	} else {
		host, auxKind, ok := id.Space.SplitAuxURI(id.URI)
		if !ok {
			return nil, fmt.Errorf("auxiliary reverse link on non-auxiliary uri %q", id.URI)
		}
		linkKind, _ := revLink.RelType.AuxKind()
		if host != revLink.Target || auxKind != linkKind {
			return nil, fmt.Errorf("auxiliary reverse link of %q must target %q with kind %q", id.URI, host, auxKind)
		}
		if kind != KindNonContainer {
			return nil, fmt.Errorf("auxiliary slot %q must be a non-container", id.URI)
		}
	}

	link := *revLink
	return &ResourceSlot{id: id, kind: kind, revLink: &link}, nil
}

// RootSlot returns the root resource slot of a space.
func RootSlot(s *StorageSpace) *ResourceSlot {
	return &ResourceSlot{
		id:   SlotID{Space: s, URI: s.RootURI()},
		kind: KindContainer,
	}
}

// DeriveSlot derives the slot a resource at the given URI does (or would)
// occupy, purely from the URI structure. The layout encoding makes this
// possible without I/O: containment follows slash hierarchy, auxiliary
// attachment follows the aux URI marker.
func DeriveSlot(s *StorageSpace, uri ResourceURI) (*ResourceSlot, error) {
	if s.IsRootURI(uri) {
		return RootSlot(s), nil
	}

	if host, auxKind, ok := s.SplitAuxURI(uri); ok {
		return NewResourceSlot(
			SlotID{Space: s, URI: uri},
			KindNonContainer,
			&SlotRevLink{Target: host, RelType: AuxiliaryRel(auxKind)},
		)
	}

	if !s.IsLegalUserResourceURI(uri) {
		return nil, fmt.Errorf("uri %q is not a legal resource uri in space %q", uri, s.RootURI())
	}

	parent, ok := uri.SlashParent()
	if !ok || !s.Contains(parent) {
		return nil, fmt.Errorf("uri %q has no host container in space %q", uri, s.RootURI())
	}

	return NewResourceSlot(
		SlotID{Space: s, URI: uri},
		KindOfURI(uri),
		&SlotRevLink{Target: parent, RelType: ContainsRel()},
	)
}

// ID returns the slot id.
func (s *ResourceSlot) ID() SlotID {
	return s.id
}

// URI returns the slot's resource URI.
func (s *ResourceSlot) URI() ResourceURI {
	return s.id.URI
}

// Kind returns the resource kind.
func (s *ResourceSlot) Kind() ResourceKind {
	return s.kind
}

// RevLink returns the slot's reverse link, or nil for the root slot.
func (s *ResourceSlot) RevLink() *SlotRevLink {
	return s.revLink
}

// IsRoot reports whether this is the space's root slot.
func (s *ResourceSlot) IsRoot() bool {
	return s.id.IsRootSlotID()
}

// IsContainer reports whether the resource is a container.
func (s *ResourceSlot) IsContainer() bool {
	return s.kind == KindContainer
}

// HostSlotID returns the slot id of the resource's host. The second
// return is false for the root slot.
func (s *ResourceSlot) HostSlotID() (SlotID, bool) {
	if s.revLink == nil {
		return SlotID{}, false
	}
	return SlotID{Space: s.id.Space, URI: s.revLink.Target}, true
}

// RevRelType returns the relation type of the slot's reverse link. The
// second return is false for the root slot.
func (s *ResourceSlot) RevRelType() (SlotRelType, bool) {
	if s.revLink == nil {
		return SlotRelType{}, false
	}
	return s.revLink.RelType, true
}

// IsContainedSlot reports whether the resource is hosted via Contains.
func (s *ResourceSlot) IsContainedSlot() bool {
	rel, ok := s.RevRelType()
	return ok && rel.IsContains()
}

// IsAuxSlot reports whether the resource is hosted via an Auxiliary
// relation.
func (s *ResourceSlot) IsAuxSlot() bool {
	rel, ok := s.RevRelType()
	return ok && rel.IsAuxiliary()
}
