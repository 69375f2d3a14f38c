package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSpace(t *testing.T) *StorageSpace {
	t.Helper()
	s, err := NewStorageSpace(
		MustParseResourceURI("https://pod.example/"),
		[]string{"https://alice.example/profile#me"},
	)
	require.NoError(t, err)
	return s
}

func TestNewStorageSpaceValidation(t *testing.T) {
	_, err := NewStorageSpace(MustParseResourceURI("https://pod.example/root"), []string{"o"})
	require.Error(t, err, "non-container root must be rejected")

	_, err = NewStorageSpace(MustParseResourceURI("https://pod.example/"), nil)
	require.Error(t, err, "ownerless space must be rejected")
}

func TestRootSlotInvariants(t *testing.T) {
	s := newTestSpace(t)
	root := RootSlot(s)

	assert.True(t, root.IsRoot())
	assert.True(t, root.IsContainer())
	assert.Nil(t, root.RevLink())

	_, ok := root.HostSlotID()
	assert.False(t, ok)

	// Root slot constructed explicitly must obey the same invariants.
	_, err := NewResourceSlot(SlotID{Space: s, URI: s.RootURI()}, KindNonContainer, nil)
	require.Error(t, err)

	_, err = NewResourceSlot(SlotID{Space: s, URI: s.RootURI()}, KindContainer, &SlotRevLink{
		Target:  MustParseResourceURI("https://pod.example/c/"),
		RelType: ContainsRel(),
	})
	require.Error(t, err)
}

func TestNewResourceSlotContainsValidation(t *testing.T) {
	s := newTestSpace(t)
	uri := MustParseResourceURI("https://pod.example/c1/r1")

	// Valid: reverse link to the slash-parent container.
	slot, err := NewResourceSlot(SlotID{Space: s, URI: uri}, KindNonContainer, &SlotRevLink{
		Target:  MustParseResourceURI("https://pod.example/c1/"),
		RelType: ContainsRel(),
	})
	require.NoError(t, err)
	assert.True(t, slot.IsContainedSlot())
	assert.False(t, slot.IsAuxSlot())

	host, ok := slot.HostSlotID()
	require.True(t, ok)
	assert.Equal(t, MustParseResourceURI("https://pod.example/c1/"), host.URI)

	// Invalid: contains reverse link to a non-container host.
	_, err = NewResourceSlot(SlotID{Space: s, URI: uri}, KindNonContainer, &SlotRevLink{
		Target:  MustParseResourceURI("https://pod.example/c1"),
		RelType: ContainsRel(),
	})
	require.Error(t, err)

	// Invalid: contains reverse link to a non-parent container.
	_, err = NewResourceSlot(SlotID{Space: s, URI: uri}, KindNonContainer, &SlotRevLink{
		Target:  MustParseResourceURI("https://pod.example/other/"),
		RelType: ContainsRel(),
	})
	require.Error(t, err)

	// Invalid: no reverse link on a non-root slot (orphan).
	_, err = NewResourceSlot(SlotID{Space: s, URI: uri}, KindNonContainer, nil)
	require.Error(t, err)

	// Invalid: kind contradicting the uri shape.
	_, err = NewResourceSlot(SlotID{Space: s, URI: uri}, KindContainer, &SlotRevLink{
		Target:  MustParseResourceURI("https://pod.example/c1/"),
		RelType: ContainsRel(),
	})
	require.Error(t, err)
}

func TestNewResourceSlotAuxValidation(t *testing.T) {
	s := newTestSpace(t)
	host := MustParseResourceURI("https://pod.example/c1/r1")
	auxURI := s.AuxURIOf(host, AuxACL)

	slot, err := NewResourceSlot(SlotID{Space: s, URI: auxURI}, KindNonContainer, &SlotRevLink{
		Target:  host,
		RelType: AuxiliaryRel(AuxACL),
	})
	require.NoError(t, err)
	assert.True(t, slot.IsAuxSlot())
	assert.False(t, slot.IsContainedSlot())

	// Invalid: aux reverse link on a plain uri.
	_, err = NewResourceSlot(SlotID{Space: s, URI: host}, KindNonContainer, &SlotRevLink{
		Target:  MustParseResourceURI("https://pod.example/c1/"),
		RelType: AuxiliaryRel(AuxACL),
	})
	require.Error(t, err)

	// Invalid: aux reverse link targeting the wrong host.
	_, err = NewResourceSlot(SlotID{Space: s, URI: auxURI}, KindNonContainer, &SlotRevLink{
		Target:  MustParseResourceURI("https://pod.example/c1/"),
		RelType: AuxiliaryRel(AuxACL),
	})
	require.Error(t, err)
}

func TestDeriveSlot(t *testing.T) {
	s := newTestSpace(t)

	root, err := DeriveSlot(s, s.RootURI())
	require.NoError(t, err)
	assert.True(t, root.IsRoot())

	child, err := DeriveSlot(s, MustParseResourceURI("https://pod.example/c1/"))
	require.NoError(t, err)
	assert.Equal(t, KindContainer, child.Kind())
	require.NotNil(t, child.RevLink())
	assert.Equal(t, s.RootURI(), child.RevLink().Target)
	assert.True(t, child.RevLink().RelType.IsContains())

	aux, err := DeriveSlot(s, s.AuxURIOf(MustParseResourceURI("https://pod.example/c1/"), AuxDescribedBy))
	require.NoError(t, err)
	assert.True(t, aux.IsAuxSlot())
	kind, _ := aux.RevLink().RelType.AuxKind()
	assert.Equal(t, AuxDescribedBy, kind)

	_, err = DeriveSlot(s, MustParseResourceURI("https://other.example/x"))
	require.Error(t, err, "uri outside the space has no slot")
}

func TestSpaceAuxHelpers(t *testing.T) {
	s := newTestSpace(t)
	host := MustParseResourceURI("https://pod.example/docs/report")

	auxURI := s.AuxURIOf(host, AuxACL)
	gotHost, kind, ok := s.SplitAuxURI(auxURI)
	require.True(t, ok)
	assert.Equal(t, host, gotHost)
	assert.Equal(t, AuxACL, kind)

	_, _, ok = s.SplitAuxURI(host)
	assert.False(t, ok)

	// Auxiliaries attach to user resources only.
	_, _, ok = s.SplitAuxURI(s.AuxURIOf(auxURI, AuxACL))
	assert.False(t, ok, "auxiliary of an auxiliary is not a legal name")
	_, err := DeriveSlot(s, s.AuxURIOf(auxURI, AuxACL))
	assert.Error(t, err)

	assert.True(t, s.IsLegalUserResourceURI(host))
	assert.False(t, s.IsLegalUserResourceURI(auxURI))
	assert.False(t, s.IsLegalUserResourceURI(MustParseResourceURI("https://other.example/x")))
}
