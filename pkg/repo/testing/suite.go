// Package testing provides a conformance test suite for Repo
// implementations. Backend repos and layer stacks wrapping them run the
// same suite, which pins the status-token protocol, the operator
// semantics, and the layout invariants.
package testing

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podstore/podstore/pkg/backend"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/space"
)

// RepoTestSuite exercises the Repo contract.
//
// Staleness tests mutate the store out of band and assume the derived key
// layout of the object backend: an object's key is the resource URI path
// relative to the space root. Suites over stores without conditional-write
// support skip the staleness tests.
type RepoTestSuite struct {
	// NewRepo creates a fresh, initialized repo plus the raw object store
	// backing it, registering cleanup on t.
	NewRepo func(t *testing.T) (repo.Repo, backend.ObjectStore)
}

// Run executes all tests in the suite.
func (suite *RepoTestSuite) Run(t *testing.T) {
	t.Run("RootIsRepresentedAndUndeletable", suite.testRootIsRepresentedAndUndeletable)
	t.Run("CreateReadRoundtrip", suite.testCreateReadRoundtrip)
	t.Run("CreateRejectsExistingName", suite.testCreateRejectsExistingName)
	t.Run("CreateKindMustMatchNameShape", suite.testCreateKindMustMatchNameShape)
	t.Run("SlashVariantConflicts", suite.testSlashVariantConflicts)
	t.Run("DeleteDetachesContainment", suite.testDeleteDetachesContainment)
	t.Run("DeleteNonEmptyContainerFails", suite.testDeleteNonEmptyContainerFails)
	t.Run("ReservedNamesRejected", suite.testReservedNamesRejected)
	t.Run("ReadAcceptMatching", suite.testReadAcceptMatching)
	t.Run("ContainmentRenderingReadable", suite.testContainmentRenderingReadable)
	t.Run("ContainmentRenderingImmutable", suite.testContainmentRenderingImmutable)
	t.Run("UpdateEvaluatesPreconditions", suite.testUpdateEvaluatesPreconditions)
	t.Run("StaleTokenUpdateFails", suite.testStaleTokenUpdateFails)
	t.Run("StaleTokenCreateFails", suite.testStaleTokenCreateFails)
	t.Run("AuxiliaryLifecycle", suite.testAuxiliaryLifecycle)
	t.Run("AuxiliaryOfAuxiliaryRejected", suite.testAuxiliaryOfAuxiliaryRejected)
	t.Run("NonRepresentedContainer", suite.testNonRepresentedContainer)
}

// ============================================================================
// Helpers
// ============================================================================

func resolve(t *testing.T, r repo.Repo, uri space.ResourceURI) *repo.StatusToken {
	t.Helper()
	tok, err := r.ResolveStatus(context.Background(), uri)
	require.NoError(t, err)
	return tok
}

// create establishes a resource, resolving fresh tokens for the target
// and its derived host.
func create(t *testing.T, r repo.Repo, uri space.ResourceURI, contentType, body string) *repo.CreateResult {
	t.Helper()
	res := resolve(t, r, uri)
	require.Equal(t, repo.TokenNonExistingConflictFree, res.Variant(), "target %s", uri)

	cand := res.CandidateSlot()
	require.NotNil(t, cand)
	hostID, ok := cand.HostSlotID()
	require.True(t, ok)
	relType, ok := cand.RevRelType()
	require.True(t, ok)

	host := resolve(t, r, hostID.URI)
	tokens, err := repo.NewCreateTokenSet(res, host)
	require.NoError(t, err)

	out, err := r.Create(context.Background(), repo.CreateRequest{
		Tokens:  tokens,
		Kind:    cand.Kind(),
		RelType: relType,
		Action:  repo.SetAction(repo.NewBytesRepresentation(contentType, []byte(body))),
	})
	require.NoError(t, err)
	return out
}

func readBody(t *testing.T, r repo.Repo, uri space.ResourceURI, accept ...string) (*repo.ReadResult, string) {
	t.Helper()
	tok := resolve(t, r, uri)
	require.Equal(t, repo.TokenExistingRepresented, tok.Variant())

	rr, err := r.Read(context.Background(), repo.ReadRequest{Token: tok, Accept: accept})
	require.NoError(t, err)
	defer rr.Representation.Data.Close()

	body, err := io.ReadAll(rr.Representation.Data)
	require.NoError(t, err)
	return rr, string(body)
}

func deleteResource(t *testing.T, r repo.Repo, uri space.ResourceURI) error {
	t.Helper()
	tok := resolve(t, r, uri)
	require.True(t, tok.IsExisting(), "deleting %s requires an existing resource", uri)
	return r.Delete(context.Background(), repo.DeleteRequest{Token: tok})
}

func childURI(r repo.Repo, rel string) space.ResourceURI {
	return r.Space().RootURI() + space.ResourceURI(rel)
}

// storeKey mirrors the object backend's derived key layout for
// out-of-band store mutations.
func storeKey(r repo.Repo, uri space.ResourceURI) string {
	return strings.TrimPrefix(uri.Path(), r.Space().RootURI().Path())
}

// ============================================================================
// Tests
// ============================================================================

func (suite *RepoTestSuite) testRootIsRepresentedAndUndeletable(t *testing.T) {
	r, _ := suite.NewRepo(t)
	root := r.Space().RootURI()

	tok := resolve(t, r, root)
	assert.Equal(t, repo.TokenExistingRepresented, tok.Variant())
	require.NotNil(t, tok.Slot())
	assert.True(t, tok.Slot().IsRoot())
	assert.Nil(t, tok.Slot().RevLink())

	err := r.Delete(context.Background(), repo.DeleteRequest{Token: tok})
	assert.True(t, repo.IsCode(err, repo.ErrInvalidArgument))
}

func (suite *RepoTestSuite) testCreateReadRoundtrip(t *testing.T) {
	r, _ := suite.NewRepo(t)

	create(t, r, childURI(r, "c1/"), "text/turtle", "<> a <#Container> .")
	out := create(t, r, childURI(r, "c1/r1"), "text/plain", "hello")
	assert.NotEmpty(t, out.Validators.ETag)
	assert.True(t, out.Slot.IsContainedSlot())

	rr, body := readBody(t, r, childURI(r, "c1/r1"))
	assert.Equal(t, "hello", body)
	assert.Equal(t, "text/plain", rr.Representation.Metadata.ContentType)

	rootRead, _ := readBody(t, r, r.Space().RootURI())
	assert.Contains(t, rootRead.Containment, childURI(r, "c1/"))
	assert.NotContains(t, rootRead.Containment, childURI(r, "c1/r1"))

	c1Read, _ := readBody(t, r, childURI(r, "c1/"))
	assert.Equal(t, []space.ResourceURI{childURI(r, "c1/r1")}, c1Read.Containment)
}

func (suite *RepoTestSuite) testCreateRejectsExistingName(t *testing.T) {
	r, _ := suite.NewRepo(t)

	create(t, r, childURI(r, "r1"), "text/plain", "first")

	tok := resolve(t, r, childURI(r, "r1"))
	assert.Equal(t, repo.TokenExistingRepresented, tok.Variant())

	host := resolve(t, r, r.Space().RootURI())
	_, err := repo.NewCreateTokenSet(tok, host)
	assert.True(t, repo.IsCode(err, repo.ErrTokenMismatch))
}

func (suite *RepoTestSuite) testCreateKindMustMatchNameShape(t *testing.T) {
	r, _ := suite.NewRepo(t)

	res := resolve(t, r, childURI(r, "c1/"))
	host := resolve(t, r, r.Space().RootURI())
	tokens, err := repo.NewCreateTokenSet(res, host)
	require.NoError(t, err)

	_, err = r.Create(context.Background(), repo.CreateRequest{
		Tokens:  tokens,
		Kind:    space.KindNonContainer,
		RelType: space.ContainsRel(),
		Action:  repo.SetAction(repo.NewBytesRepresentation("text/plain", []byte("x"))),
	})
	assert.True(t, repo.IsCode(err, repo.ErrInvalidArgument))
}

func (suite *RepoTestSuite) testSlashVariantConflicts(t *testing.T) {
	r, _ := suite.NewRepo(t)

	create(t, r, childURI(r, "c1/"), "text/turtle", "<> a <#Container> .")
	tok := resolve(t, r, childURI(r, "c1"))
	assert.Equal(t, repo.TokenNonExistingConflict, tok.Variant())
	assert.NotEmpty(t, tok.ConflictReason())

	create(t, r, childURI(r, "d1"), "text/plain", "x")
	tok = resolve(t, r, childURI(r, "d1/"))
	assert.Equal(t, repo.TokenNonExistingConflict, tok.Variant())
}

func (suite *RepoTestSuite) testDeleteDetachesContainment(t *testing.T) {
	r, _ := suite.NewRepo(t)

	create(t, r, childURI(r, "c1/"), "text/turtle", "<> a <#Container> .")
	create(t, r, childURI(r, "c1/r1"), "text/plain", "hello")

	require.NoError(t, deleteResource(t, r, childURI(r, "c1/r1")))

	tok := resolve(t, r, childURI(r, "c1/r1"))
	assert.Equal(t, repo.TokenNonExistingConflictFree, tok.Variant())

	c1Read, _ := readBody(t, r, childURI(r, "c1/"))
	assert.Empty(t, c1Read.Containment)

	require.NoError(t, deleteResource(t, r, childURI(r, "c1/")))
	tok = resolve(t, r, childURI(r, "c1/"))
	assert.Equal(t, repo.TokenNonExistingConflictFree, tok.Variant())
}

func (suite *RepoTestSuite) testDeleteNonEmptyContainerFails(t *testing.T) {
	r, _ := suite.NewRepo(t)

	create(t, r, childURI(r, "c1/"), "text/turtle", "<> a <#Container> .")
	create(t, r, childURI(r, "c1/r1"), "text/plain", "hello")

	err := deleteResource(t, r, childURI(r, "c1/"))
	assert.True(t, repo.IsCode(err, repo.ErrContainerNotEmpty))

	// The container and its child both survive the refused deletion.
	assert.Equal(t, repo.TokenExistingRepresented, resolve(t, r, childURI(r, "c1/")).Variant())
	assert.Equal(t, repo.TokenExistingRepresented, resolve(t, r, childURI(r, "c1/r1")).Variant())
}

func (suite *RepoTestSuite) testReservedNamesRejected(t *testing.T) {
	r, _ := suite.NewRepo(t)

	_, err := r.ResolveStatus(context.Background(), childURI(r, "r1._aux_bogus"))
	assert.True(t, repo.IsCode(err, repo.ErrInvalidArgument))

	outside := space.MustParseResourceURI("https://elsewhere.example/r1")
	_, err = r.ResolveStatus(context.Background(), outside)
	assert.True(t, repo.IsCode(err, repo.ErrInvalidArgument))
}

func (suite *RepoTestSuite) testReadAcceptMatching(t *testing.T) {
	r, _ := suite.NewRepo(t)

	create(t, r, childURI(r, "r1"), "text/plain", "hello")

	_, body := readBody(t, r, childURI(r, "r1"), "text/plain")
	assert.Equal(t, "hello", body)
	_, body = readBody(t, r, childURI(r, "r1"), "application/json", "text/*")
	assert.Equal(t, "hello", body)

	tok := resolve(t, r, childURI(r, "r1"))
	_, err := r.Read(context.Background(), repo.ReadRequest{Token: tok, Accept: []string{"application/json"}})
	assert.True(t, repo.IsCode(err, repo.ErrNotAcceptable))
}

func (suite *RepoTestSuite) testContainmentRenderingReadable(t *testing.T) {
	r, _ := suite.NewRepo(t)

	create(t, r, childURI(r, "c1/"), "text/turtle", "<> a <#Container> .")
	create(t, r, childURI(r, "c1/r1"), "text/plain", "hello")

	rr, body := readBody(t, r, childURI(r, "c1/"), repo.ContentTypeURIList)
	assert.Equal(t, repo.ContentTypeURIList, rr.Representation.Metadata.ContentType)
	assert.Contains(t, body, string(childURI(r, "c1/r1")))
}

func (suite *RepoTestSuite) testContainmentRenderingImmutable(t *testing.T) {
	r, _ := suite.NewRepo(t)

	create(t, r, childURI(r, "c1/"), "text/turtle", "<> a <#Container> .")

	tok := resolve(t, r, childURI(r, "c1/"))
	_, err := r.Update(context.Background(), repo.UpdateRequest{
		Token:  tok,
		Action: repo.SetAction(repo.NewBytesRepresentation(repo.ContentTypeURIList, []byte("https://x.example/\r\n"))),
	})
	assert.True(t, repo.IsCode(err, repo.ErrImmutableMetadata))
}

func (suite *RepoTestSuite) testUpdateEvaluatesPreconditions(t *testing.T) {
	r, _ := suite.NewRepo(t)

	create(t, r, childURI(r, "r1"), "text/plain", "v1")
	tok := resolve(t, r, childURI(r, "r1"))

	_, err := r.Update(context.Background(), repo.UpdateRequest{
		Token:         tok,
		Action:        repo.SetAction(repo.NewBytesRepresentation("text/plain", []byte("v2"))),
		Preconditions: repo.Preconditions{IfMatch: "bogus-etag"},
	})
	assert.True(t, repo.IsCode(err, repo.ErrPreconditionFailed))

	_, body := readBody(t, r, childURI(r, "r1"))
	assert.Equal(t, "v1", body)

	out, err := r.Update(context.Background(), repo.UpdateRequest{
		Token:         tok,
		Action:        repo.SetAction(repo.NewBytesRepresentation("text/plain", []byte("v2"))),
		Preconditions: repo.Preconditions{IfMatch: tok.Validators().ETag},
	})
	require.NoError(t, err)
	assert.NotEqual(t, tok.Validators().ETag, out.Validators.ETag)
}

func (suite *RepoTestSuite) testStaleTokenUpdateFails(t *testing.T) {
	r, store := suite.NewRepo(t)
	if !store.Capabilities().ConditionalPut {
		t.Skip("store has no conditional writes; staleness relies on name locking")
	}

	create(t, r, childURI(r, "r1"), "text/plain", "v1")
	stale := resolve(t, r, childURI(r, "r1"))

	// Out-of-band rewrite: the token's captured validators no longer
	// match the stored object.
	_, err := store.Put(context.Background(), storeKey(r, childURI(r, "r1")),
		strings.NewReader("interloper"), backend.PutOptions{ContentType: "text/plain"})
	require.NoError(t, err)

	_, err = r.Update(context.Background(), repo.UpdateRequest{
		Token:  stale,
		Action: repo.SetAction(repo.NewBytesRepresentation("text/plain", []byte("v2"))),
	})
	assert.True(t, repo.IsCode(err, repo.ErrPreconditionFailed))

	_, body := readBody(t, r, childURI(r, "r1"))
	assert.Equal(t, "interloper", body)
}

func (suite *RepoTestSuite) testStaleTokenCreateFails(t *testing.T) {
	r, store := suite.NewRepo(t)
	if !store.Capabilities().ConditionalPut {
		t.Skip("store has no conditional writes; staleness relies on name locking")
	}

	stale := resolve(t, r, childURI(r, "r1"))
	require.Equal(t, repo.TokenNonExistingConflictFree, stale.Variant())
	host := resolve(t, r, r.Space().RootURI())
	tokens, err := repo.NewCreateTokenSet(stale, host)
	require.NoError(t, err)

	// The name comes into existence after the tokens were resolved.
	create(t, r, childURI(r, "r1"), "text/plain", "winner")

	_, err = r.Create(context.Background(), repo.CreateRequest{
		Tokens:  tokens,
		Kind:    space.KindNonContainer,
		RelType: space.ContainsRel(),
		Action:  repo.SetAction(repo.NewBytesRepresentation("text/plain", []byte("loser"))),
	})
	assert.True(t, repo.IsCode(err, repo.ErrConflict))

	_, body := readBody(t, r, childURI(r, "r1"))
	assert.Equal(t, "winner", body)
}

func (suite *RepoTestSuite) testAuxiliaryLifecycle(t *testing.T) {
	r, _ := suite.NewRepo(t)
	sp := r.Space()

	create(t, r, childURI(r, "r1"), "text/plain", "hello")
	auxURI := sp.AuxURIOf(childURI(r, "r1"), space.AuxACL)

	create(t, r, auxURI, "text/turtle", "<> a <#Authorization> .")
	tok := resolve(t, r, auxURI)
	assert.Equal(t, repo.TokenExistingRepresented, tok.Variant())
	assert.True(t, tok.Slot().IsAuxSlot())

	// Auxiliaries never surface in containment.
	rootRead, _ := readBody(t, r, sp.RootURI())
	assert.NotContains(t, rootRead.Containment, auxURI)

	// The acl kind is RDF-source-only.
	_, err := r.Update(context.Background(), repo.UpdateRequest{
		Token:  tok,
		Action: repo.SetAction(repo.NewBytesRepresentation("image/png", []byte{0x89})),
	})
	assert.True(t, repo.IsCode(err, repo.ErrInvalidArgument))

	// Deleting the host deletes its auxiliaries.
	require.NoError(t, deleteResource(t, r, childURI(r, "r1")))
	tok = resolve(t, r, auxURI)
	assert.Equal(t, repo.TokenNonExistingConflictFree, tok.Variant())
}

// Auxiliaries attach to user resources only. A name treating an existing
// auxiliary as a host must be rejected, or deleting the user resource
// would strand it: host deletion only sweeps first-level auxiliaries.
func (suite *RepoTestSuite) testAuxiliaryOfAuxiliaryRejected(t *testing.T) {
	r, _ := suite.NewRepo(t)
	sp := r.Space()

	create(t, r, childURI(r, "r1"), "text/plain", "hello")
	auxURI := sp.AuxURIOf(childURI(r, "r1"), space.AuxACL)
	create(t, r, auxURI, "text/turtle", "<> a <#Authorization> .")

	nested := sp.AuxURIOf(auxURI, space.AuxACL)
	_, err := r.ResolveStatus(context.Background(), nested)
	assert.True(t, repo.IsCode(err, repo.ErrInvalidArgument),
		"aux of an aux must not resolve to a creatable name")
}

func (suite *RepoTestSuite) testNonRepresentedContainer(t *testing.T) {
	r, store := suite.NewRepo(t)

	create(t, r, childURI(r, "c1/"), "text/turtle", "<> a <#Container> .")
	create(t, r, childURI(r, "c1/r1"), "text/plain", "hello")

	// Strip the container's marker object: the container keeps existing
	// through its surviving child, without a representation.
	require.NoError(t, store.Delete(context.Background(), storeKey(r, childURI(r, "c1/"))))

	tok := resolve(t, r, childURI(r, "c1/"))
	require.Equal(t, repo.TokenExistingNonRepresented, tok.Variant())

	// Its slash variant is still conflicted.
	ctok := resolve(t, r, childURI(r, "c1"))
	assert.Equal(t, repo.TokenNonExistingConflict, ctok.Variant())

	// An update restores the representation.
	_, err := r.Update(context.Background(), repo.UpdateRequest{
		Token:  tok,
		Action: repo.SetAction(repo.NewBytesRepresentation("text/turtle", []byte("<> a <#Container> ."))),
	})
	require.NoError(t, err)
	assert.Equal(t, repo.TokenExistingRepresented, resolve(t, r, childURI(r, "c1/")).Variant())
}
