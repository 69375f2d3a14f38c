package patching_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podstore/podstore/pkg/backend/memory"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/repo/layers/patching"
	"github.com/podstore/podstore/pkg/repo/object"
	"github.com/podstore/podstore/pkg/space"
)

// appendPatcher treats the patch document as bytes to append to the
// current representation.
type appendPatcher struct{}

func (appendPatcher) Apply(_ context.Context, current *repo.Representation, patch *repo.Patch) (*repo.Representation, error) {
	var base []byte
	contentType := "text/plain"
	if current != nil {
		b, err := io.ReadAll(current.Data)
		if err != nil {
			return nil, err
		}
		base = b
		contentType = current.Metadata.ContentType
	}
	return repo.NewBytesRepresentation(contentType, append(base, patch.Document...)), nil
}

func newPatchingRepo(t *testing.T) repo.Repo {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })

	sp, err := space.NewStorageSpace(
		space.MustParseResourceURI("https://pod.example/alice/"),
		[]string{"https://pod.example/alice/profile#me"},
	)
	require.NoError(t, err)

	r := patching.New(object.New(sp, store), appendPatcher{})
	require.NoError(t, r.Initialize(context.Background()))
	return r
}

func patchOf(body string) repo.RepUpdateAction {
	return repo.PatchAction(&repo.Patch{ContentType: "text/plain", Document: []byte(body)})
}

func TestCreateViaPatch(t *testing.T) {
	r := newPatchingRepo(t)
	ctx := context.Background()
	uri := r.Space().RootURI() + "r1"

	res, err := r.ResolveStatus(ctx, uri)
	require.NoError(t, err)
	host, err := r.ResolveStatus(ctx, r.Space().RootURI())
	require.NoError(t, err)
	tokens, err := repo.NewCreateTokenSet(res, host)
	require.NoError(t, err)

	_, err = r.Create(ctx, repo.CreateRequest{
		Tokens:  tokens,
		Kind:    space.KindNonContainer,
		RelType: space.ContainsRel(),
		Action:  patchOf("hello"),
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", read(t, r, uri))
}

func TestUpdateViaPatchAppliesAgainstCurrent(t *testing.T) {
	r := newPatchingRepo(t)
	ctx := context.Background()
	uri := r.Space().RootURI() + "r1"

	createPlain(t, r, uri, "hello")

	tok, err := r.ResolveStatus(ctx, uri)
	require.NoError(t, err)
	_, err = r.Update(ctx, repo.UpdateRequest{Token: tok, Action: patchOf(" world")})
	require.NoError(t, err)

	assert.Equal(t, "hello world", read(t, r, uri))
}

func createPlain(t *testing.T, r repo.Repo, uri space.ResourceURI, body string) {
	t.Helper()
	ctx := context.Background()

	res, err := r.ResolveStatus(ctx, uri)
	require.NoError(t, err)
	host, err := r.ResolveStatus(ctx, r.Space().RootURI())
	require.NoError(t, err)
	tokens, err := repo.NewCreateTokenSet(res, host)
	require.NoError(t, err)

	_, err = r.Create(ctx, repo.CreateRequest{
		Tokens:  tokens,
		Kind:    space.KindNonContainer,
		RelType: space.ContainsRel(),
		Action:  repo.SetAction(repo.NewBytesRepresentation("text/plain", []byte(body))),
	})
	require.NoError(t, err)
}

func read(t *testing.T, r repo.Repo, uri space.ResourceURI) string {
	t.Helper()
	ctx := context.Background()

	tok, err := r.ResolveStatus(ctx, uri)
	require.NoError(t, err)
	rr, err := r.Read(ctx, repo.ReadRequest{Token: tok})
	require.NoError(t, err)
	defer rr.Representation.Data.Close()

	body, err := io.ReadAll(rr.Representation.Data)
	require.NoError(t, err)
	return string(body)
}
