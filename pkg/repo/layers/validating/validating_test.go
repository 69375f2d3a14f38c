package validating_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podstore/podstore/pkg/backend/memory"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/repo/layers/validating"
	"github.com/podstore/podstore/pkg/repo/object"
	"github.com/podstore/podstore/pkg/space"
)

// sizeCapValidator rejects representations above a byte cap.
type sizeCapValidator struct {
	cap int64
}

func (v sizeCapValidator) Validate(_ context.Context, uc *repo.UpdateContext) error {
	if uc.Incoming != nil && uc.Incoming.Metadata.Size > v.cap {
		return repo.NewError(repo.ErrCapacityExceeded,
			"representation exceeds the configured size cap", string(uc.Slot.URI()))
	}
	return nil
}

func newValidatingRepo(t *testing.T, validators ...repo.UpdateValidator) repo.Repo {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })

	sp, err := space.NewStorageSpace(
		space.MustParseResourceURI("https://pod.example/alice/"),
		[]string{"https://pod.example/alice/profile#me"},
	)
	require.NoError(t, err)

	r := validating.New(object.New(sp, store), validators...)
	require.NoError(t, r.Initialize(context.Background()))
	return r
}

func TestValidatorRejectsCreate(t *testing.T) {
	r := newValidatingRepo(t, sizeCapValidator{cap: 4})
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
		Action:  repo.SetAction(repo.NewBytesRepresentation("text/plain", []byte("too large"))),
	})
	assert.True(t, repo.IsCode(err, repo.ErrCapacityExceeded))

	// The inner repo was never reached.
	tok, err := r.ResolveStatus(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, repo.TokenNonExistingConflictFree, tok.Variant())
}

func TestValidatorRejectsUpdate(t *testing.T) {
	r := newValidatingRepo(t, sizeCapValidator{cap: 1 << 10})
	ctx := context.Background()

	tok, err := r.ResolveStatus(ctx, r.Space().RootURI())
	require.NoError(t, err)

	capped := validating.New(r, sizeCapValidator{cap: 4})
	_, err = capped.Update(ctx, repo.UpdateRequest{
		Token:  tok,
		Action: repo.SetAction(repo.NewBytesRepresentation("text/turtle", []byte("<> a <#Container> ."))),
	})
	assert.True(t, repo.IsCode(err, repo.ErrCapacityExceeded))
}

func TestStockContainerRepProtector(t *testing.T) {
	r := newValidatingRepo(t, validating.ContainerRepProtector{})
	ctx := context.Background()

	tok, err := r.ResolveStatus(ctx, r.Space().RootURI())
	require.NoError(t, err)

	_, err = r.Update(ctx, repo.UpdateRequest{
		Token:  tok,
		Action: repo.SetAction(repo.NewBytesRepresentation(repo.ContentTypeURIList, []byte("https://x.example/\r\n"))),
	})
	assert.True(t, repo.IsCode(err, repo.ErrImmutableMetadata))
}

func TestStockAuxRepProtector(t *testing.T) {
	r := newValidatingRepo(t)
	sp := r.Space()
	v := validating.AuxRepProtector{Space: sp}

	slot, err := space.DeriveSlot(sp, sp.AuxURIOf(sp.RootURI()+"r1", space.AuxACL))
	require.NoError(t, err)

	err = v.Validate(context.Background(), &repo.UpdateContext{
		Slot:     slot,
		Incoming: repo.NewBytesRepresentation("image/png", []byte{0x89}),
	})
	assert.True(t, repo.IsCode(err, repo.ErrInvalidArgument))

	err = v.Validate(context.Background(), &repo.UpdateContext{
		Slot:     slot,
		Incoming: repo.NewBytesRepresentation("text/turtle", []byte("<> a <#Authorization> .")),
	})
	assert.NoError(t, err)
}
