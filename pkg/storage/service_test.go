package storage_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podstore/podstore/pkg/backend/memory"
	"github.com/podstore/podstore/pkg/locker"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/repo/object"
	"github.com/podstore/podstore/pkg/space"
	"github.com/podstore/podstore/pkg/storage"
)

func newService(t *testing.T, opts ...storage.Option) *storage.Service {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })

	sp, err := space.NewStorageSpace(
		space.MustParseResourceURI("https://pod.example/alice/"),
		[]string{"https://pod.example/alice/profile#me"},
	)
	require.NoError(t, err)

	svc := storage.NewService(object.New(sp, store), locker.NewInMemNameLocker(), opts...)
	require.NoError(t, svc.Initialize(context.Background()))
	return svc
}

func plain(body string) *repo.Representation {
	return repo.NewBytesRepresentation("text/plain", []byte(body))
}

func turtle(body string) *repo.Representation {
	return repo.NewBytesRepresentation("text/turtle", []byte(body))
}

func body(t *testing.T, rr *repo.ReadResult) string {
	t.Helper()
	defer rr.Representation.Data.Close()
	b, err := io.ReadAll(rr.Representation.Data)
	require.NoError(t, err)
	return string(b)
}

func TestServiceLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	root := svc.Space().RootURI()

	// Build a small tree, then tear it down bottom-up.
	out, err := svc.Put(ctx, root+"docs/", turtle("<> a <#Container> ."), repo.Preconditions{})
	require.NoError(t, err)
	assert.True(t, out.Created)

	out, err = svc.Put(ctx, root+"docs/report", plain("q3 numbers"), repo.Preconditions{})
	require.NoError(t, err)
	assert.True(t, out.Created)

	rr, err := svc.Get(ctx, root+"docs/report")
	require.NoError(t, err)
	assert.Equal(t, "q3 numbers", body(t, rr))

	rr, err = svc.Get(ctx, root+"docs/")
	require.NoError(t, err)
	rr.Representation.Data.Close()
	assert.Equal(t, []space.ResourceURI{root + "docs/report"}, rr.Containment)

	err = svc.Delete(ctx, root+"docs/")
	assert.True(t, repo.IsCode(err, repo.ErrContainerNotEmpty))

	require.NoError(t, svc.Delete(ctx, root+"docs/report"))
	require.NoError(t, svc.Delete(ctx, root+"docs/"))

	_, err = svc.Get(ctx, root+"docs/report")
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))
}

func TestPutUpdatesInPlace(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	uri := svc.Space().RootURI() + "r1"

	first, err := svc.Put(ctx, uri, plain("v1"), repo.Preconditions{})
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := svc.Put(ctx, uri, plain("v2"), repo.Preconditions{})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.NotEqual(t, first.Validators.ETag, second.Validators.ETag)

	rr, err := svc.Get(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, "v2", body(t, rr))
}

func TestPutHonorsPreconditions(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	uri := svc.Space().RootURI() + "r1"

	out, err := svc.Put(ctx, uri, plain("v1"), repo.Preconditions{})
	require.NoError(t, err)

	_, err = svc.Put(ctx, uri, plain("v2"), repo.Preconditions{IfMatch: "stale"})
	assert.True(t, repo.IsCode(err, repo.ErrPreconditionFailed))

	_, err = svc.Put(ctx, uri, plain("v2"), repo.Preconditions{IfMatch: out.Validators.ETag})
	assert.NoError(t, err)

	// A conditional write against an absent resource never creates it.
	_, err = svc.Put(ctx, svc.Space().RootURI()+"absent", plain("x"), repo.Preconditions{IfMatch: "*"})
	assert.True(t, repo.IsCode(err, repo.ErrPreconditionFailed))
}

func TestPutIntoMissingHostFails(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Put(ctx, svc.Space().RootURI()+"nowhere/r1", plain("x"), repo.Preconditions{})
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))
}

func TestPutSlashVariantConflict(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	root := svc.Space().RootURI()

	_, err := svc.Put(ctx, root+"c1/", turtle("<> a <#Container> ."), repo.Preconditions{})
	require.NoError(t, err)

	_, err = svc.Put(ctx, root+"c1", plain("x"), repo.Preconditions{})
	assert.True(t, repo.IsCode(err, repo.ErrConflict))
}

func TestRacingPutsCreateExactlyOnce(t *testing.T) {
	svc := newService(t)
	uri := svc.Space().RootURI() + "r1"

	const racers = 16
	var created int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Put(context.Background(), uri, plain("racer"), repo.Preconditions{})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			if out.Created {
				created++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created, "exactly one racer observes the creation")
}

func TestCreateInHonorsSlug(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	root := svc.Space().RootURI()

	out, err := svc.CreateIn(ctx, root, "notes", space.KindNonContainer, plain("n1"))
	require.NoError(t, err)
	assert.Equal(t, root+"notes", out.Slot.URI())

	// A taken slug falls back to a generated name.
	out, err = svc.CreateIn(ctx, root, "notes", space.KindNonContainer, plain("n2"))
	require.NoError(t, err)
	assert.NotEqual(t, root+"notes", out.Slot.URI())
	assert.True(t, out.Slot.IsContainedSlot())
}

func TestCreateInContainerKind(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	root := svc.Space().RootURI()

	out, err := svc.CreateIn(ctx, root, "inbox", space.KindContainer, turtle("<> a <#Container> ."))
	require.NoError(t, err)
	assert.Equal(t, root+"inbox/", out.Slot.URI())
	assert.True(t, out.Slot.IsContainer())

	_, err = svc.CreateIn(ctx, root+"inbox", "x", space.KindNonContainer, plain("x"))
	assert.True(t, repo.IsCode(err, repo.ErrInvalidArgument))
}

func TestDeleteRemovesAuxiliaries(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	root := svc.Space().RootURI()
	uri := root + "r1"
	auxURI := svc.Space().AuxURIOf(uri, space.AuxACL)

	_, err := svc.Put(ctx, uri, plain("hello"), repo.Preconditions{})
	require.NoError(t, err)
	_, err = svc.Put(ctx, auxURI, turtle("<> a <#Authorization> ."), repo.Preconditions{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, uri))

	_, err = svc.Get(ctx, auxURI)
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))
}

func TestStatSnapshotsStatus(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	tok, err := svc.Stat(ctx, svc.Space().RootURI())
	require.NoError(t, err)
	assert.Equal(t, repo.TokenExistingRepresented, tok.Variant())

	tok, err = svc.Stat(ctx, svc.Space().RootURI()+"absent")
	require.NoError(t, err)
	assert.Equal(t, repo.TokenNonExistingConflictFree, tok.Variant())
}

func TestDeleteAbsentResource(t *testing.T) {
	svc := newService(t)

	err := svc.Delete(context.Background(), svc.Space().RootURI()+"absent")
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))
}
