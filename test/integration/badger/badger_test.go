//go:build integration

package badger_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podstore/podstore/pkg/backend"
	badgerstore "github.com/podstore/podstore/pkg/backend/badger"
	backendtest "github.com/podstore/podstore/pkg/backend/testing"
	"github.com/podstore/podstore/pkg/locker"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/repo/object"
	"github.com/podstore/podstore/pkg/space"
	"github.com/podstore/podstore/pkg/storage"
)

// Run with: go test -tags=integration ./test/integration/badger/...
//
// No external services are needed; these tests exercise the on-disk
// Badger store rather than the in-memory mode the unit tests use.

func TestOnDiskStoreContract(t *testing.T) {
	suite := backendtest.StoreTestSuite{
		NewStore: func(t *testing.T) backend.ObjectStore {
			store, err := badgerstore.New(badgerstore.Options{
				Dir: filepath.Join(t.TempDir(), "objects"),
			})
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
	suite.Run(t)
}

func TestObjectsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "objects")

	store, err := badgerstore.New(badgerstore.Options{Dir: dir, SyncWrites: true})
	require.NoError(t, err)
	first, err := store.Put(ctx, "docs/note", strings.NewReader("first draft"), backend.PutOptions{
		ContentType: "text/plain",
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := badgerstore.New(badgerstore.Options{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	obj, err := reopened.Get(ctx, "docs/note")
	require.NoError(t, err)
	defer obj.Data.Close()
	b, err := io.ReadAll(obj.Data)
	require.NoError(t, err)
	assert.Equal(t, "first draft", string(b))
	assert.Equal(t, first.ETag, obj.Meta.ETag)
}

func TestPodSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "pod")

	sp, err := space.NewStorageSpace(
		space.MustParseResourceURI("https://pod.example/alice/"),
		[]string{"https://pod.example/alice/profile#me"},
	)
	require.NoError(t, err)
	root := sp.RootURI()

	store, err := badgerstore.New(badgerstore.Options{Dir: dir, SyncWrites: true})
	require.NoError(t, err)
	svc := storage.NewService(object.New(sp, store), locker.NewInMemNameLocker())
	require.NoError(t, svc.Initialize(ctx))

	_, err = svc.Put(ctx, root+"notes/", repo.NewBytesRepresentation("text/turtle", []byte("<> a <#Container> .")), repo.Preconditions{})
	require.NoError(t, err)
	_, err = svc.Put(ctx, root+"notes/today", repo.NewBytesRepresentation("text/plain", []byte("buy milk")), repo.Preconditions{})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// A new process over the same directory sees the same resource tree.
	store, err = badgerstore.New(badgerstore.Options{Dir: dir})
	require.NoError(t, err)
	defer store.Close()
	svc = storage.NewService(object.New(sp, store), locker.NewInMemNameLocker())
	require.NoError(t, svc.Initialize(ctx))

	rr, err := svc.Get(ctx, root+"notes/today")
	require.NoError(t, err)
	defer rr.Representation.Data.Close()
	b, err := io.ReadAll(rr.Representation.Data)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", string(b))

	rootRead, err := svc.Get(ctx, root)
	require.NoError(t, err)
	rootRead.Representation.Data.Close()
	assert.Contains(t, rootRead.Containment, root+"notes/")
}
