package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/space"
)

func TestCreateObjectStoreMemory(t *testing.T) {
	store, err := CreateObjectStore(context.Background(), &StoreConfig{
		Name:   "mem",
		Type:   "memory",
		Memory: map[string]any{"max_bytes": 1024, "max_objects": 16},
	})
	require.NoError(t, err)
	defer store.Close()

	assert.True(t, store.Capabilities().ConditionalPut)
}

func TestCreateObjectStoreBadger(t *testing.T) {
	store, err := CreateObjectStore(context.Background(), &StoreConfig{
		Name:   "kv",
		Type:   "badger",
		Badger: map[string]any{"dir": t.TempDir()},
	})
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestCreateObjectStoreRejectsBadConfig(t *testing.T) {
	_, err := CreateObjectStore(context.Background(), &StoreConfig{Name: "x", Type: "carrier-pigeon"})
	assert.Error(t, err)

	_, err = CreateObjectStore(context.Background(), &StoreConfig{Name: "kv", Type: "badger"})
	assert.Error(t, err, "badger requires a dir unless in-memory")

	_, err = CreateObjectStore(context.Background(), &StoreConfig{
		Name: "s3",
		Type: "s3",
		S3:   map[string]any{"region": "eu-west-1"},
	})
	assert.Error(t, err, "s3 requires a bucket")
}

func testConfig() *Config {
	cfg := &Config{
		Pods: []PodConfig{{
			Name:   "alice",
			Root:   "https://pod.example/alice/",
			Owners: []string{"https://pod.example/alice/profile#me"},
			Store:  "default",
		}},
	}
	ApplyDefaults(cfg)
	return cfg
}

func TestBuildRegistry(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	reg, err := BuildRegistry(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	pod, ok := reg.GetPod("alice")
	require.True(t, ok)

	// The pod is initialized and serves its root.
	rr, err := pod.Service.Get(ctx, pod.Space().RootURI())
	require.NoError(t, err)
	rr.Representation.Data.Close()

	// The stack carries the stock validators.
	_, err = pod.Service.Put(ctx, pod.Space().RootURI(),
		repo.NewBytesRepresentation(repo.ContentTypeURIList, []byte("https://x.example/\r\n")),
		repo.Preconditions{})
	assert.True(t, repo.IsCode(err, repo.ErrImmutableMetadata))
}

func TestBuildRegistryStackNegotiatesReads(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	reg, err := BuildRegistry(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	pod, _ := reg.GetPod("alice")
	uri := pod.Space().RootURI() + "r1"
	_, err = pod.Service.Put(ctx, uri,
		repo.NewBytesRepresentation("text/plain", []byte("hello")), repo.Preconditions{})
	require.NoError(t, err)

	// The stock stack has a pass-through negotiator: matching accept
	// lists read the stored representation, mismatching ones fail.
	rr, err := pod.Service.Get(ctx, uri, "text/*")
	require.NoError(t, err)
	rr.Representation.Data.Close()

	_, err = pod.Service.Get(ctx, uri, "application/json")
	assert.True(t, repo.IsCode(err, repo.ErrNotAcceptable))
}

func TestBuildRegistryReadOnlyPod(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Pods[0].ReadOnly = true

	reg, err := BuildRegistry(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	pod, _ := reg.GetPod("alice")
	_, err = pod.Service.Put(ctx, pod.Space().RootURI()+"r1",
		repo.NewBytesRepresentation("text/plain", []byte("x")), repo.Preconditions{})
	assert.True(t, repo.IsCode(err, repo.ErrAccessDenied))
}

func TestBuildRegistryOwnerOnlyWritesPod(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Pods[0].OwnerOnlyWrites = true

	reg, err := BuildRegistry(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	pod, _ := reg.GetPod("alice")
	uri := pod.Space().RootURI() + "r1"
	rep := func(body string) *repo.Representation {
		return repo.NewBytesRepresentation("text/plain", []byte(body))
	}

	_, err = pod.Service.Put(ctx, uri, rep("x"), repo.Preconditions{})
	assert.True(t, repo.IsCode(err, repo.ErrAccessDenied))

	owner := repo.WithAgent(ctx, "https://pod.example/alice/profile#me")
	_, err = pod.Service.Put(owner, uri, rep("x"), repo.Preconditions{})
	assert.NoError(t, err)
}

func TestBuildRegistryReadOnlyInitializes(t *testing.T) {
	// Pod initialization happens through the backend repo, so a
	// read-only policy must not block provisioning.
	ctx := context.Background()
	cfg := testConfig()
	cfg.Pods[0].ReadOnly = true

	reg, err := BuildRegistry(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	pod, _ := reg.GetPod("alice")
	tok, err := pod.Service.Stat(ctx, pod.Space().RootURI())
	require.NoError(t, err)
	assert.Equal(t, repo.TokenExistingRepresented, tok.Variant())
}

func TestOverlapDetection(t *testing.T) {
	assert.True(t, hasPrefixURI(
		space.MustParseResourceURI("https://pod.example/alice/inner/"),
		space.MustParseResourceURI("https://pod.example/alice/")))
	assert.False(t, hasPrefixURI(
		space.MustParseResourceURI("https://pod.example/alice/"),
		space.MustParseResourceURI("https://pod.example/bob/")))
}
