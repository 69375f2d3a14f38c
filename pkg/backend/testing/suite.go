// Package testing provides a conformance test suite for ObjectStore
// implementations. It tests the interface contract, not implementation
// details, so every backend runs the same suite.
package testing

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/podstore/podstore/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite exercises the ObjectStore contract.
type StoreTestSuite struct {
	// NewStore creates a fresh store for each test, registering cleanup
	// on t.
	NewStore func(t *testing.T) backend.ObjectStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("PutGetRoundtrip", suite.testPutGetRoundtrip)
	t.Run("HeadAbsentKey", suite.testHeadAbsentKey)
	t.Run("GetAbsentKey", suite.testGetAbsentKey)
	t.Run("ETagChangesOnRewrite", suite.testETagChangesOnRewrite)
	t.Run("DeleteIsIdempotent", suite.testDeleteIsIdempotent)
	t.Run("ListDelimited", suite.testListDelimited)
	t.Run("ConditionalPut", suite.testConditionalPut)
}

func put(t *testing.T, s backend.ObjectStore, key, body, contentType string) *backend.ObjectMeta {
	t.Helper()
	meta, err := s.Put(context.Background(), key, strings.NewReader(body), backend.PutOptions{
		ContentType: contentType,
	})
	require.NoError(t, err)
	return meta
}

func (suite *StoreTestSuite) testPutGetRoundtrip(t *testing.T) {
	s := suite.NewStore(t)
	ctx := context.Background()

	meta := put(t, s, "docs/report", "hello", "text/plain")
	assert.Equal(t, int64(5), meta.Size)
	assert.NotEmpty(t, meta.ETag)

	obj, err := s.Get(ctx, "docs/report")
	require.NoError(t, err)
	defer obj.Data.Close()

	body, err := io.ReadAll(obj.Data)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "text/plain", obj.Meta.ContentType)
	assert.Equal(t, meta.ETag, obj.Meta.ETag)

	head, err := s.Head(ctx, "docs/report")
	require.NoError(t, err)
	assert.Equal(t, meta.ETag, head.ETag)
}

func (suite *StoreTestSuite) testHeadAbsentKey(t *testing.T) {
	s := suite.NewStore(t)

	_, err := s.Head(context.Background(), "absent")
	require.ErrorIs(t, err, backend.ErrKeyNotFound)
}

func (suite *StoreTestSuite) testGetAbsentKey(t *testing.T) {
	s := suite.NewStore(t)

	_, err := s.Get(context.Background(), "absent")
	require.ErrorIs(t, err, backend.ErrKeyNotFound)
}

func (suite *StoreTestSuite) testETagChangesOnRewrite(t *testing.T) {
	s := suite.NewStore(t)

	first := put(t, s, "k", "v1", "text/plain")
	second := put(t, s, "k", "v2", "text/plain")
	assert.NotEqual(t, first.ETag, second.ETag, "every write must produce a fresh validator")
}

func (suite *StoreTestSuite) testDeleteIsIdempotent(t *testing.T) {
	s := suite.NewStore(t)
	ctx := context.Background()

	put(t, s, "k", "v", "text/plain")
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"), "deleting an absent key is not an error")

	_, err := s.Head(ctx, "k")
	require.ErrorIs(t, err, backend.ErrKeyNotFound)
}

func (suite *StoreTestSuite) testListDelimited(t *testing.T) {
	s := suite.NewStore(t)
	ctx := context.Background()

	put(t, s, "c1/", "", "text/turtle")
	put(t, s, "c1/r1", "a", "text/plain")
	put(t, s, "c1/c2/", "", "text/turtle")
	put(t, s, "c1/c2/deep", "b", "text/plain")
	put(t, s, "top", "c", "text/plain")

	// Immediate children of c1/: one object, one sub-prefix. The marker
	// of c1/ itself is not a child.
	entries, err := s.List(ctx, "c1/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, backend.Entry{Key: "c1/c2/", IsPrefix: true}, entries[0])
	assert.Equal(t, backend.Entry{Key: "c1/r1"}, entries[1])

	// Top-level listing rolls everything under c1/ into one prefix.
	entries, err = s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, backend.Entry{Key: "c1/", IsPrefix: true}, entries[0])
	assert.Equal(t, backend.Entry{Key: "top"}, entries[1])

	// Empty prefix set.
	entries, err = s.List(ctx, "absent/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (suite *StoreTestSuite) testConditionalPut(t *testing.T) {
	s := suite.NewStore(t)
	ctx := context.Background()

	if !s.Capabilities().ConditionalPut {
		t.Skip("store does not support conditional writes")
	}

	// If-None-Match on a fresh key succeeds, on an occupied key fails.
	meta, err := s.Put(ctx, "k", strings.NewReader("v1"), backend.PutOptions{IfNoneMatch: true})
	require.NoError(t, err)

	_, err = s.Put(ctx, "k", strings.NewReader("v2"), backend.PutOptions{IfNoneMatch: true})
	require.ErrorIs(t, err, backend.ErrPreconditionFailed)

	// If-Match with the current validator succeeds and rotates it.
	meta2, err := s.Put(ctx, "k", strings.NewReader("v2"), backend.PutOptions{IfMatch: meta.ETag})
	require.NoError(t, err)
	assert.NotEqual(t, meta.ETag, meta2.ETag)

	// Stale validator fails and must not overwrite.
	_, err = s.Put(ctx, "k", strings.NewReader("v3"), backend.PutOptions{IfMatch: meta.ETag})
	require.ErrorIs(t, err, backend.ErrPreconditionFailed)

	obj, err := s.Get(ctx, "k")
	require.NoError(t, err)
	defer obj.Data.Close()
	body, err := io.ReadAll(obj.Data)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(body))

	// If-Match on an absent key fails.
	_, err = s.Put(ctx, "absent", strings.NewReader("v"), backend.PutOptions{IfMatch: "deadbeef"})
	require.ErrorIs(t, err, backend.ErrPreconditionFailed)
}
