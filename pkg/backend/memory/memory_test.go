package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/podstore/podstore/pkg/backend"
	backendtesting "github.com/podstore/podstore/pkg/backend/testing"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSuite(t *testing.T) {
	suite := &backendtesting.StoreTestSuite{
		NewStore: func(t *testing.T) backend.ObjectStore {
			return New()
		},
	}
	suite.Run(t)
}

func TestMemoryStoreCapacityLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("MaxBytes", func(t *testing.T) {
		s := New(WithMaxBytes(8))

		_, err := s.Put(ctx, "a", strings.NewReader("12345"), backend.PutOptions{})
		require.NoError(t, err)

		_, err = s.Put(ctx, "b", strings.NewReader("12345"), backend.PutOptions{})
		require.ErrorIs(t, err, backend.ErrCapacityExceeded)

		// Rewriting an existing key within the budget is fine.
		_, err = s.Put(ctx, "a", strings.NewReader("12345678"), backend.PutOptions{})
		require.NoError(t, err)

		// Deleting frees the budget.
		require.NoError(t, s.Delete(ctx, "a"))
		_, err = s.Put(ctx, "b", strings.NewReader("12345"), backend.PutOptions{})
		require.NoError(t, err)
	})

	t.Run("MaxObjects", func(t *testing.T) {
		s := New(WithMaxObjects(1))

		_, err := s.Put(ctx, "a", strings.NewReader("x"), backend.PutOptions{})
		require.NoError(t, err)

		_, err = s.Put(ctx, "b", strings.NewReader("y"), backend.PutOptions{})
		require.ErrorIs(t, err, backend.ErrCapacityExceeded)

		// Overwrite of an existing object is not a new object.
		_, err = s.Put(ctx, "a", strings.NewReader("z"), backend.PutOptions{})
		require.NoError(t, err)
	})
}
