package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/storage"
)

type observation struct {
	op     string
	status string
}

// recordingMetrics captures observations for assertions.
type recordingMetrics struct {
	mu        sync.Mutex
	ops       []observation
	lockWaits int
}

func (m *recordingMetrics) ObserveOperation(op, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, observation{op: op, status: status})
}

func (m *recordingMetrics) ObserveLockWait(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockWaits++
}

func (m *recordingMetrics) observed() []observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]observation(nil), m.ops...)
}

func TestMetricsObserveOperations(t *testing.T) {
	rec := &recordingMetrics{}
	svc := newService(t, storage.WithMetrics(rec))
	ctx := context.Background()
	root := svc.Space().RootURI()
	doc := root + "doc"

	_, err := svc.Put(ctx, doc, plain("hello"), repo.Preconditions{})
	require.NoError(t, err)

	_, err = svc.Get(ctx, doc)
	require.NoError(t, err)

	_, err = svc.Get(ctx, root+"missing")
	require.Error(t, err)

	require.NoError(t, svc.Delete(ctx, doc))

	assert.Equal(t, []observation{
		{op: "put", status: "ok"},
		{op: "get", status: "ok"},
		{op: "get", status: "NotFound"},
		{op: "delete", status: "ok"},
	}, rec.observed())

	rec.mu.Lock()
	waits := rec.lockWaits
	rec.mu.Unlock()
	assert.GreaterOrEqual(t, waits, 4, "each operation waits for its name locks")
}

func TestMetricsNilIsSilent(t *testing.T) {
	svc := newService(t, storage.WithMetrics(nil))
	ctx := context.Background()

	_, err := svc.Put(ctx, svc.Space().RootURI()+"doc", plain("x"), repo.Preconditions{})
	require.NoError(t, err)
}
