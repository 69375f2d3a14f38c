package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The registry is process-global and write-once, so the disabled case
// must run before any test initializes it.
func TestStorageMetricsLifecycle(t *testing.T) {
	require.Nil(t, NewStorageMetrics("alice"), "constructors return nil before InitRegistry")
	require.False(t, IsEnabled())

	InitRegistry()
	InitRegistry() // idempotent
	require.True(t, IsEnabled())
	require.NotNil(t, GetRegistry())

	m := NewStorageMetrics("alice")
	require.NotNil(t, m)

	m.ObserveOperation("put", "ok", 5*time.Millisecond)
	m.ObserveOperation("put", "ok", time.Millisecond)
	m.ObserveOperation("get", "NotFound", time.Millisecond)
	m.ObserveLockWait(time.Microsecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collectors.operations.WithLabelValues("alice", "put", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.operations.WithLabelValues("alice", "get", "NotFound")))
}

func TestPodsShareCollectors(t *testing.T) {
	InitRegistry()

	a := NewStorageMetrics("pod-a")
	b := NewStorageMetrics("pod-b")
	require.NotNil(t, a)
	require.NotNil(t, b)

	a.ObserveOperation("delete", "ok", time.Millisecond)
	b.ObserveOperation("delete", "ok", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.operations.WithLabelValues("pod-a", "delete", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.operations.WithLabelValues("pod-b", "delete", "ok")))
}
