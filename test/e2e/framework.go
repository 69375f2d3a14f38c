// Package e2e tests the whole server assembly: configuration in,
// provisioned pods out, every operation routed through the full layer
// stack the way cmd/podstore wires it.
package e2e

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/podstore/podstore/pkg/config"
	"github.com/podstore/podstore/pkg/registry"
)

// TestContext holds a provisioned registry for one store configuration.
type TestContext struct {
	Config *config.Config
	Reg    *registry.Registry
}

// storeConfigs returns, per backend type, one store entry for each pod.
// Object keys are space-relative, so every pod gets its own entry.
func storeConfigs(t *testing.T) map[string][]config.StoreConfig {
	return map[string][]config.StoreConfig{
		"memory": {
			{Name: "alice-store", Type: "memory"},
			{Name: "bob-store", Type: "memory"},
		},
		"badger": {
			{Name: "alice-store", Type: "badger", Badger: map[string]any{"dir": filepath.Join(t.TempDir(), "alice")}},
			{Name: "bob-store", Type: "badger", Badger: map[string]any{"dir": filepath.Join(t.TempDir(), "bob")}},
		},
	}
}

// runOnAllConfigs runs a scenario once per store configuration.
func runOnAllConfigs(t *testing.T, fn func(t *testing.T, tc *TestContext)) {
	for name, stores := range storeConfigs(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, newTestContext(t, stores))
		})
	}
}

func newTestContext(t *testing.T, stores []config.StoreConfig) *TestContext {
	t.Helper()

	cfg := &config.Config{
		Stores: stores,
		Pods: []config.PodConfig{
			{
				Name:   "alice",
				Root:   "https://pod.example/alice/",
				Owners: []string{"https://pod.example/alice/profile#me"},
				Store:  "alice-store",
			},
			{
				Name:            "bob",
				Root:            "https://pod.example/bob/",
				Owners:          []string{"https://pod.example/bob/profile#me"},
				Store:           "bob-store",
				OwnerOnlyWrites: true,
			},
		},
	}
	config.ApplyDefaults(cfg)
	cfg.Locking.Timeout = 5 * time.Second
	require.NoError(t, config.Validate(cfg))

	reg, err := config.BuildRegistry(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	return &TestContext{Config: cfg, Reg: reg}
}

// Pod returns the named pod, failing the test when it is missing.
func (tc *TestContext) Pod(t *testing.T, name string) *registry.Pod {
	t.Helper()
	pod, ok := tc.Reg.GetPod(name)
	require.True(t, ok, "pod %q not provisioned", name)
	return pod
}
