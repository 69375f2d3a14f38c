// Package registry manages the server's named resources: object stores
// and the pods served over them. It provides thread-safe registration and
// lookup, and routes resource URIs to the pod whose storage space holds
// them.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/podstore/podstore/internal/logger"
	"github.com/podstore/podstore/pkg/backend"
	"github.com/podstore/podstore/pkg/space"
	"github.com/podstore/podstore/pkg/storage"
)

// Pod is one provisioned storage space together with its storage service.
type Pod struct {
	// Name is the pod's registry name.
	Name string

	// Service is the pod's storage service.
	Service *storage.Service

	// StoreName names the object store backing the pod.
	StoreName string

	// ProvisionedAt is when the pod was added to the registry.
	ProvisionedAt time.Time
}

// Space returns the pod's storage space.
func (p *Pod) Space() *space.StorageSpace {
	return p.Service.Space()
}

// Registry holds the server's object stores and pods.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]backend.ObjectStore
	pods   map[string]*Pod
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]backend.ObjectStore),
		pods:   make(map[string]*Pod),
	}
}

// RegisterStore adds a named object store. Names are unique.
func (r *Registry) RegisterStore(name string, store backend.ObjectStore) error {
	if store == nil {
		return fmt.Errorf("cannot register nil object store")
	}
	if name == "" {
		return fmt.Errorf("cannot register object store with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("object store %q already registered", name)
	}
	r.stores[name] = store
	return nil
}

// GetStore returns the named object store.
func (r *Registry) GetStore(name string) (backend.ObjectStore, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.stores[name]
	return store, ok
}

// AddPod registers a pod and initializes its storage. The pod's space
// root must not overlap any registered pod's root (pods partition the
// URI space) and its store entry must not back another pod.
func (r *Registry) AddPod(ctx context.Context, name, storeName string, svc *storage.Service) error {
	if name == "" {
		return fmt.Errorf("cannot add pod with empty name")
	}
	if svc == nil {
		return fmt.Errorf("cannot add pod %q without a storage service", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pods[name]; exists {
		return fmt.Errorf("pod %q already exists", name)
	}
	if _, exists := r.stores[storeName]; !exists {
		return fmt.Errorf("pod %q references unknown object store %q", name, storeName)
	}

	root := svc.Space().RootURI()
	for other, p := range r.pods {
		// Object keys are space-relative, so a store entry carries at
		// most one pod.
		if p.StoreName == storeName {
			return fmt.Errorf("pod %q store %q is already bound to pod %q", name, storeName, other)
		}
		otherRoot := p.Space().RootURI()
		if p.Space().Contains(root) || svc.Space().Contains(otherRoot) {
			return fmt.Errorf("pod %q root %s overlaps pod %q root %s", name, root, other, otherRoot)
		}
	}

	if err := svc.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing pod %q: %w", name, err)
	}

	r.pods[name] = &Pod{
		Name:          name,
		Service:       svc,
		StoreName:     storeName,
		ProvisionedAt: time.Now(),
	}
	logger.Info("registered pod %q rooted at %s on store %q", name, root, storeName)
	return nil
}

// GetPod returns the named pod.
func (r *Registry) GetPod(name string) (*Pod, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pod, ok := r.pods[name]
	return pod, ok
}

// ResolvePod returns the pod whose storage space holds the given resource
// URI.
func (r *Registry) ResolvePod(uri space.ResourceURI) (*Pod, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, pod := range r.pods {
		if pod.Space().Contains(uri) {
			return pod, true
		}
	}
	return nil, false
}

// Pods returns all registered pods.
func (r *Registry) Pods() []*Pod {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Pod, 0, len(r.pods))
	for _, pod := range r.pods {
		out = append(out, pod)
	}
	return out
}

// RemovePod unregisters a pod. Its storage is left intact.
func (r *Registry) RemovePod(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pods[name]; !exists {
		return fmt.Errorf("pod %q does not exist", name)
	}
	delete(r.pods, name)
	return nil
}

// Close closes every registered object store. The first error is
// returned; later stores are still closed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for name, store := range r.stores {
		if err := store.Close(); err != nil {
			logger.Error("closing object store %q: %v", name, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
