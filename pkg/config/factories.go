package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/podstore/podstore/internal/ratelimiter"
	"github.com/podstore/podstore/pkg/backend"
	badgerstore "github.com/podstore/podstore/pkg/backend/badger"
	"github.com/podstore/podstore/pkg/backend/memory"
	s3store "github.com/podstore/podstore/pkg/backend/s3"
	"github.com/podstore/podstore/pkg/locker"
	"github.com/podstore/podstore/pkg/metrics"
	"github.com/podstore/podstore/pkg/registry"
	"github.com/podstore/podstore/pkg/repo"
	"github.com/podstore/podstore/pkg/repo/layers/accessctl"
	"github.com/podstore/podstore/pkg/repo/layers/conneg"
	"github.com/podstore/podstore/pkg/repo/layers/patching"
	"github.com/podstore/podstore/pkg/repo/layers/validating"
	"github.com/podstore/podstore/pkg/repo/object"
	"github.com/podstore/podstore/pkg/space"
	"github.com/podstore/podstore/pkg/storage"
)

// CreateObjectStore creates an object store from its configuration entry.
//
// The Type field selects the implementation; the matching option section
// is decoded with mapstructure and handed to the store's constructor.
func CreateObjectStore(ctx context.Context, cfg *StoreConfig) (backend.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return createMemoryStore(cfg.Memory)
	case "badger":
		return createBadgerStore(cfg.Badger)
	case "s3":
		return createS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown object store type: %q", cfg.Type)
	}
}

func createMemoryStore(options map[string]any) (backend.ObjectStore, error) {
	type memoryStoreConfig struct {
		MaxBytes   int64 `mapstructure:"max_bytes"`
		MaxObjects int   `mapstructure:"max_objects"`
	}

	var storeCfg memoryStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode memory store config: %w", err)
	}

	var opts []memory.Option
	if storeCfg.MaxBytes > 0 {
		opts = append(opts, memory.WithMaxBytes(storeCfg.MaxBytes))
	}
	if storeCfg.MaxObjects > 0 {
		opts = append(opts, memory.WithMaxObjects(storeCfg.MaxObjects))
	}
	return memory.New(opts...), nil
}

func createBadgerStore(options map[string]any) (backend.ObjectStore, error) {
	type badgerStoreConfig struct {
		Dir        string `mapstructure:"dir"`
		InMemory   bool   `mapstructure:"in_memory"`
		SyncWrites bool   `mapstructure:"sync_writes"`
	}

	var storeCfg badgerStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger store config: %w", err)
	}
	if storeCfg.Dir == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger store: dir is required unless in_memory is set")
	}

	store, err := badgerstore.New(badgerstore.Options{
		Dir:        storeCfg.Dir,
		InMemory:   storeCfg.InMemory,
		SyncWrites: storeCfg.SyncWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger store: %w", err)
	}
	return store, nil
}

func createS3Store(ctx context.Context, options map[string]any) (backend.ObjectStore, error) {
	type s3StoreConfig struct {
		Region            string `mapstructure:"region"`
		Bucket            string `mapstructure:"bucket"`
		KeyPrefix         string `mapstructure:"key_prefix"`
		Endpoint          string `mapstructure:"endpoint"`
		AccessKeyID       string `mapstructure:"access_key_id"`
		SecretAccessKey   string `mapstructure:"secret_access_key"`
		UsePathStyle      bool   `mapstructure:"use_path_style"`
		ConditionalWrites bool   `mapstructure:"conditional_writes"`
	}

	var storeCfg s3StoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode s3 store config: %w", err)
	}
	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("s3 store: region is required")
	}

	store, err := s3store.New(ctx, s3store.Config{
		Region:            storeCfg.Region,
		Bucket:            storeCfg.Bucket,
		KeyPrefix:         storeCfg.KeyPrefix,
		Endpoint:          storeCfg.Endpoint,
		AccessKeyID:       storeCfg.AccessKeyID,
		SecretAccessKey:   storeCfg.SecretAccessKey,
		UsePathStyle:      storeCfg.UsePathStyle,
		ConditionalWrites: storeCfg.ConditionalWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 store: %w", err)
	}
	return store, nil
}

// CreateNameLocker creates the configured name locker.
func CreateNameLocker(cfg *LockingConfig) (locker.NameLocker, error) {
	switch cfg.Type {
	case "memory":
		return locker.NewInMemNameLocker(), nil
	case "void":
		return locker.NewVoidNameLocker(), nil
	default:
		return nil, fmt.Errorf("unknown locker type: %q", cfg.Type)
	}
}

// BuildRegistry assembles the full runtime from configuration: object
// stores, per-pod repo stacks, and storage services, registered and
// initialized.
//
// The per-pod repo stack, inside out: object backend, validating layer
// with the stock protectors, patching layer, and an access-control layer
// when the pod's policy asks for one.
func BuildRegistry(ctx context.Context, cfg *Config) (*registry.Registry, error) {
	reg := registry.NewRegistry()

	for i := range cfg.Stores {
		store, err := CreateObjectStore(ctx, &cfg.Stores[i])
		if err != nil {
			return nil, fmt.Errorf("store %q: %w", cfg.Stores[i].Name, err)
		}
		if err := reg.RegisterStore(cfg.Stores[i].Name, store); err != nil {
			return nil, err
		}
	}

	var writeLimit *ratelimiter.Limiter
	if cfg.RateLimit.WritesPerSecond > 0 {
		writeLimit = ratelimiter.New(cfg.RateLimit.WritesPerSecond, cfg.RateLimit.Burst)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	for i := range cfg.Pods {
		if err := buildPod(ctx, reg, cfg, &cfg.Pods[i], writeLimit); err != nil {
			reg.Close()
			return nil, fmt.Errorf("pod %q: %w", cfg.Pods[i].Name, err)
		}
	}
	return reg, nil
}

func buildPod(ctx context.Context, reg *registry.Registry, cfg *Config, pod *PodConfig, writeLimit *ratelimiter.Limiter) error {
	root, err := space.ParseResourceURI(pod.Root)
	if err != nil {
		return err
	}

	var spaceOpts []space.SpaceOption
	if pod.Description != "" {
		desc, derr := space.ParseResourceURI(pod.Description)
		if derr != nil {
			return derr
		}
		spaceOpts = append(spaceOpts, space.WithDescription(desc))
	}

	sp, err := space.NewStorageSpace(root, pod.Owners, spaceOpts...)
	if err != nil {
		return err
	}

	store, ok := reg.GetStore(pod.Store)
	if !ok {
		return fmt.Errorf("references unknown store %q", pod.Store)
	}

	var r repo.Repo = object.New(sp, store)
	// Pass-through negotiator; the layer is in place for deployments that
	// plug in a converting one.
	r = conneg.New(r, nil)
	r = validating.New(r,
		validating.ContainerRepProtector{},
		validating.AuxRepProtector{Space: sp},
	)
	r = patching.New(r, nil)
	switch {
	case pod.ReadOnly:
		r = accessctl.New(r, readOnlyPolicy{})
	case pod.OwnerOnlyWrites:
		r = accessctl.New(r, ownerWritePolicy{space: sp})
	}

	lk, err := CreateNameLocker(&cfg.Locking)
	if err != nil {
		return err
	}

	svc := storage.NewService(r, lk,
		storage.WithLockTimeout(cfg.Locking.Timeout),
		storage.WithWriteLimiter(writeLimit),
		storage.WithMetrics(metrics.NewStorageMetrics(pod.Name)),
	)
	return reg.AddPod(ctx, pod.Name, pod.Store, svc)
}

// readOnlyPolicy admits reads and denies every mutation.
type readOnlyPolicy struct{}

func (readOnlyPolicy) Decide(_ context.Context, _ space.ResourceURI, op repo.OpKind, _ string) (bool, error) {
	return op == repo.OpRead, nil
}

// ownerWritePolicy admits reads for everyone and mutations for the
// space's owners only.
type ownerWritePolicy struct {
	space *space.StorageSpace
}

func (p ownerWritePolicy) Decide(_ context.Context, _ space.ResourceURI, op repo.OpKind, agent string) (bool, error) {
	if op == repo.OpRead {
		return true, nil
	}
	for _, owner := range p.space.Owners() {
		if agent == owner {
			return true, nil
		}
	}
	return false, nil
}
