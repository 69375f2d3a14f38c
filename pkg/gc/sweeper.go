// Package gc provides garbage collection for orphaned auxiliary objects.
//
// Auxiliary objects are keyed next to their host and deleted together
// with it, but the object store offers no multi-key atomicity: a crash
// mid-deletion or an out-of-band backend mutation can leave an auxiliary
// object whose host is gone. The sweeper scans the store periodically
// and removes such orphans.
package gc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/podstore/podstore/internal/logger"
	"github.com/podstore/podstore/pkg/backend"
	"github.com/podstore/podstore/pkg/space"
)

// Sweeper periodically removes orphaned auxiliary objects from one
// object store.
//
// Safe for concurrent use.
type Sweeper struct {
	store  backend.ObjectStore
	config Config
	stopCh chan struct{}
	doneCh chan struct{}
}

// Config contains sweeper configuration.
type Config struct {
	// Enabled controls whether sweeping is active.
	Enabled bool

	// Interval is how often to sweep (default: 24h).
	Interval time.Duration

	// DryRun logs what would be deleted without deleting.
	DryRun bool
}

// NewSweeper creates a sweeper over one pod's object store.
//
// The sweeper is initialized but not started. Call Start() to begin
// background sweeping.
func NewSweeper(store backend.ObjectStore, config Config) *Sweeper {
	if config.Interval == 0 {
		config.Interval = 24 * time.Hour
	}
	return &Sweeper{
		store:  store,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins background sweeping. No-op when disabled.
func (s *Sweeper) Start() {
	if !s.config.Enabled {
		return
	}
	logger.Info("Starting auxiliary sweeper: interval=%s dry_run=%v", s.config.Interval, s.config.DryRun)
	go s.worker()
}

// Stop stops the sweeper and waits for an in-progress sweep to finish,
// bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	close(s.stopCh)
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow triggers an immediate sweep, regardless of Enabled. Blocks
// until the sweep completes or ctx is cancelled.
func (s *Sweeper) RunNow(ctx context.Context) (*Stats, error) {
	return s.sweep(ctx)
}

func (s *Sweeper) worker() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := s.sweep(ctx)
			cancel()
			if err != nil {
				logger.Error("Auxiliary sweep failed: %v", err)
			} else if stats.OrphanedCount > 0 {
				logger.Info("Auxiliary sweep completed: %s", stats.Summary())
			}
		case <-s.stopCh:
			return
		}
	}
}

// sweep performs a single collection run: walk every key, and for each
// auxiliary key check whether its host resource still exists.
func (s *Sweeper) sweep(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	orphans, err := s.findOrphans(ctx, "", stats)
	if err != nil {
		stats.EndTime = time.Now()
		return stats, err
	}
	stats.OrphanedCount = uint64(len(orphans))

	for _, key := range orphans {
		if err := ctx.Err(); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}
		if s.config.DryRun {
			logger.Info("Sweep dry run: would delete %q", key)
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			logger.Warn("Sweep: failed to delete %q: %v", key, err)
			stats.FailedCount++
			continue
		}
		stats.DeletedCount++
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// findOrphans walks the key tree under prefix and collects auxiliary
// keys whose host is gone.
func (s *Sweeper) findOrphans(ctx context.Context, prefix string, stats *Stats) ([]string, error) {
	entries, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", prefix, err)
	}

	var orphans []string
	for _, entry := range entries {
		if entry.IsPrefix {
			sub, err := s.findOrphans(ctx, entry.Key, stats)
			if err != nil {
				return nil, err
			}
			orphans = append(orphans, sub...)
			continue
		}

		stats.ScannedCount++
		i := strings.LastIndex(entry.Key, space.AuxMarker)
		if i < 0 {
			continue
		}
		ok, err := s.hostPresent(ctx, entry.Key[:i])
		if err != nil {
			return nil, err
		}
		if !ok {
			orphans = append(orphans, entry.Key)
		}
	}
	return orphans, nil
}

// hostPresent reports whether the host key still names an existing
// resource. A container whose marker object is missing still exists as
// long as it has contained resources.
func (s *Sweeper) hostPresent(ctx context.Context, hostKey string) (bool, error) {
	// An empty host key addresses the space root, which always exists.
	if hostKey == "" {
		return true, nil
	}
	_, err := s.store.Head(ctx, hostKey)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, backend.ErrKeyNotFound) {
		return false, err
	}
	if !strings.HasSuffix(hostKey, "/") {
		return false, nil
	}
	children, err := s.store.List(ctx, hostKey)
	if err != nil {
		return false, err
	}
	for _, child := range children {
		// The container's own auxiliary objects don't keep it alive.
		if child.IsPrefix || !strings.Contains(child.Key, space.AuxMarker) {
			return true, nil
		}
	}
	return false, nil
}

// Stats contains statistics from one sweep.
type Stats struct {
	StartTime     time.Time
	EndTime       time.Time
	ScannedCount  uint64
	OrphanedCount uint64
	DeletedCount  uint64
	FailedCount   uint64
}

// Duration returns the total sweep duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a one-line description of the sweep.
func (s *Stats) Summary() string {
	return fmt.Sprintf("scanned=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.ScannedCount, s.OrphanedCount, s.DeletedCount, s.FailedCount, s.Duration())
}
