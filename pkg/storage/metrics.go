package storage

import (
	"time"

	"github.com/podstore/podstore/pkg/repo"
)

// Metrics receives observations about storage service operations.
//
// Implementations must be safe for concurrent use. A nil Metrics disables
// collection with no overhead.
type Metrics interface {
	// ObserveOperation records one completed operation. status is "ok"
	// or the error code name of the failure.
	ObserveOperation(op, status string, duration time.Duration)

	// ObserveLockWait records time spent acquiring name locks.
	ObserveLockWait(duration time.Duration)
}

// Operation names reported to Metrics.
const (
	opGet      = "get"
	opStat     = "stat"
	opPut      = "put"
	opPatch    = "patch"
	opDelete   = "delete"
	opCreateIn = "create_in"
)

// observe records a completed operation against the configured Metrics.
func (s *Service) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveOperation(op, statusLabel(err), time.Since(start))
}

// observeLockWait records lock acquisition time, including failed waits.
func (s *Service) observeLockWait(start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveLockWait(time.Since(start))
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := repo.CodeOf(err); ok {
		return code.String()
	}
	return "Unknown"
}
