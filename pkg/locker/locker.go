// Package locker provides asynchronous mutual exclusion keyed by opaque
// resource names.
//
// The name locker is the single serialization point of the engine: all
// backend mutation happens inside a lock scope on the name(s) of the
// resource(s) being mutated. Locks are scoped per name, not per storage
// space, so operations on unrelated resources proceed fully in parallel.
//
// Callers that need multiple names adopt a two-phase locking discipline:
// acquire every required lock (via LockAll, which sorts names into one
// globally fixed canonical order to prevent deadlock), then resolve status
// tokens and invoke operators, and release only after all results are
// finalized.
package locker

import (
	"context"
	"errors"
	"sort"
)

// LockKind selects shared or exclusive acquisition.
type LockKind int

const (
	// Shared allows concurrent holders; used by read paths.
	Shared LockKind = iota

	// Exclusive allows a single holder; used by mutation paths.
	Exclusive
)

func (k LockKind) String() string {
	if k == Exclusive {
		return "exclusive"
	}
	return "shared"
}

// ErrLockTimeout is returned when a lock cannot be acquired before the
// caller's context deadline expires.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Guard is a held lock. Release is idempotent and must be called on every
// exit path; defer it immediately after acquisition.
type Guard interface {
	Release()
}

// NameLocker provides scoped mutual exclusion over opaque names.
//
// Implementations must be safe for concurrent use. Lock honors context
// cancellation and deadlines: a caller is never blocked past its deadline,
// and an abandoned acquisition leaves no lock held.
type NameLocker interface {
	// Lock acquires a lock of the given kind on name, blocking until the
	// lock is available or ctx is done. Returns ErrLockTimeout when the
	// context deadline expires while waiting.
	Lock(ctx context.Context, name string, kind LockKind) (Guard, error)
}

// LockAll acquires locks on all given names in canonical (lexicographic)
// order, deduplicating the set first. Either every lock is acquired and a
// single combined guard is returned, or none is held.
//
// Acquiring in one fixed global order regardless of logical touch order is
// what makes overlapping compound operations (create-child-under-parent
// racing delete-parent, for example) deadlock-free.
func LockAll(ctx context.Context, l NameLocker, names []string, kind LockKind) (Guard, error) {
	seen := make(map[string]struct{}, len(names))
	ordered := make([]string, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	guards := make([]Guard, 0, len(ordered))
	for _, name := range ordered {
		g, err := l.Lock(ctx, name, kind)
		if err != nil {
			// Release in reverse acquisition order.
			for i := len(guards) - 1; i >= 0; i-- {
				guards[i].Release()
			}
			return nil, err
		}
		guards = append(guards, g)
	}

	return &multiGuard{guards: guards}, nil
}

type multiGuard struct {
	guards []Guard
}

func (m *multiGuard) Release() {
	for i := len(m.guards) - 1; i >= 0; i-- {
		m.guards[i].Release()
	}
	m.guards = nil
}
