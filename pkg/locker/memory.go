package locker

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxHolders bounds the number of concurrent shared holders per name. A
// shared acquisition takes weight 1, an exclusive acquisition takes the
// full weight, giving reader-writer semantics on a context-aware
// semaphore.
const maxHolders = 1 << 30

// InMemNameLocker is the in-process NameLocker implementation.
//
// It keeps a lazily-populated table of per-name semaphores. Entries are
// reference counted and evicted as soon as the last holder or waiter for a
// name goes away, so the table size tracks the current contention set, not
// the historical name set.
//
// Being in-memory, it cannot serialize operations across processes; a
// deployment with multiple engine processes over one backend needs a
// distributed locker implementation instead.
type InMemNameLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem *semaphore.Weighted

	// refs counts holders plus waiters. The entry is dropped from the
	// table when refs reaches zero.
	refs int
}

// NewInMemNameLocker creates an empty in-memory name locker.
func NewInMemNameLocker() *InMemNameLocker {
	return &InMemNameLocker{
		entries: make(map[string]*lockEntry),
	}
}

// Lock implements NameLocker.
func (l *InMemNameLocker) Lock(ctx context.Context, name string, kind LockKind) (Guard, error) {
	weight := int64(1)
	if kind == Exclusive {
		weight = maxHolders
	}

	l.mu.Lock()
	e, ok := l.entries[name]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(maxHolders)}
		l.entries[name] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, weight); err != nil {
		l.unref(name, e)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, err
	}

	g := &memGuard{locker: l, name: name, entry: e, weight: weight}
	g.release = sync.OnceFunc(g.doRelease)
	return g, nil
}

// unref drops one reference to a name's entry, evicting the entry when it
// becomes uncontended.
func (l *InMemNameLocker) unref(name string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, name)
	}
	l.mu.Unlock()
}

// tableSize reports the number of live lock entries. Test hook.
func (l *InMemNameLocker) tableSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type memGuard struct {
	locker  *InMemNameLocker
	name    string
	entry   *lockEntry
	weight  int64
	release func()
}

func (g *memGuard) Release() {
	g.release()
}

func (g *memGuard) doRelease() {
	g.entry.sem.Release(g.weight)
	g.locker.unref(g.name, g.entry)
}
