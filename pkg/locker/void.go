package locker

import "context"

// VoidNameLocker is a NameLocker that grants every lock immediately and
// never excludes anyone.
//
// Useful for single-writer deployments where serialization is provided
// externally, and for tests that need to exercise code paths without real
// locking.
type VoidNameLocker struct{}

// NewVoidNameLocker creates a no-op name locker.
func NewVoidNameLocker() VoidNameLocker {
	return VoidNameLocker{}
}

// Lock implements NameLocker. It only fails when ctx is already done.
func (VoidNameLocker) Lock(ctx context.Context, name string, kind LockKind) (Guard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return voidGuard{}, nil
}

type voidGuard struct{}

func (voidGuard) Release() {}
