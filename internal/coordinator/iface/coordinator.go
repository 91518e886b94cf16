package coordinator

import "context"

// UnlockFunc releases a lock obtained from Locker.Lock.
type UnlockFunc func() error

// Locker serializes work on a named resource across goroutines, and across
// processes for the ZooKeeper implementation.
type Locker interface {
	// Lock blocks until the lock on name is held or ctx is done.
	Lock(ctx context.Context, name string) (UnlockFunc, error)
	Close() error
}
