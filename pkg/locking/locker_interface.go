package locking

import (
	"context"
	"time"
)

// LockerInterface represents a Locker serializing access to a keyed resource
type LockerInterface interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (LockInterface, error)
}

// LockInterface represents a held Lock
type LockInterface interface {
	Key() string
	Release(ctx context.Context) error
}
