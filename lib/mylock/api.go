package mylock

import (
	"context"
	"errors"
	"time"
)

var ErrNotAcquired = errors.New("lock is held by someone else")

// Locker serialises work on a named resource. The returned release func must be called
// exactly once.
type Locker interface {
	Lock(c context.Context, key string) (release func(), err error)
}

// WithLock runs f while holding the lock on key.
func WithLock(c context.Context, locker Locker, key string, f func(c context.Context) error) error {
	release, err := locker.Lock(c, key)
	if err != nil {
		return err
	}
	defer release()

	return f(c)
}

const defaultTTL = 10 * time.Second
