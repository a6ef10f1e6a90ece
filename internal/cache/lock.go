package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when a lock could not be acquired within the wait budget.
var ErrLockTimeout = errors.New("timed out waiting for lock")

const defaultRetryInterval = 25 * time.Millisecond

// Locker hands out short-lived exclusive locks stored as cache keys.
type Locker struct {
	cache Cache
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

// NewLocker creates a locker. ttl bounds how long a crashed holder blocks others;
// wait bounds how long Acquire polls before giving up.
func NewLocker(c Cache, ttl, wait time.Duration) *Locker {
	return &Locker{
		cache: c,
		ttl:   ttl,
		wait:  wait,
		retry: defaultRetryInterval,
	}
}

// Lock is a held lock. Release it exactly once.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// Acquire polls until the key is free, the wait budget is spent, or ctx is done.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lock, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.cache.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return &Lock{locker: l, key: key, token: token}, nil
		}

		if !time.Now().Add(l.retry).Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Key returns the locked key.
func (lk *Lock) Key() string {
	return lk.key
}

// Release frees the lock if this holder still owns it. A lock that already expired
// and was taken by someone else is left alone.
func (lk *Lock) Release(ctx context.Context) error {
	if _, err := lk.locker.cache.DelIfValue(ctx, lk.key, lk.token); err != nil {
		return err
	}
	return nil
}
