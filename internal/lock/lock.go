package lock

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("lock_timeout")

// Locker serializes work per key across the callers that share it.
type Locker interface {
	// Acquire blocks until the key is held or ctx ends. release is safe to call once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// chain acquires each locker in order and releases in reverse.
type chain []Locker

func (c chain) Acquire(ctx context.Context, key string) (func(), error) {
	releases := make([]func(), 0, len(c))
	unwind := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		release, err := l.Acquire(ctx, key)
		if err != nil {
			unwind()
			return nil, err
		}
		releases = append(releases, release)
	}
	return unwind, nil
}
