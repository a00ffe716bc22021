package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	keyPrefix    = "habitquest:lock:"
	retryInitial = 10 * time.Millisecond
	retryMax     = 200 * time.Millisecond
)

// Redis is a SET NX lease with token-checked release, for deployments with
// more than one engine process.
type Redis struct {
	client *redis.Client
	script *redis.Script
	log    *zap.Logger
	ttl    time.Duration
	wait   time.Duration
}

func NewRedis(client *redis.Client, ttl, wait time.Duration, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{
		client: client,
		script: redis.NewScript(releaseScript),
		log:    log,
		ttl:    ttl,
		wait:   wait,
	}
}

func (r *Redis) TryLock(ctx context.Context, key string) (string, bool, error) {
	if r == nil || r.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if r.ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, keyPrefix+key, token, r.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (r *Redis) Release(ctx context.Context, key, token string) error {
	if r == nil || r.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return r.script.Run(ctx, r.client, []string{keyPrefix + key}, token).Err()
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	deadline := time.Now().Add(r.wait)
	backoff := retryInitial
	for {
		token, ok, err := r.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// The request context may already be done; release on a fresh one.
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := r.Release(releaseCtx, key, token); err != nil {
					r.log.Warn("lock release failed", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > retryMax {
			backoff = retryMax
		}
	}
}
