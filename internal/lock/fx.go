package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/habitquest/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(New),
)

// New returns the in-process lock, chained with a Redis lease when configured.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	local := NewLocal()
	if cfg.Lock.Backend != config.LockBackendRedis {
		return local
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Lock.RedisAddr,
		DB:   cfg.Lock.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Named("lock").Info("redis lock enabled", zap.String("addr", cfg.Lock.RedisAddr))
	return chain{local, NewRedis(client, cfg.Lock.TTL, cfg.Lock.Wait, log.Named("lock.redis"))}
}
