package database

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arbsim/ledgerd/internal/config"
	"github.com/arbsim/ledgerd/internal/logging"
)

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClient wraps a Redis client. Its job in this service is the
// archive/reset lock; HealthCheck backs the health endpoint.
type RedisClient struct {
	Client *redis.Client
}

// NewRedisConnection creates a new Redis connection and verifies it with a ping.
func NewRedisConnection(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	rdb.AddHook(&SentryRedisHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Successfully connected to Redis")

	return &RedisClient{Client: rdb}, nil
}

// Close closes the Redis connection.
func (r *RedisClient) Close() {
	if r.Client != nil {
		if err := r.Client.Close(); err != nil {
			logging.Errorf("Error closing Redis client: %v", err)
		}
	}
}

// HealthCheck verifies the Redis connection.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return r.Client.Ping(ctx).Err()
}

// AcquireLock attempts to take a SetNX lock on the given key. Returns the
// holder token when acquired; acquired=false without error means the lock is
// already held elsewhere.
func (r *RedisClient) AcquireLock(ctx context.Context, key string, expiration time.Duration) (string, bool, error) {
	if r.Client == nil {
		return "", false, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return "", false, fmt.Errorf("lock key cannot be empty")
	}
	if expiration <= 0 {
		return "", false, fmt.Errorf("lock expiration must be positive")
	}

	token := uuid.NewString()
	acquired, err := r.Client.SetNX(ctx, key, token, expiration).Result()
	if err != nil {
		return "", false, err
	}
	if !acquired {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock releases a lock only when the caller still holds it, via a
// compare-and-delete Lua script.
func (r *RedisClient) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return false, fmt.Errorf("lock key cannot be empty")
	}
	if token == "" {
		return false, fmt.Errorf("lock token cannot be empty")
	}

	deleted, err := releaseLockScript.Run(ctx, r.Client, []string{key}, token).Int64()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

// SentryRedisHook reports Redis command errors to Sentry. Nil replies are a
// normal cache-miss signal and are not reported.
type SentryRedisHook struct{}

func (h *SentryRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			captureRedisError(err, "dial")
		}
		return conn, err
	}
}

func (h *SentryRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && err != redis.Nil {
			captureRedisError(err, cmd.Name())
		}
		return err
	}
}

func (h *SentryRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && err != redis.Nil {
			captureRedisError(err, "pipeline")
		}
		return err
	}
}

func captureRedisError(err error, command string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "redis")
		scope.SetTag("redis.command", command)
		sentry.CaptureException(err)
	})
}
