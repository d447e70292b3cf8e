package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/target/repodoc/internal/core"
)

// DefaultLockKeyPrefix prefixes repository lock keys when none is configured.
const DefaultLockKeyPrefix = "repodoc:archive-lock:"

// releaseScript deletes the lock key only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockOptions configures a RedisLockRepo.
type RedisLockOptions struct {
	KeyPrefix    string
	TTL          time.Duration
	PollInterval time.Duration
}

// RedisLockRepo implements core.RepositoryLock on Redis so pipeline instances on
// different hosts serialize archive directory access.
type RedisLockRepo struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

var _ core.RepositoryLock = (*RedisLockRepo)(nil)

// NewRedisLockRepo creates a new RedisLockRepo with the given Redis client.
func NewRedisLockRepo(client redis.UniversalClient, opts RedisLockOptions) *RedisLockRepo {
	prefix := strings.TrimSpace(opts.KeyPrefix)
	if prefix == "" {
		prefix = DefaultLockKeyPrefix
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Second // Minimum TTL of 1 second
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultLockPollWait
	}
	return &RedisLockRepo{client: client, prefix: prefix, ttl: ttl, poll: poll}
}

// Key returns the Redis key guarding repository.
func (r *RedisLockRepo) Key(repository string) string {
	return r.prefix + repository
}

// Acquire blocks until the lock is obtained or ctx is done.
// The key expires after the configured TTL so a crashed holder cannot wedge the pipeline.
func (r *RedisLockRepo) Acquire(ctx context.Context, repository string) (func(context.Context) error, error) {
	if err := validateRepositoryName(repository); err != nil {
		return nil, err
	}
	key := r.Key(repository)
	token := uuid.NewString()

	for {
		ok, err := r.setIfNotExists(ctx, key, token)
		if err != nil {
			return nil, err
		}
		if ok {
			return func(releaseCtx context.Context) error { return r.release(releaseCtx, key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
		case <-time.After(r.poll):
		}
	}
}

// setIfNotExists uses SET with NX and TTL in one command; SETNX followed by EXPIRE is not atomic.
func (r *RedisLockRepo) setIfNotExists(ctx context.Context, key, token string) (bool, error) {
	status, err := r.client.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: r.ttl}).Result()
	if err != nil {
		// NX not met comes back as a nil reply.
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis SET NX: %w", err)
	}
	return status == "OK", nil
}

func (r *RedisLockRepo) release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int64()
	if err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLockNotOwned, key)
	}
	return nil
}

// Health checks the health of the Redis connection.
func (r *RedisLockRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
