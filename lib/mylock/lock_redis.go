package mylock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MarcGrol/basketbridge/lib/mylog"
)

// redisStore defines the operations used by RedisLocker.
type redisStore interface {
	SetNX(c context.Context, key string, value any, ttl time.Duration) (bool, error)
	// CompareAndDelete atomically deletes key when it still holds value.
	CompareAndDelete(c context.Context, key string, value string) (bool, error)
}

// RedisLocker serialises callers across replicas using SET NX with an expiry
// and an owner token, so an expired lock is never released by its former owner.
type RedisLocker struct {
	logger       mylog.Logger
	client       redisStore
	ttl          time.Duration
	retryBackoff time.Duration
}

func NewRedisLocker(client redisStore, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{logger: mylog.New("lock"), client: client, ttl: ttl, retryBackoff: 25 * time.Millisecond}, nil
}

func (l *RedisLocker) Lock(c context.Context, key string) (func(), error) {
	owner := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(c, key, owner, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("setnx %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotAcquired)
		}
		select {
		case <-time.After(l.retryBackoff):
		case <-c.Done():
			return nil, c.Err()
		}
	}

	return func() {
		// released with a fresh context: the request context may already be cancelled
		err := l.release(context.Background(), key, owner)
		if err != nil {
			l.logger.Log(c, key, mylog.SeverityError, "error releasing lock %s: %s", key, err)
		}
	}, nil
}

func (l *RedisLocker) release(c context.Context, key string, owner string) error {
	deleted, err := l.client.CompareAndDelete(c, key, owner)
	if err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	if !deleted {
		l.logger.Log(c, key, mylog.SeverityWarn, "lock %s expired before release", key)
	}
	return nil
}

// RedisClient adapts *redis.Client to the narrow interface used by RedisLocker.
type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(address, password string) RedisClient {
	return RedisClient{Client: redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
	})}
}

func (r RedisClient) SetNX(c context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return r.Client.SetNX(c, key, value, ttl).Result()
}

// releaseScript deletes the lock only while it still carries the owner token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r RedisClient) CompareAndDelete(c context.Context, key string, value string) (bool, error) {
	deleted, err := releaseScript.Run(c, r.Client, []string{key}, value).Int()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

func (r RedisClient) Ping(c context.Context) error {
	return r.Client.Ping(c).Err()
}

func (r RedisClient) Close() error {
	return r.Client.Close()
}
