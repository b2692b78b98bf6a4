package runlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "stafflink:job-lock:"

// ErrHeld is returned when another run of the same job owns the lock.
var ErrHeld = errors.New("job run lock is held")

// releaseScript deletes the key only while it still carries our token so a
// run that outlived its TTL cannot drop a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

//go:generate mockgen -source=runlock.go -destination=mock/runlock_mock.go -package=mock
type Locker interface {
	// Acquire returns a release func, or ErrHeld.
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context), error)
}

type redisLocker struct {
	rdb   *redis.Client
	token func() string
}

func NewRedisLocker(rdb *redis.Client) Locker {
	return &redisLocker{rdb: rdb, token: uuid.NewString}
}

func Key(name string) string {
	return keyPrefix + name
}

func (l *redisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context), error) {
	key := Key(name)
	token := l.token()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}

	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}, nil
}

// Noop always grants the lock; used when Redis is not configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (func(context.Context), error) {
	return func(context.Context) {}, nil
}
