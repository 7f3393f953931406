package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLeaseTTL = time.Minute

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// renewScript extends the key only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisLease is a SET NX PX lock shared by every replica. A held lease is renewed
// every ttl/3 for as long as the job runs.
type RedisLease struct {
	client *redis.Client
}

// NewRedisLease creates a lease backed by client
func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client}
}

func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (context.Context, func(), bool, error) {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, nil, false, err
	}
	if !ok {
		return nil, nil, false, nil
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	renew := func(ctx context.Context) (bool, error) {
		n, err := renewScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
		return n == 1, err
	}
	go keepAlive(leaseCtx, key, ttl, renew, stop, cancel)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			cancel(nil)
			releaseCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer done()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				slog.Warn("Failed to release lease, it will expire on its own", "key", key, "error", err)
			}
		})
	}
	return leaseCtx, release, true, nil
}

// keepAlive renews the lease every ttl/3 until stop is closed. It cancels the job
// context with ErrLeaseLost once the key is held by someone else, or when no renewal
// has succeeded for a full ttl.
func keepAlive(ctx context.Context, key string, ttl time.Duration, renew func(context.Context) (bool, error), stop <-chan struct{}, cancel context.CancelCauseFunc) {
	interval := ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastRenewed := time.Now()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := renew(ctx)
			switch {
			case err != nil:
				slog.Warn("Failed to renew lease", "key", key, "error", err)
				if time.Since(lastRenewed) >= ttl {
					slog.Error("Lease expired without renewal, stopping job", "key", key)
					cancel(ErrLeaseLost)
					return
				}
			case !held:
				slog.Error("Lease taken over by another instance, stopping job", "key", key)
				cancel(ErrLeaseLost)
				return
			default:
				lastRenewed = time.Now()
			}
		}
	}
}
