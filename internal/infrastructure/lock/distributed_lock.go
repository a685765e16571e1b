package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Redis lock: SET key token NX PX ttl to acquire, and a compare-and-delete script
// to release so a holder whose lock already expired cannot delete the next holder's key.

var (
	ErrLockFailed = errors.New("could not acquire distributed lock")
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // holder token
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock makes a single non-blocking attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock every retryInterval, at most maxRetries times.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock releases the lock if this holder still owns it.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// PlanLocker hands out one lock per plan so that two processes never run a
// mutating ledger operation on the same plan at once. Different plans do not contend.
type PlanLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
	log           zerolog.Logger
}

func NewPlanLocker(client *redis.Client, ttl time.Duration, log zerolog.Logger) *PlanLocker {
	return &PlanLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: 50 * time.Millisecond,
		maxRetries:    100,
		log:           log.With().Str("component", "PlanLocker").Logger(),
	}
}

func PlanLockKey(planID int64) string {
	return fmt.Sprintf("ledger:lock:plan:%d", planID)
}

func (p *PlanLocker) LockPlan(ctx context.Context, planID int64) (func(), error) {
	l := NewDistributedLock(p.client, PlanLockKey(planID), uuid.NewString(), p.ttl)
	if err := l.Lock(ctx, p.retryInterval, p.maxRetries); err != nil {
		return nil, err
	}
	return func() {
		// the caller's context may already be cancelled
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := l.Unlock(ctx); err != nil {
			p.log.Warn().Err(err).Int64("plan_id", planID).Msg("unlock failed, lock will expire")
		}
	}, nil
}
