package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/foreman/internal/logging"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var _ ports.DistributedLocker = (*Locker)(nil)

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

const refreshScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Locker implements ports.DistributedLocker using Redis.
type Locker struct {
	client    *backend.Client
	prefix    string
	interval  time.Duration
	keepAlive bool
	logger    *slog.Logger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithPollInterval sets how often a contended lock is retried.
func WithPollInterval(d time.Duration) LockerOption {
	return func(l *Locker) {
		l.interval = d
	}
}

// WithKeepAlive extends held locks every ttl/2 until they are released, for
// leases that outlive a single ttl.
func WithKeepAlive() LockerOption {
	return func(l *Locker) {
		l.keepAlive = true
	}
}

// WithLockerLogger sets the logger that reports failed lease refreshes.
func WithLockerLogger(logger *slog.Logger) LockerOption {
	return func(l *Locker) {
		l.logger = logger
	}
}

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string, opts ...LockerOption) *Locker {
	l := &Locker{
		client:   client,
		prefix:   prefix,
		interval: 100 * time.Millisecond,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock acquires a distributed lock for the given key using Redis SET NX PX.
// The returned UnlockFunc only deletes the key if this holder still owns it.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	val := uuid.NewString()

	if err := l.acquire(ctx, lockKey, val, ttl); err != nil {
		return nil, err
	}

	release := func(ctx context.Context) error {
		return l.client.Eval(ctx, unlockScript, []string{lockKey}, val).Err()
	}
	if !l.keepAlive {
		return release, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				l.refresh(lockKey, val, ttl)
			}
		}
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		<-done
		return release(ctx)
	}, nil
}

// refresh extends a held lock. A zero reply means the key expired or another
// holder owns it; the lease is lost either way.
func (l *Locker) refresh(lockKey, val string, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), ttl/2)
	defer cancel()
	ok, err := l.client.Eval(ctx, refreshScript, []string{lockKey}, val, ttl.Milliseconds()).Int64()
	switch {
	case err != nil:
		l.logger.Warn("Failed to refresh lock", "key", lockKey, "err", err)
	case ok == 0:
		l.logger.Warn("Lock lost", "key", lockKey)
	}
}

func (l *Locker) acquire(ctx context.Context, lockKey, val string, ttl time.Duration) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		success, err := l.client.SetNX(ctx, lockKey, val, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", domain.ErrLockAcquire, err)
		}
		if success {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
