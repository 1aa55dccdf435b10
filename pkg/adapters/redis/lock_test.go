package redis_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/foreman/internal/logging"
	"github.com/aretw0/foreman/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:lock:")
	ctx := context.Background()
	key := "resource1"

	// 1. Acquire Lock
	unlock, err := locker.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)

	assert.True(t, mr.Exists("test:lock:lock:resource1"), "Lock key should be set in Redis")

	// 2. Release Lock
	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:lock:resource1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:lock:")
	locker2 := redis.NewLocker(client, "test:lock:") // Same prefix -> contention
	ctx := context.Background()
	key := "shared-resource"

	// 1. Client 1 acquires lock
	unlock1, err := locker1.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	// 2. Client 2 blocks until its context expires
	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()

	_, err = locker2.Lock(ctxTimeout, key, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 3. Client 1 unlocks
	require.NoError(t, unlock1(ctx))

	// 4. Client 2 tries again (should succeed)
	unlock2, err := locker2.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)

	assert.True(t, mr.Exists("test:lock:lock:shared-resource"))
}

func TestRedisLocker_UnlockDoesNotReleaseForeignLock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "ws", time.Second)
	require.NoError(t, err)

	// The lease expires and another holder takes it
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:lock:ws", "someone-else"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("test:lock:ws")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_KeepAlive(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:", redis.WithKeepAlive())
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "ws", 200*time.Millisecond)
	require.NoError(t, err)

	// The refresher keeps resetting the TTL
	assert.Eventually(t, func() bool {
		ttl := mr.TTL("test:lock:ws")
		return ttl > 0 && ttl <= 200*time.Millisecond
	}, time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.True(t, mr.Exists("test:lock:ws"))

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx), "unlock is safe to repeat")
	assert.False(t, mr.Exists("test:lock:ws"))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRedisLocker_KeepAliveReportsLostLock(t *testing.T) {
	mr, client := newClient(t)
	var logs lockedBuffer
	locker := redis.NewLocker(client, "test:",
		redis.WithKeepAlive(),
		redis.WithLockerLogger(logging.NewWithWriter(&logs, slog.LevelWarn, logging.FormatText)),
	)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "ws", 200*time.Millisecond)
	require.NoError(t, err)
	defer unlock(ctx)

	// Another holder takes the key; the next refresh finds it foreign
	require.NoError(t, mr.Set("test:lock:ws", "someone-else"))

	assert.Eventually(t, func() bool {
		out := logs.String()
		return strings.Contains(out, "Lock lost") && strings.Contains(out, "key=test:lock:ws")
	}, time.Second, 20*time.Millisecond)
}
