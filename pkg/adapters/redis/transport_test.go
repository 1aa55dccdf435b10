package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/foreman/pkg/adapters/redis"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTransport_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunTransportContract(t, redis.NewTransport(client))
}

func TestRedisTransport_Prefix(t *testing.T) {
	mr, client := newClient(t)
	transport := redis.NewTransport(client, redis.WithChannelPrefix("ws1:"))
	ctx := context.Background()

	channel := domain.NewOutputChannel(domain.ChannelMachine)
	var mu sync.Mutex
	var got []string
	sub, err := transport.Subscribe(ctx, channel, func(msg string) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	}, nil)
	require.NoError(t, err)
	defer sub.Close()

	// Publishing straight on the prefixed redis channel reaches the handler
	mr.Publish("ws1:"+channel, "raw")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "raw"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisTransport_SubscribeFailure(t *testing.T) {
	mr, client := newClient(t)
	transport := redis.NewTransport(client)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := transport.Subscribe(ctx, "machine:output:x", func(string) {}, nil)
	var subErr *domain.SubscriptionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "machine:output:x", subErr.Channel)
}

func TestRedisTransport_ConnectionLossIsReportedOnce(t *testing.T) {
	mr, client := newClient(t)
	transport := redis.NewTransport(client)
	ctx := context.Background()

	var mu sync.Mutex
	var failures []error
	_, err := transport.Subscribe(ctx, "process:output:x", func(string) {}, func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	})
	require.NoError(t, err)

	mr.Close()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failures) == 1
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 1)
	var subErr *domain.SubscriptionError
	assert.ErrorAs(t, failures[0], &subErr)
}
