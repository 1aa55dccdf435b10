package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu   sync.Mutex
	msgs []string
}

func (c *collector) add(msg string) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func (c *collector) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// RunTransportContract verifies that a Transport delivers messages in order to
// a single subscriber per channel and honours idempotent Close.
func RunTransportContract(t *testing.T, transport Transport) {
	ctx := context.Background()
	noErr := func(err error) { t.Errorf("unexpected transport error: %v", err) }

	t.Run("Delivers In Order", func(t *testing.T) {
		channel := domain.NewOutputChannel(domain.ChannelProcess)
		var got collector

		sub, err := transport.Subscribe(ctx, channel, got.add, noErr)
		require.NoError(t, err)
		defer sub.Close()
		assert.Equal(t, channel, sub.Channel())

		for _, msg := range []string{"one", "two", "three"} {
			require.NoError(t, transport.Publish(ctx, channel, msg))
		}

		assert.Eventually(t, func() bool { return len(got.get()) == 3 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"one", "two", "three"}, got.get())
	})

	t.Run("Single Subscriber", func(t *testing.T) {
		channel := domain.NewOutputChannel(domain.ChannelMachine)

		sub, err := transport.Subscribe(ctx, channel, func(string) {}, noErr)
		require.NoError(t, err)
		defer sub.Close()

		_, err = transport.Subscribe(ctx, channel, func(string) {}, noErr)
		assert.ErrorIs(t, err, domain.ErrChannelInUse)

		var subErr *domain.SubscriptionError
		assert.ErrorAs(t, err, &subErr)
	})

	t.Run("Close Is Idempotent And Stops Delivery", func(t *testing.T) {
		channel := domain.NewOutputChannel(domain.ChannelProcess)
		var got collector

		sub, err := transport.Subscribe(ctx, channel, got.add, noErr)
		require.NoError(t, err)

		require.NoError(t, transport.Publish(ctx, channel, "before"))
		assert.Eventually(t, func() bool { return len(got.get()) == 1 }, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())

		_ = transport.Publish(ctx, channel, "after")
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, []string{"before"}, got.get())

		// The channel is free again once closed.
		again, err := transport.Subscribe(ctx, channel, func(string) {}, noErr)
		require.NoError(t, err)
		require.NoError(t, again.Close())
	})

	t.Run("Channels Are Independent", func(t *testing.T) {
		first := domain.NewOutputChannel(domain.ChannelProcess)
		second := domain.NewOutputChannel(domain.ChannelProcess)
		var a, b collector

		subA, err := transport.Subscribe(ctx, first, a.add, noErr)
		require.NoError(t, err)
		defer subA.Close()
		subB, err := transport.Subscribe(ctx, second, b.add, noErr)
		require.NoError(t, err)
		defer subB.Close()

		require.NoError(t, transport.Publish(ctx, first, "a1"))
		require.NoError(t, transport.Publish(ctx, second, "b1"))

		assert.Eventually(t, func() bool { return len(a.get()) == 1 && len(b.get()) == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"a1"}, a.get())
		assert.Equal(t, []string{"b1"}, b.get())
	})
}
