package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
)

var _ ports.Transport = (*Bus)(nil)

// Bus implements ports.Transport in memory.
// Publish delivers synchronously on the caller's goroutine; concurrent
// publishers on one channel are serialised so handlers see arrival order.
// Safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string]*subscription
	unavailable error
}

// NewBus creates an empty in-memory bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]*subscription),
	}
}

type subscription struct {
	bus       *Bus
	channel   string
	onMessage ports.MessageHandler
	onError   ports.ErrorHandler
	deliver   sync.Mutex
	closed    atomic.Bool
}

func (s *subscription) Channel() string { return s.channel }

func (s *subscription) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.bus.remove(s)
	return nil
}

// Subscribe binds the handler to channel.
func (b *Bus) Subscribe(ctx context.Context, channel string, onMessage ports.MessageHandler, onError ports.ErrorHandler) (ports.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.SubscriptionError{Channel: channel, Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.unavailable != nil {
		return nil, &domain.SubscriptionError{Channel: channel, Err: b.unavailable}
	}
	if _, exists := b.subs[channel]; exists {
		return nil, &domain.SubscriptionError{Channel: channel, Err: domain.ErrChannelInUse}
	}

	sub := &subscription{
		bus:       b,
		channel:   channel,
		onMessage: onMessage,
		onError:   onError,
	}
	b.subs[channel] = sub
	return sub, nil
}

// Publish delivers msg to the channel's subscriber, if any.
// Messages published to a channel without a subscriber are dropped.
func (b *Bus) Publish(ctx context.Context, channel string, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	sub := b.subs[channel]
	b.mu.RUnlock()
	if sub == nil {
		return nil
	}

	sub.deliver.Lock()
	defer sub.deliver.Unlock()
	if sub.closed.Load() {
		return nil
	}
	sub.onMessage(msg)
	return nil
}

// Fail simulates a terminal transport failure on channel: the subscriber's
// error handler runs once and the subscription is closed.
func (b *Bus) Fail(channel string, err error) {
	b.mu.RLock()
	sub := b.subs[channel]
	b.mu.RUnlock()
	if sub == nil || sub.closed.Swap(true) {
		return
	}
	b.remove(sub)
	if sub.onError != nil {
		sub.onError(&domain.SubscriptionError{Channel: channel, Err: err})
	}
}

// SetUnavailable makes every subsequent Subscribe fail with err. Pass nil to recover.
func (b *Bus) SetUnavailable(err error) {
	b.mu.Lock()
	b.unavailable = err
	b.mu.Unlock()
}

// Subscribed reports whether channel currently has a subscriber.
func (b *Bus) Subscribed(channel string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subs[channel]
	return ok
}

// Channels returns the number of live subscriptions.
func (b *Bus) Channels() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[sub.channel] == sub {
		delete(b.subs, sub.channel)
	}
}
