package fake

import (
	"context"
	"sync"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
)

var _ ports.Transport = (*Transport)(nil)

// Transport is an in-memory ports.Transport that records Subscribe and Close.
// Tests push messages with Deliver rather than through a producer.
type Transport struct {
	rec *CallRecorder

	mu   sync.Mutex
	subs map[string]*subscription

	SubscribeErr func(channel string) error
}

// NewTransport creates a fake transport recording into rec.
func NewTransport(rec *CallRecorder) *Transport {
	return &Transport{
		rec:  rec,
		subs: make(map[string]*subscription),
	}
}

type subscription struct {
	t         *Transport
	channel   string
	onMessage ports.MessageHandler
	onError   ports.ErrorHandler
	closed    bool
}

func (s *subscription) Channel() string { return s.channel }

func (s *subscription) Close() error {
	s.t.mu.Lock()
	if s.closed {
		s.t.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.t.subs[s.channel] == s {
		delete(s.t.subs, s.channel)
	}
	s.t.mu.Unlock()
	s.t.rec.record("Close", s.channel)
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, channel string, onMessage ports.MessageHandler, onError ports.ErrorHandler) (ports.Subscription, error) {
	t.rec.record("Subscribe", channel)
	if t.SubscribeErr != nil {
		if err := t.SubscribeErr(channel); err != nil {
			return nil, &domain.SubscriptionError{Channel: channel, Err: err}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subs[channel]; ok {
		return nil, &domain.SubscriptionError{Channel: channel, Err: domain.ErrChannelInUse}
	}
	sub := &subscription{t: t, channel: channel, onMessage: onMessage, onError: onError}
	t.subs[channel] = sub
	return sub, nil
}

func (t *Transport) Publish(ctx context.Context, channel string, msg string) error {
	t.Deliver(channel, msg)
	return nil
}

// Deliver hands msg to the channel's subscriber. It reports whether one existed.
func (t *Transport) Deliver(channel, msg string) bool {
	t.mu.Lock()
	sub := t.subs[channel]
	t.mu.Unlock()
	if sub == nil {
		return false
	}
	sub.onMessage(msg)
	return true
}

// Open reports whether channel has a live subscription.
func (t *Transport) Open(channel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.subs[channel]
	return ok
}

// OpenChannels returns the names of every live subscription.
func (t *Transport) OpenChannels() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.subs))
	for ch := range t.subs {
		out = append(out, ch)
	}
	return out
}
