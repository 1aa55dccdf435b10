package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/foreman/internal/logging"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

var _ ports.Transport = (*Transport)(nil)

// DefaultPrefix namespaces every key and pub/sub channel written by the adapters.
const DefaultPrefix = "foreman:"

// Transport implements ports.Transport on Redis pub/sub.
// The single-subscriber rule is enforced per Transport instance.
type Transport struct {
	client *backend.Client
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithChannelPrefix sets the prefix prepended to pub/sub channel names.
func WithChannelPrefix(prefix string) TransportOption {
	return func(t *Transport) {
		t.prefix = prefix
	}
}

// WithTransportLogger sets the transport logger.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates a transport from an existing client.
func NewTransport(client *backend.Client, opts ...TransportOption) *Transport {
	t := &Transport{
		client: client,
		prefix: DefaultPrefix,
		logger: logging.NewNop(),
		active: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) key(channel string) string {
	return t.prefix + channel
}

// Subscribe opens a Redis subscription and waits for the server to confirm it
// before returning, so messages published afterwards are never missed.
func (t *Transport) Subscribe(ctx context.Context, channel string, onMessage ports.MessageHandler, onError ports.ErrorHandler) (ports.Subscription, error) {
	t.mu.Lock()
	if _, exists := t.active[channel]; exists {
		t.mu.Unlock()
		return nil, &domain.SubscriptionError{Channel: channel, Err: domain.ErrChannelInUse}
	}
	t.active[channel] = struct{}{}
	t.mu.Unlock()

	ps := t.client.Subscribe(ctx, t.key(channel))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		t.release(channel)
		return nil, &domain.SubscriptionError{Channel: channel, Err: err}
	}

	sub := &subscription{
		transport: t,
		channel:   channel,
		ps:        ps,
		onMessage: onMessage,
		onError:   onError,
	}
	go sub.pump()

	t.logger.Debug("Subscribed", "channel", channel)
	return sub, nil
}

// Publish sends msg on channel.
func (t *Transport) Publish(ctx context.Context, channel string, msg string) error {
	if err := t.client.Publish(ctx, t.key(channel), msg).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (t *Transport) release(channel string) {
	t.mu.Lock()
	delete(t.active, channel)
	t.mu.Unlock()
}

type subscription struct {
	transport *Transport
	channel   string
	ps        *backend.PubSub
	onMessage ports.MessageHandler
	onError   ports.ErrorHandler
	closed    atomic.Bool
}

func (s *subscription) Channel() string { return s.channel }

func (s *subscription) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.transport.release(s.channel)
	if err := s.ps.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", s.channel, err)
	}
	return nil
}

// pump delivers messages on a single goroutine so the handler sees them in
// arrival order. The first receive error after an established subscription is
// terminal unless the subscription was closed locally.
func (s *subscription) pump() {
	ctx := context.Background()
	for {
		msg, err := s.ps.ReceiveMessage(ctx)
		if err != nil {
			if s.closed.Swap(true) {
				return
			}
			s.transport.release(s.channel)
			_ = s.ps.Close()
			s.transport.logger.Warn("Subscription lost", "channel", s.channel, "err", err)
			if s.onError != nil {
				s.onError(&domain.SubscriptionError{Channel: s.channel, Err: err})
			}
			return
		}
		if s.closed.Load() {
			return
		}
		s.onMessage(msg.Payload)
	}
}
