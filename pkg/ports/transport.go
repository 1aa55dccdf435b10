package ports

import "context"

// MessageHandler receives one text message from a channel.
type MessageHandler func(msg string)

// ErrorHandler receives a terminal transport failure for a channel.
type ErrorHandler func(err error)

// Subscription is a live binding between a channel and its handler.
type Subscription interface {
	// Channel returns the subscribed channel name.
	Channel() string

	// Close detaches the handler. It is idempotent.
	Close() error
}

// Subscriber opens output channels.
//
// A channel has at most one subscriber. Messages are delivered to onMessage
// synchronously and in arrival order. A failure to subscribe is returned as a
// *domain.SubscriptionError and is never retried. A terminal failure after the
// subscription was established is reported once through onError, after which
// the subscription is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, onMessage MessageHandler, onError ErrorHandler) (Subscription, error)
}

// Publisher is the producer side of the transport.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg string) error
}

// Transport is a transport that can both produce and consume.
type Transport interface {
	Subscriber
	Publisher
}
