// Package tracker follows machine status channels and fires one-shot
// listeners when a machine first reports running.
package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/foreman/internal/logging"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
)

// Listener is called once when a tracked machine first reports running.
type Listener func(id domain.MachineID)

// Observer receives every decoded status event in transport order.
type Observer func(event domain.StatusEvent)

type entry struct {
	sub      ports.Subscription
	listener Listener
}

// Tracker owns one status subscription per tracked machine and a single
// listener slot per machine. It never holds session state.
type Tracker struct {
	subscriber ports.Subscriber
	logger     *slog.Logger
	observer   Observer

	mu      sync.Mutex
	entries map[domain.MachineID]*entry
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithObserver registers an observer for every status event.
func WithObserver(observer Observer) Option {
	return func(t *Tracker) {
		t.observer = observer
	}
}

// New creates a tracker reading status channels from subscriber.
func New(subscriber ports.Subscriber, opts ...Option) *Tracker {
	t := &Tracker{
		subscriber: subscriber,
		logger:     logging.NewNop(),
		entries:    make(map[domain.MachineID]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track starts following id and sets its listener slot. The status channel is
// subscribed only once per id; further calls only replace the listener, and a
// nil listener clears it.
func (t *Tracker) Track(ctx context.Context, id domain.MachineID, listener Listener) error {
	t.mu.Lock()
	if e, ok := t.entries[id]; ok {
		e.listener = listener
		t.mu.Unlock()
		return nil
	}
	e := &entry{listener: listener}
	t.entries[id] = e
	t.mu.Unlock()

	channel := domain.StatusChannel(id)
	sub, err := t.subscriber.Subscribe(ctx, channel,
		func(msg string) { t.handle(id, msg) },
		func(err error) {
			t.logger.Warn("Status channel lost", "machine_id", id, "err", err)
		},
	)
	if err != nil {
		t.mu.Lock()
		if t.entries[id] == e {
			delete(t.entries, id)
		}
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	if t.entries[id] != e {
		// Stopped while subscribing.
		t.mu.Unlock()
		_ = sub.Close()
		return nil
	}
	e.sub = sub
	t.mu.Unlock()

	t.logger.Debug("Tracking machine", "machine_id", id, "channel", channel)
	return nil
}

// Stop clears the listener for id, closes its status subscription and fires
// onDestroyed once. Stopping an untracked id is a no-op.
func (t *Tracker) Stop(id domain.MachineID, onDestroyed Listener) {
	t.mu.Lock()
	e, ok := t.entries[id]
	delete(t.entries, id)
	t.mu.Unlock()

	if !ok {
		return
	}
	if e.sub != nil {
		if err := e.sub.Close(); err != nil {
			t.logger.Warn("Failed to close status channel", "machine_id", id, "err", err)
		}
	}
	if onDestroyed != nil {
		onDestroyed(id)
	}
}

// Tracked reports whether id is being followed.
func (t *Tracker) Tracked(id domain.MachineID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[id]
	return ok
}

// Close stops tracking every machine without firing destroyed callbacks.
func (t *Tracker) Close() {
	t.mu.Lock()
	ids := make([]domain.MachineID, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		t.Stop(id, nil)
	}
}

func (t *Tracker) handle(id domain.MachineID, msg string) {
	var event domain.StatusEvent
	if err := json.Unmarshal([]byte(msg), &event); err != nil {
		t.logger.Warn("Dropping undecodable status event", "machine_id", id, "err", err)
		return
	}
	if !event.Phase.Valid() {
		t.logger.Warn("Dropping status event with unknown phase", "machine_id", id, "phase", event.Phase)
		return
	}
	// The channel name is authoritative.
	event.MachineID = id

	if t.observer != nil {
		t.observer(event)
	}

	if event.Phase != domain.PhaseRunning {
		return
	}

	t.mu.Lock()
	var listener Listener
	if e, ok := t.entries[id]; ok {
		listener = e.listener
		e.listener = nil
	}
	t.mu.Unlock()

	if listener != nil {
		listener(id)
	}
}
