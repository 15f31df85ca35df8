// Package dispatch routes typed gateway events to registered listeners. It is
// the single entry point the transport layer calls; listeners own the cache
// synchronization and re-publication that follow.
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
)

// Listener binds one event type to a handler. Enabled is evaluated at
// dispatch time, not at registration, so externally-supplied feature flags
// take effect per event.
type Listener struct {
	Event   EventType
	Enabled func() bool
	Handle  func(ctx context.Context, evt *Event) error
}

// Dispatcher holds the ordered listener registry. The registry is built once
// at startup via Register; Dispatch only reads it, so no locking is needed
// on the hot path.
type Dispatcher struct {
	listeners map[EventType][]Listener
	logger    zerolog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		listeners: make(map[EventType][]Listener),
		logger:    logger.With().Str("component", "Dispatcher").Logger(),
	}
}

// Register appends listeners to the registry in the given order. It must not
// be called concurrently with Dispatch.
func (d *Dispatcher) Register(listeners ...Listener) {
	for _, l := range listeners {
		d.listeners[l.Event] = append(d.listeners[l.Event], l)
	}
}

// Dispatch invokes every registered listener for the event type in
// registration order, awaiting each handler before the next. Listeners for
// the same event share cache state: a later listener observes mutations made
// by earlier ones. Handler errors are logged and do not stop later
// listeners; no error in this path is caller-facing.
//
// Processing of a single event is sequential; distinct events may be
// dispatched concurrently by the transport layer.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType EventType, shardID int, payload json.RawMessage) {
	matched := d.listeners[eventType]
	if len(matched) == 0 {
		return
	}

	evt := &Event{Type: eventType, ShardID: shardID, Payload: payload}
	for _, l := range matched {
		if l.Enabled != nil && !l.Enabled() {
			continue
		}
		if err := l.Handle(ctx, evt); err != nil {
			d.logger.Error().Err(err).
				Str("event_type", string(eventType)).
				Int("shard_id", shardID).
				Msg("Listener failed to process event.")
		}
	}
}
