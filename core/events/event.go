package events

import (
	"sync"

	"cryptvault/core/types"
)

// Event represents a structured state change emitted by the vault or strategy.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. HTTP, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(e Event) {
	if r == nil || e == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType filters the recorded events by type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Fanout forwards every event to each wrapped emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(e Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(e)
		}
	}
}
