package push

import "sync"

// Recorder is an Emitter that captures events for assertions in tests.
type Recorder struct {
	mu     sync.Mutex
	events map[string][]Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{events: make(map[string][]Event)}
}

// Emit implements Emitter.
func (r *Recorder) Emit(channelID string, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[channelID] = append(r.events[channelID], event)
}

// Events returns a copy of the events emitted to a channel, in order.
func (r *Recorder) Events(channelID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events[channelID]))
	copy(out, r.events[channelID])
	return out
}

// EventsOfType filters a channel's events by type, preserving order.
func (r *Recorder) EventsOfType(channelID, eventType string) []Event {
	var out []Event
	for _, ev := range r.Events(channelID) {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
