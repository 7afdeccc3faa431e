// Package push delivers one-way, best-effort events from the server to the
// client that initiated an operation, addressed by a channel id the client
// obtained when it connected.
package push

import "time"

// Event is one push-channel message.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter is the delivery seam the core depends on. Emit is fire-and-forget:
// implementations must never block the caller.
type Emitter interface {
	Emit(channelID string, event Event)
}

// StatusPayload reports a session lifecycle transition.
type StatusPayload struct {
	Status     string            `json:"status"`
	Phone      string            `json:"phone,omitempty"`
	DeviceInfo map[string]string `json:"deviceInfo,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

// PairingCodePayload carries the formatted pairing code.
type PairingCodePayload struct {
	Code string `json:"code"`
}

// ProgressPayload announces the start of one loop iteration.
type ProgressPayload struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ResultPayload reports the outcome of one loop iteration.
type ResultPayload struct {
	Loop    int    `json:"loop"`
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Time    string `json:"time"`
}

// ConsolePayload forwards a log line produced inside a sandboxed script.
type ConsolePayload struct {
	Message string `json:"message"`
}

func newEvent(eventType string, payload any) Event {
	return Event{Type: eventType, Payload: payload, Timestamp: time.Now()}
}

// NewStatusEvent builds a "status" event.
func NewStatusEvent(payload StatusPayload) Event {
	return newEvent("status", payload)
}

// NewPairingCodeEvent builds a "pairing_code" event.
func NewPairingCodeEvent(code string) Event {
	return newEvent("pairing_code", PairingCodePayload{Code: code})
}

// NewProgressEvent builds a "progress" event.
func NewProgressEvent(current, total int) Event {
	return newEvent("progress", ProgressPayload{Current: current, Total: total})
}

// NewResultEvent builds a "result" event.
func NewResultEvent(payload ResultPayload) Event {
	return newEvent("result", payload)
}

// NewConsoleEvent builds a "console" event.
func NewConsoleEvent(message string) Event {
	return newEvent("console", ConsolePayload{Message: message})
}
