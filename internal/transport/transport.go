// Package transport defines the seam between the console and the external
// messaging protocol. The console never touches protocol internals; it
// consumes connections through the Handle interface and observes connectivity
// through the handle's event channel.
package transport

import "context"

// EventType identifies a connectivity-relevant event emitted by a handle.
type EventType string

const (
	// EventConnected fires when the protocol handshake completes and the
	// handle is ready for sends.
	EventConnected EventType = "connected"
	// EventDisconnected fires when the connection closes for any reason.
	EventDisconnected EventType = "disconnected"
	// EventCredentials fires whenever the protocol layer rotates or refreshes
	// credential material that must be persisted.
	EventCredentials EventType = "credentials"
)

// Event is delivered on a handle's event channel.
type Event struct {
	Type   EventType
	Reason string
	// DeviceInfo carries identity metadata on EventConnected.
	DeviceInfo map[string]string
	// Credentials carries the blob to persist on credential-relevant events.
	Credentials []byte
}

// SendRequest describes one outbound message. Exactly the fields relevant to
// Kind are set; the rest stay zero.
type SendRequest struct {
	Kind      string         // text, image, video, audio, contact, location, poll, raw
	To        string
	Text      string
	URL       string
	Caption   string
	VCard     string
	Latitude  float64
	Longitude float64
	Label     string
	Question  string
	Options   []string
	Raw       map[string]any // for raw/generic message specs
}

// Handle is one live protocol connection, exclusively owned by a single
// session. Closing the session closes the handle.
type Handle interface {
	// Send delivers a message and returns the transport-assigned message id.
	Send(ctx context.Context, req SendRequest) (string, error)

	// React attaches an emoji reaction to an earlier message.
	React(ctx context.Context, to, messageID, emoji string) error

	// Delete retracts an earlier message.
	Delete(ctx context.Context, to, messageID string) error

	// Presence looks up the availability of an identity.
	Presence(ctx context.Context, identityKey string) (string, error)

	// RequestPairingCode asks the protocol layer for a human-readable pairing
	// code for the given identity.
	RequestPairingCode(ctx context.Context, identityKey string) (string, error)

	// Events returns the channel of connectivity events. The channel is
	// closed when the handle is closed.
	Events() <-chan Event

	// Close tears the connection down. Idempotent.
	Close() error
}

// CredentialSink receives credential material the protocol layer needs
// persisted across restarts.
type CredentialSink interface {
	Save(identityKey string, blob []byte) error
	Load(identityKey string) ([]byte, error)
	Delete(identityKey string) error
}

// OpenFunc opens a new protocol connection for an identity, restoring and
// persisting credentials through the sink.
type OpenFunc func(ctx context.Context, identityKey string, creds CredentialSink) (Handle, error)
