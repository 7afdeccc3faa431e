package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rapzz3312/waconsole/internal/logging"
)

// LoopbackHandle is a self-contained transport for local development. It
// connects immediately, acknowledges every operation without touching the
// network and persists a placeholder credential blob so the registry's
// persistence path runs end to end.
type LoopbackHandle struct {
	identityKey string
	logger      logging.Logger

	mu     sync.Mutex
	nextID int
	closed bool
	events chan Event
}

// OpenLoopback is an OpenFunc for running the console without a real
// messaging backend.
func OpenLoopback(_ context.Context, identityKey string, _ CredentialSink) (Handle, error) {
	h := &LoopbackHandle{
		identityKey: identityKey,
		logger:      logging.NewComponentLogger("LoopbackTransport"),
		events:      make(chan Event, 16),
	}

	// Connect asynchronously, mirroring a real pairing handshake.
	go func() {
		time.Sleep(50 * time.Millisecond)
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.closed {
			return
		}
		h.events <- Event{
			Type:        EventConnected,
			DeviceInfo:  map[string]string{"platform": "loopback"},
			Credentials: []byte(fmt.Sprintf(`{"identity":%q,"loopback":true}`, identityKey)),
		}
	}()
	return h, nil
}

func (h *LoopbackHandle) Send(_ context.Context, req SendRequest) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := fmt.Sprintf("loopback-%d", h.nextID)
	h.logger.Info("Loopback %s to %s (id=%s)", req.Kind, req.To, id)
	return id, nil
}

func (h *LoopbackHandle) React(_ context.Context, to, messageID, emoji string) error {
	h.logger.Info("Loopback react %s on %s for %s", emoji, messageID, to)
	return nil
}

func (h *LoopbackHandle) Delete(_ context.Context, to, messageID string) error {
	h.logger.Info("Loopback delete %s for %s", messageID, to)
	return nil
}

func (h *LoopbackHandle) Presence(_ context.Context, identityKey string) (string, error) {
	return "available", nil
}

func (h *LoopbackHandle) RequestPairingCode(_ context.Context, identityKey string) (string, error) {
	return "LOOP0000", nil
}

func (h *LoopbackHandle) Events() <-chan Event {
	return h.events
}

func (h *LoopbackHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.events)
	return nil
}
