package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockHandle implements Handle for tests. It records every operation and lets
// tests drive connectivity events and inject per-operation failures.
type MockHandle struct {
	mu sync.Mutex

	events chan Event
	closed bool

	// Error overrides. SendErr applies to every Send; SendErrByKind wins for
	// a matching kind.
	SendErr       error
	SendErrByKind map[string]error
	ReactErr      error
	DeleteErr     error
	PresenceErr   error
	PairingErr    error

	// PresenceStatus is returned by Presence when PresenceErr is nil.
	PresenceStatus string
	// PairingCode is returned by RequestPairingCode when PairingErr is nil.
	PairingCode string
	// PairingDelay makes RequestPairingCode block, honoring ctx cancellation.
	PairingDelay time.Duration

	nextID int

	SendCalls    []SendRequest
	ReactCalls   []MockReactCall
	DeleteCalls  []MockDeleteCall
	PairingCalls []string
	CloseCalls   int
}

// MockReactCall records a React call.
type MockReactCall struct {
	To        string
	MessageID string
	Emoji     string
}

// MockDeleteCall records a Delete call.
type MockDeleteCall struct {
	To        string
	MessageID string
}

// NewMockHandle creates a mock with a buffered event channel.
func NewMockHandle() *MockHandle {
	return &MockHandle{
		events:         make(chan Event, 16),
		SendErrByKind:  make(map[string]error),
		PresenceStatus: "available",
		PairingCode:    "WXYZ1234",
	}
}

// Emit pushes a connectivity event to the handle's consumer.
func (m *MockHandle) Emit(ev Event) {
	m.events <- ev
}

// Send records the request and returns a synthetic message id.
func (m *MockHandle) Send(_ context.Context, req SendRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendCalls = append(m.SendCalls, req)
	if err, ok := m.SendErrByKind[req.Kind]; ok && err != nil {
		return "", err
	}
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.nextID++
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

func (m *MockHandle) React(_ context.Context, to, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReactCalls = append(m.ReactCalls, MockReactCall{To: to, MessageID: messageID, Emoji: emoji})
	return m.ReactErr
}

func (m *MockHandle) Delete(_ context.Context, to, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls = append(m.DeleteCalls, MockDeleteCall{To: to, MessageID: messageID})
	return m.DeleteErr
}

func (m *MockHandle) Presence(_ context.Context, identityKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PresenceErr != nil {
		return "", m.PresenceErr
	}
	return m.PresenceStatus, nil
}

func (m *MockHandle) RequestPairingCode(ctx context.Context, identityKey string) (string, error) {
	m.mu.Lock()
	delay := m.PairingDelay
	m.PairingCalls = append(m.PairingCalls, identityKey)
	if m.PairingErr != nil {
		m.mu.Unlock()
		return "", m.PairingErr
	}
	code := m.PairingCode
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return code, nil
}

func (m *MockHandle) Events() <-chan Event {
	return m.events
}

// Close closes the event channel once and counts calls.
func (m *MockHandle) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}

// SendCount returns the number of Send calls recorded so far.
func (m *MockHandle) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SendCalls)
}
