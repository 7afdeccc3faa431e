package session

import (
	"sync"
	"time"

	"github.com/rapzz3312/waconsole/internal/transport"
)

// Status is a session's position in the connectivity lifecycle.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Session is the registry's record of one identity's connectivity lifecycle
// and its exclusively-owned transport handle. State transitions are driven
// only by transport events, never by script execution.
type Session struct {
	identityKey string
	channelID   string // push channel binding, immutable after creation
	createdAt   time.Time

	mu     sync.RWMutex
	status Status
	handle transport.Handle
}

// IdentityKey returns the normalized identity key.
func (s *Session) IdentityKey() string {
	return s.identityKey
}

// ChannelID returns the push channel bound at creation.
func (s *Session) ChannelID() string {
	return s.channelID
}

// CreatedAt returns the creation timestamp.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Handle returns the owned transport handle.
func (s *Session) Handle() transport.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Session) setHandle(handle transport.Handle) {
	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()
}

// Info is the list-view projection of a session.
type Info struct {
	IdentityKey string    `json:"identityKey"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}
