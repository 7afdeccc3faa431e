package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rapzz3312/waconsole/internal/identity"
	"github.com/rapzz3312/waconsole/internal/logging"
	"github.com/rapzz3312/waconsole/internal/push"
	"github.com/rapzz3312/waconsole/internal/transport"
)

// DefaultGracePeriod is how long a DISCONNECTED session lingers before it is
// reaped.
const DefaultGracePeriod = 5 * time.Minute

// Registry owns every live session in the process, addressable by identity
// key. Pairing, disconnect and reap all mutate the map under the registry
// mutex; state transitions happen only in the per-session event loop.
type Registry struct {
	open    transport.OpenFunc
	creds   transport.CredentialSink
	emitter push.Emitter
	grace   time.Duration
	logger  logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	onCount  func(n int)
}

// Option configures optional registry behavior.
type Option func(*Registry)

// WithGracePeriod overrides the reap grace period.
func WithGracePeriod(grace time.Duration) Option {
	return func(r *Registry) {
		r.grace = grace
	}
}

// WithSessionCountHook installs a callback invoked with the live session
// count after every map mutation. Used to feed the active-sessions gauge.
func WithSessionCountHook(fn func(n int)) Option {
	return func(r *Registry) {
		r.onCount = fn
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(open transport.OpenFunc, creds transport.CredentialSink, emitter push.Emitter, logger logging.Logger, opts ...Option) *Registry {
	r := &Registry{
		open:    open,
		creds:   creds,
		emitter: emitter,
		grace:   DefaultGracePeriod,
		logger:  logging.OrNop(logger),
	}
	r.sessions = make(map[string]*Session)
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// PairResult reports the synchronous outcome of a pairing request.
type PairResult struct {
	IdentityKey      string
	AlreadyConnected bool
}

// Pair normalizes and validates the raw identifier, then either reports the
// existing session or opens a new transport handle bound to the credential
// store. Completion is asynchronous: the caller observes CONNECTED via the
// push channel.
func (r *Registry) Pair(ctx context.Context, rawIdentifier, channelID string) (PairResult, error) {
	key, err := identity.NormalizeAndValidate(rawIdentifier)
	if err != nil {
		return PairResult{}, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[key]; ok {
		switch existing.Status() {
		case StatusConnected:
			r.mu.Unlock()
			r.logger.Info("Pair request for already-connected %s is a no-op", key)
			return PairResult{IdentityKey: key, AlreadyConnected: true}, nil
		case StatusConnecting:
			r.mu.Unlock()
			r.logger.Info("Pair request for %s while pairing is already in flight", key)
			return PairResult{IdentityKey: key}, nil
		default:
			// A lingering DISCONNECTED session is replaced by the new
			// pairing attempt.
			delete(r.sessions, key)
			if handle := existing.Handle(); handle != nil {
				_ = handle.Close()
			}
		}
	}

	sess := &Session{
		identityKey: key,
		channelID:   channelID,
		createdAt:   time.Now(),
		status:      StatusConnecting,
	}
	r.sessions[key] = sess
	count := len(r.sessions)
	r.mu.Unlock()
	r.notifyCount(count)

	handle, err := r.open(ctx, key, r.creds)
	if err != nil {
		r.remove(key, sess)
		return PairResult{}, fmt.Errorf("open transport for %s: %w", key, err)
	}
	sess.setHandle(handle)

	go r.watch(sess, handle)

	r.emit(sess, push.NewStatusEvent(push.StatusPayload{Status: string(StatusConnecting), Phone: key}))
	r.logger.Info("Pairing initiated for %s (channel=%s)", key, channelID)
	return PairResult{IdentityKey: key}, nil
}

// watch is the per-session event loop and the only place a session's status
// field is transitioned.
func (r *Registry) watch(sess *Session, handle transport.Handle) {
	for ev := range handle.Events() {
		switch ev.Type {
		case transport.EventConnected:
			r.onConnected(sess, handle, ev)
		case transport.EventDisconnected:
			r.onDisconnected(sess, ev)
		case transport.EventCredentials:
			r.persistCredentials(sess, ev.Credentials)
		}
	}
}

func (r *Registry) onConnected(sess *Session, handle transport.Handle, ev transport.Event) {
	sess.setStatus(StatusConnected)
	r.persistCredentials(sess, ev.Credentials)

	r.emit(sess, push.NewStatusEvent(push.StatusPayload{
		Status:     string(StatusConnected),
		Phone:      sess.IdentityKey(),
		DeviceInfo: ev.DeviceInfo,
	}))
	r.logger.Info("Session %s connected", sess.IdentityKey())

	// Pairing code delivery is best-effort and requested off the event loop
	// so a slow transport cannot delay later transitions.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		code, err := handle.RequestPairingCode(ctx, sess.IdentityKey())
		if err != nil {
			r.logger.Warn("Pairing code request failed for %s: %v", sess.IdentityKey(), err)
			return
		}
		if sess.Status() != StatusConnected {
			return
		}
		if formatted := identity.FormatPairingCode(code); formatted != "" {
			r.emit(sess, push.NewPairingCodeEvent(formatted))
		}
	}()
}

func (r *Registry) onDisconnected(sess *Session, ev transport.Event) {
	sess.setStatus(StatusDisconnected)
	r.emit(sess, push.NewStatusEvent(push.StatusPayload{
		Status: string(StatusDisconnected),
		Phone:  sess.IdentityKey(),
		Reason: ev.Reason,
	}))
	r.logger.Info("Session %s disconnected: %s", sess.IdentityKey(), ev.Reason)

	// Deferred reap. A reconnection flips the status back to CONNECTED
	// before the timer fires, which defuses it.
	time.AfterFunc(r.grace, func() {
		r.reap(sess)
	})
}

func (r *Registry) persistCredentials(sess *Session, blob []byte) {
	if len(blob) == 0 || r.creds == nil {
		return
	}
	if err := r.creds.Save(sess.IdentityKey(), blob); err != nil {
		r.logger.Error("Failed to persist credentials for %s: %v", sess.IdentityKey(), err)
	}
}

// reap removes the session only if it is still this session and still
// disconnected at fire time.
func (r *Registry) reap(sess *Session) {
	key := sess.IdentityKey()

	r.mu.Lock()
	current, ok := r.sessions[key]
	if !ok || current != sess || sess.Status() != StatusDisconnected {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, key)
	count := len(r.sessions)
	r.mu.Unlock()
	r.notifyCount(count)

	if handle := sess.Handle(); handle != nil {
		_ = handle.Close()
	}
	r.logger.Info("Reaped session %s after %s in disconnected state", key, r.grace)
}

// Disconnect tears a session down immediately, regardless of grace period.
// It is idempotent: disconnecting an unknown identity succeeds.
func (r *Registry) Disconnect(rawIdentifier string) error {
	key := identity.Normalize(rawIdentifier)

	r.mu.Lock()
	sess, ok := r.sessions[key]
	if ok {
		delete(r.sessions, key)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	r.notifyCount(count)

	if handle := sess.Handle(); handle != nil {
		_ = handle.Close()
	}
	r.logger.Info("Session %s disconnected by request", key)
	return nil
}

// Get returns the session for a normalized identity key.
func (r *Registry) Get(identityKey string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[identityKey]
	return sess, ok
}

// List returns every live session ordered by creation time.
func (r *Registry) List() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.sessions))
	for _, sess := range r.sessions {
		infos = append(infos, Info{
			IdentityKey: sess.IdentityKey(),
			Status:      sess.Status(),
			CreatedAt:   sess.CreatedAt(),
		})
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Close tears down every session. Used at process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	r.notifyCount(0)

	for _, sess := range sessions {
		if handle := sess.Handle(); handle != nil {
			_ = handle.Close()
		}
	}
}

func (r *Registry) remove(key string, sess *Session) {
	r.mu.Lock()
	if current, ok := r.sessions[key]; ok && current == sess {
		delete(r.sessions, key)
	}
	count := len(r.sessions)
	r.mu.Unlock()
	r.notifyCount(count)
}

func (r *Registry) emit(sess *Session, event push.Event) {
	if r.emitter != nil {
		r.emitter.Emit(sess.ChannelID(), event)
	}
}

func (r *Registry) notifyCount(n int) {
	if r.onCount != nil {
		r.onCount(n)
	}
}
