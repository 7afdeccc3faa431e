package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rapzz3312/waconsole/internal/capability"
	"github.com/rapzz3312/waconsole/internal/identity"
	"github.com/rapzz3312/waconsole/internal/logging"
	"github.com/rapzz3312/waconsole/internal/push"
	"github.com/rapzz3312/waconsole/internal/runner"
	"github.com/rapzz3312/waconsole/internal/sandbox"
	"github.com/rapzz3312/waconsole/internal/script"
	"github.com/rapzz3312/waconsole/internal/session"
)

// ExecuteRequest carries everything needed for one looped script run. It is
// transient, scoped to a single Execute call.
type ExecuteRequest struct {
	IdentityKey string
	Target      string
	ScriptText  string
	Loop        int
	DelayMs     int
	ChannelID   string
}

// ConsoleService ties the session registry, script validator, sandbox and
// loop orchestrator together behind the operations the HTTP layer exposes.
type ConsoleService struct {
	registry      *session.Registry
	emitter       push.Emitter
	logger        logging.Logger
	scriptTimeout time.Duration
	observe       func(elapsed time.Duration, success bool)
}

// ServiceOption customizes a ConsoleService.
type ServiceOption func(*ConsoleService)

// WithScriptTimeout overrides the per-iteration sandbox timeout.
func WithScriptTimeout(d time.Duration) ServiceOption {
	return func(s *ConsoleService) {
		if d > 0 {
			s.scriptTimeout = d
		}
	}
}

// WithIterationObserver installs a hook invoked after every iteration.
func WithIterationObserver(fn func(elapsed time.Duration, success bool)) ServiceOption {
	return func(s *ConsoleService) {
		s.observe = fn
	}
}

// NewConsoleService creates the application service.
func NewConsoleService(registry *session.Registry, emitter push.Emitter, logger logging.Logger, opts ...ServiceOption) *ConsoleService {
	s := &ConsoleService{
		registry:      registry,
		emitter:       emitter,
		logger:        logging.OrNop(logger),
		scriptTimeout: sandbox.DefaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Pair initiates pairing for the raw identifier and binds the session to the
// caller's push channel. Completion is asynchronous and observed via the
// channel's status events.
func (s *ConsoleService) Pair(ctx context.Context, rawIdentifier, channelID string) (session.PairResult, error) {
	res, err := s.registry.Pair(ctx, rawIdentifier, channelID)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidIdentifier) {
			return session.PairResult{}, fmt.Errorf("%s: %w", err.Error(), ErrValidation)
		}
		return session.PairResult{}, err
	}
	return res, nil
}

// Execute validates the request, then runs the script loop to completion and
// returns the ordered iteration outcomes. Progress, result and console events
// stream to the request's push channel while the loop runs.
func (s *ConsoleService) Execute(ctx context.Context, req ExecuteRequest) ([]runner.IterationOutcome, error) {
	if req.Target == "" {
		return nil, ValidationError("target is required")
	}
	if req.ScriptText == "" {
		return nil, ValidationError("script text is required")
	}
	if req.Loop < 1 {
		return nil, ValidationError("loop count must be at least 1")
	}
	if req.DelayMs < 0 {
		return nil, ValidationError("delay must not be negative")
	}

	key := identity.Normalize(req.IdentityKey)
	sess, ok := s.registry.Get(key)
	if !ok {
		return nil, SessionStateError(fmt.Sprintf("no session for %s", key))
	}
	if sess.Status() != session.StatusConnected {
		return nil, SessionStateError(fmt.Sprintf("session %s is %s, not connected", key, sess.Status()))
	}

	entry, err := script.ExtractEntryPoint(req.ScriptText)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), ErrValidation)
	}

	// The adapter binding is ephemeral: it wraps the session's current
	// handle for this request only and is dropped when the loop returns.
	engine := sandbox.New(sandbox.Config{
		ScriptText: req.ScriptText,
		EntryPoint: entry,
		Adapter:    capability.NewAdapter(sess.Handle()),
		Target:     req.Target,
		Emitter:    s.emitter,
		ChannelID:  req.ChannelID,
		Timeout:    s.scriptTimeout,
		Logger:     s.logger,
	})

	orch := runner.New(s.emitter, s.logger)
	if s.observe != nil {
		orch.SetObserver(s.observe)
	}

	s.logger.Info("Executing script %q against %s for session %s (loop=%d delay=%dms)",
		entry, req.Target, key, req.Loop, req.DelayMs)

	outcomes := orch.Run(ctx, runner.Request{
		ChannelID: req.ChannelID,
		Loop:      req.Loop,
		Delay:     time.Duration(req.DelayMs) * time.Millisecond,
	}, engine)
	return outcomes, nil
}

// Disconnect tears down the identity's session. Idempotent, succeeds even if
// no session exists.
func (s *ConsoleService) Disconnect(rawIdentifier string) error {
	return s.registry.Disconnect(rawIdentifier)
}

// ListSessions returns all sessions ordered by creation time.
func (s *ConsoleService) ListSessions() []session.Info {
	return s.registry.List()
}
