// Package runner drives the looped execution of a sandboxed script and
// streams per-iteration progress to the initiating client.
package runner

import (
	"context"
	"time"

	"github.com/rapzz3312/waconsole/internal/logging"
	"github.com/rapzz3312/waconsole/internal/push"
)

// Invoker is one sandbox invocation. Satisfied by *sandbox.Engine.
type Invoker interface {
	Run(ctx context.Context) (summary string, err error)
}

// Request carries the loop parameters for one orchestration.
type Request struct {
	ChannelID string
	Loop      int
	Delay     time.Duration
}

// IterationOutcome records one iteration. Outcomes are append-only and never
// mutated after the iteration's result event is emitted.
type IterationOutcome struct {
	Loop    int    `json:"loop"`
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"time"`
}

// Orchestrator runs iterations strictly sequentially: iteration i+1 never
// starts before iteration i's invocation and result event have completed, and
// the inter-iteration delay is a real suspension. A failed iteration never
// aborts the loop.
type Orchestrator struct {
	emitter push.Emitter
	logger  logging.Logger

	// observe, when set, is called once per finished iteration with its
	// duration and success flag. Used to feed metrics.
	observe func(elapsed time.Duration, success bool)
}

// New creates an orchestrator emitting on the given push channel.
func New(emitter push.Emitter, logger logging.Logger) *Orchestrator {
	return &Orchestrator{emitter: emitter, logger: logging.OrNop(logger)}
}

// SetObserver installs the per-iteration observation hook.
func (o *Orchestrator) SetObserver(fn func(elapsed time.Duration, success bool)) {
	o.observe = fn
}

// Run executes req.Loop iterations of the invoker and returns the ordered
// outcomes. The server-side loop always runs to completion; callers that stop
// listening simply miss the remaining events.
func (o *Orchestrator) Run(ctx context.Context, req Request, invoker Invoker) []IterationOutcome {
	outcomes := make([]IterationOutcome, 0, req.Loop)

	for i := 1; i <= req.Loop; i++ {
		o.emit(req.ChannelID, push.NewProgressEvent(i, req.Loop))

		start := time.Now()
		summary, err := invoker.Run(ctx)
		elapsed := time.Since(start)

		outcome := IterationOutcome{
			Loop:    i,
			Elapsed: elapsed.Round(time.Millisecond).String(),
		}
		if err != nil {
			outcome.Error = err.Error()
			o.logger.Warn("Iteration %d/%d failed after %s: %v", i, req.Loop, elapsed, err)
		} else {
			outcome.Success = true
			outcome.Result = summary
			o.logger.Debug("Iteration %d/%d completed in %s", i, req.Loop, elapsed)
		}
		outcomes = append(outcomes, outcome)

		if o.observe != nil {
			o.observe(elapsed, outcome.Success)
		}

		o.emit(req.ChannelID, push.NewResultEvent(push.ResultPayload{
			Loop:    outcome.Loop,
			Success: outcome.Success,
			Result:  outcome.Result,
			Error:   outcome.Error,
			Time:    outcome.Elapsed,
		}))

		if i < req.Loop && req.Delay > 0 {
			time.Sleep(req.Delay)
		}
	}

	return outcomes
}

func (o *Orchestrator) emit(channelID string, event push.Event) {
	if o.emitter != nil {
		o.emitter.Emit(channelID, event)
	}
}
