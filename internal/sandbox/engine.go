// Package sandbox runs validated user scripts inside an isolated goja VM.
//
// Isolation model: a fresh VM is built for every invocation, and the only
// host bindings installed are the capability object, the target identity, a
// console that forwards to the caller's push channel, and a small utils
// object. goja provides no ambient access to the process, filesystem, or
// network, so anything outside the allowlist fails with a ReferenceError
// inside the script rather than reaching the host.
package sandbox

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/rapzz3312/waconsole/internal/capability"
	"github.com/rapzz3312/waconsole/internal/logging"
	"github.com/rapzz3312/waconsole/internal/push"
)

// DefaultTimeout bounds a single script invocation.
const DefaultTimeout = 30 * time.Second

const resultSummaryLimit = 200

// TimeoutError marks an invocation that exceeded its wall-clock budget.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("script timed out after %s", e.Budget)
}

// ScriptError is any error raised inside the script, including capability
// call failures surfaced as exceptions.
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Config assembles one engine.
type Config struct {
	ScriptText string
	EntryPoint string
	Adapter    *capability.Adapter
	Target     string
	Emitter    push.Emitter
	ChannelID  string
	Timeout    time.Duration
	Logger     logging.Logger
}

// Engine executes one script's entry point repeatedly on behalf of the loop
// orchestrator. Each Run builds an isolated VM, evaluates the script text and
// invokes the entry point with (capability, target).
type Engine struct {
	cfg    Config
	logger logging.Logger
}

// New creates an engine. The script text is not evaluated here; evaluation
// errors surface per invocation so a bad script fails iterations instead of
// the whole request.
func New(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Engine{cfg: cfg, logger: logging.OrNop(cfg.Logger)}
}

// Run performs a single invocation and returns a truncated JSON summary of
// the entry point's return value.
func (e *Engine) Run(ctx context.Context) (string, error) {
	vm := goja.New()

	// The interrupt stops JavaScript; the context deadline bounds capability
	// calls blocked inside the transport. Both share the same budget.
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var timedOut atomic.Bool
	timer := time.AfterFunc(e.cfg.Timeout, func() {
		timedOut.Store(true)
		vm.Interrupt("timeout")
	})
	defer timer.Stop()
	defer vm.ClearInterrupt()

	// The timer and the context deadline fire independently; either one
	// means the budget is spent.
	expired := func() bool {
		return timedOut.Load() || errors.Is(ctx.Err(), context.DeadlineExceeded)
	}

	e.installConsole(vm)
	e.installUtils(vm)

	if _, err := vm.RunScript("user-script", e.cfg.ScriptText); err != nil {
		return "", e.classify(err, expired())
	}

	entry, ok := goja.AssertFunction(vm.Get(e.cfg.EntryPoint))
	if !ok {
		return "", &ScriptError{Message: fmt.Sprintf("entry point %q is not a function", e.cfg.EntryPoint)}
	}

	capObj := e.buildCapabilityObject(ctx, vm)
	result, err := entry(goja.Undefined(), capObj, vm.ToValue(e.cfg.Target))
	if err != nil {
		return "", e.classify(err, expired())
	}

	// An async entry point hands back a promise; by the time the call
	// returns, goja has drained the job queue, so the promise is settled
	// unless the script awaited something that can never resolve.
	if promise, ok := result.Export().(*goja.Promise); ok {
		switch promise.State() {
		case goja.PromiseStateFulfilled:
			result = promise.Result()
		case goja.PromiseStateRejected:
			if expired() {
				return "", &TimeoutError{Budget: e.cfg.Timeout}
			}
			return "", &ScriptError{Message: stripGoErrorPrefix(promise.Result().String())}
		default:
			if expired() {
				return "", &TimeoutError{Budget: e.cfg.Timeout}
			}
			return "", &ScriptError{Message: "script returned a promise that never settled"}
		}
	}

	return summarize(result), nil
}

func (e *Engine) classify(err error, timedOut bool) error {
	if _, ok := err.(*goja.InterruptedError); ok || timedOut {
		return &TimeoutError{Budget: e.cfg.Timeout}
	}
	if ex, ok := err.(*goja.Exception); ok {
		return &ScriptError{Message: stripGoErrorPrefix(ex.Value().String())}
	}
	return &ScriptError{Message: stripGoErrorPrefix(err.Error())}
}

// installConsole binds console.log/info/warn/error, all forwarding to the
// caller's push channel.
func (e *Engine) installConsole(vm *goja.Runtime) {
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, formatConsoleArg(arg))
		}
		message := strings.Join(parts, " ")
		e.logger.Debug("[script:%s] %s", e.cfg.Target, message)
		if e.cfg.Emitter != nil {
			e.cfg.Emitter.Emit(e.cfg.ChannelID, push.NewConsoleEvent(message))
		}
		return goja.Undefined()
	}

	console := vm.NewObject()
	_ = console.Set("log", logFn)
	_ = console.Set("info", logFn)
	_ = console.Set("warn", logFn)
	_ = console.Set("error", logFn)
	_ = vm.Set("console", console)
}

// installUtils binds the small allowlist of safe helpers. JSON, Math and Date
// are goja builtins and already present.
func (e *Engine) installUtils(vm *goja.Runtime) {
	utils := vm.NewObject()
	_ = utils.Set("now", func() int64 {
		return time.Now().UnixMilli()
	})
	_ = utils.Set("uuid", func() string {
		return uuid.NewString()
	})
	_ = utils.Set("randomBytes", func(call goja.FunctionCall) goja.Value {
		n := int(call.Argument(0).ToInteger())
		if n < 0 || n > 1<<16 {
			panic(vm.NewTypeError("randomBytes: size out of range"))
		}
		buf := make([]byte, n)
		_, _ = rand.Read(buf)
		return vm.ToValue(vm.NewArrayBuffer(buf))
	})
	_ = vm.Set("utils", utils)
}

// buildCapabilityObject exposes the capability adapter's operations to the
// script. Operation failures are thrown as exceptions so a script try/catch
// sees them, and an uncaught one fails the iteration.
func (e *Engine) buildCapabilityObject(ctx context.Context, vm *goja.Runtime) goja.Value {
	throw := func(err error) {
		panic(vm.NewGoError(err))
	}
	sendResult := func(res capability.SendResult, err error) goja.Value {
		if err != nil {
			throw(err)
		}
		return vm.ToValue(map[string]any{"success": res.Success, "id": res.ID})
	}

	obj := vm.NewObject()
	_ = obj.Set("sendText", func(call goja.FunctionCall) goja.Value {
		return sendResult(e.cfg.Adapter.SendText(ctx, call.Argument(0).String(), call.Argument(1).String()))
	})
	_ = obj.Set("sendGeneric", func(call goja.FunctionCall) goja.Value {
		spec, ok := call.Argument(1).Export().(map[string]any)
		if !ok {
			throw(fmt.Errorf("send failed: message spec must be an object"))
		}
		return sendResult(e.cfg.Adapter.SendGeneric(ctx, call.Argument(0).String(), spec))
	})
	_ = obj.Set("sendImage", func(call goja.FunctionCall) goja.Value {
		return sendResult(e.cfg.Adapter.SendImage(ctx,
			call.Argument(0).String(), call.Argument(1).String(), optionalString(call.Argument(2))))
	})
	_ = obj.Set("sendVideo", func(call goja.FunctionCall) goja.Value {
		return sendResult(e.cfg.Adapter.SendVideo(ctx,
			call.Argument(0).String(), call.Argument(1).String(), optionalString(call.Argument(2))))
	})
	_ = obj.Set("sendAudio", func(call goja.FunctionCall) goja.Value {
		return sendResult(e.cfg.Adapter.SendAudio(ctx, call.Argument(0).String(), call.Argument(1).String()))
	})
	_ = obj.Set("sendContact", func(call goja.FunctionCall) goja.Value {
		return sendResult(e.cfg.Adapter.SendContact(ctx,
			call.Argument(0).String(), call.Argument(1).String(), call.Argument(2).String()))
	})
	_ = obj.Set("sendLocation", func(call goja.FunctionCall) goja.Value {
		return sendResult(e.cfg.Adapter.SendLocation(ctx,
			call.Argument(0).String(), call.Argument(1).ToFloat(), call.Argument(2).ToFloat(),
			optionalString(call.Argument(3))))
	})
	_ = obj.Set("sendPoll", func(call goja.FunctionCall) goja.Value {
		options, err := stringSlice(call.Argument(2))
		if err != nil {
			throw(fmt.Errorf("send poll failed: %w", err))
		}
		return sendResult(e.cfg.Adapter.SendPoll(ctx,
			call.Argument(0).String(), call.Argument(1).String(), options))
	})
	_ = obj.Set("react", func(call goja.FunctionCall) goja.Value {
		return sendResult(e.cfg.Adapter.React(ctx,
			call.Argument(0).String(), call.Argument(1).String(), call.Argument(2).String()))
	})
	_ = obj.Set("deleteMessage", func(call goja.FunctionCall) goja.Value {
		return sendResult(e.cfg.Adapter.DeleteMessage(ctx,
			call.Argument(0).String(), call.Argument(1).String()))
	})
	_ = obj.Set("getPresence", func(call goja.FunctionCall) goja.Value {
		p := e.cfg.Adapter.GetPresence(ctx, call.Argument(0).String())
		return vm.ToValue(map[string]any{"status": p.Status})
	})
	return obj
}

func optionalString(v goja.Value) string {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func stringSlice(v goja.Value) ([]string, error) {
	exported, ok := v.Export().([]any)
	if !ok {
		return nil, fmt.Errorf("options must be an array")
	}
	out := make([]string, 0, len(exported))
	for _, item := range exported {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out, nil
}

func formatConsoleArg(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	exported := v.Export()
	switch exported.(type) {
	case map[string]any, []any:
		if data, err := json.Marshal(exported); err == nil {
			return string(data)
		}
	}
	return v.String()
}

// summarize renders the return value as JSON truncated to the push-channel
// result limit.
func summarize(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	var text string
	if data, err := json.Marshal(v.Export()); err == nil {
		text = string(data)
	} else {
		text = v.String()
	}
	if len(text) > resultSummaryLimit {
		// Truncate on a rune boundary so multibyte text stays valid UTF-8.
		runes := []rune(text)
		if len(runes) > resultSummaryLimit {
			text = string(runes[:resultSummaryLimit])
		}
	}
	return text
}

// stripGoErrorPrefix removes goja's GoError wrapper so capability error
// messages read the same to the caller as they do inside the script.
func stripGoErrorPrefix(message string) string {
	return strings.TrimPrefix(message, "GoError: ")
}
