// Package runtime wires the Envelope Codec, Permission Engine, Router,
// Reply Pump, and External Handler Bridge into the single UI-thread
// entry point the native host calls when the webview posts a message
// (spec §4.4).
//
// Runtime replaces the source's file-level global state (router,
// window, webview, Mode-A bridge) with one constructed value threaded
// through explicitly, per spec §9's "Global singletons" design note —
// and follows github.com/bjaus/dispatch's New(opts ...Option)
// functional-options constructor shape (see DESIGN.md).
package runtime

import (
	"context"
	"log/slog"

	"github.com/silkrt/silk/envelope"
	"github.com/silkrt/silk/internal/bridge"
	"github.com/silkrt/silk/internal/logx"
	"github.com/silkrt/silk/permission"
	"github.com/silkrt/silk/replypump"
	"github.com/silkrt/silk/router"
	"github.com/silkrt/silk/usermodule"
	"github.com/silkrt/silk/value"
)

// Config is the plain-data configuration a Runtime is built from
// (typically produced by internal/config.Load).
type Config struct {
	Permissions permission.Config
	ModeA       bridge.Config
	MaxQueued   int
}

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithUserModule registers a user-supplied in-process handler module
// (Mode B, spec §4.7) at construction time.
func WithUserModule(mod usermodule.Module) Option {
	return func(rt *Runtime) { rt.pendingModules = append(rt.pendingModules, mod) }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = logger }
}

// Runtime is the single constructed value threading the IPC core
// together.
type Runtime struct {
	router *router.Router
	policy *permission.Policy
	pump   *replypump.Pump
	bridge *bridge.Bridge
	logger *slog.Logger

	pendingModules []usermodule.Module
}

// New constructs a Runtime. schedule and post are the UI-thread
// collaborators the native host guarantees (spec §1: post_script and
// schedule_on_ui); the Reply Pump uses them from the first HandleMessage
// or Emit call, whether or not Start has been called. An all-empty
// cfg.Permissions is replaced by permission.Default().
func New(cfg Config, schedule replypump.ScheduleFunc, post replypump.PostFunc, opts ...Option) *Runtime {
	rt := &Runtime{
		logger: logx.New(),
	}
	for _, opt := range opts {
		opt(rt)
	}

	p := cfg.Permissions
	if len(p.AllowCommands)+len(p.DenyCommands)+len(p.NamespaceGrants)+
		len(p.FSReadRoots)+len(p.FSWriteRoots)+len(p.ShellAllowPrograms) == 0 {
		rt.policy = permission.Default()
	} else {
		rt.policy = permission.New(p)
	}

	pumpOpts := []replypump.Option{}
	if cfg.MaxQueued > 0 {
		pumpOpts = append(pumpOpts, replypump.WithMaxQueued(cfg.MaxQueued))
	}
	rt.pump = replypump.New(schedule, post, pumpOpts...)

	rt.router = router.New(
		router.WithPermissions(rt.policy),
		router.WithOnBefore(func(ctx context.Context, cmd string) context.Context {
			return logx.WithCtx(ctx, rt.logger.With(slog.String("cmd", cmd)))
		}),
		router.WithOnAfter(func(ctx context.Context, cmd string, success bool) {
			logx.From(ctx).Debug("dispatch complete", "cmd", cmd, "success", success)
		}),
	)

	registerBuiltins(rt.router)
	host := usermodule.NewHost(rt.router)
	for _, mod := range rt.pendingModules {
		if err := usermodule.Apply(mod, host); err != nil {
			rt.logger.Error("user module registration failed", "error", err)
		}
	}

	rt.bridge = bridge.New(cfg.ModeA, func(script string) {
		if err := rt.pump.Enqueue(script); err != nil {
			rt.logger.Error("reply pump full, dropping bridge reply", "error", err)
		}
	})

	return rt
}

// Router exposes the Router for direct registration of built-in
// capability plugins (filesystem, clipboard, dialog, shell, window,
// app-info) — out of scope per spec §1; Runtime itself registers none
// of them.
func (rt *Runtime) Router() *router.Router { return rt.router }

// Start launches the External Handler Bridge worker, if enabled.
func (rt *Runtime) Start(ctx context.Context) {
	rt.bridge.Start(ctx)
}

// Stop shuts down the External Handler Bridge worker and kills its
// child process.
func (rt *Runtime) Stop() {
	rt.bridge.Stop()
}

// HandleMessage is the single function the native layer calls when the
// webview posts a message (spec §4.4). It never blocks the UI thread:
// in-process dispatch is synchronous, and everything else is a
// non-blocking hand-off.
func (rt *Runtime) HandleMessage(ctx context.Context, raw []byte) {
	req, err := envelope.Parse(raw)
	if err != nil {
		// No trustworthy callback id; log and drop (spec §4.4 step 1).
		rt.logger.Warn("dropping unparseable envelope", "error", err)
		return
	}

	if rt.router.Has(req.Cmd) {
		script, err := rt.router.Dispatch(ctx, req)
		if err != nil {
			rt.logger.Error("failed to serialize dispatch response", "error", err)
			return
		}
		rt.enqueue(script)
		return
	}

	rt.handleUnregistered(ctx, req)
}

func (rt *Runtime) handleUnregistered(ctx context.Context, req envelope.InvokeRequest) {
	if !rt.bridge.Enabled() {
		rt.enqueueError(req.Callback, router.CodeMethodNotFound, "Command not found")
		return
	}

	if !rt.policy.Allows(req.Cmd) {
		rt.enqueueError(req.Callback, router.CodePermissionDenied, "Command denied by permissions")
		return
	}

	// Submit fails with ErrDisabled once the bridge has self-disabled, or
	// ErrQueueFull; either way the caller gets a bridge-level error.
	if err := rt.bridge.Submit(req); err != nil {
		rt.logger.Error("bridge submit failed", "error", err)
		rt.enqueueError(req.Callback, "", "bridge unavailable: "+err.Error())
	}
}

func (rt *Runtime) enqueueError(callback int64, code, msg string) {
	script, err := router.BuildErrorScript(callback, code, msg)
	if err != nil {
		rt.logger.Error("failed to build error script", "error", err)
		return
	}
	rt.enqueue(script)
}

func (rt *Runtime) enqueue(script string) {
	if err := rt.pump.Enqueue(script); err != nil {
		rt.logger.Error("reply pump full, dropping response", "error", err)
	}
}

// Emit sends a backend→webview event through the same Reply Pump FIFO
// discipline as responses (spec §9 "Event emission").
func (rt *Runtime) Emit(event string, data value.Value) {
	script, err := envelope.SerializeEvent(event, data)
	if err != nil {
		rt.logger.Error("failed to build event script", "error", err)
		return
	}
	rt.enqueue(script)
}

// registerBuiltins seeds the baseline silk:* commands spec §6 requires
// (silk:ping, silk:appInfo). Real capability plugins (filesystem,
// clipboard, dialog, shell, window) are external collaborators per
// spec §1 and register through usermodule/Router directly; only the
// two always-present diagnostic commands live here.
func registerBuiltins(r *router.Router) {
	r.Register("silk:ping", func(ctx context.Context, args value.Value) (value.Value, error) {
		return value.String("pong"), nil
	}, "")
	r.Register("silk:appInfo", func(ctx context.Context, args value.Value) (value.Value, error) {
		m := value.NewOrderedMap()
		m.Set("name", value.String("silk"))
		return value.Map(m), nil
	}, "")
}
