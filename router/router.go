// Package router implements the Router: the registry of command →
// handler mappings, dispatch of an invoke to a handler, error catching,
// and response-envelope production (spec §4.3).
//
// The handler registry, hook-calling helpers, and "never let a handler
// failure escape as a panic" discipline are adapted from
// github.com/bjaus/dispatch's Router, generalized from a generic
// typed-payload registry to a dynamically registered, untyped-Value
// one (see DESIGN.md).
package router

import (
	"context"
	"fmt"

	"github.com/silkrt/silk/envelope"
	"github.com/silkrt/silk/value"
)

// Handler processes a request's args and returns a result value or an
// error. Handler failures are caught by Dispatch and converted into an
// INTERNAL_ERROR response; they never propagate as a panic.
type Handler func(ctx context.Context, args value.Value) (value.Value, error)

// Allower resolves whether a command identifier is permitted. Satisfied
// by *permission.Policy.
type Allower interface {
	Allows(cmd string) bool
}

// route is an internal registration record (spec §3 Route).
type route struct {
	handler       Handler
	permissionKey string
	hasPermission bool
}

// Error codes surfaced in Response.Error.Code, per spec §7.
const (
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeMethodNotFound   = "METHOD_NOT_FOUND"
	CodeInternalError    = "INTERNAL_ERROR"
)

// BeforeHook runs at the start of Dispatch/DispatchResponse, before the
// permission check and handler lookup. Hooks run only for requests
// dispatched through the Router; commands that the runtime forwards to
// the External Handler Bridge do not pass through them. Must not block.
type BeforeHook func(ctx context.Context, cmd string) context.Context

// AfterHook runs when Dispatch/DispatchResponse completes, on every
// outcome of that call; like BeforeHook it does not run for commands
// forwarded to the External Handler Bridge. Must not block.
type AfterHook func(ctx context.Context, cmd string, success bool)

// Option configures a Router at construction time.
type Option func(*Router)

// WithPermissions sets the Allower consulted for routes registered with
// a permission key.
func WithPermissions(a Allower) Option {
	return func(r *Router) { r.perms = a }
}

// WithOnBefore adds a hook invoked before handler execution. Multiple
// hooks run in registration order.
func WithOnBefore(fn BeforeHook) Option {
	return func(r *Router) { r.before = append(r.before, fn) }
}

// WithOnAfter adds a hook invoked after dispatch completes. Multiple
// hooks run in registration order.
func WithOnAfter(fn AfterHook) Option {
	return func(r *Router) { r.after = append(r.after, fn) }
}

// Router holds the registry of command → handler mappings and dispatches
// invokes to them. Register must be called before the first Dispatch;
// concurrent registration during dispatch is not supported (spec §4.3).
type Router struct {
	routes map[string]route
	perms  Allower
	before []BeforeHook
	after  []AfterHook
}

// New creates a Router with the given options.
func New(opts ...Option) *Router {
	r := &Router{routes: make(map[string]route)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts a route. Last registration for a given cmd wins. An
// empty permissionKey means the route is always allowed.
func (r *Router) Register(cmd string, h Handler, permissionKey string) {
	r.routes[cmd] = route{
		handler:       h,
		permissionKey: permissionKey,
		hasPermission: permissionKey != "",
	}
}

// Has reports whether cmd has a registered in-process route.
func (r *Router) Has(cmd string) bool {
	_, ok := r.routes[cmd]
	return ok
}

// Dispatch runs the full per-request state machine described in spec
// §4.3 and returns the serialized response script ready for the Reply
// Pump.
func (r *Router) Dispatch(ctx context.Context, req envelope.InvokeRequest) (string, error) {
	resp := r.dispatchResponse(ctx, req)
	return envelope.Serialize(resp)
}

// DispatchResponse is like Dispatch but returns the Response value
// instead of a serialized script, for callers that need to inspect,
// build or forward the response themselves.
func (r *Router) DispatchResponse(ctx context.Context, req envelope.InvokeRequest) envelope.Response {
	return r.dispatchResponse(ctx, req)
}

func (r *Router) dispatchResponse(ctx context.Context, req envelope.InvokeRequest) envelope.Response {
	ctx = r.runBefore(ctx, req.Cmd)

	rt, found := r.routes[req.Cmd]

	if found && rt.hasPermission && !r.allows(rt.permissionKey) {
		r.runAfter(ctx, req.Cmd, false)
		return errorResponse(req.Callback, CodePermissionDenied, "Command denied by permissions")
	}

	if !found {
		r.runAfter(ctx, req.Cmd, false)
		return errorResponse(req.Callback, CodeMethodNotFound, "Command not found")
	}

	result, err := r.invoke(ctx, rt.handler, req.Args)
	if err != nil {
		r.runAfter(ctx, req.Cmd, false)
		return errorResponse(req.Callback, CodeInternalError, err.Error())
	}

	r.runAfter(ctx, req.Cmd, true)
	return envelope.Response{Callback: req.Callback, OK: true, Result: result}
}

// invoke calls h, recovering from panics so a handler failure can never
// crash the dispatch thread (spec §4.3 step 3).
func (r *Router) invoke(ctx context.Context, h Handler, args value.Value) (result value.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()
	return h(ctx, args)
}

func (r *Router) allows(key string) bool {
	if r.perms == nil {
		return true
	}
	return r.perms.Allows(key)
}

func (r *Router) runBefore(ctx context.Context, cmd string) context.Context {
	for _, fn := range r.before {
		ctx = fn(ctx, cmd)
	}
	return ctx
}

func (r *Router) runAfter(ctx context.Context, cmd string, success bool) {
	for _, fn := range r.after {
		fn(ctx, cmd, success)
	}
}

// BuildSuccessScript builds a success response script without going
// through Dispatch. Used by the External Handler Bridge to construct
// responses from the child process's replies (spec §4.3).
func BuildSuccessScript(callback int64, result value.Value) (string, error) {
	return envelope.Serialize(envelope.Response{Callback: callback, OK: true, Result: result})
}

// BuildErrorScript builds an error response script without going through
// Dispatch.
func BuildErrorScript(callback int64, code, msg string) (string, error) {
	return envelope.Serialize(errorResponse(callback, code, msg))
}

func errorResponse(callback int64, code, msg string) envelope.Response {
	return envelope.Response{
		Callback: callback,
		OK:       false,
		Error:    &envelope.ErrorInfo{Code: code, Message: msg},
	}
}
