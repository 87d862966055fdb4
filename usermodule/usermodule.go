// Package usermodule implements User Module Registration ("Mode B",
// spec §4.7): a compile-time-checked adapter that lets an externally
// provided module register in-process handlers through the Router's
// public interface, without exposing anything else of the Router.
//
// The compile-time-check-instead-of-runtime-reflection approach is
// realized the way github.com/bjaus/dispatch avoids reflection for its
// generic Handler[T] — an interface the Go compiler verifies at the
// call site, enforced here with a var _ Module assertion idiom rather
// than any runtime type-switching.
package usermodule

import "github.com/silkrt/silk/router"

// Host is the only capability a user module receives: the ability to
// register an in-process handler. It deliberately does not expose the
// rest of the Router (dispatch, permission wiring, hooks).
type Host interface {
	Register(cmd string, h router.Handler, permissionKey string)
}

// Module is implemented by externally supplied packages wishing to
// register capability handlers. The Go compiler enforces this
// signature at the module's own call site — no runtime reflection is
// involved (spec §9 "Compile-time user module check").
type Module interface {
	Register(host Host) error
}

// hostAdapter forwards Host.Register into a *router.Router. It is the
// "thin adapter whose implementation forwards into the Router's
// register" spec §4.7 describes.
type hostAdapter struct {
	r *router.Router
}

// NewHost wraps r as a Host, exposing only Register to user modules.
func NewHost(r *router.Router) Host {
	return &hostAdapter{r: r}
}

func (h *hostAdapter) Register(cmd string, handler router.Handler, permissionKey string) {
	h.r.Register(cmd, handler, permissionKey)
}

// Noop is the default stub module: registering it is a no-op, adding no
// runtime behavior beyond what the Router already guarantees.
type Noop struct{}

var _ Module = Noop{}

// Register implements Module.
func (Noop) Register(host Host) error { return nil }

// Apply runs mod.Register against host, wiring whatever routes mod
// provides. A nil mod is treated as Noop; otherwise it adds no behavior
// beyond calling mod.Register directly.
func Apply(mod Module, host Host) error {
	if mod == nil {
		mod = Noop{}
	}
	return mod.Register(host)
}
