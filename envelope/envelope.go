// Package envelope implements the Envelope Codec: decoding webview→runtime
// invoke envelopes and encoding runtime→webview response envelopes. It is
// pure — no I/O, no locks, no shared state.
package envelope

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/silkrt/silk/value"
)

// dispatchFunc is the literal script wrapper every response is wrapped
// in. It is part of the external interface (spec §6) — do not change it
// without a corresponding change to the webview-side bridge script.
const dispatchFunc = "window.__silk && window.__silk.__dispatch(%s);"

// InvokeRequest is one call from the webview, per spec §3.
type InvokeRequest struct {
	Callback int64
	Cmd      string
	Args     value.Value
}

// Response is one outcome, per spec §3.
type Response struct {
	Callback int64
	OK       bool
	Result   value.Value
	Error    *ErrorInfo
}

// ErrorInfo carries an optional structured error code alongside the
// human-readable message (spec §9 "Error object shape").
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ErrorKind distinguishes parse failures without leaking Go error types
// across the package boundary.
type ErrorKind int

const (
	KindInvalidEnvelope ErrorKind = iota
	KindMissingKind
	KindInvalidKind
	KindUnsupportedKind
	KindMissingCallback
	KindInvalidCallback
	KindMissingCommand
	KindInvalidCommand
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidEnvelope:
		return "InvalidEnvelope"
	case KindMissingKind:
		return "MissingKind"
	case KindInvalidKind:
		return "InvalidKind"
	case KindUnsupportedKind:
		return "UnsupportedKind"
	case KindMissingCallback:
		return "MissingCallback"
	case KindInvalidCallback:
		return "InvalidCallback"
	case KindMissingCommand:
		return "MissingCommand"
	case KindInvalidCommand:
		return "InvalidCommand"
	default:
		return "Unknown"
	}
}

// ParseError reports why an envelope failed to parse.
type ParseError struct {
	Kind ErrorKind
	msg  string
}

func (e *ParseError) Error() string { return e.msg }

func newParseError(kind ErrorKind, msg string) *ParseError {
	return &ParseError{Kind: kind, msg: msg}
}

// Parse decodes a webview→runtime invoke envelope.
//
// It sniffs "kind" with gjson before committing to a full decode, the
// same cheap-before-expensive discipline github.com/bjaus/dispatch uses
// for source discrimination (see DESIGN.md, package envelope entry).
func Parse(raw []byte) (InvokeRequest, error) {
	if !gjson.ValidBytes(raw) {
		return InvokeRequest{}, newParseError(KindInvalidEnvelope, "envelope: not valid JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return InvokeRequest{}, newParseError(KindInvalidEnvelope, "envelope: not a JSON object")
	}

	kindResult := root.Get("kind")
	if !kindResult.Exists() {
		return InvokeRequest{}, newParseError(KindMissingKind, "envelope: missing \"kind\"")
	}
	if kindResult.Type != gjson.String {
		return InvokeRequest{}, newParseError(KindInvalidKind, "envelope: \"kind\" must be a string")
	}
	if kindResult.String() != "invoke" {
		return InvokeRequest{}, newParseError(KindUnsupportedKind, fmt.Sprintf("envelope: unsupported kind %q", kindResult.String()))
	}

	cbResult := root.Get("callback")
	if !cbResult.Exists() {
		return InvokeRequest{}, newParseError(KindMissingCallback, "envelope: missing \"callback\"")
	}
	if cbResult.Type != gjson.Number {
		return InvokeRequest{}, newParseError(KindInvalidCallback, "envelope: \"callback\" must be a number")
	}
	callback := cbResult.Float()
	if callback < 0 || callback != float64(int64(callback)) {
		return InvokeRequest{}, newParseError(KindInvalidCallback, "envelope: \"callback\" must be a non-negative integer")
	}

	cmdResult := root.Get("cmd")
	if !cmdResult.Exists() {
		return InvokeRequest{}, newParseError(KindMissingCommand, "envelope: missing \"cmd\"")
	}
	if cmdResult.Type != gjson.String || cmdResult.String() == "" {
		return InvokeRequest{}, newParseError(KindInvalidCommand, "envelope: \"cmd\" must be a non-empty string")
	}
	cmd := cmdResult.String()
	if strings.TrimSpace(cmd) == "" {
		return InvokeRequest{}, newParseError(KindInvalidCommand, "envelope: \"cmd\" must be a non-empty string")
	}

	var args value.Value
	argsResult := root.Get("args")
	if argsResult.Exists() {
		if err := json.Unmarshal([]byte(argsResult.Raw), &args); err != nil {
			return InvokeRequest{}, newParseError(KindInvalidEnvelope, "envelope: invalid \"args\"")
		}
	} else {
		args = value.Null()
	}

	return InvokeRequest{
		Callback: int64(callback),
		Cmd:      cmd,
		Args:     args,
	}, nil
}

// SerializeInvoke encodes req as a single invoke-envelope JSON line (no
// script wrapper), used by the External Handler Bridge to forward a
// request to the child process's standard input (spec §4.6).
func SerializeInvoke(req InvokeRequest) (string, error) {
	m := value.NewOrderedMap()
	m.Set("kind", value.String("invoke"))
	m.Set("callback", value.Int(req.Callback))
	m.Set("cmd", value.String(req.Cmd))
	m.Set("args", req.Args)
	b, err := value.Map(m).MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Serialize encodes a Response as the literal script string the UI thread
// will evaluate, per spec §4.1/§6.
func Serialize(r Response) (string, error) {
	body, err := marshalResponseJSON(r)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(dispatchFunc, body), nil
}

// SerializeEvent encodes a backend→webview event, reusing the same
// dispatch-function wrapper and FIFO delivery discipline as Response
// (spec §9 "Event emission" open question — resolved here by giving
// events a Kind alongside responses rather than a second channel; see
// DESIGN.md).
func SerializeEvent(event string, data value.Value) (string, error) {
	m := value.NewOrderedMap()
	m.Set("kind", value.String("event"))
	m.Set("event", value.String(event))
	m.Set("data", data)
	b, err := value.Map(m).MarshalJSON()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(dispatchFunc, string(b)), nil
}

func marshalResponseJSON(r Response) (string, error) {
	m := value.NewOrderedMap()
	m.Set("kind", value.String("response"))
	m.Set("callback", value.Int(r.Callback))
	m.Set("ok", value.Bool(r.OK))
	if r.OK {
		m.Set("result", r.Result)
	} else {
		errVal := value.NewOrderedMap()
		if r.Error != nil {
			if r.Error.Code != "" {
				errVal.Set("code", value.String(r.Error.Code))
			}
			errVal.Set("message", value.String(r.Error.Message))
		} else {
			errVal.Set("message", value.String("unknown error"))
		}
		m.Set("error", value.Map(errVal))
	}
	b, err := value.Map(m).MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
