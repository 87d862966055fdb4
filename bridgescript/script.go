// Package bridgescript holds the webview-side client (spec §4.5): a
// self-contained, idempotent script injected at document start that
// assigns callback identifiers, posts envelopes over the best available
// transport, and resolves pending promises when the runtime calls back.
//
// The script is embedded as a Go string constant and treated as data —
// there is no JS runtime on this side of the boundary, so the tests
// check the emitted source for the required fragments (and the order of
// the transport probes) rather than executing it.
package bridgescript

import "strconv"

// MaxPending bounds the webview-side pending-callback map (spec §4.5).
const MaxPending = 1000

// Script is the bridge script source, injected once per webview
// context at document start.
var Script = buildScript()

func buildScript() string {
	return `(function () {
  if (window.__silk) {
    return;
  }

  var MAX_PENDING = ` + strconv.Itoa(MaxPending) + `;
  var nextCallback = 1;
  var pending = {};
  var pendingCount = 0;
  var listeners = {};

  function resolveTransport() {
    if (window.webkit && window.webkit.messageHandlers && window.webkit.messageHandlers.silk) {
      return function (msg) { window.webkit.messageHandlers.silk.postMessage(msg); };
    }
    if (window.webkit && window.webkit.messageHandlers && window.webkit.messageHandlers.silk_ipc) {
      return function (msg) { window.webkit.messageHandlers.silk_ipc.postMessage(msg); };
    }
    if (window.chrome && window.chrome.webview && window.chrome.webview.postMessage) {
      return function (msg) { window.chrome.webview.postMessage(msg); };
    }
    if (typeof window.__silkPostMessage === "function") {
      return window.__silkPostMessage;
    }
    return null;
  }

  function invoke(cmd, args) {
    return new Promise(function (resolve, reject) {
      if (pendingCount >= MAX_PENDING) {
        reject(new Error("Silk pending queue full"));
        return;
      }
      var transport = resolveTransport();
      if (!transport) {
        reject(new Error("Silk transport unavailable"));
        return;
      }
      var callback = nextCallback++;
      pending[callback] = { resolve: resolve, reject: reject };
      pendingCount++;
      var envelope = {
        kind: "invoke",
        callback: callback,
        cmd: cmd,
        args: args === undefined ? null : args,
      };
      transport(JSON.stringify(envelope));
    });
  }

  function listen(event, handler) {
    if (!listeners[event]) {
      listeners[event] = [];
    }
    listeners[event].push(handler);
    return function unsubscribe() {
      var list = listeners[event];
      if (!list) {
        return;
      }
      var idx = list.indexOf(handler);
      if (idx >= 0) {
        list.splice(idx, 1);
      }
    };
  }

  function dispatchResponse(msg) {
    var entry = pending[msg.callback];
    if (!entry) {
      return;
    }
    delete pending[msg.callback];
    pendingCount--;
    if (msg.ok) {
      entry.resolve(msg.result);
      return;
    }
    var err = msg.error;
    if (err && typeof err === "object") {
      var e = new Error(err.message !== undefined ? err.message : String(err));
      if (err.code !== undefined) {
        e.code = err.code;
      }
      entry.reject(e);
      return;
    }
    entry.reject(new Error(String(err)));
  }

  function dispatchEvent(msg) {
    var list = listeners[msg.event];
    if (!list) {
      return;
    }
    list.slice().forEach(function (handler) {
      handler(msg.data);
    });
  }

  function __dispatch(msg) {
    if (!msg || typeof msg !== "object") {
      return;
    }
    if (msg.kind === "response") {
      dispatchResponse(msg);
      return;
    }
    if (msg.kind === "event") {
      dispatchEvent(msg);
    }
  }

  window.__silk = {
    invoke: invoke,
    listen: listen,
    __dispatch: __dispatch,
  };
})();`
}
