// Package rpc hosts the method dispatcher that sits between the external
// JSON-RPC transport (rpc/httpd) and the session's engine state: method
// resolution with snake_case/kebab-case normalization, the
// synchronous/asynchronous handler split, and idle-data completion
// handles for calls that must outlive the request that started them.
package rpc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tearfur/transmission/internal/quark"
	"github.com/tearfur/transmission/internal/variant"
)

// Handler answers one RPC call. It must call reply exactly once, either
// inline (a synchronous handler) or from a later goroutine/timer (an
// asynchronous handler holding a Completion). result is "success" or a
// human-readable error string; arguments is the response payload.
type Handler func(args variant.Value, reply func(result string, arguments variant.Value))

// Dispatcher resolves method names to Handlers and drives one call to
// completion, blocking the caller until reply fires. Blocking here is
// safe because rpc/httpd's one goroutine per request is exactly the
// "caller" a synchronous handler completes inline and an asynchronous
// handler completes from elsewhere.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher returns an empty Dispatcher; handlers are registered with
// Handle before first use.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Handle registers h under name (and its sole normalized spelling, so one
// registration answers to both torrent-get and torrent_get).
func (d *Dispatcher) Handle(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[normalize(name)] = h
}

// Dispatch resolves req's "method" field, normalized by underscore/hyphen
// transposition, and runs its handler to completion. The returned Value
// is a full response map: result, arguments, and the echoed tag if req
// carried one.
func (d *Dispatcher) Dispatch(req variant.Value) variant.Value {
	method, ok := req.GetByName("method")
	methodStr, _ := method.Str()
	if !ok || methodStr == "" {
		return errorResponse(req, "no method specified")
	}

	d.mu.RLock()
	h, ok := d.handlers[normalize(methodStr)]
	d.mu.RUnlock()
	if !ok {
		return errorResponse(req, fmt.Sprintf("unknown method %q", methodStr))
	}

	args, _ := req.GetByName("arguments")
	if args.Kind() != variant.KindMap {
		args = variant.NewMap()
	}

	type outcome struct {
		result    string
		arguments variant.Value
	}
	done := make(chan outcome, 1)
	h(args, func(result string, arguments variant.Value) {
		done <- outcome{result: result, arguments: arguments}
	})
	out := <-done

	resp := variant.NewMap()
	resp.SetByName("result", variant.String(out.result))
	if out.arguments.Kind() == variant.KindMap || out.arguments.Kind() == variant.KindVector {
		resp.SetByName("arguments", out.arguments)
	}
	if tag, ok := req.GetByName("tag"); ok {
		resp.SetByName("tag", tag)
	}
	return resp
}

func errorResponse(req variant.Value, msg string) variant.Value {
	resp := variant.NewMap()
	resp.SetByName("result", variant.String(msg))
	if tag, ok := req.GetByName("tag"); ok {
		resp.SetByName("tag", tag)
	}
	return resp
}

// normalize canonicalizes a method name to its kebab-case form, so that
// both torrent_get and torrent-get key the same map entry.
func normalize(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// Completion is a typed handle for one in-flight asynchronous RPC call
// (port-test, blocklist-update, URL torrent-add, torrent-rename-path).
// It is handed to the I/O layer performing the suspension-point work
// (HTTP fetch, UDP round trip); Complete is safe to call from any
// goroutine and fires the underlying reply callback exactly once.
type Completion struct {
	ID uuid.UUID

	once  sync.Once
	reply func(result string, arguments variant.Value)
}

// NewCompletion wraps reply (the callback a Handler was given by
// Dispatch) in a Completion carrying a fresh id for logging/cancellation
// bookkeeping.
func NewCompletion(reply func(result string, arguments variant.Value)) *Completion {
	return &Completion{ID: uuid.New(), reply: reply}
}

// Complete delivers the result, dropping the completion. Calls after the
// first are no-ops, matching the "drops it exactly once" design note.
func (c *Completion) Complete(result string, arguments variant.Value) {
	c.once.Do(func() {
		c.reply(result, arguments)
	})
}

// FieldID resolves a caller-supplied field name (camelCase-deprecated or
// canonical snake_case/kebab-case) to its canonical quark id, or false if
// the name is not registered.
func FieldID(name string) (quark.ID, bool) {
	id, ok := quark.Lookup(name)
	if !ok {
		return 0, false
	}
	return quark.Convert(id), true
}
