// Package dispatch maps request opcodes to handler objects and routes
// a decoded request to its handler, verifying arity first. Modeled on
// bittoy-rule's component registry (a map guarded by an
// RWMutex, immutable after startup) and on
// coreengine/kernel/services.go's ServiceRegistry for the
// register-then-dispatch shape; the catalog-mutation side of each
// handler follows coreengine/kernel/kernel.go's
// lock→validate→mutate→release→emit-event pattern.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimo-project/registry/catalog"
	"github.com/nimo-project/registry/observability"
	"github.com/nimo-project/registry/value"
)

// Handler implements one opcode's operation against the catalog.
type Handler interface {
	// MinArgs and MaxArgs bound the argument count the dispatcher will
	// accept before calling Execute. MaxArgs of -1 means unbounded.
	MinArgs() int
	MaxArgs() int
	// Execute runs the operation and returns the response's result
	// value. A returned error is translated into an error response by
	// the caller; Execute itself never writes to the wire.
	Execute(ctx context.Context, args []value.Value) (value.Value, error)
}

// Registry is the immutable-after-startup opcode→Handler map.
type Registry struct {
	mu         sync.RWMutex
	handlers   map[string]Handler
	middleware []Middleware
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds an opcode to a handler. Registering the same opcode
// twice is a programmer error and panics, since registration only
// happens once at startup before any session exists.
func (r *Registry) Register(opcode string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[opcode]; exists {
		panic(fmt.Sprintf("dispatch: opcode %q already registered", opcode))
	}
	r.handlers[opcode] = h
}

// ErrUnknownOpcode is returned by Dispatch when no handler is
// registered for the given opcode. Per spec.md §4.D this keeps the
// session open with a generic error response.
type ErrUnknownOpcode struct{ Opcode string }

func (e *ErrUnknownOpcode) Error() string {
	return fmt.Sprintf("dispatch: unknown opcode %q", e.Opcode)
}

// ErrArity is returned by Dispatch when the supplied argument count
// falls outside the handler's declared bounds.
type ErrArity struct {
	Opcode       string
	Got          int
	Min, Max     int
}

func (e *ErrArity) Error() string {
	if e.Max < 0 {
		return fmt.Sprintf("dispatch: %s expects at least %d arguments, got %d", e.Opcode, e.Min, e.Got)
	}
	return fmt.Sprintf("dispatch: %s expects %d-%d arguments, got %d", e.Opcode, e.Min, e.Max, e.Got)
}

// Dispatch looks up opcode, runs the middleware chain's Before hooks,
// checks arity, executes the handler, and runs the chain's After hooks
// in reverse order.
func (r *Registry) Dispatch(ctx context.Context, opcode string, args []value.Value) (value.Value, error) {
	start := time.Now()
	result, err := r.dispatch(ctx, opcode, args)
	observability.RecordRequest(opcode, statusLabel(err), time.Since(start).Seconds())
	return result, err
}

func (r *Registry) dispatch(ctx context.Context, opcode string, args []value.Value) (value.Value, error) {
	r.mu.RLock()
	h, ok := r.handlers[opcode]
	chain := r.middleware
	r.mu.RUnlock()
	if !ok {
		return value.Value{}, &ErrUnknownOpcode{Opcode: opcode}
	}

	for _, mw := range chain {
		var err error
		args, err = mw.Before(ctx, opcode, args)
		if err != nil {
			return value.Value{}, err
		}
	}

	min, max := h.MinArgs(), h.MaxArgs()
	var result value.Value
	var err error
	if len(args) < min || (max >= 0 && len(args) > max) {
		err = &ErrArity{Opcode: opcode, Got: len(args), Min: min, Max: max}
	} else {
		result, err = h.Execute(ctx, args)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		result, err = chain[i].After(ctx, opcode, result, err)
	}
	return result, err
}

// statusLabel maps a Dispatch error to the "status" label RecordRequest
// expects, per observability's request-counter label comment.
func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var argErr *catalog.ArgumentError
	var notFoundErr *catalog.NotFoundError
	var conflictErr *catalog.ConflictError
	var arityErr *ErrArity
	switch {
	case errors.As(err, &argErr), errors.As(err, &arityErr):
		return "argument_error"
	case errors.As(err, &notFoundErr):
		return "not_found"
	case errors.As(err, &conflictErr):
		return "conflict"
	default:
		return "internal"
	}
}

// fixedArity is an embeddable helper for handlers taking exactly n
// arguments.
type fixedArity struct{ n int }

func (f fixedArity) MinArgs() int { return f.n }
func (f fixedArity) MaxArgs() int { return f.n }
