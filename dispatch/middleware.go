package dispatch

import (
	"context"
	"log"

	"github.com/nimo-project/registry/value"
)

// Middleware wraps handler execution for cross-cutting concerns,
// mirroring commbus's Before/After middleware shape (commbus/middleware.go)
// generalized from message objects to (opcode, args) pairs.
type Middleware interface {
	Before(ctx context.Context, opcode string, args []value.Value) ([]value.Value, error)
	After(ctx context.Context, opcode string, result value.Value, err error) (value.Value, error)
}

// Use appends middleware to the chain, run in registration order on
// the way in and reverse order on the way out.
func (r *Registry) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
}

// LoggingMiddleware logs every dispatched request and its outcome,
// adapted from commbus.LoggingMiddleware.
type LoggingMiddleware struct{}

// NewLoggingMiddleware creates a LoggingMiddleware.
func NewLoggingMiddleware() *LoggingMiddleware { return &LoggingMiddleware{} }

func (m *LoggingMiddleware) Before(ctx context.Context, opcode string, args []value.Value) ([]value.Value, error) {
	log.Printf("dispatch: %s (%d args)", opcode, len(args))
	return args, nil
}

func (m *LoggingMiddleware) After(ctx context.Context, opcode string, result value.Value, err error) (value.Value, error) {
	if err != nil {
		log.Printf("dispatch: %s failed: %v", opcode, err)
	} else {
		log.Printf("dispatch: %s completed", opcode)
	}
	return result, err
}
