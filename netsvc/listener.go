// Package netsvc runs the command-port accept loop: spec.md §4.F.
// Adapted from coreengine/grpc/server.go's GracefulServer — the same
// net.Listen/StartBackground/GracefulStop shape, generalized from a
// gRPC server's Serve loop to a raw TCP accept loop that hands each
// connection to a new session.Session.
package netsvc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nimo-project/registry/dispatch"
	"github.com/nimo-project/registry/session"
)

// Logger is the structured logging shape a Listener logs through.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger discards all output.
func NoopLogger() Logger { return noopLogger{} }

// ShutdownDeadline bounds how long Stop waits for in-flight sessions
// to finish their current request before forcibly closing the
// listener's connections, per spec.md §4.F/§4.I's "≈2s" figure.
const ShutdownDeadline = 2 * time.Second

// Listener accepts TCP connections on the command port and runs one
// session.Session per connection.
type Listener struct {
	registry *dispatch.Registry
	logger   Logger

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopped  bool
	conns    map[net.Conn]struct{}
}

// New creates a Listener that will dispatch accepted sessions through
// registry.
func New(registry *dispatch.Registry, logger Logger) *Listener {
	if logger == nil {
		logger = NoopLogger()
	}
	return &Listener{registry: registry, logger: logger, conns: make(map[net.Conn]struct{})}
}

// Start binds to address (":0" for an OS-assigned port) and begins
// accepting connections in a background goroutine. Returns the bound
// address so callers can read back the assigned port when address
// requests port 0.
func (l *Listener) Start(address string) (net.Addr, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("netsvc: listen on %s: %w", address, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.listener = lis
	l.cancel = cancel
	l.mu.Unlock()

	l.wg.Add(1)
	go l.acceptLoop(ctx, lis)

	l.logger.Info("netsvc_listener_started", "address", lis.Addr().String())
	return lis.Addr(), nil
}

func (l *Listener) acceptLoop(ctx context.Context, lis net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			l.logger.Warn("netsvc_accept_error", "error", err.Error())
			return
		}

		l.mu.Lock()
		l.conns[conn] = struct{}{}
		l.mu.Unlock()

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer func() {
				l.mu.Lock()
				delete(l.conns, conn)
				l.mu.Unlock()
			}()
			sess := session.New(conn, l.registry, sessionLoggerAdapter{l.logger})
			sess.Run(ctx)
		}()
	}
}

// sessionLoggerAdapter lets netsvc's Logger satisfy session.Logger
// without the two packages sharing a type.
type sessionLoggerAdapter struct{ Logger }

// Stop cancels in-flight session contexts, closes the listener, and
// waits up to ShutdownDeadline for everything to finish.
func (l *Listener) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	cancel := l.cancel
	lis := l.listener
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if lis != nil {
		_ = lis.Close()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info("netsvc_listener_stopped")
	case <-time.After(ShutdownDeadline):
		l.logger.Warn("netsvc_listener_stop_deadline_exceeded")
		l.closeTrackedConns()
		<-done
		l.logger.Info("netsvc_listener_stopped_forced")
	}
}

// closeTrackedConns forcibly closes every still-open accepted
// connection so a Session blocked in protocol.ReadFrame (which only
// checks ctx.Done() between requests, not mid-read) unblocks with a
// transport error instead of outliving the shutdown deadline.
func (l *Listener) closeTrackedConns() {
	l.mu.Lock()
	conns := make([]net.Conn, 0, len(l.conns))
	for c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
