// Package session implements the per-connection request/response loop
// of spec.md §4.E: Initial → Reading → Dispatching → Writing →
// Reading → … → Closed. The state machine and its validTransitions
// table are adapted from coreengine/kernel/lifecycle.go's
// ProcessState transition table, generalized from process scheduling
// states to the session's read/dispatch/write cycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"

	"github.com/nimo-project/registry/dispatch"
	"github.com/nimo-project/registry/observability"
	"github.com/nimo-project/registry/protocol"
	"github.com/nimo-project/registry/value"
)

// State is a Session's position in its request/response cycle.
type State int

const (
	StateInitial State = iota
	StateReading
	StateDispatching
	StateWriting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateReading:
		return "reading"
	case StateDispatching:
		return "dispatching"
	case StateWriting:
		return "writing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// validTransitions enumerates every state change a session may make.
// Mirrors kernel.validTransitions: a map of allowed destinations per
// source state, checked with IsValidTransition before every move.
var validTransitions = map[State]map[State]bool{
	StateInitial:      {StateReading: true, StateClosed: true},
	StateReading:      {StateDispatching: true, StateClosed: true},
	StateDispatching:  {StateWriting: true, StateClosed: true},
	StateWriting:      {StateReading: true, StateClosed: true},
	StateClosed:       {},
}

// IsValidTransition reports whether moving from `from` to `to` is allowed.
func IsValidTransition(from, to State) bool {
	if targets, ok := validTransitions[from]; ok {
		return targets[to]
	}
	return false
}

// Logger is the structured logging shape a Session logs through.
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

// Session owns one client connection and runs its request/response
// loop until the socket closes, a protocol error occurs, or ctx is
// cancelled (graceful shutdown). A Session never touches the catalog
// lock directly — it only calls dispatch.Registry.Dispatch, which
// handlers guard internally.
type Session struct {
	id       string
	conn     net.Conn
	registry *dispatch.Registry
	logger   Logger
	state    State
}

// New creates a Session bound to conn, tagged with a fresh correlation
// ID (a v4 UUID, the same identifier shape the teacher attaches to an
// envelope or agent run) so every log line for this connection's
// lifetime can be grepped out of a multi-session log stream. The
// caller (Listener) is responsible for calling Run in its own
// goroutine.
func New(conn net.Conn, registry *dispatch.Registry, logger Logger) *Session {
	if logger == nil {
		logger = NoopLogger()
	}
	return &Session{id: uuid.NewString(), conn: conn, registry: registry, logger: logger, state: StateInitial}
}

// ID returns this session's correlation ID.
func (s *Session) ID() string { return s.id }

func (s *Session) transition(to State) {
	if !IsValidTransition(s.state, to) {
		panic(fmt.Sprintf("session: invalid transition %s -> %s", s.state, to))
	}
	s.state = to
}

// Run executes the Reading→Dispatching→Writing cycle until the
// connection ends or ctx is cancelled. It always closes the socket
// before returning.
func (s *Session) Run(ctx context.Context) {
	defer s.conn.Close()
	s.logger.Debug("session_started", "session_id", s.id, "remote", s.conn.RemoteAddr().String())
	observability.SessionOpened()
	s.transition(StateReading)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("session_shutdown", "session_id", s.id, "remote", s.conn.RemoteAddr().String())
			s.transition(StateClosed)
			observability.SessionClosed("shutdown")
			return
		default:
		}

		reqValue, err := protocol.ReadFrame(s.conn, protocol.RoleRequest)
		if err != nil {
			observability.SessionClosed(s.handleReadError(err))
			return
		}

		s.transition(StateDispatching)
		opcode, respValue, closeAfter := s.handleRequest(ctx, reqValue)

		s.transition(StateWriting)
		if err := s.writeResponse(opcode, respValue); err != nil {
			s.logger.Warn("session_write_failed", "error", err.Error())
			s.transition(StateClosed)
			observability.SessionClosed("transport_error")
			return
		}

		if closeAfter {
			s.transition(StateClosed)
			observability.SessionClosed("protocol_error")
			return
		}
		s.transition(StateReading)
	}
}

// handleReadError distinguishes a protocol error (malformed frame,
// worth a best-effort error response) from a plain transport error
// (socket closed, no response attempted), per spec.md §7. It returns
// the closed_reason label for the session metric.
func (s *Session) handleReadError(err error) string {
	var protoErr *protocol.ProtocolError
	var reason string
	if errors.As(err, &protoErr) {
		s.logger.Warn("session_protocol_error", "error", err.Error())
		resp := protocol.EncodeErrorResponse("", err.Error())
		_ = protocol.WriteFrame(s.conn, protocol.RoleResponse, resp)
		reason = "protocol_error"
	} else if errors.Is(err, io.EOF) {
		s.logger.Debug("session_transport_closed", "error", err.Error())
		reason = "normal"
	} else {
		s.logger.Debug("session_transport_closed", "error", err.Error())
		reason = "transport_error"
	}
	s.state = StateClosed
	return reason
}

// handleRequest parses and dispatches one request, translating any
// dispatch error into an error response. closeAfter is true only for
// a request-framing error so severe it should not be trusted to leave
// the session in a good state.
func (s *Session) handleRequest(ctx context.Context, reqValue value.Value) (opcode string, resp value.Value, closeAfter bool) {
	req, err := protocol.ParseRequest(reqValue)
	if err != nil {
		return "", protocol.EncodeErrorResponse("", err.Error()), true
	}

	result, err := s.registry.Dispatch(ctx, req.Opcode, req.Args)
	if err != nil {
		s.logger.Debug("session_handler_error", "opcode", req.Opcode, "error", err.Error())
		return req.Opcode, protocol.EncodeErrorResponse(req.Opcode, err.Error()), false
	}
	return req.Opcode, protocol.EncodeResponse(req.Opcode, true, result), false
}

// writeResponse writes resp, falling back to a small error response if
// resp itself was the problem — e.g. a `ProtocolError` from WriteFrame
// because an unbounded read-all response (infNA/infCA/infXA on a large
// catalog) doesn't fit the wire format's 2-byte length field. That
// fallback response is tiny and opcode-only, so it fits even when the
// original didn't. A plain transport error (broken pipe, closed socket)
// is not retried — there is nothing left to write to.
func (s *Session) writeResponse(opcode string, resp value.Value) error {
	err := protocol.WriteFrame(s.conn, protocol.RoleResponse, resp)
	if err == nil {
		return nil
	}
	var protoErr *protocol.ProtocolError
	if !errors.As(err, &protoErr) {
		return err
	}
	fallback := protocol.EncodeErrorResponse(opcode, err.Error())
	return protocol.WriteFrame(s.conn, protocol.RoleResponse, fallback)
}
