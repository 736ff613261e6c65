package status

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"

	"github.com/nimo-project/registry/observability"
	"github.com/nimo-project/registry/value"
)

// Logger is the structured logging shape the publisher logs through,
// matching commbus.BusLogger.
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

// Publisher multicasts status events on a fixed UDP group, per
// spec.md §4.G/§6. Delivery is best-effort and fire-and-forget: a send
// failure is logged, never returned to the mutating handler, matching
// commbus.InMemoryCommBus.Publish's "subscriber errors are logged but
// don't stop other subscribers" stance generalized to "a failed
// multicast send never fails the caller's mutation".
type Publisher struct {
	conn   *ipv4.PacketConn
	dest   *net.UDPAddr
	logger Logger
}

// NewPublisher opens a UDP socket for sending to group:port (e.g.
// "239.17.12.1:9999", spec.md §6's example address) and wraps it with
// golang.org/x/net/ipv4 for multicast control, mirroring the
// beacon transport's ipv4.NewPacketConn(conn) idiom.
func NewPublisher(group string, logger Logger) (*Publisher, error) {
	if logger == nil {
		logger = NoopLogger()
	}
	addr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, fmt.Errorf("status: resolve multicast group %q: %w", group, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("status: open send socket: %w", err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(1); err != nil {
		logger.Warn("status_multicast_ttl_unset", "error", err.Error())
	}

	return &Publisher{conn: pc, dest: addr, logger: logger}, nil
}

// Publish encodes and sends one event datagram. Errors are logged and
// swallowed — callers never block a catalog mutation on multicast
// delivery.
func (p *Publisher) Publish(e Event) {
	payload, err := value.Encode(e.Encode())
	if err != nil {
		p.logger.Error("status_encode_failed", "kind", string(e.Kind), "error", err.Error())
		return
	}
	if _, err := p.conn.WriteTo(payload, nil, p.dest); err != nil {
		p.logger.Warn("status_publish_failed", "kind", string(e.Kind), "subject", e.Subject, "error", err.Error())
		return
	}
	observability.RecordStatusEvent(string(e.Kind))
	p.logger.Debug("status_published", "kind", string(e.Kind), "subject", e.Subject)
}

// Close releases the send socket.
func (p *Publisher) Close() error {
	return p.conn.Close()
}
