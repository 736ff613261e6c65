package announce

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
)

// MulticastAddr and Port are mDNS's fixed rendezvous point (RFC 6762
// §5). Unlike the status-event multicast group, these are not
// configurable — they are the protocol's address, not ours.
const (
	MulticastAddr = "224.0.0.251"
	Port          = 5353
)

const serviceType = "_nimo-registry._tcp.local."

// queryPollDeadline bounds each Receive call in the responder loop so
// Stop's cancellation is observed within roughly this long, per
// spec.md §4.H/§5.
const queryPollDeadline = 2 * time.Second

// Logger is the structured logging shape an Announcer logs through.
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

// Service describes what this Registry instance advertises.
type Service struct {
	// InstanceName is usually the host's name; combined with
	// ServiceType it forms the full DNS-SD instance name.
	InstanceName string
	CommandPort  int
	IPv4Address  net.IP
	// StatusAddr is the status-event multicast group:port, carried in
	// a TXT record so discoverers know where to listen.
	StatusAddr string
}

func (s Service) fqdn() string          { return s.InstanceName + "." + serviceType }
func (s Service) hostname() string      { return s.InstanceName + ".local." }
func (s Service) records(ttl uint32) []resourceRecord {
	fqdn := s.fqdn()
	host := s.hostname()
	return []resourceRecord{
		{name: serviceType, rtype: typePTR, ttl: ttl, data: ptrData(fqdn)},
		{name: fqdn, rtype: typeSRV, ttl: ttl, data: srvData(0, 0, uint16(s.CommandPort), host)},
		{name: fqdn, rtype: typeTXT, ttl: ttl, data: txtData(map[string]string{"status-addr": s.StatusAddr})},
		{name: host, rtype: typeA, ttl: ttl, data: aData(s.IPv4Address)},
	}
}

// Announcer advertises one Service over mDNS and answers PTR queries
// for its service type. Adapted from responder.Responder's
// New/Register/Unregister/Close shape (responder/responder.go),
// restricted to the announcing and query-response halves — no
// probing, no rename-on-conflict loop, since spec.md assumes a single
// Registry per network.
type Announcer struct {
	conn    *ipv4.PacketConn
	dest    *net.UDPAddr
	service Service
	logger  Logger

	mu       sync.Mutex
	advanced bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New opens the mDNS multicast socket and prepares an Announcer for
// service, but does not advertise it yet — call Advertise for that.
func New(service Service, logger Logger) (*Announcer, error) {
	if logger == nil {
		logger = NoopLogger()
	}

	groupAddr := &net.UDPAddr{IP: net.ParseIP(MulticastAddr), Port: Port}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: Port})
	if err != nil {
		return nil, fmt.Errorf("announce: listen on %d: %w", Port, err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if ifaces, ifErr := multicastInterfaces(); ifErr == nil {
		for _, iface := range ifaces {
			_ = pconn.JoinGroup(iface, groupAddr)
		}
	}
	if err := pconn.SetMulticastTTL(255); err != nil {
		logger.Warn("announce_set_ttl_failed", "error", err.Error())
	}

	return &Announcer{conn: pconn, dest: groupAddr, service: service, logger: logger}, nil
}

func multicastInterfaces() ([]*net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []*net.Interface
	for i := range all {
		iface := all[i]
		if iface.Flags&net.FlagMulticast != 0 && iface.Flags&net.FlagUp != 0 {
			out = append(out, &iface)
		}
	}
	return out, nil
}

// Advertise sends an unsolicited announcement and starts the
// background query-response loop. Calling Advertise twice is a no-op.
func (a *Announcer) Advertise() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.advanced {
		return nil
	}

	packet := buildAnnouncement(0, a.service.records(defaultTTL))
	if _, err := a.conn.WriteTo(packet, nil, a.dest); err != nil {
		return fmt.Errorf("announce: send announcement: %w", err)
	}
	a.logger.Info("announce_advertised", "service", a.service.fqdn())

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.advanced = true

	a.wg.Add(1)
	go a.respondLoop(ctx)
	return nil
}

// respondLoop answers PTR queries for our service type until ctx is
// cancelled. Polls with a short read deadline so Withdraw's
// cancellation is noticed promptly, mirroring
// responder.runQueryHandler's ctx.Done()-or-receive select loop but
// using a plain deadline instead of a done channel, since our
// transport (a single UDP socket) needs no background receive
// multiplexer.
func (a *Announcer) respondLoop(ctx context.Context) {
	defer a.wg.Done()
	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = a.conn.SetReadDeadline(time.Now().Add(queryPollDeadline))
		n, _, src, err := a.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
				a.logger.Warn("announce_read_error", "error", err.Error())
				continue
			}
		}

		questions, err := parseQuery(buf[:n])
		if err != nil {
			continue
		}
		a.respond(questions, src)
	}
}

// respond answers the first PTR question for our service type. The
// reply goes to the multicast group, except that a query sent from a
// port other than 5353 (a legacy unicast query, RFC 6762 §6.7, such as
// Probe's) is answered directly to its sender, which would not hear the
// group. The question's unicast-response bit is not examined.
func (a *Announcer) respond(questions []question, src net.Addr) {
	dest := net.Addr(a.dest)
	if udp, ok := src.(*net.UDPAddr); ok && udp.Port != Port {
		dest = udp
	}
	for _, q := range questions {
		if q.qtype != typePTR || q.name != serviceType {
			continue
		}
		packet := buildAnnouncement(0, a.service.records(defaultTTL))
		if _, err := a.conn.WriteTo(packet, nil, dest); err != nil {
			a.logger.Warn("announce_respond_failed", "error", err.Error(), "to", src.String())
		}
		return
	}
}

// Withdraw sends a goodbye packet (TTL=0 PTR, RFC 6762 §10.1) and stops
// the query-response loop. Safe to call more than once.
func (a *Announcer) Withdraw() error {
	a.mu.Lock()
	if !a.advanced {
		a.mu.Unlock()
		return nil
	}
	a.advanced = false
	cancel := a.cancel
	a.mu.Unlock()

	goodbye := buildAnnouncement(0, a.service.records(goodbyeTTL))
	_, err := a.conn.WriteTo(goodbye, nil, a.dest)
	if err != nil {
		a.logger.Warn("announce_goodbye_failed", "error", err.Error())
	}

	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	a.logger.Info("announce_withdrawn", "service", a.service.fqdn())
	return err
}

// Close releases the multicast socket. Callers should Withdraw first.
func (a *Announcer) Close() error {
	return a.conn.Close()
}

// Probe sends a PTR query for our service type and waits up to
// timeout for any answer, used by the registry package's startup
// duplicate-Registry check (spec.md §4.I): if anything answers, a
// Registry is already running on this network.
func Probe(timeout time.Duration) (bool, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return false, fmt.Errorf("announce: probe socket: %w", err)
	}
	defer conn.Close()

	dest := &net.UDPAddr{IP: net.ParseIP(MulticastAddr), Port: Port}
	query := buildQuery(serviceType)
	if _, err := conn.WriteToUDP(query, dest); err != nil {
		return false, fmt.Errorf("announce: send probe: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return false, nil
			}
			return false, nil
		}
		if looksLikeOurServiceAnswer(buf[:n]) {
			return true, nil
		}
	}
}

func looksLikeOurServiceAnswer(packet []byte) bool {
	h, err := decodeHeader(packet)
	if err != nil {
		return false
	}
	return h.flags&0x8000 != 0 && h.anCount > 0
}

// buildQuery assembles a standard mDNS query for a PTR record of name.
func buildQuery(name string) []byte {
	h := header{id: 0, qdCount: 1}
	buf := h.encode()
	buf = append(buf, encodeName(name)...)
	tail := make([]byte, 4)
	tail[1] = byte(typePTR)
	tail[3] = byte(classIN)
	return append(buf, tail...)
}

// Hostname returns the local machine's short hostname, falling back to
// "localhost" exactly as responder.New does when os.Hostname fails.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}
