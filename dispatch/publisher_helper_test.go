package dispatch

import (
	"net"
	"testing"

	"github.com/nimo-project/registry/status"
)

// newTestPublisher wires a status.Publisher to a loopback receiver so
// handler tests can exercise the real Publish path without a real
// multicast group.
func newTestPublisher(t *testing.T) (*status.Publisher, error) {
	t.Helper()
	receiver, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { receiver.Close() })

	pub, err := status.NewPublisher(receiver.LocalAddr().String(), status.NoopLogger())
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { pub.Close() })
	return pub, nil
}
