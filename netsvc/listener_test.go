package netsvc

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimo-project/registry/catalog"
	"github.com/nimo-project/registry/dispatch"
	"github.com/nimo-project/registry/protocol"
	"github.com/nimo-project/registry/status"
	"github.com/nimo-project/registry/value"
)

func newTestListener(t *testing.T) *Listener {
	t.Helper()
	store := catalog.NewStore()
	receiver, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { receiver.Close() })
	pub, err := status.NewPublisher(receiver.LocalAddr().String(), status.NoopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { pub.Close() })

	registry := dispatch.NewRegistry()
	dispatch.RegisterAll(registry, store, pub)
	return New(registry, NoopLogger())
}

func TestListenerAcceptsAndServesConnections(t *testing.T) {
	l := newTestListener(t)
	addr, err := l.Start("127.0.0.1:0")
	require.NoError(t, err)
	defer l.Stop()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	req := protocol.EncodeRequest("addM", value.String("alpha"), value.String("10.0.0.1"))
	require.NoError(t, protocol.WriteFrame(conn, protocol.RoleRequest, req))

	resp, err := protocol.ReadFrame(conn, protocol.RoleResponse)
	require.NoError(t, err)
	parsed, err := protocol.ParseResponse(resp)
	require.NoError(t, err)
	assert.True(t, parsed.OK)
}

func TestListenerStopClosesConnections(t *testing.T) {
	l := newTestListener(t)
	addr, err := l.Start("127.0.0.1:0")
	require.NoError(t, err)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return in time")
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.Error(t, err)
}

func TestListenerStopIsIdempotent(t *testing.T) {
	l := newTestListener(t)
	_, err := l.Start("127.0.0.1:0")
	require.NoError(t, err)

	l.Stop()
	assert.NotPanics(t, func() { l.Stop() })
}
