package session

import (
	"context"
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

func newTestSession(t *testing.T) (client net.Conn, done chan struct{}) {
	t.Helper()
	server, client := net.Pipe()

	store := catalog.NewStore()
	receiver, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { receiver.Close() })
	pub, err := status.NewPublisher(receiver.LocalAddr().String(), status.NoopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { pub.Close() })

	registry := dispatch.NewRegistry()
	dispatch.RegisterAll(registry, store, pub)

	s := New(server, registry, nil)
	done = make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	return client, done
}

func TestSessionRoundTripsOneRequest(t *testing.T) {
	client, done := newTestSession(t)
	defer client.Close()

	req := protocol.EncodeRequest("addM", value.String("alpha"), value.String("192.168.1.11"))
	require.NoError(t, protocol.WriteFrame(client, protocol.RoleRequest, req))

	resp, err := protocol.ReadFrame(client, protocol.RoleResponse)
	require.NoError(t, err)
	parsed, err := protocol.ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "addM", parsed.Opcode)
	assert.True(t, parsed.OK)

	client.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close after client disconnect")
	}
}

func TestSessionHandlesMultipleRequestsInOrder(t *testing.T) {
	client, done := newTestSession(t)
	defer func() {
		client.Close()
		<-done
	}()

	require.NoError(t, protocol.WriteFrame(client, protocol.RoleRequest,
		protocol.EncodeRequest("addM", value.String("alpha"), value.String("1.2.3.4"))))
	resp1, err := protocol.ReadFrame(client, protocol.RoleResponse)
	require.NoError(t, err)
	p1, err := protocol.ParseResponse(resp1)
	require.NoError(t, err)
	assert.True(t, p1.OK)

	require.NoError(t, protocol.WriteFrame(client, protocol.RoleRequest,
		protocol.EncodeRequest("cntM")))
	resp2, err := protocol.ReadFrame(client, protocol.RoleResponse)
	require.NoError(t, err)
	p2, err := protocol.ParseResponse(resp2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p2.Result.AsInteger())
}

func TestSessionErrorResponseKeepsConnectionOpen(t *testing.T) {
	client, done := newTestSession(t)
	defer func() {
		client.Close()
		<-done
	}()

	require.NoError(t, protocol.WriteFrame(client, protocol.RoleRequest,
		protocol.EncodeRequest("isM?", value.String("ghost"))))
	resp, err := protocol.ReadFrame(client, protocol.RoleResponse)
	require.NoError(t, err)
	parsed, err := protocol.ParseResponse(resp)
	require.NoError(t, err)
	assert.True(t, parsed.OK)
	assert.False(t, parsed.Result.AsLogical())

	require.NoError(t, protocol.WriteFrame(client, protocol.RoleRequest,
		protocol.EncodeRequest("rmM", value.String("ghost"))))
	resp2, err := protocol.ReadFrame(client, protocol.RoleResponse)
	require.NoError(t, err)
	parsed2, err := protocol.ParseResponse(resp2)
	require.NoError(t, err)
	assert.False(t, parsed2.OK)

	require.NoError(t, protocol.WriteFrame(client, protocol.RoleRequest,
		protocol.EncodeRequest("cntM")))
	resp3, err := protocol.ReadFrame(client, protocol.RoleResponse)
	require.NoError(t, err)
	parsed3, err := protocol.ParseResponse(resp3)
	require.NoError(t, err)
	assert.True(t, parsed3.OK)
	assert.Equal(t, int64(0), parsed3.Result.AsInteger())
}

func TestNewAssignsDistinctSessionIDs(t *testing.T) {
	store := catalog.NewStore()
	registry := dispatch.NewRegistry()
	receiver, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer receiver.Close()
	pub, err := status.NewPublisher(receiver.LocalAddr().String(), status.NoopLogger())
	require.NoError(t, err)
	defer pub.Close()
	dispatch.RegisterAll(registry, store, pub)

	serverA, clientA := net.Pipe()
	serverB, clientB := net.Pipe()
	defer serverA.Close()
	defer serverB.Close()
	defer clientA.Close()
	defer clientB.Close()

	a := New(serverA, registry, nil)
	b := New(serverB, registry, nil)

	assert.NotEmpty(t, a.ID())
	assert.NotEmpty(t, b.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestIsValidTransition(t *testing.T) {
	assert.True(t, IsValidTransition(StateReading, StateDispatching))
	assert.False(t, IsValidTransition(StateClosed, StateReading))
	assert.True(t, IsValidTransition(StateInitial, StateClosed))
}
