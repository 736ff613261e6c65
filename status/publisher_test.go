package status

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimo-project/registry/value"
)

func TestPublisherSendsDecodableDatagram(t *testing.T) {
	receiver, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer receiver.Close()

	pub, err := NewPublisher(receiver.LocalAddr().String(), NoopLogger())
	require.NoError(t, err)
	defer pub.Close()

	pub.Publish(NodeAddedEvent("n1", "alpha", "Filter", "192.168.1.11", 40001))

	require.NoError(t, receiver.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 65536)
	n, _, err := receiver.ReadFromUDP(buf)
	require.NoError(t, err)

	v, consumed, err := value.Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, n, consumed)

	elems := v.AsArray()
	require.Len(t, elems, 6)
	assert.Equal(t, string(NodeAdded), elems[0].AsString())
	assert.Equal(t, "n1", elems[1].AsString())
	assert.Equal(t, "alpha", elems[2].AsString())
}

func TestEventEncodeShape(t *testing.T) {
	e := MachineAddedEvent("alpha", "192.168.1.11")
	v := e.Encode()
	require.Equal(t, value.KindArray, v.Kind())
	elems := v.AsArray()
	require.Len(t, elems, 3)
	assert.Equal(t, "machine-added", elems[0].AsString())
	assert.Equal(t, "alpha", elems[1].AsString())
	assert.Equal(t, "192.168.1.11", elems[2].AsString())
}
