package announce

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeNameRoundTrip(t *testing.T) {
	encoded := encodeName("_nimo-registry._tcp.local")
	decoded, next, err := decodeName(encoded, 0)
	require.NoError(t, err)
	assert.Equal(t, "_nimo-registry._tcp.local.", decoded)
	assert.Equal(t, len(encoded), next)
}

func TestBuildAnnouncementContainsAllRecords(t *testing.T) {
	records := []resourceRecord{
		{name: "_nimo-registry._tcp.local.", rtype: typePTR, ttl: defaultTTL, data: ptrData("alpha._nimo-registry._tcp.local.")},
		{name: "alpha._nimo-registry._tcp.local.", rtype: typeSRV, ttl: defaultTTL, data: srvData(0, 0, 40000, "alpha.local.")},
		{name: "alpha._nimo-registry._tcp.local.", rtype: typeTXT, ttl: defaultTTL, data: txtData(map[string]string{"status-addr": "239.17.12.1:9999"})},
		{name: "alpha.local.", rtype: typeA, ttl: defaultTTL, data: aData(net.ParseIP("10.0.0.5"))},
	}
	packet := buildAnnouncement(1, records)

	h, err := decodeHeader(packet)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), h.anCount)
	assert.NotZero(t, h.flags&0x8000, "response bit must be set")
}

func TestGoodbyePacketUsesZeroTTL(t *testing.T) {
	records := []resourceRecord{
		{name: "_nimo-registry._tcp.local.", rtype: typePTR, ttl: goodbyeTTL, data: ptrData("alpha._nimo-registry._tcp.local.")},
	}
	packet := buildAnnouncement(2, records)
	assert.Greater(t, len(packet), 12)

	// header (12) + owner name + type (2) + class (2), then the 4-byte TTL.
	ttlOffset := 12 + len(encodeName(records[0].name)) + 4
	require.GreaterOrEqual(t, len(packet), ttlOffset+4)
	assert.Equal(t, goodbyeTTL, binary.BigEndian.Uint32(packet[ttlOffset:]))
}

func TestParseQueryExtractsQuestion(t *testing.T) {
	h := header{id: 7, qdCount: 1}
	buf := h.encode()
	buf = append(buf, encodeName("_nimo-registry._tcp.local")...)
	typeClass := make([]byte, 4)
	typeClass[1] = byte(typePTR)
	typeClass[3] = byte(classIN)
	buf = append(buf, typeClass...)

	questions, err := parseQuery(buf)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "_nimo-registry._tcp.local.", questions[0].name)
	assert.Equal(t, typePTR, questions[0].qtype)
}

func TestParseQueryRejectsResponse(t *testing.T) {
	h := header{id: 1, flags: flagResponse}
	_, err := parseQuery(h.encode())
	assert.Error(t, err)
}

func TestTXTDataEmptyFallsBackToZeroLength(t *testing.T) {
	data := txtData(nil)
	assert.Equal(t, []byte{0}, data)
}
