package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimo-project/registry/value"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	req := EncodeRequest("addM", value.String("alpha"), value.String("192.168.1.11"))

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, RoleRequest, req))

	got, err := ReadFrame(&buf, RoleRequest)
	require.NoError(t, err)
	assert.True(t, value.Equal(req, got))
}

func TestReadFrameWrongRoleErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, RoleRequest, value.Array(nil)))

	_, err := ReadFrame(&buf, RoleResponse)
	require.Error(t, err)
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestReadFrameCorruptTrailerErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, RoleRequest, value.String("x")))
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := ReadFrame(bytes.NewReader(corrupted), RoleRequest)
	require.Error(t, err)
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestParseRequestRejectsNonArray(t *testing.T) {
	_, err := ParseRequest(value.Integer(1))
	require.Error(t, err)
}

func TestParseRequestRejectsEmptyArray(t *testing.T) {
	_, err := ParseRequest(value.Array(nil))
	require.Error(t, err)
}

func TestParseRequestExtractsOpcodeAndArgs(t *testing.T) {
	v := EncodeRequest("addN", value.String("n1"), value.Integer(2))
	req, err := ParseRequest(v)
	require.NoError(t, err)
	assert.Equal(t, "addN", req.Opcode)
	require.Len(t, req.Args, 2)
	assert.Equal(t, "n1", req.Args[0].AsString())
}

func TestEncodeParseResponseRoundTrip(t *testing.T) {
	v := EncodeResponse("cntM", true, value.Integer(3))
	resp, err := ParseResponse(v)
	require.NoError(t, err)
	assert.Equal(t, "cntM", resp.Opcode)
	assert.True(t, resp.OK)
	assert.Equal(t, int64(3), resp.Result.AsInteger())
}

func TestEncodeErrorResponse(t *testing.T) {
	v := EncodeErrorResponse("addN", "not found: machine \"ghost\"")
	resp, err := ParseResponse(v)
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, "not found: machine \"ghost\"", resp.Result.AsString())
}
