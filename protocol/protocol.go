// Package protocol frames a single typed value onto a byte stream: a
// 3-byte preamble (one role byte identifying request vs response, then
// the payload length as a big-endian uint16), the encoded value itself,
// and a 3-byte trailer that repeats the preamble byte for byte. This
// follows the preamble/payload/trailer shape spec.md §4.C and §6
// describe for the command connection; it has no gRPC/HTTP framing
// equivalent in the teacher, so it is built directly against
// encoding/binary and net.Conn reads, the same way the teacher's gRPC
// server leans on net.Listen/net.Conn for its transport plumbing.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nimo-project/registry/value"
)

// Role distinguishes a request frame from a response frame.
type Role byte

const (
	RoleRequest  Role = 0x01
	RoleResponse Role = 0x02
)

// maxPayloadBytes bounds a single frame's declared length to what the
// 2-byte length field can actually represent. A payload that doesn't
// fit is a protocol error on the write side, not a value to silently
// truncate mod 65536 — spec.md §4.C treats length overflow as a hard
// protocol error.
const maxPayloadBytes = 0xFFFF

// ProtocolError reports a malformed preamble, trailer, or payload.
// A ProtocolError from reading or parsing a request ends the session;
// one from WriteFrame for an oversized response does not — the session
// sends a short error response in its place and keeps going.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func protoErr(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// WriteFrame encodes v and writes it to w as preamble (role | length) |
// payload | trailer (a copy of the preamble).
func WriteFrame(w io.Writer, role Role, v value.Value) error {
	payload, err := value.Encode(v)
	if err != nil {
		return fmt.Errorf("protocol: encode payload: %w", err)
	}
	if len(payload) > maxPayloadBytes {
		return protoErr("payload too large: %d bytes", len(payload))
	}

	header := make([]byte, 3)
	header[0] = byte(role)
	binary.BigEndian.PutUint16(header[1:3], uint16(len(payload)))

	buf := make([]byte, 0, len(header)+len(payload)+len(header))
	buf = append(buf, header...)
	buf = append(buf, payload...)
	buf = append(buf, header...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r, validates that the trailer mirrors
// the preamble, and decodes the payload. Any mismatch is a
// *ProtocolError.
func ReadFrame(r io.Reader, wantRole Role) (value.Value, error) {
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return value.Value{}, err
	}
	role := Role(header[0])
	if role != wantRole {
		return value.Value{}, protoErr("unexpected role %d, want %d", role, wantRole)
	}
	length := binary.BigEndian.Uint16(header[1:3])
	if int(length) > maxPayloadBytes {
		return value.Value{}, protoErr("declared length %d exceeds maximum", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return value.Value{}, protoErr("short payload read: %v", err)
	}

	trailer := make([]byte, 3)
	if _, err := io.ReadFull(r, trailer); err != nil {
		return value.Value{}, protoErr("short trailer read: %v", err)
	}
	if trailer[0] != header[0] || trailer[1] != header[1] || trailer[2] != header[2] {
		return value.Value{}, protoErr("trailer does not mirror preamble")
	}

	v, n, err := value.Decode(payload)
	if err != nil {
		return value.Value{}, protoErr("decode payload: %v", err)
	}
	if n != len(payload) {
		return value.Value{}, protoErr("payload has %d trailing bytes", len(payload)-n)
	}
	return v, nil
}

// Request is a decoded request: an opcode and its argument values.
type Request struct {
	Opcode string
	Args   []value.Value
}

// ParseRequest unpacks an array value of shape [opcode, arg1, arg2, …].
func ParseRequest(v value.Value) (Request, error) {
	if v.Kind() != value.KindArray {
		return Request{}, protoErr("request is not an array")
	}
	elems := v.AsArray()
	if len(elems) < 1 {
		return Request{}, protoErr("request array is empty")
	}
	if elems[0].Kind() != value.KindString {
		return Request{}, protoErr("request opcode is not a string")
	}
	return Request{Opcode: elems[0].AsString(), Args: elems[1:]}, nil
}

// EncodeRequest builds the wire array value for a request.
func EncodeRequest(opcode string, args ...value.Value) value.Value {
	elems := make([]value.Value, 0, len(args)+1)
	elems = append(elems, value.String(opcode))
	elems = append(elems, args...)
	return value.Array(elems)
}

// EncodeResponse builds the wire array value for a response: [opcode,
// okFlag, resultValueOrErrorString].
func EncodeResponse(opcode string, ok bool, result value.Value) value.Value {
	return value.Array([]value.Value{
		value.String(opcode),
		value.Logical(ok),
		result,
	})
}

// EncodeErrorResponse builds an error response carrying errMsg as the
// result slot.
func EncodeErrorResponse(opcode string, errMsg string) value.Value {
	return EncodeResponse(opcode, false, value.String(errMsg))
}

// Response is a decoded response.
type Response struct {
	Opcode string
	OK     bool
	Result value.Value
}

// ParseResponse unpacks an array value of shape [opcode, okFlag, result].
func ParseResponse(v value.Value) (Response, error) {
	if v.Kind() != value.KindArray {
		return Response{}, protoErr("response is not an array")
	}
	elems := v.AsArray()
	if len(elems) != 3 {
		return Response{}, protoErr("response array must have 3 elements, got %d", len(elems))
	}
	if elems[0].Kind() != value.KindString || elems[1].Kind() != value.KindLogical {
		return Response{}, protoErr("malformed response header")
	}
	return Response{Opcode: elems[0].AsString(), OK: elems[1].AsLogical(), Result: elems[2]}, nil
}
