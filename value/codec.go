package value

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Wire tags. One byte per value, matching the Kind enumeration so the
// tag doubles as the discriminant — there is no separate type table.
const (
	tagInvalid = byte(KindInvalid)
	tagLogical = byte(KindLogical)
	tagInteger = byte(KindInteger)
	tagDouble  = byte(KindDouble)
	tagString  = byte(KindString)
	tagBlob    = byte(KindBlob)
	tagArray   = byte(KindArray)
	tagMap     = byte(KindMap)
	tagSet     = byte(KindSet)
)

// maxContainerElements bounds how many elements Decode will allocate for
// in one pass, so a corrupt or hostile length prefix can't trigger an
// unbounded allocation before the byte count is even verified.
const maxContainerElements = 1 << 20

// Encode serializes v to its wire representation.
func Encode(v Value) ([]byte, error) {
	buf := make([]byte, 0, 64)
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	switch v.kind {
	case KindInvalid:
		return append(buf, tagInvalid), nil
	case KindLogical:
		b := byte(0)
		if v.logic {
			b = 1
		}
		return append(buf, tagLogical, b), nil
	case KindInteger:
		buf = append(buf, tagInteger)
		return appendUint64(buf, uint64(v.intg)), nil
	case KindDouble:
		buf = append(buf, tagDouble)
		return appendUint64(buf, math.Float64bits(v.dbl)), nil
	case KindString:
		buf = append(buf, tagString)
		return appendBytes(buf, []byte(v.str)), nil
	case KindBlob:
		buf = append(buf, tagBlob)
		return appendBytes(buf, v.blob), nil
	case KindArray:
		buf = append(buf, tagArray)
		buf = appendUint32(buf, uint32(len(v.arr)))
		var err error
		for _, e := range v.arr {
			buf, err = appendValue(buf, e)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case KindSet:
		buf = append(buf, tagSet)
		buf = appendUint32(buf, uint32(len(v.setVal)))
		var err error
		for _, e := range v.setVal {
			buf, err = appendValue(buf, e)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case KindMap:
		buf = append(buf, tagMap)
		buf = appendUint32(buf, uint32(len(v.mp)))
		var err error
		for _, e := range v.mp {
			buf, err = appendValue(buf, e.Key)
			if err != nil {
				return nil, err
			}
			buf, err = appendValue(buf, e.Value)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("value: encode: unknown kind %d", v.kind)
	}
}

func appendUint32(buf []byte, n uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], n)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, n uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], n)
	return append(buf, tmp[:]...)
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = appendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// Decode parses a single Value from the front of b and returns the
// number of bytes consumed, so callers framing a stream of values (the
// command protocol's array-of-arguments wire shape) can keep decoding
// from the remainder.
func Decode(b []byte) (Value, int, error) {
	if len(b) < 1 {
		return Value{}, 0, fmt.Errorf("value: decode: empty input")
	}
	tag := b[0]
	rest := b[1:]
	consumed := 1

	switch tag {
	case tagInvalid:
		return Value{}, consumed, nil
	case tagLogical:
		if len(rest) < 1 {
			return Value{}, 0, fmt.Errorf("value: decode: truncated logical")
		}
		return Logical(rest[0] != 0), consumed + 1, nil
	case tagInteger:
		n, err := readUint64(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Integer(int64(n)), consumed + 8, nil
	case tagDouble:
		n, err := readUint64(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Double(math.Float64frombits(n)), consumed + 8, nil
	case tagString:
		data, n, err := readBytes(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return String(string(data)), consumed + n, nil
	case tagBlob:
		data, n, err := readBytes(rest)
		if err != nil {
			return Value{}, 0, err
		}
		return Blob(data), consumed + n, nil
	case tagArray, tagSet:
		count, err := readUint32(rest)
		if err != nil {
			return Value{}, 0, err
		}
		if count > maxContainerElements {
			return Value{}, 0, fmt.Errorf("value: decode: array/set too large: %d", count)
		}
		off := 4
		elems := make([]Value, 0, count)
		for i := uint32(0); i < count; i++ {
			ev, n, err := Decode(rest[off:])
			if err != nil {
				return Value{}, 0, err
			}
			elems = append(elems, ev)
			off += n
		}
		if tag == tagSet {
			return Set(elems), consumed + off, nil
		}
		return Array(elems), consumed + off, nil
	case tagMap:
		count, err := readUint32(rest)
		if err != nil {
			return Value{}, 0, err
		}
		if count > maxContainerElements {
			return Value{}, 0, fmt.Errorf("value: decode: map too large: %d", count)
		}
		off := 4
		entries := make([]MapEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			kv, n, err := Decode(rest[off:])
			if err != nil {
				return Value{}, 0, err
			}
			off += n
			vv, n, err := Decode(rest[off:])
			if err != nil {
				return Value{}, 0, err
			}
			off += n
			entries = append(entries, MapEntry{Key: kv, Value: vv})
		}
		return Map(entries), consumed + off, nil
	default:
		return Value{}, 0, fmt.Errorf("value: decode: unknown tag %d", tag)
	}
}

func readUint32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("value: decode: truncated length")
	}
	return binary.BigEndian.Uint32(b), nil
}

func readUint64(b []byte) (uint64, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("value: decode: truncated number")
	}
	return binary.BigEndian.Uint64(b), nil
}

func readBytes(b []byte) ([]byte, int, error) {
	n, err := readUint32(b)
	if err != nil {
		return nil, 0, err
	}
	if uint64(n) > uint64(len(b)-4) {
		return nil, 0, fmt.Errorf("value: decode: truncated bytes: want %d, have %d", n, len(b)-4)
	}
	return b[4 : 4+n], 4 + int(n), nil
}
