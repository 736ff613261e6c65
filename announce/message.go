// Package announce advertises the Registry over mDNS (RFC 6762) / DNS-SD
// (RFC 6763) as `_nimo-registry._tcp.local.`, adapted from
// joshuafuller-beacon's responder state machine: only the announcing and
// query-response halves are kept (probing is skipped — spec.md's
// Non-goals already assume exactly one Registry per network, and the
// startup duplicate-Registry probe in the registry package covers what
// beacon's probing phase would otherwise catch).
//
// This package hand-rolls the DNS wire format the same way beacon's
// internal/message does (no third-party DNS library exists anywhere in
// the reference corpus), restricted to the record types a service
// announcement needs: PTR, SRV, TXT, A.
package announce

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// DNS record types used by this package (RFC 1035 §3.2.2).
const (
	typeA   uint16 = 1
	typePTR uint16 = 12
	typeTXT uint16 = 16
	typeSRV uint16 = 33
)

// classIN is the Internet record class (RFC 1035 §3.2.4). cacheFlushBit
// is RFC 6762 §10.2's cache-flush bit, set on our own authoritative
// answers (OR'd into the class field on the wire).
const (
	classIN       uint16 = 1
	cacheFlushBit uint16 = 0x8000
)

// goodbyeTTL and defaultTTL are the two TTLs this package ever
// announces with: zero to retract a record (RFC 6762 §10.1), and the
// default otherwise. mDNS conventionally uses 75 minutes for host
// records and shorter for service records; we use one TTL for
// everything since the Registry's presence is the only fact announced.
const (
	defaultTTL uint32 = 120
	goodbyeTTL uint32 = 0
)

// header mirrors a DNS message header (RFC 1035 §4.1.1), restricted to
// the fields an unsolicited response or a query needs.
type header struct {
	id      uint16
	flags   uint16
	qdCount uint16
	anCount uint16
	nsCount uint16
	arCount uint16
}

const flagResponse = 0x8400 // QR=1, AA=1 (RFC 6762 §18.4: AA bit set on all mDNS responses)

func (h header) encode() []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint16(buf[0:], h.id)
	binary.BigEndian.PutUint16(buf[2:], h.flags)
	binary.BigEndian.PutUint16(buf[4:], h.qdCount)
	binary.BigEndian.PutUint16(buf[6:], h.anCount)
	binary.BigEndian.PutUint16(buf[8:], h.nsCount)
	binary.BigEndian.PutUint16(buf[10:], h.arCount)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < 12 {
		return header{}, errors.New("announce: message shorter than dns header")
	}
	return header{
		id:      binary.BigEndian.Uint16(buf[0:]),
		flags:   binary.BigEndian.Uint16(buf[2:]),
		qdCount: binary.BigEndian.Uint16(buf[4:]),
		anCount: binary.BigEndian.Uint16(buf[6:]),
		nsCount: binary.BigEndian.Uint16(buf[8:]),
		arCount: binary.BigEndian.Uint16(buf[10:]),
	}, nil
}

// encodeName writes a dotted DNS name as length-prefixed labels
// terminated by a zero byte. No name compression (RFC 1035 §4.1.4) —
// our messages are small enough that compression would only add
// complexity without a measurable size benefit.
func encodeName(name string) []byte {
	name = strings.TrimSuffix(name, ".")
	var buf []byte
	for _, label := range strings.Split(name, ".") {
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	return append(buf, 0)
}

// decodeName reads a length-prefixed name starting at offset, returning
// the dotted name and the offset just past it. Pointers (RFC 1035
// §4.1.4 compression) are not supported on read since this package
// never emits them and only needs to parse its own simple queries.
func decodeName(buf []byte, offset int) (string, int, error) {
	var labels []string
	for {
		if offset >= len(buf) {
			return "", 0, errors.New("announce: truncated name")
		}
		n := int(buf[offset])
		if n&0xc0 != 0 {
			return "", 0, errors.New("announce: compressed names not supported")
		}
		offset++
		if n == 0 {
			break
		}
		if offset+n > len(buf) {
			return "", 0, errors.New("announce: truncated label")
		}
		labels = append(labels, string(buf[offset:offset+n]))
		offset += n
	}
	return strings.Join(labels, ".") + ".", offset, nil
}

// question is a parsed DNS question (RFC 1035 §4.1.2).
type question struct {
	name  string
	qtype uint16
}

// resourceRecord is a single answer this package can emit: PTR, SRV,
// TXT, or A, per RFC 6763 §4 service announcement conventions.
type resourceRecord struct {
	name  string
	rtype uint16
	ttl   uint32
	data  []byte
}

func (r resourceRecord) encode() []byte {
	buf := encodeName(r.name)
	typeClass := make([]byte, 8)
	binary.BigEndian.PutUint16(typeClass[0:], r.rtype)
	binary.BigEndian.PutUint16(typeClass[2:], classIN|cacheFlushBit)
	binary.BigEndian.PutUint32(typeClass[4:], r.ttl)
	buf = append(buf, typeClass...)
	rdlen := make([]byte, 2)
	binary.BigEndian.PutUint16(rdlen, uint16(len(r.data)))
	buf = append(buf, rdlen...)
	return append(buf, r.data...)
}

// ptrData encodes PTR rdata: the target domain name.
func ptrData(target string) []byte { return encodeName(target) }

// srvData encodes SRV rdata per RFC 2782: priority, weight, port, target.
func srvData(priority, weight uint16, port uint16, target string) []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint16(buf[0:], priority)
	binary.BigEndian.PutUint16(buf[2:], weight)
	binary.BigEndian.PutUint16(buf[4:], port)
	return append(buf, encodeName(target)...)
}

// txtData encodes TXT rdata per RFC 6763 §6.3: one length-prefixed
// "key=value" string per entry, sorted for deterministic encoding.
func txtData(pairs map[string]string) []byte {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf []byte
	for _, k := range keys {
		entry := fmt.Sprintf("%s=%s", k, pairs[k])
		if len(entry) > 255 {
			entry = entry[:255]
		}
		buf = append(buf, byte(len(entry)))
		buf = append(buf, entry...)
	}
	if buf == nil {
		buf = []byte{0}
	}
	return buf
}

// aData encodes A rdata: a 4-byte IPv4 address.
func aData(ip net.IP) []byte {
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	return []byte(v4)
}

// buildAnnouncement assembles an unsolicited response packet carrying
// all of records as answers, per RFC 6762 §8.3/§10.1 (ttl=0 makes this
// a goodbye packet).
func buildAnnouncement(id uint16, records []resourceRecord) []byte {
	h := header{id: id, flags: flagResponse, anCount: uint16(len(records))}
	buf := h.encode()
	for _, r := range records {
		buf = append(buf, r.encode()...)
	}
	return buf
}

// parseQuery extracts the questions from an incoming mDNS query. Only
// the fields the responder cares about (name, qtype) are decoded; a
// malformed or truncated question ends the parse, and the questions read
// before it are returned without an error (possibly none, if the first
// question is the bad one), matching mDNS's tolerant-receiver posture
// (RFC 6762 §6).
func parseQuery(packet []byte) ([]question, error) {
	h, err := decodeHeader(packet)
	if err != nil {
		return nil, err
	}
	if h.flags&0x8000 != 0 {
		return nil, errors.New("announce: not a query")
	}

	offset := 12
	questions := make([]question, 0, h.qdCount)
	for i := 0; i < int(h.qdCount); i++ {
		name, next, err := decodeName(packet, offset)
		if err != nil {
			break
		}
		if next+4 > len(packet) {
			break
		}
		qtype := binary.BigEndian.Uint16(packet[next:])
		offset = next + 4
		questions = append(questions, question{name: name, qtype: qtype})
	}
	return questions, nil
}
