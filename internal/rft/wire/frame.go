// Package wire implements the Quantum RFT frame codec: the on-the-wire
// encoding of DATA, PROBE, END and ACK frames exchanged between the
// sender and receiver engines over a byte-ordered stream.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/aetherflow/quantumrft/internal/rft/errs"
)

// Role tags a segment-bearing frame.
type Role uint8

const (
	RoleData Role = iota
	RoleProbe
	RoleEnd
	// RoleParity tags an optional forward-error-correction shard. It is
	// never emitted unless FEC is explicitly enabled, so the wire
	// grammar a disabled transfer produces is unchanged.
	RoleParity
)

// dataHeaderSize is the fixed portion of a data-bearing frame:
// seq(4) + length(4) + is_probe(1).
const dataHeaderSize = 9

// ackSize is the fixed size of an ACK frame: ack(4) + rwnd(4).
const ackSize = 8

// Segment is a DATA, PROBE or END frame as read off the wire.
type Segment struct {
	Seq     uint32
	Role    Role
	Payload []byte
}

// Ack is a cumulative acknowledgement frame.
type Ack struct {
	AckNum uint32
	Rwnd   uint32
}

// EncodeSegment serializes a segment per spec: seq (i32 BE) | length (i32
// BE) | is_probe (u8) | payload. The tag byte carries 0/1 exactly as
// before for DATA/END and PROBE; RoleParity uses the otherwise-unused
// value 2, so a transfer that never enables FEC produces byte-identical
// output to before RoleParity existed.
func EncodeSegment(seg Segment) []byte {
	buf := make([]byte, dataHeaderSize+len(seg.Payload))
	binary.BigEndian.PutUint32(buf[0:4], seg.Seq)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(seg.Payload)))
	switch seg.Role {
	case RoleProbe:
		buf[8] = 1
	case RoleParity:
		buf[8] = 2
	default:
		buf[8] = 0
	}
	copy(buf[dataHeaderSize:], seg.Payload)
	return buf
}

// NewParitySegment packs a FEC parity shard into a frame: Seq carries
// the owning group ID and Payload is a 2-byte big-endian shard index
// followed by the shard bytes.
func NewParitySegment(groupID uint64, shardIndex int, data []byte) Segment {
	payload := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(payload[0:2], uint16(shardIndex))
	copy(payload[2:], data)
	return Segment{Seq: uint32(groupID), Role: RoleParity, Payload: payload}
}

// DecodeParityPayload unpacks a RoleParity segment's payload, the
// inverse of NewParitySegment.
func DecodeParityPayload(payload []byte) (shardIndex int, data []byte, err error) {
	if len(payload) < 2 {
		return 0, nil, fmt.Errorf("%w: parity payload too short: %d bytes", errs.ErrMalformedFrame, len(payload))
	}
	return int(binary.BigEndian.Uint16(payload[0:2])), payload[2:], nil
}

// EncodeAck serializes an ACK frame: ack (i32 BE) | rwnd (i32 BE).
func EncodeAck(ack Ack) []byte {
	buf := make([]byte, ackSize)
	binary.BigEndian.PutUint32(buf[0:4], ack.AckNum)
	binary.BigEndian.PutUint32(buf[4:8], ack.Rwnd)
	return buf
}

// ReadSegment reads and decodes one DATA/PROBE/END frame from r. The
// caller is responsible for framing (i.e. knowing a segment, not an ACK,
// is next) — Quantum RFT multiplexes segments and ACKs over independent
// directions of a full-duplex stream, so no frame-type tag is needed on
// the wire itself.
func ReadSegment(r io.Reader) (Segment, error) {
	hdr := make([]byte, dataHeaderSize)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return Segment{}, fmt.Errorf("%w: reading segment header: %v", errs.ErrMalformedFrame, err)
	}

	seq := binary.BigEndian.Uint32(hdr[0:4])
	length := binary.BigEndian.Uint32(hdr[4:8])
	tag := hdr[8]

	if tag == 1 && length != 1 {
		return Segment{}, fmt.Errorf("%w: probe must carry exactly one byte, got %d", errs.ErrMalformedFrame, length)
	}

	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return Segment{}, fmt.Errorf("%w: reading segment payload: %v", errs.ErrMalformedFrame, err)
		}
	}

	// The wire grammar has no explicit END tag: an END is a zero-length,
	// tag-0 frame. The chunker never emits zero-length DATA segments, so
	// this is unambiguous in practice.
	role := RoleData
	switch {
	case tag == 1:
		role = RoleProbe
	case tag == 2:
		role = RoleParity
	case length == 0:
		role = RoleEnd
	}

	return Segment{Seq: seq, Role: role, Payload: payload}, nil
}

// ReadAck reads and decodes one ACK frame from r.
func ReadAck(r io.Reader) (Ack, error) {
	buf := make([]byte, ackSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Ack{}, fmt.Errorf("%w: reading ack: %v", errs.ErrMalformedFrame, err)
	}
	return Ack{
		AckNum: binary.BigEndian.Uint32(buf[0:4]),
		Rwnd:   binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}
