package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aetherflow/quantumrft/internal/rft/errs"
)

func TestEncodeDecodeDataSegment(t *testing.T) {
	seg := Segment{Seq: 7, Role: RoleData, Payload: []byte("hello")}

	encoded := EncodeSegment(seg)
	parsed, err := ReadSegment(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("ReadSegment failed: %v", err)
	}

	if parsed.Seq != seg.Seq {
		t.Errorf("Seq mismatch: got %d, want %d", parsed.Seq, seg.Seq)
	}
	if parsed.Role != RoleData {
		t.Errorf("Role mismatch: got %v, want RoleData", parsed.Role)
	}
	if !bytes.Equal(parsed.Payload, seg.Payload) {
		t.Errorf("Payload mismatch: got %q, want %q", parsed.Payload, seg.Payload)
	}
}

func TestEncodeDecodeProbe(t *testing.T) {
	seg := Segment{Seq: 9, Role: RoleProbe, Payload: []byte{0xAB}}

	parsed, err := ReadSegment(bytes.NewReader(EncodeSegment(seg)))
	if err != nil {
		t.Fatalf("ReadSegment failed: %v", err)
	}
	if parsed.Role != RoleProbe {
		t.Errorf("expected RoleProbe, got %v", parsed.Role)
	}
	if len(parsed.Payload) != 1 {
		t.Errorf("expected 1-byte probe payload, got %d", len(parsed.Payload))
	}
}

func TestEncodeDecodeEnd(t *testing.T) {
	seg := Segment{Seq: 11, Role: RoleEnd}

	parsed, err := ReadSegment(bytes.NewReader(EncodeSegment(seg)))
	if err != nil {
		t.Fatalf("ReadSegment failed: %v", err)
	}
	if parsed.Role != RoleEnd {
		t.Errorf("expected RoleEnd, got %v", parsed.Role)
	}
	if len(parsed.Payload) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(parsed.Payload))
	}
}

func TestEncodeDecodeParity(t *testing.T) {
	seg := NewParitySegment(3, 1, []byte("shard-bytes"))

	parsed, err := ReadSegment(bytes.NewReader(EncodeSegment(seg)))
	if err != nil {
		t.Fatalf("ReadSegment failed: %v", err)
	}
	if parsed.Role != RoleParity {
		t.Fatalf("expected RoleParity, got %v", parsed.Role)
	}
	if parsed.Seq != 3 {
		t.Errorf("groupID = %d, want 3", parsed.Seq)
	}

	shardIndex, data, err := DecodeParityPayload(parsed.Payload)
	if err != nil {
		t.Fatalf("DecodeParityPayload failed: %v", err)
	}
	if shardIndex != 1 {
		t.Errorf("shardIndex = %d, want 1", shardIndex)
	}
	if string(data) != "shard-bytes" {
		t.Errorf("data = %q, want %q", data, "shard-bytes")
	}
}

func TestDecodeParityPayloadTooShort(t *testing.T) {
	if _, _, err := DecodeParityPayload([]byte{0}); !errors.Is(err, errs.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestEncodeDecodeAck(t *testing.T) {
	ack := Ack{AckNum: 42, Rwnd: 131072}

	parsed, err := ReadAck(bytes.NewReader(EncodeAck(ack)))
	if err != nil {
		t.Fatalf("ReadAck failed: %v", err)
	}
	if parsed != ack {
		t.Errorf("Ack mismatch: got %+v, want %+v", parsed, ack)
	}
}

func TestReadSegmentTruncated(t *testing.T) {
	full := EncodeSegment(Segment{Seq: 1, Role: RoleData, Payload: []byte("abcdef")})

	_, err := ReadSegment(bytes.NewReader(full[:len(full)-2]))
	if !errors.Is(err, errs.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestReadSegmentTruncatedHeader(t *testing.T) {
	_, err := ReadSegment(bytes.NewReader([]byte{0, 0, 0, 1}))
	if !errors.Is(err, errs.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestReadSegmentBadProbeLength(t *testing.T) {
	buf := EncodeSegment(Segment{Seq: 1, Role: RoleData, Payload: []byte("xy")})
	buf[8] = 1 // mark as probe while length stays 2

	_, err := ReadSegment(bytes.NewReader(buf))
	if !errors.Is(err, errs.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestReadAckTruncated(t *testing.T) {
	_, err := ReadAck(bytes.NewReader([]byte{0, 0, 0, 1}))
	if !errors.Is(err, errs.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}
