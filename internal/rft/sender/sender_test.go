package sender

import (
	"strings"
	"testing"
	"time"

	"github.com/aetherflow/quantumrft/internal/rft/chunker"
	"github.com/aetherflow/quantumrft/internal/rft/congestion"
	"github.com/aetherflow/quantumrft/internal/rft/fec"
	"github.com/aetherflow/quantumrft/internal/rft/wire"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool  { return true }

// fakeChannel simulates an ideal, lossless network: every written DATA
// or END segment is immediately, cumulatively acked.
type fakeChannel struct {
	written []wire.Segment
	pending []wire.Ack
	rwnd    uint32
}

func newFakeChannel(rwnd uint32) *fakeChannel {
	return &fakeChannel{rwnd: rwnd}
}

func (f *fakeChannel) WriteSegment(seg wire.Segment) error {
	f.written = append(f.written, seg)
	if seg.Role == wire.RoleData || seg.Role == wire.RoleEnd {
		f.pending = append(f.pending, wire.Ack{AckNum: seg.Seq, Rwnd: f.rwnd})
	}
	return nil
}

func (f *fakeChannel) ReadAck(deadline time.Time) (wire.Ack, error) {
	if len(f.pending) > 0 {
		ack := f.pending[0]
		f.pending = f.pending[1:]
		return ack, nil
	}
	return wire.Ack{}, timeoutErr{}
}

func TestRunTransfersAllChunksHappyPath(t *testing.T) {
	src, err := chunker.NewSource(strings.NewReader("ABCDEFGHIJKLMNOPQRST"), 10)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	ch := newFakeChannel(10)
	eng := New(ch, src, DefaultConfig(), nil)

	if err := eng.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var dataSegs int
	var sawEnd bool
	for _, seg := range ch.written {
		switch seg.Role {
		case wire.RoleData:
			dataSegs++
		case wire.RoleEnd:
			sawEnd = true
		}
	}
	if dataSegs != 2 {
		t.Errorf("sent %d data segments, want 2", dataSegs)
	}
	if !sawEnd {
		t.Error("expected an END segment to be sent")
	}
	if eng.lastByteAcked != eng.totalChunks {
		t.Errorf("lastByteAcked = %d, want %d", eng.lastByteAcked, eng.totalChunks)
	}
}

func TestEffectiveWindowUsesSmallerOfCwndAndRwnd(t *testing.T) {
	src, _ := chunker.NewSource(strings.NewReader("AAAAAAAAAA"), 10)
	eng := New(newFakeChannel(1), src, DefaultConfig(), nil)
	eng.cong = congestion.New(congestion.Reno)
	eng.peerRwnd = 100

	// cwnd starts at 1 segment, smaller than rwnd.
	if got := eng.effectiveWindow(); got != 1 {
		t.Errorf("effectiveWindow = %d, want 1 (cwnd-limited)", got)
	}

	eng.peerRwnd = 0
	// a zero rwnd is smaller than cwnd, so the window closes to 0
	if got := eng.effectiveWindow(); got != 0 {
		t.Errorf("effectiveWindow = %d, want 0 (rwnd-limited)", got)
	}
}

func TestApplyAckAdvancesLastByteAckedAndRetiresUnacked(t *testing.T) {
	src, _ := chunker.NewSource(strings.NewReader("AAAAAAAAAABBBBBBBBBB"), 10)
	eng := New(newFakeChannel(10), src, DefaultConfig(), nil)
	eng.unacked[1] = &unackedEntry{sentAt: time.Now()}
	eng.unacked[2] = &unackedEntry{sentAt: time.Now()}
	eng.lastByteSent = 2

	eng.applyAck(wire.Ack{AckNum: 1, Rwnd: 10})

	if eng.lastByteAcked != 1 {
		t.Fatalf("lastByteAcked = %d, want 1", eng.lastByteAcked)
	}
	if _, stillThere := eng.unacked[1]; stillThere {
		t.Error("seq 1 should have been retired from unacked")
	}
	if _, stillThere := eng.unacked[2]; !stillThere {
		t.Error("seq 2 should still be unacked")
	}
}

func TestApplyAckDuplicateTriggersFastRetransmitAfterThreeDups(t *testing.T) {
	src, _ := chunker.NewSource(strings.NewReader("AAAAAAAAAABBBBBBBBBB"), 10)
	ch := newFakeChannel(10)
	eng := New(ch, src, Config{Algorithm: congestion.Reno}, nil)
	eng.unacked[1] = &unackedEntry{sentAt: time.Now()}
	eng.lastByteSent = 1

	for i := 0; i < 2; i++ {
		eng.applyAck(wire.Ack{AckNum: 0, Rwnd: 10})
	}
	if eng.cong.InFastRecovery() {
		t.Fatal("should not yet be in fast recovery after two dup acks")
	}

	before := len(ch.written)
	eng.applyAck(wire.Ack{AckNum: 0, Rwnd: 10})
	if !eng.cong.InFastRecovery() {
		t.Error("expected fast recovery to engage on third duplicate ack")
	}
	if len(ch.written) != before+1 {
		t.Error("expected a retransmission to be written on the third duplicate ack")
	}
}

func TestFECDisabledSendsNoParityFrames(t *testing.T) {
	src, _ := chunker.NewSource(strings.NewReader("ABCDEFGHIJKLMNOPQRST"), 10)
	ch := newFakeChannel(10)
	eng := New(ch, src, DefaultConfig(), nil)

	if err := eng.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, seg := range ch.written {
		if seg.Role == wire.RoleParity {
			t.Fatal("FEC is off by default: no parity frame should ever be written")
		}
	}
}

func TestFECEnabledEmitsParityOnceGroupFills(t *testing.T) {
	src, _ := chunker.NewSource(strings.NewReader("AAAAAAAAAABBBBBBBBBBCCCCCCCCCC"), 10)
	ch := newFakeChannel(10)
	cfg := DefaultConfig()
	cfg.FEC = &fec.Config{DataShards: 3, ParityShards: 2}
	eng := New(ch, src, cfg, nil)

	if err := eng.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var parityCount int
	for _, seg := range ch.written {
		if seg.Role == wire.RoleParity {
			parityCount++
			if seg.Seq != 1 {
				t.Errorf("parity groupID = %d, want 1", seg.Seq)
			}
		}
	}
	if parityCount != 2 {
		t.Errorf("wrote %d parity frames, want 2 (the single 3-chunk group's parity shards)", parityCount)
	}
}

func TestPersistModeEnteredOnZeroRwnd(t *testing.T) {
	src, _ := chunker.NewSource(strings.NewReader("AAAAAAAAAA"), 10)
	eng := New(newFakeChannel(0), src, DefaultConfig(), nil)

	eng.applyAck(wire.Ack{AckNum: 0, Rwnd: 0})
	if !eng.persistMode {
		t.Error("expected persist mode to engage when peer advertises rwnd=0")
	}

	eng.applyAck(wire.Ack{AckNum: 0, Rwnd: 5})
	if eng.persistMode {
		t.Error("expected persist mode to clear once peer advertises a nonzero rwnd")
	}
}
