package receiver

import (
	"bytes"
	"testing"
	"time"

	"github.com/aetherflow/quantumrft/internal/rft/chunker"
	"github.com/aetherflow/quantumrft/internal/rft/fec"
	"github.com/aetherflow/quantumrft/internal/rft/losssim"
	"github.com/aetherflow/quantumrft/internal/rft/wire"
)

type timeoutErr struct{}

func (timeoutErr) Error() string { return "i/o timeout" }
func (timeoutErr) Timeout() bool  { return true }

type fakeChannel struct {
	queue []wire.Segment
	acks  []wire.Ack
}

func (f *fakeChannel) ReadSegment(deadline time.Time) (wire.Segment, error) {
	if len(f.queue) == 0 {
		return wire.Segment{}, timeoutErr{}
	}
	seg := f.queue[0]
	f.queue = f.queue[1:]
	return seg, nil
}

func (f *fakeChannel) WriteAck(ack wire.Ack) error {
	f.acks = append(f.acks, ack)
	return nil
}

func (f *fakeChannel) push(segs ...wire.Segment) {
	f.queue = append(f.queue, segs...)
}

func dataSeg(seq uint32, payload string) wire.Segment {
	return wire.Segment{Seq: seq, Role: wire.RoleData, Payload: []byte(payload)}
}

func endSeg(seq uint32) wire.Segment {
	return wire.Segment{Seq: seq, Role: wire.RoleEnd}
}

func TestInOrderDeliveryReachesSinkInOrder(t *testing.T) {
	var buf bytes.Buffer
	sink := chunker.NewSink(&buf)
	ch := &fakeChannel{}
	ch.push(dataSeg(1, "ABCDEFGHIJ"), dataSeg(2, "KLMNOPQRST"), endSeg(3))

	eng := New(ch, sink, DefaultConfig(10), nil)
	if err := eng.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if buf.String() != "ABCDEFGHIJKLMNOPQRST" {
		t.Errorf("delivered = %q", buf.String())
	}
	if eng.expectedSeq != 3 {
		t.Errorf("expectedSeq = %d, want 3", eng.expectedSeq)
	}

	if len(ch.acks) == 0 {
		t.Fatal("expected at least one ack")
	}
	last := ch.acks[len(ch.acks)-1]
	if last.AckNum != 3 {
		t.Errorf("final ack = %d, want 3", last.AckNum)
	}
}

func TestOutOfOrderBuffersAndDrainsOnGapFill(t *testing.T) {
	var buf bytes.Buffer
	sink := chunker.NewSink(&buf)
	ch := &fakeChannel{}
	ch.push(dataSeg(2, "KLMNOPQRST"))
	ch.push(dataSeg(1, "ABCDEFGHIJ"))
	ch.push(endSeg(3))

	eng := New(ch, sink, DefaultConfig(10), nil)
	if err := eng.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if buf.String() != "ABCDEFGHIJKLMNOPQRST" {
		t.Errorf("delivered = %q, want in-order reassembly despite reordered arrival", buf.String())
	}

	// The out-of-order arrival of seq 2 must have produced an immediate
	// duplicate ack naming the real gap (ack 0) before seq 1 arrived.
	if len(ch.acks) < 2 {
		t.Fatalf("expected at least 2 acks, got %d", len(ch.acks))
	}
	if ch.acks[0].AckNum != 0 {
		t.Errorf("first ack = %d, want 0 (duplicate naming the gap)", ch.acks[0].AckNum)
	}
}

func TestDuplicateSegmentReAcksWithoutRedelivery(t *testing.T) {
	var buf bytes.Buffer
	sink := chunker.NewSink(&buf)
	ch := &fakeChannel{}
	ch.push(dataSeg(1, "ABCDEFGHIJ"))
	ch.push(dataSeg(1, "ABCDEFGHIJ")) // duplicate retransmission
	ch.push(dataSeg(2, "KLMNOPQRST"))
	ch.push(endSeg(3))

	eng := New(ch, sink, DefaultConfig(10), nil)
	if err := eng.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if buf.String() != "ABCDEFGHIJKLMNOPQRST" {
		t.Errorf("delivered = %q, duplicate must not be redelivered", buf.String())
	}
}

func TestLossSimDropsDataAndStillAcksCurrentState(t *testing.T) {
	var buf bytes.Buffer
	sink := chunker.NewSink(&buf)
	ch := &fakeChannel{}
	ch.push(dataSeg(1, "ABCDEFGHIJ"))

	cfg := DefaultConfig(10)
	cfg.Loss = losssim.New(1 /* always drop data */, 0, 1)
	eng := New(ch, sink, cfg, nil)

	done, err := eng.handleSegment(ch.queue[0])
	ch.queue = ch.queue[1:]
	if err != nil {
		t.Fatalf("handleSegment failed: %v", err)
	}
	if done {
		t.Fatal("should not be done")
	}
	if buf.Len() != 0 {
		t.Error("dropped segment must not be delivered to the sink")
	}
	if len(ch.acks) != 1 {
		t.Fatalf("expected exactly one ack for the dropped segment, got %d", len(ch.acks))
	}
	if ch.acks[0].AckNum != 0 {
		t.Errorf("ack = %d, want 0 (nothing delivered yet)", ch.acks[0].AckNum)
	}
}

func TestZeroWindowPersistAndResume(t *testing.T) {
	var buf bytes.Buffer
	sink := chunker.NewSink(&buf)
	ch := &fakeChannel{}

	// Two chunks exactly fill a 20-byte RCV_BUFFER.
	cfg := Config{ChunkSize: 10, RcvBuffer: 20}
	eng := New(ch, sink, cfg, nil)
	eng.SetDrainStalled(true)

	if _, err := eng.handleSegment(dataSeg(1, "0123456789")); err != nil {
		t.Fatalf("seg1: %v", err)
	}
	if _, err := eng.handleSegment(dataSeg(2, "ABCDEFGHIJ")); err != nil {
		t.Fatalf("seg2: %v", err)
	}
	if rwnd := eng.advertisedRwnd(); rwnd != 0 {
		t.Fatalf("advertisedRwnd = %d, want 0 once the delivery buffer is full", rwnd)
	}

	// A stalled drainer and a full delivery buffer must discard even the
	// next in-order chunk, forcing the sender into persist mode.
	ch.acks = nil
	if _, err := eng.handleSegment(dataSeg(3, "KLMNOPQRST")); err != nil {
		t.Fatalf("seg3: %v", err)
	}
	if eng.expectedSeq != 3 {
		t.Errorf("expectedSeq = %d, want 3 (seg3 discarded, not delivered)", eng.expectedSeq)
	}
	if buf.Len() != 0 {
		t.Error("nothing should have reached the sink yet: drainer is stalled")
	}
	if len(ch.acks) != 1 || ch.acks[0].AckNum != 2 || ch.acks[0].Rwnd != 0 {
		t.Fatalf("expected a single duplicate ack(2, rwnd=0), got %+v", ch.acks)
	}

	// Resume the drainer: one tick frees a chunk's worth of capacity and
	// the retried seg3 is now accepted.
	eng.SetDrainStalled(false)
	if err := eng.drainOnce(1); err != nil {
		t.Fatalf("drainOnce: %v", err)
	}
	if buf.String() != "0123456789" {
		t.Errorf("drained = %q, want first chunk", buf.String())
	}

	ch.acks = nil
	if _, err := eng.handleSegment(dataSeg(3, "KLMNOPQRST")); err != nil {
		t.Fatalf("seg3 retry: %v", err)
	}
	if eng.expectedSeq != 4 {
		t.Errorf("expectedSeq = %d, want 4: rwnd recovered, seg3 should now be delivered", eng.expectedSeq)
	}
	if rwnd := eng.advertisedRwnd(); rwnd != 0 {
		t.Errorf("advertisedRwnd = %d, want 0: chunks 2 and 3 fill the 20-byte buffer again", rwnd)
	}

	done, err := eng.handleSegment(endSeg(4))
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !done {
		t.Fatal("expected completion on END")
	}
	if buf.String() != "0123456789ABCDEFGHIJKLMNOPQRST" {
		t.Errorf("final delivered = %q", buf.String())
	}
}

func TestFECRecoversMissingChunkFromParity(t *testing.T) {
	var buf bytes.Buffer
	sink := chunker.NewSink(&buf)
	ch := &fakeChannel{}

	fecCfg := &fec.Config{DataShards: 3, ParityShards: 2}
	cfg := DefaultConfig(10)
	cfg.FEC = fecCfg
	eng := New(ch, sink, cfg, nil)

	chunks := []string{"0123456789", "ABCDEFGHIJ", "KLMNOPQRST"}

	// Compute the parity shards an honest sender's FEC encoder would have
	// produced for this group, independently of the engine under test.
	enc, err := fec.NewEncoder(fecCfg)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	var groupID uint64
	var parity [][]byte
	for _, c := range chunks {
		gid, p, err := enc.AddChunk([]byte(c))
		if err != nil {
			t.Fatalf("AddChunk: %v", err)
		}
		if p != nil {
			groupID, parity = gid, p
		}
	}
	if parity == nil {
		t.Fatal("expected the 3-chunk group to complete")
	}

	// Chunk 2 ("ABCDEFGHIJ") never arrives; chunk 3 arrives ahead of it.
	if _, err := eng.handleSegment(dataSeg(1, chunks[0])); err != nil {
		t.Fatalf("seg1: %v", err)
	}
	if _, err := eng.handleSegment(dataSeg(3, chunks[2])); err != nil {
		t.Fatalf("seg3: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("nothing should be delivered yet: seq 2 is missing")
	}

	for i, shard := range parity {
		if _, err := eng.handleSegment(wire.NewParitySegment(groupID, i, shard)); err != nil {
			t.Fatalf("parity %d: %v", i, err)
		}
	}

	if eng.expectedSeq != 4 {
		t.Fatalf("expectedSeq = %d, want 4: FEC should have recovered seq 2 and drained the buffered seq 3", eng.expectedSeq)
	}

	if err := eng.flushDelivery(); err != nil {
		t.Fatalf("flushDelivery: %v", err)
	}
	if buf.String() != "0123456789ABCDEFGHIJKLMNOPQRST" {
		t.Errorf("delivered = %q", buf.String())
	}
}

func TestDrainTimerStallKeepsQueueUntilResumed(t *testing.T) {
	var buf bytes.Buffer
	sink := chunker.NewSink(&buf)
	ch := &fakeChannel{}

	cfg := Config{ChunkSize: 10, RcvBuffer: 1000}
	eng := New(ch, sink, cfg, nil)
	eng.drainQuantumSegs = 1
	eng.nextDrain = time.Now().Add(-time.Millisecond) // already due

	eng.SetDrainStalled(true)
	if _, err := eng.handleSegment(dataSeg(1, "0123456789")); err != nil {
		t.Fatalf("seg1: %v", err)
	}
	if err := eng.checkDrainTimer(); err != nil {
		t.Fatalf("checkDrainTimer: %v", err)
	}
	if buf.Len() != 0 {
		t.Error("a stalled drainer must not write to the sink")
	}

	eng.SetDrainStalled(false)
	eng.nextDrain = time.Now().Add(-time.Millisecond)
	if err := eng.checkDrainTimer(); err != nil {
		t.Fatalf("checkDrainTimer: %v", err)
	}
	if buf.String() != "0123456789" {
		t.Errorf("delivered = %q, want the drainer to flush the queued chunk once resumed", buf.String())
	}
}
