// Package receiver implements the receiver engine: the single
// cooperative loop that validates incoming segments, reorders and
// delivers them in-order, and drives the delayed-ACK and flow-control
// policies (spec §4.5–§4.7).
package receiver

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aetherflow/quantumrft/internal/rft/delayedack"
	"github.com/aetherflow/quantumrft/internal/rft/errs"
	"github.com/aetherflow/quantumrft/internal/rft/fec"
	"github.com/aetherflow/quantumrft/internal/rft/losssim"
	"github.com/aetherflow/quantumrft/internal/rft/reorder"
	"github.com/aetherflow/quantumrft/internal/rft/wire"
)

// RcvBuffer is the default total capacity, in bytes, the receiver will
// hold across delivery-buffer and out-of-order bytes combined.
const RcvBuffer = 262144

// readTick bounds how long one ReadSegment call blocks before the loop
// rechecks its delayed-ACK and drain timers.
const readTick = 50 * time.Millisecond

// DrainInterval is the cadence of the background application-drainer.
const DrainInterval = 100 * time.Millisecond

// DrainQuantum is the maximum number of bytes the drainer removes from
// the delivery buffer on each tick, converted to a whole chunk count
// (at least one, so the drainer always makes progress on a backlog).
const DrainQuantum = 8192

// Channel is the minimal view of the transport the receiver needs,
// satisfied by *stream.Conn.
type Channel interface {
	ReadSegment(deadline time.Time) (wire.Segment, error)
	WriteAck(ack wire.Ack) error
}

// Sink is the minimal view of a delivery destination the receiver
// needs, satisfied by *chunker.Sink.
type Sink interface {
	Write(payload []byte) error
}

// Config tunes a receiver Engine.
type Config struct {
	ChunkSize int
	RcvBuffer int

	// Loss, if non-nil, is consulted to simulate independent data/ACK
	// loss (spec §4.6). Nil disables loss simulation entirely.
	Loss *losssim.Simulator

	// FEC, if non-nil, decodes Reed-Solomon parity shards from a sender
	// with matching FEC enabled, recovering chunks the retransmit timer
	// would otherwise have to wait out. Nil (the default) disables it.
	FEC *fec.Config
}

func DefaultConfig(chunkSize int) Config {
	return Config{ChunkSize: chunkSize, RcvBuffer: RcvBuffer}
}

// Engine drives one inbound transfer to completion.
type Engine struct {
	cfg Config
	ch  Channel
	snk Sink
	log *zap.SugaredLogger

	reorderBuf *reorder.Buffer
	delayed    *delayedack.Scheduler

	expectedSeq uint32 // next seq the sink is waiting for
	endSeq      uint32 // seq of the END frame, 0 until observed

	// delivery buffer: chunks that have arrived in order but not yet
	// been drained to the sink, modelling application-read backpressure
	// (spec §3, §4.7). lastByteRcvd/lastByteRead are segment counters,
	// not byte offsets, per the data-model's own units.
	deliveryQueue [][]byte
	lastByteRcvd  uint32
	lastByteRead  uint32

	drainQuantumSegs int
	nextDrain        time.Time
	drainStalled     bool

	fecDec       *fec.Decoder
	fecGroupSize int
}

// New constructs a receiver engine delivering into snk.
func New(ch Channel, snk Sink, cfg Config, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.RcvBuffer <= 0 {
		cfg.RcvBuffer = RcvBuffer
	}
	drainQuantumSegs := 1
	if cfg.ChunkSize > 0 {
		if q := DrainQuantum / cfg.ChunkSize; q > drainQuantumSegs {
			drainQuantumSegs = q
		}
	}
	e := &Engine{
		cfg:              cfg,
		ch:               ch,
		snk:              snk,
		log:              log,
		reorderBuf:       reorder.New(cfg.ChunkSize),
		delayed:          delayedack.New(),
		expectedSeq:      1,
		drainQuantumSegs: drainQuantumSegs,
	}
	if cfg.FEC != nil {
		dec, err := fec.NewDecoder(cfg.FEC)
		if err != nil {
			log.Debugw("fec decoder disabled: invalid config", "err", err)
		} else {
			e.fecDec = dec
			e.fecGroupSize = cfg.FEC.DataShards
		}
	}
	return e
}

// SetDrainStalled pauses or resumes the application-drainer without
// touching the delayed-ACK or read timers. Used to model a slow or
// stalled application consumer, e.g. to drive rwnd to zero and exercise
// persist mode.
func (e *Engine) SetDrainStalled(stalled bool) {
	e.drainStalled = stalled
}

// Run drives the transfer to completion, returning nil once the END
// frame and every preceding chunk has been delivered, or a wrapped errs
// sentinel on failure.
func (e *Engine) Run() error {
	e.nextDrain = time.Now().Add(DrainInterval)
	for {
		seg, err := e.ch.ReadSegment(time.Now().Add(readTick))
		if err != nil {
			if isTimeout(err) {
				e.checkDelayedAckTimer()
				if err := e.checkDrainTimer(); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("%w: %v", errs.ErrChannelClosed, err)
		}

		done, err := e.handleSegment(seg)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		e.checkDelayedAckTimer()
		if err := e.checkDrainTimer(); err != nil {
			return err
		}
	}
}

func (e *Engine) checkDelayedAckTimer() {
	pending, deadline := e.delayed.Pending()
	if !pending || time.Now().Before(deadline) {
		return
	}
	if e.delayed.Fire() {
		e.sendAck(e.expectedSeq - 1)
	}
}

// checkDrainTimer runs one application-drain tick if DrainInterval has
// elapsed, modelling the background consumer of §4.7. A stalled
// drainer still advances nextDrain so that resuming does not trigger a
// burst of ticks' worth of catch-up in a single call.
func (e *Engine) checkDrainTimer() error {
	if time.Now().Before(e.nextDrain) {
		return nil
	}
	e.nextDrain = e.nextDrain.Add(DrainInterval)
	if e.drainStalled {
		return nil
	}
	return e.drainOnce(e.drainQuantumSegs)
}

// drainOnce writes up to max queued chunks to the sink, advancing
// lastByteRead by the number actually written.
func (e *Engine) drainOnce(max int) error {
	n := max
	if n > len(e.deliveryQueue) {
		n = len(e.deliveryQueue)
	}
	for i := 0; i < n; i++ {
		if err := e.snk.Write(e.deliveryQueue[i]); err != nil {
			return err
		}
		e.lastByteRead++
	}
	e.deliveryQueue = e.deliveryQueue[n:]
	return nil
}

// flushDelivery drains the entire remaining delivery queue to the sink,
// ignoring the per-tick quantum and any stall: once the transfer is
// complete there is nothing left to model backpressure against.
func (e *Engine) flushDelivery() error {
	return e.drainOnce(len(e.deliveryQueue))
}

func (e *Engine) handleSegment(seg wire.Segment) (done bool, err error) {
	switch seg.Role {
	case wire.RoleProbe:
		e.delayed.Cancel()
		e.sendAck(e.expectedSeq - 1)
		return false, nil
	case wire.RoleEnd:
		e.endSeq = seg.Seq
		if e.expectedSeq == e.endSeq {
			e.delayed.Cancel()
			if err := e.flushDelivery(); err != nil {
				return false, err
			}
			e.sendAck(e.endSeq)
			return true, nil
		}
		return false, nil
	case wire.RoleParity:
		return e.handleParity(seg)
	default:
		return e.handleData(seg)
	}
}

func (e *Engine) handleData(seg wire.Segment) (done bool, err error) {
	if e.cfg.Loss != nil && e.cfg.Loss.DropData() {
		e.log.Debugw("simulated data loss", "seq", seg.Seq)
		e.delayed.Cancel()
		e.sendAck(e.expectedSeq - 1)
		return false, nil
	}

	if e.fecDec != nil {
		// Bookkeeping only: this chunk is about to flow through admit()
		// below regardless of whether its group is now complete, so the
		// decoder's own completion return is of no use here — recovery
		// only matters when a *parity* frame completes a group with a
		// data chunk still missing (handleParity).
		groupID, shardIndex := e.fecGroupOf(seg.Seq)
		if _, derr := e.fecDec.AddShard(groupID, shardIndex, seg.Payload, false); derr != nil {
			e.log.Debugw("fec decode failed", "group", groupID, "err", derr)
		}
	}

	if seg.Seq < e.expectedSeq {
		// Already delivered; a duplicate caused by a retransmission the
		// ACK for which the sender never saw.
		e.delayed.Cancel()
		e.sendAck(e.expectedSeq - 1)
		return false, nil
	}

	// rwnd is recomputed fresh for every arrival, in-order or not: if the
	// combined delivery/reorder buffers are already full, even the next
	// in-order chunk is discarded rather than delivered. This is what
	// makes the window close to zero under a stalled consumer.
	if e.advertisedRwnd() == 0 {
		e.delayed.Cancel()
		e.sendAck(e.expectedSeq - 1)
		return false, nil
	}

	return e.admit(seg.Seq, seg.Payload)
}

// handleParity feeds one FEC parity shard to the decoder. Once a group
// completes it admits every data chunk in the group the receiver hasn't
// already delivered or buffered, recovering a gap without waiting on the
// sender's retransmit timer.
func (e *Engine) handleParity(seg wire.Segment) (done bool, err error) {
	if e.fecDec == nil {
		return false, nil
	}
	shardIndex, data, derr := wire.DecodeParityPayload(seg.Payload)
	if derr != nil {
		e.log.Debugw("malformed parity frame", "err", derr)
		return false, nil
	}

	groupID := uint64(seg.Seq)
	shards, derr := e.fecDec.AddShard(groupID, shardIndex, data, true)
	if derr != nil {
		e.log.Debugw("fec decode failed", "group", groupID, "err", derr)
		return false, nil
	}
	if shards == nil {
		return false, nil
	}

	base := (uint32(groupID) - 1) * uint32(e.fecGroupSize)
	for i, shard := range shards {
		recSeq := base + uint32(i) + 1
		if recSeq < e.expectedSeq || e.reorderBuf.Has(recSeq) {
			continue
		}
		if done, err := e.admit(recSeq, shard); err != nil || done {
			return done, err
		}
	}
	return false, nil
}

// fecGroupOf maps a data sequence number to its FEC group ID and
// position within that group, using the fixed group size the sender
// encodes with.
func (e *Engine) fecGroupOf(seq uint32) (groupID uint64, shardIndex int) {
	idx := seq - 1
	size := uint32(e.fecGroupSize)
	return uint64(idx/size) + 1, int(idx % size)
}

// admit processes one chunk known to have arrived for seq — whether off
// the wire in order, out of order, or reconstructed by FEC — delivering
// it immediately if in-order (draining any now-contiguous reorder
// buffer entries) or buffering it if seq is still ahead of expectedSeq.
func (e *Engine) admit(seq uint32, payload []byte) (done bool, err error) {
	switch {
	case seq == e.expectedSeq:
		e.enqueueDelivery(payload)
		e.expectedSeq++

		for _, p := range e.reorderBuf.Drain(e.expectedSeq) {
			e.enqueueDelivery(p)
			e.expectedSeq++
		}

		if e.endSeq != 0 && e.expectedSeq == e.endSeq {
			e.delayed.Cancel()
			if err := e.flushDelivery(); err != nil {
				return false, err
			}
			e.sendAck(e.endSeq)
			return true, nil
		}

		if e.delayed.OnInOrderDelivery(time.Now()) {
			e.sendAck(e.expectedSeq - 1)
		}
		return false, nil

	case seq > e.expectedSeq:
		available := e.cfg.RcvBuffer - e.deliveryUsedBytes()
		if !e.reorderBuf.Has(seq) {
			e.reorderBuf.Insert(seq, payload, available)
		}
		// Either admitted into the reorder buffer or discarded for lack
		// of room — in both cases the sender needs an immediate
		// duplicate ACK naming the real gap so it can fast-retransmit.
		e.delayed.Cancel()
		e.sendAck(e.expectedSeq - 1)
		return false, nil

	default: // seq < e.expectedSeq: already delivered.
		return false, nil
	}
}

// enqueueDelivery appends payload to the delivery buffer and advances
// lastByteRcvd, without writing to the sink: the sink write happens
// only on a drain tick (or the final flush), modelling the application
// reading at its own pace.
func (e *Engine) enqueueDelivery(payload []byte) {
	e.deliveryQueue = append(e.deliveryQueue, payload)
	e.lastByteRcvd++
}

// deliveryUsedBytes returns the delivery buffer's occupancy in bytes,
// per §4.7's `used = last_byte_rcvd - last_byte_read` (segments ×
// chunk_size, treated as bytes).
func (e *Engine) deliveryUsedBytes() int {
	return int(e.lastByteRcvd-e.lastByteRead) * e.cfg.ChunkSize
}

// advertisedRwnd converts remaining receive capacity, in bytes, into
// the segment count the wire ACK advertises (spec §4.7).
func (e *Engine) advertisedRwnd() uint32 {
	if e.cfg.ChunkSize <= 0 {
		return 0
	}
	available := e.cfg.RcvBuffer - e.deliveryUsedBytes() - e.reorderBuf.Bytes()
	if available <= 0 {
		return 0
	}
	return uint32(available / e.cfg.ChunkSize)
}

func (e *Engine) sendAck(ackNum uint32) {
	ack := wire.Ack{AckNum: ackNum, Rwnd: e.advertisedRwnd()}
	if e.cfg.Loss != nil && e.cfg.Loss.DropAck() {
		e.log.Debugw("simulated ack loss", "ack", ackNum)
		return
	}
	if err := e.ch.WriteAck(ack); err != nil {
		e.log.Debugw("write ack failed", "ack", ackNum, "err", err)
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}
