// Package sender implements the sender engine: the single cooperative
// loop that drives chunk transmission, congestion control, RTO-based
// retransmission and persist-mode probing for one transfer (spec §4.8).
package sender

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aetherflow/quantumrft/internal/rft/congestion"
	"github.com/aetherflow/quantumrft/internal/rft/errs"
	"github.com/aetherflow/quantumrft/internal/rft/fec"
	"github.com/aetherflow/quantumrft/internal/rft/rtt"
	"github.com/aetherflow/quantumrft/internal/rft/wire"
)

// tickInterval paces one iteration of the main loop (spec §5: the
// sender polls at a coarse interval rather than busy-spinning).
const tickInterval = 5 * time.Millisecond

// persistInterval is the minimum gap between successive zero-window
// probes while persist_mode is active.
const persistInterval = 1000 * time.Millisecond

// finalAckTimeout bounds how long the sender waits for an ACK after each
// transmission of its END segment.
const finalAckTimeout = 5 * time.Second

// finalAckRetries is how many times in total the END segment is sent
// before the transfer is declared aborted.
const finalAckRetries = 5

// Chunker is the minimal view of a chunk source the sender needs.
type Chunker interface {
	TotalChunks() int
	Chunk(seq uint32) []byte
}

// Channel is the minimal view of the transport the sender needs,
// satisfied by *stream.Conn.
type Channel interface {
	WriteSegment(seg wire.Segment) error
	ReadAck(deadline time.Time) (wire.Ack, error)
}

// Config tunes a sender Engine.
type Config struct {
	Algorithm congestion.Algorithm
	// ChunkSize is only consulted for the BBR algorithm, which models
	// its window in bytes and needs the fixed chunk size to report it
	// back in segments.
	ChunkSize uint32

	// FEC, if non-nil, groups outgoing chunks into Reed-Solomon groups
	// and emits parity shards alongside the data stream. Nil (the
	// default) disables it entirely.
	FEC *fec.Config
}

func DefaultConfig() Config {
	return Config{Algorithm: congestion.Reno}
}

type unackedEntry struct {
	payload       []byte
	sentAt        time.Time
	retransmitted bool
}

// Engine drives one outbound transfer to completion.
type Engine struct {
	cfg Config
	ch  Channel
	src Chunker
	log *zap.SugaredLogger

	cong *congestion.Controller
	est  *rtt.Estimator

	fecEnc *fec.Encoder

	nextSeq       uint32
	lastByteSent  uint32
	lastByteAcked uint32
	totalChunks   uint32

	unacked map[uint32]*unackedEntry

	peerRwnd    uint32
	persistMode bool
	lastProbeAt time.Time
}

// New constructs a sender engine for transferring src over ch.
func New(ch Channel, src Chunker, cfg Config, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	e := &Engine{
		cfg:         cfg,
		ch:          ch,
		src:         src,
		log:         log,
		cong:        congestion.NewWithSegmentSize(cfg.Algorithm, cfg.ChunkSize),
		est:         rtt.New(),
		nextSeq:     1,
		totalChunks: uint32(src.TotalChunks()),
		unacked:     make(map[uint32]*unackedEntry),
		peerRwnd:    1,
	}
	if cfg.FEC != nil {
		enc, err := fec.NewEncoder(cfg.FEC)
		if err != nil {
			log.Debugw("fec encoder disabled: invalid config", "err", err)
		} else {
			e.fecEnc = enc
		}
	}
	return e
}

// Run drives the transfer to completion, returning nil on success or an
// error wrapping errs.ErrTransferAborted on failure, including a broken
// channel.
func (e *Engine) Run() error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for e.lastByteAcked < e.totalChunks {
		if err := e.ingestAcks(); err != nil {
			return err
		}
		e.transmit()
		e.maybeProbe()
		if err := e.checkTimeout(); err != nil {
			return err
		}
		<-ticker.C
	}

	return e.sendEndAndWaitFinalAck()
}

// effectiveWindow is the number of segments, in flight or not, that the
// sender may currently have outstanding — the smaller of the
// congestion window and the peer's advertised receive window.
func (e *Engine) effectiveWindow() uint32 {
	cwnd := uint32(e.cong.CwndSegments())
	if cwnd == 0 {
		cwnd = 1
	}
	if e.peerRwnd < cwnd {
		return e.peerRwnd
	}
	return cwnd
}

func (e *Engine) transmit() {
	if e.persistMode {
		return
	}
	for e.nextSeq <= e.totalChunks && (e.lastByteSent-e.lastByteAcked) < e.effectiveWindow() {
		e.sendData(e.nextSeq, false)
		e.lastByteSent = e.nextSeq
		e.nextSeq++
	}
}

func (e *Engine) sendData(seq uint32, retransmit bool) {
	payload := e.src.Chunk(seq)
	seg := wire.Segment{Seq: seq, Role: wire.RoleData, Payload: payload}
	if err := e.ch.WriteSegment(seg); err != nil {
		e.log.Debugw("send data failed", "seq", seq, "err", err)
		return
	}
	e.unacked[seq] = &unackedEntry{payload: payload, sentAt: time.Now(), retransmitted: retransmit}

	// Retransmits never re-enter the FEC group: the chunk already holds
	// its original position in an earlier (or the current) group.
	if !retransmit && e.fecEnc != nil {
		e.sendParityIfGroupComplete(payload)
	}
}

// sendParityIfGroupComplete feeds payload into the FEC encoder and, once
// enough chunks have accumulated to fill a group, transmits its parity
// shards as RoleParity frames.
func (e *Engine) sendParityIfGroupComplete(payload []byte) {
	groupID, shards, err := e.fecEnc.AddChunk(payload)
	if err != nil {
		e.log.Debugw("fec encode failed", "err", err)
		return
	}
	if groupID == 0 {
		return
	}
	for i, shard := range shards {
		seg := wire.NewParitySegment(groupID, i, shard)
		if err := e.ch.WriteSegment(seg); err != nil {
			e.log.Debugw("send parity failed", "group", groupID, "err", err)
			return
		}
	}
}

func (e *Engine) maybeProbe() {
	if !e.persistMode {
		return
	}
	if time.Since(e.lastProbeAt) < persistInterval {
		return
	}
	seg := wire.Segment{Seq: e.nextSeq, Role: wire.RoleProbe, Payload: []byte{0}}
	if err := e.ch.WriteSegment(seg); err != nil {
		e.log.Debugw("send probe failed", "err", err)
		return
	}
	e.lastProbeAt = time.Now()
}

func (e *Engine) checkTimeout() error {
	if len(e.unacked) == 0 {
		return nil
	}

	var oldestSeq uint32
	var oldest *unackedEntry
	for seq, ent := range e.unacked {
		if oldest == nil || ent.sentAt.Before(oldest.sentAt) {
			oldestSeq, oldest = seq, ent
		}
	}

	if time.Since(oldest.sentAt) < e.est.RTO() {
		return nil
	}

	e.log.Debugw("retransmit on timeout", "seq", oldestSeq, "rto", e.est.RTO())
	e.cong.OnTimeout()
	e.sendData(oldestSeq, true)
	return nil
}

// ingestAcks drains every ACK currently available on the channel
// without blocking the main loop for more than a tick.
func (e *Engine) ingestAcks() error {
	for {
		ack, err := e.ch.ReadAck(time.Now().Add(1 * time.Millisecond))
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return fmt.Errorf("%w: %v", errs.ErrTransferAborted, err)
		}
		e.applyAck(ack)
	}
}

func (e *Engine) applyAck(ack wire.Ack) {
	e.peerRwnd = ack.Rwnd
	e.persistMode = ack.Rwnd == 0 && e.lastByteAcked < e.totalChunks

	switch {
	case ack.AckNum > e.lastByteAcked:
		newlyAcked := ack.AckNum - e.lastByteAcked
		e.sampleRTTForAcked(ack.AckNum)
		e.retireAcked(ack.AckNum)
		e.lastByteAcked = ack.AckNum
		e.cong.OnCumulativeAck(ack.AckNum, newlyAcked)
	case ack.AckNum == e.lastByteAcked:
		if e.cong.OnDuplicateAck(e.lastByteAcked) {
			e.log.Debugw("fast retransmit", "seq", e.lastByteAcked+1)
			if ent, ok := e.unacked[e.lastByteAcked+1]; ok {
				_ = ent
				e.sendData(e.lastByteAcked+1, true)
			}
		}
	}
}

// sampleRTTForAcked feeds the RTT estimator a sample for each newly-acked
// segment, honoring Karn's rule: segments that were retransmitted never
// contribute a sample.
func (e *Engine) sampleRTTForAcked(ackNum uint32) {
	for seq := e.lastByteAcked + 1; seq <= ackNum; seq++ {
		ent, ok := e.unacked[seq]
		if !ok {
			continue
		}
		if !ent.retransmitted {
			sample := time.Since(ent.sentAt)
			e.est.Sample(sample)
			e.cong.OnRTTSample(uint32(len(e.src.Chunk(seq))), sample, time.Now())
		}
	}
}

func (e *Engine) retireAcked(ackNum uint32) {
	for seq := range e.unacked {
		if seq <= ackNum {
			delete(e.unacked, seq)
		}
	}
}

func (e *Engine) sendEndAndWaitFinalAck() error {
	if e.fecEnc != nil {
		e.fecEnc.Reset()
	}
	endSeq := e.totalChunks + 1
	for attempt := 0; attempt < finalAckRetries; attempt++ {
		seg := wire.Segment{Seq: endSeq, Role: wire.RoleEnd}
		if err := e.ch.WriteSegment(seg); err != nil {
			return fmt.Errorf("%w: sending end: %v", errs.ErrTransferAborted, err)
		}

		deadline := time.Now().Add(finalAckTimeout)
		for time.Now().Before(deadline) {
			ack, err := e.ch.ReadAck(deadline)
			if err != nil {
				if isTimeout(err) {
					break
				}
				return fmt.Errorf("%w: %v", errs.ErrTransferAborted, err)
			}
			if ack.AckNum >= endSeq {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: no final ack after %d attempts", errs.ErrTransferAborted, finalAckRetries)
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}
