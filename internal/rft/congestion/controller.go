// Package congestion implements the Tahoe and Reno congestion-control
// state machines: slow start, congestion avoidance, fast retransmit and
// Reno fast recovery (spec §4.9).
package congestion

import (
	"math"
	"time"
)

// Algorithm selects which congestion-control regime a Controller runs.
type Algorithm int

const (
	Tahoe Algorithm = iota
	Reno
	BBR
)

func (a Algorithm) String() string {
	switch a {
	case Reno:
		return "reno"
	case BBR:
		return "bbr"
	default:
		return "tahoe"
	}
}

// MaxWindow is the upper bound on cwnd, in segments.
const MaxWindow = 128

// dupAckThreshold is the number of consecutive duplicate ACKs that
// triggers a fast retransmit.
const dupAckThreshold = 3

// Controller holds the sender-side congestion-control state for one
// connection. It is not safe for concurrent use: the sender engine that
// owns it runs as a single cooperative loop (spec §5), so no locking is
// needed.
type Controller struct {
	algorithm Algorithm

	cwnd     float64
	ssthresh float64

	dupAckCount    int
	inFastRecovery bool
	recoveryPoint  uint32

	// segmentSize converts BBR's byte-denominated window into segments;
	// unused by Tahoe and Reno, which already count in segments.
	segmentSize uint32
	bbr         *bbrState
}

// New returns a controller starting in slow start with cwnd=1. ssthresh
// starts at MaxWindow: classic TCP implementations begin with a large
// ssthresh so the first loss event is what establishes a real threshold.
//
// For BBR, New assumes 5120-byte segments: BBR models its window in bytes
// and CwndSegments converts back with that size. NewWithSegmentSize sets
// a different chunk size.
func New(algorithm Algorithm) *Controller {
	return NewWithSegmentSize(algorithm, 0)
}

// NewWithSegmentSize is New, additionally specifying the chunk size BBR
// needs to report its window in segments. Ignored by Tahoe and Reno.
func NewWithSegmentSize(algorithm Algorithm, segmentSize uint32) *Controller {
	c := &Controller{
		algorithm:   algorithm,
		cwnd:        1,
		ssthresh:    MaxWindow,
		segmentSize: segmentSize,
	}
	if algorithm == BBR {
		if c.segmentSize == 0 {
			c.segmentSize = 5120
		}
		c.bbr = newBBRState(time.Time{})
	}
	return c
}

// OnCumulativeAck applies the "new cumulative ACK" branch of §4.9: it
// resets the duplicate-ACK counter, handles fast-recovery exit or
// partial-ack inflation, and otherwise grows cwnd per slow start or
// congestion avoidance. ack is the new cumulative ACK value and
// newlyAcked is the number of segments it covers that were not
// previously acked.
func (c *Controller) OnCumulativeAck(ack uint32, newlyAcked uint32) {
	c.dupAckCount = 0

	if c.algorithm == BBR {
		// BBR's window comes from OnRTTSample; a cumulative ACK without
		// an RTT sample (e.g. a duplicate-free but unsampled ACK) still
		// clears the recovery state above but otherwise leaves cwnd to
		// the bandwidth/RTT model.
		c.inFastRecovery = false
		return
	}

	switch {
	case c.inFastRecovery && ack >= c.recoveryPoint:
		c.inFastRecovery = false
		c.cwnd = c.ssthresh
	case c.inFastRecovery:
		// Reno only: partial-ACK window inflation during recovery.
		if c.algorithm == Reno {
			c.cwnd += float64(newlyAcked)
		}
	case c.cwnd < c.ssthresh:
		// Slow start.
		c.cwnd += float64(newlyAcked)
	default:
		// Congestion avoidance.
		c.cwnd += math.Max(1, float64(newlyAcked*newlyAcked)/c.cwnd)
	}

	if c.cwnd > MaxWindow {
		c.cwnd = MaxWindow
	}
}

// OnDuplicateAck applies the "duplicate ACK" branch of §4.9 for an ACK
// equal to the current last_byte_acked. lastByteAcked is that value,
// used as the Reno recovery point. Returns true exactly when this call
// triggers a fast retransmit (the third consecutive duplicate).
func (c *Controller) OnDuplicateAck(lastByteAcked uint32) (fastRetransmit bool) {
	c.dupAckCount++

	if c.algorithm == BBR {
		// BBR treats loss as a delivery-rate signal, not a window
		// trigger; a fast retransmit still fires so the lost segment
		// gets resent, but cwnd is untouched.
		if c.dupAckCount == dupAckThreshold {
			c.dupAckCount = 0
			return true
		}
		return false
	}

	if c.dupAckCount == dupAckThreshold {
		c.ssthresh = math.Max(2, c.cwnd/2)
		if c.algorithm == Tahoe {
			c.cwnd = 1
			c.inFastRecovery = false
		} else {
			c.cwnd = c.ssthresh + 3
			c.recoveryPoint = lastByteAcked
			c.inFastRecovery = true
		}
		c.dupAckCount = 0
		return true
	}

	if c.inFastRecovery && c.algorithm == Reno {
		c.cwnd++
	}
	return false
}

// OnTimeout applies the timeout congestion response, identical for both
// variants: halve ssthresh, collapse cwnd to 1, and leave fast recovery.
func (c *Controller) OnTimeout() {
	if c.algorithm == BBR {
		// BBR does not collapse its window on a bare timeout; it relies
		// on its own bandwidth/RTT model instead.
		c.inFastRecovery = false
		return
	}
	c.ssthresh = math.Max(2, c.cwnd/2)
	c.cwnd = 1
	c.inFastRecovery = false
}

// OnRTTSample feeds a fresh (ackedBytes, rtt) delivery sample into the
// BBR bandwidth/RTT model. No-op for Tahoe and Reno, which derive cwnd
// purely from ACK/loss events.
func (c *Controller) OnRTTSample(ackedBytes uint32, rtt time.Duration, now time.Time) {
	if c.algorithm != BBR || c.bbr == nil {
		return
	}
	c.bbr.onAck(ackedBytes, rtt, now)
	c.cwnd = c.bbr.cwndBytes(float64(c.segmentSize)) / float64(c.segmentSize)
	if c.cwnd > MaxWindow {
		c.cwnd = MaxWindow
	}
}

// PacingRate returns BBR's current pacing rate in bytes/sec, or 0 for
// Tahoe and Reno (which do not pace).
func (c *Controller) PacingRate() float64 {
	if c.algorithm != BBR || c.bbr == nil {
		return 0
	}
	return c.bbr.pacingRate()
}

// Cwnd returns the current congestion window, in segments (fractional
// during congestion avoidance; callers needing a segment count should
// use CwndSegments).
func (c *Controller) Cwnd() float64 { return c.cwnd }

// CwndSegments returns the congestion window truncated to a whole
// number of segments, for use in effective-window arithmetic.
func (c *Controller) CwndSegments() int { return int(c.cwnd) }

// Ssthresh returns the current slow-start threshold.
func (c *Controller) Ssthresh() float64 { return c.ssthresh }

// InFastRecovery reports whether the controller is currently in Reno
// fast recovery (always false for Tahoe).
func (c *Controller) InFastRecovery() bool { return c.inFastRecovery }

// RecoveryPoint returns the sequence number at which fast recovery will
// exit (meaningful only while InFastRecovery is true).
func (c *Controller) RecoveryPoint() uint32 { return c.recoveryPoint }

// DupAckCount returns the current consecutive duplicate-ACK count.
func (c *Controller) DupAckCount() int { return c.dupAckCount }

// Algorithm returns which regime this controller runs.
func (c *Controller) Algorithm() Algorithm { return c.algorithm }

// Statistics returns a snapshot suitable for metrics export.
func (c *Controller) Statistics() map[string]float64 {
	return map[string]float64{
		"cwnd":            c.cwnd,
		"ssthresh":        c.ssthresh,
		"dup_ack_count":   float64(c.dupAckCount),
		"in_fast_recovery": boolToFloat(c.inFastRecovery),
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
