// Package rtt implements the Jacobson/Karels smoothing of sample RTTs
// into a retransmission timeout, as used by the sender engine.
package rtt

import "time"

const (
	alpha = 0.125
	beta  = 0.25

	// Min is the floor below which rto is never allowed to fall, a
	// design minimum to prevent spurious timeouts.
	Min = 200 * time.Millisecond

	initialEstRTT = 1000 * time.Millisecond
	initialDevRTT = 100 * time.Millisecond
	initialRTO    = 1400 * time.Millisecond
)

// Estimator tracks smoothed RTT, RTT variation and the derived
// retransmission timeout for one connection.
type Estimator struct {
	estRTT time.Duration
	devRTT time.Duration
	rto    time.Duration
}

// New returns an estimator seeded at its default initial values.
func New() *Estimator {
	return &Estimator{
		estRTT: initialEstRTT,
		devRTT: initialDevRTT,
		rto:    initialRTO,
	}
}

// Sample feeds a fresh RTT measurement into the estimator. Callers must
// only pass samples for segments that were not retransmitted (Karn's
// rule) — the estimator itself does not track retransmission state.
func (e *Estimator) Sample(s time.Duration) {
	if s < 0 {
		return
	}

	e.estRTT = time.Duration((1-alpha)*float64(e.estRTT) + alpha*float64(s))

	dev := s - e.estRTT
	if dev < 0 {
		dev = -dev
	}
	e.devRTT = time.Duration((1-beta)*float64(e.devRTT) + beta*float64(dev))

	e.rto = e.estRTT + 4*e.devRTT
	if e.rto < Min {
		e.rto = Min
	}
}

// RTO returns the current retransmission timeout.
func (e *Estimator) RTO() time.Duration {
	return e.rto
}

// EstRTT returns the current smoothed RTT estimate.
func (e *Estimator) EstRTT() time.Duration {
	return e.estRTT
}

// DevRTT returns the current RTT variation estimate.
func (e *Estimator) DevRTT() time.Duration {
	return e.devRTT
}
