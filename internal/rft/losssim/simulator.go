// Package losssim implements the independent Bernoulli loss processes
// that stand in for a real lossy network (spec §4.6).
package losssim

import "math/rand"

// Default drop probabilities, spec §6.
const (
	DefaultDataLoss = 0.10
	DefaultAckLoss  = 0.01
)

// Simulator draws independent Bernoulli samples for data-path and
// ACK-path drops. It is seedable for reproducible tests; production
// callers should seed from a real entropy source.
type Simulator struct {
	rng *rand.Rand

	dataLossP float64
	ackLossP  float64

	dataDropped uint64
	ackDropped  uint64
	dataDrawn   uint64
	ackDrawn    uint64
}

// New returns a simulator with the given drop probabilities, seeded
// deterministically from seed.
func New(dataLossP, ackLossP float64, seed int64) *Simulator {
	return &Simulator{
		rng:       rand.New(rand.NewSource(seed)),
		dataLossP: dataLossP,
		ackLossP:  ackLossP,
	}
}

// DropData draws a Bernoulli(p=dataLossP) sample and reports whether the
// incoming data segment should be dropped.
func (s *Simulator) DropData() bool {
	s.dataDrawn++
	if s.rng.Float64() < s.dataLossP {
		s.dataDropped++
		return true
	}
	return false
}

// DropAck draws a Bernoulli(p=ackLossP) sample and reports whether the
// outgoing ACK should be dropped.
func (s *Simulator) DropAck() bool {
	s.ackDrawn++
	if s.rng.Float64() < s.ackLossP {
		s.ackDropped++
		return true
	}
	return false
}

// Statistics reports cumulative drop counters, surfaced as the
// receiver's only visible trace of simulated loss (spec §7).
type Statistics struct {
	DataDrawn   uint64
	DataDropped uint64
	AckDrawn    uint64
	AckDropped  uint64
}

// Statistics returns a snapshot of the simulator's counters.
func (s *Simulator) Statistics() Statistics {
	return Statistics{
		DataDrawn:   s.dataDrawn,
		DataDropped: s.dataDropped,
		AckDrawn:    s.ackDrawn,
		AckDropped:  s.ackDropped,
	}
}
