package congestion

import "time"

// bbrState tracks the subset of Google's BBR algorithm needed to drive
// a byte-denominated congestion window from RTT and delivery-rate
// samples, for Controllers running the BBR Algorithm. Unlike Tahoe and
// Reno, BBR does not collapse its window on loss or duplicate ACKs —
// it reacts only to measured bottleneck bandwidth and round-trip
// propagation delay, so OnTimeout and the dup-ACK path are no-ops when
// this is active.
type bbrState struct {
	phase      bbrPhase
	phaseStart time.Time

	btlBw  float64 // bytes/sec, max observed delivery rate
	rtProp time.Duration

	pacingGain float64
	cwndGain   float64

	cycleIndex int
	cycleStart time.Time

	samples []bbrSample
}

type bbrPhase int

const (
	bbrStartup bbrPhase = iota
	bbrDrain
	bbrProbeBW
	bbrProbeRTT
)

const (
	bbrStartupGain   = 2.77
	bbrDrainGain     = 1 / bbrStartupGain
	bbrProbeRTTEvery = 10 * time.Second
	bbrProbeRTTFor   = 200 * time.Millisecond
	bbrMinRTProp     = time.Hour // unset sentinel, replaced by first sample
)

var bbrProbeBWCycle = []float64{1.25, 0.75, 1, 1, 1, 1, 1, 1}

type bbrSample struct {
	bw  float64
	at  time.Time
}

func newBBRState(now time.Time) *bbrState {
	return &bbrState{
		phase:      bbrStartup,
		phaseStart: now,
		rtProp:     bbrMinRTProp,
		pacingGain: bbrStartupGain,
		cwndGain:   bbrStartupGain,
		cycleStart: now,
	}
}

// onAck folds in one (ackedBytes, rtt) delivery sample.
func (b *bbrState) onAck(ackedBytes uint32, rtt time.Duration, now time.Time) {
	if rtt > 0 && rtt < b.rtProp {
		b.rtProp = rtt
	}
	if rtt > 0 {
		bw := float64(ackedBytes) / rtt.Seconds()
		b.samples = append(b.samples, bbrSample{bw: bw, at: now})
		if len(b.samples) > 10 {
			b.samples = b.samples[1:]
		}
		max := 0.0
		for _, s := range b.samples {
			if s.bw > max {
				max = s.bw
			}
		}
		b.btlBw = max
	}
	b.advancePhase(now)
}

func (b *bbrState) advancePhase(now time.Time) {
	switch b.phase {
	case bbrStartup:
		if len(b.samples) >= 3 && b.btlBw > 0 {
			growing := b.samples[len(b.samples)-1].bw > b.samples[0].bw*1.25
			if !growing {
				b.phase = bbrDrain
				b.phaseStart = now
				b.pacingGain = bbrDrainGain
				b.cwndGain = 2
			}
		}
	case bbrDrain:
		b.phase = bbrProbeBW
		b.phaseStart = now
		b.cycleIndex = 0
		b.cycleStart = now
		b.pacingGain = bbrProbeBWCycle[0]
		b.cwndGain = 2
	case bbrProbeBW:
		if now.Sub(b.phaseStart) > bbrProbeRTTEvery {
			b.phase = bbrProbeRTT
			b.phaseStart = now
			b.pacingGain = 1
			b.cwndGain = 1
			return
		}
		if b.rtProp > 0 && b.rtProp < bbrMinRTProp && now.Sub(b.cycleStart) > b.rtProp {
			b.cycleIndex = (b.cycleIndex + 1) % len(bbrProbeBWCycle)
			b.cycleStart = now
			b.pacingGain = bbrProbeBWCycle[b.cycleIndex]
		}
	case bbrProbeRTT:
		if now.Sub(b.phaseStart) >= bbrProbeRTTFor {
			b.phase = bbrProbeBW
			b.phaseStart = now
			b.cycleIndex = 0
			b.cycleStart = now
			b.pacingGain = bbrProbeBWCycle[0]
			b.cwndGain = 2
		}
	}
}

// bdpBytes returns the current bandwidth-delay product estimate, the
// basis for BBR's congestion window.
func (b *bbrState) bdpBytes() float64 {
	if b.btlBw <= 0 || b.rtProp <= 0 || b.rtProp >= bbrMinRTProp {
		return 0
	}
	return b.btlBw * b.rtProp.Seconds()
}

// cwndBytes returns the current congestion window in bytes.
func (b *bbrState) cwndBytes(minBytes float64) float64 {
	cwnd := b.bdpBytes() * b.cwndGain
	if cwnd < minBytes {
		return minBytes
	}
	return cwnd
}

// pacingRate returns the current pacing rate in bytes/sec.
func (b *bbrState) pacingRate() float64 {
	return b.btlBw * b.pacingGain
}
