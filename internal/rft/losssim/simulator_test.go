package losssim

import "testing"

func TestZeroProbabilityNeverDrops(t *testing.T) {
	s := New(0, 0, 1)
	for i := 0; i < 1000; i++ {
		if s.DropData() {
			t.Fatal("DropData should never fire with p=0")
		}
		if s.DropAck() {
			t.Fatal("DropAck should never fire with p=0")
		}
	}
}

func TestOneProbabilityAlwaysDrops(t *testing.T) {
	s := New(1, 1, 1)
	for i := 0; i < 100; i++ {
		if !s.DropData() {
			t.Fatal("DropData should always fire with p=1")
		}
		if !s.DropAck() {
			t.Fatal("DropAck should always fire with p=1")
		}
	}
}

func TestSameSeedReproducible(t *testing.T) {
	a := New(DefaultDataLoss, DefaultAckLoss, 42)
	b := New(DefaultDataLoss, DefaultAckLoss, 42)

	for i := 0; i < 500; i++ {
		if a.DropData() != b.DropData() {
			t.Fatalf("drop sequences diverged at iteration %d", i)
		}
	}
}

func TestStatisticsTracksDraws(t *testing.T) {
	s := New(1, 0, 1)
	s.DropData()
	s.DropData()
	s.DropAck()

	stats := s.Statistics()
	if stats.DataDrawn != 2 || stats.DataDropped != 2 {
		t.Errorf("data stats = %+v, want drawn=2 dropped=2", stats)
	}
	if stats.AckDrawn != 1 || stats.AckDropped != 0 {
		t.Errorf("ack stats = %+v, want drawn=1 dropped=0", stats)
	}
}
