package reorder

import "testing"

func TestDrainConsecutiveRun(t *testing.T) {
	b := New(10)
	b.Insert(3, []byte("c"), 1<<20)
	b.Insert(4, []byte("d"), 1<<20)
	b.Insert(6, []byte("f"), 1<<20)

	drained := b.Drain(3)
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained segments, got %d", len(drained))
	}
	if string(drained[0]) != "c" || string(drained[1]) != "d" {
		t.Errorf("unexpected drain order: %v", drained)
	}
	if b.Len() != 1 {
		t.Errorf("expected 1 segment left buffered, got %d", b.Len())
	}
}

func TestDrainNothingReady(t *testing.T) {
	b := New(10)
	b.Insert(5, []byte("e"), 1<<20)

	drained := b.Drain(3)
	if len(drained) != 0 {
		t.Errorf("expected no drained segments, got %d", len(drained))
	}
}

func TestInsertRejectedWhenFull(t *testing.T) {
	b := New(100)
	if !b.Insert(2, make([]byte, 100), 100) {
		t.Fatal("first insert should be accepted: occupancy 0 < rwnd 100")
	}
	if b.Insert(3, make([]byte, 100), 100) {
		t.Fatal("second insert should be rejected: occupancy 100 is not < rwnd 100")
	}
}

func TestDuplicateOutOfOrderDetected(t *testing.T) {
	b := New(10)
	b.Insert(5, []byte("e"), 1<<20)
	if !b.Has(5) {
		t.Fatal("expected seq 5 to be buffered")
	}
	if b.Has(6) {
		t.Fatal("seq 6 should not be buffered")
	}
}
