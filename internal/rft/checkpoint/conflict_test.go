package checkpoint

import "testing"

func TestWinsAgainstNilCurrent(t *testing.T) {
	if !Wins(&Checkpoint{HighestContiguousChunk: 1}, nil) {
		t.Error("any candidate should win against a nil current")
	}
}

func TestWinsByHigherChunk(t *testing.T) {
	current := &Checkpoint{HighestContiguousChunk: 5, Version: 10}
	candidate := &Checkpoint{HighestContiguousChunk: 6, Version: 1}
	if !Wins(candidate, current) {
		t.Error("higher chunk count should win regardless of version")
	}
}

func TestWinsByVersionOnTie(t *testing.T) {
	current := &Checkpoint{HighestContiguousChunk: 5, Version: 10}
	candidate := &Checkpoint{HighestContiguousChunk: 5, Version: 11}
	if !Wins(candidate, current) {
		t.Error("equal chunk count should fall back to version")
	}
	if Wins(&Checkpoint{HighestContiguousChunk: 5, Version: 9}, current) {
		t.Error("lower version at equal chunk count should lose")
	}
}
