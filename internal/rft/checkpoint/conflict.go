package checkpoint

// Wins reports whether candidate should replace current as the
// authoritative checkpoint: the higher (HighestContiguousChunk,
// Version) pair wins. A nil current always loses.
func Wins(candidate, current *Checkpoint) bool {
	if current == nil {
		return true
	}
	if candidate.HighestContiguousChunk != current.HighestContiguousChunk {
		return candidate.HighestContiguousChunk > current.HighestContiguousChunk
	}
	return candidate.Version > current.Version
}
