// Package fec adds an optional Reed-Solomon forward-error-correction
// layer over a run of chunks. It is off by default: the core DATA/ACK
// loop never requires it, but a sender can opt in to trade bandwidth
// for fewer retransmissions on lossy links by periodically emitting
// parity shards alongside a group of data chunks. A receiver that sees
// enough of a group (data or parity, in any combination) can reconstruct
// whatever chunks it missed without waiting on a retransmit timer.
package fec

import (
	"fmt"
	"sync"

	"github.com/klauspost/reedsolomon"
)

const (
	// DefaultDataShards is the default number of data chunks per group.
	DefaultDataShards = 10

	// DefaultParityShards is the default number of parity shards generated per group.
	DefaultParityShards = 3
)

// Config controls the data/parity shard counts of a group.
type Config struct {
	DataShards   int
	ParityShards int
}

// DefaultConfig returns the default 10-data/3-parity group shape, a
// 30% bandwidth overhead that tolerates losing any 3 shards per group.
func DefaultConfig() *Config {
	return &Config{DataShards: DefaultDataShards, ParityShards: DefaultParityShards}
}

// Encoder groups a sender's outgoing chunks into fixed-size Reed-Solomon
// groups and emits parity shards once a group fills.
type Encoder struct {
	mu sync.Mutex

	dataShards   int
	parityShards int
	rs           reedsolomon.Encoder

	current *encodingGroup
	groupID uint64
}

type encodingGroup struct {
	groupID      uint64
	dataShards   [][]byte
	parityShards [][]byte
	count        int
}

// NewEncoder constructs an Encoder for the given group shape.
func NewEncoder(cfg *Config) (*Encoder, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DataShards < 1 || cfg.DataShards > 256 {
		return nil, fmt.Errorf("fec: invalid data shards: %d (must be 1-256)", cfg.DataShards)
	}
	if cfg.ParityShards < 0 || cfg.ParityShards > 256 {
		return nil, fmt.Errorf("fec: invalid parity shards: %d (must be 0-256)", cfg.ParityShards)
	}
	rs, err := reedsolomon.New(cfg.DataShards, cfg.ParityShards)
	if err != nil {
		return nil, fmt.Errorf("fec: failed to construct reed-solomon encoder: %w", err)
	}
	return &Encoder{dataShards: cfg.DataShards, parityShards: cfg.ParityShards, rs: rs, groupID: 1}, nil
}

// AddChunk feeds the next outgoing chunk into the current group. It
// returns a non-zero groupID and the group's parity shards once the
// group fills; otherwise it returns (0, nil, nil) and the caller should
// keep sending chunks normally.
func (e *Encoder) AddChunk(data []byte) (groupID uint64, parityShards [][]byte, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		e.current = &encodingGroup{groupID: e.groupID, dataShards: make([][]byte, e.dataShards)}
		e.groupID++
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	e.current.dataShards[e.current.count] = cp
	e.current.count++

	if e.current.count < e.dataShards {
		return 0, nil, nil
	}

	if err := e.encodeGroup(e.current); err != nil {
		e.current = nil
		return 0, nil, fmt.Errorf("fec: failed to encode group: %w", err)
	}
	g := e.current
	e.current = nil
	return g.groupID, g.parityShards, nil
}

func (e *Encoder) encodeGroup(g *encodingGroup) error {
	maxLen := 0
	for _, shard := range g.dataShards {
		if len(shard) > maxLen {
			maxLen = len(shard)
		}
	}
	for i := range g.dataShards {
		if len(g.dataShards[i]) < maxLen {
			padded := make([]byte, maxLen)
			copy(padded, g.dataShards[i])
			g.dataShards[i] = padded
		}
	}

	g.parityShards = make([][]byte, e.parityShards)
	for i := range g.parityShards {
		g.parityShards[i] = make([]byte, maxLen)
	}

	all := append(append([][]byte{}, g.dataShards...), g.parityShards...)
	if err := e.rs.Encode(all); err != nil {
		return err
	}
	g.parityShards = all[e.dataShards:]
	return nil
}

// Reset discards any partially filled group, used when a transfer ends
// with a short final group that will never complete.
func (e *Encoder) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
}

// Decoder reconstructs chunks from whatever mix of data and parity
// shards a receiver manages to collect per group.
type Decoder struct {
	mu sync.RWMutex

	dataShards   int
	parityShards int
	rs           reedsolomon.Encoder

	groups map[uint64]*decodingGroup

	totalRecovered uint64
	failedRecovery uint64
}

type decodingGroup struct {
	dataShards    [][]byte
	parityShards  [][]byte
	receivedMask  []bool
	receivedCount int
	complete      bool
}

// NewDecoder constructs a Decoder matching an Encoder's group shape.
func NewDecoder(cfg *Config) (*Decoder, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DataShards < 1 || cfg.DataShards > 256 {
		return nil, fmt.Errorf("fec: invalid data shards: %d (must be 1-256)", cfg.DataShards)
	}
	if cfg.ParityShards < 0 || cfg.ParityShards > 256 {
		return nil, fmt.Errorf("fec: invalid parity shards: %d (must be 0-256)", cfg.ParityShards)
	}
	rs, err := reedsolomon.New(cfg.DataShards, cfg.ParityShards)
	if err != nil {
		return nil, fmt.Errorf("fec: failed to construct reed-solomon encoder: %w", err)
	}
	return &Decoder{
		dataShards:   cfg.DataShards,
		parityShards: cfg.ParityShards,
		rs:           rs,
		groups:       make(map[uint64]*decodingGroup),
	}, nil
}

// AddShard feeds one received data or parity shard for groupID. Once
// enough shards (dataShards total, any mix) have arrived it reconstructs
// the group and returns its data shards; until then it returns nil.
func (d *Decoder) AddShard(groupID uint64, shardIndex int, data []byte, isParity bool) ([][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.groups[groupID]
	if !ok {
		g = &decodingGroup{
			dataShards:   make([][]byte, d.dataShards),
			parityShards: make([][]byte, d.parityShards),
			receivedMask: make([]bool, d.dataShards+d.parityShards),
		}
		d.groups[groupID] = g
	}
	if g.complete {
		return nil, nil
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	var maskIndex int
	if isParity {
		if shardIndex < 0 || shardIndex >= d.parityShards {
			return nil, fmt.Errorf("fec: invalid parity shard index: %d", shardIndex)
		}
		g.parityShards[shardIndex] = cp
		maskIndex = d.dataShards + shardIndex
	} else {
		if shardIndex < 0 || shardIndex >= d.dataShards {
			return nil, fmt.Errorf("fec: invalid data shard index: %d", shardIndex)
		}
		g.dataShards[shardIndex] = cp
		maskIndex = shardIndex
	}

	if !g.receivedMask[maskIndex] {
		g.receivedMask[maskIndex] = true
		g.receivedCount++
	}

	if g.receivedCount < d.dataShards {
		return nil, nil
	}

	recoveredCount := d.dataShards - g.countReceivedData()
	if err := d.reconstruct(g); err != nil {
		d.failedRecovery++
		return nil, fmt.Errorf("fec: group reconstruction failed: %w", err)
	}
	g.complete = true
	d.totalRecovered += uint64(recoveredCount)
	return g.dataShards, nil
}

func (d *Decoder) reconstruct(g *decodingGroup) error {
	all := make([][]byte, d.dataShards+d.parityShards)
	copy(all[:d.dataShards], g.dataShards)
	copy(all[d.dataShards:], g.parityShards)

	if err := d.rs.Reconstruct(all); err != nil {
		return err
	}
	ok, err := d.rs.Verify(all)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !ok {
		return fmt.Errorf("reconstructed group failed verification")
	}
	for i := 0; i < d.dataShards; i++ {
		if g.dataShards[i] == nil {
			g.dataShards[i] = all[i]
		}
	}
	return nil
}

func (g *decodingGroup) countReceivedData() int {
	count := 0
	for i := 0; i < len(g.dataShards); i++ {
		if g.receivedMask[i] {
			count++
		}
	}
	return count
}

// CleanupOldGroups drops all but the keepLatest most recently created
// groups, bounding memory use for a transfer that runs long enough to
// accumulate many incomplete groups (e.g. one stuck waiting on a shard
// that never arrives because both the chunk and enough parity were lost).
func (d *Decoder) CleanupOldGroups(keepLatest int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.groups) <= keepLatest {
		return
	}
	ids := make([]uint64, 0, len(d.groups))
	for id := range d.groups {
		ids = append(ids, id)
	}
	for i := 0; i < len(ids)-1; i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[i] > ids[j] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	for _, id := range ids[:len(ids)-keepLatest] {
		delete(d.groups, id)
	}
}

// Stats reports decoder recovery counters.
type Stats struct {
	TotalRecovered uint64
	FailedRecovery uint64
	ActiveGroups   int
}

// Statistics returns a snapshot of decoder recovery counters.
func (d *Decoder) Statistics() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{TotalRecovered: d.totalRecovered, FailedRecovery: d.failedRecovery, ActiveGroups: len(d.groups)}
}

// Overhead returns the bandwidth overhead ratio of a given group shape.
func Overhead(dataShards, parityShards int) float64 {
	if dataShards == 0 {
		return 0
	}
	return float64(parityShards) / float64(dataShards)
}
