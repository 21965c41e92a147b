package tree

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// DefaultShards is the shard count used when NewSharded gets n <= 0.
const DefaultShards = 64

type shard struct {
	mu sync.Mutex
	t  *Tree
	_  [48]byte // pad to 64 bytes so neighbouring mutexes never share a cache line
}

// Sharded lets many goroutines aggregate into one key space. Each key is
// routed by its xxh3 hash to one of n independent Trees, each behind its own
// mutex, so writers only contend when their keys share a shard.
type Sharded struct {
	shards []shard
}

// NewSharded returns a Sharded aggregate with n shards.
func NewSharded(n int) *Sharded {
	if n <= 0 {
		n = DefaultShards
	}
	s := &Sharded{shards: make([]shard, n)}
	for i := range s.shards {
		s.shards[i].t = New()
	}
	return s
}

func (s *Sharded) shardFor(key []byte) *shard {
	return &s.shards[xxh3.Hash(key)%uint64(len(s.shards))]
}

// Update records value v for key. Safe for concurrent use.
func (s *Sharded) Update(key []byte, v float64) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.t.Update(key, v)
	sh.mu.Unlock()
}

// Len returns the number of distinct keys across all shards.
func (s *Sharded) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += sh.t.Len()
		sh.mu.Unlock()
	}
	return n
}

// Tree merges every shard into a single ordered Tree. Shards hold disjoint
// key sets, so this never combines two aggregates of the same key.
func (s *Sharded) Tree() *Tree {
	out := NewWithCapacity(s.Len(), 16)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		out.Merge(sh.t)
		sh.mu.Unlock()
	}
	return out
}
