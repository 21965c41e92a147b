package tree

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"unsafe"
)

type obs struct {
	key string
	v   float64
}

func build(in []obs) *Tree {
	t := New()
	for _, o := range in {
		t.Update([]byte(o.key), o.v)
	}
	return t
}

func snapshot(t *Tree) map[string]Stats {
	out := map[string]Stats{}
	t.Walk(func(k []byte, s Stats) bool {
		out[string(k)] = s
		return true
	})
	return out
}

func TestUpdate_Scenario(t *testing.T) {
	t.Parallel()

	tr := build([]obs{{"A", 1.0}, {"B", 2.5}, {"A", 3.0}})

	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}
	a, ok := tr.Get([]byte("A"))
	if !ok {
		t.Fatalf("key A missing")
	}
	if a != (Stats{Count: 2, Sum: 4.0, Min: 1.0, Max: 3.0}) {
		t.Fatalf("A = %+v", a)
	}
	if a.Mean() != 2.0 {
		t.Fatalf("A.Mean() = %v, want 2", a.Mean())
	}
	b, _ := tr.Get([]byte("B"))
	if b != (Stats{Count: 1, Sum: 2.5, Min: 2.5, Max: 2.5}) {
		t.Fatalf("B = %+v", b)
	}
	if _, ok := tr.Get([]byte("C")); ok {
		t.Fatalf("unexpected key C")
	}
}

func TestUpdate_ExistingKeyNeverAllocates(t *testing.T) {
	t.Parallel()

	tr := build([]obs{{"m", 1}, {"a", 1}, {"z", 1}})
	nodes, keys := len(tr.nodes), len(tr.keys)
	for i := 0; i < 100; i++ {
		tr.Update([]byte("a"), float64(i))
	}
	if len(tr.nodes) != nodes || len(tr.keys) != keys {
		t.Fatalf("arena grew on existing key: nodes %d->%d keys %d->%d", nodes, len(tr.nodes), keys, len(tr.keys))
	}
}

func TestUpdate_PrefixKeysAreDistinct(t *testing.T) {
	t.Parallel()

	tr := build([]obs{{"Ab", 1}, {"A", 2}, {"Abc", 3}, {"", 4}})
	if tr.Len() != 4 {
		t.Fatalf("Len() = %d, want 4 (prefixes must not merge)", tr.Len())
	}
	want := []string{"", "A", "Ab", "Abc"}
	for i, k := range tr.Keys() {
		if string(k) != want[i] {
			t.Fatalf("key[%d] = %q, want %q", i, k, want[i])
		}
	}
}

func TestUpdate_CopiesKey(t *testing.T) {
	t.Parallel()

	tr := New()
	k := []byte("abc")
	tr.Update(k, 1)
	k[0] = 'x'
	if _, ok := tr.Get([]byte("abc")); !ok {
		t.Fatalf("caller mutation leaked into the tree")
	}
}

func TestWalk_SortedAndStoppable(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(1))
	tr := New()
	for i := 0; i < 500; i++ {
		tr.Update([]byte(fmt.Sprintf("k%03d", r.Intn(200))), float64(i))
	}
	var prev []byte
	n := 0
	tr.Walk(func(k []byte, _ Stats) bool {
		if prev != nil && bytes.Compare(prev, k) >= 0 {
			t.Fatalf("walk out of order: %q then %q", prev, k)
		}
		prev = bytes.Clone(k)
		n++
		return true
	})
	if n != tr.Len() {
		t.Fatalf("walk visited %d, Len() = %d", n, tr.Len())
	}

	visited := 0
	tr.Walk(func([]byte, Stats) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Fatalf("stopped walk visited %d, want 3", visited)
	}
}

func TestDepth_SortedInsertIsLinear(t *testing.T) {
	t.Parallel()

	tr := New()
	for i := 0; i < 1000; i++ {
		tr.Update([]byte(fmt.Sprintf("%04d", i)), 1)
	}
	if tr.Depth() != 1000 {
		t.Fatalf("Depth() = %d, want 1000 for sorted inserts", tr.Depth())
	}
	// Iterative traversal must cope with the degenerate shape.
	if got := len(tr.Keys()); got != 1000 {
		t.Fatalf("Keys() = %d", got)
	}
	if New().Depth() != 0 {
		t.Fatalf("empty tree depth != 0")
	}
}

func TestUpdate_OrderIndependent(t *testing.T) {
	t.Parallel()

	var in []obs
	for i := 0; i < 300; i++ {
		// Quarter-step values keep float sums exact under any order.
		in = append(in, obs{key: fmt.Sprintf("s%d", i%17), v: float64(i%40)*0.25 - 3})
	}
	want := snapshot(build(in))

	r := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		perm := append([]obs(nil), in...)
		r.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		got := snapshot(build(perm))
		if len(got) != len(want) {
			t.Fatalf("round %d: %d keys, want %d", round, len(got), len(want))
		}
		for k, s := range want {
			if got[k] != s {
				t.Fatalf("round %d: key %q = %+v, want %+v", round, k, got[k], s)
			}
		}
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	a := build([]obs{{"x", 1}, {"y", -2}})
	b := build([]obs{{"y", 5}, {"z", 0}, {"x", 4}})
	a.Merge(b)

	got := snapshot(a)
	want := map[string]Stats{
		"x": {Count: 2, Sum: 5, Min: 1, Max: 4},
		"y": {Count: 2, Sum: 3, Min: -2, Max: 5},
		"z": {Count: 1, Sum: 0, Min: 0, Max: 0},
	}
	for k, s := range want {
		if got[k] != s {
			t.Fatalf("%s = %+v, want %+v", k, got[k], s)
		}
	}
	if b.Len() != 3 {
		t.Fatalf("merge modified source")
	}
}

func TestStatsMerge_Empty(t *testing.T) {
	t.Parallel()

	var s Stats
	s.Merge(Stats{})
	if s != (Stats{}) {
		t.Fatalf("merging empty into empty = %+v", s)
	}
	s.Merge(single(-1))
	if s != (Stats{Count: 1, Sum: -1, Min: -1, Max: -1}) {
		t.Fatalf("merging into empty = %+v", s)
	}
	if (Stats{}).Mean() != 0 {
		t.Fatalf("empty mean != 0")
	}
}

func TestSharded_MatchesSingleTree(t *testing.T) {
	t.Parallel()

	var in []obs
	for i := 0; i < 2000; i++ {
		in = append(in, obs{key: fmt.Sprintf("city-%d", i%97), v: float64(i%21) - 10})
	}
	want := snapshot(build(in))

	sh := NewSharded(8)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(in); i += 4 {
				sh.Update([]byte(in[i].key), in[i].v)
			}
		}(w)
	}
	wg.Wait()

	if sh.Len() != len(want) {
		t.Fatalf("Sharded.Len() = %d, want %d", sh.Len(), len(want))
	}
	merged := sh.Tree()
	got := snapshot(merged)
	for k, s := range want {
		if got[k] != s {
			t.Fatalf("%s = %+v, want %+v", k, got[k], s)
		}
	}
	var prev []byte
	merged.Walk(func(k []byte, _ Stats) bool {
		if prev != nil && bytes.Compare(prev, k) >= 0 {
			t.Fatalf("merged tree out of order")
		}
		prev = bytes.Clone(k)
		return true
	})
}

func TestNewSharded_Default(t *testing.T) {
	t.Parallel()

	if got := len(NewSharded(0).shards); got != DefaultShards {
		t.Fatalf("shards = %d, want %d", got, DefaultShards)
	}
}

func TestShard_FillsCacheLine(t *testing.T) {
	t.Parallel()

	if got := unsafe.Sizeof(shard{}); got != 64 {
		t.Fatalf("sizeof(shard) = %d, want 64", got)
	}
}
