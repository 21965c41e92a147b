// Package tree aggregates per-key statistics in an unbalanced binary search
// tree whose nodes live in a flat, index-addressed arena.
//
// Nodes reference their children by arena index and never by pointer; the
// root is always node 0. Key bytes are copied into a single shared key arena.
// Neither arena ever shrinks and nodes are never removed.
//
// The tree is not rebalanced. Its depth depends only on insertion order:
// keys arriving in sorted order degrade it to a linked list (linear depth),
// while well-mixed keys keep it near logarithmic. All traversals are
// iterative, so a degenerate tree costs time but never stack.
//
// A Tree is not safe for concurrent use; see Sharded for multi-writer
// aggregation.
package tree

import "bytes"

const none int32 = -1

type node struct {
	koff  uint32 // key offset in Tree.keys
	klen  uint32
	left  int32
	right int32
	stats Stats
}

// Tree is an ordered, byte-keyed aggregate store.
type Tree struct {
	nodes []node
	keys  []byte
}

// New returns an empty Tree.
func New() *Tree { return &Tree{} }

// NewWithCapacity returns an empty Tree with room for n keys of about
// keyLen bytes each.
func NewWithCapacity(n, keyLen int) *Tree {
	return &Tree{
		nodes: make([]node, 0, n),
		keys:  make([]byte, 0, n*keyLen),
	}
}

func (t *Tree) key(i int32) []byte {
	n := &t.nodes[i]
	return t.keys[n.koff : n.koff+n.klen]
}

// Update records value v for key. The key is copied on first sight; later
// updates of an existing key never allocate a node.
func (t *Tree) Update(key []byte, v float64) {
	i, parent, left := t.find(key)
	if i != none {
		t.nodes[i].stats.Add(v)
		return
	}
	t.insert(key, single(v), parent, left)
}

// MergeStats folds a whole aggregate into key's entry.
func (t *Tree) MergeStats(key []byte, s Stats) {
	if s.Count == 0 {
		return
	}
	i, parent, left := t.find(key)
	if i != none {
		t.nodes[i].stats.Merge(s)
		return
	}
	t.insert(key, s, parent, left)
}

// Get returns the aggregate stored for key.
func (t *Tree) Get(key []byte) (Stats, bool) {
	i, _, _ := t.find(key)
	if i == none {
		return Stats{}, false
	}
	return t.nodes[i].stats, true
}

// find walks from the root comparing whole keys byte-wise; a key that is a
// strict prefix of another sorts before it. On a miss it returns none with
// the parent to attach to and the side to attach on.
func (t *Tree) find(key []byte) (i, parent int32, left bool) {
	if len(t.nodes) == 0 {
		return none, none, false
	}
	i = 0
	for {
		c := bytes.Compare(key, t.key(i))
		if c == 0 {
			return i, none, false
		}
		next := t.nodes[i].right
		if c < 0 {
			next = t.nodes[i].left
		}
		if next == none {
			return none, i, c < 0
		}
		i = next
	}
}

func (t *Tree) insert(key []byte, s Stats, parent int32, left bool) {
	idx := int32(len(t.nodes))
	off := uint32(len(t.keys))
	t.keys = append(t.keys, key...)
	t.nodes = append(t.nodes, node{
		koff:  off,
		klen:  uint32(len(key)),
		left:  none,
		right: none,
		stats: s,
	})
	switch {
	case parent == none:
		// root
	case left:
		t.nodes[parent].left = idx
	default:
		t.nodes[parent].right = idx
	}
}

// Len returns the number of distinct keys.
func (t *Tree) Len() int { return len(t.nodes) }

// Depth returns the number of nodes on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	type frame struct {
		i     int32
		depth int
	}
	deepest := 0
	stack := []frame{{0, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		deepest = max(deepest, f.depth)
		n := &t.nodes[f.i]
		if n.left != none {
			stack = append(stack, frame{n.left, f.depth + 1})
		}
		if n.right != none {
			stack = append(stack, frame{n.right, f.depth + 1})
		}
	}
	return deepest
}

// Walk visits every key in ascending byte order. The key slice aliases the
// tree's arena and must not be modified or retained. Returning false from fn
// stops the walk.
func (t *Tree) Walk(fn func(key []byte, s Stats) bool) {
	if len(t.nodes) == 0 {
		return
	}
	var stack []int32
	i := int32(0)
	for i != none || len(stack) > 0 {
		for i != none {
			stack = append(stack, i)
			i = t.nodes[i].left
		}
		i = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(t.key(i), t.nodes[i].stats) {
			return
		}
		i = t.nodes[i].right
	}
}

// Keys returns copies of all keys in ascending order.
func (t *Tree) Keys() [][]byte {
	out := make([][]byte, 0, len(t.nodes))
	t.Walk(func(k []byte, _ Stats) bool {
		out = append(out, bytes.Clone(k))
		return true
	})
	return out
}

// Merge folds every entry of o into t in o's insertion order. o is left
// unchanged and must not be t.
func (t *Tree) Merge(o *Tree) {
	for i := range o.nodes {
		t.MergeStats(o.key(int32(i)), o.nodes[i].stats)
	}
}
