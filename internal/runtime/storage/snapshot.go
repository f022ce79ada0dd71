package storage

import (
	"bytes"

	"github.com/google/btree"
)

type entry struct {
	key   []byte
	value []byte
}

func lessEntry(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Snapshot is an immutable deep copy of the storage map at one point in time.
// The zero value is an empty snapshot.
type Snapshot struct {
	tree  *btree.BTreeG[entry]
	usage uint64
}

func newSnapshot() Snapshot {
	return Snapshot{tree: btree.NewG(16, lessEntry)}
}

// NewSnapshot builds a snapshot from a plain map.
func NewSnapshot(entries map[string][]byte) Snapshot {
	snap := newSnapshot()
	for k, v := range entries {
		snap.put([]byte(k), v)
	}
	return snap
}

func (s *Snapshot) put(key, value []byte) {
	e := entry{key: append([]byte{}, key...), value: append([]byte{}, value...)}
	if old, replaced := s.tree.ReplaceOrInsert(e); replaced {
		s.usage -= EntryUsage(old.key, old.value)
	}
	s.usage += EntryUsage(key, value)
}

// Len returns the number of entries.
func (s Snapshot) Len() int {
	if s.tree == nil {
		return 0
	}
	return s.tree.Len()
}

// Usage returns the accounted size of the snapshot.
func (s Snapshot) Usage() uint64 {
	return s.usage
}

// Get returns the value captured for key.
func (s Snapshot) Get(key []byte) ([]byte, bool) {
	if s.tree == nil {
		return nil, false
	}
	e, ok := s.tree.Get(entry{key: key})
	if !ok {
		return nil, false
	}
	return append([]byte{}, e.value...), true
}

// Ascend calls fn for each entry in key order until fn returns false.
// fn must not retain or modify the slices it is given.
func (s Snapshot) Ascend(fn func(key, value []byte) bool) {
	if s.tree == nil {
		return
	}
	s.tree.Ascend(func(e entry) bool {
		return fn(e.key, e.value)
	})
}

// Map returns a copy of the snapshot as a plain map.
func (s Snapshot) Map() map[string][]byte {
	out := make(map[string][]byte, s.Len())
	s.Ascend(func(key, value []byte) bool {
		out[string(key)] = append([]byte{}, value...)
		return true
	})
	return out
}

// Equal reports whether both snapshots hold exactly the same entries.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Len() != o.Len() || s.usage != o.usage {
		return false
	}
	equal := true
	s.Ascend(func(key, value []byte) bool {
		v, ok := o.Get(key)
		equal = ok && bytes.Equal(v, value)
		return equal
	})
	return equal
}
