// Package storage holds the contract's persistent key/value map together with
// the usage accounting the runtime charges for it.
package storage

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
)

// keyPrefix is prepended to every key in the backing DB, which rejects
// zero-length keys. Accounting always uses the unprefixed key.
const keyPrefix byte = 's'

func dbKey(key []byte) []byte {
	k := make([]byte, 0, len(key)+1)
	return append(append(k, keyPrefix), key...)
}

// EntryUsage is the accounted size of one entry. The two padding bytes per
// entry match the figure the runtime reports on chain.
func EntryUsage(key, value []byte) uint64 {
	return uint64(len(key)) + 1 + uint64(len(value)) + 1
}

// Store is the contract storage. Usage always equals the sum of EntryUsage
// over all entries.
type Store struct {
	db    *dbm.MemDB
	usage uint64
	count int
}

// New creates an empty store.
func New() *Store {
	return &Store{db: dbm.NewMemDB()}
}

// Usage returns the accounted storage size in bytes.
func (s *Store) Usage() uint64 {
	return s.usage
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return s.count
}

// Get returns a copy of the value stored at key, or nil if there is none.
// The empty key is a valid key.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	v, err := s.db.Get(dbKey(key))
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

// Has reports whether key is present.
func (s *Store) Has(key []byte) (bool, error) {
	return s.db.Has(dbKey(key))
}

// Set stores value at key and returns the value it replaced, if any.
func (s *Store) Set(key, value []byte) ([]byte, bool, error) {
	old, existed, err := s.Get(key)
	if err != nil {
		return nil, false, err
	}
	v := append([]byte{}, value...)
	if err := s.db.Set(dbKey(key), v); err != nil {
		return nil, false, fmt.Errorf("storage set: %w", err)
	}
	if existed {
		s.usage -= EntryUsage(key, old)
	} else {
		s.count++
	}
	s.usage += EntryUsage(key, value)
	return old, existed, nil
}

// Remove deletes key and returns the value it held, if any.
func (s *Store) Remove(key []byte) ([]byte, bool, error) {
	old, existed, err := s.Get(key)
	if err != nil || !existed {
		return nil, false, err
	}
	if err := s.db.Delete(dbKey(key)); err != nil {
		return nil, false, fmt.Errorf("storage delete: %w", err)
	}
	s.usage -= EntryUsage(key, old)
	s.count--
	return old, true, nil
}

// Iterate calls fn for every entry in ascending key order until fn returns false.
func (s *Store) Iterate(fn func(key, value []byte) bool) error {
	it, err := s.db.Iterator(nil, nil)
	if err != nil {
		return err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		if !fn(it.Key()[1:], it.Value()) {
			break
		}
	}
	return it.Error()
}

// Snapshot returns a deep copy of the current contents.
func (s *Store) Snapshot() (Snapshot, error) {
	snap := newSnapshot()
	err := s.Iterate(func(key, value []byte) bool {
		snap.put(key, value)
		return true
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return snap, nil
}

// Restore replaces the store contents with snap. Any mutation made since
// the snapshot was taken is discarded.
func (s *Store) Restore(snap Snapshot) error {
	db := dbm.NewMemDB()
	var (
		usage uint64
		count int
		err   error
	)
	snap.Ascend(func(key, value []byte) bool {
		if err = db.Set(dbKey(key), append([]byte{}, value...)); err != nil {
			return false
		}
		usage += EntryUsage(key, value)
		count++
		return true
	})
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	s.db, s.usage, s.count = db, usage, count
	return nil
}
