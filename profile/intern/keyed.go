package intern

import (
	"github.com/dolthub/swiss"
)

// KeyedTable interns records whose identity can't be expressed as a
// directly comparable Go value (e.g. they embed slices) but can be
// reduced to a canonical string key by an injected key function.
type KeyedTable[R any] struct {
	records []R
	byKey   *swiss.Map[string, uint32]
	keyOf   func(R) string
}

// NewKeyedTable creates a table with id 0 pre-seeded to sentinel.
func NewKeyedTable[R any](sentinel R, keyOf func(R) string) *KeyedTable[R] {
	t := &KeyedTable[R]{
		records: make([]R, 0, 16),
		byKey:   swiss.NewMap[string, uint32](16),
		keyOf:   keyOf,
	}
	t.records = append(t.records, sentinel)
	t.byKey.Put(keyOf(sentinel), 0)
	return t
}

// Intern returns the id for r, assigning a new one if this is the
// first time its key has been seen.
func (t *KeyedTable[R]) Intern(r R) uint32 {
	k := t.keyOf(r)
	if id, ok := t.byKey.Get(k); ok {
		return id
	}
	id := uint32(len(t.records))
	t.records = append(t.records, r)
	t.byKey.Put(k, id)
	return id
}

// At returns the record for id.
func (t *KeyedTable[R]) At(id uint32) R { return t.records[id] }

// Len returns the table size.
func (t *KeyedTable[R]) Len() int { return len(t.records) }

// All returns the full record slice, indexed by id. Callers must not
// mutate it.
func (t *KeyedTable[R]) All() []R { return t.records }
