// Package intern implements the hash-consing tables and the
// sparse-to-dense integer containers that back every table in
// the canonical profile model. Ids are dense uint32s; id 0 is
// reserved for the caller-supplied sentinel content wherever the
// schema allows an "absent" reference.
//
// The content→id maps are backed by github.com/dolthub/swiss, a
// Swiss-table implementation well suited to the write-once,
// read-many-times access pattern hash-consing produces.
package intern

import (
	"github.com/dolthub/swiss"
)

// Table is an order-preserving hash-consing table: structurally equal
// content maps to the same id, assigned in order of first appearance.
// K must be directly comparable (fixed-shape records); variable-length
// content such as inline chains and stack frame lists use SliceTable
// instead.
type Table[K comparable] struct {
	byContent *swiss.Map[K, uint32]
	contents  []K
}

// NewTable creates a table with id 0 pre-seeded to sentinel.
func NewTable[K comparable](sentinel K) *Table[K] {
	t := &Table[K]{
		byContent: swiss.NewMap[K, uint32](16),
		contents:  make([]K, 0, 16),
	}
	t.contents = append(t.contents, sentinel)
	t.byContent.Put(sentinel, 0)
	return t
}

// Intern returns the id for content, assigning a new one if this is
// the first time content has been seen.
func (t *Table[K]) Intern(content K) uint32 {
	if id, ok := t.byContent.Get(content); ok {
		return id
	}
	id := uint32(len(t.contents))
	t.contents = append(t.contents, content)
	t.byContent.Put(content, id)
	return id
}

// Lookup returns the id for content without inserting, and whether it
// was found.
func (t *Table[K]) Lookup(content K) (uint32, bool) {
	return t.byContent.Get(content)
}

// At returns the content for id. It panics if id is out of range,
// matching the "unchecked read" contract of the rest of this package.
func (t *Table[K]) At(id uint32) K {
	return t.contents[id]
}

// Len returns the table size, i.e. one past the highest assigned id.
func (t *Table[K]) Len() int { return len(t.contents) }

// All returns the full content slice, indexed by id. Callers must not
// mutate it.
func (t *Table[K]) All() []K { return t.contents }
