package intern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAssignsDenseIDsInFirstSeenOrder(t *testing.T) {
	tab := NewTable[string]("")

	assert.Equal(t, uint32(0), tab.Intern(""), "sentinel content interns to 0")
	assert.Equal(t, uint32(1), tab.Intern("a"))
	assert.Equal(t, uint32(2), tab.Intern("b"))
	assert.Equal(t, uint32(1), tab.Intern("a"), "re-interning returns the original id")
	assert.Equal(t, 3, tab.Len())

	for i := 0; i < tab.Len(); i++ {
		assert.Equal(t, tab.All()[i], tab.At(uint32(i)))
	}
}

func TestTableLookupDoesNotInsert(t *testing.T) {
	tab := NewTable[string]("")
	_, ok := tab.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, tab.Len())
}

func TestSliceTableEmptySequenceIsSentinel(t *testing.T) {
	tab := NewSliceTable(EncodeUint32)
	assert.Equal(t, uint32(0), tab.Intern(nil))
	assert.Equal(t, uint32(0), tab.Intern([]uint32{}))

	id := tab.Intern([]uint32{1, 2, 3})
	require.Equal(t, uint32(1), id)
	assert.Equal(t, []uint32{1, 2, 3}, tab.At(id))
	assert.Equal(t, id, tab.Intern([]uint32{1, 2, 3}))
	assert.NotEqual(t, id, tab.Intern([]uint32{3, 2, 1}))
}

func TestSliceTableCopiesContent(t *testing.T) {
	tab := NewSliceTable(EncodeUint32)
	src := []uint32{7, 8}
	id := tab.Intern(src)
	src[0] = 99
	assert.Equal(t, []uint32{7, 8}, tab.At(id))
}

func TestKeyedTableDedupsByKey(t *testing.T) {
	type rec struct{ vals []uint32 }
	keyOf := func(r rec) string {
		var b []byte
		for _, v := range r.vals {
			b = append(b, byte(v))
		}
		return string(b)
	}
	tab := NewKeyedTable(rec{}, keyOf)

	a := tab.Intern(rec{vals: []uint32{1, 2}})
	b := tab.Intern(rec{vals: []uint32{1, 2}})
	c := tab.Intern(rec{vals: []uint32{2, 1}})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 3, tab.Len())
}

func TestCompactMapLittleAndBigTiers(t *testing.T) {
	m := NewCompactMap[uint32](4)

	assert.True(t, m.TryEmplace(0, 10))
	assert.True(t, m.TryEmplace(3, 13))
	assert.True(t, m.TryEmplace(100, 110), "key past the little tier lands in the big tier")

	assert.False(t, m.TryEmplace(3, 99))
	assert.False(t, m.TryEmplace(100, 99))

	assert.Equal(t, uint32(10), m.At(0))
	assert.Equal(t, uint32(13), m.At(3))
	assert.Equal(t, uint32(110), m.At(100))
	assert.Equal(t, 3, m.Size())

	_, ok := m.Get(2)
	assert.False(t, ok)
	_, ok = m.Get(101)
	assert.False(t, ok)
}

func TestCompactMapAtPanicsOnMissingKey(t *testing.T) {
	m := NewCompactMap[uint32](4)
	assert.Panics(t, func() { m.At(1) })
	assert.Panics(t, func() { m.At(1000) })
}

func TestCompactMapEmplaceUniquePanicsOnDuplicate(t *testing.T) {
	m := NewCompactMap[uint32](0)
	m.EmplaceUnique(5, 1)
	assert.Panics(t, func() { m.EmplaceUnique(5, 2) })
}

func TestCompactSetInsertAndContains(t *testing.T) {
	s := NewCompactSet(4)
	assert.True(t, s.Insert(1))
	assert.False(t, s.Insert(1))
	assert.True(t, s.Insert(1000))
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(1000))
	assert.False(t, s.Contains(2))
	assert.Equal(t, 2, s.Size())
}
