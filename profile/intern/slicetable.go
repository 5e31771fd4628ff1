package intern

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// SliceTable interns variable-length sequences of a fixed-width
// element (e.g. inline chains, stack frame lists, stack segments).
// Content equality is full slice equality; a 64-bit xxhash
// fingerprint over the element bytes narrows the candidate set before
// a full comparison, the same "hash then verify" discipline
// Table[K] gets for free from its backing Swiss map.
type SliceTable[E comparable] struct {
	contents  [][]E
	byFP      map[uint64][]uint32
	encodeOne func(*[]byte, E)
}

// NewSliceTable creates a slice table with id 0 pre-seeded to an
// empty sequence. encodeOne appends the wire bytes of a single
// element to buf; it must be injective enough to make fingerprint
// collisions rare (exactness is guaranteed by the fallback full
// comparison regardless).
func NewSliceTable[E comparable](encodeOne func(buf *[]byte, e E)) *SliceTable[E] {
	t := &SliceTable[E]{
		contents:  make([][]E, 0, 16),
		byFP:      make(map[uint64][]uint32),
		encodeOne: encodeOne,
	}
	t.contents = append(t.contents, nil)
	t.byFP[t.fingerprint(nil)] = []uint32{0}
	return t
}

func (t *SliceTable[E]) fingerprint(content []E) uint64 {
	var buf []byte
	for _, e := range content {
		t.encodeOne(&buf, e)
	}
	return xxhash.Sum64(buf)
}

// Intern returns the id for content, copying it into the table if
// this is the first time it has been seen.
func (t *SliceTable[E]) Intern(content []E) uint32 {
	fp := t.fingerprint(content)
	for _, candidate := range t.byFP[fp] {
		if slices.Equal(t.contents[candidate], content) {
			return candidate
		}
	}
	id := uint32(len(t.contents))
	cp := slices.Clone(content)
	t.contents = append(t.contents, cp)
	t.byFP[fp] = append(t.byFP[fp], id)
	return id
}

// At returns the content for id.
func (t *SliceTable[E]) At(id uint32) []E { return t.contents[id] }

// Len returns the table size.
func (t *SliceTable[E]) Len() int { return len(t.contents) }

// EncodeUint32 is a ready-made encodeOne for SliceTable[uint32].
func EncodeUint32(buf *[]byte, v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	*buf = append(*buf, tmp[:]...)
}
