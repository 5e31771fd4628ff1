package intern

// DefaultLittleTierSize is the default width L of the direct-indexed
// little tier: source ids below this are stored in a plain slice,
// source ids at or above it fall back to the big-tier hash map. pprof
// and canonical producer ids are overwhelmingly dense in a small
// prefix, so this covers the common case without a hash lookup.
const DefaultLittleTierSize = 1 << 20

// CompactMap is a sparse-to-dense uint64-keyed map optimized for the
// common case that keys are densely packed below DefaultLittleTierSize.
type CompactMap[V any] struct {
	littleSize uint64
	little     []compactSlot[V]
	big        map[uint64]V
}

type compactSlot[V any] struct {
	value   V
	present bool
}

// NewCompactMap creates a CompactMap with the given little-tier width.
// Use 0 for DefaultLittleTierSize.
func NewCompactMap[V any](littleSize uint64) *CompactMap[V] {
	if littleSize == 0 {
		littleSize = DefaultLittleTierSize
	}
	return &CompactMap[V]{
		littleSize: littleSize,
		big:        make(map[uint64]V),
	}
}

func (m *CompactMap[V]) growLittle(k uint64) {
	if k >= m.littleSize {
		return
	}
	if int(k) < len(m.little) {
		return
	}
	grown := make([]compactSlot[V], k+1)
	copy(grown, m.little)
	m.little = grown
}

// At returns the value for k. It panics if k is absent; callers use
// it only for keys they know were emplaced.
func (m *CompactMap[V]) At(k uint64) V {
	if k < m.littleSize {
		if int(k) < len(m.little) && m.little[k].present {
			return m.little[k].value
		}
		panic("intern: CompactMap.At: key not present")
	}
	v, ok := m.big[k]
	if !ok {
		panic("intern: CompactMap.At: key not present")
	}
	return v
}

// Get returns the value for k and whether it was present.
func (m *CompactMap[V]) Get(k uint64) (V, bool) {
	if k < m.littleSize {
		if int(k) < len(m.little) && m.little[k].present {
			return m.little[k].value, true
		}
		var zero V
		return zero, false
	}
	v, ok := m.big[k]
	return v, ok
}

// TryEmplace inserts (k, v) if k is absent and reports whether it
// inserted.
func (m *CompactMap[V]) TryEmplace(k uint64, v V) bool {
	if k < m.littleSize {
		m.growLittle(k)
		if m.little[k].present {
			return false
		}
		m.little[k] = compactSlot[V]{value: v, present: true}
		return true
	}
	if _, ok := m.big[k]; ok {
		return false
	}
	m.big[k] = v
	return true
}

// EmplaceUnique inserts (k, v), panicking if k is already present.
func (m *CompactMap[V]) EmplaceUnique(k uint64, v V) {
	if !m.TryEmplace(k, v) {
		panic("intern: CompactMap.EmplaceUnique: key already present")
	}
}

// Size returns the number of entries across both tiers.
func (m *CompactMap[V]) Size() int {
	n := len(m.big)
	for _, s := range m.little {
		if s.present {
			n++
		}
	}
	return n
}

// CompactSet is the set counterpart of CompactMap.
type CompactSet struct {
	m *CompactMap[struct{}]
}

// NewCompactSet creates a CompactSet with the given little-tier width.
// Use 0 for DefaultLittleTierSize.
func NewCompactSet(littleSize uint64) *CompactSet {
	return &CompactSet{m: NewCompactMap[struct{}](littleSize)}
}

// Insert adds k to the set, reporting whether it was newly added.
func (s *CompactSet) Insert(k uint64) bool {
	return s.m.TryEmplace(k, struct{}{})
}

// Contains reports whether k is in the set.
func (s *CompactSet) Contains(k uint64) bool {
	_, ok := s.m.Get(k)
	return ok
}

// Size returns the number of elements in the set.
func (s *CompactSet) Size() int { return s.m.Size() }
