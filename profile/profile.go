package profile

import (
	"encoding/binary"
	"sort"
	"strconv"
	"strings"

	"github.com/aadil-01/perforator/profile/intern"
)

// Profile is the top-level canonical entity: every table described by
// the data model, plus profile-scoped metadata (comments, the
// default/period value type indices, and the sampling period).
//
// A Profile is built incrementally through its Intern*/Add* methods
// during a merge session and is safe to read concurrently only after
// construction has stopped (it is not a concurrent data structure;
// see package merge and package parallelmerge for how concurrent
// construction is coordinated).
type Profile struct {
	strings      *intern.Table[string]
	binaries     *intern.Table[Binary]
	functions    *intern.Table[Function]
	inlineChains *intern.SliceTable[SourceLine]
	frames       *intern.Table[StackFrame]
	segments     *intern.SliceTable[FrameID]
	stacks       *intern.KeyedTable[Stack]
	threads      *intern.KeyedTable[ThreadRecord]
	labels       *intern.Table[Label]
	sampleKeys   *intern.KeyedTable[SampleKey]

	ValueTypes []ValueType
	Samples    []Sample
	Comments   []StringID

	DefaultValueTypeIndex ValueTypeIndex
	PeriodValueTypeIndex  ValueTypeIndex
	Period                uint64
}

// New creates an empty Profile with every sentinel pre-seeded at id 0.
func New() *Profile {
	p := &Profile{
		strings:      intern.NewTable[string](""),
		binaries:     intern.NewTable(Binary{}),
		functions:    intern.NewTable(Function{}),
		inlineChains: intern.NewSliceTable(encodeSourceLine),
		frames:       intern.NewTable(StackFrame{}),
		segments:     intern.NewSliceTable(encodeFrameID),
		labels:       intern.NewTable(Label{}),
	}
	p.stacks = intern.NewKeyedTable(Stack{}, p.stackKey)
	p.threads = intern.NewKeyedTable(ThreadRecord{}, threadKey)
	p.sampleKeys = intern.NewKeyedTable(SampleKey{}, sampleKeyKey)
	return p
}

func encodeSourceLine(buf *[]byte, l SourceLine) {
	var tmp [12]byte
	binary.LittleEndian.PutUint32(tmp[0:4], uint32(l.FunctionID))
	binary.LittleEndian.PutUint32(tmp[4:8], l.Line)
	binary.LittleEndian.PutUint32(tmp[8:12], l.Column)
	*buf = append(*buf, tmp[:]...)
}

func encodeFrameID(buf *[]byte, f FrameID) {
	intern.EncodeUint32(buf, uint32(f))
}

// --- interning entry points -------------------------------------------------

// InternString interns a byte string into the string table.
func (p *Profile) InternString(s string) StringID {
	return StringID(p.strings.Intern(s))
}

// InternBinary interns a (path, build id) pair.
func (p *Profile) InternBinary(b Binary) BinaryID {
	return BinaryID(p.binaries.Intern(b))
}

// InternFunction interns a function record.
func (p *Profile) InternFunction(f Function) FunctionID {
	return FunctionID(p.functions.Intern(f))
}

// InternInlineChain interns an ordered, innermost-first source line
// sequence. An empty chain always interns to id 0.
func (p *Profile) InternInlineChain(lines []SourceLine) InlineChainID {
	return InlineChainID(p.inlineChains.Intern(lines))
}

// InternFrame interns a stack frame record.
func (p *Profile) InternFrame(f StackFrame) FrameID {
	return FrameID(p.frames.Intern(f))
}

// InternSegment interns a contiguous frame run shared across stacks.
func (p *Profile) InternSegment(frames []FrameID) SegmentID {
	return SegmentID(p.segments.Intern(frames))
}

// InternStack interns a stack. Callers are responsible for having
// already partitioned shared suffixes into SegmentIDs (see
// BuildStackWithSharedSuffix); identity does not depend on how a
// stack was segmented, only on its reconstructed frame sequence,
// kind and runtime name.
func (p *Profile) InternStack(s Stack) StackID {
	return StackID(p.stacks.Intern(s))
}

// InternThread interns a thread record, treating Containers as a set:
// it is sorted and deduplicated before the lookup key is built so
// that insertion order of containers never affects identity.
func (p *Profile) InternThread(t ThreadRecord) ThreadID {
	t.Containers = normalizeContainerSet(t.Containers)
	return ThreadID(p.threads.Intern(t))
}

func normalizeContainerSet(in []StringID) []StringID {
	if len(in) == 0 {
		return nil
	}
	out := append([]StringID(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	dedup := out[:1]
	for _, v := range out[1:] {
		if v != dedup[len(dedup)-1] {
			dedup = append(dedup, v)
		}
	}
	return dedup
}

// InternLabel interns a single (key, value) label.
func (p *Profile) InternLabel(l Label) LabelID {
	return LabelID(p.labels.Intern(l))
}

// BuildSampleKey sorts and deduplicates labelIDs by their key string
// id, then interns the resulting sample key. Two labels with the same
// key_sid and value_kind/value collapse to one; two labels with the
// same key_sid but different values are both kept (ordered by key_sid,
// ties broken by label id).
func (p *Profile) BuildSampleKey(stackIDs []StackID, threadID ThreadID, timestampNs int64, labelIDs []LabelID) SampleKeyID {
	sorted := p.sortAndDedupLabels(labelIDs)
	return SampleKeyID(p.sampleKeys.Intern(SampleKey{
		StackIDs:    append([]StackID(nil), stackIDs...),
		ThreadID:    threadID,
		TimestampNs: timestampNs,
		LabelIDs:    sorted,
	}))
}

func (p *Profile) sortAndDedupLabels(labelIDs []LabelID) []LabelID {
	if len(labelIDs) == 0 {
		return nil
	}
	sorted := append([]LabelID(nil), labelIDs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ki, kj := p.LabelAt(sorted[i]).KeySID, p.LabelAt(sorted[j]).KeySID
		if ki != kj {
			return ki < kj
		}
		return sorted[i] < sorted[j]
	})
	out := sorted[:0:0]
	for _, id := range sorted {
		if len(out) > 0 && labelsCoincide(p.LabelAt(out[len(out)-1]), p.LabelAt(id)) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func labelsCoincide(a, b Label) bool {
	return a == b
}

// AddSample appends src to the profile's sample list, or, if
// src.SampleKeyID already has a sample in this profile, combines
// values into the existing one with saturating addition. Returns the
// (possibly pre-existing) sample's index.
//
// This does a linear scan over existing samples and is meant for
// light-weight callers (the pprof/canonical codecs, tests). Package
// merge maintains its own sample_key_id → index hash map instead, so
// that the dominant merge path stays amortized O(1) per combine; see
// AppendSample/CombineValues.
func (p *Profile) AddSample(src Sample) int {
	for i := range p.Samples {
		if p.Samples[i].SampleKeyID == src.SampleKeyID {
			CombineValues(p.Samples[i].Values, src.Values)
			return i
		}
	}
	return p.AppendSample(src)
}

// AppendSample appends src unconditionally, without checking for an
// existing sample with the same key. Callers that maintain their own
// sample_key_id to sample-index map (package merge) use this directly.
func (p *Profile) AppendSample(src Sample) int {
	cp := Sample{SampleKeyID: src.SampleKeyID, Values: append([]uint64(nil), src.Values...)}
	p.Samples = append(p.Samples, cp)
	return len(p.Samples) - 1
}

// CombineValues adds add into dst element-wise with saturating
// addition (dst[i] = min(dst[i]+add[i], math.MaxUint64)). Indices
// beyond len(add) are left unchanged.
func CombineValues(dst []uint64, add []uint64) {
	for i := range dst {
		if i >= len(add) {
			return
		}
		sum := dst[i] + add[i]
		if sum < dst[i] { // overflow
			sum = ^uint64(0)
		}
		dst[i] = sum
	}
}

// --- accessors ---------------------------------------------------------

func (p *Profile) StringAt(id StringID) string           { return p.strings.At(uint32(id)) }
func (p *Profile) NumStrings() int                        { return p.strings.Len() }
func (p *Profile) BinaryAt(id BinaryID) Binary             { return p.binaries.At(uint32(id)) }
func (p *Profile) NumBinaries() int                        { return p.binaries.Len() }
func (p *Profile) FunctionAt(id FunctionID) Function       { return p.functions.At(uint32(id)) }
func (p *Profile) NumFunctions() int                       { return p.functions.Len() }
func (p *Profile) InlineChainAt(id InlineChainID) []SourceLine {
	return p.inlineChains.At(uint32(id))
}
func (p *Profile) NumInlineChains() int             { return p.inlineChains.Len() }
func (p *Profile) FrameAt(id FrameID) StackFrame    { return p.frames.At(uint32(id)) }
func (p *Profile) NumFrames() int                   { return p.frames.Len() }
func (p *Profile) SegmentAt(id SegmentID) []FrameID { return p.segments.At(uint32(id)) }
func (p *Profile) NumSegments() int                 { return p.segments.Len() }
func (p *Profile) StackAt(id StackID) Stack         { return p.stacks.At(uint32(id)) }
func (p *Profile) NumStacks() int                   { return p.stacks.Len() }
func (p *Profile) ThreadAt(id ThreadID) ThreadRecord { return p.threads.At(uint32(id)) }
func (p *Profile) NumThreads() int                   { return p.threads.Len() }
func (p *Profile) LabelAt(id LabelID) Label          { return p.labels.At(uint32(id)) }
func (p *Profile) NumLabels() int                    { return p.labels.Len() }
func (p *Profile) SampleKeyAt(id SampleKeyID) SampleKey {
	return p.sampleKeys.At(uint32(id))
}
func (p *Profile) NumSampleKeys() int { return p.sampleKeys.Len() }

// StackFrames returns the full innermost-first frame sequence for a
// stack: its unique leaf frames followed by the shared-suffix
// segments, concatenated in order.
func (p *Profile) StackFrames(id StackID) []FrameID {
	s := p.StackAt(id)
	out := make([]FrameID, 0, len(s.LeafFrames))
	out = append(out, s.LeafFrames...)
	for _, segID := range s.SegmentIDs {
		out = append(out, p.SegmentAt(segID)...)
	}
	return out
}

// --- keyed-table canonical key builders ---------------------------------

// stackKey keys a stack by its reconstructed frame sequence, not by
// its segment ids, so two stacks that concatenate to the same frames
// intern to the same id no matter how each was segmented.
func (p *Profile) stackKey(s Stack) string {
	var b strings.Builder
	b.WriteByte(byte(s.Kind))
	b.WriteByte('|')
	writeUint(&b, uint64(s.RuntimeNameSID))
	b.WriteByte('|')
	for _, f := range s.LeafFrames {
		writeUint(&b, uint64(f))
		b.WriteByte(',')
	}
	for _, seg := range s.SegmentIDs {
		for _, f := range p.segments.At(uint32(seg)) {
			writeUint(&b, uint64(f))
			b.WriteByte(',')
		}
	}
	return b.String()
}

func threadKey(t ThreadRecord) string {
	var b strings.Builder
	writeUint(&b, t.TID)
	b.WriteByte('|')
	writeUint(&b, uint64(t.ThreadNameSID))
	b.WriteByte('|')
	writeUint(&b, t.PID)
	b.WriteByte('|')
	writeUint(&b, uint64(t.ProcessNameSID))
	b.WriteByte('|')
	for i, c := range t.Containers {
		if i > 0 {
			b.WriteByte(',')
		}
		writeUint(&b, uint64(c))
	}
	return b.String()
}

func sampleKeyKey(k SampleKey) string {
	var b strings.Builder
	for i, s := range k.StackIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		writeUint(&b, uint64(s))
	}
	b.WriteByte('|')
	writeUint(&b, uint64(k.ThreadID))
	b.WriteByte('|')
	writeInt(&b, k.TimestampNs)
	b.WriteByte('|')
	for i, l := range k.LabelIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		writeUint(&b, uint64(l))
	}
	return b.String()
}

func writeUint(b *strings.Builder, v uint64) {
	var tmp [20]byte
	b.Write(strconv.AppendUint(tmp[:0], v, 16))
}

func writeInt(b *strings.Builder, v int64) {
	var tmp [20]byte
	b.Write(strconv.AppendInt(tmp[:0], v, 16))
}
