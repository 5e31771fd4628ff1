package profile

// Binary is (path_sid, build_id_sid); identity is the pair.
type Binary struct {
	PathSID    StringID
	BuildIDSID StringID
}

// Function is (name_sid, system_name_sid, file_name_sid, start_line);
// identity is the 4-tuple.
type Function struct {
	NameSID       StringID
	SystemNameSID StringID
	FileNameSID   StringID
	StartLine     uint32
}

// SourceLine is (function_id, line, column), an element of an inline
// chain.
type SourceLine struct {
	FunctionID FunctionID
	Line       uint32
	Column     uint32
}

// StackFrame is (binary_id, binary_offset, inline_chain_id).
// BinaryOffset is the file offset into the binary, not the runtime
// virtual address; ConvertFromPProf computes it as
// address + file_offset - memory_start (signed; may be negative).
type StackFrame struct {
	BinaryID      BinaryID
	BinaryOffset  int64
	InlineChainID InlineChainID
}

// StackKind closes the set of stack kinds a canonical stack can carry.
type StackKind int

const (
	StackKindNative StackKind = iota
	StackKindPython
	StackKindKernel
	StackKindOther
)

func (k StackKind) String() string {
	switch k {
	case StackKindNative:
		return "Native"
	case StackKindPython:
		return "Python"
	case StackKindKernel:
		return "Kernel"
	case StackKindOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Stack is (kind, runtime_name_sid, frames), innermost frame first.
// Storage-wise a stack is split into the LeafFrames unique to it (the
// innermost run, leaf first) followed by an ordered list of shared
// SegmentIDs holding the common outermost suffix; StackFrames
// reconstructs the full sequence as LeafFrames then the segments'
// contents in order. Identity (for interning purposes) is the
// reconstructed frame sequence plus Kind and RuntimeNameSID.
// Segmenting is a storage optimization and must never change what two
// stacks are considered equal.
type Stack struct {
	Kind           StackKind
	RuntimeNameSID StringID
	LeafFrames     []FrameID
	SegmentIDs     []SegmentID
}

// ThreadRecord is (tid, thread_name_sid, pid, process_name_sid,
// containers); identity is the 5-tuple with Containers treated as a
// set (order-independent, deduplicated before interning).
type ThreadRecord struct {
	TID            uint64
	ThreadNameSID  StringID
	PID            uint64
	ProcessNameSID StringID
	Containers     []StringID
}

// LabelValueKind closes the set of label value shapes.
type LabelValueKind int

const (
	LabelValueString LabelValueKind = iota
	LabelValueInt64
	LabelValueFloat64
)

// Label is (key_sid, value) where value is the tagged union
// {string_sid | i64 | f64}.
type Label struct {
	KeySID  StringID
	Kind    LabelValueKind
	StrSID  StringID
	Int64   int64
	Float64 float64
}

// ValueType is (type_sid, unit_sid), e.g. ("cpu", "cycles").
type ValueType struct {
	TypeSID StringID
	UnitSID StringID
}

// SampleKey is (stack_ids, thread_id, timestamp_ns, labels). Labels
// must already be sorted by key_sid ascending and deduplicated by
// the time a SampleKey is constructed; see BuildSampleKey.
type SampleKey struct {
	StackIDs    []StackID
	ThreadID    ThreadID
	TimestampNs int64
	LabelIDs    []LabelID
}

// Sample is (sample_key_id, values); len(Values) == len(valueTypes).
type Sample struct {
	SampleKeyID SampleKeyID
	Values      []uint64
}
