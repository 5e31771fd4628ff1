// Package profile is the canonical in-memory profile model: the
// typed read/write façade over the string/binary/function/inline
// chain/frame/segment/stack/thread/label/sample-key/value-type/
// sample tables described by the profile aggregation spec, plus the
// interning discipline (profile/intern) that keeps every table
// deduplicated and densely indexed.
//
// Id 0 is reserved across every table for which "absent" is
// meaningful: it is pre-seeded with a sentinel record and is never
// assigned to real content.
package profile

// StringID indexes the string table. 0 is the empty string.
type StringID uint32

// BinaryID indexes the binary table. 0 is the absent binary.
type BinaryID uint32

// FunctionID indexes the function table. 0 is the absent function.
type FunctionID uint32

// InlineChainID indexes the inline chain table. 0 is the empty chain
// (used for un-symbolized frames, see ConvertFromPProf's Open
// Question resolution).
type InlineChainID uint32

// FrameID indexes the stack frame table. 0 is the absent frame.
type FrameID uint32

// SegmentID indexes the stack segment table. 0 is the empty segment.
type SegmentID uint32

// StackID indexes the stack table. 0 is the absent stack.
type StackID uint32

// ThreadID indexes the thread table. 0 is the absent thread.
type ThreadID uint32

// LabelID indexes the label table. 0 is never produced by Intern
// (every real label carries a key), but is reserved regardless so
// LabelID behaves like every other reference type.
type LabelID uint32

// SampleKeyID indexes the sample key table. 0 is the absent key.
type SampleKeyID uint32

// ValueTypeIndex indexes Profile.ValueTypes. It is a plain slice
// index, not an interned id, since value types are small,
// profile-scoped, and order-significant (sample values are a
// parallel vector, not id-referenced).
type ValueTypeIndex uint32
