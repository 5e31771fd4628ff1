package merge

import "github.com/aadil-01/perforator/profile"

// translation holds the per-input id→id maps a single Add call needs.
// It is reset (not reallocated, when capacity allows) at the start of
// every Add via a colega/zeropool.Pool, so repeated Adds reuse the
// backing arrays.
//
// Each table is a pair of parallel slices indexed by the *input*
// profile's id: done[id] reports whether that id has already been
// translated, id2[id] holds its output id once it has. Input ids from
// a parsed canonical profile are already dense small integers, so a
// slice is strictly simpler and faster than a CompactMap here; the
// CompactMap data structure in profile/intern is reserved for the
// pprof→canonical converter, where the source ids are genuinely
// producer-chosen and may be sparse.
type translation struct {
	stringDone []bool
	stringID   []profile.StringID

	binaryDone []bool
	binaryID   []profile.BinaryID

	functionDone []bool
	functionID   []profile.FunctionID

	inlineChainDone []bool
	inlineChainID   []profile.InlineChainID

	frameDone []bool
	frameID   []profile.FrameID

	segmentDone []bool
	segmentID   []profile.SegmentID

	stackDone []bool
	stackID   []profile.StackID

	threadDone []bool
	threadID   []profile.ThreadID

	labelDone []bool
	labelID   []profile.LabelID

	// valueTypeFor maps a source value-type index to the output's
	// value-type index. Rebuilt once per Add in reconcileValueTypes,
	// which fails the Add instead when a source type is absent from the
	// output's fixed list.
	valueTypeFor []int
}

func newTranslation() *translation { return &translation{} }

func (t *translation) reset(src *profile.Profile) {
	t.stringDone = ensureBoolLen(t.stringDone, src.NumStrings())
	t.stringID = ensureLen(t.stringID, src.NumStrings())

	t.binaryDone = ensureBoolLen(t.binaryDone, src.NumBinaries())
	t.binaryID = ensureLen(t.binaryID, src.NumBinaries())

	t.functionDone = ensureBoolLen(t.functionDone, src.NumFunctions())
	t.functionID = ensureLen(t.functionID, src.NumFunctions())

	t.inlineChainDone = ensureBoolLen(t.inlineChainDone, src.NumInlineChains())
	t.inlineChainID = ensureLen(t.inlineChainID, src.NumInlineChains())

	t.frameDone = ensureBoolLen(t.frameDone, src.NumFrames())
	t.frameID = ensureLen(t.frameID, src.NumFrames())

	t.segmentDone = ensureBoolLen(t.segmentDone, src.NumSegments())
	t.segmentID = ensureLen(t.segmentID, src.NumSegments())

	t.stackDone = ensureBoolLen(t.stackDone, src.NumStacks())
	t.stackID = ensureLen(t.stackID, src.NumStacks())

	t.threadDone = ensureBoolLen(t.threadDone, src.NumThreads())
	t.threadID = ensureLen(t.threadID, src.NumThreads())

	t.labelDone = ensureBoolLen(t.labelDone, src.NumLabels())
	t.labelID = ensureLen(t.labelID, src.NumLabels())

	t.valueTypeFor = nil

	// id 0 always translates to id 0 (absent stays absent).
	t.stringDone[0] = true
	t.binaryDone[0] = true
	t.functionDone[0] = true
	t.inlineChainDone[0] = true
	t.frameDone[0] = true
	t.segmentDone[0] = true
	t.stackDone[0] = true
	t.threadDone[0] = true
	t.labelDone[0] = true
}

func ensureLen[T any](s []T, n int) []T {
	if cap(s) < n {
		s = make([]T, n)
	} else {
		s = s[:n]
		var zero T
		for i := range s {
			s[i] = zero
		}
	}
	return s
}

func ensureBoolLen(s []bool, n int) []bool {
	if cap(s) < n {
		return make([]bool, n)
	}
	s = s[:n]
	clear(s)
	return s
}
