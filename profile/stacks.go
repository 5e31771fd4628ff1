package profile

// BuildStack interns frames as a single stack with no shared segments.
// This is always correct; callers that want the storage benefit of
// shared suffixes should use BuildStackWithSharedSuffix instead.
func (p *Profile) BuildStack(kind StackKind, runtimeNameSID StringID, frames []FrameID) StackID {
	return p.InternStack(Stack{
		Kind:           kind,
		RuntimeNameSID: runtimeNameSID,
		LeafFrames:     append([]FrameID(nil), frames...),
	})
}

// BuildStackWithSharedSuffix interns frames, sharing its last
// suffixLen frames as an interned Segment (e.g. the common
// runtime/scheduler tail many stacks in one thread share; frames are
// innermost first, so the shared suffix is the outermost run at the
// end of the slice). suffixLen must be <= len(frames); 0 behaves like
// BuildStack. Segment sharing is purely a storage optimization and
// has no effect on the Stack's identity, which StackFrames always
// reconstructs as the same concatenated frame sequence regardless of
// how it was segmented.
func (p *Profile) BuildStackWithSharedSuffix(kind StackKind, runtimeNameSID StringID, frames []FrameID, suffixLen int) StackID {
	if suffixLen <= 0 || suffixLen > len(frames) {
		return p.BuildStack(kind, runtimeNameSID, frames)
	}
	splitAt := len(frames) - suffixLen
	segID := p.InternSegment(frames[splitAt:])
	return p.InternStack(Stack{
		Kind:           kind,
		RuntimeNameSID: runtimeNameSID,
		LeafFrames:     append([]FrameID(nil), frames[:splitAt]...),
		SegmentIDs:     []SegmentID{segID},
	})
}
