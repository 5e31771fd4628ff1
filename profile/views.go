package profile

// StackFrameView is an O(1) read view over a stack frame: it holds no
// copy of backing data, only a (*Profile, FrameID) pair.
type StackFrameView struct {
	p  *Profile
	id FrameID
}

// Frame returns a view over id.
func (p *Profile) Frame(id FrameID) StackFrameView { return StackFrameView{p: p, id: id} }

// Binary returns the frame's binary record.
func (v StackFrameView) Binary() Binary { return v.p.BinaryAt(v.p.FrameAt(v.id).BinaryID) }

// BinaryOffset returns the frame's file offset into its binary.
func (v StackFrameView) BinaryOffset() int64 { return v.p.FrameAt(v.id).BinaryOffset }

// InlineChain returns a view over the frame's inline chain.
func (v StackFrameView) InlineChain() InlineChainView {
	return InlineChainView{p: v.p, id: v.p.FrameAt(v.id).InlineChainID}
}

// InlineChainView is an O(1) read view over an inline chain.
type InlineChainView struct {
	p  *Profile
	id InlineChainID
}

// Lines returns views over the chain's source lines, innermost first.
func (v InlineChainView) Lines() []SourceLineView {
	lines := v.p.InlineChainAt(v.id)
	out := make([]SourceLineView, len(lines))
	for i, l := range lines {
		out[i] = SourceLineView{p: v.p, line: l}
	}
	return out
}

// Empty reports whether this is the absent (id 0) inline chain.
func (v InlineChainView) Empty() bool { return v.id == 0 }

// SourceLineView is a read view over one source line of an inline
// chain.
type SourceLineView struct {
	p    *Profile
	line SourceLine
}

// Function returns a view over the line's function.
func (v SourceLineView) Function() Function { return v.p.FunctionAt(v.line.FunctionID) }

// Line returns the 1-based source line number.
func (v SourceLineView) Line() uint32 { return v.line.Line }

// Column returns the source column, or 0 if unknown.
func (v SourceLineView) Column() uint32 { return v.line.Column }

// StackView is an O(1) read view over a stack.
type StackView struct {
	p  *Profile
	id StackID
}

// StackView returns a view over id.
func (p *Profile) StackView(id StackID) StackView { return StackView{p: p, id: id} }

// Kind returns the stack's kind.
func (v StackView) Kind() StackKind { return v.p.StackAt(v.id).Kind }

// RuntimeName returns the stack's runtime name string.
func (v StackView) RuntimeName() string {
	return v.p.StringAt(v.p.StackAt(v.id).RuntimeNameSID)
}

// Frames returns views over the stack's frames, innermost first.
func (v StackView) Frames() []StackFrameView {
	ids := v.p.StackFrames(v.id)
	out := make([]StackFrameView, len(ids))
	for i, id := range ids {
		out[i] = v.p.Frame(id)
	}
	return out
}

// SampleView is an O(1) read view over a sample.
type SampleView struct {
	p   *Profile
	idx int
}

// SampleAt returns a view over the sample at index idx.
func (p *Profile) SampleAt(idx int) SampleView { return SampleView{p: p, idx: idx} }

// NumSamples returns the number of samples in the profile.
func (p *Profile) NumSamples() int { return len(p.Samples) }

// Values returns the sample's parallel value vector.
func (v SampleView) Values() []uint64 { return v.p.Samples[v.idx].Values }

// Key returns the sample's sample key.
func (v SampleView) Key() SampleKey { return v.p.SampleKeyAt(v.p.Samples[v.idx].SampleKeyID) }
