// Package validate implements the structural and index-range
// invariant checks for canonical profiles.
package validate

import (
	"github.com/aadil-01/perforator/perrors"
	"github.com/aadil-01/perforator/profile"
)

// Options configures which validation modes run.
type Options struct {
	// CheckIndices enables index-range checking (every id reference
	// less than the target table size). Structural checks always run.
	CheckIndices bool
}

// Validate checks p against the structural invariants of the
// canonical model. It returns the first violation found and does not
// mutate p.
func Validate(p *profile.Profile, opts Options) error {
	if err := checkSamples(p); err != nil {
		return err
	}
	if err := checkSampleKeyLabelsSorted(p); err != nil {
		return err
	}
	if err := checkStackSegments(p); err != nil {
		return err
	}
	if opts.CheckIndices {
		if err := checkIndices(p); err != nil {
			return err
		}
	}
	return nil
}

func checkSamples(p *profile.Profile) error {
	nTypes := len(p.ValueTypes)
	for i := 0; i < p.NumSamples(); i++ {
		s := p.SampleAt(i)
		if len(s.Values()) != nTypes {
			return perrors.WrapTable(perrors.Invariant, "samples",
				"values length does not match value type count", nil)
		}
	}
	return nil
}

func checkSampleKeyLabelsSorted(p *profile.Profile) error {
	for i := 1; i < p.NumSampleKeys(); i++ {
		k := p.SampleKeyAt(profile.SampleKeyID(i))
		for j := 1; j < len(k.LabelIDs); j++ {
			prev := p.LabelAt(k.LabelIDs[j-1])
			cur := p.LabelAt(k.LabelIDs[j])
			if cur.KeySID < prev.KeySID {
				return perrors.WrapTable(perrors.Invariant, "sample_keys",
					"labels not sorted by key_sid ascending", nil)
			}
			if cur.KeySID == prev.KeySID && cur == prev {
				return perrors.WrapTable(perrors.Invariant, "sample_keys",
					"duplicate label with identical key and value", nil)
			}
		}
	}
	return nil
}

// checkStackSegments verifies that a stack's declared segments,
// concatenated, reconstruct a frame sequence with no overlap: this is
// automatically true by construction (StackFrames simply concatenates
// leaf frames then segment contents), so this check instead verifies
// every referenced segment id is in range (the structural half of the
// check; per-frame index ranges live in checkIndices).
func checkStackSegments(p *profile.Profile) error {
	for i := 1; i < p.NumStacks(); i++ {
		s := p.StackAt(profile.StackID(i))
		for _, segID := range s.SegmentIDs {
			if int(segID) >= p.NumSegments() {
				return perrors.WrapTable(perrors.Invariant, "stacks",
					"segment id out of range", nil)
			}
		}
	}
	return nil
}

func checkIndices(p *profile.Profile) error {
	for i := 1; i < p.NumBinaries(); i++ {
		b := p.BinaryAt(profile.BinaryID(i))
		if err := checkStringRef(p, "binaries", b.PathSID); err != nil {
			return err
		}
		if err := checkStringRef(p, "binaries", b.BuildIDSID); err != nil {
			return err
		}
	}
	for i := 1; i < p.NumFunctions(); i++ {
		f := p.FunctionAt(profile.FunctionID(i))
		if err := checkStringRef(p, "functions", f.NameSID); err != nil {
			return err
		}
		if err := checkStringRef(p, "functions", f.SystemNameSID); err != nil {
			return err
		}
		if err := checkStringRef(p, "functions", f.FileNameSID); err != nil {
			return err
		}
	}
	for i := 1; i < p.NumInlineChains(); i++ {
		for _, l := range p.InlineChainAt(profile.InlineChainID(i)) {
			if int(l.FunctionID) >= p.NumFunctions() {
				return perrors.WrapTable(perrors.Invariant, "inline_chains", "function id out of range", nil)
			}
		}
	}
	for i := 1; i < p.NumFrames(); i++ {
		fr := p.FrameAt(profile.FrameID(i))
		if int(fr.BinaryID) >= p.NumBinaries() {
			return perrors.WrapTable(perrors.Invariant, "frames", "binary id out of range", nil)
		}
		if int(fr.InlineChainID) >= p.NumInlineChains() {
			return perrors.WrapTable(perrors.Invariant, "frames", "inline chain id out of range", nil)
		}
	}
	for i := 1; i < p.NumSegments(); i++ {
		for _, f := range p.SegmentAt(profile.SegmentID(i)) {
			if int(f) >= p.NumFrames() {
				return perrors.WrapTable(perrors.Invariant, "segments", "frame id out of range", nil)
			}
		}
	}
	for i := 1; i < p.NumStacks(); i++ {
		s := p.StackAt(profile.StackID(i))
		if err := checkStringRef(p, "stacks", s.RuntimeNameSID); err != nil {
			return err
		}
		for _, f := range s.LeafFrames {
			if int(f) >= p.NumFrames() {
				return perrors.WrapTable(perrors.Invariant, "stacks", "frame id out of range", nil)
			}
		}
	}
	for i := 1; i < p.NumThreads(); i++ {
		t := p.ThreadAt(profile.ThreadID(i))
		if err := checkStringRef(p, "threads", t.ThreadNameSID); err != nil {
			return err
		}
		if err := checkStringRef(p, "threads", t.ProcessNameSID); err != nil {
			return err
		}
		for _, c := range t.Containers {
			if err := checkStringRef(p, "threads", c); err != nil {
				return err
			}
		}
	}
	for i := 1; i < p.NumLabels(); i++ {
		l := p.LabelAt(profile.LabelID(i))
		if err := checkStringRef(p, "labels", l.KeySID); err != nil {
			return err
		}
		if l.Kind == profile.LabelValueString {
			if err := checkStringRef(p, "labels", l.StrSID); err != nil {
				return err
			}
		}
	}
	for i := 1; i < p.NumSampleKeys(); i++ {
		k := p.SampleKeyAt(profile.SampleKeyID(i))
		for _, s := range k.StackIDs {
			if int(s) >= p.NumStacks() {
				return perrors.WrapTable(perrors.Invariant, "sample_keys", "stack id out of range", nil)
			}
		}
		if int(k.ThreadID) >= p.NumThreads() {
			return perrors.WrapTable(perrors.Invariant, "sample_keys", "thread id out of range", nil)
		}
		for _, l := range k.LabelIDs {
			if int(l) >= p.NumLabels() {
				return perrors.WrapTable(perrors.Invariant, "sample_keys", "label id out of range", nil)
			}
		}
	}
	for i := 0; i < p.NumSamples(); i++ {
		key := p.Samples[i].SampleKeyID
		if int(key) >= p.NumSampleKeys() {
			return perrors.WrapTable(perrors.Invariant, "samples", "sample key id out of range", nil)
		}
	}
	for _, c := range p.Comments {
		if err := checkStringRef(p, "comments", c); err != nil {
			return err
		}
	}
	return nil
}

func checkStringRef(p *profile.Profile, table string, s profile.StringID) error {
	if int(s) >= p.NumStrings() {
		return perrors.WrapTable(perrors.Invariant, table, "string id out of range", nil)
	}
	return nil
}
