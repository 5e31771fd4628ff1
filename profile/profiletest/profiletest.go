// Package profiletest builds representative canonical profiles for use
// in other packages' tests: multiple binaries, functions, inline
// frames, labels, and threads, assembled programmatically rather than
// loaded from a fixture directory. Callers describe samples as
// SampleSpec values and Build interns everything they name.
package profiletest

import "github.com/aadil-01/perforator/profile"

// Stack describes one call stack to intern: a function name per
// frame, outermost first, each attributed to the same binary/file.
type Stack struct {
	Binary    string
	File      string
	Functions []string
}

// SampleSpec describes one sample to add to a built profile.
type SampleSpec struct {
	Stacks      []Stack
	ThreadTID   uint64
	ProcessID   uint64
	ThreadName  string
	ProcessName string
	TimestampNs int64
	Labels      map[string]string
	Values      []uint64
}

// Build constructs a Profile with a single "samples"/"count" value
// type and one sample per spec, interning whatever binaries,
// functions, frames, stacks, threads, and labels each spec names.
// Specs that name the same binary/function/thread string intern to
// the same id, so callers can build overlapping-stack scenarios by
// reusing names across specs.
func Build(specs ...SampleSpec) *profile.Profile {
	p := profile.New()
	p.ValueTypes = []profile.ValueType{{
		TypeSID: p.InternString("samples"),
		UnitSID: p.InternString("count"),
	}}

	for _, spec := range specs {
		stackIDs := make([]profile.StackID, 0, len(spec.Stacks))
		for _, st := range spec.Stacks {
			stackIDs = append(stackIDs, internStack(p, st))
		}

		var threadID profile.ThreadID
		if spec.ThreadTID != 0 || spec.ThreadName != "" {
			threadID = p.InternThread(profile.ThreadRecord{
				TID:            spec.ThreadTID,
				PID:            spec.ProcessID,
				ThreadNameSID:  p.InternString(spec.ThreadName),
				ProcessNameSID: p.InternString(spec.ProcessName),
			})
		}

		labelIDs := make([]profile.LabelID, 0, len(spec.Labels))
		for k, v := range spec.Labels {
			labelIDs = append(labelIDs, p.InternLabel(profile.Label{
				KeySID: p.InternString(k),
				Kind:   profile.LabelValueString,
				StrSID: p.InternString(v),
			}))
		}

		key := p.BuildSampleKey(stackIDs, threadID, spec.TimestampNs, labelIDs)
		values := spec.Values
		if values == nil {
			values = []uint64{1}
		}
		p.AddSample(profile.Sample{SampleKeyID: key, Values: values})
	}

	return p
}

func internStack(p *profile.Profile, st Stack) profile.StackID {
	var bin profile.BinaryID
	if st.Binary != "" {
		bin = p.InternBinary(profile.Binary{PathSID: p.InternString(st.Binary)})
	}

	frames := make([]profile.FrameID, 0, len(st.Functions))
	for i := len(st.Functions) - 1; i >= 0; i-- {
		fn := p.InternFunction(profile.Function{
			NameSID:     p.InternString(st.Functions[i]),
			FileNameSID: p.InternString(st.File),
		})
		inline := p.InternInlineChain([]profile.SourceLine{{FunctionID: fn, Line: uint32(i + 1)}})
		frames = append(frames, p.InternFrame(profile.StackFrame{BinaryID: bin, InlineChainID: inline}))
	}

	// Share everything below the leaf as a suffix segment, so tests
	// built on this package exercise segmented stacks (and the sharing
	// of those segments across stacks with a common outermost run), not
	// just flat frame lists.
	return p.BuildStackWithSharedSuffix(profile.StackKindNative, 0, frames, len(frames)-1)
}

// Split builds one single-sample profile per spec, each in a fresh
// Profile, so the results share no interned ids with each other. This gives merge/parallelmerge
// tests independently-constructed inputs that nonetheless name the
// same logical strings/functions/stacks, the way real per-process
// profiles would.
func Split(specs []SampleSpec) []*profile.Profile {
	out := make([]*profile.Profile, 0, len(specs))
	for _, spec := range specs {
		out = append(out, Build(spec))
	}
	return out
}
