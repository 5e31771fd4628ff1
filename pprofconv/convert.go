// Package pprofconv implements the bijective-up-to-canonicalization
// mapping between the legacy pprof profile schema
// (github.com/google/pprof/profile) and the canonical profile schema
// (github.com/aadil-01/perforator/profile).
package pprofconv

import (
	"strconv"
	"strings"

	ppprof "github.com/google/pprof/profile"

	"github.com/aadil-01/perforator/profile"
	"github.com/aadil-01/perforator/profile/intern"
)

// pprof label key that marks a stack's kind when the
// mapping's binary path doesn't already say so (e.g. interpreter
// profiles emitted without a [kernel]-style synthetic mapping).
const (
	labelKeyStackKind = "stack_kind"
)

// ConvertFromPProf rewrites a pprof profile into canonical form.
//
// A pprof location with an empty Line slice but a non-nil Mapping is
// un-symbolized. This converter materializes it as the absent inline
// chain (id 0), not a synthetic "unknown" source line. Callers that
// want a placeholder
// frame for display should synthesize one themselves downstream of
// this converter, since the canonical schema's id-0-means-absent
// convention already gives them an unambiguous signal to do so.
func ConvertFromPProf(src *ppprof.Profile) (*profile.Profile, error) {
	p := profile.New()

	mappingIDByPProf := intern.NewCompactMap[profile.BinaryID](0)
	for _, m := range src.Mapping {
		bin := profile.Binary{
			PathSID:    p.InternString(m.File),
			BuildIDSID: p.InternString(m.BuildID),
		}
		mappingIDByPProf.EmplaceUnique(m.ID, p.InternBinary(bin))
	}

	functionIDByPProf := intern.NewCompactMap[profile.FunctionID](0)
	for _, f := range src.Function {
		fn := profile.Function{
			NameSID:       p.InternString(f.Name),
			SystemNameSID: p.InternString(f.SystemName),
			FileNameSID:   p.InternString(f.Filename),
			StartLine:     uint32(f.StartLine),
		}
		functionIDByPProf.EmplaceUnique(f.ID, p.InternFunction(fn))
	}

	locationIDByPProf := intern.NewCompactMap[profile.FrameID](0)
	for _, l := range src.Location {
		frame := convertLocation(p, l, mappingIDByPProf, functionIDByPProf)
		locationIDByPProf.EmplaceUnique(l.ID, p.InternFrame(frame))
	}

	for _, st := range src.SampleType {
		p.ValueTypes = append(p.ValueTypes, profile.ValueType{
			TypeSID: p.InternString(st.Type),
			UnitSID: p.InternString(st.Unit),
		})
	}
	for i, st := range src.SampleType {
		if st.Type == src.DefaultSampleType {
			p.DefaultValueTypeIndex = profile.ValueTypeIndex(i)
		}
	}
	// The period type usually coincides with one of the sample types
	// (a cpu profile's "cpu"/"nanoseconds", say); point the index at
	// it. When it doesn't, it gets its own value-type slot and every
	// sample contributes 0 there. A resulting index of 0 that is not a
	// genuine match means no period type was designated.
	if src.PeriodType != nil {
		idx := -1
		for i, vt := range p.ValueTypes {
			if p.StringAt(vt.TypeSID) == src.PeriodType.Type && p.StringAt(vt.UnitSID) == src.PeriodType.Unit {
				idx = i
				break
			}
		}
		if idx < 0 {
			p.ValueTypes = append(p.ValueTypes, profile.ValueType{
				TypeSID: p.InternString(src.PeriodType.Type),
				UnitSID: p.InternString(src.PeriodType.Unit),
			})
			idx = len(p.ValueTypes) - 1
		}
		p.PeriodValueTypeIndex = profile.ValueTypeIndex(idx)
	}
	p.Period = uint64(src.Period)
	for _, c := range src.Comments {
		p.Comments = append(p.Comments, p.InternString(c))
	}

	for _, s := range src.Sample {
		frames := make([]profile.FrameID, len(s.Location))
		for i, l := range s.Location {
			frames[i] = locationIDByPProf.At(l.ID)
		}
		kind := inferStackKind(s)
		stackID := p.BuildStack(kind, 0, frames)

		labelIDs := convertSampleLabels(p, s)
		threadID := convertSampleThread(p, s)
		keyID := p.BuildSampleKey([]profile.StackID{stackID}, threadID, 0, labelIDs)

		values := make([]uint64, len(p.ValueTypes))
		for i, v := range s.Value {
			if i < len(values) {
				values[i] = nonNegative(v)
			}
		}
		p.AddSample(profile.Sample{SampleKeyID: keyID, Values: values})
	}

	return p, nil
}

func convertLocation(p *profile.Profile, l *ppprof.Location, mappingIDByPProf *intern.CompactMap[profile.BinaryID], functionIDByPProf *intern.CompactMap[profile.FunctionID]) profile.StackFrame {
	var binID profile.BinaryID
	var offset int64
	if l.Mapping != nil {
		if id, ok := mappingIDByPProf.Get(l.Mapping.ID); ok {
			binID = id
		}
		offset = int64(l.Address) + int64(l.Mapping.Offset) - int64(l.Mapping.Start)
	}

	var chainID profile.InlineChainID
	if len(l.Line) > 0 {
		lines := make([]profile.SourceLine, len(l.Line))
		// pprof stores the outermost inlined frame last; canonical
		// wants innermost first, so reverse.
		for i, ln := range l.Line {
			out := len(l.Line) - 1 - i
			var fnID profile.FunctionID
			if ln.Function != nil {
				if id, ok := functionIDByPProf.Get(ln.Function.ID); ok {
					fnID = id
				}
			}
			lines[out] = profile.SourceLine{FunctionID: fnID, Line: uint32(ln.Line)}
		}
		chainID = p.InternInlineChain(lines)
	}

	return profile.StackFrame{BinaryID: binID, BinaryOffset: offset, InlineChainID: chainID}
}

func inferStackKind(s *ppprof.Sample) profile.StackKind {
	for _, l := range s.Location {
		if l.Mapping != nil && strings.Contains(l.Mapping.File, "[kernel") {
			return profile.StackKindKernel
		}
	}
	if vs, ok := s.Label[labelKeyStackKind]; ok && len(vs) > 0 {
		switch strings.ToLower(vs[0]) {
		case "python":
			return profile.StackKindPython
		case "php", "other":
			return profile.StackKindOther
		}
	}
	return profile.StackKindNative
}

// threadMetaKeys are the pprof label keys the converter folds into
// the canonical thread record instead of keeping as plain labels;
// ConvertToPProf emits the same keys when flattening a thread back
// out.
var threadMetaKeys = map[string]bool{
	"tid":          true,
	"pid":          true,
	"thread_comm":  true,
	"process_comm": true,
	"workload":     true,
}

func convertSampleLabels(p *profile.Profile, s *ppprof.Sample) []profile.LabelID {
	var out []profile.LabelID
	for k, vs := range s.Label {
		if threadMetaKeys[k] {
			continue
		}
		keySID := p.InternString(k)
		for _, v := range vs {
			out = append(out, p.InternLabel(profile.Label{
				KeySID: keySID,
				Kind:   profile.LabelValueString,
				StrSID: p.InternString(v),
			}))
		}
	}
	for k, vs := range s.NumLabel {
		if threadMetaKeys[k] {
			continue
		}
		keySID := p.InternString(k)
		for _, v := range vs {
			out = append(out, p.InternLabel(profile.Label{
				KeySID: keySID,
				Kind:   profile.LabelValueInt64,
				Int64:  v,
			}))
		}
	}
	return out
}

func convertSampleThread(p *profile.Profile, s *ppprof.Sample) profile.ThreadID {
	tid, hasTid := numericLabel(s, "tid")
	pid, hasPid := numericLabel(s, "pid")
	threadName, hasTName := firstLabel(s, "thread_comm")
	processName, hasPName := firstLabel(s, "process_comm")
	workloads := s.Label["workload"]
	if !hasTid && !hasPid && !hasTName && !hasPName && len(workloads) == 0 {
		return 0
	}

	tr := profile.ThreadRecord{TID: tid, PID: pid}
	if hasTName {
		tr.ThreadNameSID = p.InternString(threadName)
	}
	if hasPName {
		tr.ProcessNameSID = p.InternString(processName)
	}
	for _, w := range workloads {
		tr.Containers = append(tr.Containers, p.InternString(w))
	}
	return p.InternThread(tr)
}

// numericLabel reads key from the sample's numeric labels, falling
// back to parsing a string label with the same key (some producers
// emit tid/pid as strings).
func numericLabel(s *ppprof.Sample, key string) (uint64, bool) {
	if vs, ok := s.NumLabel[key]; ok && len(vs) > 0 {
		return uint64(vs[0]), true
	}
	if v, ok := firstLabel(s, key); ok {
		parsed, err := strconv.ParseUint(v, 10, 64)
		return parsed, err == nil
	}
	return 0, false
}

func firstLabel(s *ppprof.Sample, key string) (string, bool) {
	if vs, ok := s.Label[key]; ok && len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
