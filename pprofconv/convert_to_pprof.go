package pprofconv

import (
	ppprof "github.com/google/pprof/profile"

	"github.com/aadil-01/perforator/profile"
)

// ConvertToPProf performs the inverse of ConvertFromPProf, assigning
// fresh dense pprof ids starting at 1 (0 is reserved in pprof, same as
// in the canonical schema). Because multiple canonical stacks may
// share segments, each canonical stack is flattened into its own
// independent pprof Location_id[] sequence; segment sharing is a
// canonical-side storage optimization with no pprof equivalent.
func ConvertToPProf(p *profile.Profile) (*ppprof.Profile, error) {
	out := &ppprof.Profile{}

	mappings := make([]*ppprof.Mapping, p.NumBinaries())
	for i := 1; i < p.NumBinaries(); i++ {
		b := p.BinaryAt(profile.BinaryID(i))
		m := &ppprof.Mapping{
			ID:      uint64(i),
			File:    p.StringAt(b.PathSID),
			BuildID: p.StringAt(b.BuildIDSID),
		}
		mappings[i] = m
		out.Mapping = append(out.Mapping, m)
	}

	functions := make([]*ppprof.Function, p.NumFunctions())
	for i := 1; i < p.NumFunctions(); i++ {
		f := p.FunctionAt(profile.FunctionID(i))
		fn := &ppprof.Function{
			ID:         uint64(i),
			Name:       p.StringAt(f.NameSID),
			SystemName: p.StringAt(f.SystemNameSID),
			Filename:   p.StringAt(f.FileNameSID),
			StartLine:  int64(f.StartLine),
		}
		functions[i] = fn
		out.Function = append(out.Function, fn)
	}

	locations := make([]*ppprof.Location, p.NumFrames())
	for i := 1; i < p.NumFrames(); i++ {
		fr := p.FrameAt(profile.FrameID(i))
		loc := &ppprof.Location{ID: uint64(i)}
		if fr.BinaryID != 0 {
			// The canonical schema keeps only the binary-relative file
			// offset (see StackFrame.BinaryOffset), not the mapping's
			// Start/Limit/Offset triple, so the pprof mapping this
			// converter emits always has Start=0, Offset=0: the
			// Location's Address is the binary offset itself.
			loc.Mapping = mappings[fr.BinaryID]
			loc.Address = uint64(fr.BinaryOffset)
		}
		chain := p.InlineChainAt(fr.InlineChainID)
		// canonical stores innermost first; pprof wants outermost last,
		// i.e. the same reversal ConvertFromPProf applies, run backward.
		loc.Line = make([]ppprof.Line, len(chain))
		for j, l := range chain {
			revIdx := len(chain) - 1 - j
			var fn *ppprof.Function
			if l.FunctionID != 0 {
				fn = functions[l.FunctionID]
			}
			loc.Line[revIdx] = ppprof.Line{Function: fn, Line: int64(l.Line)}
		}
		locations[i] = loc
		out.Location = append(out.Location, loc)
	}

	// Every canonical value type becomes a pprof sample type; the
	// period type, when designated (index 0 means none), additionally
	// becomes PeriodType. Keeping the full column set means samples
	// need no reshuffling on the way out.
	for _, vt := range p.ValueTypes {
		out.SampleType = append(out.SampleType, &ppprof.ValueType{
			Type: p.StringAt(vt.TypeSID),
			Unit: p.StringAt(vt.UnitSID),
		})
	}
	if p.PeriodValueTypeIndex != 0 && int(p.PeriodValueTypeIndex) < len(p.ValueTypes) {
		pvt := p.ValueTypes[p.PeriodValueTypeIndex]
		out.PeriodType = &ppprof.ValueType{Type: p.StringAt(pvt.TypeSID), Unit: p.StringAt(pvt.UnitSID)}
	}
	if int(p.DefaultValueTypeIndex) < len(p.ValueTypes) {
		dvt := p.ValueTypes[p.DefaultValueTypeIndex]
		out.DefaultSampleType = p.StringAt(dvt.TypeSID)
	}
	out.Period = int64(p.Period)
	for _, c := range p.Comments {
		out.Comments = append(out.Comments, p.StringAt(c))
	}

	for i := 0; i < p.NumSamples(); i++ {
		sv := p.SampleAt(i)
		key := sv.Key()

		var locs []*ppprof.Location
		for _, stackID := range key.StackIDs {
			for _, frameID := range p.StackFrames(stackID) {
				locs = append(locs, locations[frameID])
			}
		}

		sample := &ppprof.Sample{
			Location: locs,
			Label:    map[string][]string{},
			NumLabel: map[string][]int64{},
			NumUnit:  map[string][]string{},
		}
		for _, labelID := range key.LabelIDs {
			l := p.LabelAt(labelID)
			keyStr := p.StringAt(l.KeySID)
			switch l.Kind {
			case profile.LabelValueString:
				sample.Label[keyStr] = append(sample.Label[keyStr], p.StringAt(l.StrSID))
			case profile.LabelValueInt64:
				sample.NumLabel[keyStr] = append(sample.NumLabel[keyStr], l.Int64)
			case profile.LabelValueFloat64:
				sample.NumLabel[keyStr] = append(sample.NumLabel[keyStr], int64(l.Float64))
			}
		}
		if key.ThreadID != 0 {
			t := p.ThreadAt(key.ThreadID)
			sample.NumLabel["tid"] = append(sample.NumLabel["tid"], int64(t.TID))
			sample.NumLabel["pid"] = append(sample.NumLabel["pid"], int64(t.PID))
			if t.ThreadNameSID != 0 {
				sample.Label["thread_comm"] = append(sample.Label["thread_comm"], p.StringAt(t.ThreadNameSID))
			}
			if t.ProcessNameSID != 0 {
				sample.Label["process_comm"] = append(sample.Label["process_comm"], p.StringAt(t.ProcessNameSID))
			}
			for _, c := range t.Containers {
				sample.Label["workload"] = append(sample.Label["workload"], p.StringAt(c))
			}
		}

		vals := make([]int64, len(p.ValueTypes))
		for j, v := range sv.Values() {
			if j < len(vals) {
				vals[j] = int64(v)
			}
		}
		sample.Value = vals

		out.Sample = append(out.Sample, sample)
	}

	return out, nil
}
