package canonicalpb

import (
	"fmt"

	"github.com/aadil-01/perforator/profile"
)

// Field numbers, following the data-model table order except that
// samples (11) come before value types (12).
const (
	fProfileStrings             = 1
	fProfileBinaries            = 2
	fProfileFunctions           = 3
	fProfileInlineChains        = 4
	fProfileFrames              = 5
	fProfileSegments            = 6
	fProfileStacks              = 7
	fProfileThreads             = 8
	fProfileLabels              = 9
	fProfileSampleKeys          = 10
	fProfileSamples             = 11
	fProfileValueTypes          = 12
	fProfileComments            = 13
	fProfileDefaultValueTypeIdx = 14
	fProfilePeriodValueTypeIdx  = 15
	fProfilePeriod              = 16
)

// Marshal encodes p into the canonical wire format.
func Marshal(p *profile.Profile) ([]byte, error) {
	w := &writer{}

	for i := 1; i < p.NumStrings(); i++ {
		w.bytesField(fProfileStrings, []byte(p.StringAt(profile.StringID(i))))
	}
	for i := 1; i < p.NumBinaries(); i++ {
		b := p.BinaryAt(profile.BinaryID(i))
		sub := &writer{}
		sub.uint32Field(1, uint32(b.PathSID))
		sub.uint32Field(2, uint32(b.BuildIDSID))
		w.message(fProfileBinaries, sub)
	}
	for i := 1; i < p.NumFunctions(); i++ {
		f := p.FunctionAt(profile.FunctionID(i))
		sub := &writer{}
		sub.uint32Field(1, uint32(f.NameSID))
		sub.uint32Field(2, uint32(f.SystemNameSID))
		sub.uint32Field(3, uint32(f.FileNameSID))
		sub.uint32Field(4, f.StartLine)
		w.message(fProfileFunctions, sub)
	}
	for i := 1; i < p.NumInlineChains(); i++ {
		sub := &writer{}
		for _, l := range p.InlineChainAt(profile.InlineChainID(i)) {
			lsub := &writer{}
			lsub.uint32Field(1, uint32(l.FunctionID))
			lsub.uint32Field(2, l.Line)
			lsub.uint32Field(3, l.Column)
			sub.message(1, lsub)
		}
		w.message(fProfileInlineChains, sub)
	}
	for i := 1; i < p.NumFrames(); i++ {
		fr := p.FrameAt(profile.FrameID(i))
		sub := &writer{}
		sub.uint32Field(1, uint32(fr.BinaryID))
		sub.int64Field(2, fr.BinaryOffset)
		sub.uint32Field(3, uint32(fr.InlineChainID))
		w.message(fProfileFrames, sub)
	}
	for i := 1; i < p.NumSegments(); i++ {
		sub := &writer{}
		for _, f := range p.SegmentAt(profile.SegmentID(i)) {
			sub.uint32Field(1, uint32(f))
		}
		w.message(fProfileSegments, sub)
	}
	for i := 1; i < p.NumStacks(); i++ {
		s := p.StackAt(profile.StackID(i))
		sub := &writer{}
		sub.uint32Field(1, uint32(s.Kind))
		sub.uint32Field(2, uint32(s.RuntimeNameSID))
		for _, seg := range s.SegmentIDs {
			sub.uint32Field(3, uint32(seg))
		}
		for _, f := range s.LeafFrames {
			sub.uint32Field(4, uint32(f))
		}
		w.message(fProfileStacks, sub)
	}
	for i := 1; i < p.NumThreads(); i++ {
		t := p.ThreadAt(profile.ThreadID(i))
		sub := &writer{}
		sub.uint64Field(1, t.TID)
		sub.uint32Field(2, uint32(t.ThreadNameSID))
		sub.uint64Field(3, t.PID)
		sub.uint32Field(4, uint32(t.ProcessNameSID))
		for _, c := range t.Containers {
			sub.uint32Field(5, uint32(c))
		}
		w.message(fProfileThreads, sub)
	}
	for i := 1; i < p.NumLabels(); i++ {
		l := p.LabelAt(profile.LabelID(i))
		sub := &writer{}
		sub.uint32Field(1, uint32(l.KeySID))
		sub.uint32Field(2, uint32(l.Kind))
		sub.uint32Field(3, uint32(l.StrSID))
		sub.int64Field(4, l.Int64)
		sub.float64Field(5, l.Float64)
		w.message(fProfileLabels, sub)
	}
	for i := 1; i < p.NumSampleKeys(); i++ {
		k := p.SampleKeyAt(profile.SampleKeyID(i))
		sub := &writer{}
		for _, s := range k.StackIDs {
			sub.uint32Field(1, uint32(s))
		}
		sub.uint32Field(2, uint32(k.ThreadID))
		sub.int64Field(3, k.TimestampNs)
		for _, l := range k.LabelIDs {
			sub.uint32Field(4, uint32(l))
		}
		w.message(fProfileSampleKeys, sub)
	}
	for i := 0; i < p.NumSamples(); i++ {
		s := p.SampleAt(i)
		key := p.Samples[i].SampleKeyID
		sub := &writer{}
		sub.uint32Field(1, uint32(key))
		for _, v := range s.Values() {
			sub.uint64Field(2, v)
		}
		w.message(fProfileSamples, sub)
	}
	for _, vt := range p.ValueTypes {
		sub := &writer{}
		sub.uint32Field(1, uint32(vt.TypeSID))
		sub.uint32Field(2, uint32(vt.UnitSID))
		w.message(fProfileValueTypes, sub)
	}
	for _, c := range p.Comments {
		w.uint32Field(fProfileComments, uint32(c))
	}
	w.uint32Field(fProfileDefaultValueTypeIdx, uint32(p.DefaultValueTypeIndex))
	w.uint32Field(fProfilePeriodValueTypeIdx, uint32(p.PeriodValueTypeIndex))
	w.uint64Field(fProfilePeriod, p.Period)

	return w.buf.Bytes(), nil
}

// Unmarshal decodes the canonical wire format into a fresh Profile.
// Table order in the encoding tracks table dependency order (strings
// before everything that references a string id, frames before
// stacks, etc.), so records are re-interned into a fresh profile.New()
// in the order they appear; because Intern is idempotent and every
// encoded table was already deduplicated by the writer, the resulting
// ids are numerically identical to the ones the source profile had.
func Unmarshal(data []byte) (p *profile.Profile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("canonicalpb: unmarshal panic: %v", r)
		}
	}()

	p = profile.New()
	r := &reader{data: data}

	// value types and samples must be buffered until after every
	// referenced table has been rebuilt, so collect raw messages per
	// field number on the first pass, then process in a second pass in
	// dependency order.
	var raw [17][][]byte
	var scalar13 []uint32
	var scalar14, scalar15 uint32
	var scalar16 uint64

	for {
		f, ok, ferr := r.next()
		if ferr != nil {
			return nil, ferr
		}
		if !ok {
			break
		}
		switch f.num {
		case fProfileComments:
			scalar13 = append(scalar13, uint32(f.uvarint))
		case fProfileDefaultValueTypeIdx:
			scalar14 = uint32(f.uvarint)
		case fProfilePeriodValueTypeIdx:
			scalar15 = uint32(f.uvarint)
		case fProfilePeriod:
			scalar16 = f.uvarint
		default:
			if f.num >= 1 && f.num < len(raw) {
				raw[f.num] = append(raw[f.num], f.bytes)
			}
		}
	}

	for _, b := range raw[fProfileStrings] {
		p.InternString(string(b))
	}
	for _, b := range raw[fProfileBinaries] {
		fields := parseFields(b)
		p.InternBinary(profile.Binary{
			PathSID:    profile.StringID(fields.u32(1)),
			BuildIDSID: profile.StringID(fields.u32(2)),
		})
	}
	for _, b := range raw[fProfileFunctions] {
		fields := parseFields(b)
		p.InternFunction(profile.Function{
			NameSID:       profile.StringID(fields.u32(1)),
			SystemNameSID: profile.StringID(fields.u32(2)),
			FileNameSID:   profile.StringID(fields.u32(3)),
			StartLine:     fields.u32(4),
		})
	}
	for _, b := range raw[fProfileInlineChains] {
		fields := parseFields(b)
		lines := make([]profile.SourceLine, 0, len(fields.msgs(1)))
		for _, lb := range fields.msgs(1) {
			lf := parseFields(lb)
			lines = append(lines, profile.SourceLine{
				FunctionID: profile.FunctionID(lf.u32(1)),
				Line:       lf.u32(2),
				Column:     lf.u32(3),
			})
		}
		p.InternInlineChain(lines)
	}
	for _, b := range raw[fProfileFrames] {
		fields := parseFields(b)
		p.InternFrame(profile.StackFrame{
			BinaryID:      profile.BinaryID(fields.u32(1)),
			BinaryOffset:  fields.i64(2),
			InlineChainID: profile.InlineChainID(fields.u32(3)),
		})
	}
	for _, b := range raw[fProfileSegments] {
		fields := parseFields(b)
		frames := make([]profile.FrameID, 0, len(fields.vals(1)))
		for _, v := range fields.vals(1) {
			frames = append(frames, profile.FrameID(v))
		}
		p.InternSegment(frames)
	}
	for _, b := range raw[fProfileStacks] {
		fields := parseFields(b)
		segIDs := make([]profile.SegmentID, 0, len(fields.vals(3)))
		for _, v := range fields.vals(3) {
			segIDs = append(segIDs, profile.SegmentID(v))
		}
		leaf := make([]profile.FrameID, 0, len(fields.vals(4)))
		for _, v := range fields.vals(4) {
			leaf = append(leaf, profile.FrameID(v))
		}
		p.InternStack(profile.Stack{
			Kind:           profile.StackKind(fields.u32(1)),
			RuntimeNameSID: profile.StringID(fields.u32(2)),
			LeafFrames:     leaf,
			SegmentIDs:     segIDs,
		})
	}
	for _, b := range raw[fProfileThreads] {
		fields := parseFields(b)
		containers := make([]profile.StringID, 0, len(fields.vals(5)))
		for _, v := range fields.vals(5) {
			containers = append(containers, profile.StringID(v))
		}
		p.InternThread(profile.ThreadRecord{
			TID:            fields.u64(1),
			ThreadNameSID:  profile.StringID(fields.u32(2)),
			PID:            fields.u64(3),
			ProcessNameSID: profile.StringID(fields.u32(4)),
			Containers:     containers,
		})
	}
	for _, b := range raw[fProfileLabels] {
		fields := parseFields(b)
		p.InternLabel(profile.Label{
			KeySID:  profile.StringID(fields.u32(1)),
			Kind:    profile.LabelValueKind(fields.u32(2)),
			StrSID:  profile.StringID(fields.u32(3)),
			Int64:   fields.i64(4),
			Float64: fields.f64(5),
		})
	}
	for _, b := range raw[fProfileSampleKeys] {
		fields := parseFields(b)
		stackIDs := make([]profile.StackID, 0, len(fields.vals(1)))
		for _, v := range fields.vals(1) {
			stackIDs = append(stackIDs, profile.StackID(v))
		}
		labelIDs := make([]profile.LabelID, 0, len(fields.vals(4)))
		for _, v := range fields.vals(4) {
			labelIDs = append(labelIDs, profile.LabelID(v))
		}
		p.BuildSampleKey(stackIDs, profile.ThreadID(fields.u32(2)), fields.i64(3), labelIDs)
	}
	for _, b := range raw[fProfileValueTypes] {
		fields := parseFields(b)
		p.ValueTypes = append(p.ValueTypes, profile.ValueType{
			TypeSID: profile.StringID(fields.u32(1)),
			UnitSID: profile.StringID(fields.u32(2)),
		})
	}
	for _, b := range raw[fProfileSamples] {
		fields := parseFields(b)
		values := make([]uint64, 0, len(fields.vals(2)))
		for _, v := range fields.vals(2) {
			values = append(values, v)
		}
		p.AddSample(profile.Sample{
			SampleKeyID: profile.SampleKeyID(fields.u32(1)),
			Values:      values,
		})
	}
	for _, c := range scalar13 {
		p.Comments = append(p.Comments, profile.StringID(c))
	}
	p.DefaultValueTypeIndex = profile.ValueTypeIndex(scalar14)
	p.PeriodValueTypeIndex = profile.ValueTypeIndex(scalar15)
	p.Period = scalar16

	return p, nil
}

// parsedFields indexes a flat sub-message's fields by field number for
// random access during decode.
type parsedFields struct {
	byNum map[int][]field
}

func parseFields(data []byte) parsedFields {
	pf := parsedFields{byNum: make(map[int][]field)}
	r := &reader{data: data}
	for {
		f, ok, err := r.next()
		if err != nil || !ok {
			break
		}
		pf.byNum[f.num] = append(pf.byNum[f.num], f)
	}
	return pf
}

func (pf parsedFields) u32(n int) uint32 {
	if fs := pf.byNum[n]; len(fs) > 0 {
		return uint32(fs[0].uvarint)
	}
	return 0
}

func (pf parsedFields) u64(n int) uint64 {
	if fs := pf.byNum[n]; len(fs) > 0 {
		return fs[0].uvarint
	}
	return 0
}

func (pf parsedFields) i64(n int) int64 {
	if fs := pf.byNum[n]; len(fs) > 0 {
		return zigzagDecode(fs[0].uvarint)
	}
	return 0
}

func (pf parsedFields) f64(n int) float64 {
	if fs := pf.byNum[n]; len(fs) > 0 {
		return getFloat64(fs[0].bytes)
	}
	return 0
}

func (pf parsedFields) vals(n int) []uint64 {
	fs := pf.byNum[n]
	out := make([]uint64, len(fs))
	for i, f := range fs {
		out[i] = f.uvarint
	}
	return out
}

func (pf parsedFields) msgs(n int) [][]byte {
	fs := pf.byNum[n]
	out := make([][]byte, len(fs))
	for i, f := range fs {
		out[i] = f.bytes
	}
	return out
}
