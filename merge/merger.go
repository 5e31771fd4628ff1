// Package merge implements the single-threaded incremental Merger:
// a state machine that folds any number of canonical profiles
// into one, combining samples that share a sample key and
// reconciling each input's value types against the output's fixed
// list.
package merge

import (
	"regexp"
	"time"

	"github.com/colega/zeropool"

	"github.com/aadil-01/perforator/internal/log"
	"github.com/aadil-01/perforator/perrors"
	"github.com/aadil-01/perforator/profile"
)

type lifecycle int

const (
	lifecycleOpen lifecycle = iota
	lifecyclePoisoned
	lifecycleFinished
)

// threadNameTrailingDigits matches the numeric suffix
// CleanupThreadNames strips, e.g. "worker-3" -> "worker".
var threadNameTrailingDigits = regexp.MustCompile(`-?[0-9]+$`)

// Merger accumulates canonical profiles into one output profile,
// translating every id from each input's tables into the output's
// tables lazily on first reference and combining samples whose
// translated keys coincide. A Merger is not safe for concurrent use;
// package parallelmerge coordinates many Mergers instead of sharing
// one across goroutines.
type Merger struct {
	opts Options

	out  *profile.Profile
	life lifecycle
	err  error // first error that poisoned the merger, if any

	inputCount      int
	valueTypesFixed bool
	sampleKeyIndex  map[profile.SampleKeyID]int

	scratch zeropool.Pool[*translation]
}

// New creates a Merger in the Open state with the given options,
// accumulating into a freshly allocated output profile.
func New(opts Options) *Merger {
	return NewInto(profile.New(), opts)
}

// NewInto creates a Merger in the Open state that accumulates into an
// already-allocated, empty output profile rather than allocating its
// own. Package parallelmerge uses this so worker 0's merger writes
// directly into the caller-supplied output profile, so that
// finalizing the root of the tree reduce requires no extra copy.
func NewInto(out *profile.Profile, opts Options) *Merger {
	return &Merger{
		opts:           opts,
		out:            out,
		sampleKeyIndex: make(map[profile.SampleKeyID]int),
		scratch:        zeropool.New(func() *translation { return newTranslation() }),
	}
}

// NumInputs returns the count of profiles successfully folded in so
// far.
func (m *Merger) NumInputs() int { return m.inputCount }

// Add folds src into the accumulating output profile. Once Add
// returns a non-Misuse error the merger is poisoned: every subsequent
// Add or Finish call fails with a Misuse error wrapping the original
// cause, rather than silently continuing from inconsistent state.
func (m *Merger) Add(src *profile.Profile) error {
	switch m.life {
	case lifecycleFinished:
		return perrors.New(perrors.Misuse, "Add called after Finish")
	case lifecyclePoisoned:
		return perrors.Wrap(perrors.Misuse, "Add called on a poisoned merger", m.err)
	}
	start := time.Now()
	samplesBefore := len(m.out.Samples)
	err := m.add(src)
	elapsed := time.Since(start)

	if m.opts.Metrics != nil {
		m.opts.Metrics.ObserveMergeDuration(elapsed)
	}
	if err != nil {
		m.life = lifecyclePoisoned
		m.err = err
		log.Error(m.opts.logger(), "msg", "merger.Add failed", "err", err)
		return err
	}
	if m.opts.Metrics != nil {
		m.opts.Metrics.MergeInputsTotal.Inc()
		combined := src.NumSamples() - (len(m.out.Samples) - samplesBefore)
		if combined > 0 {
			m.opts.Metrics.MergeSamplesCombinedTotal.Add(float64(combined))
		}
	}
	log.Debug(m.opts.logger(), "msg", "merger.Add done", "samples", src.NumSamples(), "elapsed", elapsed)
	m.inputCount++
	return nil
}

// Finish transitions Open → Finished and returns the accumulated
// profile. Repeated Finish calls are idempotent (returning the same
// profile) rather than erroring, since that is the more useful
// behavior for callers that call Finish defensively.
func (m *Merger) Finish() (*profile.Profile, error) {
	if m.life == lifecyclePoisoned {
		return nil, perrors.Wrap(perrors.Misuse, "Finish called on a poisoned merger", m.err)
	}
	m.life = lifecycleFinished
	return m.out, nil
}

func (m *Merger) add(src *profile.Profile) error {
	t := m.scratch.Get()
	defer m.scratch.Put(t)
	t.reset(src)

	if err := m.reconcileValueTypes(src, t); err != nil {
		return err
	}

	for i := 0; i < src.NumSamples(); i++ {
		if err := m.translateSample(src, t, src.SampleAt(i)); err != nil {
			return err
		}
	}
	for _, c := range src.Comments {
		sid := m.translateString(src, t, c)
		if !containsStringID(m.out.Comments, sid) {
			m.out.Comments = append(m.out.Comments, sid)
		}
	}
	return nil
}

func containsStringID(haystack []profile.StringID, needle profile.StringID) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// reconcileValueTypes implements the value-type reconciliation rules.
// The first input that declares any value types fixes the output's
// list verbatim (translated into output string ids), together with
// the header metadata tied to it (default/period indices, period);
// every later input's value types are matched against the output's
// list by (type, unit) string content: a mismatched order is
// corrected via t.valueTypeFor, a type the output doesn't have fails
// the merge, and a type the input is missing simply contributes 0 to
// that output slot (handled in translateSample, not here, since it
// falls out of zero-initializing the values vector).
//
// An input with no value types at all (an empty intermediate from a
// starved pipeline worker, or a freshly created profile) neither
// fixes nor conflicts with anything.
func (m *Merger) reconcileValueTypes(src *profile.Profile, t *translation) error {
	t.valueTypeFor = make([]int, len(src.ValueTypes))

	if !m.valueTypesFixed {
		if len(src.ValueTypes) == 0 {
			return nil
		}
		m.valueTypesFixed = true
		m.out.ValueTypes = make([]profile.ValueType, len(src.ValueTypes))
		for i, vt := range src.ValueTypes {
			m.out.ValueTypes[i] = profile.ValueType{
				TypeSID: m.translateString(src, t, vt.TypeSID),
				UnitSID: m.translateString(src, t, vt.UnitSID),
			}
			t.valueTypeFor[i] = i
		}
		m.out.DefaultValueTypeIndex = src.DefaultValueTypeIndex
		m.out.PeriodValueTypeIndex = src.PeriodValueTypeIndex
		m.out.Period = src.Period
		return nil
	}

	for i, vt := range src.ValueTypes {
		typeSID := m.translateString(src, t, vt.TypeSID)
		unitSID := m.translateString(src, t, vt.UnitSID)
		idx := -1
		for j, out := range m.out.ValueTypes {
			if out.TypeSID == typeSID && out.UnitSID == unitSID {
				idx = j
				break
			}
		}
		if idx < 0 {
			return perrors.Newf(perrors.IncompatibleValueTypes,
				"input declares value type %q (unit %q) which the output does not have",
				src.StringAt(vt.TypeSID), src.StringAt(vt.UnitSID))
		}
		t.valueTypeFor[i] = idx
	}
	return nil
}

func (m *Merger) translateSample(src *profile.Profile, t *translation, sv profile.SampleView) error {
	key := sv.Key()

	stackIDs := make([]profile.StackID, len(key.StackIDs))
	for i, s := range key.StackIDs {
		stackIDs[i] = m.translateStack(src, t, s)
	}

	var threadID profile.ThreadID
	if key.ThreadID != 0 {
		threadID = m.translateThread(src, t, key.ThreadID)
	}

	timestampNs := key.TimestampNs
	if m.opts.IgnoreTimestamps {
		timestampNs = 0
	}

	var labelIDs []profile.LabelID
	for _, l := range key.LabelIDs {
		lbl := src.LabelAt(l)
		if !m.opts.LabelFilter.allows(src.StringAt(lbl.KeySID)) {
			continue
		}
		labelIDs = append(labelIDs, m.translateLabel(src, t, l))
	}

	outKey := m.out.BuildSampleKey(stackIDs, threadID, timestampNs, labelIDs)

	values := make([]uint64, len(m.out.ValueTypes))
	for i, v := range sv.Values() {
		values[t.valueTypeFor[i]] = v
	}

	if idx, ok := m.sampleKeyIndex[outKey]; ok {
		profile.CombineValues(m.out.Samples[idx].Values, values)
		return nil
	}
	idx := m.out.AppendSample(profile.Sample{SampleKeyID: outKey, Values: values})
	m.sampleKeyIndex[outKey] = idx
	return nil
}

func (m *Merger) translateStack(src *profile.Profile, t *translation, id profile.StackID) profile.StackID {
	if t.stackDone[id] {
		return t.stackID[id]
	}
	s := src.StackAt(id)
	out := profile.Stack{
		Kind:           s.Kind,
		RuntimeNameSID: m.translateString(src, t, s.RuntimeNameSID),
	}
	for _, frID := range s.LeafFrames {
		out.LeafFrames = append(out.LeafFrames, m.translateFrame(src, t, frID))
	}
	for _, segID := range s.SegmentIDs {
		out.SegmentIDs = append(out.SegmentIDs, m.translateSegment(src, t, segID))
	}
	outID := m.out.InternStack(out)
	t.stackDone[id] = true
	t.stackID[id] = outID
	return outID
}

func (m *Merger) translateSegment(src *profile.Profile, t *translation, id profile.SegmentID) profile.SegmentID {
	if t.segmentDone[id] {
		return t.segmentID[id]
	}
	frames := src.SegmentAt(id)
	out := make([]profile.FrameID, len(frames))
	for i, f := range frames {
		out[i] = m.translateFrame(src, t, f)
	}
	outID := m.out.InternSegment(out)
	t.segmentDone[id] = true
	t.segmentID[id] = outID
	return outID
}

func (m *Merger) translateFrame(src *profile.Profile, t *translation, id profile.FrameID) profile.FrameID {
	if t.frameDone[id] {
		return t.frameID[id]
	}
	fr := src.FrameAt(id)
	out := profile.StackFrame{
		BinaryID:      m.translateBinary(src, t, fr.BinaryID),
		BinaryOffset:  fr.BinaryOffset,
		InlineChainID: m.translateInlineChain(src, t, fr.InlineChainID),
	}
	outID := m.out.InternFrame(out)
	t.frameDone[id] = true
	t.frameID[id] = outID
	return outID
}

func (m *Merger) translateInlineChain(src *profile.Profile, t *translation, id profile.InlineChainID) profile.InlineChainID {
	if t.inlineChainDone[id] {
		return t.inlineChainID[id]
	}
	lines := src.InlineChainAt(id)
	out := make([]profile.SourceLine, len(lines))
	for i, l := range lines {
		out[i] = profile.SourceLine{
			FunctionID: m.translateFunction(src, t, l.FunctionID),
			Line:       l.Line,
			Column:     l.Column,
		}
	}
	outID := m.out.InternInlineChain(out)
	t.inlineChainDone[id] = true
	t.inlineChainID[id] = outID
	return outID
}

func (m *Merger) translateFunction(src *profile.Profile, t *translation, id profile.FunctionID) profile.FunctionID {
	if t.functionDone[id] {
		return t.functionID[id]
	}
	f := src.FunctionAt(id)
	out := profile.Function{
		NameSID:       m.translateString(src, t, f.NameSID),
		SystemNameSID: m.translateString(src, t, f.SystemNameSID),
		FileNameSID:   m.translateString(src, t, f.FileNameSID),
		StartLine:     f.StartLine,
	}
	outID := m.out.InternFunction(out)
	t.functionDone[id] = true
	t.functionID[id] = outID
	return outID
}

func (m *Merger) translateBinary(src *profile.Profile, t *translation, id profile.BinaryID) profile.BinaryID {
	if t.binaryDone[id] {
		return t.binaryID[id]
	}
	b := src.BinaryAt(id)
	out := profile.Binary{
		PathSID:    m.translateString(src, t, b.PathSID),
		BuildIDSID: m.translateString(src, t, b.BuildIDSID),
	}
	outID := m.out.InternBinary(out)
	t.binaryDone[id] = true
	t.binaryID[id] = outID
	return outID
}

func (m *Merger) translateLabel(src *profile.Profile, t *translation, id profile.LabelID) profile.LabelID {
	if t.labelDone[id] {
		return t.labelID[id]
	}
	l := src.LabelAt(id)
	out := profile.Label{
		KeySID:  m.translateString(src, t, l.KeySID),
		Kind:    l.Kind,
		Int64:   l.Int64,
		Float64: l.Float64,
	}
	if l.Kind == profile.LabelValueString {
		out.StrSID = m.translateString(src, t, l.StrSID)
	}
	outID := m.out.InternLabel(out)
	t.labelDone[id] = true
	t.labelID[id] = outID
	return outID
}

// translateThread applies IgnoreProcessIDs/IgnoreThreadIDs/
// CleanupThreadNames before interning, rewriting the fields those
// options name to 0 rather than merely omitting them from the lookup
// key, so two threads that differ only in a scrubbed field become the
// same output thread record.
func (m *Merger) translateThread(src *profile.Profile, t *translation, id profile.ThreadID) profile.ThreadID {
	if t.threadDone[id] {
		return t.threadID[id]
	}
	tr := src.ThreadAt(id)

	out := profile.ThreadRecord{TID: tr.TID, PID: tr.PID}

	if m.opts.IgnoreThreadIDs {
		out.TID = 0
	} else {
		out.ThreadNameSID = m.translateThreadName(src, t, tr.ThreadNameSID)
	}
	if m.opts.IgnoreProcessIDs {
		out.PID = 0
	} else {
		out.ProcessNameSID = m.translateString(src, t, tr.ProcessNameSID)
	}
	for _, c := range tr.Containers {
		out.Containers = append(out.Containers, m.translateString(src, t, c))
	}

	outID := m.out.InternThread(out)
	t.threadDone[id] = true
	t.threadID[id] = outID
	return outID
}

// translateThreadName deliberately does not write into t's string
// memo: the same input string id can also be referenced as a label
// value or comment, where the uncleaned spelling must survive.
func (m *Merger) translateThreadName(src *profile.Profile, t *translation, sid profile.StringID) profile.StringID {
	if sid == 0 || !m.opts.CleanupThreadNames {
		return m.translateString(src, t, sid)
	}
	cleaned := threadNameTrailingDigits.ReplaceAllString(src.StringAt(sid), "")
	return m.out.InternString(cleaned)
}

func (m *Merger) translateString(src *profile.Profile, t *translation, id profile.StringID) profile.StringID {
	if t.stringDone[id] {
		return t.stringID[id]
	}
	outID := m.out.InternString(src.StringAt(id))
	t.stringDone[id] = true
	t.stringID[id] = outID
	return outID
}
