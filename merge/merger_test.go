package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadil-01/perforator/perrors"
	"github.com/aadil-01/perforator/profile"
)

// buildSimpleProfile builds a one-sample profile with a single-frame
// stack "funcName" and a "cpu"/"samples" value type pair, value v.
func buildSimpleProfile(t *testing.T, funcName string, tid uint64, v uint64) *profile.Profile {
	t.Helper()
	p := profile.New()

	fn := p.InternFunction(profile.Function{NameSID: p.InternString(funcName)})
	inline := p.InternInlineChain([]profile.SourceLine{{FunctionID: fn, Line: 1}})
	frame := p.InternFrame(profile.StackFrame{InlineChainID: inline})
	stack := p.InternStack(profile.Stack{LeafFrames: []profile.FrameID{frame}})

	var threadID profile.ThreadID
	if tid != 0 {
		threadID = p.InternThread(profile.ThreadRecord{TID: tid})
	}

	p.ValueTypes = []profile.ValueType{
		{TypeSID: p.InternString("samples"), UnitSID: p.InternString("count")},
	}
	key := p.BuildSampleKey([]profile.StackID{stack}, threadID, 0, nil)
	p.AddSample(profile.Sample{SampleKeyID: key, Values: []uint64{v}})

	return p
}

func TestMergerCombinesIdenticalSamples(t *testing.T) {
	a := buildSimpleProfile(t, "foo", 1, 5)
	b := buildSimpleProfile(t, "foo", 1, 7)

	m := New(Options{})
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	out, err := m.Finish()
	require.NoError(t, err)

	require.Equal(t, 1, out.NumSamples())
	assert.Equal(t, []uint64{12}, out.SampleAt(0).Values())
}

func TestMergerKeepsDistinctStacksSeparate(t *testing.T) {
	a := buildSimpleProfile(t, "foo", 1, 5)
	b := buildSimpleProfile(t, "bar", 1, 7)

	m := New(Options{})
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	out, err := m.Finish()
	require.NoError(t, err)

	assert.Equal(t, 2, out.NumSamples())
}

func TestMergerIgnoreThreadIDsCollapsesThreads(t *testing.T) {
	a := buildSimpleProfile(t, "foo", 1, 5)
	b := buildSimpleProfile(t, "foo", 2, 7)

	m := New(Options{IgnoreThreadIDs: true})
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	out, err := m.Finish()
	require.NoError(t, err)

	require.Equal(t, 1, out.NumSamples())
	assert.Equal(t, []uint64{12}, out.SampleAt(0).Values())
}

func TestMergerIncompatibleValueTypesErrors(t *testing.T) {
	a := buildSimpleProfile(t, "foo", 1, 5)
	b := profile.New()
	b.ValueTypes = []profile.ValueType{
		{TypeSID: b.InternString("wall"), UnitSID: b.InternString("nanoseconds")},
	}
	fn := b.InternFunction(profile.Function{NameSID: b.InternString("foo")})
	inline := b.InternInlineChain([]profile.SourceLine{{FunctionID: fn, Line: 1}})
	frame := b.InternFrame(profile.StackFrame{InlineChainID: inline})
	stack := b.InternStack(profile.Stack{LeafFrames: []profile.FrameID{frame}})
	key := b.BuildSampleKey([]profile.StackID{stack}, 0, 0, nil)
	b.AddSample(profile.Sample{SampleKeyID: key, Values: []uint64{1}})

	m := New(Options{})
	require.NoError(t, m.Add(a))

	err := m.Add(b)
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.IncompatibleValueTypes))

	// The merger is poisoned: further Adds fail with Misuse.
	err = m.Add(a)
	assert.True(t, perrors.Is(err, perrors.Misuse))
}

func TestMergerMissingValueTypeContributesZero(t *testing.T) {
	a := profile.New()
	a.ValueTypes = []profile.ValueType{
		{TypeSID: a.InternString("cpu"), UnitSID: a.InternString("nanoseconds")},
		{TypeSID: a.InternString("samples"), UnitSID: a.InternString("count")},
	}
	fn := a.InternFunction(profile.Function{NameSID: a.InternString("foo")})
	inline := a.InternInlineChain([]profile.SourceLine{{FunctionID: fn, Line: 1}})
	frame := a.InternFrame(profile.StackFrame{InlineChainID: inline})
	stack := a.InternStack(profile.Stack{LeafFrames: []profile.FrameID{frame}})
	key := a.BuildSampleKey([]profile.StackID{stack}, 0, 0, nil)
	a.AddSample(profile.Sample{SampleKeyID: key, Values: []uint64{100, 1}})

	b := profile.New()
	b.ValueTypes = []profile.ValueType{
		{TypeSID: b.InternString("samples"), UnitSID: b.InternString("count")},
	}
	fnB := b.InternFunction(profile.Function{NameSID: b.InternString("foo")})
	inlineB := b.InternInlineChain([]profile.SourceLine{{FunctionID: fnB, Line: 1}})
	frameB := b.InternFrame(profile.StackFrame{InlineChainID: inlineB})
	stackB := b.InternStack(profile.Stack{LeafFrames: []profile.FrameID{frameB}})
	keyB := b.BuildSampleKey([]profile.StackID{stackB}, 0, 0, nil)
	b.AddSample(profile.Sample{SampleKeyID: keyB, Values: []uint64{1}})

	m := New(Options{})
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	out, err := m.Finish()
	require.NoError(t, err)

	require.Equal(t, 1, out.NumSamples())
	assert.Equal(t, []uint64{100, 2}, out.SampleAt(0).Values())
}

func TestMergerSaturatesOnOverflow(t *testing.T) {
	a := buildSimpleProfile(t, "foo", 1, 1)
	b := buildSimpleProfile(t, "foo", 1, 10)
	// Force the first sample's value to near-max so combining saturates.
	a.Samples[0].Values[0] = ^uint64(0) - 1

	m := New(Options{})
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	out, err := m.Finish()
	require.NoError(t, err)

	assert.Equal(t, []uint64{^uint64(0)}, out.SampleAt(0).Values())
}

func TestMergerLabelFilterDropsSkippedPrefix(t *testing.T) {
	a := profile.New()
	a.ValueTypes = []profile.ValueType{{TypeSID: a.InternString("samples"), UnitSID: a.InternString("count")}}
	fn := a.InternFunction(profile.Function{NameSID: a.InternString("foo")})
	inline := a.InternInlineChain([]profile.SourceLine{{FunctionID: fn, Line: 1}})
	frame := a.InternFrame(profile.StackFrame{InlineChainID: inline})
	stack := a.InternStack(profile.Stack{LeafFrames: []profile.FrameID{frame}})
	keepLabel := a.InternLabel(profile.Label{KeySID: a.InternString("env"), Kind: profile.LabelValueString, StrSID: a.InternString("prod")})
	dropLabel := a.InternLabel(profile.Label{KeySID: a.InternString("internal_debug_id"), Kind: profile.LabelValueString, StrSID: a.InternString("xyz")})
	key := a.BuildSampleKey([]profile.StackID{stack}, 0, 0, []profile.LabelID{keepLabel, dropLabel})
	a.AddSample(profile.Sample{SampleKeyID: key, Values: []uint64{1}})

	m := New(Options{LabelFilter: LabelFilter{SkippedKeyPrefixes: []string{"internal_"}}})
	require.NoError(t, m.Add(a))
	out, err := m.Finish()
	require.NoError(t, err)

	require.Equal(t, 1, out.NumSamples())
	sk := out.SampleAt(0).Key()
	require.Len(t, sk.LabelIDs, 1)
	assert.Equal(t, "env", out.StringAt(out.LabelAt(sk.LabelIDs[0]).KeySID))
}

func TestMergerCleanupThreadNamesCollapsesNumericSuffixes(t *testing.T) {
	a := profile.New()
	a.ValueTypes = []profile.ValueType{{TypeSID: a.InternString("samples"), UnitSID: a.InternString("count")}}
	fn := a.InternFunction(profile.Function{NameSID: a.InternString("foo")})
	inline := a.InternInlineChain([]profile.SourceLine{{FunctionID: fn, Line: 1}})
	frame := a.InternFrame(profile.StackFrame{InlineChainID: inline})
	stack := a.InternStack(profile.Stack{LeafFrames: []profile.FrameID{frame}})

	thread1 := a.InternThread(profile.ThreadRecord{TID: 1, ThreadNameSID: a.InternString("worker-1")})
	key1 := a.BuildSampleKey([]profile.StackID{stack}, thread1, 0, nil)
	a.AddSample(profile.Sample{SampleKeyID: key1, Values: []uint64{3}})

	b := profile.New()
	b.ValueTypes = []profile.ValueType{{TypeSID: b.InternString("samples"), UnitSID: b.InternString("count")}}
	fnB := b.InternFunction(profile.Function{NameSID: b.InternString("foo")})
	inlineB := b.InternInlineChain([]profile.SourceLine{{FunctionID: fnB, Line: 1}})
	frameB := b.InternFrame(profile.StackFrame{InlineChainID: inlineB})
	stackB := b.InternStack(profile.Stack{LeafFrames: []profile.FrameID{frameB}})
	thread2 := b.InternThread(profile.ThreadRecord{TID: 1, ThreadNameSID: b.InternString("worker-2")})
	key2 := b.BuildSampleKey([]profile.StackID{stackB}, thread2, 0, nil)
	b.AddSample(profile.Sample{SampleKeyID: key2, Values: []uint64{4}})

	m := New(Options{CleanupThreadNames: true})
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	out, err := m.Finish()
	require.NoError(t, err)

	require.Equal(t, 1, out.NumSamples())
	assert.Equal(t, []uint64{7}, out.SampleAt(0).Values())
	require.Equal(t, 2, out.NumThreads()) // sentinel id 0 plus the single collapsed thread record
	th := out.ThreadAt(1)
	assert.Equal(t, "worker", out.StringAt(th.ThreadNameSID))
}

func TestMergerWithNoInputsProducesEmptyProfile(t *testing.T) {
	m := New(Options{})
	out, err := m.Finish()
	require.NoError(t, err)

	assert.Equal(t, 0, out.NumSamples())
	assert.Empty(t, out.ValueTypes)
	assert.Equal(t, 1, out.NumStrings(), "only the sentinel empty string")
	assert.Equal(t, 1, out.NumStacks())
	assert.Equal(t, 1, out.NumThreads())
}

func TestMergerSelfMergeDoublesValues(t *testing.T) {
	a := buildSimpleProfile(t, "foo", 1, 5)

	m := New(Options{IgnoreTimestamps: true})
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(a))
	out, err := m.Finish()
	require.NoError(t, err)

	require.Equal(t, out.NumSamples(), a.NumSamples())
	assert.Equal(t, []uint64{10}, out.SampleAt(0).Values())
}

func TestMergerDisjointInputsUnionStringTablesInFirstSeenOrder(t *testing.T) {
	a := buildSimpleProfile(t, "alpha", 1, 1)
	b := buildSimpleProfile(t, "beta", 2, 1)

	m := New(Options{})
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	out, err := m.Finish()
	require.NoError(t, err)

	assert.Equal(t, 2, out.NumSamples())

	var got []string
	for i := 1; i < out.NumStrings(); i++ {
		got = append(got, out.StringAt(profile.StringID(i)))
	}
	assert.Equal(t, []string{"samples", "count", "alpha", "beta"}, got,
		"all of a's strings before b's new ones, each in first-seen order")
}

func TestMergerEmptyFirstInputDoesNotFixValueTypes(t *testing.T) {
	empty := profile.New()
	real := buildSimpleProfile(t, "foo", 1, 5)

	m := New(Options{})
	require.NoError(t, m.Add(empty))
	require.NoError(t, m.Add(real), "an empty input must not lock in an empty value-type list")
	out, err := m.Finish()
	require.NoError(t, err)

	require.Len(t, out.ValueTypes, 1)
	assert.Equal(t, []uint64{5}, out.SampleAt(0).Values())
}

func TestMergerCleanupDoesNotRewriteEqualLabelStrings(t *testing.T) {
	// A label value spelled identically to a thread name must keep its
	// raw spelling even when thread-name cleanup rewrites the latter.
	a := profile.New()
	a.ValueTypes = []profile.ValueType{{TypeSID: a.InternString("samples"), UnitSID: a.InternString("count")}}
	fn := a.InternFunction(profile.Function{NameSID: a.InternString("foo")})
	inline := a.InternInlineChain([]profile.SourceLine{{FunctionID: fn, Line: 1}})
	frame := a.InternFrame(profile.StackFrame{InlineChainID: inline})
	stack := a.InternStack(profile.Stack{LeafFrames: []profile.FrameID{frame}})

	name := a.InternString("worker-7")
	thread := a.InternThread(profile.ThreadRecord{TID: 7, ThreadNameSID: name})
	lbl := a.InternLabel(profile.Label{KeySID: a.InternString("origin"), Kind: profile.LabelValueString, StrSID: name})
	key := a.BuildSampleKey([]profile.StackID{stack}, thread, 0, []profile.LabelID{lbl})
	a.AddSample(profile.Sample{SampleKeyID: key, Values: []uint64{1}})

	m := New(Options{CleanupThreadNames: true})
	require.NoError(t, m.Add(a))
	out, err := m.Finish()
	require.NoError(t, err)

	sk := out.SampleAt(0).Key()
	require.Len(t, sk.LabelIDs, 1)
	assert.Equal(t, "worker-7", out.StringAt(out.LabelAt(sk.LabelIDs[0]).StrSID))
	assert.Equal(t, "worker", out.StringAt(out.ThreadAt(sk.ThreadID).ThreadNameSID))
}

func TestMergerAddAfterFinishIsMisuse(t *testing.T) {
	a := buildSimpleProfile(t, "foo", 1, 1)
	m := New(Options{})
	require.NoError(t, m.Add(a))
	_, err := m.Finish()
	require.NoError(t, err)

	err = m.Add(a)
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.Misuse))
}
