package flatdiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadil-01/perforator/profile"
)

func buildProfile(t *testing.T) *profile.Profile {
	t.Helper()
	p := profile.New()

	bin := p.InternBinary(profile.Binary{PathSID: p.InternString("/usr/bin/app"), BuildIDSID: p.InternString("abc123")})
	fn := p.InternFunction(profile.Function{NameSID: p.InternString("main.work"), FileNameSID: p.InternString("main.go")})
	inline := p.InternInlineChain([]profile.SourceLine{{FunctionID: fn, Line: 42}})
	frame := p.InternFrame(profile.StackFrame{BinaryID: bin, BinaryOffset: 100, InlineChainID: inline})
	stack := p.InternStack(profile.Stack{LeafFrames: []profile.FrameID{frame}})

	thread := p.InternThread(profile.ThreadRecord{TID: 5, PID: 1, ThreadNameSID: p.InternString("worker"), ProcessNameSID: p.InternString("app")})

	envLabel := p.InternLabel(profile.Label{KeySID: p.InternString("env"), Kind: profile.LabelValueString, StrSID: p.InternString("prod")})

	p.ValueTypes = []profile.ValueType{{TypeSID: p.InternString("cpu"), UnitSID: p.InternString("nanoseconds")}}
	key := p.BuildSampleKey([]profile.StackID{stack}, thread, 1000, []profile.LabelID{envLabel})
	p.AddSample(profile.Sample{SampleKeyID: key, Values: []uint64{250}})

	return p
}

func TestBuildProducesOneEntryPerSample(t *testing.T) {
	p := buildProfile(t)
	view, err := Build(p, Options{})
	require.NoError(t, err)
	require.Len(t, view, 1)
	for _, values := range view {
		assert.Equal(t, uint64(250), values["cpu:nanoseconds"])
	}
}

func TestBuildOmitsTimestampByDefault(t *testing.T) {
	p := buildProfile(t)
	viewWithout, err := Build(p, Options{})
	require.NoError(t, err)

	viewWith, err := Build(p, Options{PrintTimestamps: true})
	require.NoError(t, err)

	var keyWithout, keyWith string
	for k := range viewWithout {
		keyWithout = k
	}
	for k := range viewWith {
		keyWith = k
	}
	assert.NotEqual(t, keyWithout, keyWith)
	assert.NotContains(t, keyWithout, "timestamp")
	assert.Contains(t, keyWith, "timestamp")
}

func TestBuildOmitsBuildIDAndAddressByDefault(t *testing.T) {
	p := buildProfile(t)
	view, err := Build(p, Options{})
	require.NoError(t, err)
	for k := range view {
		assert.NotContains(t, k, "abc123")
		assert.NotContains(t, k, `"address"`)
	}

	viewFull, err := Build(p, Options{PrintBuildIDs: true, PrintAddresses: true})
	require.NoError(t, err)
	for k := range viewFull {
		assert.Contains(t, k, "abc123")
		assert.Contains(t, k, `"address"`)
	}
}

func TestBuildMergesDistinctSampleKeysThatFlattenIdentically(t *testing.T) {
	p := profile.New()
	fn := p.InternFunction(profile.Function{NameSID: p.InternString("f"), FileNameSID: p.InternString("f.go")})
	inline := p.InternInlineChain([]profile.SourceLine{{FunctionID: fn, Line: 1}})
	frame := p.InternFrame(profile.StackFrame{InlineChainID: inline})
	stack := p.InternStack(profile.Stack{LeafFrames: []profile.FrameID{frame}})
	p.ValueTypes = []profile.ValueType{{TypeSID: p.InternString("samples"), UnitSID: p.InternString("count")}}

	key1 := p.BuildSampleKey([]profile.StackID{stack}, 0, 111, nil)
	key2 := p.BuildSampleKey([]profile.StackID{stack}, 0, 222, nil)
	p.AddSample(profile.Sample{SampleKeyID: key1, Values: []uint64{3}})
	p.AddSample(profile.Sample{SampleKeyID: key2, Values: []uint64{4}})

	view, err := Build(p, Options{}) // PrintTimestamps off: both keys flatten identically
	require.NoError(t, err)
	require.Len(t, view, 1)
	for _, values := range view {
		assert.Equal(t, uint64(7), values["samples:count"])
	}
}
