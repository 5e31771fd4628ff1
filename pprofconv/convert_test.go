package pprofconv

import (
	"testing"

	ppprof "github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadil-01/perforator/profile"
)

func buildPProf(t *testing.T) *ppprof.Profile {
	t.Helper()
	mapping := &ppprof.Mapping{ID: 1, File: "/usr/bin/app", BuildID: "abc123"}
	fn := &ppprof.Function{ID: 1, Name: "main.work", SystemName: "main.work", Filename: "main.go", StartLine: 10}
	loc := &ppprof.Location{
		ID:      1,
		Mapping: mapping,
		Address: 0x1000,
		Line:    []ppprof.Line{{Function: fn, Line: 42}},
	}
	return &ppprof.Profile{
		Mapping:           []*ppprof.Mapping{mapping},
		Function:          []*ppprof.Function{fn},
		Location:          []*ppprof.Location{loc},
		SampleType:        []*ppprof.ValueType{{Type: "cpu", Unit: "nanoseconds"}},
		DefaultSampleType: "cpu",
		PeriodType:        &ppprof.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:            1000,
		Sample: []*ppprof.Sample{
			{
				Location: []*ppprof.Location{loc},
				Value:    []int64{250},
				Label:    map[string][]string{"env": {"prod"}, "tid": {"5"}, "pid": {"1"}},
			},
		},
	}
}

func TestConvertFromPProfProducesOneSample(t *testing.T) {
	pp := buildPProf(t)
	p, err := ConvertFromPProf(pp)
	require.NoError(t, err)

	require.Equal(t, 1, p.NumSamples())
	assert.Equal(t, []uint64{250}, p.SampleAt(0).Values())
	assert.Equal(t, "cpu", p.StringAt(p.ValueTypes[0].TypeSID))
}

func TestConvertFromPProfNegativeValuesClampToZero(t *testing.T) {
	pp := buildPProf(t)
	pp.Sample[0].Value = []int64{-5}

	p, err := ConvertFromPProf(pp)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, p.SampleAt(0).Values())
}

func TestConvertFromPProfInfersKernelStacks(t *testing.T) {
	pp := buildPProf(t)
	pp.Mapping[0].File = "[kernel.kallsyms]"

	p, err := ConvertFromPProf(pp)
	require.NoError(t, err)
	key := p.SampleAt(0).Key()
	stack := p.StackAt(key.StackIDs[0])
	assert.Equal(t, profile.StackKindKernel, stack.Kind)
}

func TestConvertFromPProfFoldsThreadMetaLabelsIntoThread(t *testing.T) {
	pp := buildPProf(t)
	pp.Sample[0].Label["thread_comm"] = []string{"worker"}

	p, err := ConvertFromPProf(pp)
	require.NoError(t, err)

	key := p.SampleAt(0).Key()
	require.NotEqual(t, profile.ThreadID(0), key.ThreadID)
	th := p.ThreadAt(key.ThreadID)
	assert.Equal(t, uint64(5), th.TID)
	assert.Equal(t, uint64(1), th.PID)
	assert.Equal(t, "worker", p.StringAt(th.ThreadNameSID))

	// Only "env" survives as a plain label.
	require.Len(t, key.LabelIDs, 1)
	assert.Equal(t, "env", p.StringAt(p.LabelAt(key.LabelIDs[0]).KeySID))
}

func TestConvertFromPProfMatchesPeriodTypeToSampleType(t *testing.T) {
	pp := buildPProf(t)
	p, err := ConvertFromPProf(pp)
	require.NoError(t, err)

	require.Len(t, p.ValueTypes, 1, "period type coincides with the sample type, no extra slot")
	assert.Equal(t, profile.ValueTypeIndex(0), p.PeriodValueTypeIndex)
	assert.Equal(t, uint64(1000), p.Period)
}

func TestConvertFromPProfAppendsUnmatchedPeriodType(t *testing.T) {
	pp := buildPProf(t)
	pp.PeriodType = &ppprof.ValueType{Type: "space", Unit: "bytes"}

	p, err := ConvertFromPProf(pp)
	require.NoError(t, err)

	require.Len(t, p.ValueTypes, 2)
	assert.Equal(t, profile.ValueTypeIndex(1), p.PeriodValueTypeIndex)
	// The appended slot contributes zero to every sample, keeping
	// values parallel to value types.
	assert.Equal(t, []uint64{250, 0}, p.SampleAt(0).Values())
}

func TestConvertToPProfRoundTripsSampleCount(t *testing.T) {
	pp := buildPProf(t)
	p, err := ConvertFromPProf(pp)
	require.NoError(t, err)

	out, err := ConvertToPProf(p)
	require.NoError(t, err)

	require.Len(t, out.Sample, 1)
	assert.Equal(t, []int64{250}, out.Sample[0].Value)
	require.Len(t, out.SampleType, 1)
	assert.Equal(t, "cpu", out.SampleType[0].Type)
}
