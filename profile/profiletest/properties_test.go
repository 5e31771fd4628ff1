package profiletest

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadil-01/perforator/flatdiff"
	"github.com/aadil-01/perforator/merge"
	"github.com/aadil-01/perforator/parallelmerge"
	"github.com/aadil-01/perforator/pprofconv"
	"github.com/aadil-01/perforator/profile"
)

// scenario returns a small set of realistic multi-binary,
// multi-function, multi-thread sample specs used as the shared input
// for the property tests below.
func scenario() []SampleSpec {
	return []SampleSpec{
		{
			Stacks: []Stack{{
				Binary:    "/usr/bin/app",
				File:      "main.go",
				Functions: []string{"main.main", "main.serve", "main.handle"},
			}},
			ThreadTID:   1,
			ProcessID:   100,
			ThreadName:  "main",
			ProcessName: "app",
			TimestampNs: 1000,
			Labels:      map[string]string{"env": "prod"},
			Values:      []uint64{5},
		},
		{
			Stacks: []Stack{{
				Binary:    "/usr/bin/app",
				File:      "main.go",
				Functions: []string{"main.main", "main.serve", "main.handle"},
			}},
			ThreadTID:   1,
			ProcessID:   100,
			ThreadName:  "main",
			ProcessName: "app",
			TimestampNs: 1000,
			Labels:      map[string]string{"env": "prod"},
			Values:      []uint64{7},
		},
		{
			Stacks: []Stack{{
				Binary:    "/usr/bin/app",
				File:      "worker.go",
				Functions: []string{"main.main", "main.spawn", "worker.run"},
			}},
			ThreadTID:   2,
			ProcessID:   100,
			ThreadName:  "worker-0",
			ProcessName: "app",
			TimestampNs: 2000,
			Labels:      map[string]string{"env": "prod", "shard": "3"},
			Values:      []uint64{3},
		},
		{
			Stacks: []Stack{{
				Binary:    "/usr/bin/sidecar",
				File:      "sidecar.go",
				Functions: []string{"sidecar.main", "sidecar.push"},
			}},
			ThreadTID:   1,
			ProcessID:   200,
			ThreadName:  "main",
			ProcessName: "sidecar",
			TimestampNs: 1500,
			Values:      []uint64{9},
		},
	}
}

func totalValue(p *profile.Profile) uint64 {
	var total uint64
	for i := 0; i < p.NumSamples(); i++ {
		for _, v := range p.SampleAt(i).Values() {
			total += v
		}
	}
	return total
}

func mergeAll(t *testing.T, inputs ...*profile.Profile) *profile.Profile {
	t.Helper()
	m := merge.New(merge.Options{})
	for _, in := range inputs {
		require.NoError(t, m.Add(in))
	}
	out, err := m.Finish()
	require.NoError(t, err)
	return out
}

func flatten(t *testing.T, p *profile.Profile) flatdiff.View {
	t.Helper()
	v, err := flatdiff.Build(p, flatdiff.Options{})
	require.NoError(t, err)
	return v
}

// TestPProfRoundTripPreservesFlatDiffableView checks that converting a
// built profile to pprof and back yields a profile whose flat-diffable
// view is unchanged.
func TestPProfRoundTripPreservesFlatDiffableView(t *testing.T) {
	p := Build(scenario()...)
	before := flatten(t, p)

	pp, err := pprofconv.ConvertToPProf(p)
	require.NoError(t, err)
	roundTripped, err := pprofconv.ConvertFromPProf(pp)
	require.NoError(t, err)
	after := flatten(t, roundTripped)

	assert.Equal(t, before, after)
}

// TestMergeIsCommutative checks that merging two inputs in either
// order produces the same flat-diffable view.
func TestMergeIsCommutative(t *testing.T) {
	specs := scenario()

	forward := mergeAll(t, Build(specs[0], specs[1]), Build(specs[2], specs[3]))
	backward := mergeAll(t, Build(specs[2], specs[3]), Build(specs[0], specs[1]))

	assert.Equal(t, flatten(t, forward), flatten(t, backward))
}

// TestMergeIsAssociative checks that (A+B)+C and A+(B+C) agree, via
// merging all three directly against a grouped two-step merge.
func TestMergeIsAssociative(t *testing.T) {
	specs := scenario()
	left := mergeAll(t, mergeAll(t, Build(specs[0]), Build(specs[1])), Build(specs[2]))
	right := mergeAll(t, Build(specs[0]), mergeAll(t, Build(specs[1]), Build(specs[2])))

	assert.Equal(t, flatten(t, left), flatten(t, right))
}

// TestMergeOfSingleInputIsIdempotent checks that merging exactly one
// input leaves its flat-diffable view unchanged.
func TestMergeOfSingleInputIsIdempotent(t *testing.T) {
	p := Build(scenario()...)
	merged := mergeAll(t, p)
	assert.Equal(t, flatten(t, p), flatten(t, merged))
}

// TestParallelMergeMatchesSerialMerge checks that the parallel
// pipeline's output is indistinguishable, under the flat-diffable
// view, from a serial merge over the same inputs.
func TestParallelMergeMatchesSerialMerge(t *testing.T) {
	specs := scenario()
	inputs := make([]*profile.Profile, 0, len(specs))
	for _, s := range specs {
		inputs = append(inputs, Build(s))
	}

	serial := mergeAll(t, inputs...)

	out := profile.New()
	pipe := parallelmerge.New(context.Background(), out, parallelmerge.Options{ConcurrencyLevel: 3, BufferSize: 4})
	for _, in := range inputs {
		require.NoError(t, pipe.Add(in))
	}
	parallel, err := pipe.Finish()
	require.NoError(t, err)

	assert.Equal(t, flatten(t, serial), flatten(t, parallel))
}

// TestMergeSaturatesOnValueOverflow checks that combining two samples
// whose values would overflow uint64 saturates at math.MaxUint64
// rather than wrapping.
func TestMergeSaturatesOnValueOverflow(t *testing.T) {
	spec := SampleSpec{
		Stacks:      []Stack{{Binary: "/usr/bin/app", File: "main.go", Functions: []string{"main.main"}}},
		TimestampNs: 1,
		Values:      []uint64{math.MaxUint64 - 1},
	}
	a := Build(spec)
	spec.Values = []uint64{10}
	b := Build(spec)

	merged := mergeAll(t, a, b)
	require.Equal(t, 1, merged.NumSamples())
	assert.Equal(t, []uint64{math.MaxUint64}, merged.SampleAt(0).Values())
	assert.Equal(t, uint64(math.MaxUint64), totalValue(merged))
}
