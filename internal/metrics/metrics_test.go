package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAgainstSuppliedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MergeInputsTotal.Inc()
	m.MergeSamplesCombinedTotal.Add(3)
	m.PipelineQueueDepth.Set(2)
	m.ValidateFailuresTotal.WithLabelValues("samples").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]*dto.MetricFamily{}
	for _, f := range families {
		names[f.GetName()] = f
	}
	assert.Contains(t, names, "profile_core_merge_inputs_total")
	assert.Contains(t, names, "profile_core_merge_samples_combined_total")
	assert.Contains(t, names, "profile_core_merge_duration_seconds")
	assert.Contains(t, names, "profile_core_pipeline_queue_depth")
	assert.Contains(t, names, "profile_core_validate_failures_total")

	assert.Equal(t, float64(1), names["profile_core_merge_inputs_total"].Metric[0].Counter.GetValue())
	assert.Equal(t, float64(3), names["profile_core_merge_samples_combined_total"].Metric[0].Counter.GetValue())
}

func TestQuantileReflectsObservedDurations(t *testing.T) {
	m := New(prometheus.NewRegistry())
	assert.Equal(t, float64(0), m.Quantile(0.5))

	for _, ms := range []int{10, 20, 30, 40, 50} {
		m.ObserveMergeDuration(time.Duration(ms) * time.Millisecond)
	}

	median := m.Quantile(0.5)
	assert.InDelta(t, 0.03, median, 0.015)
}
