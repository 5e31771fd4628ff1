package canonicalpb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aadil-01/perforator/merge"
)

func TestMergeOptionsRoundTrip(t *testing.T) {
	opts := merge.Options{
		IgnoreProcessIDs:   true,
		IgnoreThreadIDs:    false,
		IgnoreTimestamps:   true,
		CleanupThreadNames: true,
		LabelFilter: merge.LabelFilter{
			SkippedKeyPrefixes: []string{"pid", "internal_"},
			AllowedKeys:        []string{"env", "shard"},
		},
	}

	data := MarshalMergeOptions(opts)
	require.NotEmpty(t, data)

	got, err := UnmarshalMergeOptions(data)
	require.NoError(t, err)

	assert.Equal(t, opts.IgnoreProcessIDs, got.IgnoreProcessIDs)
	assert.Equal(t, opts.IgnoreThreadIDs, got.IgnoreThreadIDs)
	assert.Equal(t, opts.IgnoreTimestamps, got.IgnoreTimestamps)
	assert.Equal(t, opts.CleanupThreadNames, got.CleanupThreadNames)
	assert.Equal(t, opts.LabelFilter.SkippedKeyPrefixes, got.LabelFilter.SkippedKeyPrefixes)
	assert.Equal(t, opts.LabelFilter.AllowedKeys, got.LabelFilter.AllowedKeys)
}

func TestMergeOptionsZeroValueRoundTripsToZeroValue(t *testing.T) {
	data := MarshalMergeOptions(merge.Options{})
	assert.Empty(t, data)

	got, err := UnmarshalMergeOptions(data)
	require.NoError(t, err)
	assert.Equal(t, merge.Options{}.IgnoreProcessIDs, got.IgnoreProcessIDs)
	assert.Empty(t, got.LabelFilter.SkippedKeyPrefixes)
	assert.Empty(t, got.LabelFilter.AllowedKeys)
}
