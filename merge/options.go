package merge

import (
	"github.com/aadil-01/perforator/internal/log"
	"github.com/aadil-01/perforator/internal/metrics"
)

// LabelFilter configures which input labels survive translation into
// the output profile. Filters are applied before labels are interned.
type LabelFilter struct {
	// SkippedKeyPrefixes drops any label whose key string starts with
	// one of these prefixes.
	SkippedKeyPrefixes []string
	// AllowedKeys, if non-empty, keeps only labels whose key is in this
	// set (applied after SkippedKeyPrefixes).
	AllowedKeys []string
}

func (f LabelFilter) allows(key string) bool {
	for _, prefix := range f.SkippedKeyPrefixes {
		if prefix != "" && len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			return false
		}
	}
	if len(f.AllowedKeys) == 0 {
		return true
	}
	for _, k := range f.AllowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Options configures how a Merger folds inputs together.
type Options struct {
	IgnoreProcessIDs   bool
	IgnoreThreadIDs    bool
	IgnoreTimestamps   bool
	CleanupThreadNames bool
	LabelFilter        LabelFilter

	// Logger receives debug-level entries for each Add call. Defaults
	// to a no-op logger when nil.
	Logger log.Logger
	// Metrics, if non-nil, is updated with per-Add counters and
	// duration observations.
	Metrics *metrics.Metrics
}

func (o Options) logger() log.Logger {
	if o.Logger == nil {
		return log.NewNop()
	}
	return o.Logger
}
