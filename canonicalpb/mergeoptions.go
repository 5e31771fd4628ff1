package canonicalpb

import "github.com/aadil-01/perforator/merge"

// Field numbers for the wire-serialized MergeOptions the FFI boundary
// accepts as merger_start's options_bytes. Chosen to track the field
// order of merge.Options.
const (
	fMergeOptsIgnoreProcessIDs   = 1
	fMergeOptsIgnoreThreadIDs    = 2
	fMergeOptsIgnoreTimestamps   = 3
	fMergeOptsCleanupThreadNames = 4
	fMergeOptsLabelFilter        = 5

	fLabelFilterSkippedPrefix = 1
	fLabelFilterAllowedKey    = 2
)

// MarshalMergeOptions encodes opts into the wire format accepted at
// the FFI boundary.
func MarshalMergeOptions(opts merge.Options) []byte {
	w := &writer{}
	if opts.IgnoreProcessIDs {
		w.uint32Field(fMergeOptsIgnoreProcessIDs, 1)
	}
	if opts.IgnoreThreadIDs {
		w.uint32Field(fMergeOptsIgnoreThreadIDs, 1)
	}
	if opts.IgnoreTimestamps {
		w.uint32Field(fMergeOptsIgnoreTimestamps, 1)
	}
	if opts.CleanupThreadNames {
		w.uint32Field(fMergeOptsCleanupThreadNames, 1)
	}
	if len(opts.LabelFilter.SkippedKeyPrefixes) > 0 || len(opts.LabelFilter.AllowedKeys) > 0 {
		sub := &writer{}
		for _, p := range opts.LabelFilter.SkippedKeyPrefixes {
			sub.bytesField(fLabelFilterSkippedPrefix, []byte(p))
		}
		for _, k := range opts.LabelFilter.AllowedKeys {
			sub.bytesField(fLabelFilterAllowedKey, []byte(k))
		}
		w.message(fMergeOptsLabelFilter, sub)
	}
	return w.buf.Bytes()
}

// UnmarshalMergeOptions decodes the bytes merger_start receives into
// a merge.Options, leaving unset fields at their zero value.
func UnmarshalMergeOptions(data []byte) (merge.Options, error) {
	var opts merge.Options
	r := &reader{data: data}
	for {
		f, ok, err := r.next()
		if err != nil {
			return merge.Options{}, err
		}
		if !ok {
			break
		}
		switch f.num {
		case fMergeOptsIgnoreProcessIDs:
			opts.IgnoreProcessIDs = f.uvarint != 0
		case fMergeOptsIgnoreThreadIDs:
			opts.IgnoreThreadIDs = f.uvarint != 0
		case fMergeOptsIgnoreTimestamps:
			opts.IgnoreTimestamps = f.uvarint != 0
		case fMergeOptsCleanupThreadNames:
			opts.CleanupThreadNames = f.uvarint != 0
		case fMergeOptsLabelFilter:
			lf, err := unmarshalLabelFilter(f.bytes)
			if err != nil {
				return merge.Options{}, err
			}
			opts.LabelFilter = lf
		}
	}
	return opts, nil
}

func unmarshalLabelFilter(data []byte) (merge.LabelFilter, error) {
	var lf merge.LabelFilter
	r := &reader{data: data}
	for {
		f, ok, err := r.next()
		if err != nil {
			return merge.LabelFilter{}, err
		}
		if !ok {
			break
		}
		switch f.num {
		case fLabelFilterSkippedPrefix:
			lf.SkippedKeyPrefixes = append(lf.SkippedKeyPrefixes, string(f.bytes))
		case fLabelFilterAllowedKey:
			lf.AllowedKeys = append(lf.AllowedKeys, string(f.bytes))
		}
	}
	return lf, nil
}
