// Package flatdiff implements a transform from a canonical
// Profile into a flat, JSON-comparable view keyed by sample content
// rather than by assigned id, used to compare profiles for semantic
// equivalence independent of interning order.
package flatdiff

import (
	"encoding/json"

	"github.com/ianlancetaylor/demangle"

	"github.com/aadil-01/perforator/profile"
)

// Options configures what Build includes in each rendered sample key.
type Options struct {
	// PrintTimestamps includes each sample key's timestamp (in
	// microseconds) in its rendered key. Off by default so that
	// profiles which differ only in collection wall-clock time still
	// compare equal.
	PrintTimestamps bool
	// PrintBuildIDs includes each frame's binary build id.
	PrintBuildIDs bool
	// PrintAddresses includes each frame's binary-relative offset.
	PrintAddresses bool
	// Demangle maps a possibly-mangled function name to its
	// human-readable form. Defaults to demangle.Filter (a no-op for
	// names that don't look mangled) when nil.
	Demangle func(string) string
}

func (o Options) demangle(name string) string {
	if o.Demangle != nil {
		return o.Demangle(name)
	}
	return demangle.Filter(name)
}

// View is the flat-diffable rendering: JSON-serialized sample key ->
// "type:unit" value-type label -> combined value.
type View map[string]map[string]uint64

// Build renders p into a View. When distinct sample keys flatten to
// the same JSON string (e.g. two keys differing only in a timestamp
// that PrintTimestamps is discarding), their values are summed with
// the same saturating semantics as package merge's sample combining,
// so the view stays meaningful as a semantic-equivalence fingerprint
// rather than silently picking one arbitrary winner.
func Build(p *profile.Profile, opts Options) (View, error) {
	view := make(View, p.NumSamples())
	for i := 0; i < p.NumSamples(); i++ {
		sv := p.SampleAt(i)

		raw, err := json.Marshal(buildKeyObject(p, sv.Key(), opts))
		if err != nil {
			return nil, err
		}
		keyStr := string(raw)

		values, ok := view[keyStr]
		if !ok {
			values = make(map[string]uint64, len(p.ValueTypes))
			view[keyStr] = values
		}
		for j, vt := range p.ValueTypes {
			label := p.StringAt(vt.TypeSID) + ":" + p.StringAt(vt.UnitSID)
			values[label] = saturatingAdd(values[label], sv.Values()[j])
		}
	}
	return view, nil
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return ^uint64(0)
	}
	return sum
}

type keyObject struct {
	Timestamp *int64         `json:"timestamp,omitempty"`
	Labels    map[string]any `json:"labels,omitempty"`
	Stack     []frameObject  `json:"stack"`
}

type frameObject struct {
	Binary   binaryObject `json:"binary"`
	Address  *uint64      `json:"address,omitempty"`
	File     string       `json:"file"`
	Line     uint32       `json:"line"`
	Function string       `json:"function"`
}

type binaryObject struct {
	BuildID string `json:"buildid,omitempty"`
	Path    string `json:"path"`
}

func buildKeyObject(p *profile.Profile, key profile.SampleKey, opts Options) keyObject {
	obj := keyObject{Labels: buildLabels(p, key)}
	if opts.PrintTimestamps {
		us := key.TimestampNs / 1000
		obj.Timestamp = &us
	}
	for _, stackID := range key.StackIDs {
		obj.Stack = append(obj.Stack, buildStackFrames(p, stackID, opts)...)
	}
	return obj
}

// buildLabels flattens a sample key's labels plus its thread's
// metadata into a single ordered-then-grouped map: thread metadata
// becomes additional "tid"/"pid"/"thread_comm"/
// "process_comm"/"workload" labels. A key with exactly one value
// renders as a scalar; a key with several (either repeated labels or
// several container workloads) renders as an ordered list.
func buildLabels(p *profile.Profile, key profile.SampleKey) map[string]any {
	var order []string
	grouped := map[string][]any{}
	add := func(k string, v any) {
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], v)
	}

	for _, labelID := range key.LabelIDs {
		l := p.LabelAt(labelID)
		k := p.StringAt(l.KeySID)
		switch l.Kind {
		case profile.LabelValueString:
			add(k, p.StringAt(l.StrSID))
		case profile.LabelValueInt64:
			add(k, l.Int64)
		case profile.LabelValueFloat64:
			add(k, l.Float64)
		}
	}

	if key.ThreadID != 0 {
		t := p.ThreadAt(key.ThreadID)
		add("tid", t.TID)
		add("pid", t.PID)
		if t.ThreadNameSID != 0 {
			add("thread_comm", p.StringAt(t.ThreadNameSID))
		}
		if t.ProcessNameSID != 0 {
			add("process_comm", p.StringAt(t.ProcessNameSID))
		}
		for _, c := range t.Containers {
			add("workload", p.StringAt(c))
		}
	}

	if len(order) == 0 {
		return nil
	}
	out := make(map[string]any, len(order))
	for _, k := range order {
		vs := grouped[k]
		if len(vs) == 1 {
			out[k] = vs[0]
		} else {
			out[k] = vs
		}
	}
	return out
}

// buildStackFrames flattens one canonical stack frame into one flat
// entry per inline-chain source line (innermost first), since a
// single native frame can represent several inlined calls that a flat
// diff needs to distinguish. A frame with no resolved inline chain
// (id 0, an unsymbolized or kernel address) renders as a single
// entry with empty file/function.
func buildStackFrames(p *profile.Profile, stackID profile.StackID, opts Options) []frameObject {
	var out []frameObject
	for _, frameID := range p.StackFrames(stackID) {
		fr := p.FrameAt(frameID)
		bin := p.BinaryAt(fr.BinaryID)
		binObj := binaryObject{Path: p.StringAt(bin.PathSID)}
		if opts.PrintBuildIDs {
			binObj.BuildID = p.StringAt(bin.BuildIDSID)
		}
		var addr *uint64
		if opts.PrintAddresses {
			a := uint64(fr.BinaryOffset)
			addr = &a
		}

		lines := p.InlineChainAt(fr.InlineChainID)
		if len(lines) == 0 {
			out = append(out, frameObject{Binary: binObj, Address: addr})
			continue
		}
		for _, l := range lines {
			fn := p.FunctionAt(l.FunctionID)
			out = append(out, frameObject{
				Binary:   binObj,
				Address:  addr,
				File:     p.StringAt(fn.FileNameSID),
				Line:     l.Line,
				Function: opts.demangle(p.StringAt(fn.NameSID)),
			})
		}
	}
	return out
}
