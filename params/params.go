// Package params models the single-or-multi-valued parameter sets carried by
// API Gateway proxy events and provides the canonical merge/split conversions
// between the event's two map views and one merged mapping.
package params

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Value is one merged parameter value: either a single string or an ordered
// sequence of strings. The shape is preserved so that a merged mapping can be
// split back into the exact single/multi views it was built from.
type Value struct {
	values []string
	multi  bool
}

// Single returns a single-valued Value.
func Single(v string) Value {
	return Value{values: []string{v}}
}

// Multi returns a multi-valued Value preserving the order of vs.
func Multi(vs ...string) Value {
	return Value{values: append([]string(nil), vs...), multi: true}
}

// IsMulti reports whether the value carries the multi-valued shape.
func (v Value) IsMulti() bool {
	return v.multi
}

// First returns the first value, or the empty string when none exists.
func (v Value) First() string {
	if len(v.values) == 0 {
		return ""
	}
	return v.values[0]
}

// Last returns the last value, or the empty string when none exists.
func (v Value) Last() string {
	if len(v.values) == 0 {
		return ""
	}
	return v.values[len(v.values)-1]
}

// Strings returns a copy of all values in source order. A single-valued Value
// yields a one-element slice.
func (v Value) Strings() []string {
	return append([]string(nil), v.values...)
}

// Map is a merged parameter mapping keyed by parameter name.
type Map map[string]Value

// Merge combines the two event views of one parameter set into a merged
// mapping. Every key from singles is copied first, then every key from multis
// overwrites any same-named single entry: the multi-valued view is
// authoritative on conflict.
func Merge(singles map[string]string, multis map[string][]string) Map {
	merged := make(Map, len(singles)+len(multis))
	for k, v := range singles {
		merged[k] = Single(v)
	}
	for k, vs := range multis {
		merged[k] = Multi(vs...)
	}
	return merged
}

// Split partitions a merged mapping back into the single-valued and
// multi-valued views based on the shape of each value. Every key lands in
// exactly one of the two outputs.
func Split(merged Map) (singles map[string]string, multis map[string][]string) {
	singles = make(map[string]string)
	multis = make(map[string][]string)
	for k, v := range merged {
		if v.IsMulti() {
			multis[k] = v.Strings()
		} else {
			singles[k] = v.First()
		}
	}
	return singles, multis
}

// FromAny builds a merged mapping from a loosely-typed map whose values are
// either strings or string slices, mirroring the runtime-shape semantics of
// Merge/Split. Any other value type is an error.
func FromAny(m map[string]any) (Map, error) {
	merged := make(Map, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case string:
			merged[k] = Single(tv)
		case []string:
			merged[k] = Multi(tv...)
		case []any:
			vs := make([]string, 0, len(tv))
			for _, item := range tv {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("parameter %q: unsupported element type %T", k, item)
				}
				vs = append(vs, s)
			}
			merged[k] = Multi(vs...)
		default:
			return nil, fmt.Errorf("parameter %q: unsupported value type %T", k, v)
		}
	}
	return merged, nil
}

// FromValues builds a merged mapping from url.Values. Keys with one value
// take the single shape, keys with several the multi shape.
func FromValues(values url.Values) Map {
	merged := make(Map, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			merged[k] = Single(vs[0])
		} else {
			merged[k] = Multi(vs...)
		}
	}
	return merged
}

// Views renders the mapping as the two overlapping maps an API Gateway proxy
// event carries: every key appears in both, the single view holding the last
// value. Unlike Split, the views are complete rather than a partition.
func (m Map) Views() (singles map[string]string, multis map[string][]string) {
	singles = make(map[string]string, len(m))
	multis = make(map[string][]string, len(m))
	for k, v := range m {
		singles[k] = v.Last()
		multis[k] = v.Strings()
	}
	return singles, multis
}

// Values flattens the mapping into url.Values, expanding multi-valued entries
// in source order.
func (m Map) Values() url.Values {
	values := make(url.Values, len(m))
	for k, v := range m {
		values[k] = v.Strings()
	}
	return values
}

// Header flattens the mapping into an http.Header with canonicalized keys.
func (m Map) Header() http.Header {
	header := make(http.Header, len(m))
	for k, v := range m {
		for _, item := range v.Strings() {
			header.Add(k, item)
		}
	}
	return header
}

// Encode serializes the mapping as a canonical query string: keys sorted,
// values percent-encoded, multi-valued entries expanded in source order.
func (m Map) Encode() string {
	return m.Values().Encode()
}

// Lookup scans the mapping case-insensitively for name and returns the first
// matching value in sorted key order.
func (m Map) Lookup(name string) (Value, bool) {
	var keys []string
	for k := range m {
		if strings.EqualFold(k, name) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return Value{}, false
	}
	sort.Strings(keys)
	return m[keys[0]], true
}
