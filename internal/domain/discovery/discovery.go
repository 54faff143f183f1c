// Package discovery builds a field inventory from raw API responses:
// every dotted path seen, its detected type, how often it occurred, and a
// masked sample value.
package discovery

import (
	"sort"
	"time"
)

// Inventory format version.
const Version = "1.0.0"

// arraySample is how many array items are inspected per array.
const arraySample = 3

// Field describes one discovered path. Array items use "[]" in the path,
// e.g. "assignments[].vehicle.make".
type Field struct {
	Path        string `json:"path"`
	Type        Type   `json:"type"`
	Occurrences int    `json:"occurrences"`
	Nullable    bool   `json:"nullable"`
	Sample      any    `json:"sample,omitempty"`
}

// Inventory accumulates fields across endpoints. The zero value is not
// usable; call New.
type Inventory struct {
	fields    map[string]*Field
	endpoints map[string][]string
	seen      map[string]map[string]bool
	order     []string
}

// New returns an empty Inventory.
func New() *Inventory {
	return &Inventory{
		fields:    make(map[string]*Field),
		endpoints: make(map[string][]string),
		seen:      make(map[string]map[string]bool),
	}
}

// Analyze walks data and records its fields under endpoint. Objects that
// carry an "error" key are treated as failed responses and skipped. It
// returns the number of paths not seen before.
func (inv *Inventory) Analyze(endpoint string, data any) int {
	if m, ok := data.(map[string]any); ok {
		if _, failed := m["error"]; failed {
			return 0
		}
	}
	before := len(inv.fields)
	inv.walk(endpoint, "", data)
	return len(inv.fields) - before
}

func (inv *Inventory) walk(endpoint, path string, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if path != "" {
				child = path + "." + k
			}
			inv.walk(endpoint, child, t[k])
		}
	case []any:
		inv.record(endpoint, path, TypeArray, nil)
		for i, item := range t {
			if i == arraySample {
				break
			}
			inv.walk(endpoint, path+"[]", item)
		}
	default:
		inv.record(endpoint, path, DetectType(v), v)
	}
}

func (inv *Inventory) record(endpoint, path string, typ Type, value any) {
	if path == "" {
		return
	}
	f, ok := inv.fields[path]
	switch {
	case !ok:
		f = &Field{Path: path, Type: typ, Occurrences: 1, Nullable: typ == TypeNull}
		if typ != TypeNull && typ != TypeArray {
			f.Sample = Mask(value)
		}
		inv.fields[path] = f
	default:
		f.Occurrences++
		if typ == TypeNull {
			f.Nullable = true
		} else if f.Type == TypeNull {
			f.Type = typ
			if typ != TypeArray {
				f.Sample = Mask(value)
			}
		}
	}

	if _, ok := inv.seen[endpoint]; !ok {
		inv.seen[endpoint] = make(map[string]bool)
		inv.order = append(inv.order, endpoint)
	}
	if !inv.seen[endpoint][path] {
		inv.seen[endpoint][path] = true
		inv.endpoints[endpoint] = append(inv.endpoints[endpoint], path)
	}
}

// Len returns the number of distinct paths.
func (inv *Inventory) Len() int { return len(inv.fields) }

// Endpoints returns endpoint names in the order they were first analyzed.
func (inv *Inventory) Endpoints() []string {
	return append([]string(nil), inv.order...)
}

// ByType groups paths by detected type; paths are sorted.
func (inv *Inventory) ByType() map[Type][]string {
	out := make(map[Type][]string)
	for path, f := range inv.fields {
		out[f.Type] = append(out[f.Type], path)
	}
	for _, paths := range out {
		sort.Strings(paths)
	}
	return out
}

// Metadata heads the inventory document.
type Metadata struct {
	GeneratedAt       time.Time `json:"generated_at"`
	Version           string    `json:"version"`
	TotalFields       int       `json:"total_fields"`
	EndpointsAnalyzed int       `json:"endpoints_analyzed"`
}

// Summary lists field counts per endpoint.
type Summary struct {
	Endpoints   []string       `json:"endpoints"`
	FieldCounts map[string]int `json:"field_counts"`
}

// EndpointFields is the field list of one endpoint.
type EndpointFields struct {
	FieldCount int     `json:"field_count"`
	Fields     []Field `json:"fields"`
}

// Report is the serializable inventory written to field_inventory.json.
type Report struct {
	Metadata  Metadata                  `json:"metadata"`
	Summary   Summary                   `json:"summary"`
	Endpoints map[string]EndpointFields `json:"endpoints"`
	AllFields []Field                   `json:"all_fields"`
}

// Report snapshots the inventory. Field lists are sorted by path.
func (inv *Inventory) Report(at time.Time) Report {
	r := Report{
		Metadata: Metadata{
			GeneratedAt:       at,
			Version:           Version,
			TotalFields:       len(inv.fields),
			EndpointsAnalyzed: len(inv.order),
		},
		Summary: Summary{
			Endpoints:   inv.Endpoints(),
			FieldCounts: make(map[string]int, len(inv.order)),
		},
		Endpoints: make(map[string]EndpointFields, len(inv.order)),
	}
	for _, ep := range inv.order {
		paths := append([]string(nil), inv.endpoints[ep]...)
		sort.Strings(paths)
		fields := make([]Field, 0, len(paths))
		for _, p := range paths {
			fields = append(fields, *inv.fields[p])
		}
		r.Summary.FieldCounts[ep] = len(paths)
		r.Endpoints[ep] = EndpointFields{FieldCount: len(paths), Fields: fields}
	}

	all := make([]string, 0, len(inv.fields))
	for p := range inv.fields {
		all = append(all, p)
	}
	sort.Strings(all)
	r.AllFields = make([]Field, 0, len(all))
	for _, p := range all {
		r.AllFields = append(r.AllFields, *inv.fields[p])
	}
	return r
}
