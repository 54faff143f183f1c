package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Resource names an MSR endpoint family.
type Resource string

// Known resources.
const (
	ResourceProfile     Resource = "profile"
	ResourceCalendar    Resource = "calendar"
	ResourceEntryList   Resource = "entrylist"
	ResourceAttendees   Resource = "attendees"
	ResourceAssignments Resource = "assignments"
	ResourceTimingFeed  Resource = "timing"
)

// ListKey is the key inside the response envelope holding the item list.
// Empty for single-object resources.
func (r Resource) ListKey() string {
	switch r {
	case ResourceCalendar:
		return "events"
	case ResourceEntryList, ResourceAssignments:
		return "assignments"
	case ResourceAttendees:
		return "attendees"
	default:
		return ""
	}
}

// RawRecord is one opaque item as returned by the API.
type RawRecord map[string]any

// String returns the field as a trimmed string. Numbers are formatted
// without exponent, missing or null fields yield "".
func (r RawRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// RawSet is the drained result of one resource fetch. Records keep the
// order the API returned them in. Envelope holds the unwrapped response
// object of the last page for resources whose payload is not a list.
type RawSet struct {
	Resource  Resource
	Records   []RawRecord
	Envelope  map[string]any
	FetchedAt time.Time
}

// Len returns the number of records.
func (s RawSet) Len() int { return len(s.Records) }

// Document returns the JSON-shaped value persisted for this set: the
// envelope for single-object resources, otherwise {listKey: records}
// merged over the envelope.
func (s RawSet) Document() map[string]any {
	doc := make(map[string]any, len(s.Envelope)+1)
	for k, v := range s.Envelope {
		doc[k] = v
	}
	if key := s.Resource.ListKey(); key != "" {
		items := make([]any, len(s.Records))
		for i, r := range s.Records {
			items[i] = map[string]any(r)
		}
		doc[key] = items
	}
	return doc
}
