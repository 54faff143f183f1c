package export

import (
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/okian/hpde-analytics/internal/domain/model"
)

const productID = "-//hpde-analytics//MSR export//EN"

var calendarDateLayouts = []string{ //nolint:gochecknoglobals // static layouts
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// WriteCalendar encodes calendar events as an iCalendar document with one
// all-day VEVENT per event. Events without a parseable start are skipped
// and counted in the returned value.
func WriteCalendar(w io.Writer, events []model.RawRecord, stamp time.Time) (skipped int, err error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, rec := range events {
		start, ok := parseCalendarDate(rec.String("start"))
		if !ok {
			skipped++
			continue
		}

		ev := ical.NewEvent()
		uid := rec.String("id")
		if uid == "" {
			uid = start.Format("20060102") + "-" + strings.ToLower(strings.ReplaceAll(rec.String("name"), " ", "-"))
		}
		ev.Props.SetText(ical.PropUID, uid+"@motorsportreg.com")
		ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		ev.Props.SetDate(ical.PropDateTimeStart, start)
		if end, ok := parseCalendarDate(rec.String("end")); ok && !end.Before(start) {
			// DTEND of an all-day event is exclusive.
			ev.Props.SetDate(ical.PropDateTimeEnd, end.AddDate(0, 0, 1))
		}
		if name := rec.String("name"); name != "" {
			ev.Props.SetText(ical.PropSummary, name)
		}
		if loc := venue(rec); loc != "" {
			ev.Props.SetText(ical.PropLocation, loc)
		}
		if u := firstField(rec, "detailuri", "url", "uri"); u != "" {
			ev.Props.SetText(ical.PropURL, u)
		}
		cal.Children = append(cal.Children, ev.Component)
	}

	if len(cal.Children) == 0 {
		return skipped, ErrNoEvents
	}
	return skipped, ical.NewEncoder(w).Encode(cal)
}

func parseCalendarDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range calendarDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// venue renders the venue object or string of a calendar event.
func venue(rec model.RawRecord) string {
	switch v := rec["venue"].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		vr := model.RawRecord(v)
		parts := make([]string, 0, 3)
		for _, k := range []string{"name", "city", "region"} {
			if s := vr.String(k); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func firstField(rec model.RawRecord, keys ...string) string {
	for _, k := range keys {
		if v := rec.String(k); v != "" {
			return v
		}
	}
	return ""
}
