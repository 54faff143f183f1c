package model

import (
	"strconv"
	"strings"
)

// Day is an event day a driver can attend.
type Day uint8

// Event days in calendar order.
const (
	Fri Day = 1 << iota
	Sat
	Sun
)

var allDays = [...]Day{Fri, Sat, Sun}

// String returns the short day name.
func (d Day) String() string {
	switch d {
	case Fri:
		return "Fri"
	case Sat:
		return "Sat"
	case Sun:
		return "Sun"
	default:
		return "?"
	}
}

// Long returns the full day name.
func (d Day) Long() string {
	switch d {
	case Fri:
		return "Friday"
	case Sat:
		return "Saturday"
	case Sun:
		return "Sunday"
	default:
		return ""
	}
}

// ParseDay finds a day name inside an MSR segment label such as
// "Saturday - Time Trials". ok is false when no day is named.
func ParseDay(segment string) (Day, bool) {
	s := strings.ToLower(segment)
	for _, d := range allDays {
		if strings.Contains(s, strings.ToLower(d.Long())) {
			return d, true
		}
	}
	return 0, false
}

// DaySet is a set of event days.
type DaySet uint8

// NewDaySet builds a set from days.
func NewDaySet(days ...Day) DaySet {
	var s DaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

// Add returns the set with d included.
func (s DaySet) Add(d Day) DaySet { return s | DaySet(d) }

// Union returns the union of both sets.
func (s DaySet) Union(o DaySet) DaySet { return s | o }

// Has reports whether d is in the set.
func (s DaySet) Has(d Day) bool { return s&DaySet(d) != 0 }

// Empty reports whether the set has no days.
func (s DaySet) Empty() bool { return s == 0 }

// Len returns the number of days in the set.
func (s DaySet) Len() int {
	n := 0
	for _, d := range allDays {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Days returns the members in calendar order.
func (s DaySet) Days() []Day {
	out := make([]Day, 0, len(allDays))
	for _, d := range allDays {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Label renders the set the way organizers read it: "All 3", "Fri/Sat",
// or the full day name for a single day.
func (s DaySet) Label() string {
	days := s.Days()
	switch len(days) {
	case 0:
		return ""
	case 1:
		return days[0].Long()
	case len(allDays):
		return "All 3"
	default:
		parts := make([]string, len(days))
		for i, d := range days {
			parts[i] = d.String()
		}
		return strings.Join(parts, "/")
	}
}

// ClassGroup is the coarse grouping of a Time Trials class.
type ClassGroup string

// Class groups.
const (
	ClassGroupMax       ClassGroup = "Max"
	ClassGroupSport     ClassGroup = "Sport"
	ClassGroupTuner     ClassGroup = "Tuner"
	ClassGroupUnlimited ClassGroup = "Unlimited"
	ClassGroupUnknown   ClassGroup = "Unknown"
)

// ParticipationType categorizes what a Time Trials driver did at the event.
type ParticipationType string

// Participation types.
const (
	TTOnly           ParticipationType = "TT_ONLY"
	TTInstructor     ParticipationType = "TT_INSTRUCTOR"
	TTAYCE           ParticipationType = "TT_AYCE"
	TTInstructorAYCE ParticipationType = "TT_INSTRUCTOR_AYCE"
)

// Label returns the human-facing name used in reports.
func (p ParticipationType) Label() string {
	switch p {
	case TTInstructorAYCE:
		return "TT + Instructor + AYCE"
	case TTInstructor:
		return "TT + Instructor"
	case TTAYCE:
		return "TT + AYCE"
	case TTOnly:
		return "TT Only"
	default:
		return string(p)
	}
}

// Vehicle describes the car a driver entered in Time Trials.
type Vehicle struct {
	Number  string
	Year    string
	Make    string
	Model   string
	Color   string
	Sponsor string
	Tire    string
}

// Description joins year, make and model, skipping blanks.
func (v Vehicle) Description() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{v.Year, v.Make, v.Model} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// AttendanceFact is what one driver did at one event, derived from the
// entry list, attendee and assignment records.
type AttendanceFact struct {
	DriverID         string
	FirstName        string
	LastName         string
	Email            string
	MemberID         string
	Status           string
	Vehicle          Vehicle
	Days             DaySet
	IsInstructor     bool
	AYCETimeTrials   bool
	AYCEAdvancedHPDE bool
	TTClass          string
	ClassGroup       ClassGroup
}

// AnyAYCE reports whether either AYCE flag is set.
func (f AttendanceFact) AnyAYCE() bool {
	return f.AYCETimeTrials || f.AYCEAdvancedHPDE
}

// ParticipationRecord is an AttendanceFact with its derived report fields.
type ParticipationRecord struct {
	AttendanceFact
	DayCount          int
	ParticipationType ParticipationType
}

// DayCountLabel renders DayCount as "1 Day", "2 Days" or "3 Days".
func (p ParticipationRecord) DayCountLabel() string {
	switch p.DayCount {
	case 1:
		return "1 Day"
	case 2, 3:
		return strconv.Itoa(p.DayCount) + " Days"
	default:
		return ""
	}
}
