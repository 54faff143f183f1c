// Package classify turns raw MSR registration records into participation
// records for the Time Trials report. Everything here is pure: no I/O, no
// clocks, and identical input always yields identical output.
package classify

import (
	"fmt"
	"strings"

	"github.com/okian/hpde-analytics/internal/domain/model"
)

// Group and segment markers as they appear in MSR registrations.
const (
	groupTimeTrials   = "time trials"
	groupInstructing  = "instructing"
	groupAdvancedHPDE = "advanced hpde"
	segmentWorkers    = "workers"
)

var ayceMarkers = []string{"ayce", "all you can eat"} //nolint:gochecknoglobals // static markers

// WarningKind names a soft classification problem.
type WarningKind string

// Warning kinds. None aborts classification.
const (
	WarnUnknownClass WarningKind = "unknown_class"
	WarnNoDays       WarningKind = "no_days"
	WarnNoIdentity   WarningKind = "no_identity"
)

// Warning flags a record that reviewers should look at.
type Warning struct {
	Kind     WarningKind
	DriverID string
	Name     string
	Detail   string
}

// Input holds the raw records of one event.
//
// Sessions are the entry-list rows: one per driver and segment, carrying the
// registration group and the day in the segment label. Attendees add contact
// and membership data. Assignments add the tire brand and may contribute
// Time Trials days of their own.
type Input struct {
	Sessions    []model.RawRecord
	Attendees   []model.RawRecord
	Assignments []model.RawRecord
}

// Result is the classification output. Records follow the order in which
// drivers first appear in Input.Sessions.
type Result struct {
	Records  []model.ParticipationRecord
	Warnings []Warning
}

type driver struct {
	fact       model.AttendanceFact
	timeTrials bool
}

// Classify derives one participation record per Time Trials driver.
//
// A nameless Time Trials session aborts with UnmatchedIdentity since its
// driver would be missing from the report. Nameless sessions in other
// groups are skipped with a no_identity warning.
func Classify(in Input) (Result, error) {
	var res Result
	drivers := make(map[string]*driver)
	order := make([]string, 0, len(in.Sessions))

	for i, row := range in.Sessions {
		segment := row.String("segment")
		if isWorkerOnly(segment) {
			continue
		}
		key := identityKey(row)
		if key == "" {
			group := row.String("group")
			if contains(group, groupTimeTrials) {
				return Result{}, unmatchedIdentity(fmt.Sprintf("time trials entry list row %d has no driver name", i))
			}
			res.Warnings = append(res.Warnings, Warning{
				Kind:   WarnNoIdentity,
				Detail: fmt.Sprintf("entry list row %d (%s, %s) has no driver name", i, group, segment),
			})
			continue
		}

		d, ok := drivers[key]
		if !ok {
			d = &driver{fact: model.AttendanceFact{
				DriverID:  driverID(row, key),
				FirstName: row.String("firstName"),
				LastName:  row.String("lastName"),
			}}
			drivers[key] = d
			order = append(order, key)
		}
		d.applySession(row, segment)
	}

	attendees := lookup(in.Attendees)
	for key, d := range drivers {
		if att, ok := attendees[key]; ok {
			d.fact.Email = att.String("email")
			d.fact.MemberID = att.String("memberId")
			d.fact.Status = att.String("status")
		}
	}

	for _, row := range in.Assignments {
		d, ok := drivers[identityKey(row)]
		if !ok || !contains(row.String("group"), groupTimeTrials) {
			continue
		}
		d.applyAssignment(row)
	}

	for _, key := range order {
		d := drivers[key]
		if !d.timeTrials {
			continue
		}
		fact := d.fact
		group, known := ClassGroupFor(fact.TTClass)
		fact.ClassGroup = group
		if !known {
			res.Warnings = append(res.Warnings, Warning{
				Kind:     WarnUnknownClass,
				DriverID: fact.DriverID,
				Name:     fullName(fact),
				Detail:   fmt.Sprintf("class code %q is not in the class table", fact.TTClass),
			})
		}

		if fact.Days.Empty() {
			res.Warnings = append(res.Warnings, Warning{
				Kind:     WarnNoDays,
				DriverID: fact.DriverID,
				Name:     fullName(fact),
				Detail:   "time trials registration without a resolvable day",
			})
			continue
		}

		rec, err := Derive(fact)
		if err != nil {
			return Result{}, err
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// Derive computes DayCount and ParticipationType for a fact. A fact whose
// day set is empty or larger than three days is rejected.
func Derive(fact model.AttendanceFact) (model.ParticipationRecord, error) {
	count := fact.Days.Len()
	if count < 1 || count > 3 {
		return model.ParticipationRecord{}, invalidDayCount(fact.DriverID, count)
	}
	return model.ParticipationRecord{
		AttendanceFact:    fact,
		DayCount:          count,
		ParticipationType: ParticipationTypeFor(fact.IsInstructor, fact.AnyAYCE()),
	}, nil
}

// ParticipationTypeFor applies the fixed precedence: instructor with AYCE,
// then instructor, then AYCE, then Time Trials only.
func ParticipationTypeFor(instructor, ayce bool) model.ParticipationType {
	switch {
	case instructor && ayce:
		return model.TTInstructorAYCE
	case instructor:
		return model.TTInstructor
	case ayce:
		return model.TTAYCE
	default:
		return model.TTOnly
	}
}

func (d *driver) applySession(row model.RawRecord, segment string) {
	group := row.String("group")
	day, hasDay := model.ParseDay(segment)

	if contains(group, groupTimeTrials) {
		d.timeTrials = true
		if hasDay {
			d.fact.Days = d.fact.Days.Add(day)
		}
		if mentionsAYCE(group) || mentionsAYCE(segment) {
			d.fact.AYCETimeTrials = true
		}
		d.captureVehicle(row)
	}
	if contains(group, groupInstructing) {
		d.fact.IsInstructor = true
	}
	if contains(group, groupAdvancedHPDE) {
		d.fact.AYCEAdvancedHPDE = true
	}
}

// applyAssignment takes the day and tire brand only. Class and vehicle come
// from the entry list.
func (d *driver) applyAssignment(row model.RawRecord) {
	if day, ok := model.ParseDay(row.String("segment")); ok {
		d.fact.Days = d.fact.Days.Add(day)
	}
	if tire := row.String("tireBrand"); tire != "" {
		d.fact.Vehicle.Tire = tire
	}
}

// captureVehicle copies non-empty vehicle fields of a Time Trials session;
// later sessions win.
func (d *driver) captureVehicle(row model.RawRecord) {
	set := func(dst *string, key string) {
		if v := row.String(key); v != "" {
			*dst = v
		}
	}
	set(&d.fact.TTClass, "class")
	set(&d.fact.Vehicle.Number, "vehicleNumber")
	set(&d.fact.Vehicle.Year, "year")
	set(&d.fact.Vehicle.Make, "make")
	set(&d.fact.Vehicle.Model, "model")
	set(&d.fact.Vehicle.Color, "color")
	set(&d.fact.Vehicle.Sponsor, "sponsor")
}

// identityKey joins lowercased first and last names. Empty when both are blank.
func identityKey(row model.RawRecord) string {
	first := strings.ToLower(row.String("firstName"))
	last := strings.ToLower(row.String("lastName"))
	if first == "" && last == "" {
		return ""
	}
	return first + "|" + last
}

func driverID(row model.RawRecord, key string) string {
	for _, k := range []string{"profileId", "memberId", "id"} {
		if v := row.String(k); v != "" {
			return v
		}
	}
	return key
}

// lookup indexes records by identity; later records replace earlier ones.
func lookup(rows []model.RawRecord) map[string]model.RawRecord {
	out := make(map[string]model.RawRecord, len(rows))
	for _, r := range rows {
		if key := identityKey(r); key != "" {
			out[key] = r
		}
	}
	return out
}

func isWorkerOnly(segment string) bool {
	return segment == "" || contains(segment, segmentWorkers)
}

func mentionsAYCE(s string) bool {
	for _, m := range ayceMarkers {
		if contains(s, m) {
			return true
		}
	}
	return false
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

func fullName(f model.AttendanceFact) string {
	return strings.TrimSpace(f.FirstName + " " + f.LastName)
}
