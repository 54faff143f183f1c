package classify_test

import (
	"errors"
	"testing"

	"github.com/okian/hpde-analytics/internal/domain/classify"
	"github.com/okian/hpde-analytics/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func session(first, last, group, segment string, extra ...string) model.RawRecord {
	r := model.RawRecord{
		"firstName": first,
		"lastName":  last,
		"group":     group,
		"segment":   segment,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		r[extra[i]] = extra[i+1]
	}
	return r
}

func TestClassifyScenarios(t *testing.T) {
	Convey("Given raw event records", t, func() {
		Convey("When a driver has three Time Trials sessions on different days and no assignments", func() {
			in := classify.Input{Sessions: []model.RawRecord{
				session("Dana", "One", "Time Trials", "Friday - TT", "class", "Sport 2"),
				session("Dana", "One", "Time Trials", "Saturday - TT"),
				session("Dana", "One", "Time Trials", "Sunday - TT"),
			}}

			res, err := classify.Classify(in)

			Convey("Then one three-day TT_ONLY record should be produced", func() {
				So(err, ShouldBeNil)
				So(res.Records, ShouldHaveLength, 1)
				rec := res.Records[0]
				So(rec.Days, ShouldEqual, model.NewDaySet(model.Fri, model.Sat, model.Sun))
				So(rec.DayCount, ShouldEqual, 3)
				So(rec.ParticipationType, ShouldEqual, model.TTOnly)
				So(rec.ClassGroup, ShouldEqual, model.ClassGroupSport)
				So(res.Warnings, ShouldBeEmpty)
			})
		})

		Convey("When an instructing driver with AYCE Time Trials attends one day", func() {
			in := classify.Input{Sessions: []model.RawRecord{
				session("Drew", "Two", "Time Trials AYCE", "Saturday - TT", "class", "Max 5"),
				session("Drew", "Two", "Instructing", "Saturday - Instructors"),
			}}

			res, err := classify.Classify(in)

			Convey("Then the record should be TT_INSTRUCTOR_AYCE with one day", func() {
				So(err, ShouldBeNil)
				So(res.Records, ShouldHaveLength, 1)
				rec := res.Records[0]
				So(rec.IsInstructor, ShouldBeTrue)
				So(rec.AYCETimeTrials, ShouldBeTrue)
				So(rec.DayCount, ShouldEqual, 1)
				So(rec.ParticipationType, ShouldEqual, model.TTInstructorAYCE)
			})
		})

		Convey("When a class code is not in the class table", func() {
			in := classify.Input{Sessions: []model.RawRecord{
				session("Kai", "Three", "Time Trials", "Friday", "class", "Super Unlimited X"),
			}}

			res, err := classify.Classify(in)

			Convey("Then the record should be kept as Unknown with a warning", func() {
				So(err, ShouldBeNil)
				So(res.Records, ShouldHaveLength, 1)
				So(res.Records[0].ClassGroup, ShouldEqual, model.ClassGroupUnknown)
				So(res.Warnings, ShouldHaveLength, 1)
				So(res.Warnings[0].Kind, ShouldEqual, classify.WarnUnknownClass)
				So(res.Warnings[0].Name, ShouldEqual, "Kai Three")
			})
		})

		Convey("When a Time Trials driver has no resolvable day", func() {
			in := classify.Input{Sessions: []model.RawRecord{
				session("Lee", "Four", "Time Trials", "Weekend Package", "class", "Tuner 1"),
			}}

			res, err := classify.Classify(in)

			Convey("Then no record should be emitted and the driver should be flagged", func() {
				So(err, ShouldBeNil)
				So(res.Records, ShouldBeEmpty)
				So(res.Warnings, ShouldHaveLength, 1)
				So(res.Warnings[0].Kind, ShouldEqual, classify.WarnNoDays)
			})
		})

		Convey("When rows belong to workers or to non Time Trials drivers", func() {
			in := classify.Input{Sessions: []model.RawRecord{
				session("Wes", "Worker", "Time Trials", "Workers - Saturday"),
				session("Hal", "Hpde", "Advanced HPDE", "Saturday"),
				session("", "", "Time Trials", ""),
			}}

			res, err := classify.Classify(in)

			Convey("Then they should be skipped", func() {
				So(err, ShouldBeNil)
				So(res.Records, ShouldBeEmpty)
				So(res.Warnings, ShouldBeEmpty)
			})
		})

		Convey("When a Time Trials row has no identity", func() {
			in := classify.Input{Sessions: []model.RawRecord{
				session("", "", "Time Trials", "Friday - TT"),
			}}

			_, err := classify.Classify(in)

			Convey("Then classification should abort with UnmatchedIdentity", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, classify.ErrUnmatchedIdentity), ShouldBeTrue)
				So(errors.Is(err, classify.ErrClassification), ShouldBeTrue)
				var cerr *classify.Error
				So(errors.As(err, &cerr), ShouldBeTrue)
			})
		})

		Convey("When a nameless row belongs to another group", func() {
			in := classify.Input{Sessions: []model.RawRecord{
				session("Dana", "One", "Time Trials", "Friday - TT", "class", "Sport 2"),
				session("", "", "Novice HPDE", "Saturday - HPDE"),
			}}

			res, err := classify.Classify(in)

			Convey("Then the row should be skipped with a warning and the TT driver kept", func() {
				So(err, ShouldBeNil)
				So(res.Records, ShouldHaveLength, 1)
				So(res.Records[0].FirstName, ShouldEqual, "Dana")
				So(res.Warnings, ShouldHaveLength, 1)
				So(res.Warnings[0].Kind, ShouldEqual, classify.WarnNoIdentity)
				So(res.Warnings[0].Detail, ShouldContainSubstring, "row 1")
			})
		})

		Convey("When an assignment disagrees with the entry list on class and vehicle", func() {
			in := classify.Input{
				Sessions: []model.RawRecord{
					session("Dana", "One", "Time Trials", "Friday - TT", "class", "Sport 2", "make", "Mazda"),
				},
				Assignments: []model.RawRecord{
					{"firstName": "Dana", "lastName": "One", "group": "Time Trials", "segment": "Saturday - TT",
						"class": "Max 5", "make": "Porsche", "tireBrand": "Hoosier"},
				},
			}

			res, err := classify.Classify(in)

			Convey("Then class and vehicle should come from the entry list, tire and day from the assignment", func() {
				So(err, ShouldBeNil)
				So(res.Records, ShouldHaveLength, 1)
				rec := res.Records[0]
				So(rec.TTClass, ShouldEqual, "Sport 2")
				So(rec.ClassGroup, ShouldEqual, model.ClassGroupSport)
				So(rec.Vehicle.Make, ShouldEqual, "Mazda")
				So(rec.Vehicle.Tire, ShouldEqual, "Hoosier")
				So(rec.Days, ShouldEqual, model.NewDaySet(model.Fri, model.Sat))
			})
		})
	})
}

func TestClassifyJoins(t *testing.T) {
	Convey("Given sessions, attendees and assignments for the same drivers", t, func() {
		in := classify.Input{
			Sessions: []model.RawRecord{
				session("Zed", "Last", "Time Trials", "Friday - TT", "class", "Unlimited 1", "vehicleNumber", "77",
					"year", "2020", "make", "Porsche", "model", "GT3", "profileId", "P-9"),
				session("amy", "first", "Time Trials", "Saturday - TT", "class", "tuner-3"),
				session("Amy", "First", "Advanced HPDE", "Sunday - HPDE"),
			},
			Attendees: []model.RawRecord{
				{"firstName": "Amy", "lastName": "First", "email": "amy@example.com", "memberId": "M-1", "status": "Confirmed"},
				{"firstName": "Nobody", "lastName": "Here", "email": "x@example.com"},
			},
			Assignments: []model.RawRecord{
				{"firstName": "Zed", "lastName": "Last", "group": "Time Trials", "segment": "Sunday - TT", "tireBrand": "Hoosier"},
				{"firstName": "Amy", "lastName": "First", "group": "Advanced HPDE", "segment": "Friday", "tireBrand": "Toyo"},
			},
		}

		res, err := classify.Classify(in)

		Convey("Then records should keep first-appearance order and merge joined data", func() {
			So(err, ShouldBeNil)
			So(res.Records, ShouldHaveLength, 2)

			zed := res.Records[0]
			So(zed.DriverID, ShouldEqual, "P-9")
			So(zed.Vehicle.Tire, ShouldEqual, "Hoosier")
			So(zed.Vehicle.Description(), ShouldEqual, "2020 Porsche GT3")
			So(zed.Days, ShouldEqual, model.NewDaySet(model.Fri, model.Sun))
			So(zed.ClassGroup, ShouldEqual, model.ClassGroupUnlimited)
			So(zed.ParticipationType, ShouldEqual, model.TTOnly)

			amy := res.Records[1]
			So(amy.FirstName, ShouldEqual, "amy")
			So(amy.Email, ShouldEqual, "amy@example.com")
			So(amy.MemberID, ShouldEqual, "M-1")
			So(amy.Status, ShouldEqual, "Confirmed")
			So(amy.Vehicle.Tire, ShouldEqual, "")
			So(amy.Days, ShouldEqual, model.NewDaySet(model.Sat))
			So(amy.AYCEAdvancedHPDE, ShouldBeTrue)
			So(amy.ClassGroup, ShouldEqual, model.ClassGroupTuner)
			So(amy.ParticipationType, ShouldEqual, model.TTAYCE)
		})

		Convey("Then classifying again should produce an identical result", func() {
			again, err2 := classify.Classify(in)
			So(err2, ShouldBeNil)
			So(again, ShouldResemble, res)
		})
	})
}

func TestParticipationPrecedence(t *testing.T) {
	Convey("Given every combination of instructor and AYCE flags", t, func() {
		cases := []struct {
			instructor, ayce bool
			want             model.ParticipationType
		}{
			{true, true, model.TTInstructorAYCE},
			{true, false, model.TTInstructor},
			{false, true, model.TTAYCE},
			{false, false, model.TTOnly},
		}
		for _, c := range cases {
			So(classify.ParticipationTypeFor(c.instructor, c.ayce), ShouldEqual, c.want)
		}

		Convey("Then both AYCE flags should count toward precedence", func() {
			for _, fact := range []model.AttendanceFact{
				{Days: model.NewDaySet(model.Fri), IsInstructor: true, AYCETimeTrials: true},
				{Days: model.NewDaySet(model.Fri), IsInstructor: true, AYCEAdvancedHPDE: true},
			} {
				rec, err := classify.Derive(fact)
				So(err, ShouldBeNil)
				So(rec.ParticipationType, ShouldEqual, model.TTInstructorAYCE)
			}
		})
	})
}

func TestDeriveDayCount(t *testing.T) {
	Convey("Given attendance facts", t, func() {
		Convey("When the day set is empty", func() {
			_, err := classify.Derive(model.AttendanceFact{DriverID: "D0"})

			Convey("Then InvalidDayCount should be returned", func() {
				So(errors.Is(err, classify.ErrInvalidDayCount), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "D0")
			})
		})

		Convey("When the day set has one to three days", func() {
			for _, days := range []model.DaySet{
				model.NewDaySet(model.Sun),
				model.NewDaySet(model.Fri, model.Sun),
				model.NewDaySet(model.Fri, model.Sat, model.Sun),
			} {
				rec, err := classify.Derive(model.AttendanceFact{Days: days})
				So(err, ShouldBeNil)
				So(rec.DayCount, ShouldEqual, days.Len())
				So(rec.DayCount, ShouldBeBetweenOrEqual, 1, 3)
			}
		})
	})
}

func TestClassGroupFor(t *testing.T) {
	Convey("Given class codes", t, func() {
		cases := map[string]model.ClassGroup{
			"Max 5":       model.ClassGroupMax,
			"MAX_1":       model.ClassGroupMax,
			"Sport 4":     model.ClassGroupSport,
			"tuner-2":     model.ClassGroupTuner,
			"Unlimited 1": model.ClassGroupUnlimited,
		}
		for code, want := range cases {
			got, known := classify.ClassGroupFor(code)
			So(known, ShouldBeTrue)
			So(got, ShouldEqual, want)
		}

		for _, code := range []string{"", "Max 9", "Street", "Maximum Attack"} {
			got, known := classify.ClassGroupFor(code)
			So(known, ShouldBeFalse)
			So(got, ShouldEqual, model.ClassGroupUnknown)
		}
	})
}
