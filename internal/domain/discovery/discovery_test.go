package discovery_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/okian/hpde-analytics/internal/domain/discovery"
	. "github.com/smartystreets/goconvey/convey"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestDetectType(t *testing.T) {
	Convey("Given decoded JSON values", t, func() {
		cases := map[string]discovery.Type{
			`null`:                                   discovery.TypeNull,
			`true`:                                   discovery.TypeBoolean,
			`42`:                                     discovery.TypeInteger,
			`4.5`:                                    discovery.TypeNumber,
			`"2025-05-02"`:                           discovery.TypeDate,
			`"05/02/2025"`:                           discovery.TypeDate,
			`"2025-05-02T08:00:00-07:00"`:            discovery.TypeDatetime,
			`"0b1e6f3a-2d4c-4e8f-9a1b-3c5d7e9f1a2b"`: discovery.TypeUUID,
			`"https://msr.example/e/1"`:              discovery.TypeURL,
			`"sam@example.com"`:                      discovery.TypeEmail,
			`"Thunderhill"`:                          discovery.TypeString,
			`[1]`:                                    discovery.TypeArray,
			`{"a":1}`:                                discovery.TypeObject,
		}
		for raw, want := range cases {
			So(discovery.DetectType(decode(t, raw)), ShouldEqual, want)
		}
	})
}

func TestMask(t *testing.T) {
	Convey("Given sample values", t, func() {
		So(discovery.Mask("samuel@example.com"), ShouldEqual, "sa***@example.com")
		So(discovery.Mask("(530) 555-1234"), ShouldEqual, "***-***-1234")
		So(discovery.Mask("555-1234"), ShouldEqual, "555-1234")
		long := strings.Repeat("x", 60)
		So(discovery.Mask(long), ShouldEqual, strings.Repeat("x", 47)+"...")
		So(discovery.Mask("Sport 2"), ShouldEqual, "Sport 2")
		So(discovery.Mask(float64(7)), ShouldEqual, float64(7))
	})
}

func TestInventory(t *testing.T) {
	Convey("Given responses from several endpoints", t, func() {
		inv := discovery.New()

		added := inv.Analyze("entrylist", decode(t, `{
			"assignments": [
				{"firstName": "Sam", "email": "sam@example.com", "vehicle": {"make": "Mazda"}, "notes": null},
				{"firstName": "Ana", "email": null, "vehicle": {"make": "BMW"}, "notes": "late"},
				{"firstName": "Lee", "vehicle": {"make": "Audi"}},
				{"firstName": "Extra", "unseen": true}
			]
		}`))
		inv.Analyze("profile", decode(t, `{"profile": {"id": "P-1", "firstName": "Sam"}}`))
		skipped := inv.Analyze("timing", decode(t, `{"error": "not found"}`))

		Convey("Then array items should be sampled with [] paths", func() {
			So(added, ShouldEqual, 5)
			So(skipped, ShouldEqual, 0)
			So(inv.Endpoints(), ShouldResemble, []string{"entrylist", "profile"})

			r := inv.Report(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
			byPath := make(map[string]discovery.Field)
			for _, f := range r.AllFields {
				byPath[f.Path] = f
			}
			So(byPath, ShouldNotContainKey, "assignments[].unseen")

			first := byPath["assignments[].firstName"]
			So(first.Occurrences, ShouldEqual, 3)
			So(first.Sample, ShouldEqual, "Sam")

			email := byPath["assignments[].email"]
			So(email.Type, ShouldEqual, discovery.TypeEmail)
			So(email.Nullable, ShouldBeTrue)
			So(email.Sample, ShouldEqual, "sa***@example.com")

			notes := byPath["assignments[].notes"]
			So(notes.Type, ShouldEqual, discovery.TypeString)
			So(notes.Nullable, ShouldBeTrue)
			So(notes.Sample, ShouldEqual, "late")

			So(byPath["assignments"].Type, ShouldEqual, discovery.TypeArray)
			So(byPath["assignments"].Sample, ShouldBeNil)
			So(byPath["assignments[].vehicle.make"].Occurrences, ShouldEqual, 3)

			So(r.Metadata.TotalFields, ShouldEqual, 7)
			So(r.Metadata.EndpointsAnalyzed, ShouldEqual, 2)
			So(r.Summary.FieldCounts["profile"], ShouldEqual, 2)
			So(r.Endpoints["profile"].Fields[0].Path, ShouldEqual, "profile.firstName")
		})

		Convey("Then types should group sorted paths", func() {
			byType := inv.ByType()
			So(byType[discovery.TypeString], ShouldContain, "profile.id")
			So(byType[discovery.TypeArray], ShouldResemble, []string{"assignments"})
		})

		Convey("Then the summary should list every endpoint", func() {
			var buf bytes.Buffer
			So(discovery.WriteSummary(&buf, inv.Report(time.Now())), ShouldBeNil)
			out := buf.String()
			So(out, ShouldContainSubstring, "[entrylist]")
			So(out, ShouldContainSubstring, "[profile]")
			So(out, ShouldContainSubstring, "(nullable)")
		})
	})
}
