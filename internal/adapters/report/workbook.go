package report

import (
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// SheetName is the single worksheet of the report.
const SheetName = "Time Trials Report"

const (
	headerFill    = "4472C4"
	maxColWidth   = 50
	widthPadding  = 2
	defaultSheet1 = "Sheet1"
)

// Headers are the report columns in order.
var Headers = []string{ //nolint:gochecknoglobals // fixed layout
	"First Name", "Last Name", "Email", "Member ID", "Class", "Class Group",
	"Vehicle #", "Vehicle", "Color", "Tire", "Sponsor", "Days (TT)",
	"Day Count", "Instructor", "AYCE", "Participation Type", "Status",
}

// centered lists the 1-based columns rendered centered.
var centered = map[int]bool{6: true, 12: true, 13: true, 14: true, 15: true, 16: true} //nolint:gochecknoglobals // fixed layout

// Row renders one record as report cells, aligned with Headers.
func Row(rec model.ParticipationRecord) []string {
	return []string{
		rec.FirstName,
		rec.LastName,
		rec.Email,
		rec.MemberID,
		rec.TTClass,
		string(rec.ClassGroup),
		rec.Vehicle.Number,
		rec.Vehicle.Description(),
		rec.Vehicle.Color,
		rec.Vehicle.Tire,
		rec.Vehicle.Sponsor,
		rec.Days.Label(),
		rec.DayCountLabel(),
		yesNo(rec.IsInstructor),
		yesNo(rec.AnyAYCE()),
		rec.ParticipationType.Label(),
		rec.Status,
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// WriteWorkbook writes records to path. The workbook is written to a
// temporary file in the target directory and renamed into place.
func WriteWorkbook(path string, recs []model.ParticipationRecord) error {
	f, err := build(recs)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // in-memory workbook

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create temp report in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := f.Write(tmp); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return errors.Wrap(err, "encode workbook")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "rename %s to %s", tmpName, path)
	}
	return nil
}

func build(recs []model.ParticipationRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheet1, SheetName); err != nil {
		return nil, errors.Wrap(err, "name sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "header style")
	}
	cellStyle, err := f.NewStyle(&excelize.Style{Border: thinBorder()})
	if err != nil {
		return nil, errors.Wrap(err, "cell style")
	}
	centerStyle, err := f.NewStyle(&excelize.Style{
		Border:    thinBorder(),
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "center style")
	}

	widths := make([]int, len(Headers))
	rows := make([][]string, 0, len(recs)+1)
	rows = append(rows, Headers)
	for _, rec := range recs {
		rows = append(rows, Row(rec))
	}

	for r, cells := range rows {
		for c, v := range cells {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, errors.Wrap(err, "cell name")
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return nil, errors.Wrapf(err, "set %s", cell)
			}
			style := cellStyle
			switch {
			case r == 0:
				style = headerStyle
			case centered[c+1]:
				style = centerStyle
			}
			if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
				return nil, errors.Wrapf(err, "style %s", cell)
			}
			if n := utf8.RuneCountInString(v); n > widths[c] {
				widths[c] = n
			}
		}
	}

	for c, w := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return nil, errors.Wrap(err, "column name")
		}
		if err := f.SetColWidth(SheetName, col, col, float64(min(w+widthPadding, maxColWidth))); err != nil {
			return nil, errors.Wrapf(err, "width %s", col)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, errors.Wrap(err, "freeze header")
	}
	return f, nil
}

func thinBorder() []excelize.Border {
	sides := []string{"left", "right", "top", "bottom"}
	out := make([]excelize.Border, len(sides))
	for i, s := range sides {
		out[i] = excelize.Border{Type: s, Color: "000000", Style: 1}
	}
	return out
}
