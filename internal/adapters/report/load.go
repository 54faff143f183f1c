package report

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/okian/hpde-analytics/internal/domain/classify"
	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/pkg/errors"
)

// Curated export files read by the report.
const (
	EntryListFile   = "entrylist.json"
	AttendeesFile   = "attendees.json"
	AssignmentsFile = "assignments.json"
)

// LoadInput reads the curated JSON files of an export directory. The entry
// list is required; attendees and assignments are optional.
func LoadInput(dir string) (classify.Input, error) {
	var in classify.Input

	sessions, err := readList(filepath.Join(dir, EntryListFile), model.ResourceEntryList)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return in, errors.Wrapf(ErrMissingEntryList, "%s", dir)
		}
		return in, err
	}
	in.Sessions = sessions

	if in.Attendees, err = readOptional(filepath.Join(dir, AttendeesFile), model.ResourceAttendees); err != nil {
		return in, err
	}
	if in.Assignments, err = readOptional(filepath.Join(dir, AssignmentsFile), model.ResourceAssignments); err != nil {
		return in, err
	}
	return in, nil
}

func readOptional(path string, res model.Resource) ([]model.RawRecord, error) {
	recs, err := readList(path, res)
	if err != nil && os.IsNotExist(errors.Cause(err)) {
		return nil, nil
	}
	return recs, err
}

// readList decodes {listKey: [...]} from path, accepting the
// {"response": {...}} envelope as well.
func readList(path string, res model.Resource) ([]model.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "read %s", path)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(ErrInvalidExport, "%s: %v", path, err)
	}
	if inner, ok := doc["response"].(map[string]any); ok {
		doc = inner
	}
	items, _ := doc[res.ListKey()].([]any)
	out := make([]model.RawRecord, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, model.RawRecord(m))
		}
	}
	return out, nil
}
