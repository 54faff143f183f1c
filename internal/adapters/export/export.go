// Package export writes the raw and curated MSR data of one event to an
// export directory.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/okian/hpde-analytics/pkg/logger"
	"github.com/okian/hpde-analytics/pkg/metrics"
	"github.com/pkg/errors"
)

// Layout names.
const (
	RawDir       = "raw_data"
	SummaryFile  = "export_summary.json"
	CalendarFile = "calendar.ics"
	TimestampFmt = "20060102_150405"
	defaultName  = "export"
)

// Bundle is everything fetched for one export run.
type Bundle struct {
	OrganizationID string
	EventID        string
	Profile        model.RawSet
	Calendar       model.RawSet
	EntryList      model.RawSet
	Attendees      model.RawSet
	Assignments    model.RawSet
}

// ResourceSummary describes one fetched resource in the summary.
type ResourceSummary struct {
	Records   int       `json:"records"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Summary is the content of export_summary.json.
type Summary struct {
	RunID            string                     `json:"run_id"`
	ExportTimestamp  string                     `json:"export_timestamp"`
	OrganizationID   string                     `json:"organization_id"`
	EventID          string                     `json:"event_id"`
	ExportDirectory  string                     `json:"export_directory"`
	RawDataDirectory string                     `json:"raw_data_directory"`
	Resources        map[string]ResourceSummary `json:"resources"`
	Files            []string                   `json:"files"`
}

// Result is a completed export.
type Result struct {
	Dir     string
	Summary Summary
}

// Writer creates export directories under a base directory.
type Writer struct {
	baseDir string
	now     func() time.Time
	newID   func() string
	logger  logger.Logger
}

// NewWriter returns a writer rooted at baseDir.
func NewWriter(baseDir string, opts ...Option) *Writer {
	w := &Writer{
		baseDir: baseDir,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logger.Get().Named("export"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FolderName returns "<name|export>_<timestamp>".
func FolderName(name string, at time.Time) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultName
	}
	name = strings.NewReplacer("/", "_", "\\", "_", string(os.PathSeparator), "_").Replace(name)
	return name + "_" + at.Format(TimestampFmt)
}

// run accumulates files written into the staging directory.
type run struct {
	stage string
	files []string
}

// Write stores b under a new export directory. Files are staged in a hidden
// sibling directory that is renamed into place only when every file has
// been written; on failure the staging directory is removed.
func (w *Writer) Write(ctx context.Context, name string, b Bundle) (Result, error) {
	at := w.now()
	runID := w.newID()
	folder := FolderName(name, at)
	final := filepath.Join(w.baseDir, folder)

	if _, err := os.Stat(final); err == nil {
		return Result{}, errors.Wrapf(ErrExists, "%s", final)
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return Result{}, errors.Wrapf(err, "create %s", w.baseDir)
	}

	r := &run{stage: filepath.Join(w.baseDir, "."+folder+".tmp-"+runID)}
	if err := os.MkdirAll(filepath.Join(r.stage, RawDir), 0o755); err != nil {
		return Result{}, errors.Wrapf(err, "create %s", r.stage)
	}
	committed := false
	defer func() {
		if !committed {
			if err := os.RemoveAll(r.stage); err != nil {
				w.logger.Warn(ctx, "failed to remove staging directory",
					logger.String("path", r.stage), logger.Error(err))
			}
		}
	}()

	if err := w.writeAll(ctx, r, b, at); err != nil {
		return Result{}, err
	}

	summary := Summary{
		RunID:            runID,
		ExportTimestamp:  at.Format(TimestampFmt),
		OrganizationID:   b.OrganizationID,
		EventID:          b.EventID,
		ExportDirectory:  final,
		RawDataDirectory: filepath.Join(final, RawDir),
		Resources:        make(map[string]ResourceSummary),
	}
	for _, set := range b.sets() {
		if set.Resource == "" {
			continue
		}
		summary.Resources[string(set.Resource)] = ResourceSummary{Records: set.Len(), FetchedAt: set.FetchedAt}
	}
	sort.Strings(r.files)
	summary.Files = append(summary.Files, r.files...)
	if err := r.writeJSON(SummaryFile, summary); err != nil {
		return Result{}, err
	}
	summary.Files = append(summary.Files, SummaryFile)

	if err := os.Rename(r.stage, final); err != nil {
		return Result{}, errors.Wrapf(err, "rename %s to %s", r.stage, final)
	}
	committed = true

	w.logger.Info(ctx, "export written",
		logger.String("dir", final),
		logger.String("run_id", runID),
		logger.Int("files", len(summary.Files)))
	return Result{Dir: final, Summary: summary}, nil
}

func (b Bundle) sets() []model.RawSet {
	return []model.RawSet{b.Profile, b.Calendar, b.EntryList, b.Attendees, b.Assignments}
}

// writeAll writes the raw copies, then the curated files.
func (w *Writer) writeAll(ctx context.Context, r *run, b Bundle, at time.Time) error {
	raw := []struct {
		set  model.RawSet
		base string
	}{
		{b.Profile, "profile_full"},
		{b.Calendar, "calendar_full"},
		{b.EntryList, "entrylist_full"},
		{b.Attendees, "attendees_full"},
		{b.Assignments, "assignments_full"},
	}
	for _, f := range raw {
		if err := r.writeSet(filepath.Join(RawDir, f.base), f.set); err != nil {
			return err
		}
	}

	curated := []struct {
		set  model.RawSet
		base string
	}{
		{b.Profile, "profile"},
		{b.Calendar, "calendar_events"},
		{b.EntryList, "entrylist"},
		{b.Attendees, "attendees"},
		{b.Assignments, "assignments"},
	}
	for _, f := range curated {
		if err := r.writeSet(f.base, f.set); err != nil {
			return err
		}
	}

	var ics bytes.Buffer
	skipped, err := WriteCalendar(&ics, b.Calendar.Records, at)
	switch {
	case errors.Is(err, ErrNoEvents):
		w.logger.Info(ctx, "no dated calendar events, skipping calendar.ics")
		return nil
	case err != nil:
		return errors.Wrap(err, "encode calendar")
	}
	if skipped > 0 {
		w.logger.Warn(ctx, "calendar events without a start date skipped", logger.Int("count", skipped))
	}
	return r.writeFile(CalendarFile, ics.Bytes(), "ics")
}

// writeSet writes <base>.json and, for list resources, <base>.csv.
func (r *run) writeSet(base string, set model.RawSet) error {
	if err := r.writeJSON(base+".json", set.Document()); err != nil {
		return err
	}
	if set.Resource.ListKey() == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, set.Records); err != nil {
		return errors.Wrapf(err, "encode %s.csv", base)
	}
	return r.writeFile(base+".csv", buf.Bytes(), "csv")
}

func (r *run) writeJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", rel)
	}
	return r.writeFile(rel, append(data, '\n'), "json")
}

func (r *run) writeFile(rel string, data []byte, format string) error {
	path := filepath.Join(r.stage, rel)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	r.files = append(r.files, filepath.ToSlash(rel))
	metrics.RecordExportFile(format)
	return nil
}
