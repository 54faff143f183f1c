// Package report builds the Time Trials spreadsheet from an export
// directory.
package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/hpde-analytics/internal/domain/classify"
	"github.com/okian/hpde-analytics/pkg/logger"
	"github.com/okian/hpde-analytics/pkg/metrics"
	"github.com/pkg/errors"
)

const (
	defaultPrefix = "tt_report"
	timestampFmt  = "20060102_150405"
)

// Result describes a written report.
type Result struct {
	Path     string
	Rows     int
	Warnings []classify.Warning
}

// Generator classifies an export and writes the workbook.
type Generator struct {
	now    func() time.Time
	logger logger.Logger
}

// NewGenerator returns a Generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		now:    time.Now,
		logger: logger.Get().Named("report"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FileName returns "<name|tt_report>_<timestamp>.xlsx".
func FileName(name string, at time.Time) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultPrefix
	}
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return name + "_" + at.Format(timestampFmt) + ".xlsx"
}

// Generate reads exportDir, classifies it and writes the report. The
// report lands at reportFile when set, otherwise inside exportDir under
// FileName(name). Classification errors abort before anything is written.
func (g *Generator) Generate(ctx context.Context, exportDir, name, reportFile string) (Result, error) {
	info, err := os.Stat(exportDir)
	if err != nil {
		return Result{}, errors.Wrapf(err, "export directory %s", exportDir)
	}
	if !info.IsDir() {
		return Result{}, errors.Errorf("%s is not a directory", exportDir)
	}

	in, err := LoadInput(exportDir)
	if err != nil {
		return Result{}, err
	}

	res, err := classify.Classify(in)
	if err != nil {
		return Result{}, errors.WithMessage(err, "classify export")
	}
	metrics.RecordClassification(len(res.Records))
	for _, w := range res.Warnings {
		metrics.RecordClassificationWarning(string(w.Kind))
		g.logger.Warn(ctx, "classification warning",
			logger.String("kind", string(w.Kind)),
			logger.String("driver", w.Name),
			logger.String("detail", w.Detail))
	}

	path := reportFile
	if path == "" {
		path = filepath.Join(exportDir, FileName(name, g.now()))
	}
	if err := WriteWorkbook(path, res.Records); err != nil {
		return Result{}, err
	}
	metrics.RecordReportRows(len(res.Records))

	g.logger.Info(ctx, "report written",
		logger.String("path", path),
		logger.Int("rows", len(res.Records)),
		logger.Int("warnings", len(res.Warnings)))
	return Result{Path: path, Rows: len(res.Records), Warnings: res.Warnings}, nil
}
