package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/hpde-analytics/internal/adapters/export"
	"github.com/okian/hpde-analytics/internal/adapters/msr"
	"github.com/okian/hpde-analytics/internal/adapters/report"
	"github.com/okian/hpde-analytics/internal/adapters/tokenstore"
	"github.com/okian/hpde-analytics/internal/domain/discovery"
	"github.com/okian/hpde-analytics/internal/domain/model"
	"github.com/okian/hpde-analytics/pkg/logger"
)

// InventoryFile is the default field inventory name under the output dir.
const InventoryFile = "field_inventory.json"

// ExportRequest selects the event to export.
type ExportRequest struct {
	OrgID     string
	EventID   string
	Name      string
	OutputDir string
}

// ReportRequest selects the export to report on.
type ReportRequest struct {
	ExportDir  string
	Name       string
	ReportFile string
}

// DiscoverRequest selects what to inventory. EventID is optional; without
// it the first calendar event is used, and with an empty calendar only the
// profile and calendar are analyzed.
type DiscoverRequest struct {
	OrgID   string
	EventID string
	Output  string
}

// Authenticate runs the handshake and prints the authorized profile. The
// profile is looked up again only when the handshake could not attach it.
func (s *Service) Authenticate(ctx context.Context) (model.TokenPair, error) {
	if err := s.requireCredentials(); err != nil {
		return model.TokenPair{}, err
	}
	tok, err := s.auth.Run(ctx)
	if err != nil {
		return model.TokenPair{}, err
	}

	p := model.Profile{ID: tok.ProfileID, FirstName: tok.ProfileName, Organizations: tok.Organizations}
	if tok.ProfileID == "" {
		set, err := s.api(s.organization("", tok)).GetProfile(ctx)
		if err != nil {
			s.logger.Warn(ctx, "profile lookup failed after authorization", logger.Error(err))
		} else {
			p = msr.ParseProfile(set)
		}
	}
	s.printProfile(p)
	return tok, nil
}

// ensureToken returns the stored token, running the handshake first when
// none is stored.
func (s *Service) ensureToken(ctx context.Context) (model.TokenPair, error) {
	if err := s.requireCredentials(); err != nil {
		return model.TokenPair{}, err
	}
	tok, err := s.vault.Load(ctx)
	switch {
	case err == nil:
		return tok, nil
	case errors.Is(err, tokenstore.ErrNotFound):
		s.logger.Info(ctx, "no stored access token, starting authorization")
		fmt.Fprintln(s.out, "No stored access token; starting authorization.")
		return s.auth.Run(ctx)
	default:
		return model.TokenPair{}, fmt.Errorf("load token: %w", err)
	}
}

// organization picks the flag value, then the configured id, then the
// first organization of the token's profile.
func (s *Service) organization(flag string, tok model.TokenPair) string {
	switch {
	case flag != "":
		return flag
	case s.cfg.OrganizationID != "":
		return s.cfg.OrganizationID
	default:
		return tok.DefaultOrganizationID()
	}
}

// ExportEvent fetches every resource of one event and writes an export
// directory. Any fetch failure aborts the run before anything is written.
func (s *Service) ExportEvent(ctx context.Context, req ExportRequest) (export.Result, error) {
	if req.EventID == "" {
		return export.Result{}, ErrMissingEventID
	}
	tok, err := s.ensureToken(ctx)
	if err != nil {
		return export.Result{}, err
	}
	orgID := s.organization(req.OrgID, tok)
	if orgID == "" {
		return export.Result{}, ErrMissingOrganization
	}
	api := s.api(orgID)

	b := export.Bundle{OrganizationID: orgID, EventID: req.EventID}
	if b.Profile, err = api.GetProfile(ctx); err != nil {
		return export.Result{}, fmt.Errorf("fetch profile: %w", err)
	}
	s.printProfile(msr.ParseProfile(b.Profile))

	fetches := []struct {
		name string
		dst  *model.RawSet
		get  func() (model.RawSet, error)
	}{
		{"calendar", &b.Calendar, func() (model.RawSet, error) { return api.GetCalendar(ctx, orgID) }},
		{"entry list", &b.EntryList, func() (model.RawSet, error) { return api.GetEntryList(ctx, req.EventID) }},
		{"attendees", &b.Attendees, func() (model.RawSet, error) { return api.GetAttendees(ctx, req.EventID) }},
		{"assignments", &b.Assignments, func() (model.RawSet, error) { return api.GetAssignments(ctx, req.EventID) }},
	}
	for _, f := range fetches {
		set, err := f.get()
		if err != nil {
			return export.Result{}, fmt.Errorf("fetch %s: %w", f.name, err)
		}
		*f.dst = set
		fmt.Fprintf(s.out, "  fetched %-12s %d records\n", f.name, set.Len())
	}

	dir := req.OutputDir
	if dir == "" {
		dir = s.cfg.OutputDir
	}
	res, err := s.exporter(dir).Write(ctx, req.Name, b)
	if err != nil {
		return export.Result{}, err
	}

	fmt.Fprintf(s.out, "\nFiles exported to: %s\n", res.Dir)
	for _, f := range res.Summary.Files {
		fmt.Fprintf(s.out, "  - %s\n", f)
	}
	return res, nil
}

// Report generates the Time Trials workbook from an export directory.
func (s *Service) Report(ctx context.Context, req ReportRequest) (report.Result, error) {
	if req.ExportDir == "" {
		return report.Result{}, ErrMissingExportDir
	}
	res, err := s.reporter.Generate(ctx, req.ExportDir, req.Name, req.ReportFile)
	if err != nil {
		return report.Result{}, err
	}
	fmt.Fprintf(s.out, "Report saved to: %s (%d drivers)\n", res.Path, res.Rows)
	if len(res.Warnings) > 0 {
		fmt.Fprintf(s.out, "%d records need review:\n", len(res.Warnings))
		for _, w := range res.Warnings {
			fmt.Fprintf(s.out, "  - %s: %s (%s)\n", w.Name, w.Detail, w.Kind)
		}
	}
	return res, nil
}

// Discover fetches every reachable resource and writes a field inventory.
// Failed endpoints are skipped, except for an expired token which aborts.
func (s *Service) Discover(ctx context.Context, req DiscoverRequest) (discovery.Report, error) {
	tok, err := s.ensureToken(ctx)
	if err != nil {
		return discovery.Report{}, err
	}
	orgID := s.organization(req.OrgID, tok)
	api := s.api(orgID)

	type endpoint struct {
		name string
		get  func() (model.RawSet, error)
	}
	endpoints := []endpoint{{"profile", func() (model.RawSet, error) { return api.GetProfile(ctx) }}}
	if orgID != "" {
		endpoints = append(endpoints, endpoint{"calendar", func() (model.RawSet, error) { return api.GetCalendar(ctx, orgID) }})
	}
	eventID := req.EventID
	eventEndpoints := func() []endpoint {
		return []endpoint{
			{"entrylist", func() (model.RawSet, error) { return api.GetEntryList(ctx, eventID) }},
			{"attendees", func() (model.RawSet, error) { return api.GetAttendees(ctx, eventID) }},
			{"assignments", func() (model.RawSet, error) { return api.GetAssignments(ctx, eventID) }},
			{"timing", func() (model.RawSet, error) { return api.GetTimingFeed(ctx, eventID) }},
		}
	}
	if eventID != "" {
		endpoints = append(endpoints, eventEndpoints()...)
	}

	inv := discovery.New()
	fmt.Fprintln(s.out, "Analyzing API responses...")
	for i := 0; i < len(endpoints); i++ {
		ep := endpoints[i]
		set, err := ep.get()
		switch {
		case err == nil:
			n := inv.Analyze(ep.name, set.Document())
			fmt.Fprintf(s.out, "  [OK] %s: %d new fields\n", ep.name, n)
			if ep.name == "calendar" && eventID == "" && set.Len() > 0 {
				if id := set.Records[0].String("id"); id != "" {
					eventID = id
					fmt.Fprintf(s.out, "  Using first calendar event %s\n", id)
					endpoints = append(endpoints, eventEndpoints()...)
				}
			}
		case errors.Is(err, msr.ErrAuthExpired) || ctx.Err() != nil:
			return discovery.Report{}, fmt.Errorf("fetch %s: %w", ep.name, err)
		default:
			s.logger.Warn(ctx, "endpoint skipped", logger.String("endpoint", ep.name), logger.Error(err))
			inv.Analyze(ep.name, map[string]any{"error": err.Error()})
			fmt.Fprintf(s.out, "  [SKIP] %s: %v\n", ep.name, err)
		}
	}

	rep := inv.Report(s.now())
	fmt.Fprintln(s.out)
	if err := discovery.WriteSummary(s.out, rep); err != nil {
		return rep, err
	}

	path := req.Output
	if path == "" {
		path = filepath.Join(s.cfg.OutputDir, InventoryFile)
	}
	if err := writeJSONFile(path, rep); err != nil {
		return rep, err
	}
	fmt.Fprintf(s.out, "\nField inventory saved to: %s\n", path)
	return rep, nil
}

// writeJSONFile writes v through a temp file in the target directory.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func (s *Service) printProfile(p model.Profile) {
	fmt.Fprintln(s.out, "\nProfile")
	if name := p.Name(); name != "" {
		fmt.Fprintf(s.out, "  Name:       %s\n", name)
	}
	if p.Email != "" {
		fmt.Fprintf(s.out, "  Email:      %s\n", p.Email)
	}
	if p.ID != "" {
		fmt.Fprintf(s.out, "  Profile ID: %s\n", p.ID)
	}
	if len(p.Organizations) == 0 {
		fmt.Fprintln(s.out, "  No organizations found")
		return
	}
	fmt.Fprintf(s.out, "  Organizations (%d):\n", len(p.Organizations))
	for _, o := range p.Organizations {
		name := o.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(s.out, "    - %s (ID: %s)\n", name, o.ID)
	}
}
