package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/hpde-analytics/internal/adapters/msr"
	"github.com/okian/hpde-analytics/internal/adapters/oauth"
	app "github.com/okian/hpde-analytics/internal/app"
	"github.com/okian/hpde-analytics/internal/config"
	"github.com/okian/hpde-analytics/pkg/logger"
	"github.com/okian/hpde-analytics/pkg/metrics"
	"github.com/samber/do/v2"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

// Command names, also used as metric labels.
const (
	cmdConfigure        = "configure"
	cmdCredentialStatus = "credential-status"
	cmdAuth             = "auth"
	cmdDiscover         = "discover"
	cmdReport           = "report"
	cmdExport           = "export"
)

type options struct {
	configure        bool
	credentialStatus bool
	auth             bool
	export           bool
	report           bool
	discover         bool
	verbose          bool
	help             bool

	orgID      string
	eventID    string
	name       string
	outputDir  string
	exportDir  string
	reportFile string
	output     string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("hpde", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {}

	fs.BoolVar(&o.configure, "configure", false, "Store API consumer credentials")
	fs.BoolVar(&o.credentialStatus, "credential-status", false, "Show credential and token status")
	fs.BoolVar(&o.auth, "auth", false, "Run the OAuth authorization flow")
	fs.BoolVar(&o.export, "export", false, "Export all data of an event")
	fs.BoolVar(&o.report, "report", false, "Generate the Time Trials report from an export")
	fs.BoolVar(&o.discover, "discover", false, "Write a field inventory of the API responses")
	fs.BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&o.verbose, "v", false, "Enable debug logging")
	fs.BoolVar(&o.help, "help", false, "Show help")

	fs.StringVar(&o.orgID, "org-id", "", "Organization id (default: configured or first of the profile)")
	fs.StringVar(&o.eventID, "event-id", "", "Event id")
	fs.StringVar(&o.name, "name", "", "Name for the export folder or report file")
	fs.StringVar(&o.outputDir, "output-dir", "", "Parent directory for exports")
	fs.StringVar(&o.exportDir, "export-dir", "", "Export directory to build the report from")
	fs.StringVar(&o.reportFile, "report-file", "", "Report output path")
	fs.StringVar(&o.output, "output", "", "Field inventory output path")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return o, nil
}

// command returns the selected command. Credential commands take
// precedence, matching the order they are listed in the help.
func (o *options) command() string {
	switch {
	case o.configure:
		return cmdConfigure
	case o.credentialStatus:
		return cmdCredentialStatus
	case o.auth:
		return cmdAuth
	case o.discover:
		return cmdDiscover
	case o.report:
		return cmdReport
	case o.export:
		return cmdExport
	default:
		return ""
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	switch {
	case errors.Is(err, flag.ErrHelp):
		showHelp(stdout)
		return exitOK
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\nRun with --help for usage.\n", err)
		return exitFailure
	case opts.help:
		showHelp(stdout)
		return exitOK
	case opts.command() == "":
		showHelp(stderr)
		return exitFailure
	}

	if err := logger.Init(logger.WithWriter(stderr)); err != nil {
		fmt.Fprintf(stderr, "failed to initialize logging: %v\n", err)
		return exitFailure
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitFailure
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if opts.verbose {
		_ = logger.SetLevelString("debug")
	}
	defer func() {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn(ctx, "failed to write metrics textfile", logger.String("path", cfg.MetricsFile), logger.Error(err))
		}
	}()

	injector := do.New()
	do.ProvideValue(injector, cfg)
	app.RegisterDI(injector, app.WithOutput(stdout))
	svc, err := do.Invoke[*app.Service](injector)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	cmd := opts.command()
	start := time.Now()
	err = dispatch(ctx, svc, cmd, opts)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	metrics.RecordCommand(cmd, outcome, time.Since(start).Seconds())
	log.Debug(ctx, "command finished", logger.String("command", cmd), logger.String("outcome", outcome))

	return exitCode(ctx, err, stderr)
}

func dispatch(ctx context.Context, svc *app.Service, cmd string, o *options) error {
	switch cmd {
	case cmdConfigure:
		return svc.Configure(ctx)
	case cmdCredentialStatus:
		svc.CredentialStatus(ctx)
		return nil
	case cmdAuth:
		_, err := svc.Authenticate(ctx)
		return err
	case cmdDiscover:
		_, err := svc.Discover(ctx, app.DiscoverRequest{OrgID: o.orgID, EventID: o.eventID, Output: o.output})
		return err
	case cmdReport:
		_, err := svc.Report(ctx, app.ReportRequest{ExportDir: o.exportDir, Name: o.name, ReportFile: o.reportFile})
		return err
	case cmdExport:
		_, err := svc.ExportEvent(ctx, app.ExportRequest{
			OrgID:     o.orgID,
			EventID:   o.eventID,
			Name:      o.name,
			OutputDir: o.outputDir,
		})
		return err
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// exitCode prints err for the user and maps it to a process exit status.
func exitCode(ctx context.Context, err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return exitOK
	case ctx.Err() != nil, errors.Is(err, oauth.ErrInterrupted), errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "\nOperation cancelled by user")
		return exitInterrupted
	case errors.Is(err, oauth.ErrCallbackUnavailable):
		fmt.Fprintf(stderr, "Error: %v\nThe callback port is in use. Free it or set MSR_CALLBACK_PORT to another port.\n", err)
		return exitFailure
	case errors.Is(err, msr.ErrAuthExpired):
		fmt.Fprintf(stderr, "Error: %v\nThe stored token was rejected and has been removed. Run with --auth to authorize again.\n", err)
		return exitFailure
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
}

func showHelp(w io.Writer) {
	fmt.Fprint(w, `HPDE Analytics
==============

MotorsportReg data export and Time Trials reporting for HPDE programs.

Usage:
  hpde <command> [options]

Commands:
  --configure
        Store the API consumer key and secret in the token store
  --credential-status
        Show where credentials come from and whether a token is stored
  --auth
        Run the OAuth authorization flow and print the profile
  --export --event-id ID [--org-id ID] [--name NAME] [--output-dir DIR]
        Export profile, calendar, entry list, attendees and assignments
  --report --export-dir DIR [--name NAME] [--report-file FILE]
        Build the Time Trials spreadsheet from an export directory
  --discover [--event-id ID] [--org-id ID] [--output FILE]
        Write a field inventory of every reachable endpoint

Options:
  --verbose, -v
        Enable debug logging
  --help
        Show this help message

Environment:
  MSR_CONSUMER_KEY, MSR_CONSUMER_SECRET   API consumer credentials
  MSR_BASE_URL                            API root (default https://api.motorsportreg.com)
  MSR_CALLBACK_PORT                       OAuth callback port (default 8089)
  MSR_CONFIG                              Optional YAML config file

Examples:
  # Store credentials once
  hpde --configure

  # Export an event and build the report
  hpde --export --event-id 1A2B3C --name spring_tt
  hpde --report --export-dir output/spring_tt_20250505_180000
`)
}
