package service

import "errors"

// Sentinel errors for command input problems.
var (
	ErrMissingCredentials  = errors.New("consumer key and secret are not configured (run --configure or set MSR_CONSUMER_KEY and MSR_CONSUMER_SECRET)")
	ErrMissingEventID      = errors.New("--event-id is required")
	ErrMissingOrganization = errors.New("no organization id (pass --org-id, set MSR_ORGANIZATION_ID or re-run --auth)")
	ErrMissingExportDir    = errors.New("--export-dir is required")
)
