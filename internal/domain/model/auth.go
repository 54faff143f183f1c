// Package model contains domain models passed between layers.
package model

import "time"

// Credentials identify the application to the MSR API. They are loaded
// once at startup and never change for the lifetime of the process.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	BaseURL        string
	CallbackPort   int
}

// Valid reports whether the consumer key and secret are both present.
func (c Credentials) Valid() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// Organization is an organization the authenticated profile belongs to.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TokenPair is the OAuth access token obtained for a user.
type TokenPair struct {
	AccessToken       string         `json:"access_token"`
	AccessTokenSecret string         `json:"access_token_secret"`
	ObtainedAt        time.Time      `json:"obtained_at"`
	ProfileID         string         `json:"profile_id,omitempty"`
	ProfileName       string         `json:"profile_name,omitempty"`
	Organizations     []Organization `json:"organizations,omitempty"`
}

// Empty reports whether the pair carries no token material.
func (t TokenPair) Empty() bool {
	return t.AccessToken == "" || t.AccessTokenSecret == ""
}

// Age returns how long ago the token was obtained, relative to now.
func (t TokenPair) Age(now time.Time) time.Duration {
	if t.ObtainedAt.IsZero() {
		return 0
	}
	return now.Sub(t.ObtainedAt)
}

// DefaultOrganizationID returns the first organization id, if any.
func (t TokenPair) DefaultOrganizationID() string {
	if len(t.Organizations) == 0 {
		return ""
	}
	return t.Organizations[0].ID
}

// Profile is the authenticated user's MSR profile.
type Profile struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	Organizations []Organization
}

// Name returns the display name.
func (p Profile) Name() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}
