package msr

import (
	"context"
	"fmt"
	"net/url"

	"github.com/okian/hpde-analytics/internal/domain/model"
)

// GetProfile fetches the authenticated user's profile (/rest/me.json).
func (c *Client) GetProfile(ctx context.Context) (model.RawSet, error) {
	return c.object(ctx, call{resource: model.ResourceProfile, path: "/rest/me.json"})
}

// GetCalendar fetches the event calendar of orgID, or of the configured
// organization when orgID is empty.
func (c *Client) GetCalendar(ctx context.Context, orgID string) (model.RawSet, error) {
	if orgID == "" {
		orgID = c.orgID
	}
	if orgID == "" {
		return model.RawSet{}, fmt.Errorf("%w: organization id", ErrMissingInput)
	}
	return c.list(ctx, call{
		resource: model.ResourceCalendar,
		path:     "/rest/calendars/organization/" + url.PathEscape(orgID) + ".json",
		orgID:    orgID,
	})
}

// GetEntryList fetches the entry list of an event: one row per driver and
// session segment.
func (c *Client) GetEntryList(ctx context.Context, eventID string) (model.RawSet, error) {
	return c.event(ctx, model.ResourceEntryList, eventID, "entrylist.json", true)
}

// GetAttendees fetches the attendee list of an event.
func (c *Client) GetAttendees(ctx context.Context, eventID string) (model.RawSet, error) {
	return c.event(ctx, model.ResourceAttendees, eventID, "attendees.json", true)
}

// GetAssignments fetches the vehicle and group assignments of an event.
func (c *Client) GetAssignments(ctx context.Context, eventID string) (model.RawSet, error) {
	return c.event(ctx, model.ResourceAssignments, eventID, "assignments.json", true)
}

// GetTimingFeed fetches the timing and scoring feed of an event.
func (c *Client) GetTimingFeed(ctx context.Context, eventID string) (model.RawSet, error) {
	return c.event(ctx, model.ResourceTimingFeed, eventID, "feeds/timing.json", false)
}

func (c *Client) event(ctx context.Context, res model.Resource, eventID, suffix string, isList bool) (model.RawSet, error) {
	if eventID == "" {
		return model.RawSet{}, fmt.Errorf("%w: event id", ErrMissingInput)
	}
	cl := call{
		resource: res,
		path:     "/rest/events/" + url.PathEscape(eventID) + "/" + suffix,
		orgID:    c.orgID,
	}
	if isList {
		return c.list(ctx, cl)
	}
	return c.object(ctx, cl)
}

// EnrichToken looks up the profile with a freshly issued token and fills
// ProfileID, ProfileName and Organizations. The token store is not touched, so a
// rejected new token never clears the previously stored one.
func (c *Client) EnrichToken(ctx context.Context, tok model.TokenPair) (model.TokenPair, error) {
	set, err := c.object(ctx, call{resource: model.ResourceProfile, path: "/rest/me.json", token: &tok})
	if err != nil {
		return tok, err
	}
	p := ParseProfile(set)
	if p.ID != "" {
		tok.ProfileID = p.ID
	}
	tok.ProfileName = p.Name()
	tok.Organizations = p.Organizations
	return tok, nil
}

// ParseProfile extracts the profile from a GetProfile result. The API nests
// it under "profile"; a flat object is accepted too.
func ParseProfile(set model.RawSet) model.Profile {
	obj := set.Envelope
	if inner, ok := obj["profile"].(map[string]any); ok {
		obj = inner
	}
	rec := model.RawRecord(obj)
	p := model.Profile{
		ID:        rec.String("id"),
		FirstName: rec.String("firstName"),
		LastName:  rec.String("lastName"),
		Email:     rec.String("email"),
	}
	orgs, _ := obj["organizations"].([]any)
	for _, o := range orgs {
		m, ok := o.(map[string]any)
		if !ok {
			continue
		}
		org := model.RawRecord(m)
		p.Organizations = append(p.Organizations, model.Organization{ID: org.String("id"), Name: org.String("name")})
	}
	return p
}
