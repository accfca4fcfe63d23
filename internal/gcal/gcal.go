// Package gcal wraps the Google Calendar API calls made on behalf of a
// connected user.
package gcal

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/example/contest-reminder-bot/internal/model"
)

// eventTimeLayout is a local (offset-free) timestamp; the calendar API pins
// it with the separate TimeZone field.
const eventTimeLayout = "2006-01-02T15:04:05"

func newService(ctx context.Context, cred *model.Credential) (*calendar.Service, error) {
	cfg := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Scopes:       cred.Scopes,
		Endpoint:     oauth2.Endpoint{TokenURL: cred.TokenURI},
	}
	token := &oauth2.Token{
		AccessToken:  cred.Token,
		RefreshToken: cred.RefreshToken,
		// force the token source to refresh on first use so a stale stored
		// access token never produces a 401
		Expiry: time.Now().Add(-time.Minute),
	}
	srv, err := calendar.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("gcal: create service: %w", err)
	}
	return srv, nil
}

// Timezone returns the user's primary calendar timezone, falling back to UTC
// on any failure.
func Timezone(ctx context.Context, cred *model.Credential) string {
	srv, err := newService(ctx, cred)
	if err != nil {
		return "UTC"
	}
	cal, err := srv.Calendars.Get("primary").Context(ctx).Do()
	if err != nil || cal.TimeZone == "" {
		return "UTC"
	}
	return cal.TimeZone
}

// InsertEvent inserts an event into the user's primary calendar with explicit
// start and end datetimes in the given timezone.
func InsertEvent(ctx context.Context, cred *model.Credential, summary string, start, end time.Time, timezone string) error {
	srv, err := newService(ctx, cred)
	if err != nil {
		return err
	}
	event := &calendar.Event{
		Summary: summary,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(eventTimeLayout),
			TimeZone: timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(eventTimeLayout),
			TimeZone: timezone,
		},
	}
	if _, err := srv.Events.Insert("primary", event).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcal: insert event: %w", err)
	}
	return nil
}
