package calsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Event is what gets mirrored into the external calendar.
type Event struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Timezone    string
}

// Calendar is the external calendar sink.
type Calendar interface {
	InsertEvent(ctx context.Context, evt Event) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// GoogleCalendar writes events to one Google calendar as a service account.
type GoogleCalendar struct {
	srv        *calendar.Service
	calendarID string
}

// NewGoogleCalendar authenticates with the service account key (PEM).
func NewGoogleCalendar(ctx context.Context, email, privateKey, calendarID string) (*GoogleCalendar, error) {
	cfg := &jwt.Config{
		Email:      email,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{calendar.CalendarEventsScope},
		TokenURL:   google.JWTTokenURL,
	}
	return newGoogleCalendar(ctx, calendarID, option.WithHTTPClient(cfg.Client(ctx)))
}

func newGoogleCalendar(ctx context.Context, calendarID string, opts ...option.ClientOption) (*GoogleCalendar, error) {
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &GoogleCalendar{srv: srv, calendarID: calendarID}, nil
}

func (g *GoogleCalendar) InsertEvent(ctx context.Context, evt Event) (string, error) {
	created, err := g.srv.Events.Insert(g.calendarID, &calendar.Event{
		Summary:     evt.Summary,
		Description: evt.Description,
		Start: &calendar.EventDateTime{
			DateTime: evt.Start.UTC().Format(time.RFC3339),
			TimeZone: evt.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: evt.End.UTC().Format(time.RFC3339),
			TimeZone: evt.Timezone,
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent treats an already missing event as deleted.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	err := g.srv.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	return fmt.Errorf("failed to delete event %s: %w", eventID, err)
}
