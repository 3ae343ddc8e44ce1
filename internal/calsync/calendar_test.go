package calsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func newTestCalendar(t *testing.T, h http.HandlerFunc) *GoogleCalendar {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	g, err := newGoogleCalendar(context.Background(), "primary",
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	if err != nil {
		t.Fatalf("newGoogleCalendar: %v", err)
	}
	return g
}

func TestGoogleCalendarInsert(t *testing.T) {
	var got calendar.Event
	g := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/calendars/primary/events") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-42"}`))
	})

	start := time.Date(2026, 1, 28, 16, 30, 0, 0, time.UTC)
	id, err := g.InsertEvent(context.Background(), Event{
		Summary:  "Meeting with Jane Doe",
		Start:    start,
		End:      start.Add(30 * time.Minute),
		Timezone: "America/Denver",
	})
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if id != "evt-42" {
		t.Fatalf("expected evt-42, got %q", id)
	}
	if got.Summary != "Meeting with Jane Doe" || got.Start == nil || got.Start.DateTime != "2026-01-28T16:30:00Z" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.End.TimeZone != "America/Denver" {
		t.Fatalf("expected timezone on end, got %q", got.End.TimeZone)
	}
}

func TestGoogleCalendarDeleteGoneIsSuccess(t *testing.T) {
	g := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"error":{"code":410,"message":"Resource has been deleted"}}`))
	})
	if err := g.DeleteEvent(context.Background(), "evt-42"); err != nil {
		t.Fatalf("expected nil for gone event, got %v", err)
	}
}

func TestGoogleCalendarDeleteRejected(t *testing.T) {
	g := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
	})
	if err := g.DeleteEvent(context.Background(), "evt-42"); err == nil {
		t.Fatal("expected error for 403")
	}
}
