// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package calendar pushes found food events into Google Calendar. The
// sink is optional; the scanner runs without one when no credentials are
// configured.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/bcem/foodscan/internal/config"
	"github.com/bcem/foodscan/internal/models"
)

// Entry is the outcome of adding one event to the calendar.
type Entry struct {
	EventID   string
	Link      string
	Duplicate bool
}

// UpcomingEvent is a calendar-side view of a scheduled event.
type UpcomingEvent struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	Link  string    `json:"link,omitempty"`
}

// Sink is the calendar interface the scanner depends on.
type Sink interface {
	Add(ctx context.Context, ev models.CandidateEvent) (*Entry, error)
}

// GoogleSink writes events to a Google Calendar.
type GoogleSink struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

// NewGoogle builds a calendar sink from OAuth credentials and a previously
// obtained token file. There is no interactive flow here; the token must
// exist already.
func NewGoogle(ctx context.Context, cfg config.CalendarConfig) (*GoogleSink, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(b, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read calendar token: %w", err)
	}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	slog.Info("calendar sink initialised", "calendar_id", cfg.CalendarID, "timezone", cfg.Timezone)
	return &GoogleSink{svc: svc, calendarID: cfg.CalendarID, loc: loc}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

// Add creates a calendar event for the candidate, unless an event with a
// matching name already exists on the same day.
func (g *GoogleSink) Add(ctx context.Context, ev models.CandidateEvent) (*Entry, error) {
	start, end := g.eventWindow(ev)

	dup, err := g.findDuplicate(ctx, ev.Name, start)
	if err != nil {
		return nil, fmt.Errorf("check duplicates: %w", err)
	}
	if dup != nil {
		slog.Info("calendar event already exists", "event_name", ev.Name, "existing", dup.Summary)
		return &Entry{EventID: dup.Id, Link: dup.HtmlLink, Duplicate: true}, nil
	}

	desc := fmt.Sprintf("Food: %s\nConfidence: %.0f%%\n\n%s", ev.FoodType, ev.Confidence*100, ev.Reasoning)
	created, err := g.svc.Events.Insert(g.calendarID, &gcal.Event{
		Summary:     ev.Name,
		Location:    locationOrEmpty(ev.Location),
		Description: desc,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: g.loc.String()},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: g.loc.String()},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}

	slog.Info("calendar event created", "event_name", ev.Name, "start", start)
	return &Entry{EventID: created.Id, Link: created.HtmlLink}, nil
}

// findDuplicate looks for a same-day event whose summary overlaps the
// candidate name in either direction.
func (g *GoogleSink) findDuplicate(ctx context.Context, name string, start time.Time) (*gcal.Event, error) {
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, g.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	list, err := g.svc.Events.List(g.calendarID).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(name)
	for _, item := range list.Items {
		existing := strings.ToLower(item.Summary)
		if existing == "" {
			continue
		}
		if strings.Contains(existing, needle) || strings.Contains(needle, existing) {
			return item, nil
		}
	}
	return nil, nil
}

// ListUpcoming returns calendar events within the next given number of days.
func (g *GoogleSink) ListUpcoming(ctx context.Context, days int) ([]UpcomingEvent, error) {
	now := time.Now().In(g.loc)
	list, err := g.svc.Events.List(g.calendarID).
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.AddDate(0, 0, days).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}

	out := make([]UpcomingEvent, 0, len(list.Items))
	for _, item := range list.Items {
		start := item.Start.DateTime
		if start == "" {
			start = item.Start.Date
		}
		t, _ := time.ParseInLocation(time.RFC3339, start, g.loc)
		out = append(out, UpcomingEvent{Name: item.Summary, Start: t, Link: item.HtmlLink})
	}
	return out, nil
}

// eventWindow resolves the candidate's date and times into concrete start
// and end instants. Unknown fields fall back to noon tomorrow and a one
// hour duration.
func (g *GoogleSink) eventWindow(ev models.CandidateEvent) (time.Time, time.Time) {
	now := time.Now().In(g.loc)

	day := now.AddDate(0, 0, 1)
	if ev.Date != models.Unknown {
		if d, err := time.ParseInLocation("2006-01-02", ev.Date, g.loc); err == nil {
			day = d
		}
	}

	startClock := "12:00"
	if ev.StartTime != models.Unknown && ev.StartTime != "" {
		startClock = ev.StartTime
	}
	start := atClock(day, startClock, g.loc)

	end := start.Add(time.Hour)
	if ev.EndTime != models.Unknown && ev.EndTime != "" {
		if e := atClock(day, ev.EndTime, g.loc); e.After(start) {
			end = e
		}
	}
	return start, end
}

func atClock(day time.Time, clock string, loc *time.Location) time.Time {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		t, err = time.Parse("15", clock)
		if err != nil {
			return time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, loc)
		}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

func locationOrEmpty(loc string) string {
	if loc == models.Unknown {
		return ""
	}
	return loc
}
