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

package calendar

import (
	"testing"
	"time"

	"github.com/bcem/foodscan/internal/models"
)

func TestEventWindow(t *testing.T) {
	g := &GoogleSink{loc: time.UTC}

	ev := models.CandidateEvent{Date: "2026-03-05", StartTime: "18:00", EndTime: "19:30"}
	start, end := g.eventWindow(ev)
	if start.Format("2006-01-02 15:04") != "2026-03-05 18:00" {
		t.Errorf("unexpected start %v", start)
	}
	if end.Sub(start) != 90*time.Minute {
		t.Errorf("unexpected duration %v", end.Sub(start))
	}
}

func TestEventWindow_Defaults(t *testing.T) {
	g := &GoogleSink{loc: time.UTC}

	ev := models.CandidateEvent{Date: models.Unknown, StartTime: models.Unknown, EndTime: models.Unknown}
	start, end := g.eventWindow(ev)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	if start.Day() != tomorrow.Day() || start.Hour() != 12 {
		t.Errorf("unknown date should default to noon tomorrow, got %v", start)
	}
	if end.Sub(start) != time.Hour {
		t.Errorf("unknown end should be start plus one hour, got %v", end.Sub(start))
	}
}

func TestEventWindow_EndBeforeStart(t *testing.T) {
	g := &GoogleSink{loc: time.UTC}

	ev := models.CandidateEvent{Date: "2026-03-05", StartTime: "18:00", EndTime: "09:00"}
	start, end := g.eventWindow(ev)
	if end.Sub(start) != time.Hour {
		t.Errorf("inverted end should fall back to one hour, got %v", end.Sub(start))
	}
}

func TestAtClock(t *testing.T) {
	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		clock string
		hour  int
		min   int
	}{
		{"18:30", 18, 30},
		{"09:00", 9, 0},
		{"garbage", 12, 0},
	}
	for _, tc := range cases {
		got := atClock(day, tc.clock, time.UTC)
		if got.Hour() != tc.hour || got.Minute() != tc.min {
			t.Errorf("atClock(%q) = %v", tc.clock, got)
		}
	}
}

func TestLocationOrEmpty(t *testing.T) {
	if locationOrEmpty(models.Unknown) != "" {
		t.Error("unknown location should map to empty")
	}
	if locationOrEmpty("Room 101") != "Room 101" {
		t.Error("known location should pass through")
	}
}
