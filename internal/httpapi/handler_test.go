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

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bcem/foodscan/internal/models"
	"github.com/bcem/foodscan/internal/scan"
	"github.com/bcem/foodscan/internal/store"
)

type fakeRunner struct {
	result *models.ScanResult
	err    error
}

func (f *fakeRunner) Run(ctx context.Context) (*models.ScanResult, error) {
	return f.result, f.err
}

type fakeStats struct {
	events   []models.FoundEvent
	upcoming []models.FoundEvent
	err      error
}

func (f *fakeStats) RecentEvents(ctx context.Context, limit int) ([]models.FoundEvent, error) {
	if limit < len(f.events) {
		return f.events[:limit], f.err
	}
	return f.events, f.err
}

func (f *fakeStats) UpcomingEvents(ctx context.Context) ([]models.FoundEvent, error) {
	return f.upcoming, f.err
}

func (f *fakeStats) RecentProcessed(ctx context.Context, limit int) ([]models.ProcessedEmail, error) {
	return nil, f.err
}

func (f *fakeStats) OverallStats(ctx context.Context) (*store.OverallStats, error) {
	return &store.OverallStats{ProcessedEmails: 42, TotalEvents: 7}, f.err
}

func (f *fakeStats) UsageStats(ctx context.Context) (*store.UsageStats, error) {
	return &store.UsageStats{TotalCalls: 10, ExtractionsToday: 3}, f.err
}

func (f *fakeStats) FilterPerformance(ctx context.Context) (*store.FilterPerformance, error) {
	return &store.FilterPerformance{TotalScans: 5}, f.err
}

func (f *fakeStats) FoodTypeCounts(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{"pizza": 4}, f.err
}

func newServer(runner *fakeRunner, stats *fakeStats) *httptest.Server {
	return httptest.NewServer(NewHandler(runner, stats).Routes())
}

func TestTriggerScan(t *testing.T) {
	runner := &fakeRunner{result: &models.ScanResult{ScanID: "s1", EmailsScanned: 3, EventsFound: 1}}
	srv := newServer(runner, &fakeStats{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/scan", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got models.ScanResult
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ScanID != "s1" || got.EmailsScanned != 3 {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestTriggerScan_Conflict(t *testing.T) {
	srv := newServer(&fakeRunner{err: scan.ErrScanInProgress}, &fakeStats{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/scan", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("in-progress scan should return 409, got %d", resp.StatusCode)
	}
}

func TestTriggerScan_MethodNotAllowed(t *testing.T) {
	srv := newServer(&fakeRunner{}, &fakeStats{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/scan")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /scan should be rejected, got %d", resp.StatusCode)
	}
}

func TestRecentEvents(t *testing.T) {
	stats := &fakeStats{events: []models.FoundEvent{
		{ID: 1, EmailID: "e1", Event: models.CandidateEvent{Name: "Pizza Friday", FoodType: "pizza"}, CreatedAt: time.Now()},
		{ID: 2, EmailID: "e2", Event: models.CandidateEvent{Name: "Bagel Morning", FoodType: "bagels"}, CreatedAt: time.Now()},
	}}
	srv := newServer(&fakeRunner{}, stats)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events?limit=1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Count  int                 `json:"count"`
		Events []models.FoundEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Events[0].Event.Name != "Pizza Friday" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestUpcomingEvents_Error(t *testing.T) {
	srv := newServer(&fakeRunner{}, &fakeStats{err: errors.New("db down")})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events/upcoming")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("store failure should return 500, got %d", resp.StatusCode)
	}
}

func TestOverallStats(t *testing.T) {
	srv := newServer(&fakeRunner{}, &fakeStats{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Overall store.OverallStats `json:"overall"`
		Usage   store.UsageStats   `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Overall.ProcessedEmails != 42 || body.Usage.ExtractionsToday != 3 {
		t.Errorf("unexpected stats %+v", body)
	}
}

func TestAnalytics(t *testing.T) {
	srv := newServer(&fakeRunner{}, &fakeStats{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/analytics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		FilterPerformance store.FilterPerformance `json:"filter_performance"`
		FoodTypes         map[string]int64        `json:"food_types"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.FilterPerformance.TotalScans != 5 || body.FoodTypes["pizza"] != 4 {
		t.Errorf("unexpected analytics %+v", body)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(&fakeRunner{}, &fakeStats{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}
