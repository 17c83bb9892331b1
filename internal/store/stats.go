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

package store

import (
	"context"

	"github.com/bcem/foodscan/internal/models"
)

// FilterPerformance aggregates tier outcomes across all recorded scans.
// It shows how much work each tier saves the next one.
type FilterPerformance struct {
	TotalScans      int64 `json:"total_scans"`
	EmailsScanned   int64 `json:"emails_scanned"`
	FilteredTier1   int64 `json:"filtered_tier1"`
	FilteredTier2   int64 `json:"filtered_tier2"`
	ProcessedTier3  int64 `json:"processed_tier3"`
	SkippedBudget   int64 `json:"skipped_budget"`
	SemanticCalls   int64 `json:"semantic_calls"`
	ExtractionCalls int64 `json:"extraction_calls"`
	EventsFound     int64 `json:"events_found"`
}

// OverallStats is the dashboard summary.
type OverallStats struct {
	ProcessedEmails int64 `json:"processed_emails"`
	TotalEvents     int64 `json:"total_events"`
	UpcomingEvents  int64 `json:"upcoming_events"`
	CalendarEvents  int64 `json:"calendar_events"`
}

// SaveScanStats persists the aggregate counters of one completed scan.
func (s *Store) SaveScanStats(ctx context.Context, r *models.ScanResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_stats
			(scan_id, started_at, emails_scanned, passed_tier1, passed_tier2,
			 processed_tier3, filtered_tier1, filtered_tier2, skipped_budget,
			 semantic_calls, extraction_calls, events_found, events_added, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (scan_id) DO NOTHING
	`, r.ScanID, r.StartedAt, r.EmailsScanned, r.PassedTier1, r.PassedTier2,
		r.ProcessedTier3, r.FilteredTier1, r.FilteredTier2, r.SkippedBudget,
		r.SemanticCalls, r.ExtractionCalls, r.EventsFound, r.EventsAdded, len(r.Errors))
	return err
}

// FilterPerformance sums tier counters across every recorded scan.
func (s *Store) FilterPerformance(ctx context.Context) (*FilterPerformance, error) {
	var fp FilterPerformance
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(emails_scanned), 0),
		       COALESCE(SUM(filtered_tier1), 0),
		       COALESCE(SUM(filtered_tier2), 0),
		       COALESCE(SUM(processed_tier3), 0),
		       COALESCE(SUM(skipped_budget), 0),
		       COALESCE(SUM(semantic_calls), 0),
		       COALESCE(SUM(extraction_calls), 0),
		       COALESCE(SUM(events_found), 0)
		FROM scan_stats
	`).Scan(&fp.TotalScans, &fp.EmailsScanned, &fp.FilteredTier1, &fp.FilteredTier2,
		&fp.ProcessedTier3, &fp.SkippedBudget, &fp.SemanticCalls,
		&fp.ExtractionCalls, &fp.EventsFound)
	if err != nil {
		return nil, err
	}
	return &fp, nil
}

// OverallStats returns headline counts for the dashboard.
func (s *Store) OverallStats(ctx context.Context) (*OverallStats, error) {
	var o OverallStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM processed_emails),
			(SELECT COUNT(*) FROM found_events),
			(SELECT COUNT(*) FROM found_events
			 WHERE event_date >= TO_CHAR(NOW(), 'YYYY-MM-DD') AND event_date != $1),
			(SELECT COUNT(*) FROM found_events WHERE calendar_event_id != '')
	`, models.Unknown).Scan(&o.ProcessedEmails, &o.TotalEvents, &o.UpcomingEvents, &o.CalendarEvents)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
