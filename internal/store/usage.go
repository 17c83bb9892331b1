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

// UsageStats summarises the model usage ledger.
type UsageStats struct {
	TotalCalls       int64            `json:"total_calls"`
	SuccessfulCalls  int64            `json:"successful_calls"`
	ExtractionsToday int64            `json:"extractions_today"`
	ByPurpose        map[string]int64 `json:"by_purpose"`
}

// RecordUsage appends one ledger row. The ledger is append-only.
func (s *Store) RecordUsage(ctx context.Context, u models.UsageEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO llm_usage (provider, model, email_id, purpose, success, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.Provider, u.Model, u.EmailID, u.Purpose, u.Success, u.LatencyMS)
	return err
}

// DailyExtractionCount returns the number of extraction calls made to the
// extraction provider so far today (database local date). Filtering calls
// and other providers are not metered. There is no cross-process lock
// around read-then-spend; two processes sharing a database can jointly
// overspend the budget.
func (s *Store) DailyExtractionCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM llm_usage
		WHERE purpose = $1 AND provider = $2 AND called_at::date = CURRENT_DATE
	`, models.PurposeExtraction, models.ProviderCohere).Scan(&n)
	return n, err
}

// UsageStats aggregates the ledger for reporting.
func (s *Store) UsageStats(ctx context.Context) (*UsageStats, error) {
	stats := &UsageStats{ByPurpose: make(map[string]int64)}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COUNT(*) FILTER (WHERE purpose = $1 AND called_at::date = CURRENT_DATE)
		FROM llm_usage
	`, models.PurposeExtraction).Scan(&stats.TotalCalls, &stats.SuccessfulCalls, &stats.ExtractionsToday)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT purpose, COUNT(*) FROM llm_usage GROUP BY purpose
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var purpose string
		var count int64
		if err := rows.Scan(&purpose, &count); err != nil {
			return nil, err
		}
		stats.ByPurpose[purpose] = count
	}
	return stats, rows.Err()
}
