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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bcem/foodscan/internal/models"
)

// SaveFoundEvent persists an event that passed the confidence gate and
// bumps the per-food-type counter. The event's ID and CreatedAt are filled
// in on return.
func (s *Store) SaveFoundEvent(ctx context.Context, fe *models.FoundEvent) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO found_events
			(email_id, event_name, event_date, start_time, end_time,
			 location, food_type, confidence, reasoning,
			 calendar_event_id, calendar_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, fe.EmailID, fe.Event.Name, fe.Event.Date, fe.Event.StartTime, fe.Event.EndTime,
		fe.Event.Location, fe.Event.FoodType, fe.Event.Confidence, fe.Event.Reasoning,
		fe.CalendarEventID, fe.CalendarLink).Scan(&fe.ID, &fe.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert found event: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO food_type_stats (food_type, count, avg_confidence)
		VALUES ($1, 1, $2)
		ON CONFLICT (food_type) DO UPDATE SET
			avg_confidence = (food_type_stats.avg_confidence * food_type_stats.count + EXCLUDED.avg_confidence)
			                 / (food_type_stats.count + 1),
			count      = food_type_stats.count + 1,
			updated_at = NOW()
	`, fe.Event.FoodType, fe.Event.Confidence)
	if err != nil {
		return fmt.Errorf("bump food type counter: %w", err)
	}
	return nil
}

// RecentEvents returns the most recently found events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]models.FoundEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email_id, event_name, event_date, start_time, end_time,
		       location, food_type, confidence, reasoning,
		       calendar_event_id, calendar_link, created_at
		FROM found_events
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// UpcomingEvents returns events dated today or later, soonest first.
// Events with an unknown date never appear here.
func (s *Store) UpcomingEvents(ctx context.Context) ([]models.FoundEvent, error) {
	today := time.Now().Format("2006-01-02")
	rows, err := s.pool.Query(ctx, `
		SELECT id, email_id, event_name, event_date, start_time, end_time,
		       location, food_type, confidence, reasoning,
		       calendar_event_id, calendar_link, created_at
		FROM found_events
		WHERE event_date >= $1 AND event_date != $2
		ORDER BY event_date, start_time
	`, today, models.Unknown)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// FoodTypeCounts returns the lifetime per-food-type event counts.
func (s *Store) FoodTypeCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT food_type, count FROM food_type_stats ORDER BY count DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var ft string
		var n int64
		if err := rows.Scan(&ft, &n); err != nil {
			return nil, err
		}
		counts[ft] = n
	}
	return counts, rows.Err()
}

func collectEvents(rows pgx.Rows) ([]models.FoundEvent, error) {
	var events []models.FoundEvent
	for rows.Next() {
		var fe models.FoundEvent
		if err := rows.Scan(
			&fe.ID, &fe.EmailID, &fe.Event.Name, &fe.Event.Date,
			&fe.Event.StartTime, &fe.Event.EndTime, &fe.Event.Location,
			&fe.Event.FoodType, &fe.Event.Confidence, &fe.Event.Reasoning,
			&fe.CalendarEventID, &fe.CalendarLink, &fe.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, fe)
	}
	return events, rows.Err()
}
