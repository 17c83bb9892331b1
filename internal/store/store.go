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

// Package store provides the Postgres persistence layer: the
// processed-email registry, the model usage ledger, found events, and
// per-scan statistics.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a Postgres pool with the scanner's persistence operations.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store backed by the given Postgres pool. It ensures all
// tables exist on creation.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure scanner schema: %w", err)
	}
	slog.Info("store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS processed_emails (
			email_id        TEXT PRIMARY KEY,
			subject         TEXT DEFAULT '',
			sender          TEXT DEFAULT '',
			filter_tier     TEXT NOT NULL,
			filter_reason   TEXT DEFAULT '',
			heuristic_score DOUBLE PRECISION DEFAULT 0,
			semantic_valid  BOOLEAN,
			sender_class    TEXT DEFAULT '',
			events_found    INT DEFAULT 0,
			processed_at    TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_processed_at ON processed_emails(processed_at);
		CREATE INDEX IF NOT EXISTS idx_processed_tier ON processed_emails(filter_tier);

		CREATE TABLE IF NOT EXISTS llm_usage (
			id         BIGSERIAL PRIMARY KEY,
			provider   TEXT NOT NULL,
			model      TEXT NOT NULL,
			email_id   TEXT DEFAULT '',
			purpose    TEXT NOT NULL,
			success    BOOLEAN NOT NULL,
			latency_ms BIGINT DEFAULT 0,
			called_at  TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_usage_purpose ON llm_usage(purpose, called_at);

		CREATE TABLE IF NOT EXISTS found_events (
			id                BIGSERIAL PRIMARY KEY,
			email_id          TEXT NOT NULL,
			event_name        TEXT NOT NULL,
			event_date        TEXT NOT NULL,
			start_time        TEXT NOT NULL,
			end_time          TEXT NOT NULL,
			location          TEXT NOT NULL,
			food_type         TEXT NOT NULL,
			confidence        DOUBLE PRECISION NOT NULL,
			reasoning         TEXT DEFAULT '',
			calendar_event_id TEXT DEFAULT '',
			calendar_link     TEXT DEFAULT '',
			created_at        TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_events_date ON found_events(event_date);
		CREATE INDEX IF NOT EXISTS idx_events_email ON found_events(email_id);

		CREATE TABLE IF NOT EXISTS scan_stats (
			id               BIGSERIAL PRIMARY KEY,
			scan_id          TEXT NOT NULL UNIQUE,
			started_at       TIMESTAMPTZ NOT NULL,
			emails_scanned   INT DEFAULT 0,
			passed_tier1     INT DEFAULT 0,
			passed_tier2     INT DEFAULT 0,
			processed_tier3  INT DEFAULT 0,
			filtered_tier1   INT DEFAULT 0,
			filtered_tier2   INT DEFAULT 0,
			skipped_budget   INT DEFAULT 0,
			semantic_calls   INT DEFAULT 0,
			extraction_calls INT DEFAULT 0,
			events_found     INT DEFAULT 0,
			events_added     INT DEFAULT 0,
			errors           INT DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS food_type_stats (
			food_type      TEXT PRIMARY KEY,
			count          BIGINT DEFAULT 0,
			avg_confidence DOUBLE PRECISION DEFAULT 0,
			updated_at     TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}
