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

	"github.com/jackc/pgx/v5"

	"github.com/bcem/foodscan/internal/models"
)

// IsProcessed reports whether an email already has a registry record.
func (s *Store) IsProcessed(ctx context.Context, emailID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM processed_emails WHERE email_id = $1)
	`, emailID).Scan(&exists)
	return exists, err
}

// GetProcessed retrieves the registry record for an email, or nil when the
// email has never been processed.
func (s *Store) GetProcessed(ctx context.Context, emailID string) (*models.ProcessedEmail, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT email_id, subject, sender, filter_tier, filter_reason,
		       heuristic_score, semantic_valid, sender_class, events_found, processed_at
		FROM processed_emails
		WHERE email_id = $1
	`, emailID)
	return scanProcessed(row)
}

// MarkProcessed records a terminal pipeline outcome for an email.
// Re-marking the same email replaces the prior record.
func (s *Store) MarkProcessed(ctx context.Context, p models.ProcessedEmail) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processed_emails
			(email_id, subject, sender, filter_tier, filter_reason,
			 heuristic_score, semantic_valid, sender_class, events_found)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email_id) DO UPDATE SET
			subject         = EXCLUDED.subject,
			sender          = EXCLUDED.sender,
			filter_tier     = EXCLUDED.filter_tier,
			filter_reason   = EXCLUDED.filter_reason,
			heuristic_score = EXCLUDED.heuristic_score,
			semantic_valid  = EXCLUDED.semantic_valid,
			sender_class    = EXCLUDED.sender_class,
			events_found    = EXCLUDED.events_found,
			processed_at    = NOW()
	`, p.EmailID, p.Subject, p.Sender, p.FilterTier, p.FilterReason,
		p.HeuristicScore, p.SemanticValid, p.SenderClass, p.EventsFound)
	return err
}

// RecentProcessed returns the most recently processed emails, newest first.
func (s *Store) RecentProcessed(ctx context.Context, limit int) ([]models.ProcessedEmail, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT email_id, subject, sender, filter_tier, filter_reason,
		       heuristic_score, semantic_valid, sender_class, events_found, processed_at
		FROM processed_emails
		ORDER BY processed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ProcessedEmail
	for rows.Next() {
		p, err := scanProcessedRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProcessed(row pgx.Row) (*models.ProcessedEmail, error) {
	p, err := scanProcessedRow(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanProcessedRow(row pgx.Row) (*models.ProcessedEmail, error) {
	var p models.ProcessedEmail
	err := row.Scan(
		&p.EmailID, &p.Subject, &p.Sender, &p.FilterTier, &p.FilterReason,
		&p.HeuristicScore, &p.SemanticValid, &p.SenderClass, &p.EventsFound, &p.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
