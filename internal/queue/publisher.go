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

// Package queue publishes found food events to a Redis list for
// downstream consumers such as notification bots.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/foodscan/internal/models"
)

// Publisher sends found-event envelopes to a Redis list.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a publisher targeting the specified list.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// envelope wraps a found event for transport. Consumers key on Kind to
// route messages.
type envelope struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	PublishedAt time.Time         `json:"published_at"`
	Event       models.FoundEvent `json:"event"`
}

// PublishFoundEvent pushes a found event onto the queue. Failures are the
// caller's to handle; publishing is best effort and never blocks a scan.
func (p *Publisher) PublishFoundEvent(ctx context.Context, fe *models.FoundEvent) error {
	env := envelope{
		ID:          uuid.New().String(),
		Kind:        "food_event.found",
		PublishedAt: time.Now().UTC(),
		Event:       *fe,
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, payload).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published found event",
		"envelope_id", env.ID,
		"event_name", fe.Event.Name,
		"queue", p.queueName,
	)
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
