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

// Package dedup provides a fast Redis check for already-handled email IDs,
// in front of the authoritative Postgres registry. Checking and marking
// are separate operations: an email skipped for budget reasons is checked
// but never marked, so it stays eligible for the next scan.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a handled email ID is remembered. Searches
	// only reach back days, so a week covers every overlap window.
	DefaultTTL = 7 * 24 * time.Hour

	keyPrefix = "foodscan:seen:"
)

// Cache tracks which email IDs have reached a terminal pipeline outcome.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache creates a dedup cache backed by Redis.
func NewCache(rdb *redis.Client) *Cache {
	return &Cache{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// Seen reports whether the email ID has a recorded terminal outcome.
func (c *Cache) Seen(ctx context.Context, emailID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, keyPrefix+emailID).Result()
	if err != nil {
		return false, fmt.Errorf("dedup EXISTS: %w", err)
	}
	return n > 0, nil
}

// Mark records a terminal outcome for the email ID. Callers must not mark
// emails that were skipped without a pipeline decision.
func (c *Cache) Mark(ctx context.Context, emailID string) error {
	if err := c.rdb.Set(ctx, keyPrefix+emailID, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("dedup SET: %w", err)
	}
	return nil
}
