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

// foodscan — One-Shot Scan Command
//
// Standalone CLI tool that runs a single mailbox scan and prints the
// result as JSON. Useful for cron-driven deployments and manual checks.
//
// Usage:
//
//	go run ./cmd/scan/ [--query "free pizza"] [--max 25] [--budget 5] [--no-calendar]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/foodscan/internal/calendar"
	"github.com/bcem/foodscan/internal/config"
	"github.com/bcem/foodscan/internal/dedup"
	"github.com/bcem/foodscan/internal/extract"
	"github.com/bcem/foodscan/internal/heuristic"
	"github.com/bcem/foodscan/internal/mailbox"
	"github.com/bcem/foodscan/internal/queue"
	"github.com/bcem/foodscan/internal/scan"
	"github.com/bcem/foodscan/internal/semantic"
	"github.com/bcem/foodscan/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	queryFlag := flag.String("query", "", "Override the configured search query")
	maxFlag := flag.Int("max", 0, "Override the configured per-scan email cap")
	budgetFlag := flag.Int("budget", 0, "Override the configured daily extraction budget")
	noCalendar := flag.Bool("no-calendar", false, "Skip the calendar sink even when configured")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *queryFlag != "" {
		cfg.Scanner.SearchQuery = *queryFlag
	}
	if *maxFlag > 0 {
		cfg.Scanner.MaxEmailsPerScan = *maxFlag
	}
	if *budgetFlag > 0 {
		cfg.Scanner.DailyBudget = *budgetFlag
	}

	ctx := context.Background()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	db, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise store", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	// --- Calendar Sink (optional) ---
	var sink calendar.Sink
	if cfg.Calendar.CredentialsFile != "" && !*noCalendar {
		googleSink, err := calendar.NewGoogle(ctx, cfg.Calendar)
		if err != nil {
			slog.Warn("calendar sink unavailable", "error", err)
		} else {
			sink = googleSink
		}
	}

	// --- Scanner ---
	scanner := scan.New(scan.ScannerConfig{
		Mailbox:           mailbox.NewClient(ctx, cfg.Mailbox),
		Heuristic:         heuristic.New(cfg.Scanner.OrgDomain, cfg.Scanner.HeuristicThreshold),
		Semantic:          semantic.New(cfg.Semantic.APIKey, cfg.Semantic.Model, cfg.Semantic.Endpoint),
		Extractor:         extract.New(cfg.Extraction.APIKey, cfg.Extraction.Model, cfg.Extraction.Endpoint, cfg.Scanner.RateLimitInterval),
		Store:             db,
		Dedup:             dedup.NewCache(rdb),
		Publisher:         queue.NewPublisher(rdb, cfg.EventsQueue),
		Calendar:          sink,
		SearchQuery:       cfg.Scanner.SearchQuery,
		MaxEmails:         cfg.Scanner.MaxEmailsPerScan,
		DailyBudget:       cfg.Scanner.DailyBudget,
		MinConfidence:     cfg.Scanner.MinConfidence,
		ReprocessKeywords: cfg.Scanner.ReprocessKeywords,
	})

	result, err := scanner.Run(ctx)
	if err != nil {
		slog.Error("scan failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		slog.Error("encode result", "error", err)
		os.Exit(1)
	}

	if len(result.Errors) > 0 {
		os.Exit(2)
	}
}
