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

// foodscan — free food mailbox scanner
//
// Entry point for the scanner service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Builds the three-tier filter pipeline over a Graph mailbox
//  4. Runs scans on a schedule and serves the HTTP API
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/foodscan/internal/calendar"
	"github.com/bcem/foodscan/internal/config"
	"github.com/bcem/foodscan/internal/dedup"
	"github.com/bcem/foodscan/internal/extract"
	"github.com/bcem/foodscan/internal/heuristic"
	"github.com/bcem/foodscan/internal/httpapi"
	"github.com/bcem/foodscan/internal/mailbox"
	"github.com/bcem/foodscan/internal/queue"
	"github.com/bcem/foodscan/internal/scan"
	"github.com/bcem/foodscan/internal/semantic"
	"github.com/bcem/foodscan/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting foodscan service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"scan_interval", cfg.Scanner.ScanInterval,
		"daily_budget", cfg.Scanner.DailyBudget,
		"min_confidence", cfg.Scanner.MinConfidence,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

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

	publisher := queue.NewPublisher(rdb, cfg.EventsQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	cache := dedup.NewCache(rdb)

	// --- Pipeline Tiers ---
	tier1 := heuristic.New(cfg.Scanner.OrgDomain, cfg.Scanner.HeuristicThreshold)
	tier2 := semantic.New(cfg.Semantic.APIKey, cfg.Semantic.Model, cfg.Semantic.Endpoint)
	tier3 := extract.New(cfg.Extraction.APIKey, cfg.Extraction.Model, cfg.Extraction.Endpoint, cfg.Scanner.RateLimitInterval)

	// --- Mailbox Source ---
	source := mailbox.NewClient(ctx, cfg.Mailbox)

	// --- Calendar Sink (optional) ---
	var sink calendar.Sink
	if cfg.Calendar.CredentialsFile != "" {
		googleSink, err := calendar.NewGoogle(ctx, cfg.Calendar)
		if err != nil {
			slog.Warn("calendar sink unavailable, events will not be scheduled", "error", err)
		} else {
			sink = googleSink
		}
	}

	// --- Scanner + Scheduler ---
	scanner := scan.New(scan.ScannerConfig{
		Mailbox:           source,
		Heuristic:         tier1,
		Semantic:          tier2,
		Extractor:         tier3,
		Store:             db,
		Dedup:             cache,
		Publisher:         publisher,
		Calendar:          sink,
		SearchQuery:       cfg.Scanner.SearchQuery,
		MaxEmails:         cfg.Scanner.MaxEmailsPerScan,
		DailyBudget:       cfg.Scanner.DailyBudget,
		MinConfidence:     cfg.Scanner.MinConfidence,
		ReprocessKeywords: cfg.Scanner.ReprocessKeywords,
	})

	scheduler := scan.NewScheduler(scanner, cfg.Scanner.ScanInterval)
	scheduler.Start(ctx)

	// --- HTTP API ---
	handler := httpapi.NewHandler(scanner, db)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // a manual scan can take a while
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel()

		scheduler.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		rdb.Close()
		pgPool.Close()
	}()

	slog.Info("foodscan service listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("foodscan service stopped")
}
