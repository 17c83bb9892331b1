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

// Package httpapi exposes the scanner over HTTP: manual scan triggering,
// found-event queries, and usage and filter statistics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bcem/foodscan/internal/models"
	"github.com/bcem/foodscan/internal/scan"
	"github.com/bcem/foodscan/internal/store"
)

const defaultListLimit = 50

// ScanRunner triggers a mailbox scan.
type ScanRunner interface {
	Run(ctx context.Context) (*models.ScanResult, error)
}

// Stats is the read-side persistence surface the API serves from.
type Stats interface {
	RecentEvents(ctx context.Context, limit int) ([]models.FoundEvent, error)
	UpcomingEvents(ctx context.Context) ([]models.FoundEvent, error)
	RecentProcessed(ctx context.Context, limit int) ([]models.ProcessedEmail, error)
	OverallStats(ctx context.Context) (*store.OverallStats, error)
	UsageStats(ctx context.Context) (*store.UsageStats, error)
	FilterPerformance(ctx context.Context) (*store.FilterPerformance, error)
	FoodTypeCounts(ctx context.Context) (map[string]int64, error)
}

// Handler serves the scanner HTTP API.
type Handler struct {
	scanner ScanRunner
	stats   Stats
}

// NewHandler creates the API handler.
func NewHandler(scanner ScanRunner, stats Stats) *Handler {
	return &Handler{scanner: scanner, stats: stats}
}

// Routes returns the full route table including health and metrics.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scan", h.triggerScan)
	mux.HandleFunc("GET /events", h.recentEvents)
	mux.HandleFunc("GET /events/upcoming", h.upcomingEvents)
	mux.HandleFunc("GET /stats", h.overallStats)
	mux.HandleFunc("GET /analytics", h.analytics)
	mux.HandleFunc("GET /health", h.health)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// triggerScan runs a scan synchronously and returns its result.
func (h *Handler) triggerScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.scanner.Run(r.Context())
	if err != nil {
		if errors.Is(err, scan.ErrScanInProgress) {
			writeError(w, http.StatusConflict, "a scan is already running")
			return
		}
		slog.Error("manual scan failed", "error", err)
		writeError(w, http.StatusInternalServerError, "scan failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultListLimit)
	events, err := h.stats.RecentEvents(r.Context(), limit)
	if err != nil {
		slog.Error("list recent events failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func (h *Handler) upcomingEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.stats.UpcomingEvents(r.Context())
	if err != nil {
		slog.Error("list upcoming events failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

// overallStats returns headline counts plus the model usage summary.
func (h *Handler) overallStats(w http.ResponseWriter, r *http.Request) {
	overall, err := h.stats.OverallStats(r.Context())
	if err != nil {
		slog.Error("overall stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	usage, err := h.stats.UsageStats(r.Context())
	if err != nil {
		slog.Error("usage stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"overall": overall,
		"usage":   usage,
	})
}

// analytics returns filter tier performance, food type distribution and
// the recent registry tail.
func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	perf, err := h.stats.FilterPerformance(r.Context())
	if err != nil {
		slog.Error("filter performance failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	foodTypes, err := h.stats.FoodTypeCounts(r.Context())
	if err != nil {
		slog.Error("food type counts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	recent, err := h.stats.RecentProcessed(r.Context(), queryLimit(r, 20))
	if err != nil {
		slog.Error("recent processed failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filter_performance": perf,
		"food_types":         foodTypes,
		"recent_processed":   recent,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "foodscan",
	})
}

func queryLimit(r *http.Request, fallback int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
