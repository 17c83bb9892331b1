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

// Package models defines the data structures shared across the scanner.
package models

import "time"

// Unknown is the sentinel value for any event field the extractor could not
// determine. Normalised events never carry empty or null fields.
const Unknown = "unknown"

// EmailSummary is the lightweight search-result form of an email. The ID is
// an opaque provider identifier, stable across fetches, and is the key used
// for idempotence.
type EmailSummary struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Preview    string    `json:"preview,omitempty"`
}

// CandidateEvent is a single event record produced by the extraction engine.
// Date is "YYYY-MM-DD" or Unknown; StartTime/EndTime are 24-hour "HH:MM" or
// Unknown. After normalisation every field is present and Confidence is a
// finite value in [0,1].
type CandidateEvent struct {
	Name       string  `json:"event_name"`
	Date       string  `json:"date"`
	StartTime  string  `json:"time"`
	EndTime    string  `json:"end_time"`
	Location   string  `json:"location"`
	FoodType   string  `json:"food_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ExtractionResult is the outcome of one extraction-engine invocation.
// Error is empty on success; a non-empty Error always comes with an empty
// event list, never with a partial one.
type ExtractionResult struct {
	HasFoodEvent bool             `json:"has_food_event"`
	Events       []CandidateEvent `json:"events"`
	Error        string           `json:"error,omitempty"`
}

// ScanError records a single non-fatal failure during a scan.
type ScanError struct {
	EmailID string `json:"email_id,omitempty"`
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// ScanResult aggregates the outcome of one orchestrator run. It is mutated
// while the scan is in flight, persisted once at scan end, and immutable
// afterwards.
type ScanResult struct {
	ScanID    string    `json:"scan_id"`
	StartedAt time.Time `json:"started_at"`

	EmailsScanned  int `json:"emails_scanned"`
	PassedTier1    int `json:"passed_tier1"`
	PassedTier2    int `json:"passed_tier2"`
	ProcessedTier3 int `json:"processed_tier3"`

	FilteredTier1 int `json:"filtered_tier1"`
	FilteredTier2 int `json:"filtered_tier2"`
	SkippedBudget int `json:"skipped_budget"`

	SemanticCalls   int `json:"semantic_calls"`
	ExtractionCalls int `json:"extraction_calls"`

	EventsFound int `json:"events_found"`
	EventsAdded int `json:"events_added"`

	Events []CandidateEvent `json:"events"`
	Errors []ScanError      `json:"errors"`
}

// AddError appends a non-fatal failure to the result.
func (r *ScanResult) AddError(emailID, event, message string) {
	r.Errors = append(r.Errors, ScanError{EmailID: emailID, Event: event, Message: message})
}

// Filter tier labels recorded in the processed-email registry.
const (
	TierHeuristic = "heuristic"
	TierSemantic  = "semantic"
	TierPassedAll = "passed_all"
)

// ProcessedEmail is the registry record for an email that completed a
// pipeline pass, including early rejections. Keyed by EmailID; re-marking
// the same email replaces the prior record.
type ProcessedEmail struct {
	EmailID        string    `json:"email_id"`
	Subject        string    `json:"subject"`
	Sender         string    `json:"sender"`
	FilterTier     string    `json:"filter_tier"`
	FilterReason   string    `json:"filter_reason"`
	HeuristicScore float64   `json:"heuristic_score"`
	SemanticValid  *bool     `json:"semantic_genuine,omitempty"`
	SenderClass    string    `json:"sender_class,omitempty"`
	EventsFound    int       `json:"events_found"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// Usage purposes recorded in the ledger.
const (
	PurposeFiltering  = "filtering"
	PurposeExtraction = "extraction"
)

// Provider tags recorded in the ledger.
const (
	ProviderGemini = "gemini"
	ProviderCohere = "cohere"
)

// UsageEvent is one append-only ledger row per external model call.
type UsageEvent struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	EmailID   string    `json:"email_id,omitempty"`
	Purpose   string    `json:"purpose"`
	Success   bool      `json:"success"`
	LatencyMS int64     `json:"latency_ms"`
	CalledAt  time.Time `json:"called_at"`
}

// FoundEvent is the persisted form of a CandidateEvent that passed the
// confidence gate, with optional calendar linkage when a sink created it.
type FoundEvent struct {
	ID              int64          `json:"id"`
	EmailID         string         `json:"email_id"`
	Event           CandidateEvent `json:"event"`
	CalendarEventID string         `json:"calendar_event_id,omitempty"`
	CalendarLink    string         `json:"calendar_link,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
