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

// Package scan orchestrates the three-tier filter pipeline over a mailbox:
// a keyword heuristic, a semantic classifier, and a budget-limited
// structured extractor, in increasing order of cost.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bcem/foodscan/internal/calendar"
	"github.com/bcem/foodscan/internal/heuristic"
	"github.com/bcem/foodscan/internal/metrics"
	"github.com/bcem/foodscan/internal/models"
)

// ErrScanInProgress is returned when a scan is requested while another is
// still running.
var ErrScanInProgress = errors.New("scan already in progress")

// Mailbox is the email source.
type Mailbox interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.EmailSummary, error)
	FetchBody(ctx context.Context, messageID string) (string, error)
}

// Heuristic is the tier-one keyword filter.
type Heuristic interface {
	Evaluate(body, sender, subject string) heuristic.Verdict
}

// Semantic is the tier-two classifier.
type Semantic interface {
	IsGenuineEvent(ctx context.Context, body, sender, subject string) (bool, error)
	ClassifySender(ctx context.Context, sender string) string
	Model() string
}

// Extractor is the tier-three structured extraction engine.
type Extractor interface {
	Extract(ctx context.Context, body, subject string, referenceDate time.Time) models.ExtractionResult
	Model() string
}

// Registry is the Postgres persistence surface the scanner uses.
type Registry interface {
	IsProcessed(ctx context.Context, emailID string) (bool, error)
	GetProcessed(ctx context.Context, emailID string) (*models.ProcessedEmail, error)
	MarkProcessed(ctx context.Context, p models.ProcessedEmail) error
	RecordUsage(ctx context.Context, u models.UsageEvent) error
	DailyExtractionCount(ctx context.Context) (int, error)
	SaveFoundEvent(ctx context.Context, fe *models.FoundEvent) error
	SaveScanStats(ctx context.Context, r *models.ScanResult) error
}

// Dedup is the fast already-seen check in front of the registry.
type Dedup interface {
	Seen(ctx context.Context, emailID string) (bool, error)
	Mark(ctx context.Context, emailID string) error
}

// Publisher pushes found events to downstream consumers.
type Publisher interface {
	PublishFoundEvent(ctx context.Context, fe *models.FoundEvent) error
}

// ScannerConfig wires a Scanner's collaborators and knobs. Calendar and
// Publisher are optional.
type ScannerConfig struct {
	Mailbox   Mailbox
	Heuristic Heuristic
	Semantic  Semantic
	Extractor Extractor
	Store     Registry
	Dedup     Dedup
	Publisher Publisher
	Calendar  calendar.Sink

	SearchQuery   string
	MaxEmails     int
	DailyBudget   int
	MinConfidence float64

	// ReprocessKeywords re-admits semantic-rejected emails whose subject
	// matches, despite the registry saying they are done.
	ReprocessKeywords []string
}

// Scanner runs the filter pipeline over mailbox search results. At most
// one scan runs at a time per Scanner.
type Scanner struct {
	cfg ScannerConfig
	mu  sync.Mutex
	now func() time.Time
}

// New creates a Scanner.
func New(cfg ScannerConfig) *Scanner {
	return &Scanner{cfg: cfg, now: time.Now}
}

// Run executes one full scan and returns its result. The extraction
// budget is snapshotted at scan start; concurrent scans are rejected.
func (s *Scanner) Run(ctx context.Context) (*models.ScanResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.mu.Unlock()

	started := s.now()
	result := &models.ScanResult{
		ScanID:    uuid.New().String(),
		StartedAt: started.UTC(),
	}

	used, err := s.cfg.Store.DailyExtractionCount(ctx)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read daily extraction count: %w", err)
	}
	remaining := s.cfg.DailyBudget - used
	if remaining < 0 {
		remaining = 0
	}

	slog.Info("scan started",
		"scan_id", result.ScanID,
		"query", s.cfg.SearchQuery,
		"budget_remaining", remaining,
	)

	emails, err := s.cfg.Mailbox.Search(ctx, s.cfg.SearchQuery, s.cfg.MaxEmails)
	if err != nil {
		metrics.ScansTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search mailbox: %w", err)
	}

	for _, email := range emails {
		if ctx.Err() != nil {
			result.AddError("", "", "scan cancelled: "+ctx.Err().Error())
			break
		}
		s.processEmail(ctx, email, result, &remaining)
	}

	if err := s.cfg.Store.SaveScanStats(ctx, result); err != nil {
		slog.Error("save scan stats failed", "scan_id", result.ScanID, "error", err)
		result.AddError("", "", "save scan stats: "+err.Error())
	}

	metrics.ScansTotal.WithLabelValues("success").Inc()
	metrics.ScanDuration.Observe(s.now().Sub(started).Seconds())

	slog.Info("scan finished",
		"scan_id", result.ScanID,
		"emails_scanned", result.EmailsScanned,
		"events_found", result.EventsFound,
		"events_added", result.EventsAdded,
		"budget_skipped", result.SkippedBudget,
		"errors", len(result.Errors),
	)
	return result, nil
}

// processEmail runs one email through the pipeline. A panic in any stage
// is contained to that email.
func (s *Scanner) processEmail(ctx context.Context, email models.EmailSummary, result *models.ScanResult, remaining *int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing email", "email_id", email.ID, "panic", r)
			result.AddError(email.ID, "", fmt.Sprintf("panic: %v", r))
		}
	}()

	if s.alreadyHandled(ctx, email) {
		return
	}
	result.EmailsScanned++

	body, err := s.cfg.Mailbox.FetchBody(ctx, email.ID)
	if err != nil {
		result.AddError(email.ID, "", "fetch body: "+err.Error())
		return
	}

	// Tier 1: keyword heuristic. Free, so it sees every email.
	verdict := s.cfg.Heuristic.Evaluate(body, email.Sender, email.Subject)
	if !verdict.Accept {
		result.FilteredTier1++
		metrics.EmailsFiltered.WithLabelValues(models.TierHeuristic).Inc()
		s.finish(ctx, email, models.ProcessedEmail{
			FilterTier:     models.TierHeuristic,
			FilterReason:   verdict.Reason,
			HeuristicScore: verdict.Score,
		})
		return
	}
	result.PassedTier1++

	// Tier 2: semantic classification. Unmetered but recorded. A provider
	// failure passes the email through rather than dropping it.
	genuine, semErr := s.timedSemanticCheck(ctx, email, body, result)
	if !genuine {
		result.FilteredTier2++
		metrics.EmailsFiltered.WithLabelValues(models.TierSemantic).Inc()
		no := false
		s.finish(ctx, email, models.ProcessedEmail{
			FilterTier:     models.TierSemantic,
			FilterReason:   "not a genuine event announcement",
			HeuristicScore: verdict.Score,
			SemanticValid:  &no,
		})
		return
	}
	result.PassedTier2++

	var semanticValid *bool
	if semErr == nil {
		yes := true
		semanticValid = &yes
	}

	// Tier 3: structured extraction, metered against the daily budget.
	// A budget skip leaves the email unmarked so a later scan retries it.
	if *remaining <= 0 {
		result.SkippedBudget++
		metrics.BudgetSkips.Inc()
		slog.Info("extraction budget exhausted, deferring email", "email_id", email.ID)
		return
	}
	*remaining--
	result.ProcessedTier3++

	senderClass := s.cfg.Semantic.ClassifySender(ctx, email.Sender)

	extraction := s.timedExtraction(ctx, email, body, result)
	if extraction.Error != "" {
		result.AddError(email.ID, "", "extraction: "+extraction.Error)
		s.finish(ctx, email, models.ProcessedEmail{
			FilterTier:     models.TierPassedAll,
			FilterReason:   "extraction failed",
			HeuristicScore: verdict.Score,
			SemanticValid:  semanticValid,
			SenderClass:    senderClass,
		})
		return
	}

	saved := 0
	for _, ev := range extraction.Events {
		result.EventsFound++
		metrics.EventsFound.WithLabelValues(ev.FoodType).Inc()

		if ev.Confidence < s.cfg.MinConfidence {
			slog.Info("event below confidence gate",
				"email_id", email.ID,
				"event_name", ev.Name,
				"confidence", ev.Confidence,
			)
			continue
		}
		if s.forwardEvent(ctx, email, ev, result) {
			saved++
		}
	}

	s.finish(ctx, email, models.ProcessedEmail{
		FilterTier:     models.TierPassedAll,
		FilterReason:   "completed extraction",
		HeuristicScore: verdict.Score,
		SemanticValid:  semanticValid,
		SenderClass:    senderClass,
		EventsFound:    saved,
	})
}

// alreadyHandled checks the dedup cache and registry, honouring the
// reprocess carve-out for semantic rejections.
func (s *Scanner) alreadyHandled(ctx context.Context, email models.EmailSummary) bool {
	seen, err := s.cfg.Dedup.Seen(ctx, email.ID)
	if err != nil {
		// Redis down; the registry is authoritative anyway.
		slog.Warn("dedup check failed, falling back to registry", "error", err)
	}
	if !seen {
		processed, err := s.cfg.Store.IsProcessed(ctx, email.ID)
		if err != nil {
			slog.Warn("registry check failed, treating email as new", "email_id", email.ID, "error", err)
			return false
		}
		if !processed {
			return false
		}
	}

	if len(s.cfg.ReprocessKeywords) == 0 {
		return true
	}
	rec, err := s.cfg.Store.GetProcessed(ctx, email.ID)
	if err != nil || rec == nil {
		return true
	}
	if rec.FilterTier == models.TierSemantic && containsAnyFold(email.Subject, s.cfg.ReprocessKeywords) {
		slog.Info("reprocessing semantic rejection", "email_id", email.ID, "subject", email.Subject)
		return false
	}
	return true
}

// finish records a terminal outcome in the registry and dedup cache.
func (s *Scanner) finish(ctx context.Context, email models.EmailSummary, rec models.ProcessedEmail) {
	rec.EmailID = email.ID
	rec.Subject = email.Subject
	rec.Sender = email.Sender

	if err := s.cfg.Store.MarkProcessed(ctx, rec); err != nil {
		slog.Error("mark processed failed", "email_id", email.ID, "error", err)
		return
	}
	if err := s.cfg.Dedup.Mark(ctx, email.ID); err != nil {
		slog.Warn("dedup mark failed", "email_id", email.ID, "error", err)
	}
}

func (s *Scanner) timedSemanticCheck(ctx context.Context, email models.EmailSummary, body string, result *models.ScanResult) (bool, error) {
	start := s.now()
	genuine, err := s.cfg.Semantic.IsGenuineEvent(ctx, body, email.Sender, email.Subject)
	latency := s.now().Sub(start)

	result.SemanticCalls++
	s.recordUsage(ctx, models.ProviderGemini, s.cfg.Semantic.Model(), email.ID, models.PurposeFiltering, err == nil, latency)
	if err != nil {
		slog.Warn("semantic check failed open", "email_id", email.ID, "error", err)
	}
	return genuine, err
}

func (s *Scanner) timedExtraction(ctx context.Context, email models.EmailSummary, body string, result *models.ScanResult) models.ExtractionResult {
	start := s.now()
	extraction := s.cfg.Extractor.Extract(ctx, body, email.Subject, s.now())
	latency := s.now().Sub(start)

	result.ExtractionCalls++
	s.recordUsage(ctx, models.ProviderCohere, s.cfg.Extractor.Model(), email.ID, models.PurposeExtraction, extraction.Error == "", latency)
	return extraction
}

func (s *Scanner) recordUsage(ctx context.Context, provider, model, emailID, purpose string, success bool, latency time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	metrics.ModelCalls.WithLabelValues(purpose, outcome).Inc()
	metrics.ModelLatency.WithLabelValues(purpose).Observe(latency.Seconds())

	err := s.cfg.Store.RecordUsage(ctx, models.UsageEvent{
		Provider:  provider,
		Model:     model,
		EmailID:   emailID,
		Purpose:   purpose,
		Success:   success,
		LatencyMS: latency.Milliseconds(),
		CalledAt:  s.now().UTC(),
	})
	if err != nil {
		slog.Error("record usage failed", "email_id", emailID, "purpose", purpose, "error", err)
	}
}

// forwardEvent pushes a gate-passing event to the calendar and persists
// it, reporting whether it was saved. With no sink or an unknown date the
// event is saved without calendar linkage. A calendar duplicate saves
// nothing; a sink error is recorded and saves nothing, without failing
// the scan.
func (s *Scanner) forwardEvent(ctx context.Context, email models.EmailSummary, ev models.CandidateEvent, result *models.ScanResult) bool {
	fe := &models.FoundEvent{EmailID: email.ID, Event: ev}

	if s.cfg.Calendar != nil && ev.Date != models.Unknown {
		entry, err := s.cfg.Calendar.Add(ctx, ev)
		if err != nil {
			result.AddError(email.ID, ev.Name, "calendar: "+err.Error())
			return false
		}
		if entry.Duplicate {
			slog.Info("skipping duplicate calendar event", "event_name", ev.Name)
			return false
		}
		fe.CalendarEventID = entry.EventID
		fe.CalendarLink = entry.Link
		result.EventsAdded++
	}

	if err := s.cfg.Store.SaveFoundEvent(ctx, fe); err != nil {
		result.AddError(email.ID, ev.Name, "save event: "+err.Error())
		return false
	}
	result.Events = append(result.Events, ev)

	if s.cfg.Publisher != nil {
		if err := s.cfg.Publisher.PublishFoundEvent(ctx, fe); err != nil {
			slog.Warn("publish found event failed", "event_name", ev.Name, "error", err)
		}
	}
	return true
}

func containsAnyFold(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
