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

// Package extract turns email bodies into structured food-event records
// via an LLM chat completion endpoint. It is the most expensive stage of
// the pipeline and is rate limited accordingly.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bcem/foodscan/internal/models"
)

const (
	defaultEndpoint = "https://api.cohere.com"

	// minBodyLen guards against wasting a metered call on bodies with no
	// extractable content.
	minBodyLen = 10

	cooldown = 60 * time.Second
)

// Stats reports lifetime extractor activity.
type Stats struct {
	TotalCalls            int     `json:"total_calls"`
	SuccessfulExtractions int     `json:"successful_extractions"`
	SuccessRate           float64 `json:"success_rate"`
}

// Extractor is the tier-three structured extraction client.
type Extractor struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	minInterval time.Duration

	// now and sleep are swappable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	mu       sync.Mutex
	lastCall time.Time
	stats    Stats
}

// New builds an Extractor. An empty endpoint selects the hosted API and
// an empty minInterval disables call spacing.
func New(apiKey, model, endpoint string, minInterval time.Duration) *Extractor {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Extractor{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		endpoint:    strings.TrimRight(endpoint, "/"),
		apiKey:      apiKey,
		model:       model,
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Model returns the configured model name.
func (e *Extractor) Model() string { return e.model }

// Stats returns a snapshot of call counters.
func (e *Extractor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	if s.TotalCalls > 0 {
		s.SuccessRate = float64(s.SuccessfulExtractions) / float64(s.TotalCalls)
	}
	return s
}

// Extract analyzes an email body for food events. The reference date
// anchors relative-date resolution. Bodies shorter than ten characters
// after trimming are skipped without a provider call.
func (e *Extractor) Extract(ctx context.Context, body, subject string, referenceDate time.Time) models.ExtractionResult {
	if len(strings.TrimSpace(body)) < minBodyLen {
		return models.ExtractionResult{HasFoodEvent: false}
	}

	prompt := buildPrompt(body, subject, referenceDate)

	text, err := e.chatWithRetry(ctx, prompt)
	if err != nil {
		slog.Warn("extraction call failed", "error", err)
		return models.ExtractionResult{Error: err.Error()}
	}

	payload, err := parsePayload(text)
	if err != nil {
		slog.Warn("extraction output unparseable", "error", err)
		return models.ExtractionResult{Error: err.Error()}
	}

	result := models.ExtractionResult{HasFoodEvent: payload.HasFoodEvent}
	for _, raw := range payload.Events {
		result.Events = append(result.Events, normalize(raw))
	}
	if len(result.Events) > 0 {
		result.HasFoodEvent = true
		e.mu.Lock()
		e.stats.SuccessfulExtractions++
		e.mu.Unlock()
	}
	return result
}

// chatWithRetry spaces calls at least minInterval apart and retries a
// single time after a cooldown when the provider signals rate exhaustion.
func (e *Extractor) chatWithRetry(ctx context.Context, prompt string) (string, error) {
	e.throttle(ctx)

	text, status, err := e.chat(ctx, prompt)
	if status == http.StatusTooManyRequests {
		slog.Warn("extraction provider rate limited, cooling down", "cooldown", cooldown)
		e.sleep(ctx, cooldown)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		text, status, err = e.chat(ctx, prompt)
	}
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("extraction provider status %d", status)
	}
	return text, nil
}

// throttle sleeps until minInterval has elapsed since the previous call.
func (e *Extractor) throttle(ctx context.Context) {
	e.mu.Lock()
	wait := time.Duration(0)
	if !e.lastCall.IsZero() && e.minInterval > 0 {
		if elapsed := e.now().Sub(e.lastCall); elapsed < e.minInterval {
			wait = e.minInterval - elapsed
		}
	}
	e.mu.Unlock()

	if wait > 0 {
		e.sleep(ctx, wait)
	}
}

type chatRequest struct {
	Model       string  `json:"model"`
	Message     string  `json:"message"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type chatResponse struct {
	Text string `json:"text"`
}

// chat performs one completion round trip and records the attempt.
func (e *Extractor) chat(ctx context.Context, prompt string) (string, int, error) {
	e.mu.Lock()
	e.stats.TotalCalls++
	e.lastCall = e.now()
	e.mu.Unlock()

	reqBody, err := json.Marshal(chatRequest{
		Model:       e.model,
		Message:     prompt,
		Temperature: 0.3,
		MaxTokens:   1500,
	})
	if err != nil {
		return "", 0, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/v1/chat", bytes.NewReader(reqBody))
	if err != nil {
		return "", 0, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, nil
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode chat response: %w", err)
	}
	return out.Text, resp.StatusCode, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
