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

// Package semantic implements the second filtering tier: a single yes/no
// classifier call against the Gemini generateContent endpoint deciding
// whether a food-relevant email is a genuine event invitation.
//
// The tier fails OPEN: on any provider error the email is passed through to
// the extraction tier. A Tier 2 outage must not silently starve Tier 3.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com"

const bodyPreviewLimit = 800

// Filter is the Tier 2 classifier client.
type Filter struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// New creates a semantic filter. endpoint may be empty to use the public
// Gemini API; tests point it at a local server.
func New(apiKey, model, endpoint string) *Filter {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Filter{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

// Model returns the configured model identifier, for usage recording.
func (f *Filter) Model() string { return f.model }

// IsGenuineEvent reports whether the email describes a real food-providing
// gathering. Exactly one outbound call per invocation. The returned error is
// diagnostic only: when it is non-nil the verdict is already true (fail-open)
// and the caller records the error in the usage ledger, nothing more.
func (f *Filter) IsGenuineEvent(ctx context.Context, body, sender, subject string) (bool, error) {
	prompt := buildGenuinePrompt(body, sender, subject)

	answer, err := f.generate(ctx, prompt)
	if err != nil {
		slog.Warn("semantic filter call failed, failing open", "error", err)
		return true, err
	}

	return strings.Contains(strings.ToLower(answer), "yes"), nil
}

// ClassifySender classifies the sender address into one of: internal,
// external_trusted, marketing, unknown. Best-effort diagnostic; any failure
// yields "unknown".
func (f *Filter) ClassifySender(ctx context.Context, sender string) string {
	prompt := fmt.Sprintf(`Classify this email sender. Answer with ONE word only: internal, external_trusted, marketing, or unknown.

Sender: %s

Categories:
- internal: company employee, @edu, @gov domains
- external_trusted: known service providers, event platforms
- marketing: promotional, newsletter, no-reply addresses
- unknown: cannot determine

Answer:`, sender)

	answer, err := f.generate(ctx, prompt)
	if err != nil {
		return "unknown"
	}

	answer = strings.ToLower(answer)
	for _, class := range []string{"internal", "external_trusted", "marketing"} {
		if strings.Contains(answer, class) {
			return class
		}
	}
	return "unknown"
}

func buildGenuinePrompt(body, sender, subject string) string {
	if len(body) > bodyPreviewLimit {
		body = body[:bodyPreviewLimit]
	}

	subjectSection := ""
	if subject != "" {
		subjectSection = fmt.Sprintf("Subject: %s\n\n", subject)
	}

	return fmt.Sprintf(`Is this email a genuine invitation to an internal event where FOOD/DRINKS/REFRESHMENTS are PROVIDED? Answer YES or NO only.

Sender: %s
%sEmail: %s

Only answer YES if:
- Food/drinks/refreshments are explicitly mentioned as being provided (NOT "bring your own lunch")
- The event has food-related keywords: coffee, lunch, pizza, snacks, refreshments, drinks, treats, catering

Genuine food event examples:
- "Coffee Social" = YES (coffee is provided)
- "Pizza Party" = YES (pizza provided)
- "Team Lunch" = YES (lunch provided)
- "Halloween Party" with treats = YES

Spam indicators:
- External sender with marketing language
- No food mentioned
- "Bring your own lunch" = NO (no food provided)
- Generic promotional content without food

Answer (YES/NO):`, sender, subjectSection, body)
}

// Gemini generateContent wire types, trimmed to the fields we use.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generate performs one generateContent call and returns the reply text.
func (f *Filter) generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", f.endpoint, f.model, f.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("model returned HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty model response")
	}

	return strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
