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

package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bcem/foodscan/internal/models"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// rawPayload mirrors the model's output schema. Confidence is decoded
// loosely because models sometimes emit it as a string.
type rawPayload struct {
	HasFoodEvent bool       `json:"has_food_event"`
	Events       []rawEvent `json:"events"`
}

type rawEvent struct {
	EventName  string          `json:"event_name"`
	Date       string          `json:"date"`
	Time       string          `json:"time"`
	EndTime    string          `json:"end_time"`
	Location   string          `json:"location"`
	FoodType   string          `json:"food_type"`
	Confidence json.RawMessage `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// parsePayload recovers a JSON object from model output. Models wrap JSON
// in prose or markdown fences often enough that a plain Unmarshal is not
// sufficient; each step widens the net.
func parsePayload(text string) (*rawPayload, error) {
	candidates := []string{strings.TrimSpace(text)}

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if s := largestBalancedObject(text); s != "" {
		candidates = append(candidates, s)
	}
	if first, last := strings.Index(text, "{"), strings.LastIndex(text, "}"); first >= 0 && last > first {
		candidates = append(candidates, text[first:last+1])
	}

	var lastErr error
	for _, c := range candidates {
		var p rawPayload
		if err := json.Unmarshal([]byte(c), &p); err != nil {
			lastErr = err
			continue
		}
		return &p, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no JSON object found")
	}
	return nil, fmt.Errorf("parse model output (%d chars): %w", len(text), lastErr)
}

// largestBalancedObject finds the longest substring that opens with '{'
// and closes with its matching '}'. Brace counting ignores braces inside
// string literals.
func largestBalancedObject(text string) string {
	best := ""
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for j := i; j < len(text); j++ {
			ch := text[j]
			if escaped {
				escaped = false
				continue
			}
			switch {
			case ch == '\\' && inString:
				escaped = true
			case ch == '"':
				inString = !inString
			case !inString && ch == '{':
				depth++
			case !inString && ch == '}':
				depth--
				if depth == 0 {
					if j-i+1 > len(best) {
						best = text[i : j+1]
					}
					j = len(text)
				}
			}
		}
	}
	return best
}

// normalize converts a raw event into a CandidateEvent with every field
// populated. Missing strings become "unknown", confidence defaults to 0.5
// and is clamped to [0,1], and a missing or unknown end time is start plus
// one hour.
func normalize(r rawEvent) models.CandidateEvent {
	ev := models.CandidateEvent{
		Name:       orUnknown(r.EventName),
		Date:       orUnknown(r.Date),
		StartTime:  orUnknown(r.Time),
		EndTime:    orUnknown(r.EndTime),
		Location:   orUnknown(r.Location),
		FoodType:   orUnknown(r.FoodType),
		Confidence: parseConfidence(r.Confidence),
		Reasoning:  strings.TrimSpace(r.Reasoning),
	}
	if ev.EndTime == models.Unknown {
		ev.EndTime = addHour(ev.StartTime)
	}
	if ev.Reasoning == "" {
		ev.Reasoning = "extracted from email"
	}
	return ev
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return models.Unknown
	}
	return s
}

// parseConfidence tolerates numbers, quoted numbers, and garbage.
func parseConfidence(raw json.RawMessage) float64 {
	const fallback = 0.5
	if len(raw) == 0 || string(raw) == "null" {
		return fallback
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fallback
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fallback
		}
		f = parsed
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// addHour returns start plus one hour for HH:MM inputs, or "unknown" when
// the start time itself is unparseable.
func addHour(start string) string {
	parts := strings.SplitN(start, ":", 2)
	if len(parts) != 2 {
		return models.Unknown
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return models.Unknown
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.Unknown
	}
	h = (h + 1) % 24
	return fmt.Sprintf("%02d:%02d", h, m)
}
