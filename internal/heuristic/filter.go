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

// Package heuristic implements the first filtering tier: pure, deterministic
// keyword scoring with no I/O and no external error conditions. It exists to
// keep obvious spam and food-free mail away from the paid classifier tiers.
package heuristic

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of one heuristic evaluation.
type Verdict struct {
	Accept bool
	Reason string
	// Score is the composite genuineness estimate in [0,1]:
	// 0.0 = certain spam, 1.0 = likely a genuine food event.
	Score float64
}

var spamKeywords = []string{
	"unsubscribe", "opt out", "opt-out",
	"promotional", "advertisement",
	"click here", "buy now", "limited time",
	"act now", "special offer", "discount",
	"free trial", "no obligation",
}

var promotionalSenders = []string{"noreply", "no-reply", "marketing", "promo", "newsletter"}

var foodKeywords = []string{
	"pizza", "lunch", "breakfast", "dinner",
	"food", "catering", "snacks", "bagels",
	"donuts", "coffee", "sandwiches", "tacos",
	"bbq", "potluck", "refreshments", "meal",
	"buffet", "free food", "provided", "served",
	"social", "treats",
}

var (
	datePattern = regexp.MustCompile(`tomorrow|today|(this|next) (monday|tuesday|wednesday|thursday|friday|saturday|sunday)|\d{1,2}/\d{1,2}|(january|february|march|april|may|june|july|august|september|october|november|december) \d{1,2}`)
	timePattern = regexp.MustCompile(`\d{1,2}:\d{2}|\d{1,2}\s?(am|pm)|noon`)
)

var locationKeywords = []string{"room", "building", "floor", "office", "conference", "zoom", "meet", "location"}
var rsvpKeywords = []string{"rsvp", "sign up", "register", "reply", "confirm attendance"}
var invitationKeywords = []string{"join us", "you're invited", "please join", "welcome to"}

// Filter scores emails against spam and food-relevance signals.
// The zero value is not usable; construct with New.
type Filter struct {
	orgDomain string
	threshold float64
}

// New creates a heuristic filter. orgDomain (may be empty) extends the
// internal-sender allow-list; threshold is the minimum accept score.
func New(orgDomain string, threshold float64) *Filter {
	return &Filter{orgDomain: strings.ToLower(orgDomain), threshold: threshold}
}

// Evaluate decides whether an email is worth sending to the classifier
// tiers. Pure function: safe for concurrent use without synchronisation.
// The subject participates in the food-keyword check so that events named
// in the subject alone ("CS CARES Coffee Social") are not lost.
func (f *Filter) Evaluate(body, sender, subject string) Verdict {
	if spam, reason := spamCheck(body, sender); spam {
		return Verdict{Accept: false, Reason: reason, Score: 0.0}
	}

	matched := foodMatches(body, subject)
	if len(matched) == 0 {
		return Verdict{Accept: false, Reason: "no food keywords found", Score: 0.1}
	}

	score := f.score(body, sender, subject)
	if score < f.threshold {
		return Verdict{Accept: false, Reason: fmt.Sprintf("low score: %.2f", score), Score: score}
	}

	top := matched
	if len(top) > 3 {
		top = top[:3]
	}
	return Verdict{
		Accept: true,
		Reason: fmt.Sprintf("passed heuristic (score: %.2f, food: %s)", score, strings.Join(top, ", ")),
		Score:  score,
	}
}

// spamCheck flags strong marketing indicators.
func spamCheck(body, sender string) (bool, string) {
	lower := strings.ToLower(body)

	hits := 0
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	if hits >= 3 {
		return true, fmt.Sprintf("high spam score: %d", hits)
	}

	if strings.Contains(lower, "unsubscribe") && strings.Contains(lower, "http") {
		return true, "marketing email pattern detected"
	}

	senderLower := strings.ToLower(sender)
	for _, p := range promotionalSenders {
		if senderLower != "" && strings.Contains(senderLower, p) {
			return true, fmt.Sprintf("promotional sender: %s", sender)
		}
	}

	return false, ""
}

// foodMatches returns the distinct food keywords found in body or subject.
func foodMatches(body, subject string) []string {
	lower := strings.ToLower(body) + " " + strings.ToLower(subject)

	var matched []string
	for _, kw := range foodKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// isInternalSender reports whether the sender looks like an internal or
// institutional address. Automated no-reply senders never count.
func (f *Filter) isInternalSender(sender string) bool {
	if sender == "" {
		return false
	}
	lower := strings.ToLower(sender)

	if strings.Contains(lower, "noreply") || strings.Contains(lower, "no-reply") {
		return false
	}

	domains := []string{".edu", ".gov"}
	if f.orgDomain != "" {
		domains = append(domains, f.orgDomain)
	}
	for _, d := range domains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

// eventIndicators counts distinct event-signal categories in the body:
// date mention, time mention, location, RSVP request, invitation phrasing.
func eventIndicators(body string) int {
	lower := strings.ToLower(body)
	n := 0

	if datePattern.MatchString(lower) {
		n++
	}
	if timePattern.MatchString(lower) {
		n++
	}
	if containsAny(lower, locationKeywords) {
		n++
	}
	if containsAny(lower, rsvpKeywords) {
		n++
	}
	if containsAny(lower, invitationKeywords) {
		n++
	}
	return n
}

// score composes the signals into a single clamped [0,1] estimate.
func (f *Filter) score(body, sender, subject string) float64 {
	score := 0.5

	if spam, _ := spamCheck(body, sender); spam {
		score -= 0.4
	}

	matched := foodMatches(body, subject)
	if len(matched) > 0 {
		score += 0.2
		if len(matched) >= 3 {
			score += 0.1
		}
	} else {
		score -= 0.3
	}

	if f.isInternalSender(sender) {
		score += 0.2
	}

	if n := eventIndicators(body); n > 0 {
		if n > 3 {
			n = 3
		}
		score += 0.1 * float64(n)
	}

	return clamp(score)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
