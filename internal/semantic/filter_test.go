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

package semantic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeModel returns an httptest server that replies with the given text in
// Gemini generateContent response format, and captures the prompt.
func fakeModel(t *testing.T, reply string, gotPrompt *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if gotPrompt != nil && len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			*gotPrompt = req.Contents[0].Parts[0].Text
		}

		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": reply}},
				}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

// TestIsGenuineEvent_YesNo verifies the affirmative-token parse.
func TestIsGenuineEvent_YesNo(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"YES", true},
		{"yes", true},
		{"Yes, this is a genuine event.", true},
		{"NO", false},
		{"No - marketing email.", false},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			srv := fakeModel(t, tt.reply, nil)
			defer srv.Close()

			f := New("test-key", "gemini-1.5-flash", srv.URL)
			got, err := f.IsGenuineEvent(context.Background(), "free pizza friday", "a@b.edu", "Pizza")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsGenuineEvent = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestIsGenuineEvent_FailOpen verifies that provider errors pass the email
// through instead of rejecting it. This policy is deliberate: a Tier 2
// outage must not starve the extraction tier.
func TestIsGenuineEvent_FailOpen(t *testing.T) {
	t.Run("http 500", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}))
		defer srv.Close()

		f := New("test-key", "gemini-1.5-flash", srv.URL)
		got, err := f.IsGenuineEvent(context.Background(), "free lunch", "a@b.edu", "")
		if !got {
			t.Error("IsGenuineEvent = false on provider error, want fail-open true")
		}
		if err == nil {
			t.Error("expected diagnostic error alongside fail-open verdict")
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		f := New("test-key", "gemini-1.5-flash", srv.URL)
		got, _ := f.IsGenuineEvent(context.Background(), "free lunch", "a@b.edu", "")
		if !got {
			t.Error("IsGenuineEvent = false on rate limit, want fail-open true")
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // closed before use

		f := New("bad-key", "gemini-1.5-flash", srv.URL)
		got, err := f.IsGenuineEvent(context.Background(), "free lunch", "a@b.edu", "")
		if !got {
			t.Error("IsGenuineEvent = false on transport error, want fail-open true")
		}
		if err == nil {
			t.Error("expected diagnostic error")
		}
	})

	t.Run("malformed response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		f := New("test-key", "gemini-1.5-flash", srv.URL)
		got, _ := f.IsGenuineEvent(context.Background(), "free lunch", "a@b.edu", "")
		if !got {
			t.Error("IsGenuineEvent = false on parse error, want fail-open true")
		}
	})
}

// TestPrompt_Content verifies sender, subject and a truncated body appear in
// the prompt.
func TestPrompt_Content(t *testing.T) {
	var prompt string
	srv := fakeModel(t, "YES", &prompt)
	defer srv.Close()

	longBody := strings.Repeat("pizza ", 400) // > 800 chars
	f := New("test-key", "gemini-1.5-flash", srv.URL)
	if _, err := f.IsGenuineEvent(context.Background(), longBody, "host@org.edu", "Coffee Social"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(prompt, "host@org.edu") {
		t.Error("prompt missing sender")
	}
	if !strings.Contains(prompt, "Subject: Coffee Social") {
		t.Error("prompt missing subject")
	}
	if strings.Contains(prompt, longBody) {
		t.Error("prompt contains untruncated body")
	}
	if !strings.Contains(prompt, "Coffee Social\" = YES") {
		t.Error("prompt missing positive exemplars")
	}
	if !strings.Contains(prompt, "Bring your own lunch") {
		t.Error("prompt missing negative exemplar")
	}
}

// TestClassifySender covers the one-word classifier and its unknown default.
func TestClassifySender(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{"internal", "internal"},
		{"MARKETING", "marketing"},
		{"external_trusted", "external_trusted"},
		{"no idea", "unknown"},
	}

	for _, tt := range tests {
		srv := fakeModel(t, tt.reply, nil)
		f := New("k", "m", srv.URL)
		if got := f.ClassifySender(context.Background(), "x@y.com"); got != tt.want {
			t.Errorf("ClassifySender(%q reply) = %q, want %q", tt.reply, got, tt.want)
		}
		srv.Close()
	}

	t.Run("error yields unknown", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}))
		defer srv.Close()

		f := New("k", "m", srv.URL)
		if got := f.ClassifySender(context.Background(), "x@y.com"); got != "unknown" {
			t.Errorf("ClassifySender on error = %q, want unknown", got)
		}
	})
}
