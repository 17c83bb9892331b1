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

package mailbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const listResponse = `{
	"value": [
		{
			"id": "msg-1",
			"subject": "Free Pizza Friday",
			"receivedDateTime": "2026-03-04T15:04:05Z",
			"bodyPreview": "Join us for pizza",
			"from": {"emailAddress": {"name": "CS Events", "address": "Events@University.EDU"}}
		},
		{
			"id": "msg-2",
			"subject": "Lab meeting",
			"receivedDateTime": "2026-03-03T09:00:00Z",
			"from": {"emailAddress": {"name": "Prof", "address": "prof@university.edu"}}
		}
	]
}`

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return &Client{
		httpClient: srv.Client(),
		baseURL:    srv.URL,
		userID:     "scanner@university.edu",
	}, srv
}

func TestSearch(t *testing.T) {
	var gotSearch string
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSearch = r.URL.Query().Get("$search")
		if r.Header.Get("ConsistencyLevel") != "eventual" {
			t.Error("search request missing ConsistencyLevel header")
		}
		w.Write([]byte(listResponse))
	}))
	defer srv.Close()

	got, err := c.Search(context.Background(), "free food", 25)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotSearch != `"free food"` {
		t.Errorf("search term = %q, want quoted query", gotSearch)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if got[0].ID != "msg-1" || got[0].Sender != "events@university.edu" {
		t.Errorf("unexpected first summary %+v", got[0])
	}
	if got[0].ReceivedAt.IsZero() {
		t.Error("received time not parsed")
	}
}

func TestSearch_FallsBackToDateFilter(t *testing.T) {
	var paths []string
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RawQuery)
		if r.URL.Query().Get("$search") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("$filter") == "" {
			t.Error("fallback request missing $filter")
		}
		if r.URL.Query().Get("$orderby") != "receivedDateTime desc" {
			t.Errorf("fallback $orderby = %q", r.URL.Query().Get("$orderby"))
		}
		w.Write([]byte(listResponse))
	}))
	defer srv.Close()

	got, err := c.Search(context.Background(), "free food", 25)
	if err != nil {
		t.Fatalf("search with fallback: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected search then fallback, got %d requests", len(paths))
	}
	if len(got) != 2 {
		t.Errorf("fallback should return results, got %d", len(got))
	}
}

func TestSearch_ServerError(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := c.Search(context.Background(), "free food", 25); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}

func TestFetchBody_PlainText(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/messages/msg-1") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Prefer") != `outlook.body-content-type="text"` {
			t.Error("missing Prefer header")
		}
		w.Write([]byte(`{"id": "msg-1", "body": {"contentType": "text", "content": "Pizza at noon in Room 101"}}`))
	}))
	defer srv.Close()

	body, err := c.FetchBody(context.Background(), "msg-1")
	if err != nil {
		t.Fatalf("fetch body: %v", err)
	}
	if body != "Pizza at noon in Room 101" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestFetchBody_StripsHTML(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "msg-1", "body": {"contentType": "html",
			"content": "<html><style>p{color:red}</style><p>Free pizza!</p><p>Friday at <b>noon</b> &amp; after</p></html>"}}`))
	}))
	defer srv.Close()

	body, err := c.FetchBody(context.Background(), "msg-1")
	if err != nil {
		t.Fatalf("fetch body: %v", err)
	}
	if strings.Contains(body, "<") || strings.Contains(body, "color:red") {
		t.Errorf("HTML not stripped: %q", body)
	}
	if !strings.Contains(body, "Free pizza!") || !strings.Contains(body, "noon & after") {
		t.Errorf("text content lost: %q", body)
	}
}

func TestFetchBody_NotFound(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	body, err := c.FetchBody(context.Background(), "gone")
	if err != nil {
		t.Fatalf("deleted message should not error: %v", err)
	}
	if body != "" {
		t.Errorf("deleted message should have empty body, got %q", body)
	}
}

func TestStripHTML_Newlines(t *testing.T) {
	in := "<div>When: Friday</div><div>Where: Lobby</div><br>RSVP now"
	out := stripHTML(in)
	lines := strings.Split(out, "\n")
	if len(lines) < 3 {
		t.Fatalf("block tags should produce line breaks, got %q", out)
	}
	if strings.TrimSpace(lines[0]) != "When: Friday" {
		t.Errorf("unexpected first line %q", lines[0])
	}
}
