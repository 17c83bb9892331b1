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

// Package mailbox provides the Microsoft Graph client used to search a
// mailbox and fetch message bodies.
package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"

	"github.com/bcem/foodscan/internal/config"
	"github.com/bcem/foodscan/internal/models"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// searchLookback bounds the $filter fallback when $search is unavailable.
const searchLookback = 7 * 24 * time.Hour

// Client searches and reads a single mailbox via the Graph API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userID     string
}

// NewClient builds a mailbox client with app-only client credentials.
func NewClient(ctx context.Context, cfg config.MailboxConfig) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     microsoft.AzureADEndpoint(cfg.TenantID).TokenURL,
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	httpClient := cc.Client(ctx)
	httpClient.Timeout = 20 * time.Second

	return &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		userID:     cfg.UserID,
	}
}

// Search finds recent messages matching the query, newest first. When the
// mailbox rejects $search, it falls back to a date-window $filter so a scan
// still sees recent mail.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]models.EmailSummary, error) {
	u := fmt.Sprintf("%s/users/%s/messages?$search=%s&$top=%d&$select=%s",
		c.baseURL, url.PathEscape(c.userID),
		url.QueryEscape(fmt.Sprintf("%q", query)),
		maxResults, summaryFields)

	summaries, status, err := c.listMessages(ctx, u, true)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return summaries, nil
	case http.StatusBadRequest, http.StatusNotFound, http.StatusMethodNotAllowed:
		slog.Warn("mailbox search unavailable, falling back to date filter", "status", status)
		return c.searchByDate(ctx, maxResults)
	default:
		return nil, fmt.Errorf("graph search returned HTTP %d", status)
	}
}

// searchByDate lists messages received within the lookback window.
func (c *Client) searchByDate(ctx context.Context, maxResults int) ([]models.EmailSummary, error) {
	since := time.Now().UTC().Add(-searchLookback).Format(time.RFC3339)
	q := url.Values{}
	q.Set("$filter", "receivedDateTime ge "+since)
	q.Set("$orderby", "receivedDateTime desc")
	q.Set("$top", strconv.Itoa(maxResults))
	q.Set("$select", summaryFields)
	u := fmt.Sprintf("%s/users/%s/messages?%s",
		c.baseURL, url.PathEscape(c.userID), q.Encode())

	summaries, status, err := c.listMessages(ctx, u, false)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("graph filter returned HTTP %d", status)
	}
	return summaries, nil
}

func (c *Client) listMessages(ctx context.Context, u string, search bool) ([]models.EmailSummary, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if search {
		// $search requires eventual consistency semantics.
		req.Header.Set("ConsistencyLevel", "eventual")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	summaries, err := parseMessageList(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("parse message list: %w", err)
	}
	return summaries, resp.StatusCode, nil
}

// FetchBody retrieves the plain-text body of one message. HTML bodies are
// stripped to text when the mailbox ignores the content-type preference.
// A deleted message returns an empty body and no error.
func (c *Client) FetchBody(ctx context.Context, messageID string) (string, error) {
	u := fmt.Sprintf("%s/users/%s/messages/%s?$select=id,body",
		c.baseURL, url.PathEscape(c.userID), url.PathEscape(messageID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "outlook.body-content-type=\"text\"")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Warn("message not found (may have been deleted)", "message_id", messageID)
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("graph API returned HTTP %d for message %s", resp.StatusCode, messageID)
	}

	body, err := parseMessageBody(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse message body: %w", err)
	}
	return body, nil
}
