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
	"encoding/json"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/bcem/foodscan/internal/models"
)

const summaryFields = "id,subject,from,receivedDateTime,bodyPreview"

// graphMessage mirrors the Graph API message shape for the fields we read.
type graphMessage struct {
	ID               string `json:"id"`
	Subject          string `json:"subject"`
	ReceivedDateTime string `json:"receivedDateTime"`
	BodyPreview      string `json:"bodyPreview"`
	From             struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

type graphMessageList struct {
	Value []graphMessage `json:"value"`
}

// parseMessageList converts a Graph list response into email summaries.
func parseMessageList(r io.Reader) ([]models.EmailSummary, error) {
	var list graphMessageList
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode message list: %w", err)
	}

	summaries := make([]models.EmailSummary, 0, len(list.Value))
	for _, m := range list.Value {
		received, _ := time.Parse(time.RFC3339, m.ReceivedDateTime)
		summaries = append(summaries, models.EmailSummary{
			ID:         m.ID,
			Subject:    m.Subject,
			Sender:     strings.ToLower(m.From.EmailAddress.Address),
			SenderName: m.From.EmailAddress.Name,
			ReceivedAt: received,
			Preview:    m.BodyPreview,
		})
	}
	return summaries, nil
}

// parseMessageBody extracts the body text of a single message, stripping
// HTML when the mailbox returned it anyway.
func parseMessageBody(r io.Reader) (string, error) {
	var m graphMessage
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return "", fmt.Errorf("decode message: %w", err)
	}
	if strings.EqualFold(m.Body.ContentType, "html") {
		return stripHTML(m.Body.Content), nil
	}
	return m.Body.Content, nil
}

var (
	scriptBlocks = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	blockBreaks  = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</tr>|</li>`)
	htmlTags     = regexp.MustCompile(`(?s)<[^>]+>`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
)

// stripHTML reduces an HTML body to readable plain text. Block-level tags
// become newlines so dates and locations stay on separate lines.
func stripHTML(s string) string {
	s = scriptBlocks.ReplaceAllString(s, "")
	s = blockBreaks.ReplaceAllString(s, "\n")
	s = htmlTags.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = spaceRuns.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
