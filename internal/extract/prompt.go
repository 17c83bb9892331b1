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
	"fmt"
	"strings"
	"time"
)

// bodyLimit caps how much email text goes into the prompt.
const bodyLimit = 3000

// buildPrompt constructs the structured-extraction prompt. The reference
// date anchors relative-date resolution ("tomorrow", "next Monday"); the
// subject, when present, is preferred over body text for event names.
func buildPrompt(body, subject string, today time.Time) string {
	todayStr := today.Format("2006-01-02")
	dayName := today.Weekday().String()
	tomorrow := today.AddDate(0, 0, 1).Format("2006-01-02")
	nextMonday := nextWeekday(today, time.Monday).Format("2006-01-02")

	if len(body) > bodyLimit {
		body = body[:bodyLimit]
	}

	var b strings.Builder

	fmt.Fprintf(&b, `You are an AI assistant specialized in extracting event information from emails.

CONTEXT:
- Today is %s (%s)
- You're looking for events that mention FREE FOOD, catering, or meals provided
`, todayStr, dayName)

	if subject != "" {
		fmt.Fprintf(&b, "\nEMAIL SUBJECT: %s\n(Prefer the subject line over body text when naming events.)\n", subject)
	}

	fmt.Fprintf(&b, "\nEMAIL TO ANALYZE:\n```\n%s\n```\n", body)

	fmt.Fprintf(&b, `
TASK:
Extract ALL events where food is provided. Return ONLY valid JSON.

OUTPUT FORMAT:
{
  "has_food_event": true,
  "events": [
    {
      "event_name": "Weekly Team Standup",
      "date": "%s",
      "time": "14:00",
      "end_time": "15:00",
      "location": "Conference Room A",
      "food_type": "pizza",
      "confidence": 0.95,
      "reasoning": "Email explicitly states 'pizza will be provided at 2pm in Conf Room A'"
    }
  ]
}

EXTRACTION RULES:

1. DATE PARSING (convert relative to absolute):
   - "tomorrow" = %s
   - "next Monday" = %s
   - "this Friday" = calculate from %s
   - "Nov 15" = assume the current year if not specified

2. TIME PARSING (convert to 24-hour HH:MM):
   - "2pm" = "14:00"
   - "noon" = "12:00"
   - If end_time is not mentioned, add 1 hour to the start

3. FOOD TYPE CLASSIFICATION:
   - Extract specific: pizza, tacos, sandwiches, breakfast, lunch, dinner, snacks, coffee, donuts, bbq
   - Generic fallback: "catering" or "food"

4. CONFIDENCE SCORING:
   - 0.9-1.0: explicit food mention + complete details (date, time, location)
   - 0.7-0.9: clear food mention + most details
   - 0.5-0.7: implied food or missing some details
   - below 0.5: don't include (too uncertain)

5. REASONING: include a brief quote from the email justifying the extraction.

6. If NO food events found: {"has_food_event": false, "events": []}

7. For missing info, use "unknown" (not null or empty string).

8. ONLY extract events with food. Ignore events without food, "bring your own lunch", past events, and cancelled events.

Return ONLY the JSON object, no markdown formatting or extra text.`, tomorrow, tomorrow, nextMonday, todayStr)

	return b.String()
}

// nextWeekday returns the next occurrence of the given weekday strictly
// after t.
func nextWeekday(t time.Time, day time.Weekday) time.Time {
	days := (int(day) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return t.AddDate(0, 0, days)
}
