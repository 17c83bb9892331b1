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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
}

const minimalConfig = `
mailbox:
  tenant_id: tenant-1
  client_id: client-1
  client_secret: secret-1
  user_id: scanner@university.edu
`

func TestLoad_Defaults(t *testing.T) {
	writeConfig(t, minimalConfig)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Scanner.DailyBudget != 15 {
		t.Errorf("daily budget default = %d", cfg.Scanner.DailyBudget)
	}
	if cfg.Scanner.MinConfidence != 0.7 {
		t.Errorf("min confidence default = %v", cfg.Scanner.MinConfidence)
	}
	if cfg.Scanner.HeuristicThreshold != 0.3 {
		t.Errorf("heuristic threshold default = %v", cfg.Scanner.HeuristicThreshold)
	}
	if cfg.Scanner.RateLimitInterval != 6*time.Second {
		t.Errorf("rate limit default = %v", cfg.Scanner.RateLimitInterval)
	}
	if cfg.Scanner.ScanInterval != 6*time.Hour {
		t.Errorf("scan interval default = %v", cfg.Scanner.ScanInterval)
	}
	if cfg.Semantic.Model != "gemini-1.5-flash" || cfg.Extraction.Model != "command-r" {
		t.Errorf("model defaults = %q / %q", cfg.Semantic.Model, cfg.Extraction.Model)
	}
	if cfg.Calendar.CalendarID != "primary" {
		t.Errorf("calendar default = %q", cfg.Calendar.CalendarID)
	}
	if len(cfg.Scanner.ReprocessKeywords) != 0 {
		t.Error("reprocess keywords must default to empty")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_CLIENT_SECRET", "expanded-secret")
	writeConfig(t, `
mailbox:
  tenant_id: tenant-1
  client_id: client-1
  client_secret: ${TEST_CLIENT_SECRET}
  user_id: scanner@university.edu
scanner:
  daily_budget: 5
  min_confidence: 0.9
  scan_interval: 30m
  reprocess_keywords: [coffee social]
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mailbox.ClientSecret != "expanded-secret" {
		t.Errorf("secret not expanded: %q", cfg.Mailbox.ClientSecret)
	}
	if cfg.Scanner.DailyBudget != 5 || cfg.Scanner.MinConfidence != 0.9 {
		t.Errorf("yaml overrides not applied: %+v", cfg.Scanner)
	}
	if cfg.Scanner.ScanInterval != 30*time.Minute {
		t.Errorf("scan interval = %v", cfg.Scanner.ScanInterval)
	}
	if len(cfg.Scanner.ReprocessKeywords) != 1 || cfg.Scanner.ReprocessKeywords[0] != "coffee social" {
		t.Errorf("reprocess keywords = %v", cfg.Scanner.ReprocessKeywords)
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	writeConfig(t, `
mailbox:
  tenant_id: tenant-1
`)
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing mailbox credentials")
	}
}
