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

// Package config loads configuration from config.yaml and environment
// variables into a single object that is passed into each component at
// construction time. No component reads ambient environment state directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MailboxConfig holds credentials for the Microsoft Graph mailbox source.
type MailboxConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserID       string `yaml:"user_id"`
}

// ProviderConfig holds credentials for one language-model provider.
type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// Endpoint overrides the provider base URL; used by tests.
	Endpoint string `yaml:"endpoint"`
}

// CalendarConfig holds the Google Calendar sink settings.
type CalendarConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	CalendarID      string `yaml:"calendar_id"`
	Timezone        string `yaml:"timezone"`
}

// ScannerConfig holds the pipeline knobs.
type ScannerConfig struct {
	SearchQuery        string
	MaxEmailsPerScan   int
	ScanInterval       time.Duration
	DailyBudget        int
	MinConfidence      float64
	HeuristicThreshold float64
	OrgDomain          string
	RateLimitInterval  time.Duration
	// ReprocessKeywords re-admits previously semantic-rejected emails whose
	// subject contains one of these keywords. Empty (the default) disables
	// the carve-out.
	ReprocessKeywords []string
}

// Config holds all configuration for the scanner service.
type Config struct {
	Mailbox    MailboxConfig
	Semantic   ProviderConfig
	Extraction ProviderConfig
	Calendar   CalendarConfig
	Scanner    ScannerConfig

	DatabaseURL string
	RedisURL    string
	EventsQueue string
	Port        int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Mailbox    MailboxConfig  `yaml:"mailbox"`
	Semantic   ProviderConfig `yaml:"semantic"`
	Extraction ProviderConfig `yaml:"extraction"`
	Calendar   CalendarConfig `yaml:"calendar"`
	Scanner    struct {
		SearchQuery        string   `yaml:"search_query"`
		MaxEmailsPerScan   int      `yaml:"max_emails_per_scan"`
		ScanInterval       string   `yaml:"scan_interval"`
		DailyBudget        int      `yaml:"daily_budget"`
		MinConfidence      *float64 `yaml:"min_confidence"`
		HeuristicThreshold *float64 `yaml:"heuristic_threshold"`
		OrgDomain          string   `yaml:"org_domain"`
		RateLimitInterval  string   `yaml:"rate_limit_interval"`
		ReprocessKeywords  []string `yaml:"reprocess_keywords"`
	} `yaml:"scanner"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Events string `yaml:"events"`
		} `yaml:"queues"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		Mailbox:    raw.Mailbox,
		Semantic:   raw.Semantic,
		Extraction: raw.Extraction,
		Calendar:   raw.Calendar,
		Scanner: ScannerConfig{
			SearchQuery: firstNonEmpty(raw.Scanner.SearchQuery,
				envOrDefault("SEARCH_QUERY", "food OR pizza OR lunch OR breakfast OR snacks OR catering")),
			MaxEmailsPerScan:   intOrDefault(raw.Scanner.MaxEmailsPerScan, envOrDefaultInt("MAX_EMAILS_PER_SCAN", 50)),
			ScanInterval:       durationOrDefault(raw.Scanner.ScanInterval, envOrDefaultDuration("SCAN_INTERVAL", 6*time.Hour)),
			DailyBudget:        intOrDefault(raw.Scanner.DailyBudget, envOrDefaultInt("DAILY_EXTRACTION_BUDGET", 15)),
			MinConfidence:      floatOrDefault(raw.Scanner.MinConfidence, 0.7),
			HeuristicThreshold: floatOrDefault(raw.Scanner.HeuristicThreshold, 0.3),
			OrgDomain:          firstNonEmpty(raw.Scanner.OrgDomain, os.Getenv("ORG_DOMAIN")),
			RateLimitInterval:  durationOrDefault(raw.Scanner.RateLimitInterval, 6*time.Second),
			ReprocessKeywords:  raw.Scanner.ReprocessKeywords,
		},
		DatabaseURL: firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "postgres://localhost:5432/foodscan")),
		RedisURL:    firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		EventsQueue: firstNonEmpty(raw.Redis.Queues.Events, envOrDefault("EVENTS_QUEUE", "found-events")),
		Port:        envOrDefaultInt("PORT", 8080),
	}

	if cfg.Semantic.Model == "" {
		cfg.Semantic.Model = "gemini-1.5-flash"
	}
	if cfg.Extraction.Model == "" {
		cfg.Extraction.Model = "command-r"
	}
	if cfg.Calendar.CalendarID == "" {
		cfg.Calendar.CalendarID = "primary"
	}
	if cfg.Calendar.Timezone == "" {
		cfg.Calendar.Timezone = "America/New_York"
	}

	if cfg.Mailbox.TenantID == "" || cfg.Mailbox.ClientID == "" || cfg.Mailbox.ClientSecret == "" {
		return nil, fmt.Errorf("mailbox credentials are not configured, check config.yaml and environment variables")
	}
	if cfg.Mailbox.UserID == "" {
		return nil, fmt.Errorf("mailbox user_id is required")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOrDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func floatOrDefault(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func durationOrDefault(v string, fallback time.Duration) time.Duration {
	if v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
