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

package scan

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs scans on a fixed interval until stopped.
type Scheduler struct {
	scanner  *Scanner
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler around the given scanner.
func NewScheduler(scanner *Scanner, interval time.Duration) *Scheduler {
	return &Scheduler{
		scanner:  scanner,
		interval: interval,
	}
}

// Start launches the periodic scan loop. One scan runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		slog.Info("scan scheduler started", "interval", s.interval)
		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("scan scheduler stopping")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.scanner.Run(ctx); err != nil {
		if errors.Is(err, ErrScanInProgress) {
			slog.Warn("skipping scheduled scan, previous scan still running")
			return
		}
		slog.Error("scheduled scan failed", "error", err)
	}
}

// Stop cancels the loop and waits for an in-flight scan to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
