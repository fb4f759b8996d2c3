// Copyright 2025 UMH Systems GmbH
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

package stallchecker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/gantry-core/pkg/logger"
	"github.com/united-manufacturing-hub/gantry-core/pkg/metrics"
	"github.com/united-manufacturing-hub/gantry-core/pkg/sentry"
)

// ProgressFunc returns the last time the gantry position changed.
type ProgressFunc func() time.Time

// InFlightFunc returns when the running action started, and whether one is running.
type InFlightFunc func() (time.Time, bool)

// StallChecker watches for actions that run without the gantry moving.
//
// A motion that never converges is not an error for the controller: the
// action keeps running until the target is reached or the controller is
// closed. The checker makes that situation visible. It only warns, it never
// cancels the action or moves the controller into fault.
type StallChecker struct {
	progress ProgressFunc
	inFlight InFlightFunc
	logger   *zap.SugaredLogger

	ctx    context.Context //nolint:containedctx // background service lifecycle
	cancel context.CancelFunc
	wg     sync.WaitGroup

	threshold time.Duration
	interval  time.Duration

	mutex     sync.RWMutex
	lastStall time.Duration
}

// NewStallChecker creates a checker and starts its background loop.
// It must be stopped with Stop.
func NewStallChecker(progress ProgressFunc, inFlight InFlightFunc, threshold, interval time.Duration) *StallChecker {
	ctx, cancel := context.WithCancel(context.Background())
	checker := &StallChecker{
		progress:  progress,
		inFlight:  inFlight,
		logger:    logger.For(logger.ComponentStallChecker),
		ctx:       ctx,
		cancel:    cancel,
		threshold: threshold,
		interval:  interval,
	}

	metrics.InitErrorCounter(metrics.ComponentStallChecker, "gantry")

	checker.wg.Add(1)
	go checker.checkLoop()

	checker.logger.Infof("Stall checker created with threshold %s", threshold)

	return checker
}

func (s *StallChecker) checkLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if stalled, ok := s.Check(now); ok {
				metrics.AddStallTime(s.interval.Seconds())
				sentry.ReportIssuef(sentry.IssueTypeWarning, s.logger,
					"[StallChecker.checkLoop] Action in flight without positional progress for %.2f seconds", stalled.Seconds())
			}
		}
	}
}

// Check reports how long the running action has gone without progress, and
// whether that exceeds the threshold. The stall is measured from whichever
// came last: the action start or the last position change.
func (s *StallChecker) Check(now time.Time) (time.Duration, bool) {
	startedAt, running := s.inFlight()
	if !running {
		s.setLastStall(0)
		return 0, false
	}

	since := s.progress()
	if startedAt.After(since) {
		since = startedAt
	}

	stalled := now.Sub(since)
	if stalled <= s.threshold {
		s.setLastStall(0)
		return stalled, false
	}
	s.setLastStall(stalled)
	return stalled, true
}

// LastStall returns the stall duration seen by the most recent check, or 0.
func (s *StallChecker) LastStall() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastStall
}

func (s *StallChecker) setLastStall(d time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastStall = d
}

// Stop terminates the background loop. It is safe to call more than once.
func (s *StallChecker) Stop() {
	s.logger.Info("Stopping stall checker")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Stall checker stopped")
}
