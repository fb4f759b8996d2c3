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

package gantry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	internalfsm "github.com/united-manufacturing-hub/gantry-core/internal/fsm"
	"github.com/united-manufacturing-hub/gantry-core/pkg/metrics"
	"github.com/united-manufacturing-hub/gantry-core/pkg/sentry"
)

// Action is the body of a task spawned on state entry.
type Action func(ctx context.Context) error

// Task is the handle of one spawned action.
type Task struct {
	ID uuid.UUID
	// State is the state whose entry spawned the task.
	State string
	// Trigger is the event the task fires when it succeeds and no home request is pending.
	Trigger   string
	StartedAt time.Time

	done chan struct{}
	err  error
}

// Done is closed once the action returned and its follow-up event was sent.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the error of the action. Only valid after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// spawn runs action in its own goroutine. All state entry actions go
// through here: on success the task advances the machine, on error or
// panic it escalates to the fault state.
func (g *GantryInstance) spawn(state, trigger string, action Action) *Task {
	task := &Task{
		ID:        uuid.New(),
		State:     state,
		Trigger:   trigger,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	g.trackTask(task)

	go func() {
		err := g.runAction(task, action)

		switch {
		case err == nil:
			g.advance(task)
		case g.ctx.Err() != nil && errors.Is(err, context.Canceled):
			g.logger.Debugw("Action cancelled on shutdown", "task", task.ID.String(), "state", task.State)
		default:
			g.escalate(task, err)
		}

		task.err = err
		close(task.done)
		g.untrackTask()
	}()

	return task
}

func (g *GantryInstance) runAction(task *Task, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action of state %s panicked: %v", task.State, r)
			// The error is reported by escalate, only the stack is logged here
			g.logger.Debugw("Action panicked",
				"task", task.ID.String(),
				"state", task.State,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()))
		}
		metrics.ObserveActionTime(g.cfg.ID, task.State, time.Since(task.StartedAt))
	}()

	return action(g.ctx)
}

// advance fires the follow-up event of a finished task. A pending home
// request replaces the natural trigger and is consumed by the entry action of
// home.moving, which runs again when the task itself was the home move.
func (g *GantryInstance) advance(task *Task) {
	g.mu.Lock()
	defer g.mu.Unlock()

	trigger := task.Trigger
	if g.homeRequested {
		trigger = EventHome
	}

	var err error
	if trigger == EventHome && g.baseFSMInstance.GetCurrentFSMState() == StateHomeMoving {
		// The home position may have changed while moving, so move home again.
		err = g.baseFSMInstance.ReenterState(g.ctx, EventHome)
	} else {
		err = g.baseFSMInstance.SendEvent(g.ctx, trigger)
	}
	if err == nil || internalfsm.IsNoTransitionError(err) {
		return
	}
	if g.ctx.Err() != nil {
		return
	}
	g.escalateLocked(task, fmt.Errorf("failed to send %s after %s: %w", trigger, task.State, err))
}

func (g *GantryInstance) escalate(task *Task, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.escalateLocked(task, err)
}

// escalateLocked moves the controller into the fault state. mu must be held.
func (g *GantryInstance) escalateLocked(task *Task, err error) {
	g.logger.Debugw("Escalating failed task", "task", task.ID.String())

	metrics.IncFaultCount(g.cfg.ID, task.State)
	metrics.IncErrorCount(metrics.ComponentGantryInstance, g.cfg.ID)
	sentry.ReportFSMError(g.logger, g.cfg.ID, task.State, task.Trigger,
		fmt.Errorf("action failed, entering fault state: %w", err))

	if sendErr := g.baseFSMInstance.SendEvent(g.ctx, EventToFault); sendErr != nil && !internalfsm.IsNoTransitionError(sendErr) {
		g.logger.Errorw("Failed to enter fault state", "error", sendErr)
	}
}

func (g *GantryInstance) trackTask(task *Task) {
	g.tasksMu.Lock()
	defer g.tasksMu.Unlock()
	if g.inFlight == 0 {
		g.idle = make(chan struct{})
	}
	g.inFlight++
	g.currentTask = task
}

func (g *GantryInstance) untrackTask() {
	g.tasksMu.Lock()
	defer g.tasksMu.Unlock()
	g.inFlight--
	if g.inFlight == 0 {
		close(g.idle)
	}
}

// CurrentTask returns the most recently spawned task, or nil.
func (g *GantryInstance) CurrentTask() *Task {
	g.tasksMu.Lock()
	defer g.tasksMu.Unlock()
	return g.currentTask
}

// InFlightSince returns when the running task started, if one is running.
func (g *GantryInstance) InFlightSince() (time.Time, bool) {
	g.tasksMu.Lock()
	defer g.tasksMu.Unlock()
	if g.inFlight == 0 || g.currentTask == nil {
		return time.Time{}, false
	}
	return g.currentTask.StartedAt, true
}

// Wait blocks until no task is in flight, i.e. the controller came to rest
// in an idle state or in fault.
func (g *GantryInstance) Wait(ctx context.Context) error {
	g.tasksMu.Lock()
	idle := g.idle
	g.tasksMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
