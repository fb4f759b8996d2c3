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

package fsm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
)

// TransitionObserver is notified after every successful transition.
type TransitionObserver func(from, to, event string)

// BaseFSMInstance implements the shared logic for all FSM-based controllers.
// Concrete machines (e.g. the gantry sequence controller) embed or wrap this
// and register their entry actions with AddCallback.
type BaseFSMInstance struct {
	cfg BaseFSMInstanceConfig

	// fsm is the finite state machine that manages instance state
	fsm *fsm.FSM

	// Registered "enter_<state>" callbacks. They run synchronously inside SendEvent.
	callbacks map[string]fsm.Callback

	observersMu sync.RWMutex
	observers   []TransitionObserver

	// logger is the logger for the FSM
	logger *zap.SugaredLogger
}

// BaseFSMInstanceConfig holds parameters for setting up the base FSM.
type BaseFSMInstanceConfig struct {
	ID string

	// OperationalStates lists every state besides the lifecycle states.
	// It is used to expand AnyState sources.
	OperationalStates []string

	// OperationalTransitions are the transitions that are allowed in the operational states.
	// A transition whose only source is AnyState is allowed from every state.
	OperationalTransitions []fsm.EventDesc
}

// NewBaseFSMInstance sets up a new FSM in LifecycleStateReady with the fault
// lifecycle transitions plus your operational transitions.
func NewBaseFSMInstance(cfg BaseFSMInstanceConfig, logger *zap.SugaredLogger) *BaseFSMInstance {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	baseInstance := &BaseFSMInstance{
		cfg:       cfg,
		callbacks: make(map[string]fsm.Callback),
		logger:    logger,
	}

	events := []fsm.EventDesc{
		{Name: LifecycleEventToFault, Src: []string{AnyState}, Dst: LifecycleStateFault},
		{Name: LifecycleEventReset, Src: []string{LifecycleStateFault}, Dst: LifecycleStateReady},
	}
	events = append(events, cfg.OperationalTransitions...)

	baseInstance.fsm = fsm.NewFSM(
		LifecycleStateReady,
		baseInstance.expandSources(events),
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				baseInstance.notifyObservers(e.Src, e.Dst, e.Event)

				// Call registered callback for this state if exists
				if cb, ok := baseInstance.callbacks["enter_"+e.Dst]; ok {
					cb(ctx, e)
				}
			},
		},
	)

	baseInstance.AddCallback("enter_"+LifecycleStateFault, func(ctx context.Context, e *fsm.Event) {
		baseInstance.logger.Debugf("Entering fault state for FSM %s", baseInstance.cfg.ID)
	})

	baseInstance.AddCallback("enter_"+LifecycleStateReady, func(ctx context.Context, e *fsm.Event) {
		baseInstance.logger.Debugf("Entering ready state for FSM %s", baseInstance.cfg.ID)
	})

	return baseInstance
}

// AllStates returns the lifecycle states followed by the operational states.
func (s *BaseFSMInstance) AllStates() []string {
	states := []string{LifecycleStateReady, LifecycleStateFault}
	for _, state := range s.cfg.OperationalStates {
		if !slices.Contains(states, state) {
			states = append(states, state)
		}
	}
	return states
}

// expandSources replaces AnyState with the full list of states.
func (s *BaseFSMInstance) expandSources(events []fsm.EventDesc) fsm.Events {
	all := s.AllStates()
	expanded := make(fsm.Events, 0, len(events))
	for _, e := range events {
		if slices.Contains(e.Src, AnyState) {
			e.Src = all
		}
		expanded = append(expanded, e)
	}
	return expanded
}

// AddCallback adds a callback for a given event name, e.g. "enter_" + state.
// Callbacks must be registered before the first event is sent.
func (s *BaseFSMInstance) AddCallback(eventName string, callback fsm.Callback) {
	s.callbacks[eventName] = callback
}

// AddTransitionObserver registers fn to be called after every transition.
// Observers run synchronously inside SendEvent and must not send events themselves.
func (s *BaseFSMInstance) AddTransitionObserver(fn TransitionObserver) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *BaseFSMInstance) notifyObservers(from, to, event string) {
	s.observersMu.RLock()
	observers := slices.Clone(s.observers)
	s.observersMu.RUnlock()

	for _, fn := range observers {
		fn(from, to, event)
	}
}

// GetCurrentFSMState returns the current state of the FSM. It never waits for
// a running entry action.
func (s *BaseFSMInstance) GetCurrentFSMState() string {
	return s.fsm.Current()
}

// SetCurrentFSMState sets the current state of the FSM without running any callbacks.
// This should only be called in tests
func (s *BaseFSMInstance) SetCurrentFSMState(state string) {
	s.fsm.SetState(state)
}

// Can reports whether eventName is allowed in the current state.
func (s *BaseFSMInstance) Can(eventName string) bool {
	return s.fsm.Can(eventName)
}

// SendEvent sends an event to the FSM.
//
// Events are refused when ctx is already cancelled or has less than
// constants.ExpectedMaxP95ExecutionTimePerEvent left: a context expiring in
// the middle of a transition would leave looplab/fsm stuck "in transition".
func (s *BaseFSMInstance) SendEvent(ctx context.Context, eventName string, args ...interface{}) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < constants.ExpectedMaxP95ExecutionTimePerEvent {
			return fmt.Errorf("context deadline exceeded")
		}
	}

	return s.fsm.Event(ctx, eventName, args...)
}

// ReenterState handles event as a self transition of the current state:
// observers see (state, state, event) and the entry callback of the state
// runs again. looplab/fsm itself answers a self transition with
// NoTransitionError and calls nothing.
func (s *BaseFSMInstance) ReenterState(ctx context.Context, event string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	state := s.fsm.Current()
	if !s.fsm.Can(event) {
		return fsm.InvalidEventError{Event: event, State: state}
	}

	s.notifyObservers(state, state, event)
	if cb, ok := s.callbacks["enter_"+state]; ok {
		cb(ctx, &fsm.Event{FSM: s.fsm, Event: event, Src: state, Dst: state})
	}
	return nil
}

func (s *BaseFSMInstance) GetID() string {
	return s.cfg.ID
}

func (s *BaseFSMInstance) GetLogger() *zap.SugaredLogger {
	return s.logger
}

// IsFault returns true if the instance is in the fault state
func (s *BaseFSMInstance) IsFault() bool {
	return s.fsm.Current() == LifecycleStateFault
}

// IsNoTransitionError reports whether err only says that the event did not change the state.
func IsNoTransitionError(err error) bool {
	var noTransition fsm.NoTransitionError
	return errors.As(err, &noTransition)
}

// IsInvalidEventError reports whether err says the event is not allowed in the current state.
func IsInvalidEventError(err error) bool {
	var invalid fsm.InvalidEventError
	return errors.As(err, &invalid)
}
