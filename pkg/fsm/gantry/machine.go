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

// Package gantry implements the pick-and-place sequence controller.
//
// Every working state spawns exactly one action on entry. When the action
// returns it fires the trigger that naturally follows, unless a home request
// arrived in the meantime, in which case it fires "home" instead. Any error
// raised inside an action moves the controller to the fault state.
package gantry

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	internalfsm "github.com/united-manufacturing-hub/gantry-core/internal/fsm"
	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"github.com/united-manufacturing-hub/gantry-core/pkg/logger"
	"github.com/united-manufacturing-hub/gantry-core/pkg/metrics"
	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
)

// Config configures a GantryInstance.
type Config struct {
	ID string
	// LiftingHeight is the z coordinate used while travelling above a table.
	LiftingHeight float64
	// Source and Destination are the initial pending targets.
	Source      models.CubeStartPosition
	Destination models.CubeDestinationPosition
}

// DefaultConfig returns a config with the table centers as targets.
func DefaultConfig() Config {
	return Config{
		ID:            "gantry",
		LiftingHeight: constants.LiftingHeightAboveTable,
		Source:        models.DefaultCubeStartPosition(),
		Destination:   models.DefaultCubeDestinationPosition(),
	}
}

// GantryInstance is the sequence controller of one gantry.
type GantryInstance struct {
	baseFSMInstance *internalfsm.BaseFSMInstance
	actuator        Actuator
	cfg             Config
	logger          *zap.SugaredLogger

	// ctx bounds every spawned action. It is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	// mu serializes every event sent to the state machine and guards homeRequested.
	// Entry callbacks run while it is held and must not take it.
	mu            sync.Mutex
	homeRequested bool

	targetsMu          sync.RWMutex
	nextSource         models.CubeStartPosition
	nextDestination    models.CubeDestinationPosition
	workingSource      models.CubeStartPosition
	workingDestination models.CubeDestinationPosition

	tasksMu     sync.Mutex
	currentTask *Task
	inFlight    int
	idle        chan struct{}
}

// NewGantryInstance creates a controller in the ready state.
func NewGantryInstance(act Actuator, cfg Config, log *zap.SugaredLogger) *GantryInstance {
	if cfg.ID == "" {
		cfg.ID = "gantry"
	}
	if log == nil {
		log = logger.For(logger.ComponentGantry)
	}

	baseCfg := internalfsm.BaseFSMInstanceConfig{
		ID:                cfg.ID,
		OperationalStates: OperationalStates,
		OperationalTransitions: []fsm.EventDesc{
			// Picking
			{Name: EventStart, Src: []string{StateReady, StateHomeHome, StateSequenceFinished}, Dst: StatePickingMoving},
			{Name: EventFinishedMovingAboveCube, Src: []string{StatePickingMoving}, Dst: StatePickingLowering},
			{Name: EventFinishedLoweringPickup, Src: []string{StatePickingLowering}, Dst: StatePickingClosing},

			// Transporting
			{Name: EventFinishedClosingGripper, Src: []string{StatePickingClosing}, Dst: StateTransportingLifting},
			{Name: EventFinishedLiftingCube, Src: []string{StateTransportingLifting}, Dst: StateTransportingMoving},

			// Placing
			{Name: EventFinishedMovingAboveDest, Src: []string{StateTransportingMoving}, Dst: StatePlacingLowering},
			{Name: EventFinishedLoweringPlace, Src: []string{StatePlacingLowering}, Dst: StatePlacingOpening},
			{Name: EventFinishedOpeningPlacement, Src: []string{StatePlacingOpening}, Dst: StatePlacingLifting},
			{Name: EventFinishedLiftingPlacement, Src: []string{StatePlacingLifting}, Dst: StateSequenceFinished},

			// Home branch, reachable from everywhere
			{Name: EventHome, Src: []string{internalfsm.AnyState}, Dst: StateHomeMoving},
			{Name: EventFinishedMovingToHome, Src: []string{StateHomeMoving}, Dst: StateHomeOpening},
			{Name: EventFinishedOpeningAtHome, Src: []string{StateHomeOpening}, Dst: StateHomeHome},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	instance := &GantryInstance{
		baseFSMInstance: internalfsm.NewBaseFSMInstance(baseCfg, log),
		actuator:        act,
		cfg:             cfg,
		logger:          log,
		ctx:             ctx,
		cancel:          cancel,
		nextSource:      cfg.Source,
		nextDestination: cfg.Destination,
		idle:            idle,
	}

	instance.registerCallbacks()
	instance.baseFSMInstance.AddTransitionObserver(func(from, to, event string) {
		instance.logger.Infof("%s: %s --> %s", event, from, to)
		metrics.RecordTransition(cfg.ID, from, to, event)
	})

	metrics.InitErrorCounter(metrics.ComponentGantryInstance, cfg.ID)
	metrics.SetCurrentState(cfg.ID, StateReady)

	return instance
}

// Start begins a new cycle. It fails with ErrConflict unless the controller is idle.
func (g *GantryInstance) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.baseFSMInstance.GetCurrentFSMState()
	if !IsIdleState(state) {
		return fmt.Errorf("%w: cannot start a new cycle in state %s", ErrConflict, state)
	}
	return g.baseFSMInstance.SendEvent(ctx, EventStart)
}

// RequestHome diverts the controller to the home branch. When idle this
// happens immediately. Otherwise the running action is left to finish and the
// diversion happens at the next state boundary.
func (g *GantryInstance) RequestHome(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.baseFSMInstance.GetCurrentFSMState()
	if IsIdleState(state) {
		metrics.IncHomeRequests("immediate")
		return g.baseFSMInstance.SendEvent(ctx, EventHome)
	}

	if !g.homeRequested {
		g.logger.Infof("Home requested in state %s, deferring until the current action finishes", state)
	}
	g.homeRequested = true
	metrics.IncHomeRequests("deferred")
	return nil
}

// Reset leaves the fault state. Pending home requests are dropped.
func (g *GantryInstance) Reset(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.baseFSMInstance.GetCurrentFSMState()
	if state != StateFault {
		return fmt.Errorf("%w: reset is only allowed in state %s, current state is %s", ErrConflict, StateFault, state)
	}
	g.homeRequested = false
	return g.baseFSMInstance.SendEvent(ctx, EventReset)
}

// GetCurrentState returns the current state of the FSM
func (g *GantryInstance) GetCurrentState() string {
	return g.baseFSMInstance.GetCurrentFSMState()
}

func (g *GantryInstance) IsIdle() bool {
	return IsIdleState(g.GetCurrentState())
}

func (g *GantryInstance) IsGripperOpen() bool {
	return g.actuator.IsGripperOpen()
}

func (g *GantryInstance) GetCurrentPosition() models.Position {
	return g.actuator.GetCurrentPosition()
}

// Status returns a snapshot for status readouts. It never blocks on a running action.
func (g *GantryInstance) Status() Status {
	state := g.GetCurrentState()
	return Status{
		State:       state,
		Group:       StateGroup(state),
		Idle:        IsIdleState(state),
		GripperOpen: g.actuator.IsGripperOpen(),
		Fault:       state == StateFault,
	}
}

func (g *GantryInstance) GetHomePosition() models.HomePosition {
	return g.actuator.GetHomePosition()
}

func (g *GantryInstance) SetHomePosition(home models.HomePosition) {
	g.actuator.SetHomePosition(home)
}

// NextSource is the pick position of the next cycle.
func (g *GantryInstance) NextSource() models.CubeStartPosition {
	g.targetsMu.RLock()
	defer g.targetsMu.RUnlock()
	return g.nextSource
}

// SetNextSource changes the pick position. A cycle that already entered
// picking keeps the position it started with.
func (g *GantryInstance) SetNextSource(source models.CubeStartPosition) {
	g.targetsMu.Lock()
	defer g.targetsMu.Unlock()
	g.nextSource = source
}

// NextDestination is the place position of the next cycle.
func (g *GantryInstance) NextDestination() models.CubeDestinationPosition {
	g.targetsMu.RLock()
	defer g.targetsMu.RUnlock()
	return g.nextDestination
}

// SetNextDestination changes the place position. A cycle that already moved
// toward the destination keeps the position it started with.
func (g *GantryInstance) SetNextDestination(destination models.CubeDestinationPosition) {
	g.targetsMu.Lock()
	defer g.targetsMu.Unlock()
	g.nextDestination = destination
}

// WorkingSource is the source snapshot of the current (or last) cycle.
func (g *GantryInstance) WorkingSource() models.CubeStartPosition {
	g.targetsMu.RLock()
	defer g.targetsMu.RUnlock()
	return g.workingSource
}

// WorkingDestination is the destination snapshot of the current (or last) cycle.
func (g *GantryInstance) WorkingDestination() models.CubeDestinationPosition {
	g.targetsMu.RLock()
	defer g.targetsMu.RUnlock()
	return g.workingDestination
}

// AddTransitionObserver registers fn to be called with (old state, new state, trigger)
// after every transition. fn must not call back into the controller's commands.
func (g *GantryInstance) AddTransitionObserver(fn internalfsm.TransitionObserver) {
	g.baseFSMInstance.AddTransitionObserver(fn)
}

func (g *GantryInstance) GetID() string {
	return g.cfg.ID
}

// Close cancels running actions and waits for them to return.
// Cancelled actions do not move the controller into the fault state.
func (g *GantryInstance) Close(ctx context.Context) error {
	g.cancel()

	closeCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		closeCtx, cancel = context.WithTimeout(ctx, constants.ShutdownTimeout)
		defer cancel()
	}
	return g.Wait(closeCtx)
}
