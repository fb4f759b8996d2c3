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

	"github.com/looplab/fsm"

	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
)

// registerCallbacks wires one action to every working state.
// The callbacks run synchronously inside SendEvent: they only take snapshots
// and spawn, the actual work happens in the spawned task.
func (g *GantryInstance) registerCallbacks() {
	lift := g.cfg.LiftingHeight

	// Picking
	g.onEnter(StatePickingMoving, func(ctx context.Context, e *fsm.Event) {
		source := g.snapshotSource().Position()
		g.spawn(StatePickingMoving, EventFinishedMovingAboveCube, func(ctx context.Context) error {
			return g.actuator.MoveToPosition(ctx, source.WithZ(lift))
		})
	})

	g.onEnter(StatePickingLowering, func(ctx context.Context, e *fsm.Event) {
		source := g.WorkingSource().Position()
		g.spawn(StatePickingLowering, EventFinishedLoweringPickup, func(ctx context.Context) error {
			return g.actuator.MoveToPosition(ctx, source)
		})
	})

	g.onEnter(StatePickingClosing, func(ctx context.Context, e *fsm.Event) {
		g.spawn(StatePickingClosing, EventFinishedClosingGripper, g.actuator.CloseGripper)
	})

	// Transporting
	g.onEnter(StateTransportingLifting, func(ctx context.Context, e *fsm.Event) {
		source := g.WorkingSource().Position()
		g.spawn(StateTransportingLifting, EventFinishedLiftingCube, func(ctx context.Context) error {
			return g.actuator.MoveToPosition(ctx, source.WithZ(lift))
		})
	})

	g.onEnter(StateTransportingMoving, func(ctx context.Context, e *fsm.Event) {
		destination := g.snapshotDestination().Position()
		g.spawn(StateTransportingMoving, EventFinishedMovingAboveDest, func(ctx context.Context) error {
			return g.actuator.MoveToPosition(ctx, destination.WithZ(lift))
		})
	})

	// Placing
	g.onEnter(StatePlacingLowering, func(ctx context.Context, e *fsm.Event) {
		destination := g.WorkingDestination().Position()
		g.spawn(StatePlacingLowering, EventFinishedLoweringPlace, func(ctx context.Context) error {
			return g.actuator.MoveToPosition(ctx, destination)
		})
	})

	g.onEnter(StatePlacingOpening, func(ctx context.Context, e *fsm.Event) {
		g.spawn(StatePlacingOpening, EventFinishedOpeningPlacement, g.actuator.OpenGripper)
	})

	g.onEnter(StatePlacingLifting, func(ctx context.Context, e *fsm.Event) {
		destination := g.WorkingDestination().Position()
		g.spawn(StatePlacingLifting, EventFinishedLiftingPlacement, func(ctx context.Context) error {
			return g.actuator.MoveToPosition(ctx, destination.WithZ(lift))
		})
	})

	g.onEnter(StateSequenceFinished, func(ctx context.Context, e *fsm.Event) {
		g.logger.Infof("Cycle finished, cube placed at %s", g.WorkingDestination().Position())
	})

	// Home
	g.onEnter(StateHomeMoving, func(ctx context.Context, e *fsm.Event) {
		// The diversion has begun, any request that led here is consumed.
		g.homeRequested = false
		g.spawn(StateHomeMoving, EventFinishedMovingToHome, g.actuator.MoveToHome)
	})

	g.onEnter(StateHomeOpening, func(ctx context.Context, e *fsm.Event) {
		g.spawn(StateHomeOpening, EventFinishedOpeningAtHome, g.actuator.OpenGripper)
	})

	g.onEnter(StateFault, func(ctx context.Context, e *fsm.Event) {
		g.logger.Infof("Entered fault state from %s, operator reset required", e.Src)
	})
}

func (g *GantryInstance) onEnter(state string, cb fsm.Callback) {
	g.baseFSMInstance.AddCallback("enter_"+state, cb)
}

// snapshotSource copies the pending source into the working source.
func (g *GantryInstance) snapshotSource() models.CubeStartPosition {
	g.targetsMu.Lock()
	defer g.targetsMu.Unlock()
	g.workingSource = g.nextSource
	return g.workingSource
}

// snapshotDestination copies the pending destination into the working destination.
func (g *GantryInstance) snapshotDestination() models.CubeDestinationPosition {
	g.targetsMu.Lock()
	defer g.targetsMu.Unlock()
	g.workingDestination = g.nextDestination
	return g.workingDestination
}
