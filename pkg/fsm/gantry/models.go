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
	"strings"

	internalfsm "github.com/united-manufacturing-hub/gantry-core/internal/fsm"
	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
)

// Operational states. Each name is "<group>.<sub-state>".
const (
	StatePickingMoving   = "picking.moving"
	StatePickingLowering = "picking.lowering"
	StatePickingClosing  = "picking.closing"

	StateTransportingLifting = "transporting.lifting"
	StateTransportingMoving  = "transporting.moving"

	StatePlacingLowering = "placing.lowering"
	StatePlacingOpening  = "placing.opening"
	StatePlacingLifting  = "placing.lifting"

	StateSequenceFinished = "sequence_finished.finished"

	StateHomeHome    = "home.home"
	StateHomeMoving  = "home.moving"
	StateHomeOpening = "home.opening"

	// StateReady is the state the controller starts in.
	StateReady = internalfsm.LifecycleStateReady
	// StateFault is entered when an action fails. Only Reset leaves it.
	StateFault = internalfsm.LifecycleStateFault
)

// Operational events.
const (
	EventStart = "start"

	EventFinishedMovingAboveCube  = "finished_moving_above_cube"
	EventFinishedLoweringPickup   = "finished_lowering_for_pickup"
	EventFinishedClosingGripper   = "finished_closing_gripper"
	EventFinishedLiftingCube      = "finished_lifting_cube"
	EventFinishedMovingAboveDest  = "finished_moving_above_destination"
	EventFinishedLoweringPlace    = "finished_lowering_for_placement"
	EventFinishedOpeningPlacement = "finished_opening_gripper_for_placement"
	EventFinishedLiftingPlacement = "finished_lifting_after_placement"

	EventHome                  = "home"
	EventFinishedMovingToHome  = "finished_moving_to_home"
	EventFinishedOpeningAtHome = "finished_opening_gripper_at_home"

	EventToFault = internalfsm.LifecycleEventToFault
	EventReset   = internalfsm.LifecycleEventReset
)

// ErrConflict is returned by commands that are not allowed in the current state.
var ErrConflict = errors.New("conflict")

// OperationalStates lists the states of the cycle in order.
var OperationalStates = []string{
	StatePickingMoving,
	StatePickingLowering,
	StatePickingClosing,
	StateTransportingLifting,
	StateTransportingMoving,
	StatePlacingLowering,
	StatePlacingOpening,
	StatePlacingLifting,
	StateSequenceFinished,
	StateHomeHome,
	StateHomeMoving,
	StateHomeOpening,
}

// IdleStates are the states a new cycle may be started from.
var IdleStates = []string{StateReady, StateHomeHome, StateSequenceFinished}

// IsIdleState reports whether state is one of IdleStates.
func IsIdleState(state string) bool {
	switch state {
	case StateReady, StateHomeHome, StateSequenceFinished:
		return true
	default:
		return false
	}
}

// StateGroup returns the group part of a hierarchical state name.
// Lifecycle states are their own group.
func StateGroup(state string) string {
	if internalfsm.IsLifecycleState(state) {
		return state
	}
	group, _, _ := strings.Cut(state, ".")
	return group
}

// Status is the non-blocking readout of the controller.
type Status struct {
	State       string `json:"state_machine_state"`
	Group       string `json:"group"`
	Idle        bool   `json:"idle"`
	GripperOpen bool   `json:"gripper_open"`
	Fault       bool   `json:"fault"`
}

// Actuator is what the sequence controller drives. *actuator.Actuator implements it.
type Actuator interface {
	GetCurrentPosition() models.Position
	GetHomePosition() models.HomePosition
	SetHomePosition(home models.HomePosition)
	IsGripperOpen() bool

	MoveToPosition(ctx context.Context, target models.Position) error
	MoveToHome(ctx context.Context) error
	OpenGripper(ctx context.Context) error
	CloseGripper(ctx context.Context) error
}
