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

package constants

import "time"

const (
	// TransferMovementSpeed is the speed preset (percent of the axis maximum)
	// used for ordinary moves between the tables.
	TransferMovementSpeed = 95.0

	// HomeMovementSpeed is the slower preset used when returning to the home position.
	HomeMovementSpeed = 50.0

	// DefaultTickPeriod is the interval between two motion steps of the convergence loop.
	// Status readouts can be stale by up to one tick.
	DefaultTickPeriod = 100 * time.Millisecond

	// DefaultGripperActionDelay simulates the mechanical travel time of the gripper jaws.
	DefaultGripperActionDelay = 2 * time.Second

	// DefaultMotionTimeout of zero keeps the convergence loop unbounded:
	// an actuator that never converges stalls its action forever.
	DefaultMotionTimeout time.Duration = 0

	// DefaultSimulatorMaxStep is how far (in mm) the simulated gantry travels
	// during one tick at 100% speed.
	DefaultSimulatorMaxStep = 40.0

	// DefaultSimulatorAcceleration is how many speed percent points the simulated
	// gantry gains per tick until it reaches the commanded speed.
	DefaultSimulatorAcceleration = 25.0
)
