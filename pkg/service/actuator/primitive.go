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

package actuator

import "github.com/united-manufacturing-hub/gantry-core/pkg/models"

// StepResult is what a single motion step reports. An empty Error means the
// step was accepted; it does not mean the target was reached.
type StepResult struct {
	Error string
}

// MotionPrimitive is the driver beneath the actuator. Step nudges the gantry
// one tick toward target at speed (percent of the axis maximum) and must be
// safe to call repeatedly at a fixed cadence. Position returns where the
// gantry currently is.
type MotionPrimitive interface {
	Step(target models.Position, speed float64) StepResult
	Position() models.Position
}

// Replanner is implemented by drivers that cache a motion plan between steps.
// Replan drops that cache so the next Step plans from scratch.
type Replanner interface {
	Replan()
}
