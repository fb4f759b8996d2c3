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

import (
	"errors"
	"fmt"

	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
)

var (
	// ErrMotionFault matches every *MotionFault via errors.Is.
	ErrMotionFault = errors.New("motion fault")

	// ErrMotionTimeout is returned when a move does not converge within Config.MotionTimeout.
	ErrMotionTimeout = errors.New("motion did not converge in time")
)

// MotionFault is returned when the motion primitive rejects a step.
type MotionFault struct {
	Target models.Position
	Speed  float64
	Reason string
}

func (e *MotionFault) Error() string {
	return fmt.Sprintf("motion fault while moving to %s at %g%%: %s", e.Target, e.Speed, e.Reason)
}

func (e *MotionFault) Is(target error) bool {
	return target == ErrMotionFault
}
