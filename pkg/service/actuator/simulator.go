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
	"fmt"
	"math"
	"sync"

	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// SimulatorConfig configures the simulated gantry.
type SimulatorConfig struct {
	// MaxStep is the distance in mm covered per tick at 100% speed.
	MaxStep float64 `yaml:"maxStep"`
	// Acceleration is the number of speed percent points gained per tick.
	// Zero or less means the commanded speed is reached immediately.
	Acceleration float64 `yaml:"acceleration"`
	// StartPosition is where the gantry is when the process starts.
	StartPosition models.Position `yaml:"startPosition"`
}

func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		MaxStep:       constants.DefaultSimulatorMaxStep,
		Acceleration:  constants.DefaultSimulatorAcceleration,
		StartPosition: models.Position{X: 0, Y: 0, Z: constants.LiftingHeightAboveTable},
	}
}

// Simulator is a MotionPrimitive that moves in a straight line toward the
// target, ramping its speed up from rest and snapping onto the target once it
// is within one step.
type Simulator struct {
	mu           sync.Mutex
	cfg          SimulatorConfig
	position     models.Position
	plannedSpeed float64
	logger       *zap.SugaredLogger
}

var (
	_ MotionPrimitive = (*Simulator)(nil)
	_ Replanner       = (*Simulator)(nil)
)

func NewSimulator(cfg SimulatorConfig, logger *zap.SugaredLogger) *Simulator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Simulator{cfg: cfg, position: cfg.StartPosition, logger: logger}
}

func (s *Simulator) Position() models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Replan forgets the current speed ramp.
func (s *Simulator) Replan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plannedSpeed = 0
}

func (s *Simulator) Step(target models.Position, speed float64) StepResult {
	if speed <= 0 || speed > 100 || math.IsNaN(speed) {
		return StepResult{Error: fmt.Sprintf("invalid speed %g, must be within (0, 100]", speed)}
	}
	if !insideWorkArea(target) {
		return StepResult{Error: fmt.Sprintf("target %s is outside the work area", target)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Acceleration <= 0 {
		s.plannedSpeed = speed
	} else {
		s.plannedSpeed = math.Min(speed, s.plannedSpeed+s.cfg.Acceleration)
	}
	step := s.cfg.MaxStep * s.plannedSpeed / 100

	delta := r3.Sub(target.Vec(), s.position.Vec())
	if r3.Norm(delta) <= step {
		s.position = target
		s.plannedSpeed = 0
		return StepResult{}
	}

	s.position = models.PositionFromVec(r3.Add(s.position.Vec(), r3.Scale(step, r3.Unit(delta))))
	return StepResult{}
}

func insideWorkArea(p models.Position) bool {
	half := constants.WorkAreaSize / 2
	return math.Abs(p.X) <= half && math.Abs(p.Y) <= half && p.Z >= 0 && p.Z <= half
}
