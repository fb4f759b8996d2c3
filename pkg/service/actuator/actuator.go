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

// Package actuator drives the gantry through a MotionPrimitive. Moves block
// until the primitive reports the exact target position, gripper operations
// block for a fixed actuation delay.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"github.com/united-manufacturing-hub/gantry-core/pkg/metrics"
	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
	"go.uber.org/zap"
)

const (
	moveKindTransfer = "transfer"
	moveKindHome     = "home"
)

// Config holds the timing and speed presets of the actuator.
type Config struct {
	TickPeriod    time.Duration `yaml:"tickPeriod"`
	GripperDelay  time.Duration `yaml:"gripperDelay"`
	TransferSpeed float64       `yaml:"transferSpeed"`
	HomeSpeed     float64       `yaml:"homeSpeed"`
	// MotionTimeout bounds a single move. Zero means unbounded.
	MotionTimeout time.Duration `yaml:"motionTimeout"`
}

// DefaultConfig returns the production presets.
func DefaultConfig() Config {
	return Config{
		TickPeriod:    constants.DefaultTickPeriod,
		GripperDelay:  constants.DefaultGripperActionDelay,
		TransferSpeed: constants.TransferMovementSpeed,
		HomeSpeed:     constants.HomeMovementSpeed,
		MotionTimeout: constants.DefaultMotionTimeout,
	}
}

// Actuator owns the current and home position and the gripper state.
//
// Readouts never block: they return the position committed after the most
// recent step, so they can lag the hardware by up to one tick.
type Actuator struct {
	primitive MotionPrimitive
	cfg       Config
	logger    *zap.SugaredLogger

	homeMu sync.RWMutex
	home   models.HomePosition

	gripperOpen  atomic.Bool
	position     atomic.Pointer[models.Position]
	lastProgress atomic.Int64
}

// NewActuator creates an actuator on top of primitive. The gripper starts open.
func NewActuator(primitive MotionPrimitive, home models.HomePosition, cfg Config, logger *zap.SugaredLogger) *Actuator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	a := &Actuator{
		primitive: primitive,
		cfg:       cfg,
		logger:    logger,
		home:      home,
	}
	a.gripperOpen.Store(true)
	p := primitive.Position()
	a.position.Store(&p)
	a.lastProgress.Store(time.Now().UnixNano())

	metrics.InitErrorCounter(metrics.ComponentActuator, "actuator")
	return a
}

func (a *Actuator) GetCurrentPosition() models.Position {
	return *a.position.Load()
}

func (a *Actuator) GetHomePosition() models.HomePosition {
	a.homeMu.RLock()
	defer a.homeMu.RUnlock()
	return a.home
}

// SetHomePosition stores a new home position. A home move that is already
// running keeps its target; the driver is asked to replan so the next step
// does not continue a stale plan.
func (a *Actuator) SetHomePosition(home models.HomePosition) {
	a.homeMu.Lock()
	a.home = home
	a.homeMu.Unlock()

	if r, ok := a.primitive.(Replanner); ok {
		r.Replan()
	}
	a.logger.Infof("Home position set to %s", home.Position())
}

func (a *Actuator) IsGripperOpen() bool {
	return a.gripperOpen.Load()
}

// LastProgress is the last time a step changed the position.
func (a *Actuator) LastProgress() time.Time {
	return time.Unix(0, a.lastProgress.Load())
}

// MoveToPosition blocks until the gantry is exactly at target, using the transfer speed.
func (a *Actuator) MoveToPosition(ctx context.Context, target models.Position) error {
	return a.moveTo(ctx, target, a.cfg.TransferSpeed, moveKindTransfer)
}

// MoveToHome blocks until the gantry is at the home position that was set when the move started.
func (a *Actuator) MoveToHome(ctx context.Context) error {
	return a.moveTo(ctx, a.GetHomePosition().Position(), a.cfg.HomeSpeed, moveKindHome)
}

// OpenGripper waits for the actuation delay and then marks the gripper open.
func (a *Actuator) OpenGripper(ctx context.Context) error {
	return a.actuateGripper(ctx, true)
}

// CloseGripper waits for the actuation delay and then marks the gripper closed.
func (a *Actuator) CloseGripper(ctx context.Context) error {
	return a.actuateGripper(ctx, false)
}

func (a *Actuator) actuateGripper(ctx context.Context, open bool) error {
	timer := time.NewTimer(a.cfg.GripperDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	a.gripperOpen.Store(open)
	a.logger.Debugw("Gripper actuated", "open", open)
	return nil
}

func (a *Actuator) moveTo(ctx context.Context, target models.Position, speed float64, kind string) error {
	if a.cfg.MotionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, a.cfg.MotionTimeout, ErrMotionTimeout)
		defer cancel()
	}

	a.logger.Debugw("Moving", "kind", kind, "target", target.String(), "speed", speed)

	ticker := time.NewTicker(a.cfg.TickPeriod)
	defer ticker.Stop()

	for !a.commitPosition().Equal(target) {
		result := a.primitive.Step(target, speed)
		metrics.IncMotionTicks(kind)
		if result.Error != "" {
			metrics.IncErrorCount(metrics.ComponentActuator, "actuator")
			return &MotionFault{Target: target, Speed: speed, Reason: result.Error}
		}
		a.commitPosition()

		select {
		case <-ctx.Done():
			if cause := context.Cause(ctx); errors.Is(cause, ErrMotionTimeout) {
				return fmt.Errorf("moving to %s: %w", target, cause)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// commitPosition publishes the primitive's position to readers.
func (a *Actuator) commitPosition() models.Position {
	p := a.primitive.Position()
	if prev := a.position.Load(); !prev.Equal(p) {
		a.lastProgress.Store(time.Now().UnixNano())
	}
	a.position.Store(&p)
	return p
}
