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
	"sync"

	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
)

const (
	opMove  = "move"
	opHome  = "home"
	opOpen  = "open"
	opClose = "close"
)

type call struct {
	op     string
	target models.Position
}

// fakeActuator completes every operation instantly unless the operation is
// gated, failing or panicking.
type fakeActuator struct {
	mu          sync.Mutex
	position    models.Position
	home        models.HomePosition
	gripperOpen bool
	calls       []call
	gates       map[string]chan struct{}
	failures    map[string]error
	panics      map[string]bool
}

var _ Actuator = (*fakeActuator)(nil)

func newFakeActuator() *fakeActuator {
	home, _ := models.NewHomePosition(0, 0, 500)
	return &fakeActuator{
		position:    home.Position(),
		home:        home,
		gripperOpen: true,
		gates:       map[string]chan struct{}{},
		failures:    map[string]error{},
		panics:      map[string]bool{},
	}
}

// gate makes every call of op block until the returned channel is closed
// or receives a value (one value releases one call).
func (f *fakeActuator) gate(op string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[op] = ch
	return ch
}

func (f *fakeActuator) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

func (f *fakeActuator) panicOn(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[op] = true
}

func (f *fakeActuator) do(ctx context.Context, op string, target models.Position) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{op: op, target: target})
	gate := f.gates[op]
	failure := f.failures[op]
	shouldPanic := f.panics[op]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if shouldPanic {
		panic("simulated driver crash")
	}
	if failure != nil {
		return failure
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch op {
	case opMove, opHome:
		f.position = target
	case opOpen:
		f.gripperOpen = true
	case opClose:
		f.gripperOpen = false
	}
	return nil
}

func (f *fakeActuator) moveTargets() []models.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	var targets []models.Position
	for _, c := range f.calls {
		if c.op == opMove {
			targets = append(targets, c.target)
		}
	}
	return targets
}

func (f *fakeActuator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeActuator) GetCurrentPosition() models.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeActuator) GetHomePosition() models.HomePosition {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.home
}

func (f *fakeActuator) SetHomePosition(home models.HomePosition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.home = home
}

func (f *fakeActuator) IsGripperOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gripperOpen
}

func (f *fakeActuator) MoveToPosition(ctx context.Context, target models.Position) error {
	return f.do(ctx, opMove, target)
}

func (f *fakeActuator) MoveToHome(ctx context.Context) error {
	return f.do(ctx, opHome, f.GetHomePosition().Position())
}

func (f *fakeActuator) OpenGripper(ctx context.Context) error {
	return f.do(ctx, opOpen, models.Position{})
}

func (f *fakeActuator) CloseGripper(ctx context.Context) error {
	return f.do(ctx, opClose, models.Position{})
}

var errAxisBlocked = errors.New("axis blocked")
