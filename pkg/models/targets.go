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

package models

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
)

// ValidationError is returned when a coordinate is not admissible for the type being built.
type ValidationError struct {
	Field  string
	Value  Position
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s is invalid: %s", e.Field, e.Value, e.Reason)
}

// CubeStartPosition is a position on the surface of Table A.
type CubeStartPosition struct {
	pos Position
}

// NewCubeStartPosition validates that (x, y) lies inside Table A and z is the table height.
func NewCubeStartPosition(x, y, z float64) (CubeStartPosition, error) {
	p := Position{X: x, Y: y, Z: z}
	if err := validateOnTable("cube start position", p, TableA); err != nil {
		return CubeStartPosition{}, err
	}
	return CubeStartPosition{pos: p}, nil
}

func CubeStartPositionFromList(values []float64) (CubeStartPosition, error) {
	p, err := PositionFromList(values)
	if err != nil {
		return CubeStartPosition{}, err
	}
	return NewCubeStartPosition(p.X, p.Y, p.Z)
}

func (c CubeStartPosition) Position() Position { return c.pos }
func (c CubeStartPosition) ToList() []float64  { return c.pos.ToList() }

func (c CubeStartPosition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.pos)
}

func (c *CubeStartPosition) UnmarshalJSON(data []byte) error {
	var p Position
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	v, err := NewCubeStartPosition(p.X, p.Y, p.Z)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// CubeDestinationPosition is a position on the surface of Table B.
type CubeDestinationPosition struct {
	pos Position
}

// NewCubeDestinationPosition validates that (x, y) lies inside Table B and z is the table height.
func NewCubeDestinationPosition(x, y, z float64) (CubeDestinationPosition, error) {
	p := Position{X: x, Y: y, Z: z}
	if err := validateOnTable("cube destination position", p, TableB); err != nil {
		return CubeDestinationPosition{}, err
	}
	return CubeDestinationPosition{pos: p}, nil
}

func CubeDestinationPositionFromList(values []float64) (CubeDestinationPosition, error) {
	p, err := PositionFromList(values)
	if err != nil {
		return CubeDestinationPosition{}, err
	}
	return NewCubeDestinationPosition(p.X, p.Y, p.Z)
}

func (c CubeDestinationPosition) Position() Position { return c.pos }
func (c CubeDestinationPosition) ToList() []float64  { return c.pos.ToList() }

func (c CubeDestinationPosition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.pos)
}

func (c *CubeDestinationPosition) UnmarshalJSON(data []byte) error {
	var p Position
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	v, err := NewCubeDestinationPosition(p.X, p.Y, p.Z)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// HomePosition is a position inside the work area box:
// x and y within +-WorkAreaSize/2, z within [0, WorkAreaSize/2].
type HomePosition struct {
	pos Position
}

func NewHomePosition(x, y, z float64) (HomePosition, error) {
	p := Position{X: x, Y: y, Z: z}
	half := constants.WorkAreaSize / 2
	switch {
	case x < -half || x > half:
		return HomePosition{}, &ValidationError{Field: "home position", Value: p, Reason: fmt.Sprintf("x must be within [%g, %g]", -half, half)}
	case y < -half || y > half:
		return HomePosition{}, &ValidationError{Field: "home position", Value: p, Reason: fmt.Sprintf("y must be within [%g, %g]", -half, half)}
	case z < 0 || z > half:
		return HomePosition{}, &ValidationError{Field: "home position", Value: p, Reason: fmt.Sprintf("z must be within [0, %g]", half)}
	}
	return HomePosition{pos: p}, nil
}

func HomePositionFromList(values []float64) (HomePosition, error) {
	p, err := PositionFromList(values)
	if err != nil {
		return HomePosition{}, err
	}
	return NewHomePosition(p.X, p.Y, p.Z)
}

func (h HomePosition) Position() Position { return h.pos }
func (h HomePosition) ToList() []float64  { return h.pos.ToList() }

func (h HomePosition) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.pos)
}

func (h *HomePosition) UnmarshalJSON(data []byte) error {
	var p Position
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	v, err := NewHomePosition(p.X, p.Y, p.Z)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func validateOnTable(field string, p Position, zone Zone) error {
	if p.Z != constants.TableHeight {
		return &ValidationError{Field: field, Value: p, Reason: fmt.Sprintf("z must be %g", constants.TableHeight)}
	}
	if !zone.Contains(p.X, p.Y) {
		return &ValidationError{Field: field, Value: p, Reason: "outside " + zone.Name + " bounds"}
	}
	return nil
}

// DefaultCubeStartPosition is the center of Table A.
func DefaultCubeStartPosition() CubeStartPosition {
	c := TableA.Centroid()
	return CubeStartPosition{pos: Position{X: c.X, Y: c.Y, Z: constants.TableHeight}}
}

// DefaultCubeDestinationPosition is the center of Table B.
func DefaultCubeDestinationPosition() CubeDestinationPosition {
	c := TableB.Centroid()
	return CubeDestinationPosition{pos: Position{X: c.X, Y: c.Y, Z: constants.TableHeight}}
}
