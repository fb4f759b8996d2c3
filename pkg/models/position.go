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

	"gonum.org/v1/gonum/spatial/r3"
)

// Position is a point in the work cell in mm. It is a value type.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// PositionFromList builds a Position from an [x, y, z] slice.
func PositionFromList(values []float64) (Position, error) {
	if len(values) != 3 {
		return Position{}, fmt.Errorf("position needs exactly 3 values, got %d", len(values))
	}
	return Position{X: values[0], Y: values[1], Z: values[2]}, nil
}

// ToList returns the position as [x, y, z].
func (p Position) ToList() []float64 {
	return []float64{p.X, p.Y, p.Z}
}

// Equal compares exactly. The convergence loop relies on the driver snapping onto its target.
func (p Position) Equal(other Position) bool {
	return p.X == other.X && p.Y == other.Y && p.Z == other.Z
}

// WithZ returns a copy of p at height z.
func (p Position) WithZ(z float64) Position {
	p.Z = z
	return p
}

// Vec converts the position for use with gonum's spatial package.
func (p Position) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// PositionFromVec is the inverse of Vec.
func PositionFromVec(v r3.Vec) Position {
	return Position{X: v.X, Y: v.Y, Z: v.Z}
}

func (p Position) String() string {
	return fmt.Sprintf("(x=%g, y=%g, z=%g)", p.X, p.Y, p.Z)
}
