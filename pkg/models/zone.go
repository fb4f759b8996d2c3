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
	"math"

	"github.com/united-manufacturing-hub/gantry-core/pkg/constants"
	"gonum.org/v1/gonum/spatial/r2"
)

// Zone is a convex polygon in the xy plane with counter-clockwise vertices.
type Zone struct {
	Name     string
	vertices []r2.Vec
}

// NewZone creates a zone from counter-clockwise vertices.
func NewZone(name string, vertices ...r2.Vec) Zone {
	v := make([]r2.Vec, len(vertices))
	copy(v, vertices)
	return Zone{Name: name, vertices: v}
}

// Vertices returns a copy of the polygon corners.
func (z Zone) Vertices() []r2.Vec {
	v := make([]r2.Vec, len(z.vertices))
	copy(v, z.vertices)
	return v
}

// Contains reports whether (x, y) lies strictly inside the zone. Points on an
// edge are rejected.
func (z Zone) Contains(x, y float64) bool {
	if len(z.vertices) < 3 {
		return false
	}
	p := r2.Vec{X: x, Y: y}
	for i, a := range z.vertices {
		b := z.vertices[(i+1)%len(z.vertices)]
		if r2.Cross(r2.Sub(b, a), r2.Sub(p, a)) <= 0 {
			return false
		}
	}
	return true
}

// Centroid returns the area centroid of the polygon.
func (z Zone) Centroid() r2.Vec {
	var area float64
	var c r2.Vec
	for i, a := range z.vertices {
		b := z.vertices[(i+1)%len(z.vertices)]
		cross := r2.Cross(a, b)
		area += cross
		c = r2.Add(c, r2.Scale(cross, r2.Add(a, b)))
	}
	if area == 0 {
		return r2.Vec{}
	}
	return r2.Vec{X: c.X / (3 * area), Y: c.Y / (3 * area)}
}

// squareZone builds an axis aligned square of the given size around center,
// rotated by alpha radians around that center.
func squareZone(name string, center r2.Vec, size, alpha float64) Zone {
	h := size / 2
	corners := []r2.Vec{
		{X: center.X - h, Y: center.Y - h},
		{X: center.X + h, Y: center.Y - h},
		{X: center.X + h, Y: center.Y + h},
		{X: center.X - h, Y: center.Y + h},
	}
	if alpha != 0 {
		for i := range corners {
			corners[i] = r2.Rotate(corners[i], alpha, center)
		}
	}
	return NewZone(name, corners...)
}

var (
	// TableA is the source zone: axis aligned, in the upper left corner of the work area.
	TableA = func() Zone {
		corner := -(constants.WorkAreaSize/2 - constants.TableDistanceFromEdge)
		center := r2.Vec{
			X: corner + constants.TableSize/2,
			Y: -corner - constants.TableSize/2,
		}
		return squareZone("Table A", center, constants.TableSize, 0)
	}()

	// TableB is the destination zone: rotated by 45 degrees with its right and
	// bottom corners touching the inner border of the lower right corner.
	TableB = func() Zone {
		rightCorner := constants.WorkAreaSize/2 - constants.TableDistanceFromEdge
		cornerToCenter := constants.TableSize / math.Sqrt2
		center := r2.Vec{
			X: rightCorner - cornerToCenter,
			Y: -rightCorner + cornerToCenter,
		}
		return squareZone("Table B", center, constants.TableSize, math.Pi/4)
	}()
)
