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

// Work cell geometry, all values in mm.
//
// The work area is a square centered on the origin. Table A sits axis aligned
// in the upper left corner, Table B is rotated by 45 degrees and touches the
// lower right corner. Both keep TableDistanceFromEdge to the border.
const (
	WorkAreaSize          = 2000.0
	TableDistanceFromEdge = 100.0
	TableSize             = 500.0

	// TableHeight is the z coordinate of both table surfaces.
	TableHeight = 0.0

	// LiftingHeightAboveTable is the z coordinate used while carrying a cube
	// or approaching a table from above.
	LiftingHeightAboveTable = 300.0
)
