// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform in row major order,
// normalised so that the last element is 1.
type Homography [9]float64

// Perspective returns the transform that maps each src point onto the
// corresponding dst point.
func Perspective(src, dst Quad) (Homography, error) {
	if degenerate(src) || degenerate(dst) {
		return Homography{}, fmt.Errorf("degenerate quadrilateral, points are collinear")
	}
	// Each correspondence gives 2 rows of an 8x8 linear system in the
	// unknowns h0..h7 (h8 fixed at 1).
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}
	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("perspective transform: %w", err)
	}
	var t Homography
	for i := 0; i < 8; i++ {
		t[i] = h.AtVec(i)
	}
	t[8] = 1
	return t, nil
}

// degenerate returns true if any three corners of the quad are collinear.
func degenerate(q Quad) bool {
	for i := 0; i < 4; i++ {
		a, b, c := q[i], q[(i+1)%4], q[(i+2)%4]
		if math.Abs(b.Sub(a).Cross(c.Sub(a))) < 1e-9 {
			return true
		}
	}
	return false
}

// Apply maps p through the transform.
func (h Homography) Apply(p Point) Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		return Point{math.Inf(1), math.Inf(1)}
	}
	return Point{
		(h[0]*p.X + h[1]*p.Y + h[2]) / w,
		(h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}
