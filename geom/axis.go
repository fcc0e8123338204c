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

	"gonum.org/v1/gonum/mat"
)

// Axis is the result of a principal component analysis of a point cloud.
type Axis struct {
	Mean   Point   // Mean of the points
	Vector Point   // Unit eigenvector of the largest variance
	Major  float64 // Largest eigenvalue
	Minor  float64 // Smallest eigenvalue
}

// PrincipalAxis finds the direction of largest variance of the points.
// The vector is returned pointing into the right half plane; callers
// that need a direction must choose the sign themselves.
func (pl PList) PrincipalAxis() (Axis, error) {
	if len(pl) < 2 {
		return Axis{}, fmt.Errorf("principal axis needs at least 2 points, have %d", len(pl))
	}
	a := Axis{Mean: pl.Mean()}
	var sxx, sxy, syy float64
	for _, p := range pl {
		d := p.Sub(a.Mean)
		sxx += d.X * d.X
		sxy += d.X * d.Y
		syy += d.Y * d.Y
	}
	n := float64(len(pl))
	cov := mat.NewSymDense(2, []float64{sxx / n, sxy / n, sxy / n, syy / n})
	var es mat.EigenSym
	if !es.Factorize(cov, true) {
		return Axis{}, fmt.Errorf("principal axis: eigen decomposition failed")
	}
	// Eigenvalues are in ascending order.
	vals := es.Values(nil)
	a.Minor, a.Major = vals[0], vals[1]
	if a.Major <= 0 {
		return Axis{}, fmt.Errorf("principal axis undefined for coincident points")
	}
	var ev mat.Dense
	es.VectorsTo(&ev)
	a.Vector = Point{ev.At(0, 1), ev.At(1, 1)}
	if a.Vector.X < 0 || (a.Vector.X == 0 && a.Vector.Y < 0) {
		a.Vector = a.Vector.Scale(-1)
	}
	a.Vector = a.Vector.Scale(1 / a.Vector.Len())
	return a, nil
}
