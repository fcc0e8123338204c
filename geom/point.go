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

// package geom provides the small amount of plane geometry needed to
// measure needle silhouettes: polygon area and moments, convex hulls,
// minimum area rectangles, principal axes and perspective transforms.
package geom

import (
	"fmt"
	"math"
)

// Point is a location in image co-ordinates (Y increases downwards).
type Point struct {
	X float64
	Y float64
}

// List of points.
type PList []Point

// Pt is shorthand for creating a Point.
func Pt(x, y float64) Point {
	return Point{x, y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Scale returns p multiplied by s.
func (p Point) Scale(s float64) Point {
	return Point{p.X * s, p.Y * s}
}

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}

// Cross returns the z component of the cross product of p and q.
func (p Point) Cross(q Point) float64 {
	return p.X*q.Y - p.Y*q.X
}

// Len returns the length of the vector p.
func (p Point) Len() float64 {
	return math.Hypot(p.X, p.Y)
}

// Dist returns the distance between p and q.
func (p Point) Dist(q Point) float64 {
	return p.Sub(q).Len()
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// Offset returns a new point list with x and y added to each point.
func (pl PList) Offset(x, y float64) PList {
	np := make(PList, len(pl))
	for i := range pl {
		np[i] = Point{pl[i].X + x, pl[i].Y + y}
	}
	return np
}

// Mean returns the average of the points in the list.
func (pl PList) Mean() Point {
	var m Point
	if len(pl) == 0 {
		return m
	}
	for _, p := range pl {
		m.X += p.X
		m.Y += p.Y
	}
	return m.Scale(1 / float64(len(pl)))
}
