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
	"math"
	"sort"
)

// Corners of a quadrilateral.
const (
	TL = iota
	TR = iota
	BR = iota
	BL = iota
)

// Quad is a quadrilateral, ordered TL, TR, BR, BL.
type Quad [4]Point

// Moments holds the spatial moments of a polygon up to first order.
type Moments struct {
	M00 float64 // Area
	M10 float64
	M01 float64
}

// RotatedRect is a rectangle of arbitrary orientation.
type RotatedRect struct {
	Center Point
	Width  float64 // Extent along the angle
	Height float64 // Extent perpendicular to the angle
	Angle  float64 // Radians
}

// Area returns the absolute area of the polygon described by the point list.
func (pl PList) Area() float64 {
	return math.Abs(pl.signedArea())
}

func (pl PList) signedArea() float64 {
	var a float64
	for i := range pl {
		j := (i + 1) % len(pl)
		a += pl[i].Cross(pl[j])
	}
	return a / 2
}

// Moments returns the polygon moments using Green's theorem, normalised
// so that M00 is positive regardless of the winding direction.
func (pl PList) Moments() Moments {
	var m Moments
	for i := range pl {
		p := pl[i]
		q := pl[(i+1)%len(pl)]
		c := p.Cross(q)
		m.M00 += c
		m.M10 += (p.X + q.X) * c
		m.M01 += (p.Y + q.Y) * c
	}
	m.M00 /= 2
	m.M10 /= 6
	m.M01 /= 6
	if m.M00 < 0 {
		m.M00, m.M10, m.M01 = -m.M00, -m.M10, -m.M01
	}
	return m
}

// Centroid returns the center of mass, and false if the polygon is degenerate.
func (m Moments) Centroid() (Point, bool) {
	if m.M00 == 0 {
		return Point{}, false
	}
	return Point{m.M10 / m.M00, m.M01 / m.M00}, true
}

// Hull returns the convex hull of the points in counter-clockwise order
// (as seen with Y upwards), without a repeated end point.
func (pl PList) Hull() PList {
	if len(pl) < 3 {
		return append(PList{}, pl...)
	}
	pts := append(PList{}, pl...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	turn := func(o, a, b Point) float64 {
		return a.Sub(o).Cross(b.Sub(o))
	}
	h := make(PList, 0, 2*len(pts))
	for _, p := range pts {
		for len(h) >= 2 && turn(h[len(h)-2], h[len(h)-1], p) <= 0 {
			h = h[:len(h)-1]
		}
		h = append(h, p)
	}
	lower := len(h) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(h) >= lower && turn(h[len(h)-2], h[len(h)-1], p) <= 0 {
			h = h[:len(h)-1]
		}
		h = append(h, p)
	}
	return h[:len(h)-1]
}

// MinAreaRect returns the smallest rectangle enclosing the points.
// One side of the minimum rectangle is always collinear with an edge
// of the convex hull, so each hull edge is tried in turn.
func (pl PList) MinAreaRect() RotatedRect {
	h := pl.Hull()
	switch len(h) {
	case 0:
		return RotatedRect{}
	case 1:
		return RotatedRect{Center: h[0]}
	case 2:
		d := h[1].Sub(h[0])
		return RotatedRect{Center: h[0].Add(h[1]).Scale(0.5), Width: d.Len(), Angle: math.Atan2(d.Y, d.X)}
	}
	best := RotatedRect{}
	bestArea := math.Inf(1)
	for i := range h {
		e := h[(i+1)%len(h)].Sub(h[i])
		l := e.Len()
		if l == 0 {
			continue
		}
		u := e.Scale(1 / l)
		n := Point{-u.Y, u.X}
		minU, maxU := math.Inf(1), math.Inf(-1)
		minN, maxN := math.Inf(1), math.Inf(-1)
		for _, p := range h {
			d := p.Sub(h[i])
			pu, pn := d.Dot(u), d.Dot(n)
			minU = math.Min(minU, pu)
			maxU = math.Max(maxU, pu)
			minN = math.Min(minN, pn)
			maxN = math.Max(maxN, pn)
		}
		area := (maxU - minU) * (maxN - minN)
		if area < bestArea {
			bestArea = area
			cu := (minU + maxU) / 2
			cn := (minN + maxN) / 2
			best = RotatedRect{
				Center: h[i].Add(u.Scale(cu)).Add(n.Scale(cn)),
				Width:  maxU - minU,
				Height: maxN - minN,
				Angle:  math.Atan2(u.Y, u.X),
			}
		}
	}
	return best
}

// Points returns the 4 corners of the rectangle.
func (r RotatedRect) Points() PList {
	u := Point{math.Cos(r.Angle), math.Sin(r.Angle)}.Scale(r.Width / 2)
	n := Point{-math.Sin(r.Angle), math.Cos(r.Angle)}.Scale(r.Height / 2)
	return PList{
		r.Center.Sub(u).Sub(n),
		r.Center.Add(u).Sub(n),
		r.Center.Add(u).Add(n),
		r.Center.Sub(u).Add(n),
	}
}

// Corners orders 4 points as TL, TR, BR, BL. The top left corner has
// the smallest X+Y, the bottom right the largest; of the remaining two,
// top right has the larger X-Y.
func Corners(pl PList) Quad {
	var q Quad
	if len(pl) != 4 {
		return q
	}
	pts := append(PList{}, pl...)
	sort.Slice(pts, func(i, j int) bool {
		return pts[i].X+pts[i].Y < pts[j].X+pts[j].Y
	})
	q[TL] = pts[0]
	q[BR] = pts[3]
	if pts[1].X-pts[1].Y > pts[2].X-pts[2].Y {
		q[TR], q[BL] = pts[1], pts[2]
	} else {
		q[TR], q[BL] = pts[2], pts[1]
	}
	return q
}
