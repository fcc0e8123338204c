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

package meter

import (
	"math"

	"github.com/aamcrae/DialMeter/geom"
)

// Orientation is the directed angle of a needle.
type Orientation struct {
	Angle float64          // Radians, image coordinates
	Axis  geom.Axis        // Principal axis of the contour points
	Box   geom.RotatedRect // Minimum area bounding box
	Sign  float64          // +1 or -1, applied to the axis vector
}

// Orient finds the direction of the needle from the principal axis of its
// contour. The axis is ambiguous in sign; the needle's bounding box sits
// towards the tip, so the axis is pointed to the side of the centroid on
// which the box center lies.
func Orient(contour geom.PList, centroid geom.Point) (*Orientation, error) {
	axis, err := contour.PrincipalAxis()
	if err != nil {
		return nil, err
	}
	o := &Orientation{Axis: axis, Box: contour.MinAreaRect(), Sign: -1}
	// Signed offset of the box center from the line through the
	// centroid perpendicular to the axis.
	if o.Box.Center.Sub(centroid).Dot(axis.Vector) > 0 {
		o.Sign = 1
	}
	o.Angle = math.Atan2(axis.Vector.Y*o.Sign, axis.Vector.X*o.Sign)
	return o, nil
}

// Tip returns the point at distance l from the origin along the needle direction.
func (o *Orientation) Tip(origin geom.Point, l float64) geom.Point {
	return origin.Add(o.Axis.Vector.Scale(o.Sign * l))
}
