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
	"fmt"
	"image"
	"log"

	"github.com/aamcrae/lcd"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/geom"
	"github.com/aamcrae/DialMeter/vision"
)

// Rectifier finds the meter face in a raw image and warps it onto
// the canonical frame.
type Rectifier struct {
	Trace     bool
	proc      vision.Processor
	mode      string
	threshold uint8
	minArea   float64
	rotate    float64
	anchors   geom.Quad
	width     int
	height    int
}

// Housing is the located meter face.
type Housing struct {
	Contour geom.PList // Bright region, empty for fixed anchors
	Box     geom.Quad  // Corners mapped onto the frame
}

// Rectify returns the rectified frame and the housing it was taken from.
func (r *Rectifier) Rectify(img image.Image) (image.Image, *Housing, error) {
	if r.rotate != 0 {
		img = lcd.RotateImage(img, r.rotate)
	}
	h := &Housing{}
	switch r.mode {
	case ModeAnchors:
		h.Box = r.anchors
	default:
		cl, err := r.proc.Bright(img, r.threshold)
		if err != nil {
			return nil, nil, err
		}
		var best geom.PList
		var bestArea float64
		for _, c := range cl {
			if a := c.Area(); a > bestArea {
				best, bestArea = c, a
			}
		}
		if bestArea == 0 {
			return nil, nil, &dial.CalibrationError{Reason: fmt.Sprintf("no region brighter than %d", r.threshold)}
		}
		if bestArea < r.minArea {
			return nil, nil, &dial.CalibrationError{Reason: fmt.Sprintf("largest bright region area %g below %g", bestArea, r.minArea)}
		}
		box := best.MinAreaRect()
		if r.Trace {
			log.Printf("Housing: %d contours, largest area %g, box %v %gx%g", len(cl), bestArea, box.Center, box.Width, box.Height)
		}
		h.Contour = best
		h.Box = geom.Corners(box.Points())
	}
	out, err := r.proc.Warp(img, h.Box, r.width, r.height)
	if err != nil {
		return nil, nil, &dial.CalibrationError{Reason: err.Error()}
	}
	return out, h, nil
}
