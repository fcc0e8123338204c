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
	"image/color"
	"strings"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/geom"
)

var (
	colMatched   = color.RGBA{255, 0, 0, 255}
	colUnmatched = color.RGBA{255, 199, 0, 255}
	colRejected  = color.RGBA{0, 199, 255, 255}
	colRay       = color.RGBA{55, 220, 0, 255}
	colMean      = color.RGBA{255, 0, 255, 255}
	colBox       = color.RGBA{0, 126, 255, 255}
	colCentroid  = color.RGBA{0, 226, 0, 255}
)

const rayLength = 40

// Annotate draws the located needles over the rectified frame, with
// a caption of the reading.
func Annotate(res *Result) image.Image {
	c := gg.NewContextForImage(res.Frame)
	poly := func(pl geom.PList, col color.Color, w float64) {
		if len(pl) == 0 {
			return
		}
		c.NewSubPath()
		for _, p := range pl {
			c.LineTo(p.X, p.Y)
		}
		c.ClosePath()
		c.SetColor(col)
		c.SetLineWidth(w)
		c.Stroke()
	}
	dot := func(p geom.Point, col color.Color) {
		c.DrawCircle(p.X, p.Y, 3)
		c.SetColor(col)
		c.SetLineWidth(2)
		c.Stroke()
	}
	if res.Match != nil {
		for _, pl := range res.Match.Unmatched {
			poly(pl, colUnmatched, 1)
		}
		for _, pl := range res.Match.Rejected {
			poly(pl, colRejected, 1)
		}
		for _, n := range res.Match.Needles {
			poly(n.Contour, colMatched, 2)
			if n.Orient == nil {
				continue
			}
			poly(n.Orient.Box.Points(), colMatched, 2)
			tip := n.Orient.Tip(n.Centroid, rayLength)
			c.DrawLine(n.Centroid.X, n.Centroid.Y, tip.X, tip.Y)
			c.SetColor(colRay)
			c.SetLineWidth(3)
			c.Stroke()
			dot(n.Orient.Axis.Mean, colMean)
			dot(n.Orient.Box.Center, colBox)
			dot(n.Centroid, colCentroid)
		}
	}
	if res.Reading != nil {
		c.SetFontFace(basicfont.Face7x13)
		c.SetColor(color.Black)
		c.DrawString(Caption(res.Reading), 0, 15)
	}
	return c.Image()
}

// Caption is the text summary of a reading.
func Caption(r *dial.Reading) string {
	var test []string
	for _, f := range r.Factors() {
		test = append(test, fmt.Sprintf("%s: %.3f", dial.FactorKey(f), r.Calibration[f]))
	}
	s := fmt.Sprintf("%s - [%g, %g, {%s}]", r.Timestamp.Format(dial.DateFormat), r.Approx, r.Precise, strings.Join(test, ", "))
	if r.Partial {
		s += " partial"
	}
	return s
}
