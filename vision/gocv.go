//go:build gocv

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

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/aamcrae/DialMeter/geom"
)

// OpenCV is a Processor backed by gocv. It is only built with the gocv tag.
type OpenCV struct {
}

func init() {
	Register("opencv", func() Processor { return &OpenCV{} })
}

func (o *OpenCV) Bright(img image.Image, level uint8) ([]geom.PList, error) {
	gray, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()
	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(gray, &thresh, float32(level), 255, gocv.ThresholdBinary)
	return contourList(thresh), nil
}

func (o *OpenCV) Needles(img image.Image, block int, offset float64) ([]geom.PList, error) {
	gray, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()
	thresh := gocv.NewMat()
	defer thresh.Close()
	// Inverted so the dark needles are the foreground.
	gocv.AdaptiveThreshold(gray, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, block, float32(offset))
	return contourList(thresh), nil
}

func (o *OpenCV) Warp(img image.Image, quad geom.Quad, w, h int) (image.Image, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("image conversion: %w", err)
	}
	defer src.Close()
	var from []gocv.Point2f
	for _, p := range quad {
		from = append(from, gocv.Point2f{X: float32(p.X), Y: float32(p.Y)})
	}
	to := []gocv.Point2f{{X: 0, Y: 0}, {X: float32(w), Y: 0}, {X: float32(w), Y: float32(h)}, {X: 0, Y: float32(h)}}
	fv := gocv.NewPoint2fVectorFromPoints(from)
	defer fv.Close()
	tv := gocv.NewPoint2fVectorFromPoints(to)
	defer tv.Close()
	m := gocv.GetPerspectiveTransform2f(fv, tv)
	defer m.Close()
	if m.Empty() {
		return nil, fmt.Errorf("degenerate quadrilateral %v", quad)
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpPerspective(src, &dst, m, image.Pt(w, h))
	return dst.ToImage()
}

func grayMat(img image.Image) (gocv.Mat, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("image conversion: %w", err)
	}
	defer src.Close()
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

func contourList(m gocv.Mat) []geom.PList {
	cv := gocv.FindContours(m, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer cv.Close()
	var cl []geom.PList
	for i := 0; i < cv.Size(); i++ {
		var pl geom.PList
		for _, p := range cv.At(i).ToPoints() {
			pl = append(pl, geom.Pt(float64(p.X), float64(p.Y)))
		}
		cl = append(cl, pl)
	}
	return cl
}
