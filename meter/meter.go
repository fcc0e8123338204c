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

// package meter reads an image of an analog multi-dial meter.
// The package is configured as the 'meter' section of the main
// config file:
//
//	meter:
//	  processor: native      # Image processor, native (default) or opencv
//	  width: 400             # Size of the rectified frame
//	  height: 225
//	  frame:
//	    mode: largest        # largest (default) or anchors
//	    threshold: 248       # Housing brightness threshold (0 is valid)
//	    minarea: 0           # Optional minimum housing area
//	    rotate: 0            # Optional rotation (degrees clockwise)
//	    anchors: [[x, y], [x, y], [x, y], [x, y]]  # TL, TR, BR, BL
//	  needles:
//	    block: 11            # Adaptive threshold block size
//	    offset: 2            # Adaptive threshold offset (0 is valid)
//	    area: [300, 700]     # Needle contour area band (required)
//	    distance: 45         # Max distance of needle centroid from dial center
//	  carry: [3, 7]          # Carry correction low/high thresholds (required)
//	  dials:
//	    - factor: 100
//	      center: [317, 83]
//	      clockwise: true
//	      precise: true
//	    - factor: 0.2
//	      center: [153, 174]
//	      calibration: true
package meter

import (
	"fmt"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/geom"
	"github.com/aamcrae/DialMeter/lib"
	"github.com/aamcrae/DialMeter/vision"
)

type FrameConfig struct {
	Mode      string
	Threshold *int
	MinArea   float64
	Rotate    float64
	Anchors   [][2]float64
}

type NeedleConfig struct {
	Block    int
	Offset   *float64
	Area     []float64
	Distance float64
}

type MeterConfig struct {
	Processor string
	Width     int
	Height    int
	Frame     FrameConfig
	Needles   NeedleConfig
	Carry     []float64
	Dials     []dial.DialConfig
}

const (
	defaultWidth     = 400
	defaultHeight    = 225
	defaultThreshold = 248
	defaultBlock     = 11
	defaultOffset    = 2
	defaultDistance  = 45
)

const (
	ModeLargest = "largest"
	ModeAnchors = "anchors"
)

// NewReader validates the configuration and creates a Reader.
func NewReader(conf *MeterConfig, trace bool) (*Reader, error) {
	proc, err := vision.New(conf.Processor)
	if err != nil {
		return nil, err
	}
	if len(conf.Carry) != 2 {
		return nil, fmt.Errorf("meter: carry must be a [low, high] pair")
	}
	if len(conf.Needles.Area) != 2 || conf.Needles.Area[0] >= conf.Needles.Area[1] {
		return nil, fmt.Errorf("meter: needles area must be a [min, max] pair")
	}
	var specs []dial.Spec
	for _, dc := range conf.Dials {
		s, err := dc.Spec()
		if err != nil {
			return nil, fmt.Errorf("meter: %w", err)
		}
		specs = append(specs, s)
	}
	dec, err := dial.NewDecoder(specs, dial.Carry{Low: conf.Carry[0], High: conf.Carry[1]})
	if err != nil {
		return nil, fmt.Errorf("meter: %w", err)
	}
	dec.Trace = trace
	rect, err := newRectifier(proc, &conf.Frame,
		lib.ConfigOrDefault(conf.Width, defaultWidth),
		lib.ConfigOrDefault(conf.Height, defaultHeight))
	if err != nil {
		return nil, err
	}
	rect.Trace = trace
	block := lib.ConfigOrDefault(conf.Needles.Block, defaultBlock)
	if block < 3 || block%2 == 0 {
		return nil, fmt.Errorf("meter: needles block %d must be odd and at least 3", block)
	}
	loc := &Locator{
		Trace:    trace,
		dials:    dec.Dials(),
		minArea:  conf.Needles.Area[0],
		maxArea:  conf.Needles.Area[1],
		distance: lib.ConfigOrDefault(conf.Needles.Distance, defaultDistance),
	}
	return &Reader{
		Trace:  trace,
		proc:   proc,
		rect:   rect,
		loc:    loc,
		dec:    dec,
		block:  block,
		offset: lib.SetOrDefault(conf.Needles.Offset, defaultOffset),
	}, nil
}

func newRectifier(proc vision.Processor, fc *FrameConfig, w, h int) (*Rectifier, error) {
	r := &Rectifier{
		proc:    proc,
		mode:    lib.ConfigOrDefault(fc.Mode, ModeLargest),
		minArea: fc.MinArea,
		rotate:  fc.Rotate,
		width:   w,
		height:  h,
	}
	th := lib.SetOrDefault(fc.Threshold, defaultThreshold)
	if th < 0 || th > 255 {
		return nil, fmt.Errorf("meter: frame threshold %d out of range", th)
	}
	r.threshold = uint8(th)
	switch r.mode {
	case ModeLargest:
	case ModeAnchors:
		if len(fc.Anchors) != 4 {
			return nil, fmt.Errorf("meter: anchors mode needs 4 anchor points, have %d", len(fc.Anchors))
		}
		for i, a := range fc.Anchors {
			r.anchors[i] = geom.Pt(a[0], a[1])
		}
	default:
		return nil, fmt.Errorf("meter: unknown frame mode %q", r.mode)
	}
	return r, nil
}
