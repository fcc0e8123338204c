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
	"errors"
	"image"
	"log"
	"time"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/vision"
)

// Reader decodes meter images. A Reader holds no per image state and
// may be used concurrently.
type Reader struct {
	Trace  bool
	proc   vision.Processor
	rect   *Rectifier
	loc    *Locator
	dec    *dial.Decoder
	block  int
	offset float64
}

// Result holds the reading of one image and the intermediate geometry.
type Result struct {
	Reading *dial.Reading
	Frame   image.Image // Rectified frame
	Housing *Housing
	Match   *Match
}

// Read decodes the image. A CalibrationError is returned if the meter
// housing cannot be found. Problems with individual dials do not fail the
// read; the dial is left out and the reading is marked partial.
func (r *Reader) Read(img image.Image, ts time.Time, src string) (*Result, error) {
	frame, housing, err := r.rect.Rectify(img)
	if err != nil {
		return nil, err
	}
	cl, err := r.proc.Needles(frame, r.block, r.offset)
	if err != nil {
		return nil, err
	}
	m := r.loc.Locate(cl)
	var obs []dial.Observation
	for _, d := range r.dec.Dials() {
		n, ok := m.Needles[d.Factor]
		if !ok {
			continue
		}
		o, err := Orient(n.Contour, n.Centroid)
		if err != nil {
			log.Printf("%s: dial %g: %v", src, d.Factor, err)
			delete(m.Needles, d.Factor)
			m.Rejected = append(m.Rejected, n.Contour)
			continue
		}
		n.Orient = o
		obs = append(obs, dial.Observation{Factor: d.Factor, Angle: o.Angle})
	}
	rd := r.dec.Decode(obs)
	rd.Timestamp = ts
	rd.Source = src
	rd.Problems = append(rd.Problems, m.Problems...)
	for _, f := range rd.Missing {
		if !ambiguous(m.Problems, f) {
			rd.Problems = append(rd.Problems, &dial.MissingDialError{Factor: f})
		}
	}
	for _, p := range rd.Problems {
		log.Printf("%s: %v", src, p)
	}
	if r.Trace {
		log.Printf("%s: %d contours, %d needles, approx %g reading %g", src, len(cl), len(m.Needles), rd.Approx, rd.Precise)
	}
	return &Result{Reading: rd, Frame: frame, Housing: housing, Match: m}, nil
}

func ambiguous(problems []error, f float64) bool {
	for _, p := range problems {
		var ae *dial.AmbiguousDialError
		if errors.As(p, &ae) && ae.Factor == f {
			return true
		}
	}
	return false
}
