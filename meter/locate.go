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
	"log"
	"sort"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/geom"
)

// Locator matches needle contours to the configured dials.
type Locator struct {
	Trace    bool
	dials    []dial.Spec
	minArea  float64
	maxArea  float64
	distance float64
}

// Needle is a contour matched to a dial.
type Needle struct {
	Factor   float64
	Contour  geom.PList
	Centroid geom.Point
	Orient   *Orientation
}

// Match is the result of locating the needles in one frame.
type Match struct {
	Needles   map[float64]*Needle
	Unmatched []geom.PList // Needle sized contours not near any dial
	Rejected  []geom.PList // Contours belonging to ambiguous dials
	Problems  []error
}

// Locate filters the contours by area, and assigns each remaining contour
// to the dial whose center is near its centroid. A dial with more than one
// needle, or a needle near more than one dial, is ambiguous and its
// needles are rejected.
func (l *Locator) Locate(contours []geom.PList) *Match {
	m := &Match{Needles: make(map[float64]*Needle)}
	ambiguous := make(map[float64]*dial.AmbiguousDialError)
	flag := func(e *dial.AmbiguousDialError) {
		if _, ok := ambiguous[e.Factor]; !ok {
			ambiguous[e.Factor] = e
		}
	}
	for _, c := range contours {
		area := c.Area()
		if area <= l.minArea || area >= l.maxArea {
			continue
		}
		centroid, ok := c.Moments().Centroid()
		if !ok {
			continue
		}
		var near []float64
		for _, d := range l.dials {
			if centroid.Dist(d.Center) < l.distance {
				near = append(near, d.Factor)
			}
		}
		switch len(near) {
		case 0:
			m.Unmatched = append(m.Unmatched, c)
			continue
		case 1:
		default:
			for _, f := range near {
				var others []float64
				for _, o := range near {
					if o != f {
						others = append(others, o)
					}
				}
				flag(&dial.AmbiguousDialError{Factor: f, Candidates: others})
			}
			m.Rejected = append(m.Rejected, c)
			continue
		}
		f := near[0]
		if _, ok := m.Needles[f]; ok {
			flag(&dial.AmbiguousDialError{Factor: f, Duplicate: true})
			m.Rejected = append(m.Rejected, c)
			continue
		}
		if l.Trace {
			log.Printf("Needle for dial %g: area %g, centroid %v", f, area, centroid)
		}
		m.Needles[f] = &Needle{Factor: f, Contour: c, Centroid: centroid}
	}
	var factors []float64
	for f := range ambiguous {
		factors = append(factors, f)
	}
	sort.Float64s(factors)
	for _, f := range factors {
		if n, ok := m.Needles[f]; ok {
			m.Rejected = append(m.Rejected, n.Contour)
			delete(m.Needles, f)
		}
		m.Problems = append(m.Problems, ambiguous[f])
	}
	return m
}
