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

// package dial converts needle angles into dial values, and composes
// the values of a set of linked decade dials into a cumulative reading.
//
// Each dial has a factor (its decimal place value), a position in the
// rectified meter frame, a sense of rotation and a role:
//
//	Digit        floored and added to the total
//	Precise      added to the total with its fraction retained
//	Calibration  a small scale test dial, reported separately
//
// Dials are physically geared together, so a finer dial completing a
// revolution advances the next coarser dial by one unit. Near a unit
// boundary the coarser needle may appear to have crossed (or not) before
// the finer dial has, so each coarser dial is reconciled against its
// finer neighbour before being floored.
package dial

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/aamcrae/DialMeter/geom"
)

type Role int

const (
	Digit Role = iota
	Precise
	Calibration
)

func (r Role) String() string {
	switch r {
	case Digit:
		return "digit"
	case Precise:
		return "precise"
	case Calibration:
		return "calibration"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

type Sense int

const (
	Clockwise Sense = iota
	CounterClockwise
)

// Spec is the static description of one dial.
type Spec struct {
	Factor float64
	Center geom.Point
	Sense  Sense
	Role   Role
}

// DialConfig is the YAML form of a Spec.
type DialConfig struct {
	Factor      float64
	Center      [2]float64
	Clockwise   bool
	Precise     bool
	Calibration bool
}

// Spec converts the configuration into a dial Spec.
func (c DialConfig) Spec() (Spec, error) {
	s := Spec{Factor: c.Factor, Center: geom.Pt(c.Center[0], c.Center[1])}
	if c.Factor <= 0 {
		return s, fmt.Errorf("dial factor %g: must be positive", c.Factor)
	}
	if !c.Clockwise {
		s.Sense = CounterClockwise
	}
	switch {
	case c.Precise && c.Calibration:
		return s, fmt.Errorf("dial %g: cannot be both precise and calibration", c.Factor)
	case c.Precise:
		s.Role = Precise
	case c.Calibration:
		s.Role = Calibration
	}
	return s, nil
}

// Carry holds the epsilon pair, on the 0-10 dial scale, used
// for carry correction.
type Carry struct {
	Low  float64
	High float64
}

func (c Carry) Valid() error {
	if c.Low <= 0 || c.High >= 10 || c.Low >= c.High {
		return fmt.Errorf("carry thresholds %g, %g: need 0 < low < high < 10", c.Low, c.High)
	}
	return nil
}

// Observation is the measured angle of one dial's needle.
type Observation struct {
	Factor float64
	Angle  float64 // Radians, image coordinates
}

// Decoder converts observations into readings.
type Decoder struct {
	Trace bool
	Carry Carry
	dials []Spec // Ordered by ascending factor
}

// NewDecoder validates the dial set and creates a Decoder.
func NewDecoder(dials []Spec, carry Carry) (*Decoder, error) {
	if err := carry.Valid(); err != nil {
		return nil, err
	}
	d := &Decoder{Carry: carry, dials: append([]Spec{}, dials...)}
	sort.Slice(d.dials, func(i, j int) bool { return d.dials[i].Factor < d.dials[j].Factor })
	seen := make(map[float64]bool)
	var precise, counted int
	for _, s := range d.dials {
		if s.Factor <= 0 {
			return nil, fmt.Errorf("dial factor %g: must be positive", s.Factor)
		}
		if seen[s.Factor] {
			return nil, fmt.Errorf("dial factor %g: duplicate", s.Factor)
		}
		seen[s.Factor] = true
		switch s.Role {
		case Precise:
			precise++
			counted++
		case Digit:
			counted++
		}
	}
	if precise > 1 {
		return nil, fmt.Errorf("%d precise dials configured, at most one allowed", precise)
	}
	if counted == 0 {
		return nil, fmt.Errorf("no counting dials configured")
	}
	return d, nil
}

// Dials returns the dials in ascending factor order.
func (d *Decoder) Dials() []Spec {
	return d.dials
}

// Value converts a needle angle to a dial value in the range [0, 10).
// The zero mark is straight up (-90 degrees in image coordinates) and each
// unit is 36 degrees. A counterclockwise dial reads 10 minus the clockwise
// value.
func Value(angle float64, sense Sense) float64 {
	deg := math.Mod(angle*180/math.Pi+90, 360)
	if deg < 0 {
		deg += 360
	}
	v := deg / 36
	if sense == CounterClockwise {
		v = 10 - v
	}
	// Rounding of angles just short of the zero mark, or a counterclockwise
	// needle on the mark, give 10.
	if v >= 10 {
		v -= 10
	}
	return v
}

// Correct reconciles a dial value with the value of its finer neighbour.
// If this dial is just past an integer while the finer dial has not yet
// wrapped, the value is moved to just below the integer. If this dial is
// just short of an integer while the finer dial has already wrapped, the
// value is moved to just above the next integer.
func (c Carry) Correct(v, finer float64) float64 {
	tenth := (v - math.Floor(v)) * 10
	if tenth < c.Low && finer > c.High {
		f := math.Floor(v)
		return math.Nextafter(f, f-1)
	}
	if finer < c.Low && tenth > c.High {
		f := math.Ceil(v)
		return math.Nextafter(f, f+1)
	}
	return v
}

// Decode composes the observations into a Reading. Dials without an
// observation are listed as missing. The reading is partial if a
// missing dial contributes to the total.
// Observations for unknown dials are ignored.
func (d *Decoder) Decode(obs []Observation) *Reading {
	angles := make(map[float64]float64)
	for _, o := range obs {
		angles[o.Factor] = o.Angle
	}
	r := &Reading{Calibration: make(map[float64]float64)}
	var finer float64
	haveFiner := false
	for _, s := range d.dials {
		a, ok := angles[s.Factor]
		if !ok {
			r.Missing = append(r.Missing, s.Factor)
			if s.Role != Calibration {
				// No carry information across a missing dial.
				haveFiner = false
				r.Partial = true
			}
			continue
		}
		v := Value(a, s.Sense)
		if s.Role == Calibration {
			r.Calibration[s.Factor] = v * s.Factor
			continue
		}
		if haveFiner {
			cv := d.Carry.Correct(v, finer)
			if d.Trace && cv != v {
				log.Printf("dial %g: carry corrected %g -> %g (finer %g)", s.Factor, v, cv, finer)
			}
			v = cv
		}
		r.Approx += math.Floor(v) * s.Factor
		if s.Role == Precise {
			r.Precise += v * s.Factor
		} else {
			r.Precise += math.Floor(v) * s.Factor
		}
		if d.Trace {
			log.Printf("dial %g: angle %.4f value %.4f", s.Factor, a, v)
		}
		finer = v
		haveFiner = true
	}
	return r
}
