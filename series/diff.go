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

package series

import (
	"fmt"
	"time"
)

// Sample is one observation of a counter.
type Sample struct {
	Value      float64
	Time       time.Time
	Reading    float64 // Full precision meter total, if HasReading
	HasReading bool
}

// DeltaRecord is the change of a counter between two samples.
type DeltaRecord struct {
	Counter      string
	Value        float64
	Delta        float64
	DeltaTime    float64 // Seconds
	Rate         float64 // Per second
	Time         time.Time
	Reading      float64
	DeltaReading float64
	HasReading   bool
}

// Differencer derives deltas from a time ordered stream of samples of
// one counter. The counter is assumed to never decrease, modulo one
// revolution of the dial (10 units). A change of more than the jitter
// fraction of a revolution in either direction is taken as a wrap
// (forward past zero, or backwards jitter across zero) and corrected by
// one revolution. Only positive deltas are emitted; the baseline is
// advanced only when a delta is emitted, so that small backward jitter
// does not accumulate.
type Differencer struct {
	Name      string
	Jitter    float64
	unitWidth float64
	last      Sample
	valid     bool
}

// NewDifferencer creates a Differencer for a counter whose dial unit is unit,
// restoring the baseline from checkpoint data if present.
func NewDifferencer(name string, unit, jitter float64, cp string) *Differencer {
	d := &Differencer{Name: name, Jitter: jitter, unitWidth: 10 * unit}
	if len(cp) != 0 {
		var sec int64
		var r float64
		n, _ := fmt.Sscanf(cp, "%g %d %g", &d.last.Value, &sec, &r)
		if n >= 2 && sec != 0 {
			d.last.Time = time.Unix(sec, 0)
			d.valid = true
			if n == 3 {
				d.last.Reading = r
				d.last.HasReading = true
			}
		}
	}
	return d
}

// Delta returns the change from last to v, corrected for wrapping.
func (d *Differencer) Delta(v, last float64) float64 {
	delta := v - last
	if delta < -d.Jitter*d.unitWidth {
		// Turned over from max to 0.
		delta += d.unitWidth
	} else if delta > d.Jitter*d.unitWidth {
		// Jittered back below zero.
		delta -= d.unitWidth
	}
	return delta
}

// Update processes a new sample, returning a record if the
// counter has advanced.
func (d *Differencer) Update(s Sample) *DeltaRecord {
	if !d.valid {
		d.last = s
		d.valid = true
		return nil
	}
	delta := d.Delta(s.Value, d.last.Value)
	dt := s.Time.Sub(d.last.Time).Seconds()
	if delta <= 0 || dt <= 0 {
		return nil
	}
	r := &DeltaRecord{
		Counter:   d.Name,
		Value:     s.Value,
		Delta:     delta,
		DeltaTime: dt,
		Rate:      delta / dt,
		Time:      s.Time,
	}
	if s.HasReading && d.last.HasReading {
		r.Reading = s.Reading
		r.DeltaReading = s.Reading - d.last.Reading
		r.HasReading = true
	}
	d.last = s
	return r
}

// Last returns the current baseline.
func (d *Differencer) Last() (Sample, bool) {
	return d.last, d.valid
}

// Checkpoint returns the baseline in checkpoint form.
func (d *Differencer) Checkpoint() string {
	if !d.valid {
		return ""
	}
	if d.last.HasReading {
		return fmt.Sprintf("%g %d %g", d.last.Value, d.last.Time.Unix(), d.last.Reading)
	}
	return fmt.Sprintf("%g %d", d.last.Value, d.last.Time.Unix())
}
