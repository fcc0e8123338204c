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

// package series converts a sequence of meter readings into delta and
// rate records for one or more counters. The package is configured as
// the 'series' section of the main config file:
//
//	series:
//	  jitter: 0.5            # Fraction of a revolution treated as a wrap
//	  checkpoint: /var/lib/dialmeter/series.cp   # Optional baseline file
//	  counters:
//	    - name: total        # Meter total (precise reading)
//	      unit: 100          # Factor of the dial that wraps (required for totals)
//	    - name: "0.2"        # A calibration dial, unit defaults to the factor
//
// Each counter is differenced independently, strictly in time order.
package series

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"sync"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/lib"
)

const (
	Total  = "total"  // Meter total with the precise dial fraction
	Approx = "approx" // Meter total of floored dials
)

const defaultJitter = 0.5

type CounterConfig struct {
	Name string
	Unit float64
}

type SeriesConfig struct {
	Jitter     float64
	Checkpoint string
	Counters   []CounterConfig
}

// Counter selects one value from a reading.
type Counter struct {
	Name   string
	Unit   float64
	factor float64 // Calibration dial factor, 0 for totals
}

// NewCounter validates the counter configuration.
func NewCounter(c CounterConfig) (Counter, error) {
	ct := Counter{Name: c.Name, Unit: c.Unit}
	switch c.Name {
	case Total, Approx:
		if c.Unit <= 0 {
			return ct, fmt.Errorf("counter %s: unit required", c.Name)
		}
	default:
		f, err := strconv.ParseFloat(c.Name, 64)
		if err != nil || f <= 0 {
			return ct, fmt.Errorf("counter %q: must be %s, %s or a calibration dial factor", c.Name, Total, Approx)
		}
		ct.factor = f
		ct.Name = dial.FactorKey(f)
		ct.Unit = lib.ConfigOrDefault(c.Unit, f)
	}
	return ct, nil
}

// Sample extracts the counter's value from the reading. Totals are not
// available from partial readings.
func (c Counter) Sample(r *dial.Reading) (Sample, bool) {
	s := Sample{Time: r.Timestamp, Reading: r.Precise, HasReading: !r.Partial}
	switch {
	case c.factor != 0:
		v, ok := r.Calibration[c.factor]
		s.Value = v
		return s, ok
	case r.Partial:
		return s, false
	case c.Name == Approx:
		s.Value = r.Approx
	default:
		s.Value = r.Precise
	}
	return s, true
}

// Series holds the differencers of a set of counters.
type Series struct {
	Trace    bool
	counters []Counter
	diffs    []*Differencer
}

// New creates a Series, restoring baselines from the checkpoint data.
func New(conf *SeriesConfig, cp map[string]string) (*Series, error) {
	if len(conf.Counters) == 0 {
		return nil, fmt.Errorf("series: no counters configured")
	}
	jitter := lib.ConfigOrDefault(conf.Jitter, defaultJitter)
	if jitter <= 0 || jitter >= 1 {
		return nil, fmt.Errorf("series: jitter %g must be between 0 and 1", jitter)
	}
	s := &Series{}
	seen := make(map[string]bool)
	for _, cc := range conf.Counters {
		c, err := NewCounter(cc)
		if err != nil {
			return nil, fmt.Errorf("series: %w", err)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("series: duplicate counter %s", c.Name)
		}
		seen[c.Name] = true
		s.counters = append(s.counters, c)
		s.diffs = append(s.diffs, NewDifferencer(c.Name, c.Unit, jitter, cp[c.Name]))
	}
	return s, nil
}

// Counters returns the configured counters.
func (s *Series) Counters() []Counter {
	return s.counters
}

// Add feeds one reading to all counters, returning any new records.
// Readings must be added in time order.
func (s *Series) Add(r *dial.Reading) []*DeltaRecord {
	var recs []*DeltaRecord
	for i, c := range s.counters {
		if rec := s.update(i, c, r); rec != nil {
			recs = append(recs, rec)
		}
	}
	return recs
}

func (s *Series) update(i int, c Counter, r *dial.Reading) *DeltaRecord {
	smp, ok := c.Sample(r)
	if !ok {
		if s.Trace {
			log.Printf("%s: no value for counter %s", r.Source, c.Name)
		}
		return nil
	}
	rec := s.diffs[i].Update(smp)
	if s.Trace && rec != nil {
		log.Printf("%s: counter %s delta %g over %gs", r.Source, c.Name, rec.Delta, rec.DeltaTime)
	}
	return rec
}

// Process sorts the readings by time and differences each counter
// concurrently. The records are returned in time order.
func (s *Series) Process(readings []*dial.Reading) []*DeltaRecord {
	sorted := append([]*dial.Reading{}, readings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	out := make([][]*DeltaRecord, len(s.counters))
	var wg sync.WaitGroup
	for i, c := range s.counters {
		wg.Add(1)
		go func(i int, c Counter) {
			defer wg.Done()
			for _, r := range sorted {
				if rec := s.update(i, c, r); rec != nil {
					out[i] = append(out[i], rec)
				}
			}
		}(i, c)
	}
	wg.Wait()
	var recs []*DeltaRecord
	for _, o := range out {
		recs = append(recs, o...)
	}
	// Stable, so that records at the same time stay in counter order.
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Time.Before(recs[j].Time)
	})
	return recs
}

// Checkpoint returns the baselines of all counters.
func (s *Series) Checkpoint() map[string]string {
	cp := make(map[string]string)
	for _, d := range s.diffs {
		if v := d.Checkpoint(); len(v) != 0 {
			cp[d.Name] = v
		}
	}
	return cp
}

// DecodeReadings reads newline delimited JSON readings. Lines that
// cannot be decoded are reported to warn (if not nil) and skipped.
func DecodeReadings(rd io.Reader, warn func(line int, err error)) ([]*dial.Reading, error) {
	var readings []*dial.Reading
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		r := new(dial.Reading)
		if err := json.Unmarshal(b, r); err != nil {
			if warn != nil {
				warn(lineno, err)
			}
			continue
		}
		readings = append(readings, r)
	}
	return readings, sc.Err()
}
