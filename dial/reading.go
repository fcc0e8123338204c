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

package dial

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// DateFormat is the layout of the reading date field.
const DateFormat = "2006-01-02 15:04:05"

// Reading is the decoded value of one meter image.
type Reading struct {
	Approx      float64             // Sum of floored dial values
	Precise     float64             // As Approx, with the precise dial's fraction retained
	Calibration map[float64]float64 // Calibration dial factor to value
	Timestamp   time.Time
	Source      string
	Partial     bool      // The total is missing some dials
	Missing     []float64 // Factors of the dials not read
	Problems    []error   // Per dial problems
}

type jsonReading struct {
	Approx   float64            `json:"approx"`
	Reading  float64            `json:"reading"`
	Test     map[string]float64 `json:"test"`
	Date     string             `json:"date"`
	ImageSrc string             `json:"imagesrc"`
	Partial  bool               `json:"partial,omitempty"`
	Missing  []float64          `json:"missing,omitempty"`
}

// FactorKey formats a dial factor as used in JSON keys and counter names.
func FactorKey(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Factors returns the calibration factors in ascending order.
func (r *Reading) Factors() []float64 {
	var f []float64
	for k := range r.Calibration {
		f = append(f, k)
	}
	sort.Float64s(f)
	return f
}

func (r *Reading) MarshalJSON() ([]byte, error) {
	j := jsonReading{
		Approx:   r.Approx,
		Reading:  r.Precise,
		Test:     make(map[string]float64),
		Date:     r.Timestamp.Format(DateFormat),
		ImageSrc: r.Source,
		Partial:  r.Partial,
		Missing:  r.Missing,
	}
	for f, v := range r.Calibration {
		j.Test[FactorKey(f)] = v
	}
	return json.Marshal(&j)
}

// UnmarshalJSON decodes a reading. The date is interpreted as local time.
func (r *Reading) UnmarshalJSON(b []byte) error {
	var j struct {
		jsonReading
		Reading *float64 `json:"reading"`
	}
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	if j.Reading == nil {
		return fmt.Errorf("missing reading value")
	}
	ts, err := time.ParseInLocation(DateFormat, j.Date, time.Local)
	if err != nil {
		return fmt.Errorf("date %q: %w", j.Date, err)
	}
	*r = Reading{
		Approx:      j.Approx,
		Precise:     *j.Reading,
		Calibration: make(map[float64]float64),
		Timestamp:   ts,
		Source:      j.ImageSrc,
		Partial:     j.Partial,
		Missing:     j.Missing,
	}
	for k, v := range j.Test {
		f, err := strconv.ParseFloat(k, 64)
		if err != nil {
			return fmt.Errorf("test dial %q: %w", k, err)
		}
		r.Calibration[f] = v
	}
	return nil
}
