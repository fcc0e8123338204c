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
	"encoding/json"
	"fmt"
	"time"

	"github.com/aamcrae/DialMeter/dial"
)

type jsonRecord struct {
	Counter      string   `json:"counter,omitempty"`
	Reading      *float64 `json:"reading,omitempty"`
	Value        float64  `json:"val"`
	Delta        float64  `json:"delta"`
	DeltaTime    float64  `json:"delta_time"`
	DeltaReading *float64 `json:"delta_reading,omitempty"`
	Rate         float64  `json:"rate"`
	Date         string   `json:"date"`
	Timestamp    float64  `json:"timestamp"`
}

func (r *DeltaRecord) MarshalJSON() ([]byte, error) {
	j := jsonRecord{
		Counter:   r.Counter,
		Value:     r.Value,
		Delta:     r.Delta,
		DeltaTime: r.DeltaTime,
		Rate:      r.Rate,
		Date:      r.Time.Format(dial.DateFormat),
		Timestamp: float64(r.Time.UnixNano()) / 1e9,
	}
	if r.HasReading {
		j.Reading = &r.Reading
		j.DeltaReading = &r.DeltaReading
	}
	return json.Marshal(&j)
}

func (r *DeltaRecord) UnmarshalJSON(b []byte) error {
	var j jsonRecord
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	ts, err := time.ParseInLocation(dial.DateFormat, j.Date, time.Local)
	if err != nil {
		return fmt.Errorf("date %q: %w", j.Date, err)
	}
	*r = DeltaRecord{
		Counter:   j.Counter,
		Value:     j.Value,
		Delta:     j.Delta,
		DeltaTime: j.DeltaTime,
		Rate:      j.Rate,
		Time:      ts,
	}
	if j.Reading != nil && j.DeltaReading != nil {
		r.Reading = *j.Reading
		r.DeltaReading = *j.DeltaReading
		r.HasReading = true
	}
	return nil
}
