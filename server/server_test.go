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

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/series"
)

func TestServer(t *testing.T) {
	st := NewStatus()
	ts := time.Date(2022, 8, 9, 17, 0, 0, 0, time.Local)
	st.Reading(&dial.Reading{Approx: 1000, Precise: 1000.25, Calibration: map[float64]float64{0.2: 1.5}, Timestamp: ts, Source: "a.jpg"})
	st.Skipped("b.jpg", errors.New("no housing"))
	st.Record(&series.DeltaRecord{Counter: "0.2", Value: 1.5, Delta: 0.5, DeltaTime: 60, Rate: 0.5 / 60, Time: ts})
	st.Record(&series.DeltaRecord{Counter: "0.2", Value: 1.75, Delta: 0.25, DeltaTime: 60, Rate: 0.25 / 60, Time: ts.Add(time.Minute)})
	srv := httptest.NewServer(New(0, st).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api")
	if err != nil {
		t.Fatalf("api: %v", err)
	}
	var d struct {
		Images   int
		Skipped  int
		Reading  map[string]interface{}
		Counters map[string]Item
	}
	err = json.NewDecoder(resp.Body).Decode(&d)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("api decode: %v", err)
	}
	if d.Images != 1 || d.Skipped != 1 {
		t.Errorf("api: got images %d skipped %d, want 1 and 1", d.Images, d.Skipped)
	}
	if v, ok := d.Reading["reading"].(float64); !ok || v != 1000.25 {
		t.Errorf("api reading: got %v", d.Reading)
	}
	if c, ok := d.Counters["0.2"]; !ok || c.Value != 1.75 || c.Delta != 0.25 {
		t.Errorf("api counter: got %v", d.Counters)
	}

	resp, err = http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var b bytes.Buffer
	_, err = b.ReadFrom(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"1 images read, 1 skipped", "b.jpg: no housing", "<td><bold>0.2</bold></td>"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("status page: missing %q", want)
		}
	}

	resp, err = http.Get(srv.URL + "/other")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/other: got status %d want %d", resp.StatusCode, http.StatusNotFound)
	}
}
