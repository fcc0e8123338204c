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
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aamcrae/DialMeter/geom"
)

func cmp(a, b float64) bool {
	return math.Abs(a-b) < 0.000001
}

// angle returns the needle angle in radians that points at value v
// on a clockwise dial.
func angle(v float64) float64 {
	return (v*36 - 90) * math.Pi / 180
}

func TestValue(t *testing.T) {
	tests := []struct {
		deg  float64
		want float64
	}{
		{-90, 0},
		{0, 2.5},
		{90, 5},
		{180, 7.5},
		{-180, 7.5},
		{-126, 9},
		{270, 0},
	}
	for _, tc := range tests {
		got := Value(tc.deg*math.Pi/180, Clockwise)
		if !cmp(got, tc.want) {
			t.Errorf("Value(%g): got %v want %v", tc.deg, got, tc.want)
		}
	}
}

func TestValuePeriodic(t *testing.T) {
	for a := -3.0; a < 3.0; a += 0.1 {
		v := Value(a, Clockwise)
		if v < 0 || v >= 10 {
			t.Errorf("Value(%g): %v out of range", a, v)
		}
		w := Value(a+2*math.Pi, Clockwise)
		if !cmp(math.Mod(v-w+10, 10), 0) && !cmp(math.Mod(v-w+10, 10), 10) {
			t.Errorf("Value periodic (%g): got %v and %v", a, v, w)
		}
		ccw := Value(a, CounterClockwise)
		if !cmp(math.Mod(10-v, 10), ccw) {
			t.Errorf("Value counterclockwise (%g): got %v want %v", a, ccw, 10-v)
		}
	}
}

func TestValueZeroMark(t *testing.T) {
	up := math.Atan2(-1, 0)
	for _, a := range []float64{up, math.Nextafter(up, -4)} {
		for _, s := range []Sense{Clockwise, CounterClockwise} {
			if v := Value(a, s); v < 0 || v >= 10 || !(cmp(v, 0) || cmp(v, 10)) {
				t.Errorf("Value(%v, %v): got %v want 0", a, s, v)
			}
		}
	}
	if v := Value(up, CounterClockwise); v != 0 {
		t.Errorf("Value counterclockwise zero: got %v want 0", v)
	}
}

func TestCarryCorrect(t *testing.T) {
	c := Carry{Low: 1, High: 9}
	tests := []struct {
		v, finer float64
		floor    float64
	}{
		{3.02, 9.97, 2}, // finer dial not yet wrapped
		{3.98, 0.05, 4}, // finer dial has wrapped
		{3.5, 9.97, 3},  // not near a boundary
		{3.02, 5.0, 3},  // finer dial mid revolution
		{3.98, 5.0, 3},
	}
	for _, tc := range tests {
		got := c.Correct(tc.v, tc.finer)
		if math.Floor(got) != tc.floor {
			t.Errorf("Correct(%g, %g): got %v (floor %g) want floor %g", tc.v, tc.finer, got, math.Floor(got), tc.floor)
		}
	}
	// Wider epsilon pair.
	c = Carry{Low: 3, High: 7}
	if got := c.Correct(6.25, 8); math.Floor(got) != 5 {
		t.Errorf("Correct wide: got %v want floor 5", got)
	}
}

func testDials() []Spec {
	return []Spec{
		{Factor: 1000, Center: geom.Pt(93, 83), Sense: CounterClockwise},
		{Factor: 100, Center: geom.Pt(172, 83), Sense: Clockwise},
		{Factor: 10, Center: geom.Pt(242, 83), Sense: CounterClockwise},
		{Factor: 1, Center: geom.Pt(317, 83), Sense: Clockwise, Role: Precise},
		{Factor: 0.05, Center: geom.Pt(68, 174), Sense: CounterClockwise, Role: Calibration},
		{Factor: 0.2, Center: geom.Pt(153, 174), Sense: CounterClockwise, Role: Calibration},
	}
}

func ccwAngle(v float64) float64 {
	return angle(10 - v)
}

func TestDecode(t *testing.T) {
	d, err := NewDecoder(testDials(), Carry{Low: 1, High: 9})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	r := d.Decode([]Observation{
		{1000, ccwAngle(1.5)},
		{100, angle(2.5)},
		{10, ccwAngle(3.5)},
		{1, angle(4.25)},
		{0.05, ccwAngle(6)},
		{0.2, ccwAngle(2.5)},
	})
	if r.Partial {
		t.Errorf("Decode: unexpected partial reading, missing %v", r.Missing)
	}
	if !cmp(r.Approx, 1234) {
		t.Errorf("Decode approx: got %v want 1234", r.Approx)
	}
	if !cmp(r.Precise, 1234.25) {
		t.Errorf("Decode precise: got %v want 1234.25", r.Precise)
	}
	if !cmp(r.Calibration[0.05], 0.3) || !cmp(r.Calibration[0.2], 0.5) {
		t.Errorf("Decode calibration: got %v", r.Calibration)
	}
}

func TestDecodeZeroDial(t *testing.T) {
	d, err := NewDecoder(testDials()[:4], Carry{Low: 1, High: 9})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	// Thousands dial (counterclockwise) exactly on the zero mark.
	r := d.Decode([]Observation{
		{1000, math.Atan2(-1, 0)},
		{100, angle(2.5)},
		{10, ccwAngle(3.5)},
		{1, angle(4.5)},
	})
	if !cmp(r.Approx, 234) || !cmp(r.Precise, 234.5) {
		t.Errorf("Decode: got approx %v precise %v want 234 and 234.5", r.Approx, r.Precise)
	}
}

func TestDecodeCarry(t *testing.T) {
	d, err := NewDecoder(testDials()[:4], Carry{Low: 1, High: 9})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	// The tens dial reads just past 3 while the units dial is at 9.97,
	// so the tens dial has not really reached 3 yet.
	r := d.Decode([]Observation{
		{1000, ccwAngle(1.5)},
		{100, angle(2.5)},
		{10, ccwAngle(3.02)},
		{1, angle(9.97)},
	})
	if !cmp(r.Approx, 1229) {
		t.Errorf("Decode carry approx: got %v want 1229", r.Approx)
	}
	if !cmp(r.Precise, 1229.97) {
		t.Errorf("Decode carry precise: got %v want 1229.97", r.Precise)
	}
	// Finer dial has wrapped but the tens dial has not quite reached 4.
	r = d.Decode([]Observation{
		{1000, ccwAngle(1.5)},
		{100, angle(2.5)},
		{10, ccwAngle(3.96)},
		{1, angle(0.05)},
	})
	if !cmp(r.Precise, 1240.05) {
		t.Errorf("Decode carry up: got %v want 1240.05", r.Precise)
	}
}

func TestDecodeMissing(t *testing.T) {
	d, err := NewDecoder(testDials(), Carry{Low: 1, High: 9})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	r := d.Decode([]Observation{
		{1000, ccwAngle(1.5)},
		{10, ccwAngle(3.02)},
		{1, angle(9.97)},
		{0.2, ccwAngle(2.5)},
	})
	if !r.Partial || len(r.Missing) != 2 || r.Missing[0] != 0.05 || r.Missing[1] != 100 {
		t.Errorf("Decode missing: got partial %v missing %v", r.Partial, r.Missing)
	}
	if !cmp(r.Approx, 1029) {
		t.Errorf("Decode missing approx: got %v want 1029", r.Approx)
	}
	if _, ok := r.Calibration[0.05]; ok {
		t.Errorf("Decode missing: unexpected calibration value for 0.05")
	}
}

func TestDecodeMissingCalibration(t *testing.T) {
	d, err := NewDecoder(testDials(), Carry{Low: 1, High: 9})
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	r := d.Decode([]Observation{
		{1000, ccwAngle(1.5)},
		{100, angle(2.5)},
		{10, ccwAngle(3.5)},
		{1, angle(4.25)},
	})
	if r.Partial || len(r.Missing) != 2 || len(r.Calibration) != 0 {
		t.Errorf("Decode: got partial %v missing %v calibration %v", r.Partial, r.Missing, r.Calibration)
	}
}

func TestNewDecoderValidation(t *testing.T) {
	good := Carry{Low: 1, High: 9}
	bad := [][]Spec{
		{{Factor: 1}, {Factor: 1}},
		{{Factor: 1, Role: Precise}, {Factor: 10, Role: Precise}},
		{{Factor: 0.2, Role: Calibration}},
		{{Factor: 0}},
	}
	for i, dials := range bad {
		if _, err := NewDecoder(dials, good); err == nil {
			t.Errorf("NewDecoder %d: expected error", i)
		}
	}
	for _, c := range []Carry{{0, 9}, {9, 1}, {3, 10}} {
		if _, err := NewDecoder(testDials(), c); err == nil {
			t.Errorf("NewDecoder carry %v: expected error", c)
		}
	}
	if _, err := (DialConfig{Factor: 1, Precise: true, Calibration: true}).Spec(); err == nil {
		t.Errorf("DialConfig: expected error for precise calibration dial")
	}
	s, err := DialConfig{Factor: 0.2, Center: [2]float64{1, 2}, Calibration: true}.Spec()
	if err != nil || s.Role != Calibration || s.Sense != CounterClockwise || s.Center != geom.Pt(1, 2) {
		t.Errorf("DialConfig: got %+v, %v", s, err)
	}
}

func TestReadingJSON(t *testing.T) {
	ts := time.Date(2022, 8, 9, 17, 0, 8, 0, time.Local)
	r := &Reading{
		Approx:      1234,
		Precise:     1234.5,
		Calibration: map[float64]float64{0.05: 0.3, 0.2: 1.2},
		Timestamp:   ts,
		Source:      "images/meter_2022-08-09_17-00-08.jpg",
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"approx":1234,"reading":1234.5,"test":{"0.05":0.3,"0.2":1.2},"date":"2022-08-09 17:00:08","imagesrc":"images/meter_2022-08-09_17-00-08.jpg"}`
	if string(b) != want {
		t.Errorf("Marshal: got %s want %s", b, want)
	}
	var nr Reading
	if err := json.Unmarshal(b, &nr); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !nr.Timestamp.Equal(ts) || nr.Precise != 1234.5 || nr.Calibration[0.2] != 1.2 {
		t.Errorf("Unmarshal: got %+v", nr)
	}
	if err := json.Unmarshal([]byte(`{"approx":1,"date":"2022-08-09 17:00:08"}`), &nr); err == nil {
		t.Errorf("Unmarshal: expected error for missing reading")
	}
	if err := json.Unmarshal([]byte(`{"reading":1,"date":"yesterday"}`), &nr); err == nil {
		t.Errorf("Unmarshal: expected error for bad date")
	}
}

func TestErrors(t *testing.T) {
	var err error = &AmbiguousDialError{Factor: 10, Duplicate: true}
	var ae *AmbiguousDialError
	if !errors.As(err, &ae) || ae.Factor != 10 {
		t.Errorf("AmbiguousDialError: errors.As failed")
	}
	err = &AmbiguousDialError{Factor: 10, Candidates: []float64{100}}
	if err.Error() != "dial 10: needle also near dials 100" {
		t.Errorf("AmbiguousDialError: got %q", err.Error())
	}
	var ce *CalibrationError
	if errors.As(err, &ce) {
		t.Errorf("CalibrationError: unexpected match")
	}
}
