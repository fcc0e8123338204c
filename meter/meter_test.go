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
	"math"
	"strings"
	"testing"
	"time"

	"github.com/fogleman/gg"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/geom"
)

// Offset of the white housing in the synthetic images.
const offX, offY = 50, 40

type needle struct {
	center    geom.Point
	value     float64
	clockwise bool
}

var testDials = []dial.DialConfig{
	{Factor: 1000, Center: [2]float64{93, 83}},
	{Factor: 100, Center: [2]float64{172, 83}, Clockwise: true},
	{Factor: 10, Center: [2]float64{242, 83}},
	{Factor: 1, Center: [2]float64{317, 83}, Clockwise: true, Precise: true},
	{Factor: 0.05, Center: [2]float64{68, 174}, Calibration: true},
	{Factor: 0.2, Center: [2]float64{153, 174}, Calibration: true},
}

func testConfig() *MeterConfig {
	return &MeterConfig{
		Needles: NeedleConfig{Area: []float64{100, 1000}},
		Carry:   []float64{1, 9},
		Dials:   testDials,
	}
}

// direction returns the needle angle in radians for the dial value.
func direction(v float64, clockwise bool) float64 {
	if !clockwise {
		v = 10 - v
	}
	return (v*36 - 90) * math.Pi / 180
}

// needlePoly returns a thin triangle pivoted near the center and
// pointing in the direction of the angle.
func needlePoly(c geom.Point, a float64) geom.PList {
	d := geom.Pt(math.Cos(a), math.Sin(a))
	n := geom.Pt(-d.Y, d.X)
	base := c.Sub(d.Scale(8))
	return geom.PList{base.Add(n.Scale(5)), c.Add(d.Scale(35)), base.Sub(n.Scale(5))}
}

// meterImage draws a white housing on a black background, with dark needles.
func meterImage(needles ...needle) image.Image {
	c := gg.NewContext(500, 300)
	c.SetRGB(0, 0, 0)
	c.Clear()
	c.SetRGB(1, 1, 1)
	c.DrawRectangle(offX, offY, 400, 225)
	c.Fill()
	c.SetRGB(0, 0, 0)
	for _, nd := range needles {
		pl := needlePoly(nd.center, direction(nd.value, nd.clockwise)).Offset(offX, offY)
		c.NewSubPath()
		for _, p := range pl {
			c.LineTo(p.X, p.Y)
		}
		c.ClosePath()
		c.Fill()
	}
	return c.Image()
}

func allNeedles() []needle {
	return []needle{
		{geom.Pt(93, 83), 1.5, false},
		{geom.Pt(172, 83), 2.5, true},
		{geom.Pt(242, 83), 3.5, false},
		{geom.Pt(317, 83), 4.3, true},
		{geom.Pt(68, 174), 6, false},
		{geom.Pt(153, 174), 2.5, false},
	}
}

func TestOrient(t *testing.T) {
	for _, deg := range []float64{0, 30, 90, 135, 180, 200, 270, 315, -60} {
		a := deg * math.Pi / 180
		c := geom.Pt(100, 100)
		pl := needlePoly(c, a)
		centroid, ok := pl.Moments().Centroid()
		if !ok {
			t.Fatalf("Orient(%g): no centroid", deg)
		}
		o, err := Orient(pl, centroid)
		if err != nil {
			t.Fatalf("Orient(%g): %v", deg, err)
		}
		diff := math.Remainder(o.Angle-a, 2*math.Pi)
		if math.Abs(diff) > 0.001 {
			t.Errorf("Orient(%g): got %g degrees", deg, o.Angle*180/math.Pi)
		}
		tip := o.Tip(centroid, 10)
		if tip.Dist(c.Add(geom.Pt(math.Cos(a), math.Sin(a)).Scale(35))) > centroid.Dist(c.Add(geom.Pt(math.Cos(a), math.Sin(a)).Scale(35))) {
			t.Errorf("Orient(%g): tip %v points away from needle tip", deg, tip)
		}
	}
	if _, err := Orient(geom.PList{geom.Pt(1, 1)}, geom.Pt(1, 1)); err == nil {
		t.Errorf("Orient: expected error for single point")
	}
}

func square(c geom.Point, side float64) geom.PList {
	h := side / 2
	return geom.PList{c.Add(geom.Pt(-h, -h)), c.Add(geom.Pt(h, -h)), c.Add(geom.Pt(h, h)), c.Add(geom.Pt(-h, h))}
}

func testLocator() *Locator {
	return &Locator{
		dials: []dial.Spec{
			{Factor: 1, Center: geom.Pt(100, 100)},
			{Factor: 10, Center: geom.Pt(200, 100)},
			{Factor: 100, Center: geom.Pt(300, 100)},
			{Factor: 1000, Center: geom.Pt(400, 100)},
		},
		minArea:  300,
		maxArea:  700,
		distance: 45,
	}
}

func TestLocate(t *testing.T) {
	l := testLocator()
	m := l.Locate([]geom.PList{
		square(geom.Pt(105, 95), 20),  // Dial 1
		square(geom.Pt(100, 100), 10), // Too small
		square(geom.Pt(200, 100), 30), // Too large
		square(geom.Pt(250, 100), 20), // Between dials, more than 45 from each
		square(geom.Pt(310, 90), 20),  // Dial 100
		square(geom.Pt(290, 110), 20), // Dial 100 again
		square(geom.Pt(390, 100), 20), // Dial 1000
	})
	if len(m.Needles) != 2 || m.Needles[1] == nil || m.Needles[1000] == nil {
		t.Fatalf("Locate: got needles %v", m.Needles)
	}
	if c := m.Needles[1].Centroid; c != geom.Pt(105, 95) {
		t.Errorf("Locate: centroid got %v want (105, 95)", c)
	}
	if len(m.Unmatched) != 1 {
		t.Errorf("Locate: got %d unmatched want 1", len(m.Unmatched))
	}
	if len(m.Rejected) != 2 {
		t.Errorf("Locate: got %d rejected want 2", len(m.Rejected))
	}
	if len(m.Problems) != 1 {
		t.Fatalf("Locate: got problems %v want 1", m.Problems)
	}
	var ae *dial.AmbiguousDialError
	if !errors.As(m.Problems[0], &ae) || ae.Factor != 100 || !ae.Duplicate {
		t.Errorf("Locate: got problem %v", m.Problems[0])
	}
}

func TestLocateMultipleDials(t *testing.T) {
	l := testLocator()
	l.distance = 60
	m := l.Locate([]geom.PList{square(geom.Pt(150, 100), 20)})
	if len(m.Needles) != 0 || len(m.Rejected) != 1 {
		t.Errorf("Locate: got needles %v rejected %d", m.Needles, len(m.Rejected))
	}
	if len(m.Problems) != 2 {
		t.Fatalf("Locate: got problems %v want 2", m.Problems)
	}
	var ae *dial.AmbiguousDialError
	if !errors.As(m.Problems[0], &ae) || ae.Factor != 1 || len(ae.Candidates) != 1 || ae.Candidates[0] != 10 {
		t.Errorf("Locate: got problem %v", m.Problems[0])
	}
}

func TestRead(t *testing.T) {
	r, err := NewReader(testConfig(), false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	ts := time.Date(2022, 8, 9, 17, 0, 8, 0, time.Local)
	res, err := r.Read(meterImage(allNeedles()...), ts, "test.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	rd := res.Reading
	if rd.Partial {
		t.Errorf("Read: partial reading, missing %v, problems %v", rd.Missing, rd.Problems)
	}
	if rd.Approx != 1234 {
		t.Errorf("Read approx: got %v want 1234", rd.Approx)
	}
	if math.Abs(rd.Precise-1234.3) > 0.2 {
		t.Errorf("Read precise: got %v want 1234.3", rd.Precise)
	}
	if math.Abs(rd.Calibration[0.05]-0.3) > 0.01 {
		t.Errorf("Read calibration 0.05: got %v want 0.3", rd.Calibration[0.05])
	}
	if math.Abs(rd.Calibration[0.2]-0.5) > 0.04 {
		t.Errorf("Read calibration 0.2: got %v want 0.5", rd.Calibration[0.2])
	}
	if !rd.Timestamp.Equal(ts) || rd.Source != "test.png" {
		t.Errorf("Read: got timestamp %v source %s", rd.Timestamp, rd.Source)
	}
	if b := res.Frame.Bounds(); b.Dx() != 400 || b.Dy() != 225 {
		t.Errorf("Read: frame size %v", b)
	}
	out := Annotate(res)
	if out.Bounds() != res.Frame.Bounds() {
		t.Errorf("Annotate: got bounds %v want %v", out.Bounds(), res.Frame.Bounds())
	}
	if !strings.HasPrefix(Caption(rd), "2022-08-09 17:00:08 - [1234, ") {
		t.Errorf("Caption: got %q", Caption(rd))
	}
}

func TestReadPartial(t *testing.T) {
	r, err := NewReader(testConfig(), false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	n := allNeedles()
	// Drop the hundreds needle, and add a second needle to the tens dial.
	n = append(n[:1], n[2:]...)
	n = append(n, needle{geom.Pt(250, 115), 3, true})
	res, err := r.Read(meterImage(n...), time.Now(), "partial.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	rd := res.Reading
	if !rd.Partial || len(rd.Missing) != 2 {
		t.Fatalf("Read: got partial %v missing %v", rd.Partial, rd.Missing)
	}
	var missing, ambiguous bool
	for _, p := range rd.Problems {
		var me *dial.MissingDialError
		var ae *dial.AmbiguousDialError
		if errors.As(p, &me) && me.Factor == 100 {
			missing = true
		}
		if errors.As(p, &ae) && ae.Factor == 10 {
			ambiguous = true
		}
	}
	if !missing || !ambiguous {
		t.Errorf("Read: got problems %v", rd.Problems)
	}
	if rd.Approx != 1004 {
		t.Errorf("Read approx: got %v want 1004", rd.Approx)
	}
}

func TestReadNoHousing(t *testing.T) {
	r, err := NewReader(testConfig(), false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	c := gg.NewContext(200, 100)
	c.SetRGB(0.2, 0.2, 0.2)
	c.Clear()
	_, err = r.Read(c.Image(), time.Now(), "dark.png")
	var ce *dial.CalibrationError
	if !errors.As(err, &ce) {
		t.Errorf("Read: got %v want CalibrationError", err)
	}
}

func TestReadAnchors(t *testing.T) {
	conf := testConfig()
	conf.Frame = FrameConfig{
		Mode:    ModeAnchors,
		Anchors: [][2]float64{{offX, offY}, {offX + 400, offY}, {offX + 400, offY + 225}, {offX, offY + 225}},
	}
	r, err := NewReader(conf, false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	res, err := r.Read(meterImage(allNeedles()...), time.Now(), "anchors.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if res.Reading.Approx != 1234 {
		t.Errorf("Read approx: got %v want 1234", res.Reading.Approx)
	}
}

func TestNewReaderZeroSettings(t *testing.T) {
	conf := testConfig()
	th, off := 0, 0.0
	conf.Frame.Threshold = &th
	conf.Needles.Offset = &off
	r, err := NewReader(conf, false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.rect.threshold != 0 || r.offset != 0 {
		t.Errorf("NewReader: got threshold %d offset %g want 0, 0", r.rect.threshold, r.offset)
	}
	r, err = NewReader(testConfig(), false)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.rect.threshold != defaultThreshold || r.offset != defaultOffset {
		t.Errorf("NewReader: got threshold %d offset %g want %d, %d", r.rect.threshold, r.offset, defaultThreshold, defaultOffset)
	}
}

func TestNewReaderErrors(t *testing.T) {
	high := 256
	tests := []func(*MeterConfig){
		func(c *MeterConfig) { c.Frame.Threshold = &high },
		func(c *MeterConfig) { c.Carry = nil },
		func(c *MeterConfig) { c.Needles.Area = []float64{700, 300} },
		func(c *MeterConfig) { c.Needles.Block = 10 },
		func(c *MeterConfig) { c.Frame.Mode = "centre" },
		func(c *MeterConfig) { c.Frame.Mode = ModeAnchors },
		func(c *MeterConfig) { c.Processor = "unknown" },
		func(c *MeterConfig) { c.Dials = append(c.Dials, dial.DialConfig{Factor: 1}) },
	}
	for i, f := range tests {
		c := testConfig()
		c.Dials = append([]dial.DialConfig{}, c.Dials...)
		f(c)
		if _, err := NewReader(c, false); err == nil {
			t.Errorf("NewReader %d: expected error", i)
		}
	}
}
