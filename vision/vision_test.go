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

package vision

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/aamcrae/DialMeter/geom"
)

func grayImage(w, h int, bg uint8, rects ...image.Rectangle) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = bg
	}
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				g.SetGray(x, y, color.Gray{255 - bg})
			}
		}
	}
	return g
}

func TestBrightRectangle(t *testing.T) {
	p, err := New("native")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	img := grayImage(80, 60, 0, image.Rect(10, 10, 50, 30))
	cl, err := p.Bright(img, 248)
	if err != nil {
		t.Fatalf("Bright: %v", err)
	}
	if len(cl) != 1 {
		t.Fatalf("Bright: got %d contours want 1", len(cl))
	}
	want := geom.PList{geom.Pt(10, 10), geom.Pt(49, 10), geom.Pt(49, 29), geom.Pt(10, 29)}
	if len(cl[0]) != len(want) {
		t.Fatalf("Bright: got %v want %v", cl[0], want)
	}
	for i := range want {
		if cl[0][i] != want[i] {
			t.Errorf("Bright point %d: got %v want %v", i, cl[0][i], want[i])
		}
	}
	if a := cl[0].Area(); a != 39*19 {
		t.Errorf("Bright area: got %v want %v", a, 39*19)
	}
}

func TestComponents(t *testing.T) {
	n := &Native{}
	// Two blobs, one single pixel, and a diagonal pair that is 8-connected.
	img := grayImage(40, 40, 0,
		image.Rect(2, 2, 6, 6),
		image.Rect(20, 20, 21, 21),
		image.Rect(30, 5, 31, 6), image.Rect(31, 6, 32, 7))
	cl, err := n.Bright(img, 128)
	if err != nil {
		t.Fatalf("Bright: %v", err)
	}
	if len(cl) != 3 {
		t.Fatalf("Bright: got %d contours want 3 (%v)", len(cl), cl)
	}
	var single bool
	for _, c := range cl {
		if len(c) == 1 && c[0] == geom.Pt(20, 20) {
			single = true
		}
	}
	if !single {
		t.Errorf("Bright: isolated pixel not found in %v", cl)
	}
	// Nothing above the level.
	cl, _ = n.Bright(img, 255)
	if len(cl) != 0 {
		t.Errorf("Bright: got %d contours want 0", len(cl))
	}
}

func TestNeedles(t *testing.T) {
	n := &Native{}
	img := grayImage(60, 40, 255, image.Rect(20, 10, 23, 30))
	cl, err := n.Needles(img, 11, 2)
	if err != nil {
		t.Fatalf("Needles: %v", err)
	}
	if len(cl) != 1 {
		t.Fatalf("Needles: got %d contours want 1", len(cl))
	}
	c, ok := cl[0].Moments().Centroid()
	if !ok || math.Abs(c.X-21) > 1e-9 || math.Abs(c.Y-19.5) > 1e-9 {
		t.Errorf("Needles centroid: got %v want (21, 19.5)", c)
	}
	if a := cl[0].Area(); a != 2*19 {
		t.Errorf("Needles area: got %v want %v", a, 2*19)
	}
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(11)
	var sum float64
	for i := range k {
		sum += k[i]
		if k[i] != k[len(k)-1-i] {
			t.Errorf("kernel not symmetric at %d", i)
		}
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("kernel sum: got %v want 1", sum)
	}
	if k[5] <= k[4] {
		t.Errorf("kernel peak not at center: %v", k)
	}
}

func TestWarp(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if x < 50 {
				src.SetRGBA(x, y, red)
			} else {
				src.SetRGBA(x, y, blue)
			}
		}
	}
	n := &Native{}
	q := geom.Quad{geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(100, 100), geom.Pt(0, 100)}
	out, err := n.Warp(src, q, 50, 40)
	if err != nil {
		t.Fatalf("Warp: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 50 || b.Dy() != 40 {
		t.Fatalf("Warp size: got %v want 50x40", b)
	}
	if c := color.RGBAModel.Convert(out.At(10, 20)); c != red {
		t.Errorf("Warp left: got %v want %v", c, red)
	}
	if c := color.RGBAModel.Convert(out.At(40, 20)); c != blue {
		t.Errorf("Warp right: got %v want %v", c, blue)
	}
	bad := geom.Quad{geom.Pt(0, 0), geom.Pt(1, 1), geom.Pt(2, 2), geom.Pt(3, 3)}
	if _, err := n.Warp(src, bad, 50, 40); err == nil {
		t.Errorf("Warp: expected error for degenerate quad")
	}
}

func TestRegistry(t *testing.T) {
	if _, err := New(""); err != nil {
		t.Errorf("New default: %v", err)
	}
	if _, err := New("nothing"); err == nil {
		t.Errorf("New: expected error for unknown processor")
	}
	found := false
	for _, n := range Names() {
		if n == Default {
			found = true
		}
	}
	if !found {
		t.Errorf("Names: %v does not include %s", Names(), Default)
	}
}
