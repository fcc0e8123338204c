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

	"golang.org/x/image/draw"

	"github.com/aamcrae/DialMeter/geom"
)

// Native is a pure Go Processor.
type Native struct {
}

func init() {
	Register("native", func() Processor { return &Native{} })
}

// Neighbour offsets in clockwise order (y increases downwards).
var dirs = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

const west = 4

// mask is a binary image; set pixels belong to the foreground.
type mask struct {
	w, h int
	bits []bool
}

func (m *mask) at(p image.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.w && p.Y < m.h && m.bits[p.Y*m.w+p.X]
}

// Bright returns the contours of the regions brighter than level.
func (n *Native) Bright(img image.Image, level uint8) ([]geom.PList, error) {
	g := Gray(img)
	m := &mask{w: g.Rect.Dx(), h: g.Rect.Dy()}
	m.bits = make([]bool, m.w*m.h)
	for y := 0; y < m.h; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < m.w; x++ {
			m.bits[y*m.w+x] = row[x] > level
		}
	}
	return m.contours(), nil
}

// Needles returns the contours of the regions that are darker than their
// Gaussian weighted neighbourhood by more than offset.
func (n *Native) Needles(img image.Image, block int, offset float64) ([]geom.PList, error) {
	g := Gray(img)
	mean := gaussianBlur(g, block)
	m := &mask{w: g.Rect.Dx(), h: g.Rect.Dy()}
	m.bits = make([]bool, m.w*m.h)
	for y := 0; y < m.h; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < m.w; x++ {
			i := y*m.w + x
			m.bits[i] = float64(row[x]) <= math.Round(float64(mean[i]))-offset
		}
	}
	return m.contours(), nil
}

// Warp maps the quadrilateral in the source image onto a w x h image,
// using bilinear interpolation. Pixels mapping outside the source are black.
func (n *Native) Warp(img image.Image, quad geom.Quad, w, h int) (image.Image, error) {
	rect := geom.Quad{geom.Pt(0, 0), geom.Pt(float64(w), 0), geom.Pt(float64(w), float64(h)), geom.Pt(0, float64(h))}
	// Map destination pixels back to the source.
	inv, err := geom.Perspective(rect, quad)
	if err != nil {
		return nil, err
	}
	src := rgba(img)
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := inv.Apply(geom.Pt(float64(x), float64(y)))
			if p.X < 0 || p.Y < 0 || p.X > float64(sw-1) || p.Y > float64(sh-1) {
				continue
			}
			dst.SetRGBA(x, y, bilinear(src, p.X, p.Y))
		}
	}
	return dst, nil
}

// Gray converts the image to 8 bit grayscale with its origin at (0, 0).
func Gray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Rect, img, b.Min, draw.Src)
	return g
}

func rgba(img image.Image) *image.RGBA {
	if r, ok := img.(*image.RGBA); ok && r.Rect.Min == (image.Point{}) {
		return r
	}
	b := img.Bounds()
	r := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(r, r.Rect, img, b.Min, draw.Src)
	return r
}

func bilinear(img *image.RGBA, x, y float64) color.RGBA {
	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 >= img.Rect.Dx() {
		x1 = x0
	}
	if y1 >= img.Rect.Dy() {
		y1 = y0
	}
	fx, fy := x-float64(x0), y-float64(y0)
	p00 := img.Pix[img.PixOffset(x0, y0):]
	p10 := img.Pix[img.PixOffset(x1, y0):]
	p01 := img.Pix[img.PixOffset(x0, y1):]
	p11 := img.Pix[img.PixOffset(x1, y1):]
	var c [4]uint8
	for i := range c {
		top := float64(p00[i])*(1-fx) + float64(p10[i])*fx
		bot := float64(p01[i])*(1-fx) + float64(p11[i])*fx
		c[i] = uint8(math.Round(top*(1-fy) + bot*fy))
	}
	return color.RGBA{c[0], c[1], c[2], c[3]}
}

// gaussianKernel returns a normalised kernel of the given (odd) size.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	k := make([]float64, size)
	var sum float64
	for i := range k {
		d := float64(i - size/2)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// gaussianBlur applies a separable Gaussian filter, replicating the
// border pixels.
func gaussianBlur(g *image.Gray, size int) []float32 {
	if size < 3 {
		size = 3
	}
	if size%2 == 0 {
		size++
	}
	k := gaussianKernel(size)
	r := size / 2
	w, h := g.Rect.Dx(), g.Rect.Dy()
	clamp := func(v, max int) int {
		if v < 0 {
			return 0
		}
		if v >= max {
			return max - 1
		}
		return v
	}
	tmp := make([]float32, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < w; x++ {
			var s float64
			for i, kv := range k {
				s += kv * float64(row[clamp(x+i-r, w)])
			}
			tmp[y*w+x] = float32(s)
		}
	}
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for i, kv := range k {
				s += kv * float64(tmp[clamp(y+i-r, h)*w+x])
			}
			out[y*w+x] = float32(s)
		}
	}
	return out
}

// contours labels the 8-connected foreground components and returns
// the outer boundary of each one.
func (m *mask) contours() []geom.PList {
	labels := make([]int32, len(m.bits))
	var cl []geom.PList
	var queue []image.Point
	var id int32
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			i := y*m.w + x
			if !m.bits[i] || labels[i] != 0 {
				continue
			}
			id++
			labels[i] = id
			queue = append(queue[:0], image.Pt(x, y))
			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				for _, d := range dirs {
					np := p.Add(d)
					if m.at(np) && labels[np.Y*m.w+np.X] == 0 {
						labels[np.Y*m.w+np.X] = id
						queue = append(queue, np)
					}
				}
			}
			// The first pixel found in raster order is on the outer boundary.
			cl = append(cl, simplify(m.trace(image.Pt(x, y))))
		}
	}
	return cl
}

// trace follows the outer boundary clockwise from start using Moore
// neighbour tracing. start must be the first component pixel in raster
// order, so its west neighbour is background.
func (m *mask) trace(start image.Point) []image.Point {
	pts := []image.Point{start}
	c, d := start, west
	var first image.Point
	limit := 4*m.w*m.h + 8
	for i := 0; i < limit; i++ {
		next, nd, ok := m.next(c, d)
		if !ok {
			// Isolated pixel.
			break
		}
		if c == start {
			if i > 0 && next == first {
				break
			}
			if i == 0 {
				first = next
			}
		}
		// The new backtrack is the background cell examined just before next.
		b := c.Add(dirs[(nd+7)%8])
		d = dirIndex(b.Sub(next))
		c = next
		pts = append(pts, c)
	}
	if len(pts) > 1 && pts[len(pts)-1] == start {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// next searches clockwise around c, starting after the backtrack direction.
func (m *mask) next(c image.Point, d int) (image.Point, int, bool) {
	for k := 1; k <= 8; k++ {
		dd := (d + k) % 8
		n := c.Add(dirs[dd])
		if m.at(n) {
			return n, dd, true
		}
	}
	return c, d, false
}

func dirIndex(d image.Point) int {
	for i, v := range dirs {
		if v == d {
			return i
		}
	}
	return west
}

// simplify removes the interior points of straight runs.
func simplify(pts []image.Point) geom.PList {
	pl := make(geom.PList, 0, len(pts))
	n := len(pts)
	for i, p := range pts {
		if n > 2 {
			in := p.Sub(pts[(i+n-1)%n])
			out := pts[(i+1)%n].Sub(p)
			if in == out {
				continue
			}
		}
		pl = append(pl, geom.Pt(float64(p.X), float64(p.Y)))
	}
	return pl
}
