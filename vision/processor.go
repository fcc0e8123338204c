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

// package vision provides the raster operations needed to locate a meter
// housing and its needles. The operations are behind the Processor
// interface so that different image libraries can back them.
package vision

import (
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/aamcrae/DialMeter/geom"
)

// Processor extracts contours from, and rectifies, raster images.
type Processor interface {
	// Bright returns the outer contours of the regions whose gray level
	// is strictly above level.
	Bright(img image.Image, level uint8) ([]geom.PList, error)
	// Needles returns the contours of the dark regions that remain after
	// Gaussian adaptive thresholding with the given block size and offset.
	Needles(img image.Image, block int, offset float64) ([]geom.PList, error)
	// Warp maps the quadrilateral onto a w x h image.
	Warp(img image.Image, quad geom.Quad, w, h int) (image.Image, error)
}

var mu sync.Mutex
var processors = map[string]func() Processor{}

// Default is the name of the processor used when none is configured.
const Default = "native"

// Register makes a processor available by name.
func Register(name string, f func() Processor) {
	mu.Lock()
	defer mu.Unlock()
	processors[name] = f
}

// New returns the named processor.
func New(name string) (Processor, error) {
	if len(name) == 0 {
		name = Default
	}
	mu.Lock()
	defer mu.Unlock()
	f, ok := processors[name]
	if !ok {
		return nil, fmt.Errorf("unknown image processor %q (have %v)", name, names())
	}
	return f(), nil
}

// Names returns the registered processors.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	return names()
}

func names() []string {
	var n []string
	for k := range processors {
		n = append(n, k)
	}
	sort.Strings(n)
	return n
}
