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
	"fmt"
	"strings"
)

// CalibrationError is returned when the meter housing cannot be found
// in an image. The image cannot be read.
type CalibrationError struct {
	Reason string
}

func (e *CalibrationError) Error() string {
	return "meter housing not found: " + e.Reason
}

// AmbiguousDialError reports a dial that could not be uniquely matched
// to a needle, either because more than one needle was found near it or
// because a needle was near more than one dial.
type AmbiguousDialError struct {
	Factor     float64
	Candidates []float64 // Other dials near the same needle
	Duplicate  bool      // A second needle was found for the dial
}

func (e *AmbiguousDialError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("dial %g: duplicate needle", e.Factor)
	}
	var s []string
	for _, c := range e.Candidates {
		s = append(s, fmt.Sprintf("%g", c))
	}
	return fmt.Sprintf("dial %g: needle also near dials %s", e.Factor, strings.Join(s, ", "))
}

// MissingDialError reports a configured dial for which no needle was found.
type MissingDialError struct {
	Factor float64
}

func (e *MissingDialError) Error() string {
	return fmt.Sprintf("dial %g: no needle found", e.Factor)
}
