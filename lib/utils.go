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

package lib

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// CaptureFormat is the layout of the capture time embedded in image names.
const CaptureFormat = "2006-01-02_15-04-05"

// ConfigOrDefault returns the default if the config value is the zero value.
func ConfigOrDefault[T comparable](conf, def T) T {
	// Check for zero value
	if conf == *new(T) {
		return def
	}
	return conf
}

// SetOrDefault returns the default if the config value was not set.
// Used where the zero value is a valid setting.
func SetOrDefault[T any](conf *T, def T) T {
	if conf == nil {
		return def
	}
	return *conf
}

// FmtFloat is a custom float formatter that
// has a fixed precision of 2 decimal places with trailing zeros removed.
func FmtFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	last := len(s) - 1
	if s[last] == '.' {
		s = s[:last]
	}
	return s
}

// CaptureTime extracts the local capture time from an image file name
// of the form <prefix>YYYY-MM-DD_HH-MM-SS.<ext>
func CaptureTime(name string) (time.Time, error) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if len(base) < len(CaptureFormat) {
		return time.Time{}, fmt.Errorf("%s: no capture time in file name", name)
	}
	ts, err := time.ParseInLocation(CaptureFormat, base[len(base)-len(CaptureFormat):], time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: capture time: %w", name, err)
	}
	return ts, nil
}
