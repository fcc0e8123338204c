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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
)

// output writes newline delimited JSON records. Output to a file is
// appended, and the file is locked for the lifetime of the output so that
// concurrent commands do not interleave records.
type output struct {
	w    io.Writer
	file *os.File
	lock *flock.Flock
	enc  *json.Encoder
}

// openOutput opens the named file for appending, or uses stdout if
// name is empty.
func openOutput(name string) (*output, error) {
	if len(name) == 0 {
		return newOutput(os.Stdout), nil
	}
	lock := flock.New(name + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: in use by another process", name)
	}
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	o := newOutput(f)
	o.file = f
	o.lock = lock
	return o, nil
}

func newOutput(w io.Writer) *output {
	return &output{w: w, enc: json.NewEncoder(w)}
}

// Terminal reports whether records are going to an interactive terminal.
func (o *output) Terminal() bool {
	return o.file == nil && isTerminal(o.w)
}

// Write encodes v as one line.
func (o *output) Write(v any) error {
	return o.enc.Encode(v)
}

func (o *output) Close() error {
	if o.file == nil {
		return nil
	}
	err := o.file.Close()
	if uerr := o.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}
