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

// Package csv writes delta records to daily CSV files in the form
// path/year/month/day.csv
package csv

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/aamcrae/DialMeter/series"
)

const header = "#date,time,counter,value,delta,delta_time,rate,reading,delta_reading"

type Writer struct {
	name string
	file *os.File
	buf  *bufio.Writer
}

// Archive appends records to the file for the day of each record.
type Archive struct {
	Trace bool
	path  string
	day   string
	wr    *Writer
}

func NewArchive(path string) *Archive {
	return &Archive{path: path}
}

// Write appends the record to the file for its day, creating the file
// (with a header line) if necessary.
func (a *Archive) Write(r *series.DeltaRecord) error {
	day := r.Time.Format("2006-01-02")
	if day != a.day || a.wr == nil {
		if a.wr != nil {
			a.wr.Close()
			a.wr = nil
		}
		wr, created, err := NewWriter(a.path, r.Time)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintln(wr, header)
		}
		a.wr = wr
		a.day = day
	}
	if a.Trace {
		log.Printf("Writing CSV data to %s\n", a.wr.name)
	}
	fmt.Fprintf(a.wr, "%s,%s,%f,%f,%f,%f", r.Time.Format("2006-01-02,15:04:05"), r.Counter, r.Value, r.Delta, r.DeltaTime, r.Rate)
	if r.HasReading {
		fmt.Fprintf(a.wr, ",%f,%f\n", r.Reading, r.DeltaReading)
	} else {
		fmt.Fprint(a.wr, ",,\n")
	}
	return a.wr.Flush()
}

func (a *Archive) Close() error {
	if a.wr == nil {
		return nil
	}
	err := a.wr.Close()
	a.wr = nil
	return err
}

// NewWriter opens the day file for appending, returning true if the
// file was created.
func NewWriter(p string, t time.Time) (*Writer, bool, error) {
	dir := filepath.Join(p, t.Format("2006"), t.Format("01"))
	fn := filepath.Join(dir, t.Format("2006-01-02")+".csv")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, false, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	var created bool
	f, err := os.OpenFile(fn, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		// Create new file and write initial header.
		f, err = os.OpenFile(fn, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, false, fmt.Errorf("create %s: %w", fn, err)
		}
		created = true
	}
	return &Writer{fn, f, bufio.NewWriter(f)}, created, nil
}

func (wr *Writer) Write(p []byte) (n int, err error) {
	return wr.buf.Write(p)
}

func (wr *Writer) Flush() error {
	return wr.buf.Flush()
}

func (wr *Writer) Close() error {
	wr.buf.Flush()
	return wr.file.Close()
}
