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
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/lib"
	"github.com/aamcrae/DialMeter/series"
)

// column describes one table column. Numeric columns are right aligned.
type column struct {
	header  string
	numeric bool
}

// newTable returns a table writer with the header and alignment of cols.
func newTable(cols []column) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	hdr := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		hdr[i] = c.header
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if c.numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(hdr)
	tw.SetColumnConfigs(configs)
	return tw
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// readingTable renders readings with a column per calibration dial.
func readingTable(readings []*dial.Reading) string {
	var factors []float64
	seen := make(map[float64]bool)
	for _, r := range readings {
		for _, f := range r.Factors() {
			if !seen[f] {
				seen[f] = true
				factors = append(factors, f)
			}
		}
	}
	sort.Float64s(factors)
	cols := []column{{header: "Date"}, {header: "Source"}, {"Approx", true}, {"Reading", true}}
	for _, f := range factors {
		cols = append(cols, column{"Test " + dial.FactorKey(f), true})
	}
	tw := newTable(append(cols, column{header: "Partial"}))
	partial := 0
	for _, r := range readings {
		row := table.Row{r.Timestamp.Format(dial.DateFormat), r.Source, lib.FmtFloat(r.Approx), lib.FmtFloat(r.Precise)}
		for _, f := range factors {
			if v, ok := r.Calibration[f]; ok {
				row = append(row, lib.FmtFloat(v))
			} else {
				row = append(row, "-")
			}
		}
		if r.Partial {
			partial++
			row = append(row, "yes")
		} else {
			row = append(row, "")
		}
		tw.AppendRow(row)
	}
	if partial > 0 {
		tw.AppendFooter(table.Row{fmt.Sprintf("%d of %d partial", partial, len(readings))})
	}
	return tw.Render()
}

// deltaTable renders the delta records with the rate per hour.
func deltaTable(recs []*series.DeltaRecord) string {
	tw := newTable([]column{{header: "Date"}, {header: "Counter"}, {"Value", true}, {"Delta", true}, {"Seconds", true}, {"Rate/h", true}})
	for _, r := range recs {
		tw.AppendRow(table.Row{
			r.Time.Format(dial.DateFormat),
			r.Counter,
			lib.FmtFloat(r.Value),
			lib.FmtFloat(r.Delta),
			lib.FmtFloat(r.DeltaTime),
			lib.FmtFloat(r.Rate * time.Hour.Seconds()),
		})
	}
	return tw.Render()
}
