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
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aamcrae/DialMeter/csv"
	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/series"
	"github.com/aamcrae/DialMeter/store"
)

type seriesOptions struct {
	counters  []string
	output    string
	fromStore bool
	from      string
	to        string
	csv       string
}

func newSeriesCommand(ctx *commandContext) *cobra.Command {
	var opts seriesOptions
	cmd := &cobra.Command{
		Use:   "series [readings file]",
		Short: "Derive deltas and rates from a series of readings",
		Long: "Reads newline delimited JSON readings (from the file, stdin, or the store)\n" +
			"and writes one JSON delta record per counter change.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := ctx.seriesConfig(opts.counters)
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}
			var src io.Reader = os.Stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			return runSeries(cmd.Context(), sc, st, src, &opts, ctx.trace())
		},
	}
	cmd.Flags().StringSliceVar(&opts.counters, "counter", nil, "Counters as name[:unit], replacing the configured counters")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Append records to this file instead of stdout")
	cmd.Flags().StringVar(&opts.csv, "csv", "", "Also write records to daily CSV files in this directory")
	cmd.Flags().BoolVar(&opts.fromStore, "from-store", false, "Read the readings from the store")
	cmd.Flags().StringVar(&opts.from, "from", "", "With --from-store, earliest reading time ("+dial.DateFormat+")")
	cmd.Flags().StringVar(&opts.to, "to", "", "With --from-store, reading time limit ("+dial.DateFormat+")")
	return cmd
}

func runSeries(ctx context.Context, sc *series.SeriesConfig, st *store.Store, src io.Reader, opts *seriesOptions, trace bool) error {
	readings, err := loadReadings(ctx, st, src, opts)
	if err != nil {
		return err
	}
	cp := make(map[string]string)
	if len(sc.Checkpoint) != 0 {
		if cp, err = series.ReadCheckpoint(sc.Checkpoint, trace); err != nil {
			return err
		}
	}
	s, err := series.New(sc, cp)
	if err != nil {
		return err
	}
	s.Trace = trace
	recs := s.Process(readings)
	if trace {
		log.Printf("%d readings, %d records", len(readings), len(recs))
	}
	out, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer out.Close()
	if out.Terminal() {
		if len(recs) != 0 {
			fmt.Fprintln(os.Stdout, deltaTable(recs))
		}
	} else {
		for _, r := range recs {
			if err := out.Write(r); err != nil {
				return err
			}
		}
	}
	if len(opts.csv) != 0 {
		a := csv.NewArchive(opts.csv)
		a.Trace = trace
		for _, r := range recs {
			if err := a.Write(r); err != nil {
				a.Close()
				return err
			}
		}
		if err := a.Close(); err != nil {
			return err
		}
	}
	if st != nil {
		if _, err := st.StartRun(ctx, "series"); err != nil {
			return err
		}
		for _, r := range recs {
			if err := st.AddDelta(ctx, r); err != nil {
				return err
			}
		}
	}
	if len(sc.Checkpoint) != 0 {
		return series.WriteCheckpoint(sc.Checkpoint, s.Checkpoint(), time.Now(), trace)
	}
	return nil
}

func loadReadings(ctx context.Context, st *store.Store, src io.Reader, opts *seriesOptions) ([]*dial.Reading, error) {
	if !opts.fromStore {
		return series.DecodeReadings(src, func(line int, err error) {
			log.Printf("line %d: skipped: %v", line, err)
		})
	}
	if st == nil {
		return nil, fmt.Errorf("--from-store: no store configured")
	}
	from, err := parseTime(opts.from)
	if err != nil {
		return nil, err
	}
	to, err := parseTime(opts.to)
	if err != nil {
		return nil, err
	}
	return st.Readings(ctx, from, to)
}

// parseTime parses a local time, with the empty string as the zero time.
func parseTime(s string) (time.Time, error) {
	if len(s) == 0 {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dial.DateFormat, s, time.Local)
	if err != nil {
		return t, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t, nil
}
