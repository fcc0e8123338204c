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
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aamcrae/lcd"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/lib"
	"github.com/aamcrae/DialMeter/meter"
	"github.com/aamcrae/DialMeter/store"
)

type readOptions struct {
	workers  int
	output   string
	annotate string
	archive  string
}

func newReadCommand(ctx *commandContext) *cobra.Command {
	var opts readOptions
	cmd := &cobra.Command{
		Use:   "read [images or directories...]",
		Short: "Decode meter images into readings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mr, err := ctx.meterReader()
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
			files, err := imageFiles(args)
			if err != nil {
				return err
			}
			c, cancel := signalContext(cmd.Context())
			defer cancel()
			return runRead(c, mr, st, files, &opts)
		},
	}
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "Number of images decoded in parallel")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Append readings to this file instead of stdout")
	cmd.Flags().StringVar(&opts.annotate, "annotate", "", "Directory to save annotated images")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "Directory to move decoded images to")
	return cmd
}

func runRead(ctx context.Context, mr *meter.Reader, st *store.Store, files []string, opts *readOptions) error {
	for _, d := range []string{opts.annotate, opts.archive} {
		if len(d) == 0 {
			continue
		}
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	results, err := readImages(ctx, mr, files, opts.workers, opts.annotate)
	if err != nil {
		return err
	}
	out, err := openOutput(opts.output)
	if err != nil {
		return err
	}
	defer out.Close()
	if st != nil {
		if _, err := st.StartRun(ctx, "read"); err != nil {
			return err
		}
	}
	var readings []*dial.Reading
	for _, res := range results {
		readings = append(readings, res.Reading)
		if st != nil {
			if err := st.AddReading(ctx, res.Reading); err != nil {
				return err
			}
		}
	}
	if out.Terminal() {
		if len(readings) != 0 {
			fmt.Fprintln(os.Stdout, readingTable(readings))
		}
	} else {
		for _, r := range readings {
			if err := out.Write(r); err != nil {
				return err
			}
		}
	}
	if len(opts.archive) != 0 {
		for _, r := range readings {
			if err := archiveImage(r.Source, opts.archive); err != nil {
				log.Printf("%s: archive: %v", r.Source, err)
			}
		}
	}
	return nil
}

// readImages decodes the images using up to workers goroutines. Images that
// cannot be decoded are logged and skipped. The results are returned in
// capture time order.
func readImages(ctx context.Context, mr *meter.Reader, files []string, workers int, annotate string) ([]*meter.Result, error) {
	results := make([]*meter.Result, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := readImage(mr, f)
			if err != nil {
				var ce *dial.CalibrationError
				if errors.As(err, &ce) {
					log.Printf("%s: skipped, %v", f, ce)
				} else {
					log.Printf("%s: %v", f, err)
				}
				return nil
			}
			if len(annotate) != 0 {
				if err := lcd.SaveImage(annotatedName(annotate, f), meter.Annotate(res)); err != nil {
					log.Printf("%s: annotate: %v", f, err)
				}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var done []*meter.Result
	for _, res := range results {
		if res != nil {
			done = append(done, res)
		}
	}
	sort.SliceStable(done, func(i, j int) bool {
		return done[i].Reading.Timestamp.Before(done[j].Reading.Timestamp)
	})
	return done, nil
}

func readImage(mr *meter.Reader, file string) (*meter.Result, error) {
	ts, err := lib.CaptureTime(file)
	if err != nil {
		return nil, err
	}
	img, err := lcd.ReadImage(file)
	if err != nil {
		return nil, err
	}
	return mr.Read(img, ts, file)
}

// imageFiles expands directories in args to the images they contain.
func imageFiles(args []string) ([]string, error) {
	var files []string
	for _, a := range args {
		st, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			files = append(files, a)
			continue
		}
		entries, err := os.ReadDir(a)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && lib.IsImage(e.Name()) {
				files = append(files, filepath.Join(a, e.Name()))
			}
		}
	}
	return files, nil
}

func annotatedName(dir, file string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+".annotated.png")
}

func archiveImage(file, dir string) error {
	return os.Rename(file, filepath.Join(dir, filepath.Base(file)))
}
