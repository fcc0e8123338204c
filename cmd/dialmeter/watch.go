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
	"log"
	"os"
	"sync"
	"time"

	"github.com/aamcrae/lcd"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/aamcrae/DialMeter/csv"
	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/lib"
	"github.com/aamcrae/DialMeter/meter"
	"github.com/aamcrae/DialMeter/series"
	"github.com/aamcrae/DialMeter/server"
	"github.com/aamcrae/DialMeter/store"
)

type watchOptions struct {
	counters   []string
	output     string
	readings   string
	annotate   string
	archive    string
	csv        string
	port       int
	settle     time.Duration
	checkpoint time.Duration
	existing   bool
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Decode new images as they are written to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mr, err := ctx.meterReader()
			if err != nil {
				return err
			}
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
			port, err := ctx.serverPort(opts.port)
			if err != nil {
				return err
			}
			c, cancel := signalContext(cmd.Context())
			defer cancel()
			w, err := newWatcher(mr, sc, st, &opts, ctx.trace())
			if err != nil {
				return err
			}
			defer w.Close()
			if port != 0 {
				srv := server.New(port, w.status)
				srv.Trace = ctx.trace()
				srv.Start(c)
			}
			return w.Run(c, args[0])
		},
	}
	cmd.Flags().StringSliceVar(&opts.counters, "counter", nil, "Counters as name[:unit], replacing the configured counters")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Append delta records to this file instead of stdout")
	cmd.Flags().StringVar(&opts.readings, "readings", "", "Append readings to this file")
	cmd.Flags().StringVar(&opts.annotate, "annotate", "", "Directory to save annotated images")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "Directory to move decoded images to")
	cmd.Flags().StringVar(&opts.csv, "csv", "", "Directory of daily CSV files of delta records")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Serve status on this HTTP port")
	cmd.Flags().DurationVar(&opts.settle, "settle", 2*time.Second, "Time a new image must be unchanged before it is read")
	cmd.Flags().DurationVar(&opts.checkpoint, "checkpoint", 5*time.Minute, "Checkpoint interval")
	cmd.Flags().BoolVar(&opts.existing, "existing", false, "Read images already in the directory first")
	return cmd
}

// watcher reads images as they appear and differences the readings.
type watcher struct {
	Trace    bool
	mr       *meter.Reader
	series   *series.Series
	store    *store.Store
	opts     *watchOptions
	cpFile   string
	out      *output
	readings *output
	csv      *csv.Archive
	status   *server.Status

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
}

func newWatcher(mr *meter.Reader, sc *series.SeriesConfig, st *store.Store, opts *watchOptions, trace bool) (*watcher, error) {
	cp := make(map[string]string)
	if len(sc.Checkpoint) != 0 {
		var err error
		if cp, err = series.ReadCheckpoint(sc.Checkpoint, trace); err != nil {
			return nil, err
		}
	}
	s, err := series.New(sc, cp)
	if err != nil {
		return nil, err
	}
	s.Trace = trace
	for _, d := range []string{opts.annotate, opts.archive} {
		if len(d) != 0 {
			if err := os.MkdirAll(d, 0755); err != nil {
				return nil, err
			}
		}
	}
	w := &watcher{
		Trace:   trace,
		mr:      mr,
		series:  s,
		store:   st,
		opts:    opts,
		cpFile:  sc.Checkpoint,
		status:  server.NewStatus(),
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 100),
	}
	if len(opts.csv) != 0 {
		w.csv = csv.NewArchive(opts.csv)
		w.csv.Trace = trace
	}
	if w.out, err = openOutput(opts.output); err != nil {
		return nil, err
	}
	if len(opts.readings) != 0 {
		if w.readings, err = openOutput(opts.readings); err != nil {
			w.out.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run watches dir until the context is cancelled, then writes a final
// checkpoint.
func (w *watcher) Run(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if w.store != nil {
		if _, err := w.store.StartRun(ctx, "watch"); err != nil {
			return err
		}
	}
	if w.opts.existing {
		files, err := imageFiles([]string{dir})
		if err != nil {
			return err
		}
		results, err := readImages(ctx, w.mr, files, 1, w.opts.annotate)
		if err != nil {
			return err
		}
		for _, res := range results {
			w.add(ctx, res.Reading)
			w.archive(res.Reading.Source)
		}
	}
	ec := make(chan lib.Event, 1)
	if len(w.cpFile) != 0 && w.opts.checkpoint > 0 {
		t := lib.NewTicker(w.opts.checkpoint)
		t.Trace = w.Trace
		t.AddCB(func(now time.Time) {
			w.writeCheckpoint(now)
		})
		t.Start(ctx, ec)
	}
	log.Printf("Watching %s", dir)
	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			if len(w.cpFile) != 0 {
				w.writeCheckpoint(time.Now())
			}
			return nil
		case ev := <-ec:
			ev.Dispatch()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if lib.IsImage(event.Name) {
					w.schedule(ctx, event.Name)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch %s: %v", dir, err)
		case f := <-w.ready:
			w.readFile(ctx, f)
		}
	}
}

// schedule reads the file once it has not been written for the settle time.
func (w *watcher) schedule(ctx context.Context, file string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[file]; ok {
		t.Stop()
	}
	w.pending[file] = time.AfterFunc(w.opts.settle, func() {
		w.mu.Lock()
		delete(w.pending, file)
		w.mu.Unlock()
		select {
		case w.ready <- file:
		case <-ctx.Done():
		}
	})
}

func (w *watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for f, t := range w.pending {
		t.Stop()
		delete(w.pending, f)
	}
}

func (w *watcher) readFile(ctx context.Context, file string) {
	if _, err := os.Stat(file); err != nil {
		// Removed or renamed before it settled.
		return
	}
	res, err := readImage(w.mr, file)
	if err != nil {
		log.Printf("%s: %v", file, err)
		w.status.Skipped(file, err)
		return
	}
	if len(w.opts.annotate) != 0 {
		if err := lcd.SaveImage(annotatedName(w.opts.annotate, file), meter.Annotate(res)); err != nil {
			log.Printf("%s: annotate: %v", file, err)
		}
	}
	w.add(ctx, res.Reading)
	w.archive(file)
}

func (w *watcher) archive(file string) {
	if len(w.opts.archive) != 0 {
		if err := archiveImage(file, w.opts.archive); err != nil {
			log.Printf("%s: archive: %v", file, err)
		}
	}
}

// add records the reading and emits any new delta records.
func (w *watcher) add(ctx context.Context, r *dial.Reading) {
	if w.Trace {
		log.Printf("%s: %s", r.Source, meter.Caption(r))
	}
	w.status.Reading(r)
	if w.readings != nil {
		if err := w.readings.Write(r); err != nil {
			log.Printf("%s: write reading: %v", r.Source, err)
		}
	}
	if w.store != nil {
		if err := w.store.AddReading(ctx, r); err != nil {
			log.Printf("%s: store reading: %v", r.Source, err)
		}
	}
	for _, rec := range w.series.Add(r) {
		w.status.Record(rec)
		if err := w.out.Write(rec); err != nil {
			log.Printf("%s: write record: %v", r.Source, err)
		}
		if w.csv != nil {
			if err := w.csv.Write(rec); err != nil {
				log.Printf("%s: csv: %v", r.Source, err)
			}
		}
		if w.store != nil {
			if err := w.store.AddDelta(ctx, rec); err != nil {
				log.Printf("%s: store delta: %v", r.Source, err)
			}
		}
	}
}

func (w *watcher) writeCheckpoint(now time.Time) {
	if err := series.WriteCheckpoint(w.cpFile, w.series.Checkpoint(), now, w.Trace); err != nil {
		log.Printf("checkpoint: %v", err)
	}
}

func (w *watcher) Close() error {
	err := w.out.Close()
	if w.csv != nil {
		w.csv.Close()
	}
	if w.readings != nil {
		if rerr := w.readings.Close(); err == nil {
			err = rerr
		}
	}
	return err
}
