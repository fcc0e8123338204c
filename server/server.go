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

// package server implements a HTTP API server and status server
// for the current meter state.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/aamcrae/DialMeter/dial"
	"github.com/aamcrae/DialMeter/lib"
	"github.com/aamcrae/DialMeter/meter"
	"github.com/aamcrae/DialMeter/series"
)

type ServerConfig struct {
	Port int // HTTP port
}

const DefaultPort = 8080

// Status is the latest state of the meter, updated as images are read.
type Status struct {
	mu      sync.Mutex
	started time.Time
	images  int
	skipped int
	last    *dial.Reading
	lastErr string
	records map[string]*series.DeltaRecord
}

func NewStatus() *Status {
	return &Status{started: time.Now(), records: make(map[string]*series.DeltaRecord)}
}

// Reading records a decoded image.
func (s *Status) Reading(r *dial.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images++
	s.last = r
}

// Skipped records an image that could not be read.
func (s *Status) Skipped(src string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
	s.lastErr = fmt.Sprintf("%s: %v", src, err)
}

// Record keeps the latest delta record of each counter.
func (s *Status) Record(r *series.DeltaRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Counter] = r
}

type Item struct {
	Value     float64 `json:"value"`
	Delta     float64 `json:"delta"`
	Rate      float64 `json:"rate"`
	Timestamp int64   `json:"timestamp"`
}

type Data struct {
	Images   int             `json:"images"`
	Skipped  int             `json:"skipped"`
	Reading  *dial.Reading   `json:"reading,omitempty"`
	Counters map[string]Item `json:"counters"`
}

func (s *Status) data() *Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &Data{Images: s.images, Skipped: s.skipped, Reading: s.last, Counters: make(map[string]Item)}
	for k, r := range s.records {
		d.Counters[k] = Item{Value: r.Value, Delta: r.Delta, Rate: r.Rate, Timestamp: r.Time.Unix()}
	}
	return d
}

type Server struct {
	Trace  bool
	status *Status
	srv    *http.Server
}

func New(port int, st *Status) *Server {
	s := &Server{status: st}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", lib.ConfigOrDefault(port, DefaultPort)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", s.api)
	mux.HandleFunc("/api/", s.api)
	mux.HandleFunc("/status", s.statusPage)
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		s.statusPage(w, req)
	})
	return mux
}

// Start serves requests until the context is done.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(c)
	}()
	log.Printf("HTTP API and status server on %s\n", s.srv.Addr)
}

// Handler for API requests.
func (s *Server) api(w http.ResponseWriter, req *http.Request) {
	if s.Trace {
		log.Printf("API: Request: %s", req.URL.String())
	}
	m, err := json.Marshal(s.status.data())
	if err != nil {
		log.Printf("api: marshal: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(m)
}

// statusPage provides a HTML status page.
func (s *Server) statusPage(w http.ResponseWriter, req *http.Request) {
	if s.Trace {
		log.Printf("Request: %s", req.URL.String())
	}
	s.status.mu.Lock()
	defer s.status.mu.Unlock()
	now := time.Now()
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, "<html><head></head><body>")
	fmt.Fprintf(w, "<h1>Status</h1>")
	fmt.Fprintf(w, "<p>Up %s, %d images read, %d skipped</p>", now.Sub(s.status.started).Truncate(time.Second), s.status.images, s.status.skipped)
	if len(s.status.lastErr) != 0 {
		fmt.Fprintf(w, "<p>Last error: %s</p>", html.EscapeString(s.status.lastErr))
	}
	if r := s.status.last; r != nil {
		fmt.Fprintf(w, "<h1>Reading</h1><p>%s</p>", html.EscapeString(meter.Caption(r)))
	}
	fmt.Fprintf(w, "<h1>Counters</h1>")
	fmt.Fprintf(w, "<table border=\"1\"><tr><th>Counter</th><th>Value</th><th>Delta</th><th>Rate/h</th><th>Timestamp</th><th>Age</tr>")
	// Sort in key order.
	var keys []string
	for k := range s.status.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r := s.status.records[k]
		fmt.Fprintf(w, "<tr><td><bold>%s</bold></td>", k)
		fmt.Fprintf(w, "<td style=\"text-align:right\">%s</td>", lib.FmtFloat(r.Value))
		fmt.Fprintf(w, "<td style=\"text-align:right\">%s</td>", lib.FmtFloat(r.Delta))
		fmt.Fprintf(w, "<td style=\"text-align:right\">%s</td>", lib.FmtFloat(r.Rate*time.Hour.Seconds()))
		fmt.Fprintf(w, "<td>%s</td><td>%s</td></tr>", r.Time.Format(time.UnixDate),
			now.Sub(r.Time).Truncate(time.Second).String())
	}
	fmt.Fprintf(w, "</table></body>")
}
