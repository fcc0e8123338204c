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
	"context"
	"log"
	"time"
)

type Callback func(time.Time)

// Ticker invokes callbacks at regular intervals aligned to the
// interval boundary (e.g every whole minute).
type Ticker struct {
	Trace     bool
	tick      time.Duration // Interval duration
	callbacks []Callback    // List of callbacks
}

type Event struct {
	Now    time.Time
	Ticker *Ticker
}

func NewTicker(tick time.Duration) *Ticker {
	return &Ticker{tick: tick}
}

// Start sends an event on ec at each interval until the context is done.
func (t *Ticker) Start(ctx context.Context, ec chan<- Event) {
	if t.Trace {
		log.Printf("Initialising ticker interval %s", t.tick.String())
	}
	go func() {
		tv := Event{Ticker: t}
		for {
			// Calculate the next time an event should be sent, and
			// wait until then.
			now := time.Now()
			tv.Now = now.Add(t.tick).Truncate(t.tick)
			tm := time.NewTimer(tv.Now.Sub(now))
			select {
			case <-ctx.Done():
				tm.Stop()
				return
			case <-tm.C:
			}
			select {
			case ec <- tv:
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (t *Ticker) AddCB(cb Callback) {
	t.callbacks = append(t.callbacks, cb)
}

func (t *Ticker) Tick() time.Duration {
	return t.tick
}

// Dispatch invokes the callbacks of the ticker that sent the event.
func (e *Event) Dispatch() {
	for _, cb := range e.Ticker.callbacks {
		cb(e.Now)
	}
}
