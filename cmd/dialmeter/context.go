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
	"strconv"
	"strings"
	"sync"

	"github.com/aamcrae/DialMeter/config"
	"github.com/aamcrae/DialMeter/lib"
	"github.com/aamcrae/DialMeter/meter"
	"github.com/aamcrae/DialMeter/series"
	"github.com/aamcrae/DialMeter/server"
	"github.com/aamcrae/DialMeter/store"
)

type commandContext struct {
	configFlag *string
	traceFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, traceFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		traceFlag:  traceFlag,
	}
}

func (c *commandContext) trace() bool {
	return c.traceFlag != nil && *c.traceFlag
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Read(path, c.trace())
	})
	return c.config, c.configErr
}

// meterReader builds the image reader from the meter section, which
// must be present.
func (c *commandContext) meterReader() (*meter.Reader, error) {
	conf, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var mc meter.MeterConfig
	ok, err := conf.Decode("meter", &mc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no meter section in configuration")
	}
	return meter.NewReader(&mc, c.trace())
}

// seriesConfig returns the series section. Counters given on the command
// line replace any that are configured.
func (c *commandContext) seriesConfig(counters []string) (*series.SeriesConfig, error) {
	conf, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var sc series.SeriesConfig
	if _, err := conf.Decode("series", &sc); err != nil {
		return nil, err
	}
	if len(counters) != 0 {
		cc, err := parseCounters(counters)
		if err != nil {
			return nil, err
		}
		sc.Counters = cc
	}
	return &sc, nil
}

// openStore opens the reading archive, or returns nil if none is configured.
func (c *commandContext) openStore() (*store.Store, error) {
	conf, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var sc store.StoreConfig
	ok, err := conf.Decode("store", &sc)
	if err != nil {
		return nil, err
	}
	if !ok || len(sc.Path) == 0 {
		return nil, nil
	}
	s, err := store.Open(sc.Path)
	if err != nil {
		return nil, err
	}
	s.Trace = c.trace()
	return s, nil
}

// serverPort returns the HTTP status port, with the flag taking precedence
// over the server section. Zero means no server.
func (c *commandContext) serverPort(flag int) (int, error) {
	conf, err := c.ensureConfig()
	if err != nil {
		return 0, err
	}
	var sc server.ServerConfig
	ok, err := conf.Decode("server", &sc)
	if err != nil {
		return 0, err
	}
	switch {
	case flag != 0:
		return flag, nil
	case ok:
		return lib.ConfigOrDefault(sc.Port, server.DefaultPort), nil
	}
	return 0, nil
}

// parseCounters parses counters of the form name[:unit].
func parseCounters(args []string) ([]series.CounterConfig, error) {
	var cc []series.CounterConfig
	for _, a := range args {
		for _, s := range strings.Split(a, ",") {
			s = strings.TrimSpace(s)
			if len(s) == 0 {
				continue
			}
			name, unit, found := strings.Cut(s, ":")
			c := series.CounterConfig{Name: name}
			if found {
				u, err := strconv.ParseFloat(unit, 64)
				if err != nil {
					return nil, fmt.Errorf("counter %s: bad unit %q", name, unit)
				}
				c.Unit = u
			}
			cc = append(cc, c)
		}
	}
	return cc, nil
}
