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

// package config splits a YAML configuration file into its top level
// sections. Each package decodes its own section into its own
// configuration structure; unknown fields are an error.
//
//	meter:
//	  ...
//	series:
//	  ...
//	store:
//	  ...
package config

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Trace    bool
	sections map[string]*yaml.Decoder
}

// Read parses the YAML configuration file.
func Read(file string, trace bool) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b, trace)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return c, nil
}

// Parse generates separate decoders for each section of the YAML configuration.
func Parse(data []byte, trace bool) (*Config, error) {
	c := &Config{Trace: trace, sections: make(map[string]*yaml.Decoder)}
	m := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, v := range m {
		b, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("YAML marshal of %s failed: %v", k, err)
		}
		d := yaml.NewDecoder(bytes.NewReader(b))
		d.KnownFields(true)
		c.sections[k] = d
		if trace {
			log.Printf("YAML section %s = %v", k, v)
		}
	}
	return c, nil
}

// Has returns true if the section is present.
func (c *Config) Has(name string) bool {
	_, ok := c.sections[name]
	return ok
}

// Sections returns the names of the sections present.
func (c *Config) Sections() []string {
	var s []string
	for k := range c.sections {
		s = append(s, k)
	}
	sort.Strings(s)
	return s
}

// Decode decodes the named section into v. If the section is not present,
// v is left unchanged and false is returned. A section may only be
// decoded once.
func (c *Config) Decode(name string, v interface{}) (bool, error) {
	d, ok := c.sections[name]
	if !ok {
		return false, nil
	}
	delete(c.sections, name)
	if err := d.Decode(v); err != nil {
		return true, fmt.Errorf("config section %s: %w", name, err)
	}
	return true, nil
}
