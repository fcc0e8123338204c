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

package series

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// Checkpoint key holding the time the checkpoint was written.
const C_TIME = "time"

// ReadCheckpoint reads the checkpoint file of <counter>:<data> lines.
// A missing file is not an error.
func ReadCheckpoint(file string, trace bool) (map[string]string, error) {
	cp := make(map[string]string)
	f, err := os.Open(file)
	if err != nil {
		// If the checkpoint file doesn't exist, skip trying to read it.
		log.Printf("Unable to read %s (%v), no checkpoint data", file, err)
		return cp, nil
	}
	defer f.Close()
	log.Printf("Reading checkpoint data from %s", file)
	r := bufio.NewReader(f)
	lineno := 0
	for {
		lineno++
		s, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("checkpoint read %s: line %d: %v", file, lineno, err)
		}
		line := strings.TrimSuffix(s, "\n")
		i := strings.IndexRune(line, ':')
		if i > 0 {
			cp[line[:i]] = line[i+1:]
			if trace {
				log.Printf("Checkpoint entry %s = %s\n", line[:i], line[i+1:])
			}
		}
		if err == io.EOF {
			return cp, nil
		}
	}
}

// WriteCheckpoint writes the checkpoint data, sorted by key.
func WriteCheckpoint(file string, cp map[string]string, now time.Time, trace bool) error {
	if trace {
		log.Printf("Writing checkpoint data to %s", file)
	}
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("checkpoint file create: %s %v", file, err)
	}
	wr := bufio.NewWriter(f)
	var keys []string
	for k := range cp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(wr, "%s:%s\n", k, cp[k])
	}
	fmt.Fprintf(wr, "%s:%d\n", C_TIME, now.Unix())
	if err := wr.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
