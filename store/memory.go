// Copyright 2021 Google LLC
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

package store

import (
	"sync"

	"github.com/aamcrae/tensioner/tension"
)

// Memory keeps the configuration and log in memory, for the simulator.
type Memory struct {
	mu      sync.Mutex
	config  tension.Config
	records []tension.Record
	Saves   int
}

// NewMemory returns an empty store that loads the default configuration.
func NewMemory() *Memory {
	return &Memory{config: tension.DefaultConfig()}
}

// SaveConfig keeps a copy of the configuration.
func (m *Memory) SaveConfig(c tension.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = c
	m.Saves++
}

// LoadConfig returns the last saved configuration.
func (m *Memory) LoadConfig() tension.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// AppendLogRecord keeps the record.
func (m *Memory) AppendLogRecord(r tension.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
}

// LoadLogRecords returns up to limit of the newest records.
func (m *Memory) LoadLogRecords(limit int) []tension.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newest(append([]tension.Record(nil), m.records...), limit)
}
