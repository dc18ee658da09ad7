// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry carries the Metrics sink every pipeline writes
// through: timestamped operational log lines plus the Prometheus
// counters/histograms exported for the running process.
package telemetry

import (
	"fmt"
	"sync"
	"time"
)

// Metrics is the per-pipeline logging and counting facade. It is
// intentionally not a leveled logger: operational lines are printed
// the way the rest of this codebase prints them, single-line and
// timestamped, and read back in tests via Lines().
type Metrics struct {
	name string

	mu      sync.Mutex
	lines   []string
	capture bool
}

// New returns a Metrics bag for a pipeline named name.
func New(name string) *Metrics {
	return &Metrics{name: name}
}

// NewCapturing returns a Metrics bag that also retains every logged
// line in memory, for assertions in tests.
func NewCapturing(name string) *Metrics {
	return &Metrics{name: name, capture: true}
}

// Log writes a formatted, timestamped operational line prefixed with
// the pipeline name.
func (m *Metrics) Log(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s %s", time.Now().UTC().Format(time.RFC3339Nano), m.name, fmt.Sprintf(format, args...))
	m.emit(line)
}

// Raw writes a line verbatim (no timestamp prefix added), used for
// forwarding remote log output such as task-runner log streams.
func (m *Metrics) Raw(line string) {
	m.emit(fmt.Sprintf("[%s] %s", m.name, line))
}

func (m *Metrics) emit(line string) {
	fmt.Println(line)
	if m.capture {
		m.mu.Lock()
		m.lines = append(m.lines, line)
		m.mu.Unlock()
	}
}

// Lines returns every line logged so far, if this Metrics was created
// with NewCapturing.
func (m *Metrics) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Name returns the pipeline name this Metrics bag was created for.
func (m *Metrics) Name() string { return m.name }

// Metadata is a string-keyed bag stages write into (digests, sort
// markers, ...). Pipeline.Start logs its contents once the run
// completes.
type Metadata struct {
	mu     sync.Mutex
	values map[string]any
}

// NewMetadata returns an empty Metadata bag.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]any)}
}

// Set stores value under key, overwriting any previous value.
func (m *Metadata) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Get returns the value stored under key and whether it was present.
func (m *Metadata) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Snapshot returns a shallow copy of every key/value currently stored.
func (m *Metadata) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
