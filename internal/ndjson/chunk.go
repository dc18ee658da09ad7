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

// Package ndjson implements the line-aligned framing, key-extracted
// indexing, and range-to-line-boundary alignment stages that sit
// between the object store and the sort core.
package ndjson

import (
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// Chunk flushes a line-aligned prefix downstream whenever upstream
// exceeds ChunkSize bytes: it locates the last newline in the
// buffered data, emits the prefix including it, and leaves the
// remainder (which may not end on a line) for the next cycle. Flush
// emits whatever is left, line-aligned or not.
type Chunk struct {
	ChunkSize int

	prev, next *pipeline.BytePipe
}

func (s *Chunk) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *Chunk) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *Chunk) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	s.next = next.(*pipeline.BytePipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *Chunk) changed() {
	for s.prev.Length() > s.ChunkSize {
		idx := pipeline.RFind(s.prev, '\n')
		if idx == pipeline.NotFound {
			break
		}
		s.next.Append(s.prev.Read(idx + 1))
	}
}

func (s *Chunk) Flush() error {
	s.changed()
	if rest := s.prev.Read(-1); len(rest) > 0 {
		s.next.Append(rest)
	}
	return nil
}
