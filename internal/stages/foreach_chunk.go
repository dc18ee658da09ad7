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

package stages

import (
	"fmt"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// ForEachChunk windows a byte stream into contiguous prefixes of at
// least ChunkSize bytes (the final window at Flush may be shorter),
// running each window through a freshly built sub-funnel from Steps
// and forwarding the sub-funnel's tail output downstream.
type ForEachChunk struct {
	ChunkSize int
	Steps     func(index int, metadata *telemetry.Metadata) []pipeline.Stage

	prev, next *pipeline.BytePipe
	metrics    *telemetry.Metrics
	metadata   *telemetry.Metadata

	funnel    *pipeline.Funnel
	processed int
	index     int
}

func (s *ForEachChunk) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *ForEachChunk) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *ForEachChunk) Bind(prev, next any, metrics *telemetry.Metrics, metadata *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	s.next = next.(*pipeline.BytePipe)
	s.metrics = metrics
	s.metadata = metadata
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *ForEachChunk) ensureFunnel() error {
	if s.funnel != nil {
		return nil
	}
	f := pipeline.NewFunnel(s.Steps(s.index, s.metadata)...)
	if err := f.Bind(s.metrics, s.metadata); err != nil {
		return fmt.Errorf("foreach_chunk: bind window %d: %w", s.index, err)
	}
	f.Subscribe(func() {
		s.next.Append(f.ReadBytes(-1))
	})
	s.funnel = f
	return nil
}

func (s *ForEachChunk) changed() {
	if err := s.ensureFunnel(); err != nil {
		panic(err)
	}
	chunk := s.prev.Read(-1)
	if len(chunk) == 0 {
		return
	}
	s.funnel.AppendBytes(chunk)
	s.processed += len(chunk)
	if s.processed >= s.ChunkSize {
		s.cycle()
	}
}

func (s *ForEachChunk) cycle() {
	if err := s.funnel.Flush(); err != nil {
		panic(fmt.Errorf("foreach_chunk: flush window %d: %w", s.index, err))
	}
	s.next.Append(s.funnel.ReadBytes(-1))
	s.funnel = nil
	s.processed = 0
	s.index++
}

func (s *ForEachChunk) Flush() error {
	rest := s.prev.Read(-1)
	if len(rest) > 0 {
		if err := s.ensureFunnel(); err != nil {
			return err
		}
		s.funnel.AppendBytes(rest)
	}
	if s.funnel == nil {
		return nil
	}
	if err := s.funnel.Flush(); err != nil {
		return fmt.Errorf("foreach_chunk: final flush window %d: %w", s.index, err)
	}
	s.next.Append(s.funnel.ReadBytes(-1))
	s.funnel = nil
	return nil
}
