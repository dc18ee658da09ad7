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

// ForEachItem runs each non-empty batch of items that arrives through
// a freshly built sub-funnel from Steps: build, append, flush, drain
// tail into downstream, discard. Unlike ForEachChunk there is no
// windowing threshold — every Changed call is its own cycle.
type ForEachItem struct {
	Steps func(index int, metadata *telemetry.Metadata) []pipeline.Stage

	prev, next *pipeline.ItemPipe
	metrics    *telemetry.Metrics
	metadata   *telemetry.Metadata
	index      int
}

func (s *ForEachItem) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *ForEachItem) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *ForEachItem) Bind(prev, next any, metrics *telemetry.Metrics, metadata *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metrics = metrics
	s.metadata = metadata
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *ForEachItem) changed() {
	batch := s.prev.Read(-1)
	if len(batch) == 0 {
		return
	}
	if err := s.runBatch(batch); err != nil {
		panic(err)
	}
}

func (s *ForEachItem) runBatch(batch []pipeline.Item) error {
	f := pipeline.NewFunnel(s.Steps(s.index, s.metadata)...)
	s.index++
	if err := f.Bind(s.metrics, s.metadata); err != nil {
		return fmt.Errorf("foreach_item: bind batch: %w", err)
	}
	f.AppendItems(batch)
	if err := f.Flush(); err != nil {
		return fmt.Errorf("foreach_item: flush batch: %w", err)
	}
	s.next.Append(f.ReadItems(-1))
	return nil
}

func (s *ForEachItem) Flush() error {
	batch := s.prev.Read(-1)
	if len(batch) == 0 {
		return nil
	}
	return s.runBatch(batch)
}
