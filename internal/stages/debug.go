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
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// BinaryDebug is a transparent tap: every chunk is forwarded
// unmodified, and the running byte count is logged through Metrics.
type BinaryDebug struct {
	Label string

	prev, next *pipeline.BytePipe
	metrics    *telemetry.Metrics
	total      int
}

func (s *BinaryDebug) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *BinaryDebug) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *BinaryDebug) Bind(prev, next any, metrics *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	s.next = next.(*pipeline.BytePipe)
	s.metrics = metrics
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *BinaryDebug) changed() {
	chunk := s.prev.Read(-1)
	if len(chunk) == 0 {
		return
	}
	s.total += len(chunk)
	s.metrics.Log("debug[%s] +%d bytes (%d total)", s.Label, len(chunk), s.total)
	s.next.Append(chunk)
}

func (s *BinaryDebug) Flush() error {
	s.changed()
	return nil
}

// ItemDebug is BinaryDebug's item-stream counterpart, logging item
// counts instead of byte counts.
type ItemDebug struct {
	Label string

	prev, next *pipeline.ItemPipe
	metrics    *telemetry.Metrics
	total      int
}

func (s *ItemDebug) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *ItemDebug) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *ItemDebug) Bind(prev, next any, metrics *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metrics = metrics
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *ItemDebug) changed() {
	items := s.prev.Read(-1)
	if len(items) == 0 {
		return
	}
	s.total += len(items)
	s.metrics.Log("debug[%s] +%d items (%d total)", s.Label, len(items), s.total)
	s.next.Append(items)
}

func (s *ItemDebug) Flush() error {
	s.changed()
	return nil
}
