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

package sortcore

import (
	"sort"

	"github.com/amacal/laboratory/internal/ndjson"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// QuickSort drains its upstream fully on Flush and emits the items
// stably sorted by their Record key. It is in-memory and intended for
// windows small enough to fit: the caller (a ChunkSort window, or
// a single Lambda invocation) is responsible for bounding that size.
type QuickSort struct {
	prev, next *pipeline.ItemPipe
	buffered   []pipeline.Item
}

func (s *QuickSort) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *QuickSort) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *QuickSort) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *QuickSort) changed() {
	s.buffered = append(s.buffered, s.prev.Read(-1)...)
}

func (s *QuickSort) Flush() error {
	s.changed()
	sort.SliceStable(s.buffered, func(i, j int) bool {
		ri := ndjson.RecordFromItem(s.buffered[i])
		rj := ndjson.RecordFromItem(s.buffered[j])
		return compareKeys(ri.Key, rj.Key) < 0
	})
	s.next.Append(s.buffered)
	s.buffered = nil
	return nil
}
