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
	"fmt"

	"github.com/amacal/laboratory/internal/ndjson"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// MinMax is a passthrough stage that tracks the minimum and maximum
// sort key it has seen, along with each extremum's cumulative byte
// offset, and records the pair as a two-point MarkerCollection under
// Metadata[Name] on Flush. Used by the kway-merge role to publish a
// merged shard's key domain without a full DataMarker pass.
type MinMax struct {
	Name string

	prev, next *pipeline.ItemPipe
	metadata   *telemetry.Metadata

	offset     int64
	haveMin    bool
	minKey     any
	minOffset  int64
	haveMax    bool
	maxKey     any
	maxOffset  int64
}

func (s *MinMax) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *MinMax) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *MinMax) Bind(prev, next any, _ *telemetry.Metrics, metadata *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metadata = metadata
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *MinMax) changed() {
	items := s.prev.Read(-1)
	if len(items) == 0 {
		return
	}
	for _, item := range items {
		r := ndjson.RecordFromItem(item)
		before := s.offset
		s.offset += int64(len(r.Data))

		if !s.haveMin || compareKeys(r.Key, s.minKey) < 0 {
			s.haveMin = true
			s.minKey = r.Key
			s.minOffset = before
		}
		if !s.haveMax || compareKeys(r.Key, s.maxKey) > 0 {
			s.haveMax = true
			s.maxKey = r.Key
			s.maxOffset = s.offset
		}
	}
	s.next.Append(items)
}

func (s *MinMax) Flush() error {
	s.changed()
	if s.haveMin && s.haveMax {
		s.metadata.Set(s.Name, MarkerCollection{
			{Offset: s.minOffset, Key: fmt.Sprint(s.minKey)},
			{Offset: s.maxOffset, Key: fmt.Sprint(s.maxKey)},
		})
	}
	return nil
}
