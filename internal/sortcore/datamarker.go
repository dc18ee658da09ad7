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

// DataMarker is a passthrough stage over an already-sorted stream: on
// Flush it samples Count+1 equidistant (index, offset, key) markers
// and records them under Metadata[Name] as a MarkerCollection, then
// forwards every item unchanged in its original order.
type DataMarker struct {
	Name  string
	Count int

	prev, next *pipeline.ItemPipe
	metadata   *telemetry.Metadata
	buffered   []pipeline.Item
}

func (s *DataMarker) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *DataMarker) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *DataMarker) Bind(prev, next any, _ *telemetry.Metrics, metadata *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metadata = metadata
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *DataMarker) changed() {
	s.buffered = append(s.buffered, s.prev.Read(-1)...)
}

func (s *DataMarker) Flush() error {
	s.changed()
	s.metadata.Set(s.Name, s.buildMarkers())
	s.next.Append(s.buffered)
	s.buffered = nil
	return nil
}

func (s *DataMarker) buildMarkers() MarkerCollection {
	n := len(s.buffered)
	if n == 0 {
		return nil
	}
	// Cumulative byte offset of each item's Data, so offsetBefore[j] is
	// the total length of items [0..j).
	offsetBefore := make([]int64, n+1)
	for i, item := range s.buffered {
		offsetBefore[i+1] = offsetBefore[i] + int64(len(ndjson.RecordFromItem(item).Data))
	}

	// One marker per equidistant index i*n/Count, i in [0,Count), plus
	// the sentinel below: always Count+1 markers. A window shorter than
	// Count rows repeats indices, so some markers coincide; the merge
	// grouping treats coinciding markers as an empty segment.
	markers := make(MarkerCollection, 0, s.Count+1)
	for i := 0; i < s.Count; i++ {
		idx := i * n / s.Count
		key := ndjson.RecordFromItem(s.buffered[idx]).Key
		markers = append(markers, Marker{Offset: offsetBefore[idx], Key: fmt.Sprint(key)})
	}

	// The final marker is the sentinel at the stream's total byte
	// length, paired with the last item's key rather than the
	// equidistant index n-1 — it marks where the domain ends, not
	// where the second-to-last sample starts.
	lastKey := ndjson.RecordFromItem(s.buffered[n-1]).Key
	markers = append(markers, Marker{Offset: offsetBefore[n], Key: fmt.Sprint(lastKey)})
	return markers
}
