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
	"github.com/amacal/laboratory/internal/objectstore"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

const markersMetadataKey = "sorting:markers"

// ChunkSort windows a line-aligned NDJSON byte stream the same way
// ndjson.Chunk does (cut at the last newline above ChunkSize, flush
// whatever remains at the end), but instead of forwarding the window's
// bytes it quicksorts the window by Extract's key, uploads it to a
// numbered temporary shard with its DataMarker markers encoded into
// the object key's query string, and emits the resulting
// ShardDescriptor downstream. This is the local counterpart to the
// quick-sort Lambda handler's per-shard work, driven by a size
// threshold instead of a pre-assigned byte range.
type ChunkSort struct {
	ChunkSize   int
	Extract     func(map[string]any) any
	MarkerCount int
	Store       objectstore.Store
	Bucket      string
	Key         func(index int) string

	prev    *pipeline.BytePipe
	next    *pipeline.ItemPipe
	metrics *telemetry.Metrics
	index   int
}

func (s *ChunkSort) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *ChunkSort) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *ChunkSort) Bind(prev, next any, metrics *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metrics = metrics
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *ChunkSort) changed() {
	for s.prev.Length() > s.ChunkSize {
		idx := pipeline.RFind(s.prev, '\n')
		if idx == pipeline.NotFound {
			break
		}
		if err := s.window(s.prev.Read(idx + 1)); err != nil {
			panic(err)
		}
	}
}

func (s *ChunkSort) window(chunk []byte) error {
	funnel := pipeline.NewFunnel(
		&ndjson.Index{Extract: s.Extract},
		&QuickSort{},
		&DataMarker{Name: markersMetadataKey, Count: s.MarkerCount},
		&ndjson.Flusher{},
		&objectstore.S3Upload{
			Store:  s.Store,
			Bucket: s.Bucket,
			Key: func(metadata *telemetry.Metadata) string {
				raw, _ := metadata.Get(markersMetadataKey)
				markers, _ := raw.(MarkerCollection)
				return fmt.Sprintf("%s?%s", s.Key(s.index), markers.Encode())
			},
			ChunkSize: 128 * 1024 * 1024,
		},
	)
	metadata := telemetry.NewMetadata()
	if err := funnel.Bind(s.metrics, metadata); err != nil {
		return fmt.Errorf("sortcore: chunksort: bind window %d: %w", s.index, err)
	}
	funnel.AppendBytes(chunk)
	if err := funnel.Flush(); err != nil {
		return fmt.Errorf("sortcore: chunksort: flush window %d: %w", s.index, err)
	}

	if out := funnel.ReadItems(-1); len(out) == 1 {
		obj := objectstore.S3ObjectFromItem(out[0])
		raw, _ := metadata.Get(markersMetadataKey)
		markers, _ := raw.(MarkerCollection)
		descriptor := ShardDescriptor{Bucket: obj.Bucket, Shard: obj.Key, Total: int64(len(chunk)), Markers: markers}
		s.next.Append([]pipeline.Item{descriptor.ToItem()})
	}
	s.index++
	return nil
}

func (s *ChunkSort) Flush() error {
	s.changed()
	if rest := s.prev.Read(-1); len(rest) > 0 {
		if err := s.window(rest); err != nil {
			return err
		}
	}
	return nil
}
