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

package ndjson

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// Record is the item shape every sort-core stage downstream of Index
// agrees on: Key drives ordering, Data is the complete source line
// including its trailing newline.
type Record struct {
	Key  any
	Data []byte
}

const (
	keyField  = "key"
	dataField = "data"
)

// ToItem packs a Record into the generic pipeline.Item shape.
func (r Record) ToItem() pipeline.Item {
	return pipeline.Item{keyField: r.Key, dataField: r.Data}
}

// RecordFromItem unpacks a Record out of an item built by ToItem.
func RecordFromItem(item pipeline.Item) Record {
	data, _ := item[dataField].([]byte)
	return Record{Key: item[keyField], Data: data}
}

// Index splits a byte stream at every newline, parses each line as a
// JSON object, and emits one Record item per line with Extract's
// result as the sort key. A parse error is fatal: it is returned to
// the caller as a panic recovered at the pipeline boundary, since
// malformed input must abort the run rather than drop records.
type Index struct {
	Extract func(map[string]any) any

	prev *pipeline.BytePipe
	next *pipeline.ItemPipe
}

func (s *Index) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *Index) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *Index) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *Index) changed() {
	for {
		idx := pipeline.Find(s.prev, '\n')
		if idx == pipeline.NotFound {
			break
		}
		s.emit(s.prev.Read(idx + 1))
	}
}

func (s *Index) emit(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(bytes.TrimRight(line, "\n"), &obj); err != nil {
		panic(fmt.Errorf("ndjson: index: malformed json line: %w", err))
	}
	key := s.Extract(obj)
	s.next.Append([]pipeline.Item{Record{Key: key, Data: line}.ToItem()})
}

func (s *Index) Flush() error {
	s.changed()
	if rest := s.prev.Read(-1); len(rest) > 0 {
		s.emit(rest)
	}
	return nil
}

// Flusher writes Record items' Data back to a byte stream, in order.
type Flusher struct {
	prev *pipeline.ItemPipe
	next *pipeline.BytePipe
}

func (s *Flusher) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *Flusher) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *Flusher) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.BytePipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *Flusher) changed() {
	items := s.prev.Read(-1)
	for _, item := range items {
		s.next.Append(RecordFromItem(item).Data)
	}
}

func (s *Flusher) Flush() error {
	s.changed()
	return nil
}
