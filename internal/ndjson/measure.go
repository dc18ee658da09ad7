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
	"fmt"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// Range is a half-open-on-neither-end (both inclusive) byte range
// into an object of known total size.
type Range struct {
	Start, End, Total int64
}

const (
	startField = "start"
	endField   = "end"
	totalField = "total"
)

func (r Range) ToItem() pipeline.Item {
	return pipeline.Item{startField: r.Start, endField: r.End, totalField: r.Total}
}

func RangeFromItem(item pipeline.Item) Range {
	return Range{
		Start: toInt64(item[startField]),
		End:   toInt64(item[endField]),
		Total: toInt64(item[totalField]),
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// LineLocator finds the offset of the first newline at or after from
// within a single object, reading windowSize bytes at a time. It is
// the narrow seam Measure needs from the object store: a ranged read
// plus a byte scan, with no pipeline machinery around it.
type LineLocator interface {
	FindNewline(bucket, key string, from, windowSize int64) (offset int64, found bool, err error)
}

// Measure aligns an item range to line boundaries, so a partitioned
// download of a line-structured object never splits a record. Start
// is nudged forward to just past the first newline at or after
// Start-1 (or past the object's last byte when there is none); End is nudged
// forward to the next newline (or left as the last byte of the
// object when at the object's tail).
type Measure struct {
	Locator    LineLocator
	WindowSize int64

	prev, next *pipeline.ItemPipe
}

const (
	bucketField = "bucket"
	keyField2   = "key"
)

func (s *Measure) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *Measure) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *Measure) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *Measure) Flush() error {
	s.changed()
	return nil
}

func (s *Measure) changed() {
	items := s.prev.Read(-1)
	for _, item := range items {
		aligned, err := s.align(item)
		if err != nil {
			panic(fmt.Errorf("ndjson: measure: %w", err))
		}
		s.next.Append([]pipeline.Item{aligned})
	}
}

func (s *Measure) align(item pipeline.Item) (pipeline.Item, error) {
	r := RangeFromItem(item)
	bucket, _ := item[bucketField].(string)
	key, _ := item[keyField2].(string)

	start := r.Start
	if start != 0 {
		offset, found, err := s.Locator.FindNewline(bucket, key, start-1, s.WindowSize)
		if err != nil {
			return nil, err
		}
		if found {
			start = offset + 1
		} else {
			// Not found before the object's end: the object ends without a
			// trailing newline, so its last byte is the boundary. The rest
			// of the object belongs to the previous range's final record,
			// and this range starts past the last byte (it is empty).
			start = r.Total
		}
	}

	end := r.End
	if end != r.Total-1 {
		offset, found, err := s.Locator.FindNewline(bucket, key, end, s.WindowSize)
		if err != nil {
			return nil, err
		}
		if found {
			end = offset
		} else {
			// No newline between end and EOF: the object ends without a
			// trailing newline, so the final record runs to the last byte.
			end = r.Total - 1
		}
	}

	out := pipeline.Item{
		startField:  start,
		endField:    end,
		totalField:  r.Total,
		bucketField: bucket,
		keyField2:   key,
	}
	return out, nil
}
