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
	"testing"

	"github.com/amacal/laboratory/internal/ndjson"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// fixedSource is a fake per-source sub-funnel stage: it ignores every
// piece fed to it and emits its entire canned, already-sorted value
// list on Flush, the way a small in-memory shard would once its only
// download range has been read and indexed.
type fixedSource struct {
	values []int64

	prev, next *pipeline.ItemPipe
}

func (s *fixedSource) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *fixedSource) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *fixedSource) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(func() { s.prev.Read(-1) })
	return nil
}

func (s *fixedSource) Flush() error {
	s.prev.Read(-1)
	for _, v := range s.values {
		s.next.Append([]pipeline.Item{ndjson.Record{Key: v, Data: nil}.ToItem()})
	}
	return nil
}

// TestMergeSort2Way matches spec scenario S-6: source A sorted [1,4,7],
// source B sorted [2,3,9], one piece each, merged emission order
// 1,2,3,4,7,9.
func TestMergeSort2Way(t *testing.T) {
	sources := map[string][]int64{
		"A": {1, 4, 7},
		"B": {2, 3, 9},
	}

	p := pipeline.New("merge-2way", &MergeSort{
		PieceSize: 1 << 20,
		Steps: func(source pipeline.Item, _ *telemetry.Metadata) []pipeline.Stage {
			id, _ := source["id"].(string)
			return []pipeline.Stage{&fixedSource{values: sources[id]}}
		},
	})

	input := []pipeline.Item{
		ndjson.Range{Start: 0, End: 0, Total: 1}.ToItem(),
		ndjson.Range{Start: 0, End: 0, Total: 1}.ToItem(),
	}
	input[0]["id"] = "A"
	input[1]["id"] = "B"

	out, err := p.StartItems(input)
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}

	var keys []int64
	for _, item := range out {
		keys = append(keys, ndjson.RecordFromItem(item).Key.(int64))
	}
	want := []int64{1, 2, 3, 4, 7, 9}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

// TestMergeSortNonDecreasing checks invariant 7 (§8): with three
// sources of varying length, the merged output is sorted overall and
// holds as many items as the sources emitted.
func TestMergeSortNonDecreasing(t *testing.T) {
	sources := map[string][]int64{
		"A": {5, 9, 20},
		"B": {1, 2, 3, 4},
		"C": {6, 7, 8, 10, 11, 12},
	}

	p := pipeline.New("merge-3way", &MergeSort{
		PieceSize: 1 << 20,
		Steps: func(source pipeline.Item, _ *telemetry.Metadata) []pipeline.Stage {
			id, _ := source["id"].(string)
			return []pipeline.Stage{&fixedSource{values: sources[id]}}
		},
	})

	var input []pipeline.Item
	for id := range sources {
		item := ndjson.Range{Start: 0, End: 0, Total: 1}.ToItem()
		item["id"] = id
		input = append(input, item)
	}

	out, err := p.StartItems(input)
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}

	total := 0
	for _, v := range sources {
		total += len(v)
	}
	if len(out) != total {
		t.Fatalf("len(out) = %d, want %d", len(out), total)
	}

	var prev int64 = -1 << 62
	for _, item := range out {
		key := ndjson.RecordFromItem(item).Key.(int64)
		if key < prev {
			t.Fatalf("emission order not non-decreasing: %d after %d", key, prev)
		}
		prev = key
	}
}

func BenchmarkMergeSort8Way(b *testing.B) {
	const perSource = 256
	sources := map[string][]int64{}
	for s := 0; s < 8; s++ {
		id := fmt.Sprintf("s%d", s)
		for v := 0; v < perSource; v++ {
			sources[id] = append(sources[id], int64(v*8+s))
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := pipeline.New("merge-bench", &MergeSort{
			PieceSize: 1 << 20,
			Steps: func(source pipeline.Item, _ *telemetry.Metadata) []pipeline.Stage {
				id, _ := source["id"].(string)
				return []pipeline.Stage{&fixedSource{values: sources[id]}}
			},
		})
		var input []pipeline.Item
		for id := range sources {
			item := ndjson.Range{Start: 0, End: 0, Total: 1}.ToItem()
			item["id"] = id
			input = append(input, item)
		}
		if _, err := p.StartItems(input); err != nil {
			b.Fatal(err)
		}
	}
}
