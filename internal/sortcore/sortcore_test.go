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
	"testing"

	"github.com/amacal/laboratory/internal/ndjson"
	"github.com/amacal/laboratory/pkg/pipeline"
)

func record(key any, data string) pipeline.Item {
	return ndjson.Record{Key: key, Data: []byte(data)}.ToItem()
}

func TestQuickSortStability(t *testing.T) {
	p := pipeline.New("quicksort", &QuickSort{})
	input := []pipeline.Item{
		record(3, "3333333333"),
		record(1, "1111111111"),
		record(4, "4444444444"),
		record(1, "1111111112"),
		record(5, "5555555555"),
	}
	out, err := p.StartItems(input)
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("len(out) = %d, want 5", len(out))
	}

	var keys []any
	for _, item := range out {
		keys = append(keys, ndjson.RecordFromItem(item).Key)
	}
	want := []any{1, 1, 3, 4, 5}
	for i, k := range want {
		if compareKeys(keys[i], k) != 0 {
			t.Fatalf("keys[%d] = %v, want %v", i, keys[i], k)
		}
	}
	// Stability: the two key-1 records must keep their original relative
	// order (the one with Data ending "...1" before the one ending "...2").
	if string(ndjson.RecordFromItem(out[0]).Data) != "1111111111" || string(ndjson.RecordFromItem(out[1]).Data) != "1111111112" {
		t.Fatalf("equal-key records reordered: %q then %q", ndjson.RecordFromItem(out[0]).Data, ndjson.RecordFromItem(out[1]).Data)
	}
}

// TestDataMarkerScenario matches spec scenario S-3: five 10-byte lines
// with keys [3,1,4,1,5], sorted then marked with count=4, expect
// markers {0:1, 10:1, 20:3, 30:4, 50:5}.
func TestDataMarkerScenario(t *testing.T) {
	p := pipeline.New("sort-mark",
		&QuickSort{},
		&DataMarker{Name: "m", Count: 4},
	)
	input := []pipeline.Item{
		record(3, "0123456789"),
		record(1, "0123456789"),
		record(4, "0123456789"),
		record(1, "0123456789"),
		record(5, "0123456789"),
	}
	_, err := p.StartItems(input)
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}

	raw, ok := p.Metadata.Get("m")
	if !ok {
		t.Fatalf("metadata key %q not set", "m")
	}
	markers, ok := raw.(MarkerCollection)
	if !ok {
		t.Fatalf("metadata value has type %T, want MarkerCollection", raw)
	}

	want := MarkerCollection{
		{Offset: 0, Key: "1"},
		{Offset: 10, Key: "1"},
		{Offset: 20, Key: "3"},
		{Offset: 30, Key: "4"},
		{Offset: 50, Key: "5"},
	}
	if len(markers) != len(want) {
		t.Fatalf("len(markers) = %d, want %d (%v)", len(markers), len(want), markers)
	}
	for i := range want {
		if markers[i] != want[i] {
			t.Fatalf("markers[%d] = %+v, want %+v", i, markers[i], want[i])
		}
	}
}

// TestDataMarkerShortWindow covers a window shorter than the marker
// count, the normal case for the last chunk of a file: still exactly
// Count+1 markers, with the equidistant indices repeating.
func TestDataMarkerShortWindow(t *testing.T) {
	p := pipeline.New("mark-short", &DataMarker{Name: "m", Count: 4})
	input := []pipeline.Item{
		record(7, "0123456789"),
		record(9, "0123456789"),
	}
	if _, err := p.StartItems(input); err != nil {
		t.Fatalf("StartItems error: %v", err)
	}

	raw, _ := p.Metadata.Get("m")
	markers := raw.(MarkerCollection)
	want := MarkerCollection{
		{Offset: 0, Key: "7"},
		{Offset: 0, Key: "7"},
		{Offset: 10, Key: "9"},
		{Offset: 10, Key: "9"},
		{Offset: 20, Key: "9"},
	}
	if len(markers) != len(want) {
		t.Fatalf("len(markers) = %d, want %d (%v)", len(markers), len(want), markers)
	}
	for i := range want {
		if markers[i] != want[i] {
			t.Fatalf("markers[%d] = %+v, want %+v", i, markers[i], want[i])
		}
	}
}

func TestMinMaxTracksExtremes(t *testing.T) {
	p := pipeline.New("minmax", &MinMax{Name: "mm"})
	input := []pipeline.Item{
		record(3, "0123456789"),
		record(1, "0123456789"),
		record(4, "0123456789"),
	}
	out, err := p.StartItems(input)
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3 (passthrough)", len(out))
	}

	raw, ok := p.Metadata.Get("mm")
	if !ok {
		t.Fatalf("metadata key %q not set", "mm")
	}
	markers := raw.(MarkerCollection)
	want := MarkerCollection{
		{Offset: 10, Key: "1"},
		{Offset: 30, Key: "4"},
	}
	if len(markers) != 2 || markers[0] != want[0] || markers[1] != want[1] {
		t.Fatalf("markers = %+v, want %+v", markers, want)
	}
}

func BenchmarkQuickSort(b *testing.B) {
	const n = 4096
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		input := make([]pipeline.Item, n)
		for j := range input {
			input[j] = record(int64((j*7919)%n), "0123456789")
		}
		p := pipeline.New("quicksort-bench", &QuickSort{})
		b.StartTimer()
		if _, err := p.StartItems(input); err != nil {
			b.Fatal(err)
		}
	}
}

func TestMarkerCollectionEncodeParseRoundTrips(t *testing.T) {
	in := MarkerCollection{{Offset: 0, Key: "a"}, {Offset: 10, Key: "b c"}}
	encoded := in.Encode()
	out, err := ParseMarkerCollection(encoded)
	if err != nil {
		t.Fatalf("ParseMarkerCollection error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %+v, want %+v", i, out[i], in[i])
		}
	}
}
