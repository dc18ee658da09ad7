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
	"testing"

	"github.com/amacal/laboratory/pkg/pipeline"
)

func TestIndexThenFlushRoundTrips(t *testing.T) {
	p := pipeline.New("index-flush",
		&Index{Extract: func(obj map[string]any) any { return obj["id"] }},
		&Flusher{},
	)

	input := []byte("{\"id\":3}\n{\"id\":1}\n{\"id\":2}\n")
	out, err := p.StartBytes(input)
	if err != nil {
		t.Fatalf("StartBytes error: %v", err)
	}
	if string(out) != string(input) {
		t.Fatalf("round trip = %q, want %q", out, input)
	}
}

func TestChunkEmitsLineAlignedPrefix(t *testing.T) {
	p := pipeline.New("chunk", &Chunk{ChunkSize: 4})
	out, err := p.StartBytes([]byte("ab\ncd\nef"))
	if err != nil {
		t.Fatalf("StartBytes error: %v", err)
	}
	if string(out) != "ab\ncd\nef" {
		t.Fatalf("out = %q", out)
	}
}

// bytesLocator is a LineLocator over an in-memory object, enough for
// Measure tests without an object store.
type bytesLocator struct {
	data []byte
}

func (l *bytesLocator) FindNewline(_, _ string, from, _ int64) (int64, bool, error) {
	idx := bytes.IndexByte(l.data[from:], '\n')
	if idx < 0 {
		return 0, false, nil
	}
	return from + int64(idx), true, nil
}

// TestMeasureAlignsRangeToLineBoundaries: a 31-byte object of seven
// "abc\n" lines then "ab\n"; range [10,20] must align to [12,23],
// since the bytes at 11 and 23 are newlines.
func TestMeasureAlignsRangeToLineBoundaries(t *testing.T) {
	data := append(bytes.Repeat([]byte("abc\n"), 7), []byte("ab\n")...)
	if len(data) != 31 {
		t.Fatalf("fixture is %d bytes, want 31", len(data))
	}

	p := pipeline.New("measure", &Measure{Locator: &bytesLocator{data: data}, WindowSize: 4})
	item := Range{Start: 10, End: 20, Total: 31}.ToItem()
	item["bucket"] = "bkt"
	item["key"] = "lines"

	out, err := p.StartItems([]pipeline.Item{item})
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	aligned := RangeFromItem(out[0])
	if aligned.Start != 12 || aligned.End != 23 {
		t.Fatalf("aligned = [%d,%d], want [12,23]", aligned.Start, aligned.End)
	}
}

// TestMeasureKeepsEdgesAtObjectBounds: a range already starting at 0
// and ending at the object's last byte needs no probing at either edge.
func TestMeasureKeepsEdgesAtObjectBounds(t *testing.T) {
	data := []byte("abc\nde")

	p := pipeline.New("measure-edges", &Measure{Locator: &bytesLocator{data: data}, WindowSize: 4})
	item := Range{Start: 0, End: 5, Total: 6}.ToItem()
	item["bucket"] = "bkt"
	item["key"] = "lines"

	out, err := p.StartItems([]pipeline.Item{item})
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}
	aligned := RangeFromItem(out[0])
	if aligned.Start != 0 || aligned.End != 5 {
		t.Fatalf("aligned = [%d,%d], want [0,5]", aligned.Start, aligned.End)
	}
}
