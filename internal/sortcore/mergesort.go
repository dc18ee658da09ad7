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
	"container/heap"
	"fmt"

	"github.com/amacal/laboratory/internal/ndjson"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// heapEntry is one in-flight candidate in the k-way merge's min-heap:
// the next not-yet-emitted record from a single source, tagged with
// its source index for a stable tie-break.
type heapEntry struct {
	key    any
	source int
	item   pipeline.Item
}

type mergeHeap []heapEntry

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if c := compareKeys(h[i].key, h[j].key); c != 0 {
		return c < 0
	}
	return h[i].source < h[j].source
}
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(heapEntry)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// SourceFilter admits or rejects a source's record by key and its
// per-source record index (0-based, counting only records seen so
// far from that source). A nil SourceFilter on MergeSort accepts
// everything.
type SourceFilter func(key any, index int) bool

// MergeSort performs a heap-based k-way external merge. Every item
// that arrives upstream names one source (an object descriptor built
// the way ndjson.Range items are); MergeSort splits each source into
// PieceSize byte pieces, feeds them into a per-source sub-funnel built
// by Steps one piece at a time, and merges the sorted output streams
// by repeatedly popping the heap's minimum and refilling from that
// record's source. While a source still has input, at most one of its
// items sits in the heap; once it is exhausted, whatever its sub-funnel
// emits on its final flush goes into the heap at once.
type MergeSort struct {
	PieceSize int64
	Steps     func(source pipeline.Item, metadata *telemetry.Metadata) []pipeline.Stage
	Filter    func(source pipeline.Item, index int) SourceFilter

	prev, next *pipeline.ItemPipe
	metrics    *telemetry.Metrics
	metadata   *telemetry.Metadata
	sources    []pipeline.Item
}

func (s *MergeSort) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *MergeSort) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *MergeSort) Bind(prev, next any, metrics *telemetry.Metrics, metadata *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metrics = metrics
	s.metadata = metadata
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *MergeSort) changed() {
	s.sources = append(s.sources, s.prev.Read(-1)...)
}

func (s *MergeSort) Flush() error {
	s.changed()
	return s.merge()
}

func splitIntoPieces(src pipeline.Item, pieceSize int64) []pipeline.Item {
	r := ndjson.RangeFromItem(src)
	if pieceSize <= 0 || r.End < r.Start {
		return []pipeline.Item{src}
	}
	var pieces []pipeline.Item
	for start := r.Start; start <= r.End; {
		end := start + pieceSize - 1
		if end > r.End {
			end = r.End
		}
		piece := ndjson.Range{Start: start, End: end, Total: r.Total}.ToItem()
		for k, v := range src {
			if _, reserved := piece[k]; !reserved {
				piece[k] = v
			}
		}
		pieces = append(pieces, piece)
		start = end + 1
	}
	return pieces
}

func (s *MergeSort) merge() error {
	n := len(s.sources)
	if n == 0 {
		return nil
	}

	funnels := make([]*pipeline.Funnel, n)
	pieces := make([][]pipeline.Item, n)
	filters := make([]SourceFilter, n)
	indices := make([]int, n)
	exhausted := make([]bool, n)

	for i, src := range s.sources {
		f := pipeline.NewFunnel(s.Steps(src, s.metadata)...)
		if err := f.Bind(s.metrics, s.metadata); err != nil {
			return fmt.Errorf("sortcore: mergesort: bind source %d: %w", i, err)
		}
		funnels[i] = f
		pieces[i] = splitIntoPieces(src, s.PieceSize)
		if s.Filter != nil {
			filters[i] = s.Filter(src, i)
		}
		if filters[i] == nil {
			filters[i] = func(any, int) bool { return true }
		}
	}

	h := &mergeHeap{}
	heap.Init(h)
	var pushErr error

	var push func(i int)
	push = func(i int) {
		if pushErr != nil || exhausted[i] {
			return
		}
		for {
			items := funnels[i].ReadItems(1)
			if len(items) == 0 {
				if len(pieces[i]) > 0 {
					piece := pieces[i][0]
					pieces[i] = pieces[i][1:]
					funnels[i].AppendItems([]pipeline.Item{piece})
					continue
				}
				if err := funnels[i].Flush(); err != nil {
					pushErr = fmt.Errorf("sortcore: mergesort: flush source %d: %w", i, err)
					return
				}
				exhausted[i] = true
				for _, item := range funnels[i].ReadItems(-1) {
					r := ndjson.RecordFromItem(item)
					idx := indices[i]
					indices[i]++
					if filters[i](r.Key, idx) {
						heap.Push(h, heapEntry{key: r.Key, source: i, item: item})
					}
				}
				return
			}
			r := ndjson.RecordFromItem(items[0])
			idx := indices[i]
			indices[i]++
			if filters[i](r.Key, idx) {
				heap.Push(h, heapEntry{key: r.Key, source: i, item: items[0]})
				return
			}
		}
	}

	for i := range s.sources {
		push(i)
		if pushErr != nil {
			return pushErr
		}
	}

	for h.Len() > 0 {
		top := heap.Pop(h).(heapEntry)
		s.next.Append([]pipeline.Item{top.item})
		push(top.source)
		if pushErr != nil {
			return pushErr
		}
	}
	return nil
}
