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
	"sort"
	"strings"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// ShardDescriptor names one previously-sorted shard and carries the
// DataMarkerCollection parsed from its object key's query-string
// suffix (see ShardDescriptorFromUploadedKey).
type ShardDescriptor struct {
	Bucket, Shard string
	Total         int64
	Markers       MarkerCollection
}

const (
	shardNameField    = "shard"
	shardBucketField  = "bucket"
	shardTotalField   = "total"
	shardMarkersField = "markers"
)

func (d ShardDescriptor) ToItem() pipeline.Item {
	return pipeline.Item{
		shardNameField:    d.Shard,
		shardBucketField:  d.Bucket,
		shardTotalField:   d.Total,
		shardMarkersField: d.Markers.Encode(),
	}
}

func ShardDescriptorFromItem(item pipeline.Item) (ShardDescriptor, error) {
	raw, _ := item[shardMarkersField].(string)
	markers, err := ParseMarkerCollection(raw)
	if err != nil {
		return ShardDescriptor{}, fmt.Errorf("sortcore: shard descriptor: %w", err)
	}
	return ShardDescriptor{
		Shard:   fmt.Sprint(item[shardNameField]),
		Bucket:  fmt.Sprint(item[shardBucketField]),
		Total:   toInt64(item[shardTotalField]),
		Markers: markers,
	}, nil
}

// ShardDescriptorFromUploadedKey parses the "<key>?off=k&off=k&..."
// convention QuickSortShard uploads a shard under (see DataMarker)
// back into a ShardDescriptor, for callers that only get the uploaded
// object's bucket/key back — a Lambda invocation's result, rather than
// the in-process ChunkSort metadata local worker_sort reads Total and
// Markers off of directly. Total is the last marker's Offset, the
// sentinel DataMarker always appends at the shard's total byte length.
// Shard is the full uploaded key, query string included, since that is
// the name the object is stored under.
func ShardDescriptorFromUploadedKey(bucket, key string) (ShardDescriptor, error) {
	_, query, ok := strings.Cut(key, "?")
	if !ok {
		return ShardDescriptor{}, fmt.Errorf("sortcore: uploaded shard key %q carries no markers", key)
	}
	markers, err := ParseMarkerCollection(query)
	if err != nil {
		return ShardDescriptor{}, fmt.Errorf("sortcore: uploaded shard key %q: %w", key, err)
	}
	if len(markers) == 0 {
		return ShardDescriptor{}, fmt.Errorf("sortcore: uploaded shard key %q has no markers", key)
	}
	return ShardDescriptor{
		Bucket:  bucket,
		Shard:   key,
		Total:   markers[len(markers)-1].Offset,
		Markers: markers,
	}, nil
}

// MergeGroupObject is one shard's contribution to a MergeGroupCollection:
// the byte range to read from that shard, and the two inclusivity bits
// that decide whether the boundary records at Start/End belong to this
// group or the adjacent one.
type MergeGroupObject struct {
	Shard, Bucket               string
	Start, End, Total           int64
	LowInclusive, HighInclusive bool
}

func (o MergeGroupObject) toMap() map[string]any {
	return map[string]any{
		"shard":  o.Shard,
		"bucket": o.Bucket,
		"start":  o.Start,
		"end":    o.End,
		"total":  o.Total,
		"low":    o.LowInclusive,
		"high":   o.HighInclusive,
	}
}

func mergeGroupObjectFromMap(m map[string]any) MergeGroupObject {
	low, _ := m["low"].(bool)
	high, _ := m["high"].(bool)
	return MergeGroupObject{
		Shard:         fmt.Sprint(m["shard"]),
		Bucket:        fmt.Sprint(m["bucket"]),
		Start:         toInt64(m["start"]),
		End:           toInt64(m["end"]),
		Total:         toInt64(m["total"]),
		LowInclusive:  low,
		HighInclusive: high,
	}
}

const (
	mgStartKeyField   = "mg_start_key"
	mgEndKeyField     = "mg_end_key"
	mgLowField        = "mg_low"
	mgHighField       = "mg_high"
	mgOffsetZeroField = "mg_offset_zero"
)

// ToSourceItem renders o as a MergeSort source item: the same
// start/end/total/bucket/key shape ndjson.Range and S3Download expect,
// plus the restriction fields RestrictedFilter reconstructs a
// SourceFilter from. o.End is a marker offset — the cumulative byte
// length up to and excluding the boundary record — so the inclusive
// download range ends one byte before it.
func (o MergeGroupObject) ToSourceItem(startKey, endKey string) pipeline.Item {
	return pipeline.Item{
		"start":           o.Start,
		"end":             o.End - 1,
		"total":           o.Total,
		"bucket":          o.Bucket,
		"key":             o.Shard,
		mgStartKeyField:   startKey,
		mgEndKeyField:     endKey,
		mgLowField:        o.LowInclusive,
		mgHighField:       o.HighInclusive,
		mgOffsetZeroField: o.Start == 0,
	}
}

// MergeGroupCollection is one half-open key-domain partition of the
// global sort, together with the consolidated set of shard byte ranges
// that contribute records in that domain.
type MergeGroupCollection struct {
	StartKey, EndKey string
	Objects          []MergeGroupObject
}

const (
	collStartField   = "start_key"
	collEndField     = "end_key"
	collObjectsField = "objects"
)

func (c MergeGroupCollection) ToItem() pipeline.Item {
	objs := make([]any, len(c.Objects))
	for i, o := range c.Objects {
		objs[i] = o.toMap()
	}
	return pipeline.Item{
		collStartField:   c.StartKey,
		collEndField:     c.EndKey,
		collObjectsField: objs,
	}
}

func MergeGroupCollectionFromItem(item pipeline.Item) MergeGroupCollection {
	c := MergeGroupCollection{
		StartKey: fmt.Sprint(item[collStartField]),
		EndKey:   fmt.Sprint(item[collEndField]),
	}
	if raw, ok := item[collObjectsField].([]any); ok {
		for _, r := range raw {
			if m, ok := r.(map[string]any); ok {
				c.Objects = append(c.Objects, mergeGroupObjectFromMap(m))
			}
		}
	}
	return c
}

// Split renders the collection as the one MergeSort source item per
// contributing shard, each carrying a reconstructible admission filter.
func (c MergeGroupCollection) Split() []pipeline.Item {
	items := make([]pipeline.Item, len(c.Objects))
	for i, o := range c.Objects {
		items[i] = o.ToSourceItem(c.StartKey, c.EndKey)
	}
	return items
}

// RestrictedFilter reconstructs the admission filter a MergeGroupObject
// attached to a source item built by MergeGroupCollection.Split: key k
// is admitted iff
//
//	(start < k) OR (start == k AND (lowInclusive OR offsetZero OR index==0))
//
// AND
//
//	(k < end) OR (k == end AND highInclusive)
func RestrictedFilter(source pipeline.Item) SourceFilter {
	startKey, _ := source[mgStartKeyField].(string)
	endKey, _ := source[mgEndKeyField].(string)
	low, _ := source[mgLowField].(bool)
	high, _ := source[mgHighField].(bool)
	offsetZero, _ := source[mgOffsetZeroField].(bool)

	return func(key any, index int) bool {
		cmpStart := compareKeys(startKey, key)
		lowOK := cmpStart < 0 || (cmpStart == 0 && (low || offsetZero || index == 0))
		cmpEnd := compareKeys(key, endKey)
		highOK := cmpEnd < 0 || (cmpEnd == 0 && high)
		return lowOK && highOK
	}
}

// BuildMergeGroups partitions the shards' combined key domain into
// roughly equal-count groups, one per hop of len(shards) positions
// along the sorted union of every shard's marker keys, and assigns
// each group the consolidated set of shard byte ranges overlapping it.
func BuildMergeGroups(shards []ShardDescriptor) []MergeGroupCollection {
	if len(shards) == 0 {
		return nil
	}
	hop := len(shards)

	seen := make(map[string]bool)
	var xaxis []string
	for _, sh := range shards {
		for _, m := range sh.Markers {
			if !seen[m.Key] {
				seen[m.Key] = true
				xaxis = append(xaxis, m.Key)
			}
		}
	}
	sort.Strings(xaxis)
	if len(xaxis) == 0 {
		return nil
	}

	var collections []MergeGroupCollection
	for index := 0; index < len(xaxis); index += hop {
		// The domain max is the previous group's closed top edge, via
		// the last-segment high-inclusivity below, not an empty group
		// of its own.
		if index == len(xaxis)-1 && len(xaxis) > 1 {
			break
		}
		endIdx := index + hop
		if endIdx > len(xaxis)-1 {
			endIdx = len(xaxis) - 1
		}
		start := xaxis[index]
		end := xaxis[endIdx]

		var objects []MergeGroupObject
		for _, sh := range shards {
			for i := 0; i+1 < len(sh.Markers); i++ {
				segStart := sh.Markers[i]
				segEnd := sh.Markers[i+1]
				last := i+2 == len(sh.Markers)

				// Coinciding markers (a shard shorter than the marker
				// count repeats equidistant indices) span no bytes.
				if segStart.Offset == segEnd.Offset {
					continue
				}
				// A shard's final segment also joins the group whose
				// top edge equals its start, since that group's closed
				// top is the only place its boundary records can land.
				overlaps := segStart.Key < end && segEnd.Key >= start
				if last {
					overlaps = segStart.Key <= end && segEnd.Key >= start
				}
				if !overlaps {
					continue
				}

				objects = append(objects, MergeGroupObject{
					Shard:         sh.Shard,
					Bucket:        sh.Bucket,
					Start:         segStart.Offset,
					End:           segEnd.Offset,
					Total:         sh.Total,
					LowInclusive:  start != segStart.Key,
					HighInclusive: end == segEnd.Key || last,
				})
			}
		}

		collections = append(collections, MergeGroupCollection{
			StartKey: start,
			EndKey:   end,
			Objects:  consolidate(objects),
		})
	}
	return collections
}

// consolidate merges adjacent same-shard objects whose byte ranges
// touch (a.End == b.Start), preferring the later segment's high-edge
// inclusivity for the merged object.
func consolidate(objects []MergeGroupObject) []MergeGroupObject {
	if len(objects) == 0 {
		return nil
	}
	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].Shard != objects[j].Shard {
			return objects[i].Shard < objects[j].Shard
		}
		return objects[i].Start < objects[j].Start
	})

	out := []MergeGroupObject{objects[0]}
	for _, o := range objects[1:] {
		last := &out[len(out)-1]
		if last.Shard == o.Shard && last.End == o.Start {
			last.End = o.End
			last.HighInclusive = o.HighInclusive
		} else {
			out = append(out, o)
		}
	}
	return out
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

// MergeGroup fans a flat stream of previously-sorted shard descriptors
// into equi-count key-domain partitions, one MergeGroupCollection item
// per partition. It is a full-barrier stage: nothing is emitted until
// every shard descriptor has arrived, since the partition boundaries
// depend on the complete set of marker keys.
type MergeGroup struct {
	prev, next *pipeline.ItemPipe
	shards     []ShardDescriptor
}

func (s *MergeGroup) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *MergeGroup) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *MergeGroup) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *MergeGroup) changed() {
	for _, item := range s.prev.Read(-1) {
		d, err := ShardDescriptorFromItem(item)
		if err != nil {
			panic(fmt.Errorf("sortcore: mergegroup: %w", err))
		}
		s.shards = append(s.shards, d)
	}
}

func (s *MergeGroup) Flush() error {
	s.changed()
	for _, c := range BuildMergeGroups(s.shards) {
		s.next.Append([]pipeline.Item{c.ToItem()})
	}
	return nil
}
