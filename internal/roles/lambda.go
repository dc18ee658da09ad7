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

package roles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amacal/laboratory/internal/ndjson"
	"github.com/amacal/laboratory/internal/objectstore"
	"github.com/amacal/laboratory/internal/remotefn"
	"github.com/amacal/laboratory/internal/sortcore"
	"github.com/amacal/laboratory/internal/stages"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

const sortMarkersKey = "sorting:markers"

// LambdaEvent is the decoded shape of one Lambda invocation's payload:
// the TYPE discriminator plus the fields QuickSort and KwayMerge each
// read from it. Input carries the envelope Serialize produced, so it
// round-trips through Deserialize unchanged by this dispatcher.
type LambdaEvent struct {
	Type   string
	Name   string
	Bucket string
	Index  int
	Tag    string
	Output string
	Input  pipeline.Item
}

// LambdaDeps is the narrow seam the distributed sort handlers need:
// an object store to read/write shards through, and the line locator
// that lets Measure align a byte range to NDJSON record boundaries
// without downloading the whole object to probe it.
type LambdaDeps struct {
	Store   objectstore.Store
	Locator ndjson.LineLocator
}

// LambdaPayload is the JSON wire shape a quick-sort/kway-merge
// invocation's request and response both take: the same fields
// LambdaEvent carries, flattened to round trip through
// remotefn.Function.Invoke's byte-slice payload.
type LambdaPayload struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Bucket string `json:"bucket"`
	Index  int    `json:"index"`
	Tag    string `json:"tag"`
	Output string `json:"output"`
	Input  any    `json:"input"`
}

// ToEvent decodes p into the LambdaEvent Handler expects. Input comes
// back from JSON as a plain map[string]any regardless of how it was
// built on the calling side, which is what LambdaEvent.Input expects
// anyway since Deserialize reads its envelope the same way.
func (p LambdaPayload) ToEvent() LambdaEvent {
	input, _ := p.Input.(map[string]any)
	return LambdaEvent{
		Type:   p.Type,
		Name:   p.Name,
		Bucket: p.Bucket,
		Index:  p.Index,
		Tag:    p.Tag,
		Output: p.Output,
		Input:  pipeline.Item(input),
	}
}

// NewLocalFunction returns an in-process remotefn.Function dispatching
// "quick-sort"/"kway-merge" payloads straight into Handler, the same
// handler a real Lambda invocation runs. It is
// how WorkerSortDistributed and the single-binary quick-sort/kway-merge
// TYPE both run the distributed sort's remote functions without an
// actual network hop.
func NewLocalFunction(deps LambdaDeps) *remotefn.Local {
	dispatch := func(eventType string) func(context.Context, []byte) ([]byte, error) {
		return func(_ context.Context, payload []byte) ([]byte, error) {
			var p LambdaPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, fmt.Errorf("roles: decode %s payload: %w", eventType, err)
			}
			p.Type = eventType

			out, err := Handler(deps, p.ToEvent())
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		}
	}
	return remotefn.NewLocal(map[string]func(context.Context, []byte) ([]byte, error){
		"quick-sort": dispatch("quick-sort"),
		"kway-merge": dispatch("kway-merge"),
	})
}

// Handler is the TYPE-keyed entry point for every Lambda event. An
// unrecognized type is not an error, it simply does nothing.
func Handler(deps LambdaDeps, event LambdaEvent) (pipeline.Item, error) {
	switch event.Type {
	case "quick-sort":
		return QuickSortShard(deps, event)
	case "kway-merge":
		return KwayMergeShard(deps, event)
	default:
		return nil, nil
	}
}

// QuickSortShard sorts one pre-assigned byte range of a JSON dump by
// Tag: the range is aligned to record boundaries, downloaded,
// windowed into 1MB pieces, quicksorted, marker-sampled, and uploaded
// to an indexed temporary shard whose key embeds the markers so a
// later MergeGroup pass never has to re-read the shard just to learn
// its key domain.
func QuickSortShard(deps LambdaDeps, event LambdaEvent) (pipeline.Item, error) {
	tag := event.Tag
	p := pipeline.New(event.Name,
		&stages.Deserialize{},
		&ndjson.Measure{Locator: deps.Locator, WindowSize: 128 * 1024},
		&objectstore.S3Download{Store: deps.Store},
		&ndjson.Chunk{ChunkSize: 1024 * 1024},
		&ndjson.Index{Extract: func(row map[string]any) any { return row[tag] }},
		&sortcore.QuickSort{},
		&sortcore.DataMarker{Name: sortMarkersKey, Count: 16},
		&ndjson.Flusher{},
		&objectstore.S3Upload{
			Store:  deps.Store,
			Bucket: event.Bucket,
			Key: func(metadata *telemetry.Metadata) string {
				raw, _ := metadata.Get(sortMarkersKey)
				markers, _ := raw.(sortcore.MarkerCollection)
				return fmt.Sprintf("%s.tmp/%04d?%s", event.Output, event.Index, markers.Encode())
			},
			ChunkSize: 128 * 1024 * 1024,
		},
		&stages.Serialize{},
	)

	out, err := p.StartItems([]pipeline.Item{event.Input})
	if err != nil {
		return nil, fmt.Errorf("roles: quick_sort %s: %w", event.Name, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("roles: quick_sort %s: expected one envelope, got %d", event.Name, len(out))
	}
	return out[0], nil
}

// KwayMergeShard merges the sources named in Input (one MergeSort
// source item per contributing shard range) into one of the final
// sort's output pieces: the heap-based merge, a min/max pass over the
// merged stream to publish its key domain, an upload to a scratch key,
// then a rename that stamps the markers onto the final key, so a
// reader never observes an object whose key promises markers its body
// hasn't finished yet.
func KwayMergeShard(deps LambdaDeps, event LambdaEvent) (pipeline.Item, error) {
	tag := event.Tag
	p := pipeline.New(event.Name,
		&stages.Deserialize{},
		&stages.OneToMany{Expand: splitSources},
		&sortcore.MergeSort{
			PieceSize: 16 * 1024 * 1024,
			Steps: func(source pipeline.Item, _ *telemetry.Metadata) []pipeline.Stage {
				return []pipeline.Stage{
					&objectstore.S3Download{Store: deps.Store},
					&ndjson.Index{Extract: func(row map[string]any) any { return row[tag] }},
				}
			},
			Filter: func(source pipeline.Item, _ int) sortcore.SourceFilter {
				return sortcore.RestrictedFilter(source)
			},
		},
		&sortcore.MinMax{Name: sortMarkersKey},
		&ndjson.Flusher{},
		&objectstore.S3Upload{
			Store:  deps.Store,
			Bucket: event.Bucket,
			Key: func(*telemetry.Metadata) string {
				return fmt.Sprintf("%s.out/%04d", event.Output, event.Index)
			},
			ChunkSize: 128 * 1024 * 1024,
		},
		&objectstore.S3Rename{
			Store: deps.Store,
			Key: func(metadata *telemetry.Metadata) string {
				raw, _ := metadata.Get(sortMarkersKey)
				markers, _ := raw.(sortcore.MarkerCollection)
				return fmt.Sprintf("%s.out/%04d?%s", event.Output, event.Index, markers.Encode())
			},
		},
		&stages.Serialize{},
	)

	out, err := p.StartItems([]pipeline.Item{event.Input})
	if err != nil {
		return nil, fmt.Errorf("roles: kway_merge %s: %w", event.Name, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("roles: kway_merge %s: expected one envelope, got %d", event.Name, len(out))
	}
	return out[0], nil
}

const sourcesField = "sources"

// splitSources unpacks the single decoded item KwayMergeShard receives
// (a MergeGroupCollection.Split() list wrapped under "sources") into
// one MergeSort source item per contributing shard.
func splitSources(item pipeline.Item) []pipeline.Item {
	raw, ok := item[sourcesField].([]any)
	if !ok {
		return nil
	}
	out := make([]pipeline.Item, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			out = append(out, pipeline.Item(m))
		}
	}
	return out
}
