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
	"fmt"

	"github.com/amacal/laboratory/internal/objectstore"
	"github.com/amacal/laboratory/internal/remotefn"
	"github.com/amacal/laboratory/internal/retry"
	"github.com/amacal/laboratory/internal/sortcore"
	"github.com/amacal/laboratory/internal/stages"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

const (
	distributedChunkSize    = 512 * 1024 * 1024
	distributedQuickThreads = 16
	distributedMergeThreads = 32
)

// DistributedSortDeps is worker_sort's distributed-variant dependency
// bag: the object store S3Chunk reads the input from, the remote
// function quick-sort/kway-merge invocations dispatch through (a real
// Lambda client in production, NewLocalFunction in-process), and the
// adaptive retry each invocation wraps.
type DistributedSortDeps struct {
	Store    objectstore.Store
	Function remotefn.Function
	Retry    retry.Adaptive
}

// WorkerSortDistributed is worker_sort's Lambda-fanned counterpart to
// WorkerSort: it chunks the input into 512MB ranges, dispatches one
// quick-sort invocation per chunk across a 16-wide pool, regroups the
// returned marker-tagged shards into equi-count key partitions, then
// dispatches one kway-merge invocation per partition across a 32-wide
// pool. Unlike WorkerSort's single merged object, the distributed
// variant's output is the set of per-partition pieces the kway-merge
// invocation renamed to "<output>.out/NNNN?markers" — there is no
// final concatenation step, since nothing downstream needs the pieces
// joined into one object.
func WorkerSortDistributed(deps DistributedSortDeps, name, tag, bucket, input, output string) error {
	quickSteps := func(index int, _ *telemetry.Metadata) []pipeline.Stage {
		return []pipeline.Stage{
			&stages.Serialize{},
			&remotefn.Lambda{
				Function: deps.Function,
				Name:     "quick-sort",
				Parameters: func(item pipeline.Item) any {
					return LambdaPayload{
						Type: "quick-sort", Name: name, Bucket: bucket,
						Index: index, Tag: tag, Output: output, Input: item,
					}
				},
				Retry: deps.Retry,
			},
			&stages.OneToMany{},
			&stages.Deserialize{},
		}
	}

	mergeSteps := func(index int, _ *telemetry.Metadata) []pipeline.Stage {
		return []pipeline.Stage{
			&stages.OneToOne{Map: mergeGroupToSources},
			&stages.Serialize{},
			&remotefn.Lambda{
				Function: deps.Function,
				Name:     "kway-merge",
				Parameters: func(item pipeline.Item) any {
					return LambdaPayload{
						Type: "kway-merge", Name: name, Bucket: bucket,
						Index: index, Tag: tag, Output: output, Input: item,
					}
				},
				Retry: deps.Retry,
			},
			&stages.OneToMany{},
			&stages.Deserialize{},
		}
	}

	p := pipeline.New(name,
		&objectstore.S3Chunk{Store: deps.Store, ChunkSize: distributedChunkSize},
		&stages.ForEachItemParallel{Threads: distributedQuickThreads, Steps: quickSteps},
		&stages.OneToOne{Map: shardDescriptorFromUploadedItem},
		&sortcore.MergeGroup{},
		&stages.ForEachItemParallel{Threads: distributedMergeThreads, Steps: mergeSteps},
		&stages.WaitAllItems{},
	)

	source := objectstore.S3Object{Bucket: bucket, Key: input}
	if _, err := p.StartItems([]pipeline.Item{source.ToItem()}); err != nil {
		return fmt.Errorf("roles: worker_sort_distributed %s: %w", name, err)
	}
	return nil
}

// shardDescriptorFromUploadedItem converts one quick-sort Lambda
// invocation's {bucket,key} result — the markers baked into key's
// query string, since S3Upload's forwarded item carries no structured
// field for them — into the ShardDescriptor item MergeGroup expects.
func shardDescriptorFromUploadedItem(item pipeline.Item) pipeline.Item {
	obj := objectstore.S3ObjectFromItem(item)
	descriptor, err := sortcore.ShardDescriptorFromUploadedKey(obj.Bucket, obj.Key)
	if err != nil {
		panic(fmt.Errorf("roles: worker_sort_distributed: %w", err))
	}
	return descriptor.ToItem()
}

// mergeGroupToSources wraps one MergeGroupCollection's constituent
// shard ranges as the "sources" list a kway-merge invocation's
// splitSources expects.
func mergeGroupToSources(item pipeline.Item) pipeline.Item {
	group := sortcore.MergeGroupCollectionFromItem(item)
	sources := make([]any, 0, len(group.Objects))
	for _, src := range group.Split() {
		sources = append(sources, map[string]any(src))
	}
	return pipeline.Item{sourcesField: sources}
}
