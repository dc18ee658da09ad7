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

package stages

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"
	"golang.org/x/sync/errgroup"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// ForEachItemParallel fans items out across a bounded set of worker
// lanes: every item's index is assigned a lane by rendezvous hashing
// over Threads lane names, so the same item index always lands on the
// same lane across runs against the same item count. Each lane gets
// its own sub-funnel per item, single-item input, flushed and drained
// independently, but items sharing a lane run strictly in the order
// queued — only distinct lanes run concurrently, which is what bounds
// concurrency to at most Threads. Ordering across lanes is not
// preserved. Writes to the shared downstream pipe are serialized with
// a mutex, since Pipe is only safe for single-writer use.
type ForEachItemParallel struct {
	Threads int
	Steps   func(index int, metadata *telemetry.Metadata) []pipeline.Stage

	prev, next *pipeline.ItemPipe
	metrics    *telemetry.Metrics
	metadata   *telemetry.Metadata

	mu      sync.Mutex
	workers *rendezvous.Rendezvous
	index   int
	pending []laneJob
}

// laneJob is one queued item paired with the worker lane rendezvous
// hashing assigned it, so Flush can group jobs by lane before running
// them.
type laneJob struct {
	idx    int
	worker string
	item   pipeline.Item
}

func (s *ForEachItemParallel) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *ForEachItemParallel) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *ForEachItemParallel) Bind(prev, next any, metrics *telemetry.Metrics, metadata *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metrics = metrics
	s.metadata = metadata

	if s.Threads <= 0 {
		s.Threads = 1
	}
	nodes := make([]string, s.Threads)
	for i := range nodes {
		nodes[i] = "worker-" + strconv.Itoa(i)
	}
	s.workers = rendezvous.New(nodes, xxhash.Sum64String)

	s.prev.Subscribe(s.changed)
	return nil
}

func (s *ForEachItemParallel) changed() {
	items := s.prev.Read(-1)
	for _, item := range items {
		s.queue(item)
	}
}

// queue captures a lane assignment per item rather than launching it
// immediately so Flush can group every queued item by lane and run
// lanes concurrently, regardless of how many Changed calls fed them
// in.
func (s *ForEachItemParallel) queue(item pipeline.Item) {
	s.mu.Lock()
	idx := s.index
	s.index++
	worker := s.workers.Lookup(strconv.Itoa(idx))
	s.pending = append(s.pending, laneJob{idx: idx, worker: worker, item: item})
	s.mu.Unlock()
}

func (s *ForEachItemParallel) run(idx int, worker string, item pipeline.Item) error {
	f := pipeline.NewFunnel(s.Steps(idx, s.metadata)...)
	if err := f.Bind(s.metrics, s.metadata); err != nil {
		return fmt.Errorf("foreach_item_parallel: bind item %d on %s: %w", idx, worker, err)
	}
	f.AppendItems([]pipeline.Item{item})
	if err := f.Flush(); err != nil {
		return fmt.Errorf("foreach_item_parallel: flush item %d on %s: %w", idx, worker, err)
	}
	out := f.ReadItems(-1)

	s.mu.Lock()
	s.next.Append(out)
	s.mu.Unlock()
	return nil
}

// Flush groups every queued item by the lane rendezvous hashing
// assigned it and runs one goroutine per lane: items sharing a lane
// run strictly in queued order on that one goroutine, and only
// distinct lanes run concurrently, so the lane count — never more
// than Threads — is what actually bounds concurrency here.
func (s *ForEachItemParallel) Flush() error {
	s.changed()

	s.mu.Lock()
	jobs := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(jobs) == 0 {
		return nil
	}

	lanes := make(map[string][]laneJob)
	var order []string
	for _, job := range jobs {
		if _, ok := lanes[job.worker]; !ok {
			order = append(order, job.worker)
		}
		lanes[job.worker] = append(lanes[job.worker], job)
	}

	group := new(errgroup.Group)
	for _, worker := range order {
		queue := lanes[worker]
		group.Go(func() error {
			for _, job := range queue {
				if err := s.run(job.idx, job.worker, job.item); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return group.Wait()
}
