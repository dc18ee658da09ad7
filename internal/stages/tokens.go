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
	"context"
	"fmt"
	"time"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/internal/tokenqueue"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// tokenResourceKey is the item field AcquireToken stamps a borrowed
// resource handle into; ReleaseToken consumes and strips it.
const tokenResourceKey = "__token_resource"

// AcquireToken blocks (bounded by Timeout) to dequeue a resource from
// Queue for every item that arrives, and forwards the item annotated
// with the borrowed handle. It is always paired downstream with a
// ReleaseToken over the same Queue once the throttled segment of the
// pipeline is done with the item.
type AcquireToken struct {
	Queue   tokenqueue.Queue
	Timeout time.Duration

	prev, next *pipeline.ItemPipe
}

func (s *AcquireToken) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *AcquireToken) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *AcquireToken) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *AcquireToken) changed() {
	items := s.prev.Read(-1)
	for _, item := range items {
		resource, err := s.Queue.Acquire(context.Background(), s.Timeout)
		if err != nil {
			panic(fmt.Errorf("stages: acquire token: %w", err))
		}
		out := cloneItem(item)
		out[tokenResourceKey] = resource
		s.next.Append([]pipeline.Item{out})
	}
}

func (s *AcquireToken) Flush() error {
	s.changed()
	return nil
}

// ReleaseToken returns the resource handle an upstream AcquireToken
// stamped into the item back to Queue, then forwards the item with
// the handle stripped.
type ReleaseToken struct {
	Queue tokenqueue.Queue

	prev, next *pipeline.ItemPipe
}

func (s *ReleaseToken) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *ReleaseToken) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *ReleaseToken) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *ReleaseToken) changed() {
	items := s.prev.Read(-1)
	for _, item := range items {
		resource, _ := item[tokenResourceKey].(string)
		if resource != "" {
			if err := s.Queue.Release(context.Background(), resource); err != nil {
				panic(fmt.Errorf("stages: release token: %w", err))
			}
		}
		out := cloneItem(item)
		delete(out, tokenResourceKey)
		s.next.Append([]pipeline.Item{out})
	}
}

func (s *ReleaseToken) Flush() error {
	s.changed()
	return nil
}

func cloneItem(item pipeline.Item) pipeline.Item {
	out := make(pipeline.Item, len(item)+1)
	for k, v := range item {
		out[k] = v
	}
	return out
}
