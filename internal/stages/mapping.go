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
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// OneToOne applies Map to every item as it arrives and forwards the
// result. Map runs once per item, never batched, so it is safe to use
// for non-idempotent per-item side effects.
type OneToOne struct {
	Map func(pipeline.Item) pipeline.Item

	prev    *pipeline.ItemPipe
	next    *pipeline.ItemPipe
	metrics *telemetry.Metrics
}

func (s *OneToOne) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *OneToOne) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *OneToOne) Bind(prev, next any, metrics *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metrics = metrics
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *OneToOne) changed() {
	items := s.prev.Read(-1)
	if len(items) == 0 {
		return
	}
	out := make([]pipeline.Item, len(items))
	for i, item := range items {
		out[i] = s.Map(item)
	}
	if s.metrics != nil {
		s.metrics.Log("one_to_one mapped %d items", len(out))
	}
	s.next.Append(out)
}

func (s *OneToOne) Flush() error {
	s.changed()
	return nil
}

// OneToMany applies Expand to every item and forwards every element
// of the returned slice. A nil Expand passes items through unchanged
// (the identity flattening used by lambda role handlers that just
// need to re-wrap a single decoded payload).
type OneToMany struct {
	Expand func(pipeline.Item) []pipeline.Item

	prev *pipeline.ItemPipe
	next *pipeline.ItemPipe
}

func (s *OneToMany) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *OneToMany) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *OneToMany) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *OneToMany) changed() {
	items := s.prev.Read(-1)
	if len(items) == 0 {
		return
	}
	var out []pipeline.Item
	for _, item := range items {
		if s.Expand == nil {
			out = append(out, item)
			continue
		}
		out = append(out, s.Expand(item)...)
	}
	s.next.Append(out)
}

func (s *OneToMany) Flush() error {
	s.changed()
	return nil
}
