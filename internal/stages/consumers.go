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

// BinaryConsumer drains its upstream on Flush and emits nothing. Used
// to terminate a pipeline whose last meaningful side effect already
// happened (e.g. an upload stage) and that otherwise has no natural
// output type.
type BinaryConsumer struct {
	prev *pipeline.BytePipe
}

func (s *BinaryConsumer) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *BinaryConsumer) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *BinaryConsumer) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	return nil
}

func (s *BinaryConsumer) Flush() error {
	s.prev.Read(-1)
	return nil
}

// ItemConsumer is BinaryConsumer's item-stream counterpart.
type ItemConsumer struct {
	prev *pipeline.ItemPipe
}

func (s *ItemConsumer) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *ItemConsumer) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *ItemConsumer) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	return nil
}

func (s *ItemConsumer) Flush() error {
	s.prev.Read(-1)
	return nil
}

// WaitAllBytes is a barrier: on Flush it drains everything upstream
// has ever buffered and forwards it as a single append, instead of
// letting it dribble out across many Changed calls.
type WaitAllBytes struct {
	prev *pipeline.BytePipe
	next *pipeline.BytePipe
}

func (s *WaitAllBytes) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *WaitAllBytes) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *WaitAllBytes) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	s.next = next.(*pipeline.BytePipe)
	return nil
}

func (s *WaitAllBytes) Flush() error {
	s.next.Append(s.prev.Read(-1))
	return nil
}

// WaitAllItems is WaitAllBytes's item-stream counterpart.
type WaitAllItems struct {
	prev *pipeline.ItemPipe
	next *pipeline.ItemPipe
}

func (s *WaitAllItems) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *WaitAllItems) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *WaitAllItems) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	return nil
}

func (s *WaitAllItems) Flush() error {
	s.next.Append(s.prev.Read(-1))
	return nil
}
