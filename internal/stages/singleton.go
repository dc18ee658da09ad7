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

// Package stages implements the reusable stage library stacked atop
// pkg/pipeline: routing, throttling, windowing, and the small
// cross-cutting codecs (serialize, digest, compress) every role
// pipeline is assembled from.
package stages

import (
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// BinarySingleton emits value once, on Flush, ignoring whatever (if
// anything) is appended upstream. Used to seed a pipeline whose first
// real stage expects a byte stream.
type BinarySingleton struct {
	Value []byte
	next  *pipeline.BytePipe
}

func (s *BinarySingleton) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *BinarySingleton) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *BinarySingleton) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.next = next.(*pipeline.BytePipe)
	return nil
}

func (s *BinarySingleton) Flush() error {
	s.next.Append(s.Value)
	return nil
}

// ItemSingleton is BinarySingleton's item-stream counterpart.
type ItemSingleton struct {
	Value pipeline.Item
	next  *pipeline.ItemPipe
}

func (s *ItemSingleton) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *ItemSingleton) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *ItemSingleton) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.next = next.(*pipeline.ItemPipe)
	return nil
}

func (s *ItemSingleton) Flush() error {
	s.next.Append([]pipeline.Item{s.Value})
	return nil
}
