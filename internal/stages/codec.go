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
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"fmt"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

func init() {
	// Register the value shapes items are built from so gob can encode
	// the map[string]any values Serialize carries across process
	// boundaries (ForEachItemParallel -> Lambda). Anything not
	// registered here fails to encode with a clear gob error rather
	// than silently dropping data.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register("")
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(true)
}

const envelopeKey = "envelope"

// Serialize replaces each item with a single-key envelope item
// {"envelope": <base64 gob>}, suitable for embedding in a Lambda JSON
// payload or a queue message. Deserialize is its exact inverse.
type Serialize struct {
	prev, next *pipeline.ItemPipe
}

func (s *Serialize) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *Serialize) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *Serialize) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *Serialize) changed() {
	items := s.prev.Read(-1)
	if len(items) == 0 {
		return
	}
	out := make([]pipeline.Item, 0, len(items))
	for _, item := range items {
		encoded, err := EncodeItem(item)
		if err != nil {
			// A gob-encode failure means a caller put a value of an
			// unregistered type into an item; this is a construction
			// bug, not a runtime condition to swallow.
			panic(fmt.Errorf("stages: serialize: %w", err))
		}
		out = append(out, pipeline.Item{envelopeKey: encoded})
	}
	s.next.Append(out)
}

func (s *Serialize) Flush() error {
	s.changed()
	return nil
}

// Deserialize inverts Serialize.
type Deserialize struct {
	prev, next *pipeline.ItemPipe
}

func (s *Deserialize) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *Deserialize) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *Deserialize) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *Deserialize) changed() {
	items := s.prev.Read(-1)
	if len(items) == 0 {
		return
	}
	out := make([]pipeline.Item, 0, len(items))
	for _, item := range items {
		raw, ok := item[envelopeKey].(string)
		if !ok {
			panic(fmt.Errorf("stages: deserialize: item missing %q envelope field", envelopeKey))
		}
		decoded, err := DecodeItem(raw)
		if err != nil {
			panic(fmt.Errorf("stages: deserialize: %w", err))
		}
		out = append(out, decoded)
	}
	s.next.Append(out)
}

func (s *Deserialize) Flush() error {
	s.changed()
	return nil
}

// EncodeItem gob-encodes then base64-wraps an item into a
// self-describing transport string.
func EncodeItem(item pipeline.Item) (string, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(map[string]any(item)); err != nil {
		return "", fmt.Errorf("gob encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeItem is EncodeItem's inverse.
func DecodeItem(encoded string) (pipeline.Item, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	var m map[string]any
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&m); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return pipeline.Item(m), nil
}
