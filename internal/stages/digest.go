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
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"hash"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// digestStage forwards every byte chunk unmodified while feeding it
// into a running hash; the hex digest is written to Metadata[Name] on
// Flush. MD5Hash and SHA1Hash are thin constructors over it.
type digestStage struct {
	Name    string
	newHash func() hash.Hash

	prev, next *pipeline.BytePipe
	metadata   *telemetry.Metadata
	h          hash.Hash
}

func (s *digestStage) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *digestStage) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *digestStage) Bind(prev, next any, _ *telemetry.Metrics, metadata *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	s.next = next.(*pipeline.BytePipe)
	s.metadata = metadata
	s.h = s.newHash()
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *digestStage) changed() {
	chunk := s.prev.Read(-1)
	if len(chunk) == 0 {
		return
	}
	s.h.Write(chunk)
	s.next.Append(chunk)
}

func (s *digestStage) Flush() error {
	s.changed()
	s.metadata.Set(s.Name, hex.EncodeToString(s.h.Sum(nil)))
	return nil
}

// MD5Hash returns a pass-through stage that records the MD5 hex
// digest of the entire byte stream under Metadata[name] once flushed.
func MD5Hash(name string) pipeline.Stage {
	return &digestStage{Name: name, newHash: md5.New}
}

// SHA1Hash is MD5Hash's SHA-1 counterpart.
func SHA1Hash(name string) pipeline.Stage {
	return &digestStage{Name: name, newHash: sha1.New}
}
