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
	"io"

	"github.com/klauspost/pgzip"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// Ungzip decompresses a gzip byte stream as it arrives. It bridges
// the push-based upstream Pipe to pgzip's pull-based io.Reader with
// an io.Pipe and a decode goroutine, so downstream sees decompressed
// bytes incrementally instead of only once the whole input has
// arrived.
type Ungzip struct {
	prev *pipeline.BytePipe
	next *pipeline.BytePipe

	pw   *io.PipeWriter
	done chan struct{}
	err  error
}

func (s *Ungzip) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *Ungzip) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *Ungzip) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	s.next = next.(*pipeline.BytePipe)

	pr, pw := io.Pipe()
	s.pw = pw
	s.done = make(chan struct{})
	go s.decode(pr)

	s.prev.Subscribe(s.changed)
	return nil
}

func (s *Ungzip) decode(pr *io.PipeReader) {
	defer close(s.done)
	gz, err := pgzip.NewReader(pr)
	if err != nil {
		s.err = err
		_, _ = io.Copy(io.Discard, pr)
		return
	}
	defer gz.Close()

	buf := make([]byte, 64*1024)
	for {
		n, err := gz.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.next.Append(chunk)
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			s.err = err
			return
		}
	}
}

func (s *Ungzip) changed() {
	chunk := s.prev.Read(-1)
	if len(chunk) == 0 {
		return
	}
	_, _ = s.pw.Write(chunk)
}

func (s *Ungzip) Flush() error {
	s.changed()
	_ = s.pw.Close()
	<-s.done
	return s.err
}
