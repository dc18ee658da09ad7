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

package xmlstream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// XmlToJson converts an XML byte stream into NDJSON, one line per
// RowTag element. It is synchronous and tick-driven like every other
// stage: Changed advances the tokenizer only while more than
// WindowSize bytes sit unread in the upstream pipe, so excess input
// stays buffered upstream and per-append work stays bounded. Flush
// drains with a zero window to end of stream. A WindowSize of zero
// means no windowing: every append is parsed as far as it goes.
type XmlToJson struct {
	RowTag     string
	WindowSize int

	prev *pipeline.BytePipe
	next *pipeline.BytePipe
	row  *rowBuilder
	err  error
}

func (s *XmlToJson) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *XmlToJson) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *XmlToJson) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	s.next = next.(*pipeline.BytePipe)
	s.row = newRowBuilder(s.RowTag)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *XmlToJson) changed() {
	if s.err != nil {
		return
	}
	s.advance(s.WindowSize, false)
}

// advance ticks the tokenizer while more than window bytes remain
// unread, emitting every completed row, and stops early once the
// buffered data ends mid-token.
func (s *XmlToJson) advance(window int, final bool) {
	for s.err == nil && s.prev.Length() > window {
		if !s.tick(final) {
			return
		}
		s.emitRows()
	}
}

// tick consumes the next complete piece of markup or character data
// from the upstream pipe and feeds it to the row builder. It reports
// false when the buffered bytes end in the middle of a tag or of a
// text run (whose trailing entity may still be arriving), leaving them
// unread for the next append; final lifts the text hold-back at end of
// stream.
func (s *XmlToJson) tick(final bool) bool {
	lt := pipeline.Find(s.prev, '<')
	if lt == pipeline.NotFound {
		if !final {
			return false
		}
		s.row.charData(unescape(string(s.prev.Read(-1))))
		return true
	}
	if lt > 0 {
		s.row.charData(unescape(string(s.prev.Read(lt))))
		return true
	}
	gt := pipeline.Find(s.prev, '>')
	if gt == pipeline.NotFound {
		return false
	}
	s.element(string(s.prev.Read(gt + 1)))
	return true
}

// element applies one complete piece of markup (including its angle
// brackets) to the row builder.
func (s *XmlToJson) element(raw string) {
	body := raw[1 : len(raw)-1]
	switch {
	case body == "":
		return
	case body[0] == '?' || body[0] == '!':
		// declarations, processing instructions, comments; dump files
		// carry none with markup inside, so the naive '>' cut suffices
		return
	case body[0] == '/':
		s.row.end()
	default:
		selfClosing := strings.HasSuffix(body, "/")
		if selfClosing {
			body = body[:len(body)-1]
		}
		name := body
		if i := strings.IndexAny(name, " \t\r\n"); i >= 0 {
			name = name[:i]
		}
		s.row.start(localName(name))
		if selfClosing {
			s.row.end()
		}
	}
}

func (s *XmlToJson) emitRows() {
	for _, row := range s.row.drain() {
		var line strings.Builder
		enc := json.NewEncoder(&line)
		enc.SetEscapeHTML(false)
		// Encode terminates the line with '\n' itself.
		if err := enc.Encode(row); err != nil {
			s.err = fmt.Errorf("xmlstream: marshal row: %w", err)
			return
		}
		s.next.Append([]byte(line.String()))
	}
}

func (s *XmlToJson) Flush() error {
	if s.err != nil {
		return s.err
	}
	s.advance(0, true)
	if s.err != nil {
		return s.err
	}
	if rest := s.prev.Length(); rest > 0 {
		return fmt.Errorf("xmlstream: stream ends inside a tag (%d bytes unparsed)", rest)
	}
	if s.row.inRow {
		return fmt.Errorf("xmlstream: stream ends inside a %q row", s.RowTag)
	}
	return nil
}
