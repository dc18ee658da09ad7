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

// Package xmlstream reads a dump-shaped XML document and produces one
// nested map per "row" element, with memory bounded by a single row's
// size rather than the whole document.
package xmlstream

import (
	"strconv"
	"strings"
)

// rowBuilder folds start/text/end element events into one nested map
// per element whose local name equals rowTag. It keeps two stacks in
// lockstep: path holds the nested containers (a nil slot marks an
// element not yet materialized, lazily promoted to a map on its first
// child) and previous holds the tag names. Everything outside a row is
// discarded as it completes, so memory stays bounded by one row.
type rowBuilder struct {
	rowTag   string
	path     []any
	previous []string
	text     strings.Builder
	inRow    bool
	rows     []map[string]any
}

func newRowBuilder(rowTag string) *rowBuilder {
	return &rowBuilder{rowTag: rowTag}
}

func (b *rowBuilder) start(name string) {
	if !b.inRow {
		if name == b.rowTag {
			b.inRow = true
			b.path = append(b.path[:0], nil)
			b.previous = append(b.previous[:0], name)
			b.text.Reset()
		}
		return
	}
	b.path = append(b.path, nil)
	b.previous = append(b.previous, name)
	b.text.Reset()
}

func (b *rowBuilder) charData(s string) {
	if b.inRow {
		b.text.WriteString(s)
	}
}

func (b *rowBuilder) end() {
	if !b.inRow {
		return
	}
	last := len(b.path) - 1
	current := b.path[last]
	name := b.previous[last]
	b.path = b.path[:last]
	b.previous = b.previous[:last]

	var value any
	if current == nil {
		value = strings.TrimSpace(b.text.String())
	} else {
		value = current
	}
	b.text.Reset()

	if len(b.path) == 0 {
		row, ok := value.(map[string]any)
		if !ok {
			row = map[string]any{name: value}
		}
		b.rows = append(b.rows, row)
		b.inRow = false
		return
	}

	parent := len(b.path) - 1
	container, ok := b.path[parent].(map[string]any)
	if !ok {
		container = map[string]any{}
		b.path[parent] = container
	}
	attach(container, name, value)
}

// drain returns every completed row accumulated since the last call.
func (b *rowBuilder) drain() []map[string]any {
	rows := b.rows
	b.rows = nil
	return rows
}

// attach implements the sibling-repeat promotion rule: the first
// occurrence of a key is stored as-is; a second occurrence promotes
// the value to a two-element list; further occurrences append.
func attach(container map[string]any, key string, value any) {
	existing, ok := container[key]
	if !ok {
		container[key] = value
		return
	}
	if list, ok := existing.([]any); ok {
		container[key] = append(list, value)
		return
	}
	container[key] = []any{existing, value}
}

// localName strips any namespace prefix from a raw tag name, so row
// matching works regardless of the prefix a document declares.
func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// unescape decodes the predefined XML entities and numeric character
// references in character data. Anything unrecognized passes through
// verbatim.
func unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.IndexByte(s, '&')
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i:]
		j := strings.IndexByte(s, ';')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		entity := s[1:j]
		s = s[j+1:]
		switch {
		case entity == "amp":
			b.WriteByte('&')
		case entity == "lt":
			b.WriteByte('<')
		case entity == "gt":
			b.WriteByte('>')
		case entity == "quot":
			b.WriteByte('"')
		case entity == "apos":
			b.WriteByte('\'')
		case strings.HasPrefix(entity, "#x"), strings.HasPrefix(entity, "#X"):
			if n, err := strconv.ParseInt(entity[2:], 16, 32); err == nil {
				b.WriteRune(rune(n))
			} else {
				b.WriteString("&" + entity + ";")
			}
		case strings.HasPrefix(entity, "#"):
			if n, err := strconv.ParseInt(entity[1:], 10, 32); err == nil {
				b.WriteRune(rune(n))
			} else {
				b.WriteString("&" + entity + ";")
			}
		default:
			b.WriteByte('&')
			b.WriteString(entity)
			b.WriteByte(';')
		}
	}
}
