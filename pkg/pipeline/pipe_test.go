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

package pipeline

import (
	"strings"
	"testing"

	"github.com/amacal/laboratory/internal/telemetry"
)

func TestPipeAppendReadFIFO(t *testing.T) {
	p := NewPipe[byte](1024)
	p.Append([]byte("hello "))
	p.Append([]byte("world"))

	if got := p.Length(); got != 11 {
		t.Fatalf("Length() = %d, want 11", got)
	}
	out := p.Read(5)
	if string(out) != "hello" {
		t.Fatalf("Read(5) = %q, want %q", out, "hello")
	}
	rest := p.Read(-1)
	if string(rest) != " world" {
		t.Fatalf("Read(-1) = %q, want %q", rest, " world")
	}
	if p.Length() != 0 {
		t.Fatalf("Length() after full drain = %d, want 0", p.Length())
	}
}

func TestPipeCompaction(t *testing.T) {
	p := NewPipe[byte](4)
	p.Append([]byte("abcdef"))
	p.Read(4)
	if p.offset != 0 {
		t.Fatalf("offset after compaction = %d, want 0", p.offset)
	}
	if string(p.data) != "ef" {
		t.Fatalf("data after compaction = %q, want %q", p.data, "ef")
	}
}

func TestPipeCallbackFiresOnAppend(t *testing.T) {
	p := NewPipe[byte](1024)
	calls := 0
	p.Subscribe(func() { calls++ })
	p.Append([]byte("a"))
	p.Append([]byte("b"))
	if calls != 2 {
		t.Fatalf("callback fired %d times, want 2", calls)
	}
}

type kindStage struct {
	in, out ElemKind
}

func (s *kindStage) InputKind() ElemKind  { return s.in }
func (s *kindStage) OutputKind() ElemKind { return s.out }
func (s *kindStage) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	return nil
}
func (s *kindStage) Flush() error { return nil }

func TestFunnelBindRejectsKindMismatch(t *testing.T) {
	f := NewFunnel(
		&kindStage{in: KindBinary, out: KindBinary},
		&kindStage{in: KindItem, out: KindItem},
	)
	err := f.Bind(telemetry.New("test"), telemetry.NewMetadata())
	if err == nil {
		t.Fatal("Bind() accepted a binary->item splice, want error")
	}
	if !strings.Contains(err.Error(), "expects item input") {
		t.Fatalf("Bind() error = %v, want kind mismatch", err)
	}
}

func TestFindRFind(t *testing.T) {
	p := NewBytePipe()
	p.Append([]byte("abc\ndef\nghi"))
	if got := Find(p, '\n'); got != 3 {
		t.Fatalf("Find = %d, want 3", got)
	}
	if got := RFind(p, '\n'); got != 7 {
		t.Fatalf("RFind = %d, want 7", got)
	}
	p.Read(4) // consume "abc\n"
	if got := Find(p, '\n'); got != 3 {
		t.Fatalf("Find after partial read = %d, want 3 (relative to new head)", got)
	}
	if got := Find(p, 'z'); got != NotFound {
		t.Fatalf("Find missing byte = %d, want NotFound", got)
	}
}

func BenchmarkPipeAppendRead(b *testing.B) {
	chunk := make([]byte, 64*1024)
	p := NewBytePipe()
	b.SetBytes(int64(len(chunk)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Append(chunk)
		p.Read(len(chunk))
	}
}
