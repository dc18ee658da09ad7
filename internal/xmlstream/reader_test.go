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
	"testing"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

func TestXmlToJsonEmitsOneLinePerRow(t *testing.T) {
	p := pipeline.New("xml-to-json", &XmlToJson{RowTag: "page"})
	out, err := p.StartBytes([]byte(`<root><page><id>1</id><t>a</t></page><page><id>2</id><t>b</t></page></root>`))
	if err != nil {
		t.Fatalf("StartBytes error: %v", err)
	}
	want := "{\"id\":\"1\",\"t\":\"a\"}\n{\"id\":\"2\",\"t\":\"b\"}\n"
	if string(out) != want {
		t.Fatalf("out = %q, want %q", out, want)
	}
}

func TestXmlToJsonRepeatedSiblingsPromoteToList(t *testing.T) {
	p := pipeline.New("xml-repeats", &XmlToJson{RowTag: "p"})
	out, err := p.StartBytes([]byte(`<root><p><x>1</x><x>2</x><x>3</x></p></root>`))
	if err != nil {
		t.Fatalf("StartBytes error: %v", err)
	}
	if string(out) != "{\"x\":[\"1\",\"2\",\"3\"]}\n" {
		t.Fatalf("out = %q", out)
	}
}

// TestXmlToJsonWindowedIncrementalFeed drives the stage the way a real
// download does, in small appends against a window larger than any of
// them: nothing may be lost across tick suspensions, and the flush
// with a zero window must drain the held-back tail.
func TestXmlToJsonWindowedIncrementalFeed(t *testing.T) {
	doc := []byte(`<root><page><id>1</id><t>a</t></page><page><id>2</id><t>b</t></page></root>`)

	f := pipeline.NewFunnel(&XmlToJson{RowTag: "page", WindowSize: 16})
	if err := f.Bind(telemetry.New("xml-window"), telemetry.NewMetadata()); err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	for i := 0; i < len(doc); i += 5 {
		end := i + 5
		if end > len(doc) {
			end = len(doc)
		}
		f.AppendBytes(doc[i:end])
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	want := "{\"id\":\"1\",\"t\":\"a\"}\n{\"id\":\"2\",\"t\":\"b\"}\n"
	if got := string(f.ReadBytes(-1)); got != want {
		t.Fatalf("out = %q, want %q", got, want)
	}
}

func TestXmlToJsonNestedEntitiesAndSelfClosing(t *testing.T) {
	p := pipeline.New("xml-mixed", &XmlToJson{RowTag: "page"})
	out, err := p.StartBytes([]byte(
		`<?xml version="1.0"?><root><page><ns:id>a&amp;b</ns:id><flag/><rev><n>5</n></rev></page></root>`))
	if err != nil {
		t.Fatalf("StartBytes error: %v", err)
	}
	want := "{\"flag\":\"\",\"id\":\"a&b\",\"rev\":{\"n\":\"5\"}}\n"
	if string(out) != want {
		t.Fatalf("out = %q, want %q", out, want)
	}
}

func TestXmlToJsonTruncatedStreamErrors(t *testing.T) {
	p := pipeline.New("xml-truncated", &XmlToJson{RowTag: "page"})
	if _, err := p.StartBytes([]byte(`<root><page><id>1</id`)); err == nil {
		t.Fatalf("expected error for a stream ending inside a tag")
	}
}
