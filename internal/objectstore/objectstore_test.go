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

package objectstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

func TestS3ObjectSplitCoversWholeRange(t *testing.T) {
	store := NewMemStore()
	store.Put("bkt", "big.bin", bytes.Repeat([]byte("x"), 25))

	o := S3Object{Bucket: "bkt", Key: "big.bin"}
	ranges, err := o.Split(context.Background(), store, 10)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	want := []S3ObjectRange{
		{Bucket: "bkt", Key: "big.bin", Total: 25, Start: 0, End: 9},
		{Bucket: "bkt", Key: "big.bin", Total: 25, Start: 10, End: 19},
		{Bucket: "bkt", Key: "big.bin", Total: 25, Start: 20, End: 24},
	}
	if len(ranges) != len(want) {
		t.Fatalf("len(ranges) = %d, want %d (%+v)", len(ranges), len(want), ranges)
	}
	for i := range want {
		if ranges[i] != want[i] {
			t.Fatalf("ranges[%d] = %+v, want %+v", i, ranges[i], want[i])
		}
	}
}

func TestS3ObjectBetweenSharesTotal(t *testing.T) {
	store := NewMemStore()
	store.Put("bkt", "big.bin", bytes.Repeat([]byte("x"), 25))

	o := S3Object{Bucket: "bkt", Key: "big.bin"}
	r, err := o.Between(context.Background(), store, 5, 14)
	if err != nil {
		t.Fatalf("Between error: %v", err)
	}
	want := S3ObjectRange{Bucket: "bkt", Key: "big.bin", Total: 25, Start: 5, End: 14}
	if r != want {
		t.Fatalf("Between = %+v, want %+v", r, want)
	}
}

func TestMemStoreHeadObjectNotFound(t *testing.T) {
	store := NewMemStore()
	if _, err := store.HeadObject(context.Background(), "bkt", "missing"); err != ErrNotFound {
		t.Fatalf("HeadObject error = %v, want ErrNotFound", err)
	}
}

func TestS3DownloadEmitsExactBytes(t *testing.T) {
	store := NewMemStore()
	content := bytes.Repeat([]byte("ab"), 40) // 80 bytes
	store.Put("bkt", "data.bin", content)

	p := pipeline.New("download", &S3Download{Store: store, ChunkSize: 17})
	input := []pipeline.Item{S3Object{Bucket: "bkt", Key: "data.bin"}.ToItem()}

	if err := p.Funnel().Bind(p.Metrics, p.Metadata); err != nil {
		t.Fatalf("bind error: %v", err)
	}
	p.Funnel().AppendItems(input)
	if err := p.Funnel().Flush(); err != nil {
		t.Fatalf("flush error: %v", err)
	}
	got := p.Funnel().ReadBytes(-1)
	if !bytes.Equal(got, content) {
		t.Fatalf("downloaded %d bytes, want %d", len(got), len(content))
	}
}

func TestS3DownloadRangedItem(t *testing.T) {
	store := NewMemStore()
	content := []byte("0123456789")
	store.Put("bkt", "data.bin", content)

	p := pipeline.New("download-range", &S3Download{Store: store, ChunkSize: 4})
	input := []pipeline.Item{S3ObjectRange{Bucket: "bkt", Key: "data.bin", Total: 10, Start: 2, End: 6}.ToItem()}

	if err := p.Funnel().Bind(p.Metrics, p.Metadata); err != nil {
		t.Fatalf("bind error: %v", err)
	}
	p.Funnel().AppendItems(input)
	if err := p.Funnel().Flush(); err != nil {
		t.Fatalf("flush error: %v", err)
	}
	got := p.Funnel().ReadBytes(-1)
	if string(got) != "23456" {
		t.Fatalf("got %q, want %q", got, "23456")
	}
}

func TestS3UploadMultipartRoundTrip(t *testing.T) {
	store := NewMemStore()
	p := pipeline.New("upload", &S3Upload{
		Store:     store,
		Bucket:    "out",
		ChunkSize: 5,
		Key:       func(*telemetry.Metadata) string { return "result.bin" },
	})

	input := bytes.Repeat([]byte("z"), 23)
	if err := p.Funnel().Bind(p.Metrics, p.Metadata); err != nil {
		t.Fatalf("bind error: %v", err)
	}
	p.Funnel().AppendBytes(input)
	if err := p.Funnel().Flush(); err != nil {
		t.Fatalf("flush error: %v", err)
	}

	stored, ok := store.Get("out", "result.bin")
	if !ok {
		t.Fatalf("object not stored")
	}
	if !bytes.Equal(stored, input) {
		t.Fatalf("stored %d bytes, want %d", len(stored), len(input))
	}
}

func TestS3ListExpandsPrefix(t *testing.T) {
	store := NewMemStore()
	store.Put("bkt", "raw/a", []byte("1"))
	store.Put("bkt", "raw/b", []byte("2"))
	store.Put("bkt", "json/c", []byte("3"))

	p := pipeline.New("list", &S3List{Store: store})
	input := []pipeline.Item{S3Prefix{Bucket: "bkt", Prefix: "raw/"}.ToItem()}
	out, err := p.StartItems(input)
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestS3DeleteRemovesObjects(t *testing.T) {
	store := NewMemStore()
	store.Put("bkt", "tmp/0", []byte("x"))
	store.Put("bkt", "tmp/1", []byte("y"))

	p := pipeline.New("delete", &S3Delete{Store: store})
	input := []pipeline.Item{
		S3Object{Bucket: "bkt", Key: "tmp/0"}.ToItem(),
		S3Object{Bucket: "bkt", Key: "tmp/1"}.ToItem(),
	}
	out, err := p.StartItems(input)
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (passthrough)", len(out))
	}
	if _, ok := store.Get("bkt", "tmp/0"); ok {
		t.Fatalf("tmp/0 still present after delete")
	}
}

func TestS3RenameCopiesAndDeletesOriginal(t *testing.T) {
	store := NewMemStore()
	store.Put("bkt", "out/0001", []byte("payload"))

	p := pipeline.New("rename", &S3Rename{
		Store: store,
		Key:   func(*telemetry.Metadata) string { return "out/0001?off=0&k=z" },
	})
	input := []pipeline.Item{S3Object{Bucket: "bkt", Key: "out/0001"}.ToItem()}
	out, err := p.StartItems(input)
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}
	if len(out) != 1 || out[0][keyField] != "out/0001?off=0&k=z" {
		t.Fatalf("out = %+v", out)
	}
	if _, ok := store.Get("bkt", "out/0001"); ok {
		t.Fatalf("original key still present after rename")
	}
	renamed, ok := store.Get("bkt", "out/0001?off=0&k=z")
	if !ok || string(renamed) != "payload" {
		t.Fatalf("renamed object = %q, ok=%v", renamed, ok)
	}
}

func TestS3ChunkSplitsObject(t *testing.T) {
	store := NewMemStore()
	store.Put("bkt", "big", bytes.Repeat([]byte("q"), 100))

	p := pipeline.New("chunk", &S3Chunk{Store: store, ChunkSize: 30})
	input := []pipeline.Item{S3Object{Bucket: "bkt", Key: "big"}.ToItem()}
	out, err := p.StartItems(input)
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
}

func TestS3KeyExistsPredicate(t *testing.T) {
	store := NewMemStore()
	store.Put("bkt", "raw/present", []byte("x"))

	exists := &S3KeyExists{Store: store, Bucket: "bkt"}
	if !exists.Evaluate(pipeline.Item{keyField: "raw/present"}) {
		t.Fatalf("expected raw/present to exist")
	}
	if exists.Evaluate(pipeline.Item{keyField: "raw/absent"}) {
		t.Fatalf("expected raw/absent to not exist")
	}
}

func TestLineLocatorFindsNewlineAcrossWindows(t *testing.T) {
	store := NewMemStore()
	content := []byte("aaaaaaaaaa\nbbbbbbbbbb\n")
	store.Put("bkt", "lines.ndjson", content)

	locator := &LineLocator{Store: store}
	offset, found, err := locator.FindNewline("bkt", "lines.ndjson", 2, 5)
	if err != nil {
		t.Fatalf("FindNewline error: %v", err)
	}
	if !found || offset != 10 {
		t.Fatalf("offset = %d, found = %v, want 10, true", offset, found)
	}
}

func TestLineLocatorNoNewlineAtTail(t *testing.T) {
	store := NewMemStore()
	store.Put("bkt", "notail", []byte("nonewlinehere"))

	locator := &LineLocator{Store: store}
	_, found, err := locator.FindNewline("bkt", "notail", 0, 4)
	if err != nil {
		t.Fatalf("FindNewline error: %v", err)
	}
	if found {
		t.Fatalf("expected no newline found")
	}
}
