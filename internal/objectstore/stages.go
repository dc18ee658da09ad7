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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

const defaultDownloadChunkSize = 32 * 1024 * 1024
const readWindow = 128 * 1024

// S3Download reads one or more S3Object/S3ObjectRange items, ranging
// each through the store in ChunkSize windows, and forwards the raw
// bytes downstream in order.
type S3Download struct {
	Store     Store
	ChunkSize int64

	prev *pipeline.ItemPipe
	next *pipeline.BytePipe

	metrics *telemetry.Metrics
	err     error
}

func (s *S3Download) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *S3Download) OutputKind() pipeline.ElemKind { return pipeline.KindBinary }

func (s *S3Download) Bind(prev, next any, metrics *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.BytePipe)
	s.metrics = metrics
	if s.ChunkSize <= 0 {
		s.ChunkSize = defaultDownloadChunkSize
	}
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *S3Download) changed() {
	if s.err != nil {
		return
	}
	for _, item := range s.prev.Read(-1) {
		if err := s.download(item); err != nil {
			s.err = err
			return
		}
	}
}

func (s *S3Download) download(item pipeline.Item) error {
	ctx := context.Background()
	bucket, _ := item[bucketField].(string)
	key, _ := item[keyField].(string)

	var offset, size int64
	if _, ranged := item[startField]; ranged {
		r := S3ObjectRangeFromItem(item)
		offset = r.Start
		size = r.End + 1
	} else {
		total, err := s.Store.HeadObject(ctx, bucket, key)
		if err != nil {
			return fmt.Errorf("objectstore: download %s/%s: %w", bucket, key, err)
		}
		if s.metrics != nil {
			s.metrics.Log("downloading s3://%s/%s measured as %d bytes", bucket, key, total)
		}
		size = total
	}

	for offset < size {
		read, err := s.readRange(ctx, bucket, key, offset, size)
		if err != nil {
			return err
		}
		offset += read
	}
	return nil
}

func (s *S3Download) readRange(ctx context.Context, bucket, key string, offset, total int64) (int64, error) {
	available := total - offset
	if available > s.ChunkSize {
		available = s.ChunkSize
	}
	end := offset + available - 1
	if s.metrics != nil {
		s.metrics.Log("downloading range %d:%d", offset, end)
	}

	body, err := s.Store.GetObject(ctx, bucket, key, offset, end)
	if err != nil {
		return 0, fmt.Errorf("objectstore: get %s/%s range %d-%d: %w", bucket, key, offset, end, err)
	}
	defer body.Close()

	buf := make([]byte, readWindow)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.next.Append(chunk)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("objectstore: read %s/%s: %w", bucket, key, err)
		}
	}
	return available, nil
}

func (s *S3Download) Flush() error {
	s.changed()
	return s.err
}

// S3Upload drains the upstream byte stream into a multipart upload,
// part by part as ChunkSize worth of data accumulates, and emits the
// completed S3Object downstream once Flush completes the session.
// Key may be resolved lazily from metadata on first upload, so keys
// that embed markers accumulated upstream (e.g. a DataMarker result)
// resolve only once that metadata exists.
type S3Upload struct {
	Store     Store
	Bucket    string
	Key       func(metadata *telemetry.Metadata) string
	ChunkSize int64

	prev *pipeline.BytePipe
	next *pipeline.ItemPipe

	metrics  *telemetry.Metrics
	metadata *telemetry.Metadata

	resolvedKey string
	uploadID    string
	part        int
	parts       []Part
	err         error
}

func (s *S3Upload) InputKind() pipeline.ElemKind  { return pipeline.KindBinary }
func (s *S3Upload) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *S3Upload) Bind(prev, next any, metrics *telemetry.Metrics, metadata *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.BytePipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metrics = metrics
	s.metadata = metadata
	s.part = 1
	if s.ChunkSize <= 0 {
		s.ChunkSize = defaultDownloadChunkSize
	}
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *S3Upload) startUpload() error {
	if s.uploadID != "" || s.err != nil {
		return s.err
	}
	s.resolvedKey = s.Key(s.metadata)
	uploadID, err := s.Store.CreateMultipartUpload(context.Background(), s.Bucket, s.resolvedKey)
	if err != nil {
		return fmt.Errorf("objectstore: create multipart upload %s/%s: %w", s.Bucket, s.resolvedKey, err)
	}
	s.uploadID = uploadID
	if s.metrics != nil {
		s.metrics.Log("upload started %s", s.resolvedKey)
	}
	return nil
}

func (s *S3Upload) changed() {
	if s.err != nil {
		return
	}
	if err := s.startUpload(); err != nil {
		s.err = err
		return
	}
	s.err = s.uploadAbove(s.ChunkSize)
}

func (s *S3Upload) uploadAbove(threshold int64) error {
	for int64(s.prev.Length()) > threshold {
		chunk := s.prev.Read(int(s.ChunkSize))
		if s.metrics != nil {
			s.metrics.Log("part %d started; %d bytes", s.part, len(chunk))
		}
		etag, err := s.Store.UploadPart(context.Background(), s.Bucket, s.resolvedKey, s.uploadID, s.part, chunk)
		if err != nil {
			return fmt.Errorf("objectstore: upload part %d of %s: %w", s.part, s.resolvedKey, err)
		}
		if s.metrics != nil {
			s.metrics.Log("part %d completed; %d bytes", s.part, len(chunk))
		}
		s.parts = append(s.parts, Part{ETag: etag, PartNumber: s.part})
		s.part++
	}
	return nil
}

func (s *S3Upload) Flush() error {
	s.changed()
	if s.err != nil {
		return s.err
	}
	if err := s.uploadAbove(0); err != nil {
		return err
	}
	if err := s.Store.CompleteMultipartUpload(context.Background(), s.Bucket, s.resolvedKey, s.uploadID, s.parts); err != nil {
		return fmt.Errorf("objectstore: complete multipart upload %s: %w", s.resolvedKey, err)
	}
	if s.metrics != nil {
		s.metrics.Log("upload completed %s", s.resolvedKey)
	}
	s.next.Append([]pipeline.Item{S3Object{Bucket: s.Bucket, Key: s.resolvedKey}.ToItem()})
	return nil
}

// S3List expands each incoming S3Prefix item into one S3Object item
// per key under that bucket/prefix.
type S3List struct {
	Store Store

	prev, next *pipeline.ItemPipe
	err        error
}

func (s *S3List) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *S3List) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *S3List) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *S3List) changed() {
	if s.err != nil {
		return
	}
	for _, item := range s.prev.Read(-1) {
		prefix := S3PrefixFromItem(item)
		keys, err := s.Store.ListObjectsV2(context.Background(), prefix.Bucket, prefix.Prefix)
		if err != nil {
			s.err = fmt.Errorf("objectstore: list %s/%s: %w", prefix.Bucket, prefix.Prefix, err)
			return
		}
		out := make([]pipeline.Item, len(keys))
		for i, key := range keys {
			out[i] = S3Object{Bucket: prefix.Bucket, Key: key}.ToItem()
		}
		s.next.Append(out)
	}
}

func (s *S3List) Flush() error {
	s.changed()
	return s.err
}

// S3Delete removes every batch of incoming S3Object items in one
// DeleteObjects call, per batch, and forwards the same items
// unchanged.
type S3Delete struct {
	Store Store

	prev, next *pipeline.ItemPipe
	err        error
}

func (s *S3Delete) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *S3Delete) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *S3Delete) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *S3Delete) changed() {
	if s.err != nil {
		return
	}
	items := s.prev.Read(-1)
	if len(items) == 0 {
		return
	}
	bucket, _ := items[0][bucketField].(string)
	keys := make([]string, len(items))
	for i, item := range items {
		key, _ := item[keyField].(string)
		keys[i] = key
	}
	if err := s.Store.DeleteObjects(context.Background(), bucket, keys); err != nil {
		s.err = fmt.Errorf("objectstore: delete %d objects from %s: %w", len(keys), bucket, err)
		return
	}
	s.next.Append(items)
}

func (s *S3Delete) Flush() error {
	s.changed()
	return s.err
}

// S3Rename copies every incoming S3Object to a new key resolved from
// metadata, deletes the original, and forwards the renamed object.
// Used to stamp a completed output key with the markers accumulated
// over its own upload (e.g. "out/0001?off=0&k=a...").
type S3Rename struct {
	Store Store
	Key   func(metadata *telemetry.Metadata) string

	prev, next *pipeline.ItemPipe
	metrics    *telemetry.Metrics
	metadata   *telemetry.Metadata
	err        error
}

func (s *S3Rename) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *S3Rename) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *S3Rename) Bind(prev, next any, metrics *telemetry.Metrics, metadata *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metrics = metrics
	s.metadata = metadata
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *S3Rename) changed() {
	if s.err != nil {
		return
	}
	items := s.prev.Read(-1)
	if len(items) == 0 {
		return
	}
	out := make([]pipeline.Item, 0, len(items))
	for _, item := range items {
		src := S3ObjectFromItem(item)
		dstKey := s.Key(s.metadata)
		ctx := context.Background()
		if s.metrics != nil {
			s.metrics.Log("copying %s/%s to %s", src.Bucket, src.Key, dstKey)
		}
		if err := s.Store.CopyObject(ctx, src.Bucket, src.Key, dstKey); err != nil {
			s.err = fmt.Errorf("objectstore: copy %s/%s to %s: %w", src.Bucket, src.Key, dstKey, err)
			return
		}
		if err := s.Store.DeleteObjects(ctx, src.Bucket, []string{src.Key}); err != nil {
			s.err = fmt.Errorf("objectstore: delete %s/%s after rename: %w", src.Bucket, src.Key, err)
			return
		}
		out = append(out, S3Object{Bucket: src.Bucket, Key: dstKey}.ToItem())
	}
	s.next.Append(out)
}

func (s *S3Rename) Flush() error {
	s.changed()
	return s.err
}

// S3Chunk splits every incoming S3Object into contiguous inclusive
// S3ObjectRange items of at most ChunkSize bytes, measuring the
// object first if its total isn't already known.
type S3Chunk struct {
	Store     Store
	ChunkSize int64

	prev, next *pipeline.ItemPipe
	err        error
}

func (s *S3Chunk) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *S3Chunk) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *S3Chunk) Bind(prev, next any, _ *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *S3Chunk) changed() {
	if s.err != nil {
		return
	}
	for _, item := range s.prev.Read(-1) {
		o := S3ObjectFromItem(item)
		ranges, err := o.Split(context.Background(), s.Store, s.ChunkSize)
		if err != nil {
			s.err = fmt.Errorf("objectstore: chunk %s/%s: %w", o.Bucket, o.Key, err)
			return
		}
		out := make([]pipeline.Item, len(ranges))
		for i, r := range ranges {
			out[i] = r.ToItem()
		}
		s.next.Append(out)
	}
}

func (s *S3Chunk) Flush() error {
	s.changed()
	return s.err
}

// S3KeyExists is a Predicate factory (its Predicate method returns a
// func assignable to stages.Predicate): it HEADs Bucket/Key(item) and
// reports whether the object exists, raising any non-404 store error.
// KeyOf defaults to reading the item's own "key" field.
type S3KeyExists struct {
	Store  Store
	Bucket string
	KeyOf  func(pipeline.Item) string
}

func (e *S3KeyExists) key(item pipeline.Item) string {
	if e.KeyOf != nil {
		return e.KeyOf(item)
	}
	key, _ := item[keyField].(string)
	return key
}

// Evaluate reports whether Bucket/key(item) exists.
func (e *S3KeyExists) Evaluate(item pipeline.Item) bool {
	_, err := e.Store.HeadObject(context.Background(), e.Bucket, e.key(item))
	if err == nil {
		return true
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	panic(fmt.Errorf("objectstore: key exists %s/%s: %w", e.Bucket, e.key(item), err))
}

// Predicate returns a closure suitable for stages.Conditional's
// Predicate field.
func (e *S3KeyExists) Predicate() func(pipeline.Item) bool {
	return e.Evaluate
}
