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

// Package objectstore holds the object-store value types and stages
// the engine's S3-shaped roles are built from: S3Object/S3Prefix/
// S3ObjectRange references, the Store seam those references resolve
// through, and the download/upload/list/delete/rename/chunk/exists
// stages that drive it.
package objectstore

import (
	"context"
	"fmt"

	"github.com/amacal/laboratory/pkg/pipeline"
)

// S3Prefix identifies a bucket/prefix pair to enumerate via List.
type S3Prefix struct {
	Bucket string
	Prefix string
}

const (
	bucketField = "bucket"
	keyField    = "key"
	prefixField = "prefix"
	totalField  = "total"
	startField  = "start"
	endField    = "end"
)

func (p S3Prefix) ToItem() pipeline.Item {
	return pipeline.Item{bucketField: p.Bucket, prefixField: p.Prefix}
}

func S3PrefixFromItem(item pipeline.Item) S3Prefix {
	bucket, _ := item[bucketField].(string)
	prefix, _ := item[prefixField].(string)
	return S3Prefix{Bucket: bucket, Prefix: prefix}
}

// S3Object is a content-addressable reference to a whole object.
// Total is lazily resolved through a HEAD call the first time a
// method needs it.
type S3Object struct {
	Bucket string
	Key    string

	total    int64
	measured bool
}

func (o S3Object) String() string {
	return fmt.Sprintf("s3://%s/%s", o.Bucket, o.Key)
}

func (o S3Object) ToItem() pipeline.Item {
	item := pipeline.Item{bucketField: o.Bucket, keyField: o.Key}
	if o.measured {
		item[totalField] = o.total
	}
	return item
}

func S3ObjectFromItem(item pipeline.Item) S3Object {
	bucket, _ := item[bucketField].(string)
	key, _ := item[keyField].(string)
	o := S3Object{Bucket: bucket, Key: key}
	if total, ok := item[totalField]; ok {
		o.total = toInt64(total)
		o.measured = true
	}
	return o
}

// ensureMeasured resolves o.total via a HEAD call against store,
// caching the result on the returned value.
func (o S3Object) ensureMeasured(ctx context.Context, store Store) (S3Object, error) {
	if o.measured {
		return o, nil
	}
	total, err := store.HeadObject(ctx, o.Bucket, o.Key)
	if err != nil {
		return o, err
	}
	o.total = total
	o.measured = true
	return o, nil
}

// Range returns the inclusive byte range [index, min(index+size, total)-1].
func (o S3Object) Range(index, size, total int64) S3ObjectRange {
	end := index + size
	if end > total {
		end = total
	}
	return S3ObjectRange{Bucket: o.Bucket, Key: o.Key, Total: total, Start: index, End: end - 1}
}

func (o S3Object) build(size, start, end int64) []S3ObjectRange {
	var ranges []S3ObjectRange
	for index := start; index < end; index += size {
		ranges = append(ranges, o.Range(index, size, end))
	}
	return ranges
}

// Between returns a sub-range of o sharing o's total, measuring it
// first if it hasn't been already.
func (o S3Object) Between(ctx context.Context, store Store, start, end int64) (S3ObjectRange, error) {
	o, err := o.ensureMeasured(ctx, store)
	if err != nil {
		return S3ObjectRange{}, err
	}
	return S3ObjectRange{Bucket: o.Bucket, Key: o.Key, Total: o.total, Start: start, End: end}, nil
}

// Split covers [0,total) in contiguous inclusive ranges of at most
// size bytes, measuring o first if it hasn't been already.
func (o S3Object) Split(ctx context.Context, store Store, size int64) ([]S3ObjectRange, error) {
	o, err := o.ensureMeasured(ctx, store)
	if err != nil {
		return nil, err
	}
	return o.build(size, 0, o.total), nil
}

// S3ObjectRange is an inclusive [Start,End] byte window into an
// object of known Total length.
type S3ObjectRange struct {
	Bucket string
	Key    string
	Total  int64
	Start  int64
	End    int64
}

func (r S3ObjectRange) String() string {
	return fmt.Sprintf("s3://%s/%s range %d:%d/%d", r.Bucket, r.Key, r.Start, r.End, r.Total)
}

func (r S3ObjectRange) Between(start, end int64) S3ObjectRange {
	return S3ObjectRange{Bucket: r.Bucket, Key: r.Key, Total: r.Total, Start: start, End: end}
}

func (r S3ObjectRange) ToItem() pipeline.Item {
	return pipeline.Item{
		bucketField: r.Bucket,
		keyField:    r.Key,
		totalField:  r.Total,
		startField:  r.Start,
		endField:    r.End,
	}
}

func S3ObjectRangeFromItem(item pipeline.Item) S3ObjectRange {
	bucket, _ := item[bucketField].(string)
	key, _ := item[keyField].(string)
	return S3ObjectRange{
		Bucket: bucket,
		Key:    key,
		Total:  toInt64(item[totalField]),
		Start:  toInt64(item[startField]),
		End:    toInt64(item[endField]),
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
