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
	"io"
)

// ErrNotFound is returned by HeadObject when the object does not
// exist. A missing object is a value, not a fault: S3KeyExists turns
// it into false rather than an error.
var ErrNotFound = errors.New("objectstore: object not found")

// Part is a completed multipart upload part, as returned by
// UploadPart and collected for CompleteMultipartUpload.
type Part struct {
	ETag       string
	PartNumber int
}

// Store is the narrow seam the S3-shaped stages depend on, cut to the
// handful of operations those stages actually issue. It is written
// against the shape of an AWS SDK S3 client
// (HeadObject/GetObject/CreateMultipartUpload/UploadPart/
// CompleteMultipartUpload/ListObjectsV2/DeleteObjects/CopyObject) so a
// real adapter can implement it directly, but no concrete vendor SDK
// is wired in here.
type Store interface {
	// HeadObject returns an object's total size, or ErrNotFound.
	HeadObject(ctx context.Context, bucket, key string) (int64, error)

	// GetObject returns a reader over the inclusive byte range
	// [start,end] of an object.
	GetObject(ctx context.Context, bucket, key string, start, end int64) (io.ReadCloser, error)

	// CreateMultipartUpload starts a multipart session and returns its
	// upload id.
	CreateMultipartUpload(ctx context.Context, bucket, key string) (string, error)

	// UploadPart uploads one part of a multipart session and returns
	// its ETag.
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, body []byte) (string, error)

	// CompleteMultipartUpload finalizes a multipart session given its
	// completed parts.
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []Part) error

	// ListObjectsV2 returns every key under bucket/prefix.
	ListObjectsV2(ctx context.Context, bucket, prefix string) ([]string, error)

	// DeleteObjects removes a batch of keys from bucket in one call.
	DeleteObjects(ctx context.Context, bucket string, keys []string) error

	// CopyObject copies bucket/srcKey to bucket/dstKey server-side.
	CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error
}
