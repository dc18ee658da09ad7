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
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// multipartSession tracks one in-flight CreateMultipartUpload call.
type multipartSession struct {
	bucket, key string
	parts       map[int][]byte
}

// MemStore is an in-memory Store, used for local/test runs and as the
// reference implementation the engine's own test suite exercises
// against. It is not backed by any vendor SDK.
type MemStore struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte
	uploads map[string]*multipartSession
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[string]map[string][]byte),
		uploads: make(map[string]*multipartSession),
	}
}

// Put seeds bucket/key with data, for test setup.
func (m *MemStore) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureBucketLocked(bucket)[key] = append([]byte(nil), data...)
}

// Get returns a copy of bucket/key's full contents, for assertions.
func (m *MemStore) Get(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket]
	if !ok {
		return nil, false
	}
	data, ok := b[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

func (m *MemStore) ensureBucketLocked(bucket string) map[string][]byte {
	b, ok := m.objects[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.objects[bucket] = b
	}
	return b
}

func (m *MemStore) HeadObject(_ context.Context, bucket, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket]
	if !ok {
		return 0, ErrNotFound
	}
	data, ok := b[key]
	if !ok {
		return 0, ErrNotFound
	}
	return int64(len(data)), nil
}

func (m *MemStore) GetObject(_ context.Context, bucket, key string, start, end int64) (io.ReadCloser, error) {
	m.mu.Lock()
	data, ok := m.objects[bucket][key]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	if start < 0 {
		start = 0
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	if end < start {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return io.NopCloser(bytes.NewReader(data[start : end+1])), nil
}

func (m *MemStore) CreateMultipartUpload(_ context.Context, bucket, key string) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[id] = &multipartSession{bucket: bucket, key: key, parts: make(map[int][]byte)}
	return id, nil
}

func (m *MemStore) UploadPart(_ context.Context, bucket, key, uploadID string, partNumber int, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.uploads[uploadID]
	if !ok || session.bucket != bucket || session.key != key {
		return "", fmt.Errorf("objectstore: unknown multipart session %q", uploadID)
	}
	session.parts[partNumber] = append([]byte(nil), body...)
	return fmt.Sprintf("etag-%s-%d", uploadID, partNumber), nil
}

func (m *MemStore) CompleteMultipartUpload(_ context.Context, bucket, key, uploadID string, parts []Part) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.uploads[uploadID]
	if !ok || session.bucket != bucket || session.key != key {
		return fmt.Errorf("objectstore: unknown multipart session %q", uploadID)
	}
	ordered := append([]Part(nil), parts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PartNumber < ordered[j].PartNumber })

	var buf bytes.Buffer
	for _, p := range ordered {
		buf.Write(session.parts[p.PartNumber])
	}
	m.ensureBucketLocked(bucket)[key] = buf.Bytes()
	delete(m.uploads, uploadID)
	return nil
}

func (m *MemStore) ListObjectsV2(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.objects[bucket] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemStore) DeleteObjects(_ context.Context, bucket string, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(b, key)
	}
	return nil
}

func (m *MemStore) CopyObject(_ context.Context, bucket, srcKey, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket]
	if !ok {
		return ErrNotFound
	}
	data, ok := b[srcKey]
	if !ok {
		return ErrNotFound
	}
	b[dstKey] = append([]byte(nil), data...)
	return nil
}
