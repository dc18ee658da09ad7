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
)

// LineLocator implements ndjson.LineLocator directly against a Store:
// each probe is one ranged GET of up to windowSize bytes, advancing
// window by window until a newline turns up or the object ends.
type LineLocator struct {
	Store Store
}

// FindNewline returns the offset of the first '\n' at or after from
// within bucket/key, scanning windowSize bytes at a time.
func (l *LineLocator) FindNewline(bucket, key string, from, windowSize int64) (int64, bool, error) {
	ctx := context.Background()
	total, err := l.Store.HeadObject(ctx, bucket, key)
	if err != nil {
		return 0, false, fmt.Errorf("objectstore: find newline in %s/%s: %w", bucket, key, err)
	}
	if windowSize <= 0 {
		windowSize = defaultDownloadChunkSize
	}

	for offset := from; offset < total; offset += windowSize {
		end := offset + windowSize - 1
		if end >= total {
			end = total - 1
		}
		body, err := l.Store.GetObject(ctx, bucket, key, offset, end)
		if err != nil {
			return 0, false, fmt.Errorf("objectstore: find newline in %s/%s: %w", bucket, key, err)
		}
		window, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return 0, false, fmt.Errorf("objectstore: find newline in %s/%s: %w", bucket, key, err)
		}
		if idx := bytes.IndexByte(window, '\n'); idx >= 0 {
			return offset + int64(idx), true, nil
		}
	}
	return 0, false, nil
}
