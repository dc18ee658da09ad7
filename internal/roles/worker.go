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

package roles

import (
	"fmt"

	"github.com/amacal/laboratory/internal/ftpsource"
	"github.com/amacal/laboratory/internal/ndjson"
	"github.com/amacal/laboratory/internal/objectstore"
	"github.com/amacal/laboratory/internal/sortcore"
	"github.com/amacal/laboratory/internal/stages"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/internal/xmlstream"
	"github.com/amacal/laboratory/pkg/pipeline"
)

const (
	uploadChunkSize = 128 * 1024 * 1024
	xmlWindowSize   = 128 * 1024
)

// WorkerFtp mirrors one dump file off an FTP host straight into the
// object store, with no intermediate disk buffering. The md5/sha1
// digests of the mirrored bytes end up in the pipeline metadata, so
// the completion log line carries enough to verify the transfer
// against the dump site's published checksums.
func WorkerFtp(store objectstore.Store, client ftpsource.Client, name, host, directory, bucket, input, output string) error {
	p := pipeline.New(name,
		&ftpsource.FtpDownload{Client: client, Host: host, Directory: directory},
		stages.MD5Hash("md5"),
		stages.SHA1Hash("sha1"),
		&objectstore.S3Upload{
			Store:     store,
			Bucket:    bucket,
			Key:       func(*telemetry.Metadata) string { return output },
			ChunkSize: uploadChunkSize,
		},
	)
	if _, err := p.StartItems([]pipeline.Item{{"name": input}}); err != nil {
		return fmt.Errorf("roles: worker_ftp %s: %w", name, err)
	}
	return nil
}

// WorkerJson converts one raw gzip-compressed XML dump into NDJSON,
// one line per rowtag element, uploading the result.
func WorkerJson(store objectstore.Store, name, rowtag, bucket, input, output string) error {
	p := pipeline.New(name,
		&objectstore.S3Download{Store: store},
		&stages.Ungzip{},
		&xmlstream.XmlToJson{RowTag: rowtag, WindowSize: xmlWindowSize},
		&objectstore.S3Upload{
			Store:     store,
			Bucket:    bucket,
			Key:       func(*telemetry.Metadata) string { return output },
			ChunkSize: uploadChunkSize,
		},
	)
	source := objectstore.S3Object{Bucket: bucket, Key: input}
	if _, err := p.StartItems([]pipeline.Item{source.ToItem()}); err != nil {
		return fmt.Errorf("roles: worker_json %s: %w", name, err)
	}
	return nil
}

const (
	localChunkTarget = 1 * 1024 * 1024
	localWindowSize  = 512 * 1024 * 1024
	mergePieceSize   = 16 * 1024 * 1024
	markerCount      = 16
)

// WorkerSort externally sorts one NDJSON dump by the field named tag:
// it downloads the object, windows it into ~512MB chunks, quicksorts
// and uploads each chunk as a marker-tagged temporary shard, then
// k-way merges every shard back into a single sorted output object
// before sweeping up the temporary shards.
func WorkerSort(store objectstore.Store, name, tag, bucket, input, output string) error {
	extract := func(row map[string]any) any { return row[tag] }

	p := pipeline.New(name,
		&objectstore.S3Download{Store: store},
		&ndjson.Chunk{ChunkSize: localChunkTarget},
		&sortcore.ChunkSort{
			ChunkSize:   localWindowSize,
			Extract:     extract,
			MarkerCount: markerCount,
			Store:       store,
			Bucket:      bucket,
			Key:         func(index int) string { return fmt.Sprintf("%s.tmp/%d", output, index) },
		},
		&stages.OneToOne{Map: shardToMergeSource},
		&stages.WaitAllItems{},
		&sortcore.MergeSort{
			PieceSize: mergePieceSize,
			Steps: func(source pipeline.Item, _ *telemetry.Metadata) []pipeline.Stage {
				return []pipeline.Stage{
					&objectstore.S3Download{Store: store},
					&ndjson.Index{Extract: extract},
				}
			},
		},
		&ndjson.Flusher{},
		&objectstore.S3Upload{
			Store:     store,
			Bucket:    bucket,
			Key:       func(*telemetry.Metadata) string { return output },
			ChunkSize: 256 * 1024 * 1024,
		},
		&stages.ItemConsumer{},
	)

	source := objectstore.S3Object{Bucket: bucket, Key: input}
	if _, err := p.StartItems([]pipeline.Item{source.ToItem()}); err != nil {
		return fmt.Errorf("roles: worker_sort %s: %w", name, err)
	}

	sweep := pipeline.New(name+" cleanup",
		&objectstore.S3List{Store: store},
		&objectstore.S3Delete{Store: store},
		&stages.ItemConsumer{},
	)
	prefix := objectstore.S3Prefix{Bucket: bucket, Prefix: output + ".tmp/"}
	if _, err := sweep.StartItems([]pipeline.Item{prefix.ToItem()}); err != nil {
		return fmt.Errorf("roles: worker_sort %s: cleanup: %w", name, err)
	}
	return nil
}

// shardToMergeSource maps a ChunkSort ShardDescriptor onto the
// full-object MergeSort source shape: the whole shard, no admission
// restriction, since the local variant merges every temporary shard
// into a single output rather than partitioning the key domain.
func shardToMergeSource(item pipeline.Item) pipeline.Item {
	descriptor, err := sortcore.ShardDescriptorFromItem(item)
	if err != nil {
		panic(fmt.Errorf("roles: worker_sort: %w", err))
	}
	return pipeline.Item{
		"start":  int64(0),
		"end":    descriptor.Total - 1,
		"total":  descriptor.Total,
		"bucket": descriptor.Bucket,
		"key":    descriptor.Shard,
	}
}
