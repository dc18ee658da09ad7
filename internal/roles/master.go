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
	"encoding/json"
	"fmt"

	"github.com/amacal/laboratory/internal/objectstore"
	"github.com/amacal/laboratory/internal/retry"
	"github.com/amacal/laboratory/internal/stages"
	"github.com/amacal/laboratory/internal/taskrunner"
	"github.com/amacal/laboratory/internal/tokenqueue"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// tokenResourceField mirrors stages.AcquireToken's internal envelope
// field name: the resource handle an AcquireToken borrows is stamped
// into the item under this key, for the stage that runs between the
// acquire/release pair to read back out.
const tokenResourceField = "__token_resource"

// FtpLocation is one FTP mirror master_get can pull a dump from,
// queued for round-robin throttled selection with its Host/Directory
// pair riding inside the token itself.
type FtpLocation struct {
	Host      string
	Directory string
}

func (l FtpLocation) encode() string {
	raw, _ := json.Marshal(l)
	return string(raw)
}

func decodeFtpLocation(raw string) FtpLocation {
	var l FtpLocation
	_ = json.Unmarshal([]byte(raw), &l)
	return l
}

// ClusterDeps is the ECS dispatch configuration every master pipeline
// shares: the cluster/task ARNs and network placement EcsTask needs,
// plus the object store used for the idempotency short-circuits and
// the adaptive retry every ECS task call is wrapped in.
type ClusterDeps struct {
	Store         objectstore.Store
	Runner        taskrunner.Runner
	Bucket        string
	Cluster       string
	Task          string
	SecurityGroup string
	VpcSubnet     string
	Retry         retry.Adaptive
}

// MasterGet drives one dump file's ingestion: mirror it off FTP into
// the raw/ prefix if it isn't there yet, then convert it to NDJSON
// under json/ if that isn't there yet either. Both steps are
// idempotency-gated S3 existence checks, each wrapping its ECS
// dispatch in an AcquireToken/ReleaseToken pair so only a bounded
// number of FTP sessions or JSON conversions run at once.
func MasterGet(deps ClusterDeps, ftpQueue, jsonQueue tokenqueue.Queue, filename, rowtag string) error {
	ftpGate := &stages.Conditional{
		Inverse: true,
		Predicate: (&objectstore.S3KeyExists{
			Store:  deps.Store,
			Bucket: deps.Bucket,
			KeyOf: func(item pipeline.Item) string {
				name, _ := item["name"].(string)
				return RawKey(name)
			},
		}).Predicate(),
		Sub: pipeline.NewFunnel(
			&stages.AcquireToken{Queue: ftpQueue},
			&taskrunner.EcsTask{
				Runner:  deps.Runner,
				Cluster: deps.Cluster,
				Task:    deps.Task,
				Environment: func(item pipeline.Item) map[string]string {
					name, _ := item["name"].(string)
					resource, _ := item[tokenResourceField].(string)
					loc := decodeFtpLocation(resource)
					return map[string]string{
						"TYPE":      "worker-ftp",
						"NAME":      name,
						"BUCKET":    deps.Bucket,
						"INPUT":     name,
						"OUTPUT":    RawKey(name),
						"HOST":      loc.Host,
						"DIRECTORY": loc.Directory,
					}
				},
				Retry: deps.Retry,
			},
			&stages.ReleaseToken{Queue: ftpQueue},
		),
	}

	jsonGate := &stages.Conditional{
		Inverse: true,
		Predicate: (&objectstore.S3KeyExists{
			Store:  deps.Store,
			Bucket: deps.Bucket,
			KeyOf: func(item pipeline.Item) string {
				name, _ := item["name"].(string)
				return JsonKeyFromDumpName(name)
			},
		}).Predicate(),
		Sub: pipeline.NewFunnel(
			&stages.AcquireToken{Queue: jsonQueue},
			&taskrunner.EcsTask{
				Runner:  deps.Runner,
				Cluster: deps.Cluster,
				Task:    deps.Task,
				Environment: func(item pipeline.Item) map[string]string {
					name, _ := item["name"].(string)
					return map[string]string{
						"TYPE":    "worker-json",
						"NAME":    name,
						"ROWTAG":  rowtag,
						"BUCKET":  deps.Bucket,
						"INPUT":   RawKey(name),
						"OUTPUT":  JsonKeyFromDumpName(name),
					}
				},
				Retry: deps.Retry,
			},
			&stages.ReleaseToken{Queue: jsonQueue},
		),
	}

	p := pipeline.New(filename, ftpGate, jsonGate)
	if _, err := p.StartItems([]pipeline.Item{{"name": filename}}); err != nil {
		return fmt.Errorf("roles: master_get %s: %w", filename, err)
	}
	return nil
}

// MasterSort drives one JSON dump's external sort: dispatch the
// worker-sort ECS task under the sort/ prefix if the sorted object
// isn't already there.
func MasterSort(deps ClusterDeps, filename, tag string) error {
	gate := &stages.Conditional{
		Inverse: true,
		Predicate: (&objectstore.S3KeyExists{
			Store:  deps.Store,
			Bucket: deps.Bucket,
			KeyOf: func(item pipeline.Item) string {
				name, _ := item["name"].(string)
				return SortKey(name)
			},
		}).Predicate(),
		Sub: pipeline.NewFunnel(
			&taskrunner.EcsTask{
				Runner:  deps.Runner,
				Cluster: deps.Cluster,
				Task:    deps.Task,
				Environment: func(item pipeline.Item) map[string]string {
					name, _ := item["name"].(string)
					return map[string]string{
						"TYPE":   "worker-sort",
						"NAME":   name,
						"TAG":    tag,
						"BUCKET": deps.Bucket,
						"INPUT":  JsonKeyFromJsonName(name),
						"OUTPUT": SortKey(name),
					}
				},
				Retry: deps.Retry,
			},
		),
	}

	p := pipeline.New(filename, gate)
	if _, err := p.StartItems([]pipeline.Item{{"name": filename}}); err != nil {
		return fmt.Errorf("roles: master_sort %s: %w", filename, err)
	}
	return nil
}

// FtpQueueResources flattens mirrors into the queue seed MasterGet's
// ftpQueue expects: perMirror tokens per location, so each AcquireToken
// draw resolves to one mirror's Host/Directory pair and the load
// rotates across mirrors instead of hammering one.
func FtpQueueResources(mirrors []FtpLocation, perMirror int) []string {
	var resources []string
	for _, mirror := range mirrors {
		for i := 0; i < perMirror; i++ {
			resources = append(resources, mirror.encode())
		}
	}
	return resources
}

// NewFtpQueue is a thin convenience wrapper building a Local queue
// straight from FtpQueueResources.
func NewFtpQueue(mirrors []FtpLocation, perMirror int) *tokenqueue.Local {
	return tokenqueue.NewLocal(FtpQueueResources(mirrors, perMirror))
}
