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
	"context"
	"fmt"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/amacal/laboratory/internal/ftpsource"
	"github.com/amacal/laboratory/internal/tokenqueue"
)

// nameRecognized matches the dump shard names the master TYPE cares
// about.
var nameRecognized = regexp.MustCompile(`enwiki-20201120-stub-meta-current[0-9]{1,2}(\.xml\.gz)$`)

// FetchNames lists every recognized dump shard under host/directory
// over a dedicated FTP connection, once, before any worker starts
// downloading.
func FetchNames(client ftpsource.Client, host, directory string) ([]string, error) {
	ctx := context.Background()
	if err := client.Login(ctx, host); err != nil {
		return nil, fmt.Errorf("roles: fetch_names login %s: %w", host, err)
	}
	defer client.Quit(ctx)

	if err := client.Cwd(ctx, directory); err != nil {
		return nil, fmt.Errorf("roles: fetch_names cwd %s: %w", directory, err)
	}
	all, err := client.NList(ctx)
	if err != nil {
		return nil, fmt.Errorf("roles: fetch_names list %s: %w", directory, err)
	}

	var names []string
	for _, name := range all {
		if nameRecognized.MatchString(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// MaxConcurrentGets bounds how many master_get runs go at once.
const MaxConcurrentGets = 20

// RunMasterGetAll fans MasterGet out across names with bounded
// concurrency: every name is dispatched independently, and the first
// failure is returned once all runs finish; runs already started or
// queued are not cancelled by it.
func RunMasterGetAll(deps ClusterDeps, ftpQueue, jsonQueue tokenqueue.Queue, names []string, rowtag string) error {
	g := new(errgroup.Group)
	g.SetLimit(MaxConcurrentGets)

	for _, name := range names {
		name := name
		g.Go(func() error {
			return MasterGet(deps, ftpQueue, jsonQueue, name, rowtag)
		})
	}
	return g.Wait()
}

// MaxConcurrentSorts bounds how many master_sort runs go at once,
// mirrored from MaxConcurrentGets since the driver fans both phases
// out with the same bounded thread pool shape.
const MaxConcurrentSorts = 20

// RunMasterSortAll fans MasterSort out across the same dump names
// RunMasterGetAll just finished ingesting, one json-ified name per
// dump file, with the same bounded-concurrency/first-error-returned
// shape as RunMasterGetAll.
func RunMasterSortAll(deps ClusterDeps, names []string, tag string) error {
	g := new(errgroup.Group)
	g.SetLimit(MaxConcurrentSorts)

	for _, name := range names {
		jsonName := JsonNameFromDumpName(name)
		g.Go(func() error {
			return MasterSort(deps, jsonName, tag)
		})
	}
	return g.Wait()
}
