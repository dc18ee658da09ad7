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

// Package roles assembles the per-process pipelines every TYPE the
// engine can be launched as builds: the master roles that dispatch
// ECS tasks across the dump's files, the worker roles those tasks
// run, and the Lambda handlers the distributed sort variant invokes.
package roles

import (
	"path"
	"regexp"
	"strings"
)

var digits = regexp.MustCompile(`[0-9]+`)

// SplitName turns a flat dump file name into the nested object-key
// path every role agrees on: hyphens become path separators, and a
// digit-stripped, doubly-extensionless copy of the final segment is
// inserted just before it, so "enwiki-20201120-stub-meta-current24.xml.gz"
// becomes "enwiki/20201120/stub/meta/current/current24.xml.gz" — the
// "current" segment groups every numbered shard of the same dump kind
// under one prefix.
func SplitName(name string) string {
	rows := strings.Split(strings.ReplaceAll(name, "-", "/"), "/")
	last := rows[len(rows)-1]
	stripped := digits.ReplaceAllString(last, "")
	stripped = stripExt(stripExt(stripped))

	out := make([]string, 0, len(rows)+1)
	out = append(out, rows[:len(rows)-1]...)
	out = append(out, stripped, last)
	return strings.Join(out, "/")
}

func stripExt(s string) string {
	return strings.TrimSuffix(s, path.Ext(s))
}

// RawKey is the object key master_get checks/writes once a dump file
// has been mirrored off FTP.
func RawKey(name string) string {
	return "raw/" + SplitName(name)
}

// JsonKeyFromDumpName is the object key master_get checks/writes once
// a raw dump (still carrying its original double extension, e.g.
// ".xml.gz") has been converted to NDJSON.
func JsonKeyFromDumpName(name string) string {
	return "json/" + SplitName(stripExt(stripExt(name))) + ".json"
}

// JsonKeyFromJsonName is the object key master_sort reads from: name
// already ends in ".json" by the time a sort target reaches it, so no
// extra extension stripping applies.
func JsonKeyFromJsonName(name string) string {
	return "json/" + SplitName(name)
}

// SortKey is the object key master_sort checks/writes once a JSON
// dump has been externally sorted.
func SortKey(name string) string {
	return "sort/" + SplitName(name)
}

// JsonNameFromDumpName derives the ".json"-suffixed name MasterSort
// expects (see JsonKeyFromJsonName) from the original dump file name
// master_get and FetchNames deal in, the same double-extension strip
// JsonKeyFromDumpName applies before reattaching ".json".
func JsonNameFromDumpName(name string) string {
	return stripExt(stripExt(name)) + ".json"
}
