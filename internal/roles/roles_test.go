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
	"sync"
	"testing"

	"github.com/amacal/laboratory/internal/objectstore"
	"github.com/amacal/laboratory/internal/retry"
	"github.com/amacal/laboratory/internal/taskrunner"
)

func TestSplitName(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{
			name: "enwiki-20201120-stub-meta-current24.xml.gz",
			want: "enwiki/20201120/stub/meta/current/current24.xml.gz",
		},
		{
			name: "enwiki-20201120-stub-meta-current.xml.gz",
			want: "enwiki/20201120/stub/meta/current/current.xml.gz",
		},
	}
	for _, c := range cases {
		if got := SplitName(c.name); got != c.want {
			t.Errorf("SplitName(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestKeyConventions(t *testing.T) {
	name := "enwiki-20201120-stub-meta-current24.xml.gz"

	wantRaw := "raw/enwiki/20201120/stub/meta/current/current24.xml.gz"
	if got := RawKey(name); got != wantRaw {
		t.Errorf("RawKey(%q) = %q, want %q", name, got, wantRaw)
	}

	wantJSON := "json/enwiki/20201120/stub/meta/current/current24.json"
	if got := JsonKeyFromDumpName(name); got != wantJSON {
		t.Errorf("JsonKeyFromDumpName(%q) = %q, want %q", name, got, wantJSON)
	}

	jsonName := "enwiki-20201120-stub-meta-current24.json"
	wantJSONFromJSON := "json/enwiki/20201120/stub/meta/current/current24.json"
	if got := JsonKeyFromJsonName(jsonName); got != wantJSONFromJSON {
		t.Errorf("JsonKeyFromJsonName(%q) = %q, want %q", jsonName, got, wantJSONFromJSON)
	}

	wantSort := "sort/enwiki/20201120/stub/meta/current/current24.json"
	if got := SortKey(jsonName); got != wantSort {
		t.Errorf("SortKey(%q) = %q, want %q", jsonName, got, wantSort)
	}
}

func TestRunMasterSortAll(t *testing.T) {
	const bucket = "dumps"
	names := []string{
		"enwiki-20201120-stub-meta-current1.xml.gz",
		"enwiki-20201120-stub-meta-current2.xml.gz",
	}

	store := objectstore.NewMemStore()
	// current2 is already sorted; master_sort must skip it rather
	// than re-dispatch an ECS task for it.
	store.Put(bucket, SortKey(JsonNameFromDumpName(names[1])), []byte("done"))

	var mu sync.Mutex
	var dispatched []string
	runner := taskrunner.NewLocal(func(_ string, env map[string]string) (string, error) {
		mu.Lock()
		dispatched = append(dispatched, env["NAME"])
		mu.Unlock()
		return "", nil
	})

	deps := ClusterDeps{
		Store:  store,
		Runner: runner,
		Bucket: bucket,
		Retry:  retry.Adaptive{Attempts: 1},
	}

	if err := RunMasterSortAll(deps, names, "title"); err != nil {
		t.Fatalf("RunMasterSortAll: %v", err)
	}

	if len(dispatched) != 1 || dispatched[0] != JsonNameFromDumpName(names[0]) {
		t.Errorf("dispatched = %v, want exactly [%q]", dispatched, JsonNameFromDumpName(names[0]))
	}
}
