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

// Package sortcore implements the distributed external sort: an
// in-memory stable quicksort with equidistant data markers, and a
// heap-based k-way external merge that fans shards across equi-count
// key-domain partitions.
package sortcore

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// compareKeys orders two sort keys. Keys are whatever Extract
// produced in ndjson.Index — typically a string or a json.Number-ish
// float64 — so comparison falls back to string form when the
// dynamic types disagree or are of a kind comparison doesn't define.
func compareKeys(a, b any) int {
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// Marker is a single offset-to-key sample: the byte offset at which
// Key first becomes the current record's sort key.
type Marker struct {
	Offset int64
	Key    string
}

// MarkerCollection is an ordered set of Markers, encodable as the
// canonical "off=key&off=key&..." query-string form stored in a
// sorted shard's object key.
type MarkerCollection []Marker

// Encode renders the collection as "off=key&off=key&...".
func (c MarkerCollection) Encode() string {
	values := url.Values{}
	var order []string
	for _, m := range c {
		k := strconv.FormatInt(m.Offset, 10)
		values.Set(k, m.Key)
		order = append(order, k)
	}
	var b strings.Builder
	for i, k := range order {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values.Get(k)))
	}
	return b.String()
}

// ParseMarkerCollection parses the "off=key&off=key&..." form back
// into an offset-ordered MarkerCollection.
func ParseMarkerCollection(raw string) (MarkerCollection, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("sortcore: parse markers %q: %w", raw, err)
	}
	out := make(MarkerCollection, 0, len(values))
	for k, vs := range values {
		offset, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sortcore: parse marker offset %q: %w", k, err)
		}
		if len(vs) == 0 {
			continue
		}
		out = append(out, Marker{Offset: offset, Key: vs[0]})
	}
	sortMarkers(out)
	return out, nil
}

func sortMarkers(m MarkerCollection) {
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && m[j].Offset < m[j-1].Offset; j-- {
			m[j], m[j-1] = m[j-1], m[j]
		}
	}
}
