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

package remotefn

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/amacal/laboratory/pkg/pipeline"
)

var errBoom = errors.New("remotefn test: boom")

func TestLambdaForwardsDecodedResult(t *testing.T) {
	fn := NewLocal(map[string]func(ctx context.Context, payload []byte) ([]byte, error){
		"quick-sort": func(_ context.Context, payload []byte) ([]byte, error) {
			var in map[string]any
			_ = json.Unmarshal(payload, &in)
			return json.Marshal(map[string]any{"shard": in["shard"], "sorted": true})
		},
	})

	p := pipeline.New("lambda", &Lambda{
		Function:   fn,
		Name:       "quick-sort",
		Parameters: func(item pipeline.Item) any { return item },
	})

	input := []pipeline.Item{{"shard": "part-0001"}}
	out, err := p.StartItems(input)
	if err != nil {
		t.Fatalf("StartItems error: %v", err)
	}
	if len(out) != 1 || out[0]["shard"] != "part-0001" || out[0]["sorted"] != true {
		t.Fatalf("out = %+v", out)
	}
}

func TestLambdaErrorMessageAbortsPipeline(t *testing.T) {
	fn := NewLocal(map[string]func(ctx context.Context, payload []byte) ([]byte, error){
		"kway-merge": func(_ context.Context, _ []byte) ([]byte, error) {
			return nil, errBoom
		},
	})

	p := pipeline.New("lambda-error", &Lambda{
		Function:   fn,
		Name:       "kway-merge",
		Parameters: func(item pipeline.Item) any { return item },
	})

	_, err := p.StartItems([]pipeline.Item{{"shard": "part-0002"}})
	if err == nil {
		t.Fatalf("expected error from errorMessage-bearing response")
	}
}
