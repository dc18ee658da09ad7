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
	"fmt"

	"github.com/amacal/laboratory/internal/retry"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// Lambda invokes Name with a JSON-encoded Parameters(item) payload for
// every incoming item. A payload carrying "errorMessage" aborts the
// pipeline (the remote function's own exception, round-tripped back);
// a 200 status forwards the decoded payload downstream; any other
// status is logged and dropped.
type Lambda struct {
	Function   Function
	Name       string
	Parameters func(item pipeline.Item) any
	Retry      retry.Adaptive

	prev, next *pipeline.ItemPipe
	metrics    *telemetry.Metrics
	err        error
}

func (s *Lambda) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *Lambda) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *Lambda) Bind(prev, next any, metrics *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metrics = metrics
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *Lambda) changed() {
	if s.err != nil {
		return
	}
	for _, item := range s.prev.Read(-1) {
		if err := s.invoke(item); err != nil {
			s.err = err
			return
		}
	}
}

func (s *Lambda) invoke(item pipeline.Item) error {
	ctx := context.Background()
	payload, err := json.Marshal(s.Parameters(item))
	if err != nil {
		return fmt.Errorf("remotefn: encode payload for %s: %w", s.Name, err)
	}

	s.metrics.Log("calling lambda function %s ...", s.Name)
	var resp Response
	err = s.Retry.Do(ctx, func() error {
		var rerr error
		resp, rerr = s.Function.Invoke(ctx, s.Name, payload)
		return rerr
	})
	if err != nil {
		return fmt.Errorf("remotefn: invoke %s: %w", s.Name, err)
	}
	s.metrics.Log("calling lambda function %s completed %d", s.Name, resp.Status)

	var decoded map[string]any
	if len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, &decoded); err != nil {
			return fmt.Errorf("remotefn: decode response from %s: %w", s.Name, err)
		}
	}

	if msg, ok := decoded["errorMessage"]; ok {
		return fmt.Errorf("remotefn: %s reported an error: %v", s.Name, msg)
	}

	if resp.Status == 200 {
		s.next.Append([]pipeline.Item{pipeline.Item(decoded)})
		return nil
	}

	s.metrics.Log("lambda function %s returned status %d, dropping: %v", s.Name, resp.Status, decoded)
	return nil
}

func (s *Lambda) Flush() error {
	s.changed()
	return s.err
}
