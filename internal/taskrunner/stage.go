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

package taskrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amacal/laboratory/internal/retry"
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// EcsTask launches Task in Cluster for every incoming item, polling
// once a second until it stops and forwarding its log stream through
// Metrics.Raw, then emits the item unchanged so a throttling pair
// (AcquireToken/ReleaseToken) wrapping it can release its resource.
type EcsTask struct {
	Runner      Runner
	Cluster     string
	Task        string
	Environment func(item pipeline.Item) map[string]string
	PollEvery   time.Duration
	Retry       retry.Adaptive

	prev, next *pipeline.ItemPipe
	metrics    *telemetry.Metrics
	err        error
}

func (s *EcsTask) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (s *EcsTask) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (s *EcsTask) Bind(prev, next any, metrics *telemetry.Metrics, _ *telemetry.Metadata) error {
	s.prev = prev.(*pipeline.ItemPipe)
	s.next = next.(*pipeline.ItemPipe)
	s.metrics = metrics
	if s.PollEvery <= 0 {
		s.PollEvery = time.Second
	}
	s.prev.Subscribe(s.changed)
	return nil
}

func (s *EcsTask) changed() {
	if s.err != nil {
		return
	}
	for _, item := range s.prev.Read(-1) {
		s.metrics.Log("dispatching %s/%s correlation=%s", s.Cluster, s.Task, uuid.NewString())
		taskArn, logs, err := s.start(item)
		if err != nil {
			s.err = err
			return
		}
		if err := s.wait(taskArn, logs); err != nil {
			s.err = err
			return
		}
		s.next.Append([]pipeline.Item{item})
	}
}

func (s *EcsTask) start(item pipeline.Item) (string, LogOptions, error) {
	ctx := context.Background()
	var taskArn string
	var logs LogOptions
	env := s.Environment(item)

	err := s.Retry.Do(ctx, func() error {
		var rerr error
		taskArn, logs, rerr = s.Runner.Run(ctx, s.Cluster, s.Task, env)
		return rerr
	})
	if err != nil {
		return "", LogOptions{}, fmt.Errorf("taskrunner: run %s/%s: %w", s.Cluster, s.Task, err)
	}
	return taskArn, logs, nil
}

func (s *EcsTask) wait(taskArn string, logs LogOptions) error {
	ctx := context.Background()
	s.metrics.Log("waiting %s", taskArn)

	ticker := time.NewTicker(s.PollEvery)
	defer ticker.Stop()

	nextToken := ""
	for {
		var stopped bool
		err := s.Retry.Do(ctx, func() error {
			var rerr error
			stopped, rerr = s.Runner.Describe(ctx, s.Cluster, taskArn)
			return rerr
		})
		if err != nil {
			return fmt.Errorf("taskrunner: describe %s: %w", taskArn, err)
		}

		lines, token, err := s.Runner.StreamLogs(ctx, logs, nextToken)
		if err == nil {
			nextToken = token
			for _, line := range lines {
				s.metrics.Raw(line)
			}
		}

		if stopped {
			return nil
		}
		<-ticker.C
	}
}

func (s *EcsTask) Flush() error {
	s.changed()
	return s.err
}
