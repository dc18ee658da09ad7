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
	"sync"
	"sync/atomic"
)

// Local is an in-process Runner fake: Run invokes Exec synchronously
// and records its output as the task's single log line, so tests and
// local development runs don't need a real ECS cluster.
type Local struct {
	Exec func(task string, env map[string]string) (string, error)

	mu     sync.Mutex
	tasks  map[string]*localTask
	nextID int64
}

type localTask struct {
	output string
	err    error
	sent   bool
}

// NewLocal returns a Local runner backed by exec.
func NewLocal(exec func(task string, env map[string]string) (string, error)) *Local {
	return &Local{Exec: exec, tasks: make(map[string]*localTask)}
}

func (l *Local) Run(_ context.Context, _, task string, env map[string]string) (string, LogOptions, error) {
	output, err := l.Exec(task, env)
	id := atomic.AddInt64(&l.nextID, 1)
	arn := fmt.Sprintf("local-task-%d", id)

	l.mu.Lock()
	l.tasks[arn] = &localTask{output: output, err: err}
	l.mu.Unlock()

	return arn, LogOptions{Group: "local", Stream: arn}, nil
}

func (l *Local) Describe(_ context.Context, _, taskArn string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tasks[taskArn]
	if !ok {
		return true, fmt.Errorf("taskrunner: unknown task %q", taskArn)
	}
	return true, t.err
}

func (l *Local) StreamLogs(_ context.Context, opts LogOptions, nextToken string) ([]string, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tasks[opts.Stream]
	if !ok || t.sent || nextToken == "done" {
		return nil, "done", nil
	}
	t.sent = true
	return []string{t.output}, "done", nil
}
