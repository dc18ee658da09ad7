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

// Package taskrunner backs the EcsTask stage: launching a container
// task with an environment, then blocking until it stops while its
// log stream is forwarded through Metrics.Raw.
package taskrunner

import "context"

// LogOptions names the log group/stream a running task's container
// writes to, as returned alongside the task's ARN at launch.
type LogOptions struct {
	Group  string
	Stream string
}

// Runner is the narrow seam EcsTask depends on: launch a task
// definition with an environment, then poll it until it stops. Real
// adapters wrap an ECS + CloudWatch Logs client pair; Local below is
// the in-process fake used for tests and single-binary runs.
type Runner interface {
	// Run launches task in cluster with env, returning its ARN and
	// the log options its container writes to.
	Run(ctx context.Context, cluster, task string, env map[string]string) (taskArn string, logs LogOptions, err error)

	// Describe reports whether taskArn has stopped.
	Describe(ctx context.Context, cluster, taskArn string) (stopped bool, err error)

	// StreamLogs returns any new log lines since nextToken, along
	// with the token to pass on the next call.
	StreamLogs(ctx context.Context, opts LogOptions, nextToken string) (lines []string, newToken string, err error)
}
