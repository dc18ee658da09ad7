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

package tokenqueue

import (
	"context"
	"fmt"
	"time"
)

// ListMover abstracts the minimal Redis surface a distributed Queue
// needs: a blocking right-pop-left-push for Acquire and a left-push
// for Release. Implementations may wrap
// github.com/redis/go-redis/v9's Cmdable.
type ListMover interface {
	BRPopLPush(ctx context.Context, source, destination string, timeout time.Duration) (string, error)
	LPush(ctx context.Context, key string, values ...interface{}) error
	LRem(ctx context.Context, key string, count int64, value interface{}) error
}

// Redis is a Queue shared across process boundaries: the master
// process and its ECS-launched workers resolve the same named list.
// Acquire moves a handle from the available list to an in-flight
// list (so a crashed holder's handle is visible for recovery
// tooling); Release removes it from in-flight and pushes it back to
// available.
type Redis struct {
	client    ListMover
	available string
	inflight  string
}

// NewRedis returns a Queue backed by the Redis lists named
// "tokenqueue:<name>:available" and "tokenqueue:<name>:inflight".
func NewRedis(client ListMover, name string) *Redis {
	return &Redis{
		client:    client,
		available: fmt.Sprintf("tokenqueue:%s:available", name),
		inflight:  fmt.Sprintf("tokenqueue:%s:inflight", name),
	}
}

// Acquire blocks (bounded by timeout) until a resource handle moves
// from the available list to the in-flight list.
func (r *Redis) Acquire(ctx context.Context, timeout time.Duration) (string, error) {
	resource, err := r.client.BRPopLPush(ctx, r.available, r.inflight, timeout)
	if err != nil {
		return "", fmt.Errorf("tokenqueue: redis acquire %s: %w", r.available, err)
	}
	if resource == "" {
		return "", ErrTimeout
	}
	return resource, nil
}

// Release moves resource back from the in-flight list to available.
func (r *Redis) Release(ctx context.Context, resource string) error {
	if err := r.client.LRem(ctx, r.inflight, 1, resource); err != nil {
		return fmt.Errorf("tokenqueue: redis release lrem %s: %w", r.inflight, err)
	}
	if err := r.client.LPush(ctx, r.available, resource); err != nil {
		return fmt.Errorf("tokenqueue: redis release lpush %s: %w", r.available, err)
	}
	return nil
}

// Seed pushes the initial set of resource handles into the available
// list. The master process calls it once at campaign start; duplicated
// handles from a crashed prior run only widen the throttle, and the
// keyed idempotency gates keep duplicated dispatch harmless.
func Seed(ctx context.Context, client ListMover, name string, resources []string) error {
	key := fmt.Sprintf("tokenqueue:%s:available", name)
	values := make([]interface{}, len(resources))
	for i, r := range resources {
		values[i] = r
	}
	if err := client.LPush(ctx, key, values...); err != nil {
		return fmt.Errorf("tokenqueue: redis seed %s: %w", key, err)
	}
	return nil
}
