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
	"time"

	"github.com/redis/go-redis/v9"
)

// GoRedisClient adapts *redis.Client (or *redis.ClusterClient) to the
// ListMover interface so production code can wire a real Redis
// deployment without the rest of the package knowing about
// go-redis/v9's broader API surface.
type GoRedisClient struct {
	Cmd redis.Cmdable
}

// NewGoRedisClient wraps an existing go-redis client.
func NewGoRedisClient(cmd redis.Cmdable) *GoRedisClient {
	return &GoRedisClient{Cmd: cmd}
}

func (g *GoRedisClient) BRPopLPush(ctx context.Context, source, destination string, timeout time.Duration) (string, error) {
	v, err := g.Cmd.BRPopLPush(ctx, source, destination, timeout).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (g *GoRedisClient) LPush(ctx context.Context, key string, values ...interface{}) error {
	return g.Cmd.LPush(ctx, key, values...).Err()
}

func (g *GoRedisClient) LRem(ctx context.Context, key string, count int64, value interface{}) error {
	return g.Cmd.LRem(ctx, key, count, value).Err()
}
