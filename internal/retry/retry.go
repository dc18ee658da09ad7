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

// Package retry backs the engine's external adapters (task runner,
// remote function) with a single adaptive retry shape: up to Attempts
// tries, separated by a jittered exponential backoff, or paced by a
// shared token-bucket limiter when the caller supplies one.
package retry

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Adaptive retries fn up to Attempts times. With a Limiter set, it
// waits on Limiter between tries and applies no jitter. A nil Limiter
// falls back to sleeping a random duration below an exponential
// backoff that starts at Base and is capped at Max, which smooths out
// synchronized retries across concurrent callers.
type Adaptive struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
	Limiter  *rate.Limiter
}

// Do runs fn, retrying while it returns a non-nil error, up to
// Attempts times. The final error is returned if every attempt fails.
func (a Adaptive) Do(ctx context.Context, fn func() error) error {
	attempts := a.Attempts
	if attempts <= 0 {
		attempts = 10
	}
	base := a.Base
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	max := a.Max
	if max <= 0 {
		max = 30 * time.Second
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if werr := a.wait(ctx, attempt, base, max); werr != nil {
			return werr
		}
	}
	return err
}

func (a Adaptive) wait(ctx context.Context, attempt int, base, max time.Duration) error {
	backoff := base << attempt
	if backoff <= 0 || backoff > max {
		backoff = max
	}
	jittered := time.Duration(rand.Int63n(int64(backoff)))

	if a.Limiter != nil {
		return a.Limiter.WaitN(ctx, 1)
	}

	timer := time.NewTimer(jittered)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
