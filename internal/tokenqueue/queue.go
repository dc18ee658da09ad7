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

// Package tokenqueue backs the engine's throttling stages (AcquireToken
// and ReleaseToken) with a bounded pool of opaque resource handles —
// an FTP connection slot, a worker concurrency permit, whatever the
// caller is rationing.
package tokenqueue

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Acquire when no resource became available
// before the given timeout elapsed.
var ErrTimeout = errors.New("tokenqueue: acquire timed out")

// Queue is a bounded pool of opaque resource handles. Release must be
// called exactly once for every successful Acquire.
type Queue interface {
	Acquire(ctx context.Context, timeout time.Duration) (string, error)
	Release(ctx context.Context, resource string) error
}

// Local is an in-process Queue backed by a buffered channel, used for
// single-binary runs and tests. It is the default backing when no
// distributed queue is configured.
type Local struct {
	slots chan string
}

// NewLocal returns a Queue pre-populated with resources.
func NewLocal(resources []string) *Local {
	l := &Local{slots: make(chan string, len(resources))}
	for _, r := range resources {
		l.slots <- r
	}
	return l
}

// Acquire blocks until a resource is available, ctx is done, or
// timeout elapses, whichever happens first.
func (l *Local) Acquire(ctx context.Context, timeout time.Duration) (string, error) {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case r := <-l.slots:
		return r, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timeoutCh:
		return "", ErrTimeout
	}
}

// Release returns resource to the pool.
func (l *Local) Release(ctx context.Context, resource string) error {
	select {
	case l.slots <- resource:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
