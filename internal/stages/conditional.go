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

package stages

import (
	"github.com/amacal/laboratory/internal/telemetry"
	"github.com/amacal/laboratory/pkg/pipeline"
)

// Predicate decides whether an item should be routed into a
// Conditional's sub-funnel.
type Predicate func(pipeline.Item) bool

// Conditional routes each item to Sub when Predicate(item) XOR
// Inverse, otherwise passes it straight to downstream untouched. It
// is the gate behind every idempotency short-circuit in the master
// role: Predicate is typically an object-store existence check, and
// Inverse is set so the expensive Sub branch (the actual dispatch)
// runs only when the check comes back false.
type Conditional struct {
	Predicate Predicate
	Inverse   bool
	Sub       *pipeline.Funnel

	prev *pipeline.ItemPipe
	next *pipeline.ItemPipe
}

func (c *Conditional) InputKind() pipeline.ElemKind  { return pipeline.KindItem }
func (c *Conditional) OutputKind() pipeline.ElemKind { return pipeline.KindItem }

func (c *Conditional) Bind(prev, next any, metrics *telemetry.Metrics, metadata *telemetry.Metadata) error {
	c.prev = prev.(*pipeline.ItemPipe)
	c.next = next.(*pipeline.ItemPipe)
	if err := c.Sub.Bind(metrics, metadata); err != nil {
		return err
	}
	c.Sub.Subscribe(func() {
		c.next.Append(c.Sub.ReadItems(-1))
	})
	c.prev.Subscribe(c.changed)
	return nil
}

func (c *Conditional) changed() {
	items := c.prev.Read(-1)
	if len(items) == 0 {
		return
	}
	for _, item := range items {
		route := c.Predicate(item)
		if c.Inverse {
			route = !route
		}
		if route {
			c.Sub.AppendItems([]pipeline.Item{item})
		} else {
			c.next.Append([]pipeline.Item{item})
		}
	}
}

func (c *Conditional) Flush() error {
	c.changed()
	return c.Sub.Flush()
}
