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

package pipeline

import (
	"fmt"
	"time"

	"github.com/amacal/laboratory/internal/telemetry"
)

// ElemKind tags which concrete Pipe a Stage's input or output side
// binds to.
type ElemKind int

const (
	KindBinary ElemKind = iota
	KindItem
)

func (k ElemKind) String() string {
	if k == KindItem {
		return "item"
	}
	return "binary"
}

// Stage is the shared contract every pipeline component implements.
// Bind is called once, in Funnel order, with the pipe it should read
// from (prev) and the pipe it should write to (next); both are typed
// *BytePipe or *ItemPipe according to InputKind/OutputKind. Flush is
// called once all upstream stages have flushed, and must drain
// whatever the stage is still holding.
type Stage interface {
	InputKind() ElemKind
	OutputKind() ElemKind
	Bind(prev, next any, metrics *telemetry.Metrics, metadata *telemetry.Metadata) error
	Flush() error
}

// newPipeForKind allocates the concrete pipe a stage's declared kind
// requires.
func newPipeForKind(k ElemKind) any {
	if k == KindItem {
		return NewItemPipe()
	}
	return NewBytePipe()
}

// Funnel binds an ordered list of Stages end to end, splicing a fresh
// pipe between each pair whose element kind matches the producing
// stage's declared output.
type Funnel struct {
	stages []Stage
	first  any
	last   any
}

// NewFunnel returns an unbound Funnel over stages, in order.
func NewFunnel(stages ...Stage) *Funnel {
	return &Funnel{stages: stages}
}

// Stages exposes the underlying stage list, read-only by convention.
func (f *Funnel) Stages() []Stage { return f.stages }

// Bind allocates the funnel's own head pipe (matching the first
// stage's InputKind) and every intermediate pipe, then binds each
// stage in order.
func (f *Funnel) Bind(metrics *telemetry.Metrics, metadata *telemetry.Metadata) error {
	if len(f.stages) == 0 {
		return fmt.Errorf("funnel: no stages to bind")
	}
	prevKind := f.stages[0].InputKind()
	prev := newPipeForKind(prevKind)
	first := prev
	for i, stage := range f.stages {
		if stage.InputKind() != prevKind {
			return fmt.Errorf("funnel: stage %d (%T) expects %s input, upstream produces %s",
				i, stage, stage.InputKind(), prevKind)
		}
		next := newPipeForKind(stage.OutputKind())
		if err := stage.Bind(prev, next, metrics, metadata); err != nil {
			return fmt.Errorf("funnel: bind stage %d (%T): %w", i, stage, err)
		}
		prev = next
		prevKind = stage.OutputKind()
	}
	f.first = first
	f.last = prev
	return nil
}

// FirstKind returns the element kind the funnel's head pipe accepts.
func (f *Funnel) FirstKind() ElemKind { return f.stages[0].InputKind() }

// LastKind returns the element kind the funnel's tail pipe produces.
func (f *Funnel) LastKind() ElemKind { return f.stages[len(f.stages)-1].OutputKind() }

// AppendBytes feeds chunk into the funnel's head pipe. Panics if the
// funnel's head is not a binary pipe.
func (f *Funnel) AppendBytes(chunk []byte) { f.first.(*BytePipe).Append(chunk) }

// AppendItems feeds items into the funnel's head pipe. Panics if the
// funnel's head is not an item pipe.
func (f *Funnel) AppendItems(items []Item) { f.first.(*ItemPipe).Append(items) }

// ReadBytes drains up to size bytes (all available when size < 0)
// from the funnel's tail pipe.
func (f *Funnel) ReadBytes(size int) []byte { return f.last.(*BytePipe).Read(size) }

// ReadItems drains up to size items (all available when size < 0)
// from the funnel's tail pipe.
func (f *Funnel) ReadItems(size int) []Item { return f.last.(*ItemPipe).Read(size) }

// Length reports the funnel tail pipe's unread length.
func (f *Funnel) Length() int {
	switch p := f.last.(type) {
	case *BytePipe:
		return p.Length()
	case *ItemPipe:
		return p.Length()
	default:
		return 0
	}
}

// Subscribe registers cb on the funnel's tail pipe.
func (f *Funnel) Subscribe(cb func()) {
	switch p := f.last.(type) {
	case *BytePipe:
		p.Subscribe(cb)
	case *ItemPipe:
		p.Subscribe(cb)
	}
}

// Flush calls Flush on every stage, upstream first, so terminal
// stages observe everything their upstream ever buffered.
func (f *Funnel) Flush() error {
	for i, stage := range f.stages {
		started := time.Now()
		err := stage.Flush()
		telemetry.ObserveStageDuration(time.Since(started))
		if err != nil {
			return fmt.Errorf("funnel: flush stage %d (%T): %w", i, stage, err)
		}
	}
	return nil
}
