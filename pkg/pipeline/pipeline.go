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

	"github.com/amacal/laboratory/internal/telemetry"
)

// Pipeline is the top-level Funnel plus the metrics/metadata bag every
// stage in it shares, and the three-step lifecycle (bind, feed,
// flush) that drives a single run to completion.
type Pipeline struct {
	Name     string
	Metrics  *telemetry.Metrics
	Metadata *telemetry.Metadata

	funnel *Funnel
}

// New returns an unbound Pipeline over stages, in order.
func New(name string, stages ...Stage) *Pipeline {
	return &Pipeline{
		Name:     name,
		Metrics:  telemetry.New(name),
		Metadata: telemetry.NewMetadata(),
		funnel:   NewFunnel(stages...),
	}
}

// StartBytes binds the pipeline, feeds input once through the head
// pipe, flushes every stage in order, and returns whatever remains in
// the tail pipe. A panic inside any stage is recovered and returned
// as an error instead of crashing the caller.
func (p *Pipeline) StartBytes(input []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline %q: panic: %v", p.Name, r)
		}
		telemetry.ObservePipelineCompletion(err)
	}()
	if err = p.funnel.Bind(p.Metrics, p.Metadata); err != nil {
		return nil, err
	}
	p.funnel.AppendBytes(input)
	if err = p.funnel.Flush(); err != nil {
		return nil, err
	}
	out = p.funnel.ReadBytes(-1)
	p.logCompletion()
	return out, nil
}

// StartItems is StartBytes's item-stream counterpart.
func (p *Pipeline) StartItems(input []Item) (out []Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline %q: panic: %v", p.Name, r)
		}
		telemetry.ObservePipelineCompletion(err)
	}()
	if err = p.funnel.Bind(p.Metrics, p.Metadata); err != nil {
		return nil, err
	}
	p.funnel.AppendItems(input)
	if err = p.funnel.Flush(); err != nil {
		return nil, err
	}
	out = p.funnel.ReadItems(-1)
	p.logCompletion()
	return out, nil
}

func (p *Pipeline) logCompletion() {
	p.Metrics.Log("completed metadata=%v", p.Metadata.Snapshot())
}

// Funnel exposes the pipeline's funnel, so a caller can drive the
// bind, append, flush and read steps itself (as tests do for
// pipelines whose head and tail element kinds differ).
func (p *Pipeline) Funnel() *Funnel { return p.funnel }
