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

package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Process-wide Prometheus counters. Labelless by design (pipeline
// names are operator-chosen and unbounded, so they are logged, not
// used as a label) to avoid unbounded cardinality.
var (
	bytesReadTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laboratory_bytes_read_total",
		Help: "Total bytes read out of any Pipe across all pipelines.",
	})
	itemsEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laboratory_items_emitted_total",
		Help: "Total items emitted by any stage across all pipelines.",
	})
	stageDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "laboratory_stage_duration_seconds",
		Help:    "Wall-clock duration of a single stage Flush call.",
		Buckets: prometheus.DefBuckets,
	})
	pipelinesCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laboratory_pipelines_completed_total",
		Help: "Total pipelines that reached Pipeline.Start completion.",
	})
	pipelinesFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laboratory_pipelines_failed_total",
		Help: "Total pipelines that returned an error from Pipeline.Start.",
	})
)

func init() {
	prometheus.MustRegister(bytesReadTotal, itemsEmittedTotal, stageDuration, pipelinesCompletedTotal, pipelinesFailedTotal)
}

// ObserveBytesRead increments the process-wide bytes-read counter.
func ObserveBytesRead(n int) {
	if n > 0 {
		bytesReadTotal.Add(float64(n))
	}
}

// ObserveItemsEmitted increments the process-wide items-emitted counter.
func ObserveItemsEmitted(n int) {
	if n > 0 {
		itemsEmittedTotal.Add(float64(n))
	}
}

// ObserveStageDuration records how long a single stage invocation took.
func ObserveStageDuration(d time.Duration) {
	stageDuration.Observe(d.Seconds())
}

// ObservePipelineCompletion records a terminal pipeline outcome.
func ObservePipelineCompletion(err error) {
	if err != nil {
		pipelinesFailedTotal.Inc()
		return
	}
	pipelinesCompletedTotal.Inc()
}

// ServeMetrics starts a best-effort /metrics endpoint on addr. A blank
// addr disables it; callers typically run this in a goroutine.
func ServeMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
