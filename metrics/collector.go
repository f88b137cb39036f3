// Copyright 2025 Poiesic Systems
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

// Package metrics exposes Prometheus collectors for ingestion, retrieval and
// the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/santhosh0997/Multimodal-Rag-System/core"
	"github.com/santhosh0997/Multimodal-Rag-System/ingestion"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "ragcore"

// Retrieval status label values.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Collector records pipeline and retrieval metrics on its own registry.
// It is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	// Ingestion
	documentsTotal     *prometheus.CounterVec
	documentDuration   prometheus.Histogram
	stageDuration      *prometheus.HistogramVec
	extractionFailures *prometheus.CounterVec
	chunksWritten      prometheus.Counter

	// Retrieval
	retrievalsTotal   *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	degradations      *prometheus.CounterVec
	evidenceReturned  prometheus.Histogram

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ ingestion.Observer = (*Collector)(nil)

// NewCollector creates a Collector registering on a fresh registry that also
// carries the Go runtime and process collectors.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	c := &Collector{registry: registry}

	c.documentsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Documents that finished ingestion, by final state",
		},
		[]string{"state", "reason"},
	)

	c.documentDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_ingest_duration_seconds",
			Help:      "Wall time of one document ingest",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_stage_duration_seconds",
			Help:      "Time spent reaching each ingest state",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	c.extractionFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Chunks that contributed no graph data",
		},
		[]string{"reason"},
	)

	c.chunksWritten = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_written_total",
			Help:      "Chunks written to the vector store",
		},
	)

	c.retrievalsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Retrieve calls by status",
		},
		[]string{"status"},
	)

	c.retrievalDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Wall time of one retrieve call",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.degradations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_degradations_total",
			Help:      "Retrieval paths that failed, by path and reason",
		},
		[]string{"path", "reason"},
	)

	c.evidenceReturned = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evidence_returned",
			Help:      "Evidence items per retrieval result",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// StageCompleted implements ingestion.Observer.
func (c *Collector) StageCompleted(stage core.IngestState, elapsed time.Duration) {
	c.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// DocumentFinished implements ingestion.Observer.
func (c *Collector) DocumentFinished(outcome *core.IngestOutcome, elapsed time.Duration) {
	state := string(outcome.State)
	if outcome.Skipped {
		state = "skipped"
	}
	c.documentsTotal.WithLabelValues(state, outcome.Reason).Inc()
	if outcome.Skipped {
		return
	}
	c.documentDuration.Observe(elapsed.Seconds())
	c.chunksWritten.Add(float64(outcome.Chunks))
	for _, f := range outcome.ExtractionFailures {
		c.extractionFailures.WithLabelValues(f.Reason).Inc()
	}
}

// RecordRetrieval records one retrieve call. result is nil when err is set.
func (c *Collector) RecordRetrieval(result *core.RetrievalResult, err error, elapsed time.Duration) {
	c.retrievalDuration.Observe(elapsed.Seconds())
	switch {
	case err != nil || result == nil:
		c.retrievalsTotal.WithLabelValues(StatusFailed).Inc()
		return
	case result.Partial:
		c.retrievalsTotal.WithLabelValues(StatusPartial).Inc()
	default:
		c.retrievalsTotal.WithLabelValues(StatusOK).Inc()
	}
	for _, d := range result.Degradations {
		c.degradations.WithLabelValues(d.Path, d.Reason).Inc()
	}
	c.evidenceReturned.Observe(float64(len(result.Evidence)))
}

// RecordHTTPRequest records one served request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
