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

// Package api exposes ingestion and retrieval over HTTP.
//
// Routes:
//
//	POST /v1/documents        ingest one document
//	POST /v1/documents/batch  ingest several documents concurrently
//	GET  /v1/documents/{id}   last ingest outcome of a document
//	POST /v1/retrieve         hybrid retrieval
//	GET  /v1/stats            store counts
//	GET  /healthz             liveness
//	GET  /metrics             Prometheus metrics, when a collector is set
//
// Successful responses are wrapped as {"data": ...}; errors carry
// {"error": ..., "reason": ...} where reason is a machine-readable code.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/santhosh0997/Multimodal-Rag-System/retrieval"
)

const maxBodyLimit int64 = 16 * 1024 * 1024

// RouterConfig collects the router's collaborators.
type RouterConfig struct {
	Engine Engine
	Budget retrieval.Budget

	// Metrics serves /metrics and records request metrics when set.
	Metrics interface {
		HTTPRecorder
		Handler() http.Handler
	}

	Logger *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	var recorder HTTPRecorder
	if cfg.Metrics != nil {
		recorder = cfg.Metrics
	}

	h := NewHandler(cfg.Engine, cfg.Budget)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger, recorder))
	r.Use(maxBodyBytes(maxBodyLimit))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", h.Ingest)
			r.Post("/batch", h.IngestBatch)
			r.Get("/{id}", h.Outcome)
		})
		r.Post("/retrieve", h.Retrieve)
		r.Get("/stats", h.Stats)
	})

	return r
}

func middlewareRequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// Serve runs an HTTP server on addr until ctx is done, then shuts it down
// gracefully within shutdownTimeout.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
