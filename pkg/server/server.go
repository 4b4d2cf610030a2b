// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package server contains the HTTP surface of the Quilt MCP gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quiltdata/quilt-mcp/pkg/gateway"
	"github.com/quiltdata/quilt-mcp/pkg/logger"
	"github.com/quiltdata/quilt-mcp/pkg/mode"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Serve starts the gateway HTTP server on the given address. It assumes
// cfg has already passed validation; the listener is bound only after all
// construction succeeds. The caller is expected to cancel ctx for
// shutdown.
func Serve(ctx context.Context, address string, cfg *mode.Config, opts ...gateway.Option) error {
	factory := gateway.NewFactory(cfg, opts...)

	r := NewRouter(factory)

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to bind listener: %w", err)
	}

	logger.Infof("starting gateway server on %s", address)

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server stopped with error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("gateway server stopped")
	return nil
}

// NewRouter builds the gateway router: an unauthenticated health endpoint
// and the API routes wrapped in the request-context middleware.
func NewRouter(factory *gateway.Factory) chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
		headersMiddleware,
	)

	r.Get("/healthz", healthHandler(factory.Mode()))

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(RequestContextMiddleware(factory))

		api.Get("/whoami", whoamiHandler)
		api.Get("/search", searchHandler)
		api.Get("/packages/{name}", packageInfoHandler)
		api.Get("/packages/{name}/browse", packageBrowseHandler)
		api.Get("/permissions/{bucket}", permissionsHandler)
		api.Get("/workflows", workflowListHandler)
		api.Get("/workflows/{name}", workflowGetHandler)
		api.Put("/workflows/{name}", workflowPutHandler)
		api.Delete("/workflows/{name}", workflowDeleteHandler)
	})

	return r
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
