// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/quiltdata/quilt-mcp/pkg/auth"
	"github.com/quiltdata/quilt-mcp/pkg/backend"
	"github.com/quiltdata/quilt-mcp/pkg/gateway"
	"github.com/quiltdata/quilt-mcp/pkg/logger"
	"github.com/quiltdata/quilt-mcp/pkg/tenant"
	"github.com/quiltdata/quilt-mcp/pkg/workflows"
)

// TenantHeader is the request header carrying an explicit tenant id.
// Single-user deployments reject any non-default value.
const TenantHeader = "X-Quilt-Tenant"

// errorResponse is the category-labeled error body returned for request
// failures, so clients can tell a missing token from a server problem.
type errorResponse struct {
	Category string `json:"category"`
	Error    string `json:"error"`
}

// RequestContextMiddleware creates a fresh request context for every
// request, attaches it to the request's context, and releases it when the
// handler returns on any path. Failures are surfaced as typed,
// category-labeled errors before any handler runs.
func RequestContextMiddleware(factory *gateway.Factory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := metaFromRequest(r)

			rc, err := factory.CreateContext(r.Context(), meta)
			if err != nil {
				writeRequestError(w, err)
				return
			}
			// Release on every exit path, including handler panics.
			defer rc.Release()

			next.ServeHTTP(w, r.WithContext(gateway.WithRequestContext(r.Context(), rc)))
		})
	}
}

func metaFromRequest(r *http.Request) gateway.RequestMeta {
	return gateway.RequestMeta{
		RequestID:        middleware.GetReqID(r.Context()),
		BearerToken:      bearerToken(r),
		ExplicitTenantID: r.Header.Get(TenantHeader),
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// writeRequestError maps context-creation failures onto status codes and
// categories. Auth and tenant failures are per-request and recoverable;
// the process keeps serving.
func writeRequestError(w http.ResponseWriter, err error) {
	var resp errorResponse
	var status int

	switch {
	case errors.Is(err, auth.ErrMissingRequiredJWT):
		status = http.StatusUnauthorized
		resp = errorResponse{Category: "auth_selection", Error: err.Error()}
	case errors.Is(err, tenant.ErrMissingTenant):
		status = http.StatusUnauthorized
		resp = errorResponse{Category: "tenant_resolution", Error: err.Error()}
	case errors.Is(err, tenant.ErrExplicitTenantRejected):
		status = http.StatusBadRequest
		resp = errorResponse{Category: "tenant_resolution", Error: err.Error()}
	default:
		status = http.StatusInternalServerError
		resp = errorResponse{Category: "internal", Error: err.Error()}
		logger.Errorw("request context creation failed", "error", err)
	}

	writeJSON(w, status, resp)
}

// writeServiceError maps handler-level failures from context-scoped
// services onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backend.ErrNotImplemented):
		writeJSON(w, http.StatusNotImplemented,
			errorResponse{Category: "backend_unavailable", Error: err.Error()})
	case errors.Is(err, backend.ErrPackageNotFound),
		errors.Is(err, workflows.ErrWorkflowNotFound):
		writeJSON(w, http.StatusNotFound,
			errorResponse{Category: "not_found", Error: err.Error()})
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrInvalidIssuer),
		errors.Is(err, auth.ErrInvalidAudience),
		errors.Is(err, auth.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized,
			errorResponse{Category: "authentication", Error: err.Error()})
	default:
		logger.Errorw("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{Category: "internal", Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorw("failed to encode response", "error", err)
	}
}
