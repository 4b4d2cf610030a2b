// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quiltdata/quilt-mcp/pkg/gateway"
	"github.com/quiltdata/quilt-mcp/pkg/mode"
	"github.com/quiltdata/quilt-mcp/pkg/workflows"
)

// healthHandler reports liveness and the derived mode dimensions. It runs
// outside the request-context middleware and never exposes secrets.
func healthHandler(cfg *mode.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"backend":      string(cfg.Backend()),
			"tenant_mode":  string(cfg.Tenant()),
			"requires_jwt": cfg.RequiresJWT(),
		})
	}
}

// requireContext fetches the attached request context. The middleware
// guarantees one is present on API routes; a miss is a programmer error.
func requireContext(w http.ResponseWriter, r *http.Request) (*gateway.RequestContext, bool) {
	rc, ok := gateway.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{Category: "internal", Error: gateway.ErrNoRequestContext.Error()})
		return nil, false
	}
	return rc, true
}

func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	rc, ok := requireContext(w, r)
	if !ok {
		return
	}

	identity, err := rc.Auth.Authenticate(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": rc.RequestID,
		"tenant_id":  rc.TenantID,
		"subject":    identity.Subject,
		"provider":   identity.Provider,
	})
}

func searchHandler(w http.ResponseWriter, r *http.Request) {
	rc, ok := requireContext(w, r)
	if !ok {
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := rc.Backend.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func packageInfoHandler(w http.ResponseWriter, r *http.Request) {
	rc, ok := requireContext(w, r)
	if !ok {
		return
	}

	info, err := rc.Backend.GetInfo(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func packageBrowseHandler(w http.ResponseWriter, r *http.Request) {
	rc, ok := requireContext(w, r)
	if !ok {
		return
	}

	entries, err := rc.Backend.Browse(r.Context(), chi.URLParam(r, "name"), r.URL.Query().Get("prefix"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func permissionsHandler(w http.ResponseWriter, r *http.Request) {
	rc, ok := requireContext(w, r)
	if !ok {
		return
	}

	level, err := rc.Permissions.Discover(r.Context(), chi.URLParam(r, "bucket"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bucket": chi.URLParam(r, "bucket"),
		"level":  string(level),
	})
}

func workflowListHandler(w http.ResponseWriter, r *http.Request) {
	rc, ok := requireContext(w, r)
	if !ok {
		return
	}

	names, err := rc.Workflows.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": names})
}

func workflowGetHandler(w http.ResponseWriter, r *http.Request) {
	rc, ok := requireContext(w, r)
	if !ok {
		return
	}

	wf, err := rc.Workflows.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func workflowPutHandler(w http.ResponseWriter, r *http.Request) {
	rc, ok := requireContext(w, r)
	if !ok {
		return
	}

	var wf workflows.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Category: "invalid_request", Error: "malformed workflow document"})
		return
	}
	wf.Name = chi.URLParam(r, "name")

	if err := rc.Workflows.Save(r.Context(), &wf); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func workflowDeleteHandler(w http.ResponseWriter, r *http.Request) {
	rc, ok := requireContext(w, r)
	if !ok {
		return
	}

	if err := rc.Workflows.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
