// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltdata/quilt-mcp/pkg/gateway"
	"github.com/quiltdata/quilt-mcp/pkg/mode"
)

const testSecret = "server-test-secret"

func signToken(t *testing.T, extra jwt.MapClaims) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": "user-1",
		"iss": "https://issuer.example.com",
		"aud": "quilt-mcp",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newSingleUserRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := mode.New(mode.Settings{
		Multitenant:         false,
		WorkflowStorageRoot: t.TempDir(),
		LocalRegistryRoot:   t.TempDir(),
	})
	return NewRouter(gateway.NewFactory(cfg))
}

func newMultitenantRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := mode.New(mode.Settings{
		Multitenant:         true,
		JWTSigningSecret:    testSecret,
		JWTIssuer:           "https://issuer.example.com",
		JWTAudience:         "quilt-mcp",
		CatalogURL:          "https://catalog.example.com",
		WorkflowStorageRoot: t.TempDir(),
	})
	return NewRouter(gateway.NewFactory(cfg))
}

func doRequest(t *testing.T, h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newMultitenantRouter(t), http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "platform", body["backend"])
	assert.Equal(t, "multitenant", body["tenant_mode"])
	assert.Equal(t, true, body["requires_jwt"])
	// Health output must never leak configuration secrets.
	assert.NotContains(t, rec.Body.String(), testSecret)
}

func TestMultitenantRejectsMissingToken(t *testing.T) {
	t.Parallel()

	router := newMultitenantRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/search", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "auth_selection", resp.Category)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/search", "not-a-jwt", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth_selection", decodeError(t, rec).Category)
}

func TestMultitenantRejectsMissingTenant(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newMultitenantRouter(t), http.MethodGet, "/api/v1/search", signToken(t, nil), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "tenant_resolution", decodeError(t, rec).Category)
}

func TestSingleUserRejectsExplicitTenant(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	req.Header.Set(TenantHeader, "acme")
	rec := httptest.NewRecorder()
	newSingleUserRouter(t).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "tenant_resolution", decodeError(t, rec).Category)
}

func TestMultitenantBackendUnavailable(t *testing.T) {
	t.Parallel()

	token := signToken(t, jwt.MapClaims{"tenant_id": "acme"})
	rec := doRequest(t, newMultitenantRouter(t), http.MethodGet, "/api/v1/search?q=x", token, "")

	require.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "backend_unavailable", decodeError(t, rec).Category)
}

func TestMultitenantWhoami(t *testing.T) {
	t.Parallel()

	token := signToken(t, jwt.MapClaims{"tenant_id": "acme"})
	rec := doRequest(t, newMultitenantRouter(t), http.MethodGet, "/api/v1/whoami", token, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "acme", body["tenant_id"])
	assert.Equal(t, "user-1", body["subject"])
	assert.Equal(t, "jwt", body["provider"])
	assert.NotEmpty(t, body["request_id"])
}

func TestMultitenantRejectsBadSignature(t *testing.T) {
	t.Parallel()

	claims := jwt.MapClaims{
		"sub":       "user-1",
		"iss":       "https://issuer.example.com",
		"aud":       "quilt-mcp",
		"exp":       time.Now().Add(time.Hour).Unix(),
		"tenant_id": "acme",
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	// Context creation succeeds (structural parse), but the lazy
	// verification on first use rejects the signature.
	rec := doRequest(t, newMultitenantRouter(t), http.MethodGet, "/api/v1/whoami", forged, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication", decodeError(t, rec).Category)
}

func TestSingleUserPackageNotFound(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newSingleUserRouter(t), http.MethodGet, "/api/v1/packages/missing", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Category)
}

func TestSingleUserSearchEmptyRegistry(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newSingleUserRouter(t), http.MethodGet, "/api/v1/search", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWorkflowLifecycle(t *testing.T) {
	t.Parallel()

	router := newSingleUserRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/workflows/nightly", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Category)

	body := `{"description":"nightly ingest","steps":[{"id":"fetch","tool":"bucket_objects_list"}]}`
	rec = doRequest(t, router, http.MethodPut, "/api/v1/workflows/nightly", "", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/workflows/nightly", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var wf map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wf))
	assert.Equal(t, "nightly", wf["name"])
	assert.Equal(t, "nightly ingest", wf["description"])

	rec = doRequest(t, router, http.MethodGet, "/api/v1/workflows", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nightly")

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/workflows/nightly", "", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/workflows/nightly", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkflowPutMalformedBody(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, newSingleUserRouter(t), http.MethodPut, "/api/v1/workflows/bad", "", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Category)
}

func TestWorkflowTenantIsolationOverHTTP(t *testing.T) {
	t.Parallel()

	router := newMultitenantRouter(t)
	acme := signToken(t, jwt.MapClaims{"tenant_id": "acme"})
	beta := signToken(t, jwt.MapClaims{"tenant_id": "beta"})

	rec := doRequest(t, router, http.MethodPut, "/api/v1/workflows/private", acme, `{"description":"acme only"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// The other tenant cannot see it.
	rec = doRequest(t, router, http.MethodGet, "/api/v1/workflows/private", beta, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/workflows/private", acme, "")
	require.Equal(t, http.StatusOK, rec.Code)
}
