// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tenant resolves the tenant identity for one request.
//
// Single-user deployments always serve the literal tenant "default"; a
// caller supplying any other explicit tenant id is rejected rather than
// silently overridden. Multitenant deployments resolve the tenant from
// layered sources in strict precedence order and fail hard when none of
// them yields a value.
package tenant

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quiltdata/quilt-mcp/pkg/mode"
)

// DefaultTenantID is the tenant id served by single-user deployments.
const DefaultTenantID = "default"

// Resolution errors. Check with errors.Is.
var (
	// ErrMissingTenant indicates no tenant source yielded a value in
	// multitenant mode. Never defaulted.
	ErrMissingTenant = errors.New("no tenant identity could be resolved")

	// ErrExplicitTenantRejected indicates a caller supplied an explicit
	// tenant id in single-user mode. Rejected, never coerced.
	ErrExplicitTenantRejected = errors.New("explicit tenant id not allowed in single-user mode")
)

// claimPrecedence is the fixed tie-break order among JWT claim names.
// The first non-empty value wins.
var claimPrecedence = []string{"tenant_id", "tenant", "org_id", "organization_id"}

// Sources carries the per-request inputs the resolver consults.
type Sources struct {
	// Claims are the bearer token claims (structural parse is sufficient).
	Claims jwt.MapClaims

	// SessionClaims are previously-established session/runtime metadata,
	// consulted after the token claims.
	SessionClaims map[string]any

	// ExplicitTenantID is a tenant id the caller supplied directly
	// (e.g. a request header). Only meaningful as a guard: single-user
	// mode rejects any non-default value.
	ExplicitTenantID string
}

// Resolver resolves tenant identities under one mode configuration.
type Resolver struct {
	cfg *mode.Config
}

// NewResolver creates a Resolver bound to the given mode configuration.
func NewResolver(cfg *mode.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve returns the tenant id for one request.
//
// Single-user mode: always DefaultTenantID; an explicit different tenant
// id is an error. Multitenant mode: token claims, then session claims,
// then the configured development fallback; absence of all three is a
// hard failure.
func (r *Resolver) Resolve(src Sources) (string, error) {
	if r.cfg.Tenant() == mode.TenantModeSingleUser {
		if src.ExplicitTenantID != "" && src.ExplicitTenantID != DefaultTenantID {
			return "", fmt.Errorf("%w: got %q", ErrExplicitTenantRejected, src.ExplicitTenantID)
		}
		return DefaultTenantID, nil
	}

	if id := fromClaims(src.Claims); id != "" {
		return id, nil
	}
	if id := fromSessionClaims(src.SessionClaims); id != "" {
		return id, nil
	}
	if id := r.cfg.TenantFallback(); id != "" {
		return id, nil
	}

	return "", ErrMissingTenant
}

func fromClaims(claims jwt.MapClaims) string {
	if claims == nil {
		return ""
	}
	for _, name := range claimPrecedence {
		if v, ok := claims[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func fromSessionClaims(claims map[string]any) string {
	if claims == nil {
		return ""
	}
	for _, name := range claimPrecedence {
		if v, ok := claims[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
