// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"sync/atomic"

	"github.com/quiltdata/quilt-mcp/pkg/auth"
	"github.com/quiltdata/quilt-mcp/pkg/backend"
	"github.com/quiltdata/quilt-mcp/pkg/permissions"
	"github.com/quiltdata/quilt-mcp/pkg/workflows"
)

// RequestContext is the per-request bundle of identity and services.
//
// Every RequestContext exclusively owns its auth, permission and workflow
// service instances; two concurrently active contexts never share a
// mutable service, even for the same tenant and user. The backend handle
// is the one exception: it is selected once per process and is safe for
// concurrent use.
//
// A context lives for exactly one request: created by the Factory at
// request entry, attached to the execution scope, and released when the
// request completes on any path.
type RequestContext struct {
	// RequestID is the opaque identifier for this request.
	RequestID string

	// TenantID is the resolved tenant for this request.
	TenantID string

	// UserID is the authenticated principal's subject, when known before
	// lazy credential verification (JWT deployments populate it from the
	// token's sub claim).
	UserID string

	// Auth is this request's auth service instance.
	Auth auth.Service

	// Backend is the process-wide backend handle.
	Backend backend.Backend

	// Permissions is this request's permission discovery service.
	Permissions *permissions.Service

	// Workflows is this request's tenant-partitioned workflow service.
	Workflows *workflows.Service

	released atomic.Bool
}

// Release marks the context released and drops its service references so
// they become eligible for collection. Idempotent; safe to call from a
// deferred cleanup on every exit path.
func (rc *RequestContext) Release() {
	if !rc.released.CompareAndSwap(false, true) {
		return
	}
	rc.Auth = nil
	rc.Permissions = nil
	rc.Workflows = nil
}

// Released reports whether Release has been called.
func (rc *RequestContext) Released() bool {
	return rc.released.Load()
}

// requestContextKey is the typed context key for RequestContext
// propagation. An empty struct key cannot collide with keys from other
// packages.
type requestContextKey struct{}

// WithRequestContext attaches a RequestContext to ctx. This is the single
// propagation mechanism; downstream code must read services only through
// FromContext.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	if rc == nil {
		return ctx
	}
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext retrieves the attached RequestContext. Returns nil and
// false when none is attached or it has already been released.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	if !ok || rc.Released() {
		return nil, false
	}
	return rc, true
}
