// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/quiltdata/quilt-mcp/pkg/auth"
	"github.com/quiltdata/quilt-mcp/pkg/backend"
	"github.com/quiltdata/quilt-mcp/pkg/logger"
	"github.com/quiltdata/quilt-mcp/pkg/mode"
	"github.com/quiltdata/quilt-mcp/pkg/permissions"
	"github.com/quiltdata/quilt-mcp/pkg/tenant"
	"github.com/quiltdata/quilt-mcp/pkg/workflows"
)

// Factory builds RequestContext instances for inbound requests.
//
// It holds the only two pieces of process-wide state: the immutable mode
// configuration and the once-selected backend handle. Everything else is
// constructed fresh per request.
type Factory struct {
	cfg      *mode.Config
	backend  backend.Backend
	resolver *tenant.Resolver

	// discover overrides the permission lookup; nil uses the default.
	discover permissions.DiscoverFunc
}

// Option configures a Factory.
type Option func(*Factory)

// WithPermissionDiscovery overrides the permission lookup used by the
// per-request permission services.
func WithPermissionDiscovery(fn permissions.DiscoverFunc) Option {
	return func(f *Factory) {
		f.discover = fn
	}
}

// WithBackend overrides the selected backend handle. Intended for tests.
func WithBackend(b backend.Backend) Option {
	return func(f *Factory) {
		f.backend = b
	}
}

// NewFactory creates the process-wide context factory. The backend is
// selected here, exactly once; cfg must already have passed validation.
func NewFactory(cfg *mode.Config, opts ...Option) *Factory {
	f := &Factory{
		cfg:      cfg,
		backend:  backend.Select(cfg),
		resolver: tenant.NewResolver(cfg),
	}
	for _, opt := range opts {
		opt(f)
	}
	logger.Infow("request context factory ready",
		"backend", f.backend.Kind(),
		"tenant_mode", string(cfg.Tenant()),
		"requires_jwt", cfg.RequiresJWT(),
	)
	return f
}

// Mode returns the factory's mode configuration.
func (f *Factory) Mode() *mode.Config {
	return f.cfg
}

// Backend returns the process-wide backend handle.
func (f *Factory) Backend() backend.Backend {
	return f.backend
}

// CreateContext builds the request context for one inbound request.
//
// The construction order is fixed: credential gate → tenant resolution →
// auth service selection → dependent services. Tenant resolution may need
// the token claims, so the claims are extracted structurally up front;
// in multitenant mode a missing or malformed token aborts construction
// before anything is built. No step performs network I/O; credential
// verification is deferred to first use. On any failure a typed error is
// returned and no partial context exists.
func (f *Factory) CreateContext(ctx context.Context, meta RequestMeta) (*RequestContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims, err := auth.RequireBearerClaims(f.cfg, meta.BearerToken)
	if err != nil {
		return nil, err
	}

	tenantID, err := f.resolver.Resolve(tenant.Sources{
		Claims:           claims,
		SessionClaims:    meta.SessionClaims,
		ExplicitTenantID: meta.ExplicitTenantID,
	})
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.Select(f.cfg, meta.BearerToken)
	if err != nil {
		return nil, err
	}

	// Cancellation between the cheap steps above and service construction
	// must not leave partially-constructed services behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wfSvc, err := workflows.NewService(f.cfg.WorkflowStorageRoot(), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to construct workflow service: %w", err)
	}

	requestID := meta.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	rc := &RequestContext{
		RequestID:   requestID,
		TenantID:    tenantID,
		UserID:      subjectFromClaims(claims),
		Auth:        authSvc,
		Backend:     f.backend,
		Permissions: permissions.NewService(authSvc, tenantID, f.discover),
		Workflows:   wfSvc,
	}

	logger.Debugw("request context created",
		"request_id", rc.RequestID,
		"tenant_id", rc.TenantID,
		"auth_provider", authSvc.Provider(),
	)
	return rc, nil
}

// Scope runs fn with a freshly created, attached request context and
// guarantees release on every exit path, including panics and
// cancellation. This is the preferred entry point for request handling.
func (f *Factory) Scope(ctx context.Context, meta RequestMeta, fn func(ctx context.Context) error) error {
	rc, err := f.CreateContext(ctx, meta)
	if err != nil {
		return err
	}
	defer rc.Release()

	return fn(WithRequestContext(ctx, rc))
}

func subjectFromClaims(claims map[string]any) string {
	if claims == nil {
		return ""
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return ""
}
