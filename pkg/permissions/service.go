// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package permissions provides request-scoped permission discovery.
//
// A Service is created fresh for every request and owns its cache
// exclusively: discovered permissions are memoized for the lifetime of
// one request context and discarded with it. Nothing here is shared
// across requests or tenants.
package permissions

import (
	"context"
	"fmt"
	"sync"

	"github.com/quiltdata/quilt-mcp/pkg/auth"
)

// Level is the access level discovered for a resource.
type Level string

const (
	// LevelNone grants no access.
	LevelNone Level = "none"
	// LevelRead grants read-only access.
	LevelRead Level = "read"
	// LevelReadWrite grants read and write access.
	LevelReadWrite Level = "read_write"
)

// DiscoverFunc performs the actual permission lookup for one bucket on
// behalf of an authenticated identity. The production implementation
// queries the backend; tests inject fakes.
type DiscoverFunc func(ctx context.Context, identity *auth.Identity, bucket string) (Level, error)

// Service discovers and caches resource permissions for one request.
type Service struct {
	authSvc  auth.Service
	tenantID string
	discover DiscoverFunc

	mu    sync.Mutex
	cache map[string]Level
}

// NewService creates a permission discovery service bound to one auth
// session and one tenant. discover may be nil, in which case a
// conservative default grants read access to any authenticated identity.
func NewService(authSvc auth.Service, tenantID string, discover DiscoverFunc) *Service {
	if discover == nil {
		discover = defaultDiscover
	}
	return &Service{
		authSvc:  authSvc,
		tenantID: tenantID,
		discover: discover,
		cache:    make(map[string]Level),
	}
}

// TenantID returns the tenant this service is partitioned to.
func (s *Service) TenantID() string {
	return s.tenantID
}

// Discover returns the access level for a bucket, authenticating lazily
// on first use and memoizing per bucket for the request lifetime.
func (s *Service) Discover(ctx context.Context, bucket string) (Level, error) {
	s.mu.Lock()
	if level, ok := s.cache[bucket]; ok {
		s.mu.Unlock()
		return level, nil
	}
	s.mu.Unlock()

	identity, err := s.authSvc.Authenticate(ctx)
	if err != nil {
		return LevelNone, fmt.Errorf("permission discovery requires authentication: %w", err)
	}

	level, err := s.discover(ctx, identity, bucket)
	if err != nil {
		return LevelNone, err
	}

	s.mu.Lock()
	s.cache[bucket] = level
	s.mu.Unlock()
	return level, nil
}

// CachedLevels returns a copy of the levels discovered so far. Intended
// for diagnostics and tests.
func (s *Service) CachedLevels() map[string]Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Level, len(s.cache))
	for k, v := range s.cache {
		out[k] = v
	}
	return out
}

// defaultDiscover grants read access to any authenticated identity. The
// real lookup lives in the backend business logic, outside this core.
func defaultDiscover(_ context.Context, identity *auth.Identity, _ string) (Level, error) {
	if identity == nil {
		return LevelNone, nil
	}
	return LevelRead, nil
}
