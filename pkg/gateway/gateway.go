// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gateway assembles the per-request service bundle.
//
// The Factory is constructed once per process from the validated mode
// configuration; it selects the backend exactly once and then builds a
// fresh, isolated RequestContext for every inbound request: tenant
// resolution, auth service selection, and construction of the
// tenant-partitioned permission and workflow services. Contexts are
// attached to the request's context.Context through a single accessor
// pair and are released on every exit path.
package gateway

import (
	"errors"
)

// ErrNoRequestContext indicates downstream code asked for a request
// context where none was attached.
var ErrNoRequestContext = errors.New("no request context attached")

// RequestMeta is the inbound request metadata consumed by the factory.
// The gateway consumes but does not own these values.
type RequestMeta struct {
	// RequestID is an opaque request identifier. Generated when empty.
	RequestID string

	// BearerToken is the optional bearer credential attached to the
	// request, without the "Bearer " prefix.
	BearerToken string

	// ExplicitTenantID is a tenant id the caller supplied directly.
	// Single-user deployments reject any non-default value.
	ExplicitTenantID string

	// SessionClaims are previously-established session/runtime metadata,
	// usable as the second tenant-resolution source.
	SessionClaims map[string]any
}
