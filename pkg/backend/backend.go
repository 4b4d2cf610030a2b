// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package backend provides the catalog backend variants for the gateway.
//
// Exactly one backend serves a deployment, selected once at factory
// construction from the mode configuration: single-user deployments use
// the local quilt3 backend, multitenant deployments the Platform GraphQL
// backend. No backend switching occurs mid-process.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrNotImplemented indicates an operation is not implemented for the
// selected backend variant. Distinguishable from transient failures so
// callers can tell "wrong mode configured" from "backend is down".
var ErrNotImplemented = errors.New("not implemented for this mode")

// ErrPackageNotFound indicates the requested package does not exist.
var ErrPackageNotFound = errors.New("package not found")

// SearchResult is one hit from a catalog search.
type SearchResult struct {
	Package string  `json:"package"`
	Score   float64 `json:"score,omitempty"`
}

// PackageInfo describes a catalog package.
type PackageInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TopHash     string    `json:"top_hash,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Entry is one logical entry inside a package.
type Entry struct {
	LogicalKey  string `json:"logical_key"`
	PhysicalKey string `json:"physical_key,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Revision describes a created package revision.
type Revision struct {
	Package   string    `json:"package"`
	TopHash   string    `json:"top_hash"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Backend is the capability set shared by all catalog backend variants.
type Backend interface {
	// Kind returns the backend variant identifier.
	Kind() string

	// Search finds packages matching the query.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// GetInfo returns metadata for a package.
	GetInfo(ctx context.Context, pkg string) (*PackageInfo, error)

	// Browse lists the entries of a package under the given prefix.
	Browse(ctx context.Context, pkg, prefix string) ([]Entry, error)

	// CreateRevision records a new package revision.
	CreateRevision(ctx context.Context, pkg, message string, entries []Entry) (*Revision, error)

	// Delete removes a package.
	Delete(ctx context.Context, pkg string) error
}
