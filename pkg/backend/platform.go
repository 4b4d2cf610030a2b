// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"fmt"
)

// GraphQLClient executes catalog queries against the Platform GraphQL API.
// The concrete client is an external collaborator; the gateway only
// depends on this boundary.
type GraphQLClient interface {
	// Query executes a GraphQL query and decodes the response into out.
	Query(ctx context.Context, query string, variables map[string]any, out any) error
}

// PlatformBackend serves catalog operations through the Platform GraphQL
// API. It is the multitenant variant.
//
// When no GraphQL client has been provided, the backend still exposes the
// full capability set and fails every call with ErrNotImplemented. This
// preserves the architectural contract: a multitenant deployment never
// silently degrades to the quilt3 backend.
type PlatformBackend struct {
	catalogURL string
	client     GraphQLClient
}

// NewPlatformBackend creates a platform backend for the given catalog
// endpoint. client may be nil, in which case every operation returns
// ErrNotImplemented.
func NewPlatformBackend(catalogURL string, client GraphQLClient) *PlatformBackend {
	return &PlatformBackend{catalogURL: catalogURL, client: client}
}

// Kind returns the backend variant identifier.
func (*PlatformBackend) Kind() string {
	return "platform"
}

// CatalogURL returns the upstream catalog endpoint this backend targets.
func (b *PlatformBackend) CatalogURL() string {
	return b.catalogURL
}

func (b *PlatformBackend) notImplemented(op string) error {
	return fmt.Errorf("%w: %s is not available on the platform backend", ErrNotImplemented, op)
}

// Search finds packages matching the query.
func (b *PlatformBackend) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if b.client == nil {
		return nil, b.notImplemented("search")
	}
	var resp struct {
		Packages []SearchResult `json:"packages"`
	}
	err := b.client.Query(ctx, packageSearchQuery, map[string]any{
		"searchString": query,
		"limit":        limit,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("platform search failed: %w", err)
	}
	return resp.Packages, nil
}

// GetInfo returns metadata for a package.
func (b *PlatformBackend) GetInfo(ctx context.Context, pkg string) (*PackageInfo, error) {
	if b.client == nil {
		return nil, b.notImplemented("get_info")
	}
	var resp struct {
		Package *PackageInfo `json:"package"`
	}
	err := b.client.Query(ctx, packageInfoQuery, map[string]any{"name": pkg}, &resp)
	if err != nil {
		return nil, fmt.Errorf("platform get_info failed: %w", err)
	}
	if resp.Package == nil {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, pkg)
	}
	return resp.Package, nil
}

// Browse lists the entries of a package under the given prefix.
func (b *PlatformBackend) Browse(ctx context.Context, pkg, prefix string) ([]Entry, error) {
	if b.client == nil {
		return nil, b.notImplemented("browse")
	}
	var resp struct {
		Entries []Entry `json:"entries"`
	}
	err := b.client.Query(ctx, packageBrowseQuery, map[string]any{
		"name":   pkg,
		"prefix": prefix,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("platform browse failed: %w", err)
	}
	return resp.Entries, nil
}

// CreateRevision records a new package revision.
func (b *PlatformBackend) CreateRevision(
	ctx context.Context, _, _ string, _ []Entry,
) (*Revision, error) {
	_ = ctx
	return nil, b.notImplemented("create_revision")
}

// Delete removes a package.
func (b *PlatformBackend) Delete(ctx context.Context, _ string) error {
	_ = ctx
	return b.notImplemented("delete")
}

// Catalog GraphQL queries. Kept minimal; the full query surface belongs to
// the client implementation.
const (
	packageSearchQuery = `query($searchString: String!, $limit: Int!) {
  packages(searchString: $searchString, limit: $limit) { package score }
}`

	packageInfoQuery = `query($name: String!) {
  package(name: $name) { name description top_hash updated_at }
}`

	packageBrowseQuery = `query($name: String!, $prefix: String!) {
  package(name: $name) { entries(prefix: $prefix) { logical_key physical_key size } }
}`
)
