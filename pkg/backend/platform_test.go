// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltdata/quilt-mcp/pkg/mode"
)

// fakeGraphQL records queries and replies through a canned handler.
type fakeGraphQL struct {
	handler func(query string, variables map[string]any, out any) error
	queries []string
}

func (f *fakeGraphQL) Query(_ context.Context, query string, variables map[string]any, out any) error {
	f.queries = append(f.queries, query)
	return f.handler(query, variables, out)
}

func TestPlatformWithoutClientFailsEveryOperation(t *testing.T) {
	t.Parallel()

	b := NewPlatformBackend("https://catalog.example.com", nil)
	ctx := context.Background()

	assert.Equal(t, "platform", b.Kind())
	assert.Equal(t, "https://catalog.example.com", b.CatalogURL())

	_, err := b.Search(ctx, "anything", 10)
	require.ErrorIs(t, err, ErrNotImplemented)
	assert.Contains(t, err.Error(), "search")

	_, err = b.GetInfo(ctx, "team/pkg")
	require.ErrorIs(t, err, ErrNotImplemented)
	assert.Contains(t, err.Error(), "get_info")

	_, err = b.Browse(ctx, "team/pkg", "")
	require.ErrorIs(t, err, ErrNotImplemented)

	_, err = b.CreateRevision(ctx, "team/pkg", "msg", nil)
	require.ErrorIs(t, err, ErrNotImplemented)

	require.ErrorIs(t, b.Delete(ctx, "team/pkg"), ErrNotImplemented)
}

func TestPlatformSearch(t *testing.T) {
	t.Parallel()

	client := &fakeGraphQL{handler: func(_ string, variables map[string]any, out any) error {
		assert.Equal(t, "weather", variables["searchString"])
		assert.Equal(t, 5, variables["limit"])
		resp := out.(*struct {
			Packages []SearchResult `json:"packages"`
		})
		resp.Packages = []SearchResult{{Package: "team/weather", Score: 0.9}}
		return nil
	}}
	b := NewPlatformBackend("https://catalog.example.com", client)

	results, err := b.Search(context.Background(), "weather", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "team/weather", results[0].Package)
}

func TestPlatformGetInfoNotFound(t *testing.T) {
	t.Parallel()

	client := &fakeGraphQL{handler: func(string, map[string]any, any) error {
		return nil // package field stays nil
	}}
	b := NewPlatformBackend("https://catalog.example.com", client)

	_, err := b.GetInfo(context.Background(), "team/missing")
	require.ErrorIs(t, err, ErrPackageNotFound)
}

func TestPlatformWritesRemainUnimplemented(t *testing.T) {
	t.Parallel()

	// Even with a live client, write operations stay unavailable.
	client := &fakeGraphQL{handler: func(string, map[string]any, any) error { return nil }}
	b := NewPlatformBackend("https://catalog.example.com", client)
	ctx := context.Background()

	_, err := b.CreateRevision(ctx, "team/pkg", "msg", nil)
	require.ErrorIs(t, err, ErrNotImplemented)
	require.ErrorIs(t, b.Delete(ctx, "team/pkg"), ErrNotImplemented)
	assert.Empty(t, client.queries)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	single := Select(mode.New(mode.Settings{Multitenant: false}))
	assert.Equal(t, "quilt3", single.Kind())

	multi := Select(mode.New(mode.Settings{
		Multitenant: true,
		CatalogURL:  "https://catalog.example.com",
	}))
	assert.Equal(t, "platform", multi.Kind())

	platform, ok := multi.(*PlatformBackend)
	require.True(t, ok)
	assert.Equal(t, "https://catalog.example.com", platform.CatalogURL())
}
