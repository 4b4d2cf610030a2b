// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func writeState(t *testing.T, store *LocalStore, name, content string) {
	t.Helper()
	w, err := store.GetWriter(context.Background(), name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestLocalStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	writeState(t, store, "alpha", "alpha-content")

	r, err := store.GetReader(ctx, "alpha")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "alpha-content", string(data))
}

func TestLocalStoreWriteInvisibleUntilClose(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	w, err := store.GetWriter(ctx, "pending")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	// Not committed yet.
	exists, err := store.Exists(ctx, "pending")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, w.Close())

	exists, err = store.Exists(ctx, "pending")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStoreGetReaderNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.GetReader(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	writeState(t, store, "doomed", "x")
	require.NoError(t, store.Delete(ctx, "doomed"))

	exists, err := store.Exists(ctx, "doomed")
	require.NoError(t, err)
	assert.False(t, exists)

	require.ErrorIs(t, store.Delete(ctx, "doomed"), ErrNotFound)
}

func TestLocalStoreList(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	writeState(t, store, "beta", "b")
	writeState(t, store, "alpha", "a")
	writeState(t, store, "nested/gamma", "g")

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "nested/gamma"}, names)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetWriter(ctx, "../escape")
	require.Error(t, err)

	_, err = store.GetReader(ctx, "../../etc/passwd")
	require.Error(t, err)

	require.Error(t, store.Delete(ctx, ".."))
}
