// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package state provides storage for gateway state partitioned by tenant.
package state

import (
	"context"
	"io"
)

// Store defines the interface for state storage operations.
type Store interface {
	// GetReader returns a reader for the state data.
	GetReader(ctx context.Context, name string) (io.ReadCloser, error)

	// GetWriter returns a writer for the state data. The data becomes
	// visible atomically when the writer is closed.
	GetWriter(ctx context.Context, name string) (io.WriteCloser, error)

	// Delete removes the data for the given name.
	Delete(ctx context.Context, name string) error

	// List returns all available state names.
	List(ctx context.Context) ([]string, error)

	// Exists checks if data exists for the given name.
	Exists(ctx context.Context, name string) (bool, error)
}
