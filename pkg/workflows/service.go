// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package workflows provides tenant-partitioned workflow storage.
//
// Each Service instance is created fresh per request and bound to one
// tenant's storage subtree; two tenants can never observe each other's
// workflows. The storage discipline is transaction-safe: documents are
// written to a temp file and renamed into place, so concurrent writers
// for the same tenant cannot corrupt state.
package workflows

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quiltdata/quilt-mcp/pkg/fileutils"
	"github.com/quiltdata/quilt-mcp/pkg/state"
)

// ErrWorkflowNotFound indicates no workflow exists with the given name.
var ErrWorkflowNotFound = errors.New("workflow not found")

// Step is one step of a workflow definition.
type Step struct {
	ID   string         `yaml:"id" json:"id"`
	Tool string         `yaml:"tool,omitempty" json:"tool,omitempty"`
	Args map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
}

// Workflow is a stored workflow definition.
type Workflow struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step    `yaml:"steps,omitempty" json:"steps,omitempty"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updated_at"`
}

// Service stores and retrieves workflows for exactly one tenant. The
// workflow execution engine itself lives elsewhere; this service owns only
// the tenant-scoped persistence contract.
type Service struct {
	tenantID string
	store    state.Store
}

// NewService creates a workflow service rooted at
// storageRoot/<tenantID>. The tenant id is validated before any path
// construction.
func NewService(storageRoot, tenantID string) (*Service, error) {
	if err := fileutils.ValidateNameForPath(tenantID); err != nil {
		return nil, fmt.Errorf("invalid tenant id: %w", err)
	}
	store, err := state.NewLocalStore(filepath.Join(storageRoot, tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow store for tenant %s: %w", tenantID, err)
	}
	return &Service{tenantID: tenantID, store: store}, nil
}

// TenantID returns the tenant this service is partitioned to.
func (s *Service) TenantID() string {
	return s.tenantID
}

// List returns the names of all stored workflows for this tenant.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}

// Get retrieves a workflow by name.
func (s *Service) Get(ctx context.Context, name string) (*Workflow, error) {
	r, err := s.store.GetReader(ctx, name)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
		}
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow %s: %w", name, err)
	}
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", name, err)
	}
	return &wf, nil
}

// Save stores a workflow under its name, overwriting any previous version.
// The write is atomic.
func (s *Service) Save(ctx context.Context, wf *Workflow) error {
	if wf.Name == "" {
		return errors.New("workflow name must not be empty")
	}
	wf.UpdatedAt = time.Now().UTC()

	data, err := yaml.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to encode workflow %s: %w", wf.Name, err)
	}

	w, err := s.store.GetWriter(ctx, wf.Name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write workflow %s: %w", wf.Name, err)
	}
	return w.Close()
}

// Delete removes a workflow by name.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.store.Delete(ctx, name); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
		}
		return err
	}
	return nil
}
