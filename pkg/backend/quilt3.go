// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"gopkg.in/yaml.v3"

	"github.com/quiltdata/quilt-mcp/pkg/fileutils"
	"github.com/quiltdata/quilt-mcp/pkg/logger"
)

// manifest is the on-disk record for one package in the local registry.
type manifest struct {
	Name      string    `yaml:"name"`
	Message   string    `yaml:"message,omitempty"`
	TopHash   string    `yaml:"top_hash"`
	UpdatedAt time.Time `yaml:"updated_at"`
	Entries   []Entry   `yaml:"entries,omitempty"`
}

// Quilt3Backend serves catalog operations from a local quilt3-style
// package registry. It is the single-user variant: persistent local state
// is permitted in that mode, and the AWS session for physical-key access
// is resolved lazily from the ambient credential chain.
type Quilt3Backend struct {
	registryRoot string

	sessionOnce sync.Once
	sessionCfg  *aws.Config
	sessionErr  error
}

// NewQuilt3Backend creates a quilt3 backend rooted at the given local
// registry directory. No I/O happens until an operation is called.
func NewQuilt3Backend(registryRoot string) *Quilt3Backend {
	return &Quilt3Backend{registryRoot: registryRoot}
}

// Kind returns the backend variant identifier.
func (*Quilt3Backend) Kind() string {
	return "quilt3"
}

// Session resolves the ambient AWS credential chain once per backend, for
// callers that need physical-key (S3) access behind the logical entries.
// Operations that only touch the local registry never call this.
func (b *Quilt3Backend) Session(ctx context.Context) (*aws.Config, error) {
	b.sessionOnce.Do(func() {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			b.sessionErr = fmt.Errorf("failed to load AWS credential chain: %w", err)
			return
		}
		b.sessionCfg = &cfg
		logger.Debugw("quilt3 backend AWS session resolved", "region", cfg.Region)
	})
	return b.sessionCfg, b.sessionErr
}

// Search scans the local registry for package names containing the query.
func (b *Quilt3Backend) Search(_ context.Context, query string, limit int) ([]SearchResult, error) {
	names, err := b.listPackages()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []SearchResult
	for _, name := range names {
		if query == "" || strings.Contains(strings.ToLower(name), query) {
			results = append(results, SearchResult{Package: name})
		}
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

// GetInfo returns metadata for a package from its registry manifest.
func (b *Quilt3Backend) GetInfo(_ context.Context, pkg string) (*PackageInfo, error) {
	m, err := b.readManifest(pkg)
	if err != nil {
		return nil, err
	}
	return &PackageInfo{
		Name:        m.Name,
		Description: m.Message,
		TopHash:     m.TopHash,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

// Browse lists package entries under the given logical-key prefix.
func (b *Quilt3Backend) Browse(_ context.Context, pkg, prefix string) ([]Entry, error) {
	m, err := b.readManifest(pkg)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, e := range m.Entries {
		if prefix == "" || strings.HasPrefix(e.LogicalKey, prefix) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// CreateRevision writes a new manifest for the package. The write is
// atomic so concurrent writers cannot leave a torn manifest behind.
func (b *Quilt3Backend) CreateRevision(
	_ context.Context, pkg, message string, entries []Entry,
) (*Revision, error) {
	if err := fileutils.ValidateNameForPath(pkg); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := manifest{
		Name:      pkg,
		Message:   message,
		TopHash:   topHash(pkg, message, entries, now),
		UpdatedAt: now,
		Entries:   entries,
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := b.manifestPath(pkg)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	if err := fileutils.AtomicWriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	return &Revision{
		Package:   pkg,
		TopHash:   m.TopHash,
		Message:   message,
		CreatedAt: now,
	}, nil
}

// Delete removes a package from the local registry.
func (b *Quilt3Backend) Delete(_ context.Context, pkg string) error {
	if err := fileutils.ValidateNameForPath(pkg); err != nil {
		return err
	}
	path := b.manifestPath(pkg)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrPackageNotFound, pkg)
		}
		return fmt.Errorf("failed to delete package: %w", err)
	}
	return nil
}

// manifestPath maps a package name (possibly namespaced, "team/pkg") to a
// registry file. Package names use "/" as a namespace separator; each
// segment is validated before path construction.
func (b *Quilt3Backend) manifestPath(pkg string) string {
	return filepath.Join(b.registryRoot, filepath.FromSlash(pkg)+".yaml")
}

func (b *Quilt3Backend) readManifest(pkg string) (*manifest, error) {
	if err := fileutils.ValidateNameForPath(pkg); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.manifestPath(pkg))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, pkg)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest for %s: %w", pkg, err)
	}
	return &m, nil
}

func (b *Quilt3Backend) listPackages() ([]string, error) {
	var names []string
	err := filepath.WalkDir(b.registryRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}
		rel, err := filepath.Rel(b.registryRoot, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(strings.TrimSuffix(rel, ".yaml")))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list registry: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func topHash(pkg, message string, entries []Entry, at time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%d\n", pkg, message, at.UnixNano())
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%s\x00%d\n", e.LogicalKey, e.PhysicalKey, e.Size)
	}
	return hex.EncodeToString(h.Sum(nil))
}
