// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quiltdata/quilt-mcp/pkg/fileutils"
)

// ErrNotFound indicates no state exists for the requested name.
var ErrNotFound = errors.New("state not found")

const stateFileExt = ".yaml"

// LocalStore is a filesystem-backed Store rooted at a single directory.
// Writes are atomic (temp file + rename), so concurrent writers for the
// same name cannot corrupt state; the last close wins.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a store rooted at baseDir, creating the directory
// if needed.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

func (s *LocalStore) path(name string) (string, error) {
	if err := fileutils.ValidateNameForPath(name); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, name+stateFileExt), nil
}

// GetReader returns a reader for the named state.
func (s *LocalStore) GetReader(_ context.Context, name string) (io.ReadCloser, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open state %s: %w", name, err)
	}
	return f, nil
}

// GetWriter returns a writer for the named state. The write is buffered
// and becomes visible atomically on Close.
func (s *LocalStore) GetWriter(_ context.Context, name string) (io.WriteCloser, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &atomicWriter{path: path}, nil
}

// Delete removes the named state.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete state %s: %w", name, err)
	}
	return nil
}

// List returns all state names in the store.
func (s *LocalStore) List(_ context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), stateFileExt) {
			return nil
		}
		// Skip in-flight atomic write temp files.
		if strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(strings.TrimSuffix(rel, stateFileExt)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list state: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Exists checks whether state exists for the given name.
func (s *LocalStore) Exists(_ context.Context, name string) (bool, error) {
	path, err := s.path(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat state %s: %w", name, err)
	}
	return true, nil
}

// atomicWriter buffers writes in memory and commits them atomically on
// Close via AtomicWriteFile.
type atomicWriter struct {
	path   string
	buf    bytes.Buffer
	closed bool
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write after close")
	}
	return w.buf.Write(p)
}

func (w *atomicWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return fileutils.AtomicWriteFile(w.path, w.buf.Bytes(), 0o600)
}
