// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"github.com/quiltdata/quilt-mcp/pkg/mode"
)

// Select returns the backend handle for the deployment mode. It is a pure
// function of the mode configuration, called once at factory construction;
// the transition from unselected to selected happens exactly once per
// process.
func Select(cfg *mode.Config) Backend {
	switch cfg.Backend() {
	case mode.BackendPlatform:
		return NewPlatformBackend(cfg.CatalogURL(), nil)
	default:
		return NewQuilt3Backend(cfg.LocalRegistryRoot())
	}
}
