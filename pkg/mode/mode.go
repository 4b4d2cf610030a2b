// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package mode defines the deployment-mode configuration for the gateway.
//
// A single boolean (MULTITENANT_MODE) deterministically derives every other
// mode dimension: which backend serves catalog operations, whether requests
// must carry a JWT, whether persistent local state is permitted, and whether
// requests are tenant-isolated. The Config is built exactly once at process
// startup and is the only component allowed to read the environment; all
// downstream decisions are pure functions of the Config instance.
package mode

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// BackendKind identifies which catalog backend serves this deployment.
type BackendKind string

const (
	// BackendQuilt3 is the local quilt3 backend used in single-user mode.
	BackendQuilt3 BackendKind = "quilt3"
	// BackendPlatform is the Platform GraphQL backend used in multitenant mode.
	BackendPlatform BackendKind = "platform"
)

// TenantMode identifies the tenant isolation model of this deployment.
type TenantMode string

const (
	// TenantModeSingleUser serves a single implicit tenant ("default").
	TenantModeSingleUser TenantMode = "single_user"
	// TenantModeMultitenant isolates every request by a resolved tenant id.
	TenantModeMultitenant TenantMode = "multitenant"
)

// Environment variable names read by FromEnv. No other package reads these.
const (
	EnvMultitenantMode     = "MULTITENANT_MODE"
	EnvJWTSigningSecret    = "JWT_SIGNING_SECRET"
	EnvJWTSigningSecretRef = "JWT_SIGNING_SECRET_REF"
	EnvJWTIssuer           = "JWT_ISSUER"
	EnvJWTAudience         = "JWT_AUDIENCE"
	EnvCatalogURL          = "QUILT_CATALOG_URL"
	EnvTenantFallback      = "TENANT_ID_FALLBACK"
	EnvQuiltTenantID       = "QUILT_TENANT_ID"
	EnvQuiltTenant         = "QUILT_TENANT"
	EnvWorkflowStorageRoot = "WORKFLOW_STORAGE_ROOT"
	EnvLocalRegistryRoot   = "QUILT_LOCAL_REGISTRY_ROOT"
	EnvStrictValidation    = "QUILT_STRICT_VALIDATION"
)

// Default storage locations used when the corresponding variables are unset.
const (
	DefaultWorkflowStorageRoot = "/var/lib/quilt-mcp/workflows"
	DefaultLocalRegistryRoot   = "/var/lib/quilt-mcp/registry"
)

// ErrInvalidConfig is the sentinel for fatal mode configuration errors.
// Validation failures wrap it so startup code can detect them with errors.Is.
var ErrInvalidConfig = errors.New("invalid mode configuration")

// Config is the immutable process-wide deployment mode configuration.
//
// All fields are private; the derived dimensions are exposed through read
// accessors only. Construct with FromEnv (production) or New (tests).
type Config struct {
	multitenant bool

	jwtSigningSecret    string
	jwtSigningSecretRef string
	jwtIssuer           string
	jwtAudience         string
	catalogURL          string
	tenantFallback      string
	workflowRoot        string
	registryRoot        string
	strictValidation    bool
}

// Settings carries the raw inputs for constructing a Config without
// touching the environment. Used by tests and by FromEnv internally.
type Settings struct {
	Multitenant         bool
	JWTSigningSecret    string
	JWTSigningSecretRef string
	JWTIssuer           string
	JWTAudience         string
	CatalogURL          string
	TenantFallback      string
	WorkflowStorageRoot string
	LocalRegistryRoot   string
	StrictValidation    bool
}

// New constructs a Config from explicit settings.
func New(s Settings) *Config {
	root := s.WorkflowStorageRoot
	if root == "" {
		root = DefaultWorkflowStorageRoot
	}
	registry := s.LocalRegistryRoot
	if registry == "" {
		registry = DefaultLocalRegistryRoot
	}
	return &Config{
		multitenant:         s.Multitenant,
		jwtSigningSecret:    s.JWTSigningSecret,
		jwtSigningSecretRef: s.JWTSigningSecretRef,
		jwtIssuer:           s.JWTIssuer,
		jwtAudience:         s.JWTAudience,
		catalogURL:          s.CatalogURL,
		tenantFallback:      s.TenantFallback,
		workflowRoot:        root,
		registryRoot:        registry,
		strictValidation:    s.StrictValidation,
	}
}

// FromEnv constructs a Config from the process environment. This is the
// single place the gateway reads mode-related environment variables.
func FromEnv() *Config {
	v := viper.New()
	for _, key := range []string{
		EnvMultitenantMode,
		EnvJWTSigningSecret,
		EnvJWTSigningSecretRef,
		EnvJWTIssuer,
		EnvJWTAudience,
		EnvCatalogURL,
		EnvTenantFallback,
		EnvQuiltTenantID,
		EnvQuiltTenant,
		EnvWorkflowStorageRoot,
		EnvLocalRegistryRoot,
		EnvStrictValidation,
	} {
		// BindEnv with a single argument uses the key itself as the
		// environment variable name.
		_ = v.BindEnv(key)
	}

	// TENANT_ID_FALLBACK wins over the legacy QUILT_TENANT_ID/QUILT_TENANT
	// spellings; all three feed the same lowest-precedence tenant source.
	fallback := v.GetString(EnvTenantFallback)
	if fallback == "" {
		fallback = v.GetString(EnvQuiltTenantID)
	}
	if fallback == "" {
		fallback = v.GetString(EnvQuiltTenant)
	}

	return New(Settings{
		Multitenant:         v.GetBool(EnvMultitenantMode),
		JWTSigningSecret:    v.GetString(EnvJWTSigningSecret),
		JWTSigningSecretRef: v.GetString(EnvJWTSigningSecretRef),
		JWTIssuer:           v.GetString(EnvJWTIssuer),
		JWTAudience:         v.GetString(EnvJWTAudience),
		CatalogURL:          v.GetString(EnvCatalogURL),
		TenantFallback:      fallback,
		WorkflowStorageRoot: v.GetString(EnvWorkflowStorageRoot),
		LocalRegistryRoot:   v.GetString(EnvLocalRegistryRoot),
		StrictValidation:    v.GetBool(EnvStrictValidation),
	})
}

// IsMultitenant reports whether the gateway runs in multitenant mode.
func (c *Config) IsMultitenant() bool {
	return c.multitenant
}

// Backend returns the backend kind serving this deployment.
func (c *Config) Backend() BackendKind {
	if c.multitenant {
		return BackendPlatform
	}
	return BackendQuilt3
}

// RequiresJWT reports whether every request must carry a bearer JWT.
func (c *Config) RequiresJWT() bool {
	return c.multitenant
}

// AllowsPersistentState reports whether persistent local state (quilt3
// caches, local registries) is permitted in this deployment.
func (c *Config) AllowsPersistentState() bool {
	return !c.multitenant
}

// AllowsNativeLibrary reports whether the native quilt3 library may be
// loaded. The platform backend never loads it.
func (c *Config) AllowsNativeLibrary() bool {
	return !c.multitenant
}

// Tenant returns the tenant isolation model.
func (c *Config) Tenant() TenantMode {
	if c.multitenant {
		return TenantModeMultitenant
	}
	return TenantModeSingleUser
}

// JWTSigningSecret returns the configured JWT signing secret. When only a
// secret-manager reference was provided, the reference is returned; the
// actual fetch is an external collaborator concern.
func (c *Config) JWTSigningSecret() string {
	if c.jwtSigningSecret != "" {
		return c.jwtSigningSecret
	}
	return c.jwtSigningSecretRef
}

// JWTIssuer returns the expected token issuer.
func (c *Config) JWTIssuer() string {
	return c.jwtIssuer
}

// JWTAudience returns the expected token audience.
func (c *Config) JWTAudience() string {
	return c.jwtAudience
}

// CatalogURL returns the upstream catalog/API endpoint.
func (c *Config) CatalogURL() string {
	return c.catalogURL
}

// TenantFallback returns the development-only fallback tenant id, or empty
// when none is configured or strict validation disables it.
func (c *Config) TenantFallback() string {
	if c.strictValidation {
		return ""
	}
	return c.tenantFallback
}

// WorkflowStorageRoot returns the base directory for per-tenant workflow
// storage.
func (c *Config) WorkflowStorageRoot() string {
	return c.workflowRoot
}

// LocalRegistryRoot returns the directory backing the local quilt3 package
// registry. Only meaningful when persistent state is allowed.
func (c *Config) LocalRegistryRoot() string {
	return c.registryRoot
}

// Validate checks that every secondary setting required by the selected
// mode is present. It returns one error per missing item so startup code
// can print an enumerated list; an empty slice means the config is valid.
//
// Validation failures are fatal: the process must refuse to serve requests.
func (c *Config) Validate() []error {
	var errs []error

	if c.multitenant {
		if c.jwtSigningSecret == "" && c.jwtSigningSecretRef == "" {
			errs = append(errs, fmt.Errorf("%w: %s or %s is required in multitenant mode",
				ErrInvalidConfig, EnvJWTSigningSecret, EnvJWTSigningSecretRef))
		}
		if c.jwtIssuer == "" {
			errs = append(errs, fmt.Errorf("%w: %s is required in multitenant mode",
				ErrInvalidConfig, EnvJWTIssuer))
		}
		if c.jwtAudience == "" {
			errs = append(errs, fmt.Errorf("%w: %s is required in multitenant mode",
				ErrInvalidConfig, EnvJWTAudience))
		}
		if c.catalogURL == "" {
			errs = append(errs, fmt.Errorf("%w: %s is required in multitenant mode",
				ErrInvalidConfig, EnvCatalogURL))
		}
	}

	if c.workflowRoot == "" {
		errs = append(errs, fmt.Errorf("%w: workflow storage root must not be empty",
			ErrInvalidConfig))
	}

	return errs
}
