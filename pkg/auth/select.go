// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quiltdata/quilt-mcp/pkg/logger"
	"github.com/quiltdata/quilt-mcp/pkg/mode"
)

// Select chooses the auth service for one request. It is a pure function
// of the mode configuration and the inbound bearer token: no network
// calls, no environment reads.
//
// Multitenant mode requires a structurally valid bearer token and never
// falls back to IAM auth; a missing or malformed token is a terminal
// per-request error. Single-user mode prefers JWT when a usable token is
// present and otherwise uses the ambient AWS credential chain.
func Select(cfg *mode.Config, bearerToken string) (Service, error) {
	if cfg.RequiresJWT() {
		if bearerToken == "" {
			return nil, fmt.Errorf("%w: multitenant mode requires a bearer token", ErrMissingRequiredJWT)
		}
		svc, err := NewJWTService(cfg, bearerToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingRequiredJWT, err)
		}
		return svc, nil
	}

	if bearerToken != "" {
		svc, err := NewJWTService(cfg, bearerToken)
		if err == nil {
			return svc, nil
		}
		// Single-user mode tolerates a malformed bearer token by using the
		// ambient credential chain instead.
		logger.Debugw("ignoring malformed bearer token in single-user mode", "error", err)
	}

	return NewIAMService(), nil
}

// RequireBearerClaims extracts the structural claims needed for tenant
// resolution, enforcing the mode's credential requirement. In multitenant
// mode an absent or malformed token yields ErrMissingRequiredJWT. In
// single-user mode the claims are nil when no usable token is present.
func RequireBearerClaims(cfg *mode.Config, bearerToken string) (jwt.MapClaims, error) {
	claims, err := ParseBearerClaims(bearerToken)
	if err != nil {
		if cfg.RequiresJWT() {
			return nil, fmt.Errorf("%w: %v", ErrMissingRequiredJWT, err)
		}
		return nil, nil
	}
	return claims, nil
}
