// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth provides the authentication services for the gateway.
//
// Exactly one auth variant is legal per deployment mode: multitenant
// deployments require a bearer JWT on every request (JWTService), while
// single-user deployments fall back to the ambient AWS credential chain
// (IAMService) when no bearer token is supplied. Selection is a pure
// function of the mode configuration and the inbound credential; it never
// performs network calls. Credential verification is deferred to the first
// Authenticate call.
package auth

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/golang-jwt/jwt/v5"
)

// Common errors. Check with errors.Is; wrapping errors carry detail.
var (
	// ErrMissingRequiredJWT indicates a multitenant request arrived without
	// a structurally valid bearer token. Never downgraded to IAM auth.
	ErrMissingRequiredJWT = errors.New("missing required JWT")

	// ErrNoToken indicates no bearer token was provided.
	ErrNoToken = errors.New("no token provided")

	// ErrInvalidToken indicates the token failed verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the token is past its expiration time.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer indicates the token issuer does not match.
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience indicates the token audience does not match.
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrNotAuthenticated indicates a session was requested before a
	// successful Authenticate call resolved one.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Provider names for the auth variants.
const (
	ProviderJWT = "jwt"
	ProviderIAM = "iam"
)

// Service is the capability set shared by all auth variants.
//
// Construction is cheap and never touches the network; Authenticate and
// Session resolve credentials lazily on first use and cache the result for
// the lifetime of the service. A Service instance is owned by exactly one
// request context and must never be shared across requests.
type Service interface {
	// Authenticate resolves and verifies the bound credential, returning
	// the authenticated identity. Safe to call repeatedly; the result is
	// cached after the first successful call.
	Authenticate(ctx context.Context) (*Identity, error)

	// Session returns a handle to the authenticated session. It implies
	// Authenticate on first use.
	Session(ctx context.Context) (*Session, error)

	// IsValid reports whether the bound credential is still usable without
	// performing any network or crypto work.
	IsValid() bool

	// Provider returns the auth variant name ("jwt" or "iam").
	Provider() string
}

// Session is a handle to an authenticated session. Exactly one of the
// provider-specific fields is populated, matching Provider.
type Session struct {
	// Provider is the auth variant that produced this session.
	Provider string

	// Claims holds the verified token claims for JWT sessions.
	Claims jwt.MapClaims

	// Token is the raw bearer token for JWT sessions (for pass-through).
	Token string

	// AWSConfig holds the resolved credential chain for IAM sessions.
	AWSConfig *aws.Config
}
