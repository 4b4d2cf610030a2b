// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quiltdata/quilt-mcp/pkg/mode"
)

// JWTService authenticates a request using the bearer token it was
// constructed with. Construction performs a structural parse only;
// signature and claims verification happen lazily on the first
// Authenticate call and the outcome is cached.
type JWTService struct {
	token    string
	secret   string
	issuer   string
	audience string

	// structural claims, available before verification for tenant resolution
	claims jwt.MapClaims

	mu       sync.Mutex
	verified bool
	identity *Identity
}

// NewJWTService constructs a JWTService bound to the given bearer token.
// The token must be structurally valid JWT; no signature verification or
// network calls happen here.
func NewJWTService(cfg *mode.Config, token string) (*JWTService, error) {
	claims, err := ParseBearerClaims(token)
	if err != nil {
		return nil, err
	}
	return &JWTService{
		token:    token,
		secret:   cfg.JWTSigningSecret(),
		issuer:   cfg.JWTIssuer(),
		audience: cfg.JWTAudience(),
		claims:   claims,
	}, nil
}

// ParseBearerClaims parses a bearer token without verifying its signature
// and returns its claims. Used for structural validation at selection time
// and for tenant resolution, which may legitimately run before the lazy
// signature verification.
func ParseBearerClaims(token string) (jwt.MapClaims, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Provider returns the auth variant name.
func (*JWTService) Provider() string {
	return ProviderJWT
}

// Claims returns the structurally parsed (not yet verified) token claims.
func (s *JWTService) Claims() jwt.MapClaims {
	return s.claims
}

// IsValid reports whether the token is structurally usable: present and
// not past its expiration time. No signature check is performed.
func (s *JWTService) IsValid() bool {
	exp, err := s.claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.After(time.Now())
}

// Authenticate verifies the token signature and claims and returns the
// authenticated identity. The result is cached for the service lifetime.
func (s *JWTService) Authenticate(_ context.Context) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.verified {
		return s.identity, nil
	}

	claims, err := s.verify()
	if err != nil {
		return nil, err
	}

	identity, err := claimsToIdentity(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	s.verified = true
	s.identity = identity
	return identity, nil
}

// Session returns the authenticated JWT session, verifying the token on
// first use.
func (s *JWTService) Session(ctx context.Context) (*Session, error) {
	identity, err := s.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{
		Provider: ProviderJWT,
		Claims:   identity.Claims,
		Token:    s.token,
	}, nil
}

// verify performs full signature and claims verification. When no signing
// secret is configured (single-user development deployments), verification
// is limited to expiry and issuer/audience checks on the unverified claims.
func (s *JWTService) verify() (jwt.MapClaims, error) {
	if s.secret == "" {
		if err := s.validateClaims(s.claims); err != nil {
			return nil, err
		}
		return s.claims, nil
	}

	claims := jwt.MapClaims{}
	token, err := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	).ParseWithClaims(s.token, claims, func(*jwt.Token) (any, error) {
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if err := s.validateClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// validateClaims checks issuer, audience and expiration against the mode
// configuration.
func (s *JWTService) validateClaims(claims jwt.MapClaims) error {
	if s.issuer != "" {
		issuer, err := claims.GetIssuer()
		if err != nil || issuer != s.issuer {
			return ErrInvalidIssuer
		}
	}

	if s.audience != "" {
		audiences, err := claims.GetAudience()
		if err != nil {
			return ErrInvalidAudience
		}
		found := false
		for _, aud := range audiences {
			if aud == s.audience {
				found = true
				break
			}
		}
		if !found {
			return ErrInvalidAudience
		}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil || exp.Before(time.Now()) {
		return ErrTokenExpired
	}

	return nil
}
