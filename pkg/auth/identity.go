// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Identity represents an authenticated user or service account.
type Identity struct {
	// Subject is the unique identifier for the principal.
	Subject string

	// Name is the human-readable name.
	Name string

	// Email is the email address (if available).
	Email string

	// Claims contains additional claims from the auth token.
	Claims jwt.MapClaims

	// Provider is the auth variant that produced this identity.
	Provider string
}

// claimsToIdentity converts JWT claims to an Identity. It requires the
// 'sub' claim per OIDC Core 1.0 spec § 5.1.
func claimsToIdentity(claims jwt.MapClaims) (*Identity, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.New("missing or invalid 'sub' claim")
	}

	identity := &Identity{
		Subject:  sub,
		Claims:   claims,
		Provider: ProviderJWT,
	}

	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}

	return identity, nil
}
