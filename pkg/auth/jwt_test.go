// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiltdata/quilt-mcp/pkg/mode"
)

const testSecret = "test-signing-secret"

// signToken mints an HS256 token for tests, merging extra claims over a
// valid baseline.
func signToken(t *testing.T, secret string, extra jwt.MapClaims) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": "user-1",
		"iss": "https://issuer.example.com",
		"aud": "quilt-mcp",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func multitenantConfig() *mode.Config {
	return mode.New(mode.Settings{
		Multitenant:      true,
		JWTSigningSecret: testSecret,
		JWTIssuer:        "https://issuer.example.com",
		JWTAudience:      "quilt-mcp",
		CatalogURL:       "https://catalog.example.com",
	})
}

func TestParseBearerClaims(t *testing.T) {
	t.Parallel()

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()
		_, err := ParseBearerClaims("")
		require.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()
		_, err := ParseBearerClaims("not-a-jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("valid token yields claims without verification", func(t *testing.T) {
		t.Parallel()
		token := signToken(t, "some-other-secret", jwt.MapClaims{"tenant_id": "acme"})
		claims, err := ParseBearerClaims(token)
		require.NoError(t, err)
		assert.Equal(t, "acme", claims["tenant_id"])
	})
}

func TestJWTServiceAuthenticate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr error
	}{
		{
			name: "valid signed token authenticates",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, nil)
			},
		},
		{
			name: "wrong signature is rejected",
			token: func(t *testing.T) string {
				return signToken(t, "wrong-secret", nil)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "expired token is rejected",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{
					"exp": time.Now().Add(-time.Hour).Unix(),
				})
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer is rejected",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"iss": "https://evil.example.com"})
			},
			wantErr: ErrInvalidIssuer,
		},
		{
			name: "wrong audience is rejected",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"aud": "someone-else"})
			},
			wantErr: ErrInvalidAudience,
		},
		{
			name: "missing sub claim is rejected",
			token: func(t *testing.T) string {
				return signToken(t, testSecret, jwt.MapClaims{"sub": ""})
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, err := NewJWTService(multitenantConfig(), tt.token(t))
			require.NoError(t, err)

			identity, err := svc.Authenticate(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", identity.Subject)
			assert.Equal(t, ProviderJWT, identity.Provider)
		})
	}
}

func TestJWTServiceAuthenticateCaches(t *testing.T) {
	t.Parallel()

	svc, err := NewJWTService(multitenantConfig(), signToken(t, testSecret, nil))
	require.NoError(t, err)

	first, err := svc.Authenticate(context.Background())
	require.NoError(t, err)
	second, err := svc.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestJWTServiceNoSecretValidatesClaimsOnly(t *testing.T) {
	t.Parallel()

	cfg := mode.New(mode.Settings{Multitenant: false})

	t.Run("unexpired token accepted", func(t *testing.T) {
		t.Parallel()
		svc, err := NewJWTService(cfg, signToken(t, "any-secret", nil))
		require.NoError(t, err)

		identity, err := svc.Authenticate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.Subject)
	})

	t.Run("expired token rejected even without a secret", func(t *testing.T) {
		t.Parallel()
		token := signToken(t, "any-secret", jwt.MapClaims{
			"exp": time.Now().Add(-time.Minute).Unix(),
		})
		svc, err := NewJWTService(cfg, token)
		require.NoError(t, err)

		_, err = svc.Authenticate(context.Background())
		require.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestJWTServiceIsValid(t *testing.T) {
	t.Parallel()

	cfg := multitenantConfig()

	svc, err := NewJWTService(cfg, signToken(t, testSecret, nil))
	require.NoError(t, err)
	assert.True(t, svc.IsValid())

	expired, err := NewJWTService(cfg, signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(-time.Minute).Unix(),
	}))
	require.NoError(t, err)
	assert.False(t, expired.IsValid())
}

func TestJWTServiceSession(t *testing.T) {
	t.Parallel()

	token := signToken(t, testSecret, nil)
	svc, err := NewJWTService(multitenantConfig(), token)
	require.NoError(t, err)

	session, err := svc.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProviderJWT, session.Provider)
	assert.Equal(t, token, session.Token)
	assert.Equal(t, "user-1", session.Claims["sub"])
	assert.Nil(t, session.AWSConfig)
}
