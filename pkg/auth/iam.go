// SPDX-FileCopyrightText: Copyright 2025 Quilt Data, Inc.
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/quiltdata/quilt-mcp/pkg/logger"
)

// CallerIdentityAPI is the subset of the STS client used to resolve the
// caller identity. Satisfied by *sts.Client; tests inject fakes.
type CallerIdentityAPI interface {
	GetCallerIdentity(
		ctx context.Context,
		params *sts.GetCallerIdentityInput,
		optFns ...func(*sts.Options),
	) (*sts.GetCallerIdentityOutput, error)
}

// IAMService authenticates using the ambient AWS credential chain: local
// quilt3 session credentials if configured, then the standard environment,
// shared-config and instance-role sources resolved by the SDK.
//
// Construction does no work; the credential chain and STS caller identity
// are resolved lazily on first use and cached.
type IAMService struct {
	mu       sync.Mutex
	cfg      *aws.Config
	stsAPI   CallerIdentityAPI
	identity *Identity

	// newSTS allows tests to substitute the STS client constructor.
	newSTS func(aws.Config) CallerIdentityAPI
}

// NewIAMService constructs an IAMService. No credential resolution happens
// until Authenticate or Session is called.
func NewIAMService() *IAMService {
	return &IAMService{
		newSTS: func(cfg aws.Config) CallerIdentityAPI {
			return sts.NewFromConfig(cfg)
		},
	}
}

// Provider returns the auth variant name.
func (*IAMService) Provider() string {
	return ProviderIAM
}

// IsValid reports whether the service can still produce credentials.
// Before the first Authenticate call this is optimistically true; after a
// successful call it remains true for the service lifetime (request-scoped,
// so credential rotation mid-request is not a concern).
func (*IAMService) IsValid() bool {
	return true
}

// Authenticate resolves the ambient credential chain and the STS caller
// identity. The result is cached for the service lifetime.
func (s *IAMService) Authenticate(ctx context.Context) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity != nil {
		return s.identity, nil
	}

	cfg, err := s.loadConfigLocked(ctx)
	if err != nil {
		return nil, err
	}

	if s.stsAPI == nil {
		s.stsAPI = s.newSTS(*cfg)
	}
	out, err := s.stsAPI.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	identity := &Identity{Provider: ProviderIAM}
	if out.Arn != nil {
		identity.Subject = *out.Arn
	}
	if out.UserId != nil {
		identity.Name = *out.UserId
	}

	logger.Debugw("resolved IAM caller identity", "subject", identity.Subject)

	s.identity = identity
	return identity, nil
}

// Session returns a handle to the resolved AWS credential chain, loading
// it on first use. Unlike Authenticate it does not call STS, so it stays
// network-free when the chain resolves from local sources.
func (s *IAMService) Session(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.loadConfigLocked(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{
		Provider:  ProviderIAM,
		AWSConfig: cfg,
	}, nil
}

func (s *IAMService) loadConfigLocked(ctx context.Context) (*aws.Config, error) {
	if s.cfg != nil {
		return s.cfg, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load AWS credential chain: %v", ErrNotAuthenticated, err)
	}
	s.cfg = &cfg
	return s.cfg, nil
}
