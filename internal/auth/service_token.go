package auth

import (
	"context"
	"sync"
	"time"
)

// refreshBefore is how long before expiry a cached service token is replaced.
const refreshBefore = time.Minute

// ServiceTokenSource mints service tokens for backend calls and caches the
// current one until it is about to expire. It is safe for concurrent use.
type ServiceTokenSource struct {
	issuer  *JWTService
	subject string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewServiceTokenSource creates a token source issuing tokens for subject
// with the service role.
func NewServiceTokenSource(issuer *JWTService, subject string) *ServiceTokenSource {
	return &ServiceTokenSource{issuer: issuer, subject: subject}
}

// Token returns a valid service token.
func (s *ServiceTokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.issuer.now().Add(refreshBefore).Before(s.expiresAt) {
		return s.token, nil
	}

	token, expiresAt, err := s.issuer.Issue(s.subject, RoleService)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expiresAt = expiresAt
	return token, nil
}
