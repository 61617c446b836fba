package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentdesk/console/internal/auth"
)

func newService(now func() time.Time) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://id.consentdesk.test",
		Audience:   "consent-console",
		Now:        now,
	})
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newService(nil)

	token, expiresAt, err := svc.Issue("op_123", auth.RoleAdmin)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "op_123", claims.Subject)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, "https://id.consentdesk.test", claims.Issuer)
	assert.True(t, claims.HasRole(auth.RoleAdmin, auth.RoleViewer))
	assert.False(t, claims.HasRole(auth.RoleService))
}

func TestJWTService_IssueRequiresSubject(t *testing.T) {
	_, _, err := newService(nil).Issue("", auth.RoleAdmin)
	assert.ErrorIs(t, err, auth.ErrMissingSubject)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newService(nil)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTService_WrongAudience(t *testing.T) {
	other := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "https://id.consentdesk.test",
		Audience:   "consent-backend",
	})
	token, _, err := other.Issue("svc", auth.RoleService)
	require.NoError(t, err)

	_, err = newService(nil).Validate(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTService_WrongSigningMethod(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "op_1",
		Issuer:    "https://id.consentdesk.test",
		Audience:  jwt.ClaimStrings{"consent-console"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newService(nil).Validate(signed)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTService_Expired(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	issuer := newService(func() time.Time { return issuedAt })
	token, _, err := issuer.Issue("op_1", auth.RoleViewer)
	require.NoError(t, err)

	_, err = newService(nil).Validate(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestServiceTokenSource_CachesUntilNearExpiry(t *testing.T) {
	current := time.Now()
	svc := newService(func() time.Time { return current })
	src := auth.NewServiceTokenSource(svc, "console-api")
	ctx := context.Background()

	first, err := src.Token(ctx)
	require.NoError(t, err)

	current = current.Add(5 * time.Minute)
	second, err := src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second, "cached while fresh")

	current = current.Add(10 * time.Minute)
	third, err := src.Token(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "replaced within a minute of expiry")

	claims, err := svc.Validate(third)
	require.NoError(t, err)
	assert.Equal(t, "console-api", claims.Subject)
	assert.Equal(t, auth.RoleService, claims.Role)
}

func TestServiceTokenSource_CancelledContext(t *testing.T) {
	src := auth.NewServiceTokenSource(newService(nil), "console-api")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Token(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
