package backend

import "context"

// Credentials supplies the bearer token for backend calls.
type Credentials interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token returns the token, or ErrMissingCredentials when it is empty.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrMissingCredentials
	}
	return string(t), nil
}

// CredentialsFunc adapts a function to the Credentials interface.
type CredentialsFunc func(ctx context.Context) (string, error)

// Token calls f(ctx).
func (f CredentialsFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}
