// Package auth resolves bearer credentials to the principal that presented them.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// Principal is the identity behind a valid bearer credential. It is scoped to
// a single request and never stored.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Validator checks the raw Authorization header of a request.
type Validator interface {
	// Validate returns the principal for header, or an Unauthenticated error.
	Validate(ctx context.Context, header string) (*Principal, error)
}

var (
	errMissingHeader = errors.New("authorization header missing")
	errBadScheme     = errors.New("authorization scheme is not bearer")
	errEmptyToken    = errors.New("bearer token empty")
)

// ParseBearer extracts the token from an "Authorization: Bearer <token>" value.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", llm.Unauthenticated(errMissingHeader)
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", llm.Unauthenticated(errBadScheme)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", llm.Unauthenticated(errEmptyToken)
	}

	return token, nil
}
