// Package credentials resolves Google Cloud access tokens for Vertex AI
// calls. A Source yields a bearer token per request; Resolve picks the
// first workable source from a static token, Application Default
// Credentials, and the gcloud CLI.
package credentials

import (
	"context"
	"errors"
	"os/exec"
)

// Source yields a bearer token for a single backend request.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed access token, typically injected through configuration
// for tests and short-lived environments such as CI.
type Static struct {
	token string
}

// NewStatic creates a Source that always returns token.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

func (s *Static) Token(_ context.Context) (string, error) {
	if s.token == "" {
		return "", errors.New("static token is empty")
	}
	return s.token, nil
}

// Resolve picks the first workable source: a static token when configured,
// then Application Default Credentials, then the gcloud CLI.
func Resolve(ctx context.Context, staticToken string) (Source, error) {
	if staticToken != "" {
		return NewStatic(staticToken), nil
	}

	if adc, err := NewADC(ctx); err == nil {
		return adc, nil
	}

	if _, err := exec.LookPath("gcloud"); err == nil {
		return NewGcloud(), nil
	}

	return nil, errors.New("no vertex credentials found: set an access token, configure application default credentials, or install gcloud")
}
