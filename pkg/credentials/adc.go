package credentials

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// cloudPlatformScope is the OAuth scope Vertex AI requires.
const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ADC yields tokens from Application Default Credentials. The underlying
// oauth2 token source caches and refreshes tokens on its own.
type ADC struct {
	source oauth2.TokenSource
}

// NewADC discovers Application Default Credentials with the cloud-platform
// scope. ctx is used for the discovery only.
func NewADC(ctx context.Context) (*ADC, error) {
	creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("resolving application default credentials: %w", err)
	}

	return &ADC{source: creds.TokenSource}, nil
}

func (a *ADC) Token(_ context.Context) (string, error) {
	token, err := a.source.Token()
	if err != nil {
		return "", fmt.Errorf("fetching access token: %w", err)
	}

	return token.AccessToken, nil
}
