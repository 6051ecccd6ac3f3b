package credentials

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// gcloudTokenTTL is how long a fetched token is reused. gcloud tokens live
// for an hour; refreshing at the half-life leaves a comfortable margin.
const gcloudTokenTTL = 30 * time.Minute

// Gcloud shells out to the gcloud CLI for an access token. Last-resort
// source for developer machines without Application Default Credentials.
type Gcloud struct {
	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewGcloud creates an empty-cache Source backed by the gcloud CLI.
func NewGcloud() *Gcloud {
	return &Gcloud{}
}

func (g *Gcloud) Token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && time.Now().Before(g.expires) {
		return g.token, nil
	}

	out, err := exec.CommandContext(ctx, "gcloud", "auth", "print-access-token").Output()
	if err != nil {
		return "", fmt.Errorf("running gcloud auth print-access-token: %w", err)
	}

	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", errors.New("gcloud returned an empty token")
	}

	g.token = token
	g.expires = time.Now().Add(gcloudTokenTTL)

	return g.token, nil
}
