// Package gemini is a minimal REST client for the Vertex AI Gemini
// generateContent APIs. It speaks the publisher model endpoints directly
// (generateContent and streamGenerateContent?alt=sse) and classifies every
// failure into the gateway error taxonomy.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/patchbay/pkg/apierror"
)

const (
	// DefaultRegion is the Vertex AI region used when none is configured.
	DefaultRegion = "us-central1"

	// requestTimeout bounds a single exchange, including streaming reads.
	requestTimeout = 5 * time.Minute

	// maxErrorBody caps how much of an upstream error body is read.
	maxErrorBody = 64 * 1024
)

// TokenSource yields a bearer token for a single request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config holds client configuration.
type Config struct {
	// Project is the Google Cloud project ID. Required.
	Project string

	// Region is the Vertex AI region (e.g. "us-central1").
	// Defaults to DefaultRegion if empty.
	Region string

	// Tokens yields bearer tokens for request authorization. Required.
	Tokens TokenSource

	// BaseURL overrides the regional Vertex endpoint, e.g. to point at a
	// test server. Defaults to https://{region}-aiplatform.googleapis.com.
	BaseURL string
}

// Client calls the Vertex AI generateContent REST API for a single project
// and region. Safe for concurrent use.
type Client struct {
	project    string
	region     string
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Project == "" {
		return nil, errors.New("gemini: project is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("gemini: token source is required")
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s-aiplatform.googleapis.com", region)
	}

	return &Client{
		project: cfg.Project,
		region:  region,
		baseURL: baseURL,
		tokens:  cfg.Tokens,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}, nil
}

// endpoint returns the full URL for a model verb on the publisher endpoint.
func (c *Client) endpoint(model, verb string) string {
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		c.baseURL, c.project, c.region, model, verb)
}

// Generate performs a blocking generateContent call and returns the full
// response.
func (c *Client) Generate(ctx context.Context, model string, req *GenerateRequest) (*GenerateResponse, error) {
	resp, err := c.post(ctx, c.endpoint(model, "generateContent"), req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, classifyStatus(resp.StatusCode, body)
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apierror.Wrap(apierror.KindUpstreamError, "decoding vertex response", err)
	}

	return &out, nil
}

// GenerateStream opens a streamGenerateContent SSE stream. The caller owns
// the returned Stream and must Close it.
func (c *Client) GenerateStream(ctx context.Context, model string, req *GenerateRequest) (*Stream, error) {
	resp, err := c.post(ctx, c.endpoint(model, "streamGenerateContent")+"?alt=sse", req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode, body)
	}

	return newStream(resp.Body), nil
}

// post marshals body and issues an authorized POST to url.
func (c *Client) post(ctx context.Context, url string, body *GenerateRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindUnknown, "marshaling vertex request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apierror.Wrap(apierror.KindUnknown, "building vertex request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindUpstreamAuth, "resolving credentials", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}

	return resp, nil
}

// classifyTransport maps request transport failures. A canceled context is
// the caller hanging up, not an upstream fault.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return apierror.ClientDisconnected(err)
	}
	return apierror.Wrap(apierror.KindUpstreamUnavailable, "vertex unreachable", err)
}

// classifyStatus maps a non-200 Vertex status and error body onto the
// gateway failure taxonomy.
func classifyStatus(status int, body []byte) error {
	return classify(status, errorMessage(body))
}

func classify(status int, message string) error {
	switch {
	case status == http.StatusBadRequest:
		return apierror.New(apierror.KindInvalidRequest, message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apierror.New(apierror.KindUpstreamAuth, message)
	case status == http.StatusNotFound:
		return apierror.New(apierror.KindInvalidModel, message)
	case status == http.StatusTooManyRequests:
		return apierror.New(apierror.KindRateLimited, message)
	case status >= 500:
		return apierror.New(apierror.KindUpstreamUnavailable, message)
	default:
		return apierror.Newf(apierror.KindUpstreamError, "vertex returned status %d: %s", status, message)
	}
}

// errorMessage extracts the message from a Google API error envelope,
// falling back to the raw body.
func errorMessage(body []byte) string {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "vertex returned an empty error body"
	}
	return trimmed
}
