// Package verification submits instructions to the ID-verification provider.
package verification

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/example/intake/internal/core/instruction"
	"github.com/example/intake/internal/ports/secondary"
	"github.com/example/intake/internal/version"
)

// ErrDisabled is returned by Disabled.Submit.
var ErrDisabled = errors.New("identity verification is not configured")

// Config holds the provider endpoint and client credentials.
type Config struct {
	Provider     string
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// Client is the provider's HTTP API. Bearer tokens come from the
// client-credentials flow and are reused until they expire.
type Client struct {
	provider string
	endpoint string
	http     *http.Client
}

// New creates a Client. ctx bounds token refreshes for the client's lifetime.
func New(ctx context.Context, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	// token requests share the timeout
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := cc.Client(ctx)
	httpClient.Timeout = timeout

	return &Client{
		provider: cfg.Provider,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/v1/checks",
		http:     httpClient,
	}
}

// Submit sends the instruction for checking and returns the raw response.
func (c *Client) Submit(ctx context.Context, inst *instruction.Instruction) (*secondary.VerificationResult, error) {
	body, err := json.Marshal(buildRequest(inst))
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verification request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read verification response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("verification provider returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	return &secondary.VerificationResult{
		Provider:      c.provider,
		OverallResult: overallResult(raw),
		Raw:           raw,
	}, nil
}

type checkResponse struct {
	OverallResult struct {
		Result string `json:"result"`
	} `json:"overallResult"`
}

// overallResult extracts the headline result, or "unknown" when the
// response does not carry one.
func overallResult(raw []byte) string {
	var parsed checkResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.OverallResult.Result == "" {
		return "unknown"
	}
	return strings.ToLower(parsed.OverallResult.Result)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Disabled is used when no provider is configured. Every submission fails,
// so the task is recorded as failed rather than silently dropped.
type Disabled struct{}

// Submit always returns ErrDisabled.
func (Disabled) Submit(context.Context, *instruction.Instruction) (*secondary.VerificationResult, error) {
	return nil, ErrDisabled
}

var (
	_ secondary.VerificationClient = (*Client)(nil)
	_ secondary.VerificationClient = Disabled{}
)
