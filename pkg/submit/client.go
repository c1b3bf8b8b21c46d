// Package submit wraps the remote claims API. The runner only depends on
// the Client and StatusClient interfaces so tests can substitute fakes.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/careops/claimrunner/pkg/claim"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single submission round-trip.
const DefaultTimeout = 30 * time.Second

// ErrStatusNotFound is returned by FetchStatus when the remote system of
// record has no claim with the given identifier.
var ErrStatusNotFound = errors.New("claim not found in system of record")

// ValidationError pinpoints a rejected field on a submitted payload.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SubmitResult is the structured outcome of one submission attempt.
// Raw carries the unparsed response body for the audit trail.
type SubmitResult struct {
	Success          bool              `json:"success"`
	ClaimID          string            `json:"claimId,omitempty"`
	Message          string            `json:"message,omitempty"`
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
	Raw              string            `json:"-"`
}

// ClaimStatus is the remote system of record's view of a claim.
type ClaimStatus struct {
	Outcome    string `json:"outcome,omitempty"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	RuleStatus string `json:"ruleStatus,omitempty"`
}

// Client submits claim payloads to the remote claims API.
type Client interface {
	Submit(ctx context.Context, payload *claim.SubmissionPayload) (*SubmitResult, error)
}

// StatusClient fetches the current remote status of a previously
// submitted claim.
type StatusClient interface {
	FetchStatus(ctx context.Context, claimID, hint string) (*ClaimStatus, error)
}

// Config for the HTTP client.
type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// HTTPClient implements Client and StatusClient over HTTP/JSON.
type HTTPClient struct {
	log  logrus.FieldLogger
	cfg  *Config
	http *http.Client
}

// Compile-time interface checks.
var (
	_ Client       = (*HTTPClient)(nil)
	_ StatusClient = (*HTTPClient)(nil)
)

// NewHTTPClient creates an HTTP client for the remote claims API.
func NewHTTPClient(log logrus.FieldLogger, cfg *Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPClient{
		log:  log.WithField("component", "submit-client"),
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

// Submit POSTs the payload to the claims endpoint. Responses that carry a
// parseable result body, including 4xx validation rejections, map to a
// SubmitResult; transport failures and unparseable bodies surface as
// errors for the runner's unexpected-exception path.
func (c *HTTPClient) Submit(
	ctx context.Context,
	payload *claim.SubmissionPayload,
) (*SubmitResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.Endpoint+"/claims", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("claims API returned %d: %s",
			resp.StatusCode, truncate(string(raw), 256))
	}

	var result SubmitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parsing response (status %d): %w", resp.StatusCode, err)
	}

	result.Raw = string(raw)

	// 4xx bodies are structured rejections, never successes, even when
	// the remote forgets to clear the flag.
	if resp.StatusCode >= http.StatusBadRequest {
		result.Success = false
	}

	c.log.WithFields(logrus.Fields{
		"title":   payload.Title,
		"status":  resp.StatusCode,
		"success": result.Success,
	}).Debug("Claim submitted")

	return &result, nil
}

// FetchStatus queries the system of record for a claim's current status.
// The optional hint narrows the remote lookup (e.g., a provider ID).
func (c *HTTPClient) FetchStatus(
	ctx context.Context,
	claimID, hint string,
) (*ClaimStatus, error) {
	url := c.cfg.Endpoint + "/claims/" + claimID + "/status"
	if hint != "" {
		url += "?hint=" + hint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("claim %s: %w", claimID, ErrStatusNotFound)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status API returned %d: %s",
			resp.StatusCode, truncate(string(raw), 256))
	}

	var status ClaimStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("parsing status response: %w", err)
	}

	return &status, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
