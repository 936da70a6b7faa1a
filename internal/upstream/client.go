// Package upstream is the REST client for the external policy, claim and
// visit services. All field-name normalization happens at this boundary so
// the workflow packages only ever see canonical shapes.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/insurego/claims-gateway/internal/auth"
)

// StatusError is a non-2xx upstream response. Transport failures are plain
// wrapped errors; both count as the NetworkError catch-all for callers.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s service returned %d: %s", e.Service, e.Code, e.Body)
}

type Client struct {
	policyBase string
	claimBase  string
	visitBase  string
	http       *http.Client
}

func NewClient(policyBase, claimBase, visitBase string, timeout time.Duration) *Client {
	return &Client{
		policyBase: policyBase,
		claimBase:  claimBase,
		visitBase:  visitBase,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// do issues one request with the caller's bearer token forwarded. There are
// no retries: every user action is safe to re-invoke manually, and queueing
// failed mutations behind the user's back is exactly what this gateway must
// not do.
func (c *Client) do(ctx context.Context, service, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", service, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", service, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := auth.TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s service: %w", service, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", service, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Service: service, Code: resp.StatusCode, Body: truncate(string(data), 256)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", service, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
