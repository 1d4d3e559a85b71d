package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-session-gate/internal/errors"
)

const maxResponseBytes = 1 << 20

// Client calls a remote account service over JSON/HTTP
type Client struct {
	baseURL string
	http    *http.Client
}

var _ Service = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

func NewClientWithHTTP(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: client}
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var result LoginResult
	if err := c.post(ctx, "/login", creds, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, fmt.Errorf("%w: login response missing token", errors.ErrIdentityService)
	}
	return &result, nil
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	var result SignupResult
	if err := c.post(ctx, "/signup", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("[identity Client] encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("[identity Client] build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errors.ErrIdentityService, path, err)
	}
	defer resp.Body.Close()

	reader := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		_ = json.NewDecoder(reader).Decode(&errResp)
		return statusError(path, resp.StatusCode, errResp)
	}

	if err := json.NewDecoder(reader).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", errors.ErrIdentityService, path, err)
	}
	return nil
}

func statusError(path string, status int, body ErrorResponse) error {
	var kind error
	switch status {
	case http.StatusNotFound:
		kind = errors.ErrAccountNotFound
	case http.StatusConflict:
		kind = errors.ErrAccountExists
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = errors.ErrInvalidCredentials
	case http.StatusBadRequest:
		kind = errors.ErrInvalidRequest
	default:
		return fmt.Errorf("%w: %s returned status %d %s", errors.ErrIdentityService, path, status, body.Error)
	}
	if body.Description != "" {
		return fmt.Errorf("%w: %s", kind, body.Description)
	}
	return kind
}
