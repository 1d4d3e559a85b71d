package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/token"
)

const maxRenewalResponseBytes = 1 << 20

// RenewalRequest is the body posted to the renewal endpoint
type RenewalRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// RenewalResponse is the body returned by the renewal endpoint
type RenewalResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// HTTPRenewer calls the identity service's renewal endpoint
type HTTPRenewer struct {
	endpoint string
	client   *http.Client
}

var _ Renewer = (*HTTPRenewer)(nil)

// NewHTTPRenewer creates a renewer whose only deadline is the client timeout
func NewHTTPRenewer(endpoint string, timeout time.Duration) *HTTPRenewer {
	return NewHTTPRenewerWithClient(endpoint, &http.Client{Timeout: timeout})
}

func NewHTTPRenewerWithClient(endpoint string, client *http.Client) *HTTPRenewer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRenewer{endpoint: endpoint, client: client}
}

// Renew posts the current pair and returns the renewed one. 4xx responses and
// responses missing a token are rejections; transport failures and 5xx are
// reported as the endpoint being unavailable.
func (r *HTTPRenewer) Renew(ctx context.Context, current token.Pair) (token.Pair, error) {
	body, err := json.Marshal(RenewalRequest{Token: current.AccessToken, RefreshToken: current.RefreshToken})
	if err != nil {
		return token.Pair{}, fmt.Errorf("[HTTPRenewer Renew] encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return token.Pair{}, fmt.Errorf("[HTTPRenewer Renew] build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return token.Pair{}, fmt.Errorf("%w: %w", errors.ErrRenewalUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRenewalResponseBytes))
		if resp.StatusCode >= 500 {
			return token.Pair{}, fmt.Errorf("%w: status %d", errors.ErrRenewalUnavailable, resp.StatusCode)
		}
		return token.Pair{}, fmt.Errorf("%w: status %d", errors.ErrRenewalRejected, resp.StatusCode)
	}

	var renewed RenewalResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRenewalResponseBytes)).Decode(&renewed); err != nil {
		return token.Pair{}, fmt.Errorf("%w: decode response: %w", errors.ErrRenewalRejected, err)
	}

	pair := token.Pair{AccessToken: renewed.Token, RefreshToken: renewed.RefreshToken}
	if !pair.Complete() {
		return token.Pair{}, errors.ErrRenewalMissingFields
	}
	return pair, nil
}
