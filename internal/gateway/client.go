// Package gateway is the HTTP client for the MCP gateway's OAuth
// endpoints. The gateway owns the server-side state validation and the
// upstream provider token exchange; this client never talks to the
// third-party provider itself.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	initiatePath = "/api/oauth/start"
	exchangePath = "/api/oauth/exchange"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client. A nil httpClient gets a default
// with a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Initiate asks the gateway for an authorization URL and a state value.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	var resp InitiateResponse
	if err := c.post(ctx, initiatePath, req, &resp); err != nil {
		return InitiateResponse{}, err
	}

	return resp, nil
}

// Exchange redeems the authorization code for a credential handle.
func (c *Client) Exchange(ctx context.Context, req ExchangeRequest) (ExchangeResult, error) {
	var result ExchangeResult
	if err := c.post(ctx, exchangePath, req, &result); err != nil {
		return ExchangeResult{}, err
	}

	return result, nil
}

// errorBody is the gateway's error envelope. The message passes through
// to the user verbatim when present.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	if b.Message != "" {
		return b.Message
	}

	return b.Error
}

func (c *Client) post(ctx context.Context, path string, payload, decodeInto any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody errorBody
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && errBody.text() != "" {
			return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, errBody.text())
		}

		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(decodeInto); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
