// Package rest is the shared HTTP layer under every broker gateway: bearer
// auth, caller deadlines, circuit breaking, and NetworkError wrapping.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"traderail/internal/gateway/broker"
	"traderail/internal/pkg/circuit"
)

// TokenProvider supplies the bearer credential. Acquisition and refresh are
// external collaborators; the engine only reads the current token.
type TokenProvider interface {
	GetAccessToken() string
}

// StaticToken is a fixed credential, used in tests and for brokers whose
// refresh loop runs out of process.
type StaticToken string

func (t StaticToken) GetAccessToken() string { return string(t) }

// APIError is a non-2xx broker response.
type APIError struct {
	Broker     string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Broker, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Broker, e.StatusCode, e.Body)
}

// Client issues authenticated JSON requests against one broker base URL.
type Client struct {
	broker     string
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenProvider
	breaker    *circuit.Breaker
}

const (
	defaultTimeout   = 15 * time.Second
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// NewClient builds a client for the named broker.
func NewClient(brokerName, baseURL string, tokens TokenProvider, timeout time.Duration) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, fmt.Errorf("%s: base url cannot be empty", brokerName)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: parsing base url failed: %w", brokerName, err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		broker:     brokerName,
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		breaker:    circuit.NewBreaker(brokerName, breakerThreshold, breakerCooldown),
	}, nil
}

// SetHTTPClient swaps the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Do issues a request and decodes the JSON response into out (skipped when
// out is nil). Transport failures and timeouts come back as *NetworkError;
// non-2xx responses as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	raw, err := c.DoRaw(ctx, method, path, query, payload)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decoding response failed: %w", c.broker, err)
	}
	return nil
}

// DoRaw issues a request and returns the raw response body.
func (c *Client) DoRaw(ctx context.Context, method, path string, query url.Values, payload any) (json.RawMessage, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("rest client not initialized")
	}
	if !c.breaker.Allow() {
		return nil, &broker.NetworkError{Broker: c.broker, Op: method + " " + path,
			Err: fmt.Errorf("circuit open")}
	}

	endpoint := c.resolve(path, query)
	var body io.Reader
	if payload != nil {
		buf, err := encodePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request failed: %w", c.broker, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: building request failed: %w", c.broker, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := strings.TrimSpace(c.tokens.GetAccessToken()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, &broker.NetworkError{Broker: c.broker, Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if resp.StatusCode >= 300 {
		c.breaker.RecordFailure()
		return nil, &APIError{Broker: c.broker, StatusCode: resp.StatusCode,
			Body: strings.TrimSpace(string(data))}
	}
	c.breaker.RecordSuccess()
	return data, nil
}

func encodePayload(payload any) ([]byte, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	if raw, ok := payload.([]byte); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}

func (c *Client) resolve(path string, query url.Values) *url.URL {
	trimmed := strings.TrimSpace(path)
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimSuffix(endpoint.Path, "/") + trimmed
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}
	return &endpoint
}
