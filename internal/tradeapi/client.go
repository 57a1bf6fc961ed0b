// Package tradeapi is the HTTP client of the external trade execution service.
package tradeapi

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
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 4 * time.Second
	DefaultBackoffMult = 2.0
	DefaultSlippageBps = 500
)

// ErrTradeRejected is returned when the service answers but refuses the trade.
var ErrTradeRejected = errors.New("trade rejected by executor")

// RejectedError carries the service's refusal.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("trade rejected (status %d): %s", e.StatusCode, e.Message)
}

func (e *RejectedError) Unwrap() error { return ErrTradeRejected }

// ExchangeParams are the venue-specific accounts a trade needs.
type ExchangeParams struct {
	Dex                   string `json:"dex"`
	Pool                  string `json:"pool,omitempty"`
	BaseMint              string `json:"base_mint,omitempty"`
	QuoteMint             string `json:"quote_mint,omitempty"`
	PoolBaseTokenAccount  string `json:"pool_base_token_account,omitempty"`
	PoolQuoteTokenAccount string `json:"pool_quote_token_account,omitempty"`
	BondingCurve          string `json:"bonding_curve,omitempty"`
	CoinCreator           string `json:"coin_creator,omitempty"`
}

// BuyRequest is the body of POST /api/buy.
type BuyRequest struct {
	Mint        string  `json:"mint"`
	AmountSol   float64 `json:"amount_sol"`
	SlippageBps int     `json:"slippage_bps"`
	ExchangeParams
}

// SellRequest is the body of POST /api/sell.
// Exactly one of AmountTokens and SellAll is set.
type SellRequest struct {
	Mint         string  `json:"mint"`
	AmountTokens *uint64 `json:"amount_tokens,omitempty"` // raw units
	SellAll      bool    `json:"sell_all,omitempty"`
	SlippageBps  int     `json:"slippage_bps"`
	ExchangeParams
}

// TradeResponse is the service's answer to a buy or sell.
type TradeResponse struct {
	Success      bool     `json:"success"`
	Signature    string   `json:"signature,omitempty"`
	Message      string   `json:"message"`
	AmountTokens *uint64  `json:"amount_tokens,omitempty"` // raw units bought or sold
	AmountSol    *float64 `json:"amount_sol,omitempty"`
	Price        *float64 `json:"price,omitempty"` // SOL per whole token
	Fee          *float64 `json:"fee,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Client calls the trade execution service.
type Client struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Buy submits a buy. A response with success=false yields a *RejectedError.
func (c *Client) Buy(ctx context.Context, req BuyRequest) (*TradeResponse, error) {
	if req.SlippageBps == 0 {
		req.SlippageBps = DefaultSlippageBps
	}
	return c.trade(ctx, "/api/buy", req)
}

// Sell submits a sell. A response with success=false yields a *RejectedError.
func (c *Client) Sell(ctx context.Context, req SellRequest) (*TradeResponse, error) {
	if req.SlippageBps == 0 {
		req.SlippageBps = DefaultSlippageBps
	}
	if req.AmountTokens == nil && !req.SellAll {
		return nil, fmt.Errorf("sell %s: amount_tokens or sell_all required", req.Mint)
	}
	return c.trade(ctx, "/api/sell", req)
}

func (c *Client) trade(ctx context.Context, path string, body any) (*TradeResponse, error) {
	var resp TradeResponse
	status, err := c.do(ctx, http.MethodPost, path, body, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, &RejectedError{StatusCode: status, Message: resp.Message}
	}
	return &resp, nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if _, err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckHealth returns an error unless the service reports status "ok".
func (c *Client) CheckHealth(ctx context.Context) error {
	h, err := c.Health(ctx)
	if err != nil {
		return fmt.Errorf("executor health: %w", err)
	}
	if h.Status != "ok" {
		return fmt.Errorf("executor %s unhealthy: status %q", h.Service, h.Status)
	}
	return nil
}

// do performs a request with retries and exponential backoff.
// Transport errors, 429 and 5xx are retried; other 4xx are terminal.
func (c *Client) do(ctx context.Context, method, path string, body, result any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return 0, fmt.Errorf("create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, &RejectedError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return resp.StatusCode, nil
	}

	return 0, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// errorMessage extracts "message" from a JSON error body, or returns the body.
func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return strings.TrimSpace(string(body))
}
