package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// RPC client defaults.
const (
	DefaultRPCTimeout  = 10 * time.Second
	DefaultRPCAttempts = 3
	DefaultRPCBackoff  = 250 * time.Millisecond
	DefaultCommitment  = "confirmed"

	// maxAccountsPerCall is the getMultipleAccounts limit of public nodes.
	maxAccountsPerCall = 100
)

// codeNodeUnhealthy is returned by a node that is behind the cluster.
// Another attempt usually lands on a healthy node behind the load balancer.
const codeNodeUnhealthy = -32005

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// StatusError is a non-200 HTTP response from the node.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rpc http %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var re *RPCError
	if errors.As(err, &re) {
		return re.Code == codeNodeUnhealthy
	}
	// Transport and decode failures
	return true
}

// Account is the decoded state of an on-chain account.
type Account struct {
	Pubkey     string
	Lamports   uint64
	Owner      string
	Data       []byte
	Executable bool
}

// RPCClient reads account state over Solana JSON-RPC.
type RPCClient struct {
	endpoint   string
	http       *http.Client
	attempts   int
	backoff    time.Duration
	commitment string
	nextID     atomic.Uint64
}

// RPCOption configures an RPCClient.
type RPCOption func(*RPCClient)

// WithRPCTimeout bounds each HTTP request.
func WithRPCTimeout(d time.Duration) RPCOption {
	return func(c *RPCClient) { c.http.Timeout = d }
}

// WithAttempts sets how many times a retryable call is tried. Values below 1 mean 1.
func WithAttempts(n int) RPCOption {
	return func(c *RPCClient) { c.attempts = max(n, 1) }
}

// WithBackoff sets the delay before the second attempt; it doubles after that.
func WithBackoff(d time.Duration) RPCOption {
	return func(c *RPCClient) { c.backoff = d }
}

// WithCommitment sets the commitment level of account reads.
func WithCommitment(level string) RPCOption {
	return func(c *RPCClient) { c.commitment = level }
}

// NewRPCClient creates a client for the node at endpoint.
func NewRPCClient(endpoint string, opts ...RPCOption) *RPCClient {
	c := &RPCClient{
		endpoint:   endpoint,
		http:       &http.Client{Timeout: DefaultRPCTimeout},
		attempts:   DefaultRPCAttempts,
		backoff:    DefaultRPCBackoff,
		commitment: DefaultCommitment,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAccount returns the account at pubkey, or ErrAccountNotFound.
func (c *RPCClient) GetAccount(ctx context.Context, pubkey string) (*Account, error) {
	accounts, err := c.GetMultipleAccounts(ctx, []string{pubkey})
	if err != nil {
		return nil, err
	}
	if accounts[0] == nil {
		return nil, &AccountError{Pubkey: pubkey, Err: ErrAccountNotFound}
	}
	return accounts[0], nil
}

// GetMultipleAccounts returns one entry per pubkey, in order. Missing
// accounts are nil entries, not errors.
func (c *RPCClient) GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*Account, error) {
	out := make([]*Account, 0, len(pubkeys))
	for start := 0; start < len(pubkeys); start += maxAccountsPerCall {
		chunk := pubkeys[start:min(start+maxAccountsPerCall, len(pubkeys))]

		var result struct {
			Value []*wireAccount `json:"value"`
		}
		params := []any{chunk, map[string]any{"encoding": "base64", "commitment": c.commitment}}
		if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
			return nil, err
		}
		if len(result.Value) != len(chunk) {
			return nil, fmt.Errorf("getMultipleAccounts: %d accounts for %d keys", len(result.Value), len(chunk))
		}

		for i, w := range result.Value {
			if w == nil {
				out = append(out, nil)
				continue
			}
			acc, err := w.decode(chunk[i])
			if err != nil {
				return nil, err
			}
			out = append(out, acc)
		}
	}
	return out, nil
}

// wireAccount is an account as the node encodes it.
type wireAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [payload, encoding]
	Executable bool     `json:"executable"`
}

func (w *wireAccount) decode(pubkey string) (*Account, error) {
	acc := &Account{
		Pubkey:     pubkey,
		Lamports:   w.Lamports,
		Owner:      w.Owner,
		Executable: w.Executable,
	}
	if len(w.Data) > 0 && w.Data[0] != "" {
		data, err := base64.StdEncoding.DecodeString(w.Data[0])
		if err != nil {
			return nil, fmt.Errorf("account %s data: %w", pubkey, err)
		}
		acc.Data = data
	}
	return acc, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// call runs one JSON-RPC method, retrying only failures another attempt can fix.
func (c *RPCClient) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	delay := c.backoff
	for attempt := 1; ; attempt++ {
		err = c.post(ctx, body, result)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) || attempt >= c.attempts {
			return fmt.Errorf("%s: %w", method, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *RPCClient) post(ctx context.Context, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	var rr rpcResponse
	if err := json.Unmarshal(data, &rr); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rr.Error != nil {
		return rr.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rr.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
