package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// rpcNode serves getMultipleAccounts from a fixed account set. Keys missing
// from accounts are answered with null.
type rpcNode struct {
	accounts map[string]map[string]any
	calls    atomic.Int32

	mu       sync.Mutex
	lastKeys []string
}

func (n *rpcNode) lastChunk() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.lastKeys)
}

func (n *rpcNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.calls.Add(1)
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != "getMultipleAccounts" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var keys []string
	json.Unmarshal(req.Params[0], &keys)
	n.mu.Lock()
	n.lastKeys = keys
	n.mu.Unlock()

	values := make([]any, len(keys))
	for i, k := range keys {
		if acc, ok := n.accounts[k]; ok {
			values[i] = acc
		}
	}
	json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  map[string]any{"context": map[string]any{"slot": 1}, "value": values},
	})
}

func fastClient(url string) *RPCClient {
	return NewRPCClient(url, WithAttempts(3), WithBackoff(time.Millisecond))
}

func TestRPCClient_GetMultipleAccounts(t *testing.T) {
	node := &rpcNode{accounts: map[string]map[string]any{
		testPool: {
			"lamports":   2039280,
			"owner":      PumpSwapProgramID,
			"data":       []string{"AQID", "base64"},
			"executable": false,
		},
	}}
	server := httptest.NewServer(node)
	defer server.Close()

	got, err := fastClient(server.URL).GetMultipleAccounts(context.Background(), []string{testPool, testMint})
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0] == nil || got[0].Pubkey != testPool || got[0].Owner != PumpSwapProgramID || got[0].Lamports != 2039280 {
		t.Errorf("unexpected pool account %+v", got[0])
	}
	if string(got[0].Data) != "\x01\x02\x03" {
		t.Errorf("data not base64-decoded: %v", got[0].Data)
	}
	if got[1] != nil {
		t.Errorf("missing account should be nil, got %+v", got[1])
	}
}

func TestRPCClient_GetAccount_NotFound(t *testing.T) {
	server := httptest.NewServer(&rpcNode{})
	defer server.Close()

	_, err := fastClient(server.URL).GetAccount(context.Background(), testMint)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	var ae *AccountError
	if !errors.As(err, &ae) || ae.Pubkey != testMint {
		t.Errorf("error should name %s: %v", testMint, err)
	}
}

func TestRPCClient_ChunksLargeLookups(t *testing.T) {
	node := &rpcNode{}
	server := httptest.NewServer(node)
	defer server.Close()

	keys := make([]string, maxAccountsPerCall+5)
	for i := range keys {
		keys[i] = testMint
	}
	got, err := fastClient(server.URL).GetMultipleAccounts(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}
	if len(got) != len(keys) || node.calls.Load() != 2 || node.lastChunk() != 5 {
		t.Errorf("entries=%d calls=%d last chunk=%d", len(got), node.calls.Load(), node.lastChunk())
	}
}

func TestRPCClient_RetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		respond   func(w http.ResponseWriter)
		wantCalls int32
		check     func(t *testing.T, err error)
	}{
		{
			name:      "client error is terminal",
			respond:   func(w http.ResponseWriter) { http.Error(w, "forbidden", http.StatusForbidden) },
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var se *StatusError
				if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden {
					t.Errorf("expected 403 StatusError, got %v", err)
				}
			},
		},
		{
			name: "rpc error is terminal",
			respond: func(w http.ResponseWriter) {
				w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid param"}}`))
			},
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				var re *RPCError
				if !errors.As(err, &re) || re.Code != -32602 {
					t.Errorf("expected RPCError -32602, got %v", err)
				}
			},
		},
		{
			name:      "rate limit is retried",
			respond:   func(w http.ResponseWriter) { w.WriteHeader(http.StatusTooManyRequests) },
			wantCalls: 3,
		},
		{
			name:      "server error is retried",
			respond:   func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadGateway) },
			wantCalls: 3,
		},
		{
			name: "unhealthy node is retried",
			respond: func(w http.ResponseWriter) {
				w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"Node is behind"}}`))
			},
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.respond(w)
			}))
			defer server.Close()

			_, err := fastClient(server.URL).GetAccount(context.Background(), testPool)
			if err == nil {
				t.Fatal("expected an error")
			}
			if errors.Is(err, ErrAccountNotFound) {
				t.Errorf("transport failures must not read as a missing account: %v", err)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestRPCClient_RecoversAfterRateLimit(t *testing.T) {
	node := &rpcNode{accounts: map[string]map[string]any{testPool: {"owner": PumpSwapProgramID, "data": []string{"", "base64"}}}}
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		node.ServeHTTP(w, r)
	}))
	defer server.Close()

	acc, err := fastClient(server.URL).GetAccount(context.Background(), testPool)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acc.Owner != PumpSwapProgramID || calls.Load() != 2 {
		t.Errorf("owner=%s calls=%d", acc.Owner, calls.Load())
	}
}

func TestRPCClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRPCClient(server.URL, WithBackoff(time.Hour)).GetAccount(ctx, testPool)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAccountResolver_OverRPC(t *testing.T) {
	server := httptest.NewServer(&rpcNode{accounts: map[string]map[string]any{
		testPool: {"owner": PumpSwapProgramID, "data": []string{"", "base64"}},
		testMint: {"owner": Token2022ProgramID, "data": []string{"", "base64"}},
	}})
	defer server.Close()

	// The quote mint is absent on this node.
	_, _, err := NewAccountResolver(fastClient(server.URL)).PoolVaults(context.Background(), testPool, testMint, "So11111111111111111111111111111111111111112")
	var ae *AccountError
	if !errors.Is(err, ErrAccountNotFound) || !errors.As(err, &ae) || ae.Pubkey != "So11111111111111111111111111111111111111112" {
		t.Fatalf("expected the quote mint to be reported missing, got %v", err)
	}
}
