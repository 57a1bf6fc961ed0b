package tradeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastClient(url string) *Client {
	return NewClient(url, WithRetryDelay(time.Millisecond), WithMaxDelay(2*time.Millisecond))
}

func TestClient_Buy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/buy" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["mint"] != "MintA" || body["amount_sol"] != 0.01 {
			t.Errorf("unexpected body %v", body)
		}
		if body["slippage_bps"] != float64(DefaultSlippageBps) {
			t.Errorf("expected default slippage, got %v", body["slippage_bps"])
		}
		if body["dex"] != "pumpswap" || body["pool"] != "PoolA" {
			t.Errorf("exchange params not flattened: %v", body)
		}
		if _, ok := body["bonding_curve"]; ok {
			t.Error("empty params should be omitted")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"signature":     "sig123",
			"message":       "ok",
			"amount_tokens": 5_000_000,
		})
	}))
	defer server.Close()

	resp, err := fastClient(server.URL).Buy(context.Background(), BuyRequest{
		Mint:           "MintA",
		AmountSol:      0.01,
		ExchangeParams: ExchangeParams{Dex: "pumpswap", Pool: "PoolA"},
	})
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if resp.Signature != "sig123" || resp.AmountTokens == nil || *resp.AmountTokens != 5_000_000 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestClient_SellAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["sell_all"] != true {
			t.Errorf("expected sell_all, got %v", body)
		}
		if _, ok := body["amount_tokens"]; ok {
			t.Error("amount_tokens should be omitted for sell_all")
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "signature": "s", "message": "ok"})
	}))
	defer server.Close()

	if _, err := fastClient(server.URL).Sell(context.Background(), SellRequest{Mint: "M", SellAll: true}); err != nil {
		t.Fatalf("Sell: %v", err)
	}

	if _, err := fastClient(server.URL).Sell(context.Background(), SellRequest{Mint: "M"}); err == nil {
		t.Fatal("sell without amount should fail locally")
	}
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			json.NewEncoder(w).Encode(map[string]any{"success": true, "signature": "s", "message": "ok"})
		}
	}))
	defer server.Close()

	if _, err := fastClient(server.URL).Buy(context.Background(), BuyRequest{Mint: "M", AmountSol: 1}); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClient_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := fastClient(server.URL).Buy(context.Background(), BuyRequest{Mint: "M", AmountSol: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != DefaultMaxRetries+1 {
		t.Errorf("expected %d calls, got %d", DefaultMaxRetries+1, calls.Load())
	}
}

func TestClient_RejectionsAreTerminal(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		message string
	}{
		{name: "success false", status: http.StatusOK, body: map[string]any{"success": false, "message": "insufficient balance"}, message: "insufficient balance"},
		{name: "bad request", status: http.StatusBadRequest, body: map[string]any{"success": false, "message": "invalid mint"}, message: "invalid mint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			_, err := fastClient(server.URL).Buy(context.Background(), BuyRequest{Mint: "M", AmountSol: 1})
			if !errors.Is(err, ErrTradeRejected) {
				t.Fatalf("expected ErrTradeRejected, got %v", err)
			}
			var rej *RejectedError
			if !errors.As(err, &rej) || rej.Message != tt.message {
				t.Errorf("unexpected rejection %v", err)
			}
			if calls.Load() != 1 {
				t.Errorf("rejections must not be retried, got %d calls", calls.Load())
			}
		})
	}
}

func TestClient_Health(t *testing.T) {
	status := "ok"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(HealthResponse{Status: status, Service: "trade-executor"})
	}))
	defer server.Close()

	client := fastClient(server.URL + "/")
	if err := client.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}

	status = "degraded"
	if err := client.CheckHealth(context.Background()); err == nil {
		t.Fatal("non-ok status should fail the health check")
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, WithRetryDelay(time.Hour))
	if _, err := client.Buy(ctx, BuyRequest{Mint: "M", AmountSol: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
