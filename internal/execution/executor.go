package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/pricing"
	"solana-dex-bot/internal/tradeapi"
)

// Order is a signal ready for execution.
type Order struct {
	Signal   domain.TradeSignal
	Params   tradeapi.ExchangeParams
	Position *domain.Position // copy of the position being sold, nil for buys
}

// Executor carries out orders.
// A non-nil error always comes with an unsuccessful result.
type Executor interface {
	Execute(ctx context.Context, order Order) (domain.TradeResult, error)
}

// TradeService is the subset of the trading service client used by LiveExecutor.
type TradeService interface {
	Buy(ctx context.Context, req tradeapi.BuyRequest) (*tradeapi.TradeResponse, error)
	Sell(ctx context.Context, req tradeapi.SellRequest) (*tradeapi.TradeResponse, error)
}

// LiveExecutor sends orders to the external trading service.
type LiveExecutor struct {
	svc TradeService
	now func() time.Time
}

// NewLiveExecutor creates a LiveExecutor.
func NewLiveExecutor(svc TradeService, now func() time.Time) *LiveExecutor {
	if now == nil {
		now = time.Now
	}
	return &LiveExecutor{svc: svc, now: now}
}

// Execute implements Executor.
func (e *LiveExecutor) Execute(ctx context.Context, order Order) (domain.TradeResult, error) {
	sig := order.Signal
	slippage := slippageBps(sig)

	var (
		resp *tradeapi.TradeResponse
		err  error
	)
	switch sig.Type {
	case domain.SignalBuy:
		resp, err = e.svc.Buy(ctx, tradeapi.BuyRequest{
			Mint:           sig.Mint,
			AmountSol:      sig.Amount,
			SlippageBps:    slippage,
			ExchangeParams: order.Params,
		})
	case domain.SignalSell:
		req := tradeapi.SellRequest{
			Mint:           sig.Mint,
			SlippageBps:    slippage,
			ExchangeParams: order.Params,
		}
		switch {
		case !sig.IsSellAll():
			raw := pricing.TokensToRaw(sig.Amount)
			req.AmountTokens = &raw
		case order.Position != nil && order.Position.Amount > 0:
			raw := pricing.TokensToRaw(order.Position.Amount)
			req.AmountTokens = &raw
		default:
			req.SellAll = true
		}
		resp, err = e.svc.Sell(ctx, req)
	default:
		err = fmt.Errorf("unknown signal type %q", sig.Type)
	}

	at := e.now().UnixMilli()
	if err != nil {
		return domain.FailedResult(err.Error(), at), err
	}
	return responseResult(resp, at), nil
}

func responseResult(resp *tradeapi.TradeResponse, at int64) domain.TradeResult {
	res := domain.TradeResult{
		Success:       resp.Success,
		Signature:     resp.Signature,
		ExecutedPrice: resp.Price,
		ExecutedAt:    at,
		Fee:           resp.Fee,
	}
	if !resp.Success {
		res.Error = resp.Message
	}
	if resp.AmountTokens != nil {
		tokens := pricing.RawToTokens(*resp.AmountTokens)
		res.ExecutedAmount = &tokens
		if res.ExecutedPrice == nil && resp.AmountSol != nil && tokens > 0 {
			price := *resp.AmountSol / tokens
			res.ExecutedPrice = &price
		}
	}
	return res
}

func slippageBps(sig domain.TradeSignal) int {
	if sig.SlippageBps != nil {
		return *sig.SlippageBps
	}
	return tradeapi.DefaultSlippageBps
}

// PriceSource is the read side of the price cache.
type PriceSource interface {
	CurrentPrice(mint string) (float64, bool)
}

// DryRunExecutor simulates fills at the cached price.
type DryRunExecutor struct {
	prices PriceSource
	now    func() time.Time
}

// NewDryRunExecutor creates a DryRunExecutor.
func NewDryRunExecutor(prices PriceSource, now func() time.Time) *DryRunExecutor {
	if now == nil {
		now = time.Now
	}
	return &DryRunExecutor{prices: prices, now: now}
}

// Execute implements Executor.
func (e *DryRunExecutor) Execute(_ context.Context, order Order) (domain.TradeResult, error) {
	sig := order.Signal
	at := e.now().UnixMilli()

	price, ok := e.prices.CurrentPrice(sig.Mint)
	if !ok && order.Position != nil {
		price, ok = order.Position.EntryPrice, order.Position.EntryPrice > 0
	}
	if !ok || price <= 0 {
		err := fmt.Errorf("dry run: no price for %s", sig.Mint)
		return domain.FailedResult(err.Error(), at), err
	}

	var tokens float64
	switch {
	case sig.Type == domain.SignalBuy:
		tokens = sig.Amount / price
	case sig.IsSellAll():
		if order.Position != nil {
			tokens = order.Position.Amount
		}
	default:
		tokens = sig.Amount
	}

	return domain.TradeResult{
		Success:        true,
		Signature:      "dryrun-" + uuid.NewString(),
		ExecutedAmount: &tokens,
		ExecutedPrice:  &price,
		ExecutedAt:     at,
	}, nil
}
