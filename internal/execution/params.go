package execution

import (
	"context"
	"errors"
	"fmt"

	"solana-dex-bot/internal/domain"
	"solana-dex-bot/internal/tradeapi"
)

// ErrMissingTradeParams is wrapped by MissingParamsError.
var ErrMissingTradeParams = errors.New("missing trade parameters")

// MissingParamsError reports which exchange parameter could not be derived.
type MissingParamsError struct {
	Mint  string
	Field string
}

func (e *MissingParamsError) Error() string {
	return fmt.Sprintf("%s: %s for mint %s", ErrMissingTradeParams, e.Field, e.Mint)
}

func (e *MissingParamsError) Unwrap() error { return ErrMissingTradeParams }

// Dex names understood by the trading service.
const (
	DexPumpSwap = "pumpswap"
	DexPumpFun  = "pumpfun"
)

// DeriveParams builds exchange parameters from the explicit fields of ev.
// Accounts the event does not carry are left empty; ParamResolver.Complete
// fills them.
func DeriveParams(ev domain.DexEvent) (tradeapi.ExchangeParams, error) {
	switch e := ev.(type) {
	case *domain.SwapTrade:
		if e.Pool == "" {
			return tradeapi.ExchangeParams{}, &MissingParamsError{Mint: e.Mint, Field: "pool"}
		}
		quote := e.QuoteMint
		if quote == "" {
			quote = domain.WSOLMint
		}
		return tradeapi.ExchangeParams{
			Dex:                   DexPumpSwap,
			Pool:                  e.Pool,
			BaseMint:              e.Mint,
			QuoteMint:             quote,
			PoolBaseTokenAccount:  e.PoolBaseTokenAccount,
			PoolQuoteTokenAccount: e.PoolQuoteTokenAccount,
			CoinCreator:           e.CoinCreator,
		}, nil

	case *domain.BondingCurveTrade:
		return tradeapi.ExchangeParams{Dex: DexPumpFun, BondingCurve: e.BondingCurve}, nil

	case *domain.TokenCreated:
		return tradeapi.ExchangeParams{Dex: DexPumpFun, BondingCurve: e.BondingCurve}, nil

	case *domain.PoolSwap:
		mint := domain.EventMint(e)
		if e.Pool == "" {
			return tradeapi.ExchangeParams{}, &MissingParamsError{Mint: mint, Field: "pool"}
		}
		return tradeapi.ExchangeParams{
			Dex:       string(e.Protocol),
			Pool:      e.Pool,
			BaseMint:  mint,
			QuoteMint: domain.WSOLMint,
		}, nil

	case nil:
		return tradeapi.ExchangeParams{}, &MissingParamsError{Field: "source_event"}

	default:
		return tradeapi.ExchangeParams{}, fmt.Errorf("%w: unsupported event %s", ErrMissingTradeParams, ev.Kind())
	}
}

// AccountResolver looks up on-chain accounts that events may omit.
type AccountResolver interface {
	PoolVaults(ctx context.Context, pool, baseMint, quoteMint string) (base, quote string, err error)
	BondingCurve(mint string) (string, error)
}

// ParamResolver completes exchange parameters through an AccountResolver.
type ParamResolver struct {
	accounts AccountResolver
}

// NewParamResolver creates a ParamResolver. accounts may be nil, in which
// case incomplete parameters fail with MissingParamsError.
func NewParamResolver(accounts AccountResolver) *ParamResolver {
	return &ParamResolver{accounts: accounts}
}

// Resolve derives and completes parameters for a trade on mint triggered by ev.
func (r *ParamResolver) Resolve(ctx context.Context, mint string, ev domain.DexEvent) (tradeapi.ExchangeParams, error) {
	p, err := DeriveParams(ev)
	if err != nil {
		var mp *MissingParamsError
		if errors.As(err, &mp) && mp.Mint == "" {
			mp.Mint = mint
		}
		return tradeapi.ExchangeParams{}, err
	}
	return r.Complete(ctx, mint, p)
}

// Complete fills the accounts p lacks.
func (r *ParamResolver) Complete(ctx context.Context, mint string, p tradeapi.ExchangeParams) (tradeapi.ExchangeParams, error) {
	switch p.Dex {
	case DexPumpSwap:
		if p.PoolBaseTokenAccount != "" && p.PoolQuoteTokenAccount != "" {
			return p, nil
		}
		if r == nil || r.accounts == nil {
			return p, &MissingParamsError{Mint: mint, Field: "pool_base_token_account"}
		}
		base, quote, err := r.accounts.PoolVaults(ctx, p.Pool, p.BaseMint, p.QuoteMint)
		if err != nil {
			return p, fmt.Errorf("resolve pool vaults: %w", err)
		}
		if p.PoolBaseTokenAccount == "" {
			p.PoolBaseTokenAccount = base
		}
		if p.PoolQuoteTokenAccount == "" {
			p.PoolQuoteTokenAccount = quote
		}

	case DexPumpFun:
		if p.BondingCurve != "" {
			return p, nil
		}
		if r == nil || r.accounts == nil {
			return p, &MissingParamsError{Mint: mint, Field: "bonding_curve"}
		}
		curve, err := r.accounts.BondingCurve(mint)
		if err != nil {
			return p, fmt.Errorf("resolve bonding curve: %w", err)
		}
		p.BondingCurve = curve
	}
	return p, nil
}

// Position metadata keys holding the parameters a position was opened with.
const (
	metaDex          = "dex"
	metaPool         = "pool"
	metaBaseMint     = "base_mint"
	metaQuoteMint    = "quote_mint"
	metaPoolBase     = "pool_base_token_account"
	metaPoolQuote    = "pool_quote_token_account"
	metaBondingCurve = "bonding_curve"
	metaCoinCreator  = "coin_creator"
	metaSignalID     = "signal_id"
	metaEntryReason  = "entry_reason"
)

func paramsToMetadata(p tradeapi.ExchangeParams, md map[string]string) {
	set := func(k, v string) {
		if v != "" {
			md[k] = v
		}
	}
	set(metaDex, p.Dex)
	set(metaPool, p.Pool)
	set(metaBaseMint, p.BaseMint)
	set(metaQuoteMint, p.QuoteMint)
	set(metaPoolBase, p.PoolBaseTokenAccount)
	set(metaPoolQuote, p.PoolQuoteTokenAccount)
	set(metaBondingCurve, p.BondingCurve)
	set(metaCoinCreator, p.CoinCreator)
}

// paramsFromPosition recovers the parameters stored on a position at entry.
func paramsFromPosition(pos *domain.Position) (tradeapi.ExchangeParams, bool) {
	if pos == nil || pos.Metadata[metaDex] == "" {
		return tradeapi.ExchangeParams{}, false
	}
	md := pos.Metadata
	return tradeapi.ExchangeParams{
		Dex:                   md[metaDex],
		Pool:                  md[metaPool],
		BaseMint:              md[metaBaseMint],
		QuoteMint:             md[metaQuoteMint],
		PoolBaseTokenAccount:  md[metaPoolBase],
		PoolQuoteTokenAccount: md[metaPoolQuote],
		BondingCurve:          md[metaBondingCurve],
		CoinCreator:           md[metaCoinCreator],
	}, true
}
