package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"

	"solana-dex-bot/internal/domain"
)

// Decimal places used to convert raw amounts into whole units.
const (
	SolDecimals          = 9
	DefaultTokenDecimals = 6
)

// LamportsToSol converts lamports to SOL.
func LamportsToSol(lamports uint64) float64 {
	return fromRaw(lamports, SolDecimals).InexactFloat64()
}

// SolToLamports converts SOL to lamports, truncating sub-lamport dust.
func SolToLamports(sol float64) uint64 {
	return toRaw(sol, SolDecimals)
}

// RawToTokens converts raw token units to whole tokens.
func RawToTokens(raw uint64) float64 {
	return fromRaw(raw, DefaultTokenDecimals).InexactFloat64()
}

// TokensToRaw converts whole tokens to raw units, truncating.
func TokensToRaw(tokens float64) uint64 {
	return toRaw(tokens, DefaultTokenDecimals)
}

func fromRaw(raw uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -decimals)
}

func toRaw(v float64, decimals int32) uint64 {
	d := decimal.NewFromFloat(v).Shift(decimals).Truncate(0)
	if d.Sign() <= 0 {
		return 0
	}
	return d.BigInt().Uint64()
}

// DerivePrice returns the SOL-per-token price implied by a trade event.
// Only SOL-quoted trades produce a price; creates and errors never do.
func DerivePrice(ev domain.DexEvent) (mint string, price float64, ok bool) {
	switch e := ev.(type) {
	case *domain.SwapTrade:
		if e.QuoteMint != domain.WSOLMint {
			return "", 0, false
		}
		if e.IsBuy {
			return e.Mint, ratio(e.AmountIn, e.AmountOut), e.AmountIn > 0 && e.AmountOut > 0
		}
		return e.Mint, ratio(e.AmountOut, e.AmountIn), e.AmountIn > 0 && e.AmountOut > 0

	case *domain.BondingCurveTrade:
		return e.Mint, ratio(e.AmountSol, e.AmountToken), e.AmountSol > 0 && e.AmountToken > 0

	case *domain.PoolSwap:
		switch {
		case e.TokenIn == domain.WSOLMint:
			return e.TokenOut, ratio(e.AmountIn, e.AmountOut), e.AmountIn > 0 && e.AmountOut > 0
		case e.TokenOut == domain.WSOLMint:
			return e.TokenIn, ratio(e.AmountOut, e.AmountIn), e.AmountIn > 0 && e.AmountOut > 0
		}
		return "", 0, false

	case *domain.TokenCreated, *domain.FeedError:
		return "", 0, false

	default:
		return "", 0, false
	}
}

// ratio returns SOL per whole token from raw lamports and raw token units.
func ratio(lamports, rawTokens uint64) float64 {
	if lamports == 0 || rawTokens == 0 {
		return 0
	}
	return fromRaw(lamports, SolDecimals).Div(fromRaw(rawTokens, DefaultTokenDecimals)).InexactFloat64()
}
