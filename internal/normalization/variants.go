package normalization

import (
	"encoding/json"
	"errors"
	"fmt"

	"solana-dex-bot/internal/domain"
)

// ErrMissingField is returned when a required variant field is empty.
var ErrMissingField = errors.New("missing required field")

type wireMetadata struct {
	Signature   string `json:"signature"`
	Slot        uint64 `json:"slot"`
	BlockTimeUs int64  `json:"block_time_us"`
	GrpcRecvUs  int64  `json:"grpc_recv_us"`
}

func (m *wireMetadata) toDomain() *domain.EventMetadata {
	if m == nil {
		return nil
	}
	return &domain.EventMetadata{
		Signature:   m.Signature,
		Slot:        m.Slot,
		BlockTimeUs: m.BlockTimeUs,
		RecvUs:      m.GrpcRecvUs,
	}
}

type wirePumpSwap struct {
	Mint                  string        `json:"mint"`
	BaseMint              string        `json:"base_mint"`
	QuoteMint             string        `json:"quote_mint"`
	Pool                  string        `json:"pool"`
	Trader                string        `json:"trader"`
	User                  string        `json:"user"`
	AmountIn              uint64        `json:"amount_in"`
	AmountOut             uint64        `json:"amount_out"`
	IsBuy                 *bool         `json:"is_buy"`
	PoolBaseTokenAccount  string        `json:"pool_base_token_account"`
	PoolQuoteTokenAccount string        `json:"pool_quote_token_account"`
	CoinCreator           string        `json:"coin_creator"`
	Metadata              *wireMetadata `json:"metadata"`
}

// decodePumpSwap decodes PumpSwapBuy/PumpSwapSell. The variant key sets the
// direction unless the payload carries an explicit is_buy.
func decodePumpSwap(isBuy bool) Decoder {
	return func(payload []byte) (domain.DexEvent, error) {
		var w wirePumpSwap
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, err
		}

		mint := firstNonEmpty(w.Mint, w.BaseMint)
		if mint == "" {
			return nil, fmt.Errorf("%w: mint", ErrMissingField)
		}
		if w.Pool == "" {
			return nil, fmt.Errorf("%w: pool", ErrMissingField)
		}
		if w.IsBuy != nil {
			isBuy = *w.IsBuy
		}

		return &domain.SwapTrade{
			Mint:                  mint,
			QuoteMint:             firstNonEmpty(w.QuoteMint, domain.WSOLMint),
			Pool:                  w.Pool,
			Trader:                firstNonEmpty(w.Trader, w.User),
			AmountIn:              w.AmountIn,
			AmountOut:             w.AmountOut,
			IsBuy:                 isBuy,
			PoolBaseTokenAccount:  w.PoolBaseTokenAccount,
			PoolQuoteTokenAccount: w.PoolQuoteTokenAccount,
			CoinCreator:           w.CoinCreator,
			Metadata:              w.Metadata.toDomain(),
		}, nil
	}
}

type wirePumpFunTrade struct {
	Mint         string        `json:"mint"`
	Trader       string        `json:"trader"`
	User         string        `json:"user"`
	AmountSol    uint64        `json:"amount_sol"`
	AmountToken  uint64        `json:"amount_token"`
	IsBuy        bool          `json:"is_buy"`
	BondingCurve string        `json:"bonding_curve"`
	Metadata     *wireMetadata `json:"metadata"`
}

func decodePumpFunTrade(payload []byte) (domain.DexEvent, error) {
	var w wirePumpFunTrade
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}
	if w.Mint == "" {
		return nil, fmt.Errorf("%w: mint", ErrMissingField)
	}

	return &domain.BondingCurveTrade{
		Mint:         w.Mint,
		Trader:       firstNonEmpty(w.Trader, w.User),
		AmountSol:    w.AmountSol,
		AmountToken:  w.AmountToken,
		IsBuy:        w.IsBuy,
		BondingCurve: w.BondingCurve,
		Metadata:     w.Metadata.toDomain(),
	}, nil
}

type wirePumpFunCreate struct {
	Mint         string        `json:"mint"`
	Creator      string        `json:"creator"`
	User         string        `json:"user"`
	Name         string        `json:"name"`
	Symbol       string        `json:"symbol"`
	URI          string        `json:"uri"`
	BondingCurve string        `json:"bonding_curve"`
	Metadata     *wireMetadata `json:"metadata"`
}

func decodePumpFunCreate(payload []byte) (domain.DexEvent, error) {
	var w wirePumpFunCreate
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}
	if w.Mint == "" {
		return nil, fmt.Errorf("%w: mint", ErrMissingField)
	}

	return &domain.TokenCreated{
		Mint:         w.Mint,
		Creator:      firstNonEmpty(w.Creator, w.User),
		Name:         w.Name,
		Symbol:       w.Symbol,
		URI:          w.URI,
		BondingCurve: w.BondingCurve,
		Metadata:     w.Metadata.toDomain(),
	}, nil
}

type wirePoolSwap struct {
	Pool      string        `json:"pool"`
	Trader    string        `json:"trader"`
	User      string        `json:"user"`
	AmountIn  uint64        `json:"amount_in"`
	AmountOut uint64        `json:"amount_out"`
	TokenIn   string        `json:"token_in"`
	TokenOut  string        `json:"token_out"`
	Metadata  *wireMetadata `json:"metadata"`
}

func decodePoolSwap(protocol domain.Protocol) Decoder {
	return func(payload []byte) (domain.DexEvent, error) {
		var w wirePoolSwap
		if err := json.Unmarshal(payload, &w); err != nil {
			return nil, err
		}
		switch {
		case w.Pool == "":
			return nil, fmt.Errorf("%w: pool", ErrMissingField)
		case w.TokenIn == "":
			return nil, fmt.Errorf("%w: token_in", ErrMissingField)
		case w.TokenOut == "":
			return nil, fmt.Errorf("%w: token_out", ErrMissingField)
		}

		return &domain.PoolSwap{
			Protocol:  protocol,
			Pool:      w.Pool,
			Trader:    firstNonEmpty(w.Trader, w.User),
			AmountIn:  w.AmountIn,
			AmountOut: w.AmountOut,
			TokenIn:   w.TokenIn,
			TokenOut:  w.TokenOut,
			Metadata:  w.Metadata.toDomain(),
		}, nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
