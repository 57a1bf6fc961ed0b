package domain

// WSOLMint is the wrapped SOL mint. Pool swaps that spend it are buys of the other side.
const WSOLMint = "So11111111111111111111111111111111111111112"

// EventKind identifies the active variant of a DexEvent.
type EventKind string

// Event kinds
const (
	EventKindSwapTrade         EventKind = "swap_trade"
	EventKindBondingCurveTrade EventKind = "bonding_curve_trade"
	EventKindTokenCreated      EventKind = "token_created"
	EventKindPoolSwap          EventKind = "pool_swap"
	EventKindFeedError         EventKind = "feed_error"
)

// Protocol names the on-chain program an event was decoded from.
type Protocol string

// Supported protocols
const (
	ProtocolPumpSwap      Protocol = "pumpswap"
	ProtocolPumpFun       Protocol = "pumpfun"
	ProtocolRaydiumAMMV4  Protocol = "raydium_amm_v4"
	ProtocolRaydiumCPMM   Protocol = "raydium_cpmm"
	ProtocolRaydiumCLMM   Protocol = "raydium_clmm"
	ProtocolOrcaWhirlpool Protocol = "orca_whirlpool"
	ProtocolMeteoraDLMM   Protocol = "meteora_dlmm"
)

// DexEvent is a normalized feed event.
// The set of variants is closed: SwapTrade, BondingCurveTrade, TokenCreated,
// PoolSwap and FeedError. Consumers switch on the concrete type.
type DexEvent interface {
	Kind() EventKind
	Meta() *EventMetadata
	isDexEvent()
}

// EventMetadata carries optional transaction context attached by the upstream relay.
type EventMetadata struct {
	Signature   string // base58 transaction signature
	Slot        uint64 // slot the transaction landed in
	BlockTimeUs int64  // block time (µs), 0 if unknown
	RecvUs      int64  // upstream receive timestamp (µs), 0 if absent
}

// SwapTrade is a PumpSwap pool trade.
type SwapTrade struct {
	Mint      string // base mint
	QuoteMint string // quote mint, WSOLMint when the payload omits it
	Pool      string // pool account
	Trader    string // signer
	AmountIn  uint64 // raw units of the input token
	AmountOut uint64 // raw units of the output token
	IsBuy     bool   // true when quote goes in and base comes out

	// Optional accounts used to build trade parameters. Empty when the relay
	// did not include them; see execution.DeriveParams.
	PoolBaseTokenAccount  string
	PoolQuoteTokenAccount string
	CoinCreator           string

	Metadata *EventMetadata
}

// BondingCurveTrade is a trade against a pump.fun bonding curve.
type BondingCurveTrade struct {
	Mint         string // token mint
	Trader       string // signer
	AmountSol    uint64 // lamports
	AmountToken  uint64 // raw token units
	IsBuy        bool
	BondingCurve string // optional bonding curve account

	Metadata *EventMetadata
}

// TokenCreated announces a new bonding-curve token.
type TokenCreated struct {
	Mint         string
	Creator      string
	Name         string
	Symbol       string
	URI          string
	BondingCurve string // optional

	Metadata *EventMetadata
}

// PoolSwap is a swap on any other pool protocol.
type PoolSwap struct {
	Protocol  Protocol
	Pool      string
	Trader    string
	AmountIn  uint64 // raw units of TokenIn
	AmountOut uint64 // raw units of TokenOut
	TokenIn   string // input mint
	TokenOut  string // output mint

	Metadata *EventMetadata
}

// FeedErrorReason classifies a message the normalizer could not turn into an event.
type FeedErrorReason string

// Feed error reasons
const (
	FeedErrorMalformedJSON  FeedErrorReason = "malformed_json"
	FeedErrorUnknownVariant FeedErrorReason = "unknown_variant"
	FeedErrorInvalidPayload FeedErrorReason = "invalid_payload"
)

// FeedError is emitted in place of an event when a raw message cannot be normalized.
type FeedError struct {
	Reason  FeedErrorReason
	Variant string // top-level key, if one was found
	Err     string // decoder error text
}

func (e *SwapTrade) Kind() EventKind         { return EventKindSwapTrade }
func (e *BondingCurveTrade) Kind() EventKind { return EventKindBondingCurveTrade }
func (e *TokenCreated) Kind() EventKind      { return EventKindTokenCreated }
func (e *PoolSwap) Kind() EventKind          { return EventKindPoolSwap }
func (e *FeedError) Kind() EventKind         { return EventKindFeedError }

func (e *SwapTrade) Meta() *EventMetadata         { return e.Metadata }
func (e *BondingCurveTrade) Meta() *EventMetadata { return e.Metadata }
func (e *TokenCreated) Meta() *EventMetadata      { return e.Metadata }
func (e *PoolSwap) Meta() *EventMetadata          { return e.Metadata }
func (e *FeedError) Meta() *EventMetadata         { return nil }

func (*SwapTrade) isDexEvent()         {}
func (*BondingCurveTrade) isDexEvent() {}
func (*TokenCreated) isDexEvent()      {}
func (*PoolSwap) isDexEvent()          {}
func (*FeedError) isDexEvent()         {}

// Error implements error so a FeedError can be logged or returned directly.
func (e *FeedError) Error() string {
	if e.Variant != "" {
		return string(e.Reason) + " (" + e.Variant + "): " + e.Err
	}
	return string(e.Reason) + ": " + e.Err
}

// EventMint returns the token mint an event concerns, or "" when it has none.
// Pool swaps report the non-WSOL side.
func EventMint(ev DexEvent) string {
	switch e := ev.(type) {
	case *SwapTrade:
		return e.Mint
	case *BondingCurveTrade:
		return e.Mint
	case *TokenCreated:
		return e.Mint
	case *PoolSwap:
		if e.TokenIn == WSOLMint {
			return e.TokenOut
		}
		return e.TokenIn
	default:
		return ""
	}
}

// LatencyInfo measures relay-to-bot delay for a single event.
type LatencyInfo struct {
	UpstreamRecvUs int64   // upstream receive timestamp (µs)
	LocalRecvUs    int64   // local receive timestamp (µs)
	LatencyUs      int64   // max(0, local - upstream)
	LatencyMs      float64 // LatencyUs in ms, rounded to 2 decimals
}
