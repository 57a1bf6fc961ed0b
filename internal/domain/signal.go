package domain

// SignalType is the side of a TradeSignal.
type SignalType string

// Signal types
const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
)

// Priority orders signals inside one batch.
type Priority string

// Priorities
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns a sortable weight; unknown priorities rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// SellAll is the sell amount meaning "entire current position size".
const SellAll = -1.0

// TradeSignal is a buy or sell intent produced by a strategy.
type TradeSignal struct {
	ID          string     // uuid
	Type        SignalType // buy | sell
	Mint        string     // token mint
	Amount      float64    // SOL for buys; whole tokens or SellAll for sells
	Reason      string     // human-readable trigger
	Priority    Priority   // low | medium | high
	SlippageBps *int       // overrides strategy slippage (nullable)
	Strategy    string     // emitting strategy instance name
	Params      *SignalParams
	CreatedAt   int64 // ms
}

// SignalParams carries the context a signal was derived from.
type SignalParams struct {
	SourceEvent DexEvent     // triggering event, used to derive exchange parameters
	Latency     *LatencyInfo // feed latency of the triggering event (nullable)
}

// IsSellAll reports whether the signal sells the entire position.
func (s *TradeSignal) IsSellAll() bool {
	return s.Type == SignalSell && s.Amount == SellAll
}

// SourceEvent returns the triggering event, or nil.
func (s *TradeSignal) SourceEvent() DexEvent {
	if s.Params == nil {
		return nil
	}
	return s.Params.SourceEvent
}

// TradeResult is the outcome reported by an executor.
type TradeResult struct {
	Success        bool
	Signature      string   // transaction signature, empty on failure
	Error          string   // failure description
	ExecutedAmount *float64 // tokens bought or sold (nullable)
	ExecutedPrice  *float64 // SOL per token (nullable)
	ExecutedAt     int64    // ms
	Fee            *float64 // SOL (nullable)
}

// FailedResult builds an unsuccessful result.
func FailedResult(msg string, at int64) TradeResult {
	return TradeResult{Success: false, Error: msg, ExecutedAt: at}
}
