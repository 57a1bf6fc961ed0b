package domain

// ExecutionRecord is the journal row written for every executed signal.
// Corresponds to executions table in PostgreSQL.
type ExecutionRecord struct {
	ExecutionID     string     // deterministic hash
	SignalID        string     // TradeSignal.ID
	Strategy        string     // strategy instance name
	Mint            string     // token mint
	Side            SignalType // buy | sell
	RequestedAmount float64    // signal amount (SOL for buys, tokens or -1 for sells)
	Reason          string     // signal reason
	Priority        Priority
	Success         bool
	Signature       string   // empty on failure
	Error           string   // failure description
	ExecutedAmount  *float64 // nullable
	ExecutedPrice   *float64 // nullable
	Fee             *float64 // nullable
	DryRun          bool
	ExecutedAt      int64 // ms
}

// PriceTick is one observation of a mint's price.
// Corresponds to price_ticks table in ClickHouse.
type PriceTick struct {
	Mint        string  // token mint
	Price       float64 // SOL per token
	TimestampMs int64   // local receive time (ms)
	Source      string  // event kind the price was derived from
}
