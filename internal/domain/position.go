package domain

// PositionStatus is the lifecycle state of a Position.
type PositionStatus string

// Position statuses
const (
	PositionActive  PositionStatus = "active"
	PositionClosing PositionStatus = "closing"
	PositionClosed  PositionStatus = "closed"
)

// Position is a holding opened by a successful buy.
// At most one active Position exists per mint.
type Position struct {
	ID               string            `json:"id"`                      // deterministic hash of mint|strategy|entry_time|entry_tx
	Mint             string            `json:"mint"`                    // token mint (unique among active positions)
	Amount           float64           `json:"amount"`                  // whole tokens held
	EntryPrice       float64           `json:"entry_price"`             // SOL per token at entry
	EntryTime        int64             `json:"entry_time"`              // Unix timestamp in milliseconds
	EntryTxSignature string            `json:"entry_tx_signature"`      // buy transaction signature
	Status           PositionStatus    `json:"status"`                  // active | closing | closed
	Strategy         string            `json:"strategy"`                // owning strategy instance name
	InvestedSol      float64           `json:"invested_sol"`            // SOL spent on entry
	CurrentValue     *float64          `json:"current_value,omitempty"` // Amount * last price (nullable until first tick)
	PnLRatio         *float64          `json:"pnl_ratio,omitempty"`     // (price - entry) / entry (nullable until first tick)
	LastUpdate       int64             `json:"last_update"`             // last mutation (ms)
	Metadata         map[string]string `json:"metadata,omitempty"`

	// Set on close
	ExitPrice       *float64 `json:"exit_price,omitempty"`        // price used to realize PnL
	ExitTime        *int64   `json:"exit_time,omitempty"`         // close timestamp (ms)
	ExitTxSignature string   `json:"exit_tx_signature,omitempty"` // sell transaction signature
	RealizedPnL     *float64 `json:"realized_pnl,omitempty"`      // (exit - entry) * amount
}

// PnL returns realized PnL for closed positions and unrealized PnL otherwise.
func (p *Position) PnL() float64 {
	if p.RealizedPnL != nil {
		return *p.RealizedPnL
	}
	if p.CurrentValue == nil {
		return 0
	}
	return *p.CurrentValue - p.Amount*p.EntryPrice
}

// MarkPrice returns the last price the position was valued at.
func (p *Position) MarkPrice() (float64, bool) {
	if p.ExitPrice != nil {
		return *p.ExitPrice, true
	}
	if p.CurrentValue == nil || p.Amount == 0 {
		return 0, false
	}
	return *p.CurrentValue / p.Amount, true
}

// Clone returns a deep copy safe to hand out of a store.
func (p *Position) Clone() *Position {
	c := *p
	c.CurrentValue = cloneFloat(p.CurrentValue)
	c.PnLRatio = cloneFloat(p.PnLRatio)
	c.ExitPrice = cloneFloat(p.ExitPrice)
	c.RealizedPnL = cloneFloat(p.RealizedPnL)
	if p.ExitTime != nil {
		t := *p.ExitTime
		c.ExitTime = &t
	}
	if p.Metadata != nil {
		c.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
