package domain

// StrategyConfig configures one strategy instance.
type StrategyConfig struct {
	Name           string  `json:"name" yaml:"name"` // instance name, owner key of positions
	Type           string  `json:"type" yaml:"type"` // registered implementation
	Enabled        bool    `json:"enabled" yaml:"enabled"`
	MaxPositions   int     `json:"max_positions" yaml:"max_positions"`
	MaxTradeAmount float64 `json:"max_trade_amount" yaml:"max_trade_amount"` // SOL
	MinTradeAmount float64 `json:"min_trade_amount" yaml:"min_trade_amount"` // SOL
	SlippageBps    int     `json:"slippage_bps" yaml:"slippage_bps"`

	// Base exit policy
	TakeProfitRatio *float64 `json:"take_profit_ratio,omitempty" yaml:"take_profit_ratio,omitempty"`
	StopLossRatio   *float64 `json:"stop_loss_ratio,omitempty" yaml:"stop_loss_ratio,omitempty"` // negative, e.g. -0.2
	MinHoldTimeMs   *int64   `json:"min_hold_time_ms,omitempty" yaml:"min_hold_time_ms,omitempty"`

	// CONSECUTIVE_BUY parameters
	ConsecutiveBuy *ConsecutiveBuyParams `json:"consecutive_buy,omitempty" yaml:"consecutive_buy,omitempty"`

	// MOMENTUM parameters
	Momentum *MomentumParams `json:"momentum,omitempty" yaml:"momentum,omitempty"`
}

// ConsecutiveBuyParams configures the consecutive-buy detector.
type ConsecutiveBuyParams struct {
	Count                int     `json:"count" yaml:"count"`                                   // buys required
	TotalAmountThreshold float64 `json:"total_amount_threshold" yaml:"total_amount_threshold"` // sum of the last Count amounts
	TimeWindowSeconds    float64 `json:"time_window_seconds" yaml:"time_window_seconds"`       // retention and max gap
	BuyAmountSol         float64 `json:"buy_amount_sol" yaml:"buy_amount_sol"`
	TargetProfitRatio    float64 `json:"target_profit_ratio" yaml:"target_profit_ratio"`

	// RetentionSeconds prunes the window independently of the gap limit.
	// Zero means TimeWindowSeconds.
	RetentionSeconds float64 `json:"retention_seconds,omitempty" yaml:"retention_seconds,omitempty"`
}

// MomentumParams configures the price-momentum strategy.
type MomentumParams struct {
	LookbackPeriods int     `json:"lookback_periods" yaml:"lookback_periods"`
	MinPriceChange  float64 `json:"min_price_change" yaml:"min_price_change"` // ratio, e.g. 0.15
	BuyAmountSol    float64 `json:"buy_amount_sol" yaml:"buy_amount_sol"`
}

// Strategy type constants
const (
	StrategyTypeConsecutiveBuy = "consecutive_buy"
	StrategyTypeMomentum       = "momentum"
)
