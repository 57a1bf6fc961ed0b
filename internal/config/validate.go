package config

import (
	"fmt"
	"strings"

	"solana-dex-bot/internal/domain"
)

// ValidationError lists every configuration violation found.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration (%d violations):\n  - %s",
		len(e.Violations), strings.Join(e.Violations, "\n  - "))
}

var knownStrategyTypes = map[string]bool{
	domain.StrategyTypeConsecutiveBuy: true,
	domain.StrategyTypeMomentum:       true,
}

// Validate checks the configuration for a live run.
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateOffline checks the configuration for replay, where no feed is
// dialed and nothing is sent to the executor.
func (c *Config) ValidateOffline() error {
	return c.validate(false)
}

func (c *Config) validate(live bool) error {
	var v []string
	add := func(format string, args ...any) {
		v = append(v, fmt.Sprintf(format, args...))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}

	if live && c.Feed.URL == "" {
		add("feed.url is required")
	}
	if c.Feed.QueueSize <= 0 {
		add("feed.queue_size must be positive")
	}
	if live && !c.Bot.DryRun && c.Executor.URL == "" {
		add("executor.url is required unless bot.dry_run is set")
	}
	if c.Executor.MaxRetries != nil && *c.Executor.MaxRetries < 0 {
		add("executor.max_retries must not be negative")
	}
	if c.Executor.DefaultSlippageBps < 0 || c.Executor.DefaultSlippageBps > 10000 {
		add("executor.default_slippage_bps must be within [0, 10000]")
	}

	if c.Bot.MaxTotalPositions <= 0 {
		add("bot.max_total_positions must be positive")
	}
	if c.Bot.MaxTotalInvestment <= 0 {
		add("bot.max_total_investment must be positive")
	}
	if c.Bot.MaxDailyLoss <= 0 {
		add("bot.max_daily_loss must be positive")
	}
	if c.Bot.MaxConsecutiveLosses < 0 {
		add("bot.max_consecutive_losses must not be negative")
	}
	if c.Bot.MaxConsecutiveLosses > 0 && c.Bot.PauseAfterLoss.Duration <= 0 {
		add("bot.pause_after_loss must be positive when max_consecutive_losses is set")
	}
	if c.Bot.ExitCheckInterval.Duration <= 0 {
		add("bot.exit_check_interval must be positive")
	}
	if c.Bot.PriceIdleTimeout.Duration < 0 {
		add("bot.price_idle_timeout must not be negative")
	}
	if c.Bot.ClosedRetentionDays <= 0 {
		add("bot.closed_retention_days must be positive")
	}

	if len(c.Strategies) == 0 {
		add("at least one strategy is required")
	}
	seen := make(map[string]bool, len(c.Strategies))
	for i, s := range c.Strategies {
		prefix := fmt.Sprintf("strategies[%d]", i)
		if s.Name == "" {
			add("%s.name is required", prefix)
		} else {
			prefix = fmt.Sprintf("strategies[%s]", s.Name)
			if seen[s.Name] {
				add("%s: duplicate strategy name", prefix)
			}
			seen[s.Name] = true
		}
		if !knownStrategyTypes[s.Type] {
			add("%s.type %q is not a known strategy type", prefix, s.Type)
		}
		if s.MaxPositions < 0 {
			add("%s.max_positions must not be negative", prefix)
		}
		if s.MinTradeAmount < 0 || s.MaxTradeAmount < 0 {
			add("%s trade amounts must not be negative", prefix)
		}
		if s.MaxTradeAmount > 0 && s.MinTradeAmount > s.MaxTradeAmount {
			add("%s.min_trade_amount exceeds max_trade_amount", prefix)
		}
		if s.SlippageBps < 0 || s.SlippageBps > 10000 {
			add("%s.slippage_bps must be within [0, 10000]", prefix)
		}
		if s.TakeProfitRatio != nil && *s.TakeProfitRatio <= 0 {
			add("%s.take_profit_ratio must be positive", prefix)
		}
		if s.StopLossRatio != nil && *s.StopLossRatio >= 0 {
			add("%s.stop_loss_ratio must be negative", prefix)
		}
		if s.MinHoldTimeMs != nil && *s.MinHoldTimeMs < 0 {
			add("%s.min_hold_time_ms must not be negative", prefix)
		}

		if p := s.ConsecutiveBuy; s.Type == domain.StrategyTypeConsecutiveBuy && p != nil {
			if p.Count < 2 {
				add("%s.consecutive_buy.count must be at least 2", prefix)
			}
			if p.TotalAmountThreshold <= 0 {
				add("%s.consecutive_buy.total_amount_threshold must be positive", prefix)
			}
			if p.TimeWindowSeconds <= 0 {
				add("%s.consecutive_buy.time_window_seconds must be positive", prefix)
			}
			if p.BuyAmountSol <= 0 {
				add("%s.consecutive_buy.buy_amount_sol must be positive", prefix)
			}
			if p.TargetProfitRatio <= 0 {
				add("%s.consecutive_buy.target_profit_ratio must be positive", prefix)
			}
		}
		if p := s.Momentum; s.Type == domain.StrategyTypeMomentum && p != nil {
			if p.LookbackPeriods <= 0 {
				add("%s.momentum.lookback_periods must be positive", prefix)
			}
			if p.MinPriceChange <= 0 {
				add("%s.momentum.min_price_change must be positive", prefix)
			}
			if p.BuyAmountSol <= 0 {
				add("%s.momentum.buy_amount_sol must be positive", prefix)
			}
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify.telegram_token and notify.telegram_chat_id must be set together")
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}
