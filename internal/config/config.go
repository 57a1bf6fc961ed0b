// Package config defines the bot configuration document and its loading rules.
package config

import (
	"time"

	"solana-dex-bot/internal/domain"
)

// Defaults
const (
	DefaultQueueSize           = 1024
	DefaultExitCheckInterval   = 5 * time.Second
	DefaultCleanupInterval     = time.Hour
	DefaultPriceIdleTimeout    = time.Hour
	DefaultClosedRetentionDays = 7
	DefaultSlippageBps         = 500
	DefaultExecutorTimeout     = 30 * time.Second
	DefaultExecutorRetries     = 3
	DefaultMetricsAddr         = ":9090"
)

// Config is the full configuration document.
type Config struct {
	Logging    LoggingConfig           `json:"logging" yaml:"logging"`
	Feed       FeedConfig              `json:"feed" yaml:"feed"`
	Executor   ExecutorConfig          `json:"executor" yaml:"executor"`
	Solana     SolanaConfig            `json:"solana" yaml:"solana"`
	Bot        BotConfig               `json:"bot" yaml:"bot"`
	Strategies []domain.StrategyConfig `json:"strategies" yaml:"strategies"`
	Storage    StorageConfig           `json:"storage" yaml:"storage"`
	Notify     NotifyConfig            `json:"notify" yaml:"notify"`
	Metrics    MetricsConfig           `json:"metrics" yaml:"metrics"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug | info | warn | error
	Format string `json:"format" yaml:"format"` // json | console
}

// FeedConfig configures the event feed connection.
type FeedConfig struct {
	URL               string   `json:"url" yaml:"url"`
	QueueSize         int      `json:"queue_size" yaml:"queue_size"` // bounded, drop-oldest
	ReconnectDelay    Duration `json:"reconnect_delay" yaml:"reconnect_delay"`
	MaxReconnectDelay Duration `json:"max_reconnect_delay" yaml:"max_reconnect_delay"`
	PingInterval      Duration `json:"ping_interval" yaml:"ping_interval"`
}

// ExecutorConfig configures the external trading-execution service.
type ExecutorConfig struct {
	URL                string   `json:"url" yaml:"url"`
	Timeout            Duration `json:"timeout" yaml:"timeout"`
	MaxRetries         *int     `json:"max_retries" yaml:"max_retries"` // nil means the default; 0 disables retries
	RetryDelay         Duration `json:"retry_delay" yaml:"retry_delay"`
	DefaultSlippageBps int      `json:"default_slippage_bps" yaml:"default_slippage_bps"`
}

// RetryCount returns the configured executor retries, or the default when unset.
func (c ExecutorConfig) RetryCount() int {
	if c.MaxRetries == nil {
		return DefaultExecutorRetries
	}
	return *c.MaxRetries
}

// SolanaConfig configures on-chain account resolution.
type SolanaConfig struct {
	RPCURL string `json:"rpc_url" yaml:"rpc_url"` // optional; enables pool account verification
}

// BotConfig is the global risk envelope.
type BotConfig struct {
	MaxTotalPositions    int      `json:"max_total_positions" yaml:"max_total_positions"`
	MaxTotalInvestment   float64  `json:"max_total_investment" yaml:"max_total_investment"` // SOL
	EmergencyStop        bool     `json:"emergency_stop" yaml:"emergency_stop"`
	DryRun               bool     `json:"dry_run" yaml:"dry_run"`
	MaxDailyLoss         float64  `json:"max_daily_loss" yaml:"max_daily_loss"` // SOL, positive
	MaxConsecutiveLosses int      `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
	PauseAfterLoss       Duration `json:"pause_after_loss" yaml:"pause_after_loss"`
	ExitCheckInterval    Duration `json:"exit_check_interval" yaml:"exit_check_interval"`
	CleanupInterval      Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
	PriceIdleTimeout     Duration `json:"price_idle_timeout" yaml:"price_idle_timeout"` // price history of idle mints is dropped
	ClosedRetentionDays  int      `json:"closed_retention_days" yaml:"closed_retention_days"`
}

// StorageConfig selects persistence backends. Empty values keep the in-memory default.
type StorageConfig struct {
	PostgresDSN   string      `json:"postgres_dsn" yaml:"postgres_dsn"`
	ClickhouseDSN string      `json:"clickhouse_dsn" yaml:"clickhouse_dsn"`
	SQLitePath    string      `json:"sqlite_path" yaml:"sqlite_path"`
	Redis         RedisConfig `json:"redis" yaml:"redis"`
	S3            S3Config    `json:"s3" yaml:"s3"`

	TickQueueSize     int      `json:"tick_queue_size" yaml:"tick_queue_size"`
	TickBatchSize     int      `json:"tick_batch_size" yaml:"tick_batch_size"`
	TickFlushInterval Duration `json:"tick_flush_interval" yaml:"tick_flush_interval"`
}

// RedisConfig configures the price mirror and notification publisher.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Channel  string `json:"channel" yaml:"channel"` // notification pub/sub channel
}

// S3Config configures the closed-position archive.
type S3Config struct {
	Bucket         string `json:"bucket" yaml:"bucket"`
	Region         string `json:"region" yaml:"region"`
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	AccessKey      string `json:"access_key" yaml:"access_key"`
	SecretKey      string `json:"secret_key" yaml:"secret_key"`
	Prefix         string `json:"prefix" yaml:"prefix"`
	ForcePathStyle bool   `json:"force_path_style" yaml:"force_path_style"`
}

// NotifyConfig configures notification senders.
type NotifyConfig struct {
	TelegramToken  string   `json:"telegram_token" yaml:"telegram_token"`
	TelegramChatID string   `json:"telegram_chat_id" yaml:"telegram_chat_id"`
	Events         []string `json:"events" yaml:"events"` // empty means all
}

// MetricsConfig configures the metrics HTTP server.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"` // "off" disables the server
}

// Defaults returns a configuration with every default applied and no strategies.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Feed.QueueSize == 0 {
		cfg.Feed.QueueSize = DefaultQueueSize
	}
	if cfg.Feed.ReconnectDelay.Duration == 0 {
		cfg.Feed.ReconnectDelay.Duration = time.Second
	}
	if cfg.Feed.MaxReconnectDelay.Duration == 0 {
		cfg.Feed.MaxReconnectDelay.Duration = 30 * time.Second
	}
	if cfg.Feed.PingInterval.Duration == 0 {
		cfg.Feed.PingInterval.Duration = 30 * time.Second
	}

	if cfg.Executor.Timeout.Duration == 0 {
		cfg.Executor.Timeout.Duration = DefaultExecutorTimeout
	}
	if cfg.Executor.MaxRetries == nil {
		n := DefaultExecutorRetries
		cfg.Executor.MaxRetries = &n
	}
	if cfg.Executor.RetryDelay.Duration == 0 {
		cfg.Executor.RetryDelay.Duration = 500 * time.Millisecond
	}
	if cfg.Executor.DefaultSlippageBps == 0 {
		cfg.Executor.DefaultSlippageBps = DefaultSlippageBps
	}

	if cfg.Bot.ExitCheckInterval.Duration == 0 {
		cfg.Bot.ExitCheckInterval.Duration = DefaultExitCheckInterval
	}
	if cfg.Bot.CleanupInterval.Duration == 0 {
		cfg.Bot.CleanupInterval.Duration = DefaultCleanupInterval
	}
	if cfg.Bot.PriceIdleTimeout.Duration == 0 {
		cfg.Bot.PriceIdleTimeout.Duration = DefaultPriceIdleTimeout
	}
	if cfg.Bot.ClosedRetentionDays == 0 {
		cfg.Bot.ClosedRetentionDays = DefaultClosedRetentionDays
	}

	if cfg.Storage.TickQueueSize == 0 {
		cfg.Storage.TickQueueSize = 4096
	}
	if cfg.Storage.TickBatchSize == 0 {
		cfg.Storage.TickBatchSize = 500
	}
	if cfg.Storage.TickFlushInterval.Duration == 0 {
		cfg.Storage.TickFlushInterval.Duration = 2 * time.Second
	}
	if cfg.Storage.Redis.Channel == "" {
		cfg.Storage.Redis.Channel = "dexbot:notifications"
	}
	if cfg.Storage.S3.Prefix == "" {
		cfg.Storage.S3.Prefix = "closed-positions"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}

	for i := range cfg.Strategies {
		applyStrategyDefaults(&cfg.Strategies[i])
	}
}

func applyStrategyDefaults(s *domain.StrategyConfig) {
	if s.Type == "" {
		s.Type = s.Name
	}
	if s.MaxPositions == 0 {
		s.MaxPositions = 1
	}
	if s.SlippageBps == 0 {
		s.SlippageBps = DefaultSlippageBps
	}
	switch s.Type {
	case domain.StrategyTypeConsecutiveBuy:
		if s.ConsecutiveBuy == nil {
			s.ConsecutiveBuy = &domain.ConsecutiveBuyParams{}
		}
		p := s.ConsecutiveBuy
		if p.Count == 0 {
			p.Count = 3
		}
		if p.TotalAmountThreshold == 0 {
			p.TotalAmountThreshold = 5.0
		}
		if p.TimeWindowSeconds == 0 {
			p.TimeWindowSeconds = 300
		}
		if p.BuyAmountSol == 0 {
			p.BuyAmountSol = 0.01
		}
		if p.TargetProfitRatio == 0 {
			p.TargetProfitRatio = 0.1
		}
	case domain.StrategyTypeMomentum:
		if s.Momentum == nil {
			s.Momentum = &domain.MomentumParams{}
		}
		p := s.Momentum
		if p.LookbackPeriods == 0 {
			p.LookbackPeriods = 10
		}
		if p.MinPriceChange == 0 {
			p.MinPriceChange = 0.15
		}
		if p.BuyAmountSol == 0 {
			p.BuyAmountSol = 0.01
		}
	}
}
