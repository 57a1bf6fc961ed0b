package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"solana-dex-bot/internal/domain"
)

// Override adjusts a loaded configuration before it is validated, e.g.
// from command-line flags.
type Override func(*Config)

// Load reads the configuration file at path (.json, .yaml or .yml), applies
// defaults, loads .env when present, applies environment overrides, then the
// given overrides, and validates. Invalid environment values are reported
// together with validation violations.
func Load(path string, overrides ...Override) (*Config, error) {
	return load(path, (*Config).Validate, overrides)
}

// LoadOffline is Load for replay runs, where no feed URL is required.
func LoadOffline(path string, overrides ...Override) (*Config, error) {
	return load(path, (*Config).ValidateOffline, overrides)
}

func load(path string, validate func(*Config) error, overrides []Override) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	// A missing .env is not an error.
	_ = godotenv.Load()

	envErrs := ApplyEnv(cfg)
	for _, o := range overrides {
		o(cfg)
	}
	if err := validate(cfg); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Violations = append(envErrs, verr.Violations...)
			return nil, verr
		}
		return nil, err
	}
	if len(envErrs) > 0 {
		return nil, &ValidationError{Violations: envErrs}
	}
	return cfg, nil
}

// Parse decodes a configuration document and applies defaults.
// ext selects the format; anything other than .yaml/.yml is read as JSON.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// ApplyEnv overlays documented environment variables onto cfg.
// It returns one message per variable that was set but could not be parsed.
func ApplyEnv(cfg *Config) []string {
	e := &envOverlay{}

	e.setStr(&cfg.Feed.URL, "BOT_FEED_URL")
	e.setStr(&cfg.Executor.URL, "BOT_EXECUTOR_URL")
	e.setStr(&cfg.Solana.RPCURL, "BOT_RPC_URL")
	e.setBool(&cfg.Bot.DryRun, "BOT_DRY_RUN")
	e.setBool(&cfg.Bot.EmergencyStop, "BOT_EMERGENCY_STOP")
	e.setInt(&cfg.Bot.MaxTotalPositions, "BOT_MAX_TOTAL_POSITIONS")
	e.setFloat64(&cfg.Bot.MaxTotalInvestment, "BOT_MAX_TOTAL_INVESTMENT")
	e.setFloat64(&cfg.Bot.MaxDailyLoss, "BOT_MAX_DAILY_LOSS")
	e.setDuration(&cfg.Bot.ExitCheckInterval, "BOT_EXIT_CHECK_INTERVAL")
	e.setStr(&cfg.Logging.Level, "BOT_LOG_LEVEL")
	e.setStr(&cfg.Metrics.Addr, "BOT_METRICS_ADDR")

	e.setStr(&cfg.Storage.PostgresDSN, "POSTGRES_DSN")
	e.setStr(&cfg.Storage.ClickhouseDSN, "CLICKHOUSE_DSN")
	e.setStr(&cfg.Storage.SQLitePath, "SQLITE_PATH")
	e.setStr(&cfg.Storage.Redis.Addr, "REDIS_ADDR")
	e.setStr(&cfg.Storage.Redis.Password, "REDIS_PASSWORD")
	e.setStr(&cfg.Storage.S3.Bucket, "S3_BUCKET")
	e.setStr(&cfg.Storage.S3.Region, "S3_REGION")
	e.setStr(&cfg.Storage.S3.AccessKey, "S3_ACCESS_KEY")
	e.setStr(&cfg.Storage.S3.SecretKey, "S3_SECRET_KEY")
	e.setStr(&cfg.Notify.TelegramToken, "TELEGRAM_TOKEN")
	e.setStr(&cfg.Notify.TelegramChatID, "TELEGRAM_CHAT_ID")

	for i := range cfg.Strategies {
		p := cfg.Strategies[i].ConsecutiveBuy
		if cfg.Strategies[i].Type != domain.StrategyTypeConsecutiveBuy || p == nil {
			continue
		}
		e.setInt(&p.Count, "CONSECUTIVE_BUY_COUNT")
		e.setFloat64(&p.TotalAmountThreshold, "CONSECUTIVE_BUY_TOTAL_AMOUNT")
		e.setFloat64(&p.TimeWindowSeconds, "CONSECUTIVE_BUY_TIME_WINDOW_SECONDS")
		e.setFloat64(&p.BuyAmountSol, "CONSECUTIVE_BUY_AMOUNT_SOL")
		e.setFloat64(&p.TargetProfitRatio, "CONSECUTIVE_BUY_TARGET_PROFIT")
	}

	return e.errs
}

// envOverlay holds typed setters. Each only mutates the target when the
// variable is present and non-empty.
type envOverlay struct {
	errs []string
}

func (e *envOverlay) invalid(key, value, kind string) {
	e.errs = append(e.errs, fmt.Sprintf("%s=%q is not a valid %s", key, value, kind))
}

func (e *envOverlay) setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (e *envOverlay) setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.invalid(key, v, "integer")
			return
		}
		*dst = n
	}
}

func (e *envOverlay) setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.invalid(key, v, "number")
			return
		}
		*dst = f
	}
}

func (e *envOverlay) setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.invalid(key, v, "boolean")
			return
		}
		*dst = b
	}
}

func (e *envOverlay) setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.invalid(key, v, "duration")
			return
		}
		dst.Duration = d
	}
}
