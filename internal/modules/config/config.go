package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"trade_guard/internal/strategy"
)

const (
	configFilePathENV = "CONFIG_FILE"
	defaultConfigName = "values_local.yaml"
	configDir         = "configs"
)

const (
	ModeLive  = "live"
	ModePaper = "paper"
)

// Config ...
type Config struct {
	Service struct {
		Name       string `mapstructure:"name" yaml:"name"`
		HealthAddr string `mapstructure:"health_addr" yaml:"health_addr"`
	} `mapstructure:"service" yaml:"service"`

	Log struct {
		Level string `mapstructure:"level" yaml:"level"`
		File  string `mapstructure:"file" yaml:"file"` // пусто - только stdout
	} `mapstructure:"log" yaml:"log"`

	Tracing struct {
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
		Host    string `mapstructure:"host" yaml:"host"`
		Port    int    `mapstructure:"port" yaml:"port"`
	} `mapstructure:"tracing" yaml:"tracing"`

	OKX struct {
		BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
		APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
		APISecret  string        `mapstructure:"api_secret" yaml:"api_secret"`
		Passphrase string        `mapstructure:"passphrase" yaml:"passphrase"`
		Simulated  bool          `mapstructure:"simulated" yaml:"simulated"` // x-simulated-trading: 1
		Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"okx" yaml:"okx"`

	Telegram struct {
		Token  string `mapstructure:"token" yaml:"token"`
		ChatID int64  `mapstructure:"chat_id" yaml:"chat_id"`
	} `mapstructure:"telegram" yaml:"telegram"`

	Trading Trading `mapstructure:"trading" yaml:"trading"`

	Protect struct {
		TPAtrMultiplier float64 `mapstructure:"tp_atr_multiplier" yaml:"tp_atr_multiplier"`
		SLAtrMultiplier float64 `mapstructure:"sl_atr_multiplier" yaml:"sl_atr_multiplier"`
	} `mapstructure:"protect" yaml:"protect"`

	Breakers struct {
		Candles Breaker `mapstructure:"candles" yaml:"candles"`
		Balance Breaker `mapstructure:"balance" yaml:"balance"`
		Orders  Breaker `mapstructure:"orders" yaml:"orders"`
	} `mapstructure:"breakers" yaml:"breakers"`

	Retry struct {
		Candles Retry `mapstructure:"candles" yaml:"candles"`
		Balance Retry `mapstructure:"balance" yaml:"balance"`
		Orders  Retry `mapstructure:"orders" yaml:"orders"`
	} `mapstructure:"retry" yaml:"retry"`

	Strategy strategy.Config `mapstructure:"strategy" yaml:"strategy"`

	KeepAlive struct {
		URL      string        `mapstructure:"url" yaml:"url"`
		Interval time.Duration `mapstructure:"interval" yaml:"interval"`
		Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	} `mapstructure:"keepalive" yaml:"keepalive"`

	Metrics struct {
		SnapshotInterval time.Duration `mapstructure:"snapshot_interval" yaml:"snapshot_interval"`
	} `mapstructure:"metrics" yaml:"metrics"`
}

type Trading struct {
	Mode         string  `mapstructure:"mode" yaml:"mode"` // live | paper
	Symbol       string  `mapstructure:"symbol" yaml:"symbol"`
	Timeframe    string  `mapstructure:"timeframe" yaml:"timeframe"`
	CandleLimit  int     `mapstructure:"candle_limit" yaml:"candle_limit"`
	Leverage     int     `mapstructure:"leverage" yaml:"leverage"`
	RiskAlloc    float64 `mapstructure:"risk_alloc" yaml:"risk_alloc"` // доля баланса под позицию
	MarginMode   string  `mapstructure:"margin_mode" yaml:"margin_mode"`
	QuoteCcy     string  `mapstructure:"quote_ccy" yaml:"quote_ccy"`
	PaperBalance float64 `mapstructure:"paper_balance" yaml:"paper_balance"`

	MaxDailyTrades int `mapstructure:"max_daily_trades" yaml:"max_daily_trades"` // 0 - без лимита
	// TrailArmRatio - доля пути до TP1, после которой позиция помечается trailing. 0 - выкл.
	TrailArmRatio float64 `mapstructure:"trail_arm_ratio" yaml:"trail_arm_ratio"`

	TickInterval     time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	CredentialIdle   time.Duration `mapstructure:"credential_idle" yaml:"credential_idle"`
	NoDataBackoffMin time.Duration `mapstructure:"no_data_backoff_min" yaml:"no_data_backoff_min"`
	NoDataBackoffMax time.Duration `mapstructure:"no_data_backoff_max" yaml:"no_data_backoff_max"`
	ErrorPause       time.Duration `mapstructure:"error_pause" yaml:"error_pause"`
	CallTimeout      time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
}

type Breaker struct {
	MaxFailures int           `mapstructure:"max_failures" yaml:"max_failures"`
	Cooldown    time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

type Retry struct {
	Tries   int           `mapstructure:"tries" yaml:"tries"`
	Delay   time.Duration `mapstructure:"delay" yaml:"delay"`
	Backoff float64       `mapstructure:"backoff" yaml:"backoff"`
}

// Default - значения, поверх которых ложатся файл и переменные окружения.
func Default() *Config {
	c := &Config{}
	c.Service.Name = "trade_guard"
	c.Service.HealthAddr = ":8080"
	c.Log.Level = "info"
	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831

	c.OKX.BaseURL = "https://www.okx.com"
	c.OKX.Timeout = 10 * time.Second

	c.Trading = Trading{
		Mode:             ModeLive,
		Symbol:           "DOGE-USDT-SWAP",
		Timeframe:        "15m",
		CandleLimit:      300,
		Leverage:         10,
		RiskAlloc:        0.60,
		MarginMode:       "isolated",
		QuoteCcy:         "USDT",
		PaperBalance:     1000,
		TickInterval:     10 * time.Second,
		CredentialIdle:   3 * time.Second,
		NoDataBackoffMin: 5 * time.Second,
		NoDataBackoffMax: 60 * time.Second,
		ErrorPause:       5 * time.Second,
		CallTimeout:      10 * time.Second,
	}

	c.Protect.TPAtrMultiplier = 1.2
	c.Protect.SLAtrMultiplier = 1.2

	c.Breakers.Candles = Breaker{MaxFailures: 5, Cooldown: 60 * time.Second}
	c.Breakers.Balance = Breaker{MaxFailures: 5, Cooldown: 60 * time.Second}
	c.Breakers.Orders = Breaker{MaxFailures: 3, Cooldown: 120 * time.Second}

	c.Retry.Candles = Retry{Tries: 3, Delay: 500 * time.Millisecond, Backoff: 2}
	c.Retry.Balance = Retry{Tries: 3, Delay: 500 * time.Millisecond, Backoff: 2}
	// ордера повторяем реже: повтор рискует двойным исполнением
	c.Retry.Orders = Retry{Tries: 2, Delay: 500 * time.Millisecond, Backoff: 2}

	c.Strategy = strategy.DefaultConfig()

	c.KeepAlive.Interval = 60 * time.Second
	c.KeepAlive.Timeout = 5 * time.Second
	c.Metrics.SnapshotInterval = 30 * time.Second
	return c
}

// Load: дефолты -> yaml-файл (если есть) -> .env -> переменные окружения.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env необязателен

	v := viper.New()
	v.SetConfigType("yaml")

	base, err := yaml.Marshal(Default())
	if err != nil {
		return nil, errors.Wrap(err, "marshal defaults")
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, errors.Wrap(err, "read defaults")
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return nil, errors.Wrapf(err, "read config file %s", path)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat config file %s", path)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", key)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.Trading.Mode = strings.ToLower(strings.TrimSpace(cfg.Trading.Mode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envBindings = map[string][]string{
	"okx.api_key":      {"OKX_API_KEY"},
	"okx.api_secret":   {"OKX_API_SECRET"},
	"okx.passphrase":   {"OKX_PASSPHRASE"},
	"trading.mode":     {"TRADE_MODE"},
	"telegram.token":   {"TELEGRAM_TOKEN"},
	"telegram.chat_id": {"TELEGRAM_CHAT_ID"},
	"keepalive.url":    {"KEEPALIVE_URL", "RENDER_EXTERNAL_URL"},
	"log.level":        {"LOG_LEVEL"},
}

// NewConfig читает configs/$CONFIG_FILE (по умолчанию values_local.yaml).
func NewConfig() (*Config, error) {
	name := os.Getenv(configFilePathENV)
	if name == "" {
		name = defaultConfigName
	}
	return Load(filepath.Join(configDir, name))
}

func (c *Config) Validate() error {
	t := c.Trading
	switch {
	case t.Mode != ModeLive && t.Mode != ModePaper:
		return errors.Errorf("trading.mode must be live or paper, got %q", t.Mode)
	case t.Symbol == "":
		return errors.New("trading.symbol is empty")
	case t.Leverage < 1:
		return errors.Errorf("trading.leverage must be >= 1, got %d", t.Leverage)
	case t.RiskAlloc <= 0 || t.RiskAlloc > 1:
		return errors.Errorf("trading.risk_alloc must be in (0,1], got %v", t.RiskAlloc)
	case t.TickInterval <= 0:
		return errors.New("trading.tick_interval must be > 0")
	case t.NoDataBackoffMin <= 0 || t.NoDataBackoffMax < t.NoDataBackoffMin:
		return errors.Errorf("trading.no_data_backoff: bad range %s..%s", t.NoDataBackoffMin, t.NoDataBackoffMax)
	case t.CandleLimit < strategy.MinCandles:
		return errors.Errorf("trading.candle_limit must be >= %d, got %d", strategy.MinCandles, t.CandleLimit)
	case c.Protect.TPAtrMultiplier <= 0 || c.Protect.SLAtrMultiplier <= 0:
		return errors.New("protect: atr multipliers must be > 0")
	}

	for name, b := range map[string]Breaker{"candles": c.Breakers.Candles, "balance": c.Breakers.Balance, "orders": c.Breakers.Orders} {
		if b.MaxFailures < 1 || b.Cooldown <= 0 {
			return errors.Errorf("breakers.%s: max_failures >= 1 and cooldown > 0 required", name)
		}
	}
	for name, r := range map[string]Retry{"candles": c.Retry.Candles, "balance": c.Retry.Balance, "orders": c.Retry.Orders} {
		if r.Tries < 1 || r.Delay < 0 || r.Backoff < 1 {
			return errors.Errorf("retry.%s: tries >= 1, delay >= 0, backoff >= 1 required", name)
		}
	}
	return nil
}

// Redacted - yaml для стартового лога, секреты замаскированы.
func (c *Config) Redacted() string {
	cp := *c
	cp.OKX.APIKey = mask(cp.OKX.APIKey)
	cp.OKX.APISecret = mask(cp.OKX.APISecret)
	cp.OKX.Passphrase = mask(cp.OKX.Passphrase)
	cp.Telegram.Token = mask(cp.Telegram.Token)

	bs, err := yaml.Marshal(cp)
	if err != nil {
		return "<unprintable config: " + err.Error() + ">"
	}
	return string(bs)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func (c *Config) HasOKXCredentials() bool {
	return c.OKX.APIKey != "" && c.OKX.APISecret != "" && c.OKX.Passphrase != ""
}
