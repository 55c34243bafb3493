package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Hypothesis HypothesisConfig `yaml:"hypothesis" mapstructure:"hypothesis"`
	Guidance   GuidanceConfig   `yaml:"guidance" mapstructure:"guidance"`
	MarketData MarketDataConfig `yaml:"market_data" mapstructure:"market_data"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Monitor    MonitorConfig    `yaml:"monitor" mapstructure:"monitor"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ClassifyConfig tunes the significance scorer and calibration engine.
type ClassifyConfig struct {
	// Significance points.
	PointsHighNewInfo    float64 `yaml:"points_high_new_info" mapstructure:"points_high_new_info"`
	PointsHighPricedIn   float64 `yaml:"points_high_priced_in" mapstructure:"points_high_priced_in"`
	PointsMaterialChange float64 `yaml:"points_material_change" mapstructure:"points_material_change"`
	Points8K             float64 `yaml:"points_8k" mapstructure:"points_8k"`
	PointsPeriodic       float64 `yaml:"points_periodic" mapstructure:"points_periodic"`
	PointsPrimaryWatch   float64 `yaml:"points_primary_watch" mapstructure:"points_primary_watch"`

	// Calibration.
	DampenThreshold     float64 `yaml:"dampen_threshold" mapstructure:"dampen_threshold"`
	DampenSlope         float64 `yaml:"dampen_slope" mapstructure:"dampen_slope"`
	ContrarianBoost     float64 `yaml:"contrarian_boost" mapstructure:"contrarian_boost"`
	TierDailyDigest     float64 `yaml:"tier_daily_digest" mapstructure:"tier_daily_digest"`
	TierImmediate       float64 `yaml:"tier_immediate" mapstructure:"tier_immediate"`
	EarningsHorizonDays int     `yaml:"earnings_horizon_days" mapstructure:"earnings_horizon_days"`
}

// HypothesisConfig tunes evidence-driven status transitions.
type HypothesisConfig struct {
	// DisproveThreshold is the number of consecutive against-evidence
	// entries (no intervening for-evidence) required to disprove.
	DisproveThreshold     int     `yaml:"disprove_threshold" mapstructure:"disprove_threshold"`
	ConfidenceStepFor     float64 `yaml:"confidence_step_for" mapstructure:"confidence_step_for"`
	ConfidenceStepAgainst float64 `yaml:"confidence_step_against" mapstructure:"confidence_step_against"`
}

// GuidanceConfig tunes revision-chain classification.
type GuidanceConfig struct {
	// MaterialityPct is the midpoint move (percent) below which a new
	// guidance value counts as confirmed rather than raised/lowered.
	MaterialityPct float64 `yaml:"materiality_pct" mapstructure:"materiality_pct"`
	// AlertPct is the revision size that produces a decision-log alert
	// and contributes to the thesis signal.
	AlertPct float64 `yaml:"alert_pct" mapstructure:"alert_pct"`
}

// MarketDataConfig configures the analyst-ratings fetcher.
type MarketDataConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// AnthropicConfig holds Anthropic API settings for evidence interpretation.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// MonitorConfig configures the monitoring loop.
type MonitorConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
}

// ServerConfig configures the JSON API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("THESIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "thesis.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("classify.points_high_new_info", 15)
	v.SetDefault("classify.points_high_priced_in", 3)
	v.SetDefault("classify.points_material_change", 15)
	v.SetDefault("classify.points_8k", 15)
	v.SetDefault("classify.points_periodic", 5)
	v.SetDefault("classify.points_primary_watch", 5)
	v.SetDefault("classify.dampen_threshold", 0.6)
	v.SetDefault("classify.dampen_slope", 0.6)
	v.SetDefault("classify.contrarian_boost", 30)
	v.SetDefault("classify.tier_daily_digest", 30)
	v.SetDefault("classify.tier_immediate", 60)
	v.SetDefault("classify.earnings_horizon_days", 30)

	v.SetDefault("hypothesis.disprove_threshold", 2)
	v.SetDefault("hypothesis.confidence_step_for", 10)
	v.SetDefault("hypothesis.confidence_step_against", 10)

	v.SetDefault("guidance.materiality_pct", 2.0)
	v.SetDefault("guidance.alert_pct", 15.0)

	v.SetDefault("market_data.timeout_secs", 15)
	v.SetDefault("market_data.requests_per_sec", 2)
	v.SetDefault("market_data.user_agent", "thesis-cli research@sellsadvisors.com")

	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")

	v.SetDefault("monitor.max_concurrent_companies", 4)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; fall back to defaults + env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
