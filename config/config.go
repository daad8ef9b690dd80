package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when no -config flag is given.
const DefaultPath = "config/config.yml"

var envSpecificPaths = map[string]string{
	EnvironmentProduction: "config/config.production.yml",
	EnvironmentStaging:    "config/config.staging.yml",
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Platform PlatformConfig `yaml:"platform"`
	Campaign CampaignConfig `yaml:"campaign"`
	Spin     SpinConfig     `yaml:"spin"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Address           string        `yaml:"address" env:"ENGAGEFLOW_SERVER_ADDRESS"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins    []string      `yaml:"allowed_origins" env:"ENGAGEFLOW_ALLOWED_ORIGINS" envSeparator:","`
	Status            StatusConfig  `yaml:"status"`
}

// StatusConfig controls the /api/status view of recent warnings and host
// resource samples.
type StatusConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LogHistory     int           `yaml:"log_history"`
	SampleHistory  int           `yaml:"sample_history"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

type PlatformConfig struct {
	BaseURL           string        `yaml:"base_url" env:"ENGAGEFLOW_PLATFORM_BASE_URL"`
	UserAgent         string        `yaml:"user_agent"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	SpinTimeout       time.Duration `yaml:"spin_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"ENGAGEFLOW_REQUESTS_PER_SECOND"`
	Burst             int           `yaml:"burst"`
	Chains            []string      `yaml:"chains"`
}

// CampaignSeed is a campaign that is always processed, discovered or not.
type CampaignSeed struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type CampaignConfig struct {
	Seeds               []CampaignSeed `yaml:"seeds"`
	SkipTaskKeywords    []string       `yaml:"skip_task_keywords"`
	MaxValidateAttempts int            `yaml:"max_validate_attempts"`
	ValidateDelay       time.Duration  `yaml:"validate_delay"`
	SocialProviders     []string       `yaml:"social_providers"`
}

type SpinConfig struct {
	Bets                []int64       `yaml:"bets"`
	Game                string        `yaml:"game"`
	Currency            string        `yaml:"currency"`
	WinDelay            time.Duration `yaml:"win_delay"`
	MaxTransientRetries int           `yaml:"max_transient_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
}

type LoggingConfig struct {
	Level          string        `yaml:"level" env:"ENGAGEFLOW_LOG_LEVEL"`
	Format         string        `yaml:"format"`
	Output         string        `yaml:"output"`
	MaxAge         int           `yaml:"max_age"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

type MetricsConfig struct {
	Prometheus bool             `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENGAGEFLOW_CLOUDWATCH_ENABLED"`
	Region    string `yaml:"region" env:"AWS_REGION"`
	Namespace string `yaml:"namespace"`
}

// Fixed retry policy of the automations.
const (
	DefaultMaxValidateAttempts = 20
	DefaultValidateDelay       = 1500 * time.Millisecond
	DefaultMaxTransientRetries = 5
	DefaultSpinRetryDelay      = 2 * time.Second
	DefaultWinDelay            = 500 * time.Millisecond
)

// Default returns the built-in configuration. Retry and delay values are
// fixed platform policy and should only be changed deliberately.
func Default() Config {
	return Config{
		App: AppConfig{Name: "engageflow", Version: "dev"},
		Server: ServerConfig{
			Address:           "0.0.0.0:8000",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			AllowedOrigins:    []string{"*"},
			Status: StatusConfig{
				Enabled:        true,
				LogHistory:     200,
				SampleHistory:  120,
				SampleInterval: 5 * time.Second,
			},
		},
		Platform: PlatformConfig{
			BaseURL:           "https://prod-api-backend.kgen.io",
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
			RequestTimeout:    10 * time.Second,
			SpinTimeout:       30 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
			Chains:            []string{"Aptos", "Arbitrum", "BSC", "Base", "Haqq", "KlaytnKaia", "Kroma", "Polygon", "Zksync"},
		},
		Campaign: CampaignConfig{
			Seeds: []CampaignSeed{
				{ID: "7585dbbc-0f88-48d8-b22c-7b640a45a79f", Label: "Kickstart Your POGE"},
				{ID: "4221a801-c49c-443c-8106-45d09c89c139", Label: "KDrop Campaign"},
				{ID: "2270e7db-9fc2-457f-9267-515462d2e023", Label: "New Airdrop Campaign"},
				{ID: "7ed14636-0649-4bac-a00c-ddb5572eb0e0", Label: "New Campaign"},
			},
			SkipTaskKeywords:    []string{"Selfie", "Complete this K-Drop Campaign", "Complete any one K-Quest"},
			MaxValidateAttempts: DefaultMaxValidateAttempts,
			ValidateDelay:       DefaultValidateDelay,
			SocialProviders:     []string{"STEAM", "DISCORD", "TWITTER", "TELEGRAM"},
		},
		Spin: SpinConfig{
			Bets:                []int64{5000, 1000, 500, 100},
			Game:                "wh",
			Currency:            "k_point",
			WinDelay:            DefaultWinDelay,
			MaxTransientRetries: DefaultMaxTransientRetries,
			RetryDelay:          DefaultSpinRetryDelay,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			Output:         "stdout",
			ReportInterval: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Prometheus: true,
			CloudWatch: CloudWatchConfig{Namespace: "EngageFlow"},
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults, applies
// environment overrides and validates the result. A missing file at the
// default path is not an error.
func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultPath, envSpecificPaths)

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	cfg.Platform.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Platform.BaseURL), "/")

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if u, err := url.Parse(cfg.Platform.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("platform.base_url '%s' is invalid", cfg.Platform.BaseURL)
	}
	if cfg.Platform.RequestTimeout <= 0 || cfg.Platform.SpinTimeout <= 0 {
		return fmt.Errorf("platform timeouts must be greater than 0")
	}
	if cfg.Platform.RequestsPerSecond < 0 {
		return fmt.Errorf("platform.requests_per_second must not be negative")
	}

	if cfg.Campaign.MaxValidateAttempts <= 0 {
		return fmt.Errorf("campaign.max_validate_attempts must be greater than 0")
	}
	for i, seed := range cfg.Campaign.Seeds {
		if strings.TrimSpace(seed.ID) == "" {
			return fmt.Errorf("campaign.seeds[%d].id is required", i)
		}
	}

	if len(cfg.Spin.Bets) == 0 {
		return fmt.Errorf("spin.bets must not be empty")
	}
	for i := range cfg.Spin.Bets {
		if cfg.Spin.Bets[i] <= 0 {
			return fmt.Errorf("spin.bets[%d] must be greater than 0", i)
		}
		if i > 0 && cfg.Spin.Bets[i] >= cfg.Spin.Bets[i-1] {
			return fmt.Errorf("spin.bets must be strictly descending")
		}
	}
	if cfg.Spin.MaxTransientRetries < 0 {
		return fmt.Errorf("spin.max_transient_retries must not be negative")
	}

	return nil
}
