// Package config loads fleetpilot settings from FLEETPILOT_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"fleetpilot/internal/domain/policy"
)

const EnvPrefix = "FLEETPILOT"

const (
	ProviderAWS  = "aws"
	ProviderMock = "mock"

	ResolverRules   = "rules"
	ResolverBedrock = "bedrock"
)

type Config struct {
	HTTPAddr        string
	DBDSN           string
	MigrationsDir   string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Provider        string
	Resolver        string
	AWSRegion       string
	AWSEndpoint     string
	BedrockRegion   string
	BedrockModelID  string
	MaxHourlyCost   float64
	PricingFile     string
	Prices          policy.PriceTable
	TokenTTL        time.Duration
	AuditRetention  time.Duration
	BackupRecency   time.Duration
	ApprovalTopic   string
	RateLimitRPS    float64
	RateLimitBurst  int
	ReaperInterval  time.Duration
	HistorySize     int
	ReadTimeout     time.Duration
	StateTimeout    time.Duration
	DefaultTimeout  time.Duration
	AuditWriteLimit time.Duration
	LogLevel        string
	CORSOrigins     []string
	OTLPEndpoint    string
	OTLPInsecure    bool
	MetricsInterval time.Duration
}

// New returns a viper instance with every default set and environment
// lookup enabled. FLEETPILOT_CONFIG_FILE, when set, is read on top.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_dsn", "")
	v.SetDefault("db_migrations_dir", "db/migrations")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("provider", ProviderMock)
	v.SetDefault("resolver", ResolverRules)
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("aws_endpoint", "")
	v.SetDefault("bedrock_region", "us-east-1")
	v.SetDefault("bedrock_model_id", "")
	v.SetDefault("max_instance_cost_per_hour", 1.0)
	v.SetDefault("pricing_file", "")
	v.SetDefault("token_ttl", 5*time.Minute)
	v.SetDefault("audit_retention", 90*24*time.Hour)
	v.SetDefault("backup_recency", 7*24*time.Hour)
	v.SetDefault("approval_sns_topic", "")
	v.SetDefault("rate_limit_rps", 2.0)
	v.SetDefault("rate_limit_burst", 5)
	v.SetDefault("reaper_interval", time.Minute)
	v.SetDefault("history_size", 5)
	v.SetDefault("read_timeout", 15*time.Second)
	v.SetDefault("state_change_timeout", 90*time.Second)
	v.SetDefault("default_timeout", 30*time.Second)
	v.SetDefault("audit_write_timeout", 5*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_allowed_origins", "")
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("otlp_insecure", false)
	v.SetDefault("metrics_export_interval", 15*time.Second)
	v.SetDefault("config_file", "")
	return v
}

func Load() (Config, error) {
	return LoadFrom(New())
}

func LoadFrom(v *viper.Viper) (Config, error) {
	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		HTTPAddr:        v.GetString("http_addr"),
		DBDSN:           strings.TrimSpace(v.GetString("db_dsn")),
		MigrationsDir:   v.GetString("db_migrations_dir"),
		RedisAddr:       strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword:   v.GetString("redis_password"),
		RedisDB:         v.GetInt("redis_db"),
		Provider:        strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		Resolver:        strings.ToLower(strings.TrimSpace(v.GetString("resolver"))),
		AWSRegion:       v.GetString("aws_region"),
		AWSEndpoint:     v.GetString("aws_endpoint"),
		BedrockRegion:   v.GetString("bedrock_region"),
		BedrockModelID:  v.GetString("bedrock_model_id"),
		MaxHourlyCost:   v.GetFloat64("max_instance_cost_per_hour"),
		PricingFile:     v.GetString("pricing_file"),
		TokenTTL:        v.GetDuration("token_ttl"),
		AuditRetention:  v.GetDuration("audit_retention"),
		BackupRecency:   v.GetDuration("backup_recency"),
		ApprovalTopic:   v.GetString("approval_sns_topic"),
		RateLimitRPS:    v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:  v.GetInt("rate_limit_burst"),
		ReaperInterval:  v.GetDuration("reaper_interval"),
		HistorySize:     v.GetInt("history_size"),
		ReadTimeout:     v.GetDuration("read_timeout"),
		StateTimeout:    v.GetDuration("state_change_timeout"),
		DefaultTimeout:  v.GetDuration("default_timeout"),
		AuditWriteLimit: v.GetDuration("audit_write_timeout"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		CORSOrigins:     splitList(v.GetString("cors_allowed_origins")),
		OTLPEndpoint:    strings.TrimSpace(v.GetString("otlp_endpoint")),
		OTLPInsecure:    v.GetBool("otlp_insecure"),
		MetricsInterval: v.GetDuration("metrics_export_interval"),
	}

	cfg.Prices = policy.DefaultPrices()
	if cfg.PricingFile != "" {
		overrides, err := LoadPricing(cfg.PricingFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Prices = cfg.Prices.Merge(overrides)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderAWS, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	switch c.Resolver {
	case ResolverRules, ResolverBedrock:
	default:
		errs = append(errs, fmt.Errorf("unknown resolver %q", c.Resolver))
	}
	if c.MaxHourlyCost <= 0 {
		errs = append(errs, errors.New("max_instance_cost_per_hour must be positive"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if c.OTLPEndpoint != "" && c.MetricsInterval <= 0 {
		errs = append(errs, errors.New("metrics_export_interval must be positive"))
	}
	if c.HistorySize < 0 {
		errs = append(errs, errors.New("history_size must not be negative"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type pricingFile struct {
	Prices map[string]float64 `yaml:"prices"`
}

// LoadPricing reads hourly price overrides of the form
//
//	prices:
//	  t3.micro: 0.0104
func LoadPricing(path string) (map[string]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}
	var pf pricingFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}
	for k, p := range pf.Prices {
		if p < 0 {
			return nil, fmt.Errorf("pricing file: negative price for %s", k)
		}
	}
	return pf.Prices, nil
}
