package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Analytics AnalyticsConfig
	Logger    LoggerConfig
	Security  SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DataConfig struct {
	CSVFile       string
	WatchFile     bool
	SyntheticRows int
}

// AnalyticsConfig tunes the anomaly scorer and insight generator. Values are
// read from the environment and may be overridden by an optional YAML file
// pointed at by ANALYTICS_CONFIG.
type AnalyticsConfig struct {
	Contamination     float64 `yaml:"contamination"`
	SevereThreshold   float64 `yaml:"severe_threshold"`
	ModerateThreshold float64 `yaml:"moderate_threshold"`
	ForestTrees       int     `yaml:"forest_trees"`
	ForestSampleSize  int     `yaml:"forest_sample_size"`
	Seed              int64   `yaml:"seed"`
	TopAnomalies      int     `yaml:"top_anomalies"`
	DefaultLimit      int     `yaml:"default_limit"`
	LoyaltyThreshold  float64 `yaml:"loyalty_threshold"`
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8000),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			CSVFile:       getEnvString("DATA_FILE", "data/sales_cleaned.csv"),
			WatchFile:     getEnvBool("DATA_WATCH", true),
			SyntheticRows: getEnvInt("DATA_SYNTHETIC_ROWS", 1000),
		},
		Analytics: AnalyticsConfig{
			Contamination:     getEnvFloat("ANOMALY_CONTAMINATION", 0.10),
			SevereThreshold:   getEnvFloat("ANOMALY_SEVERE_THRESHOLD", -0.15),
			ModerateThreshold: getEnvFloat("ANOMALY_MODERATE_THRESHOLD", -0.05),
			ForestTrees:       getEnvInt("ANOMALY_FOREST_TREES", 100),
			ForestSampleSize:  getEnvInt("ANOMALY_FOREST_SAMPLE_SIZE", 256),
			Seed:              int64(getEnvInt("ANOMALY_SEED", 42)),
			TopAnomalies:      getEnvInt("ANOMALY_TOP_N", 5),
			DefaultLimit:      getEnvInt("ANALYTICS_DEFAULT_LIMIT", 10),
			LoyaltyThreshold:  getEnvFloat("INSIGHT_LOYALTY_THRESHOLD", 30.0),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8000"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}

	if path := os.Getenv("ANALYTICS_CONFIG"); path != "" {
		if err := cfg.Analytics.mergeFile(path); err != nil {
			return nil, fmt.Errorf("analytics config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// mergeFile overlays values from a YAML tuning file. Fields absent from the
// file keep their current values.
func (a *AnalyticsConfig) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	override := *a
	if err := yaml.Unmarshal(data, &override); err != nil {
		return err
	}

	*a = override
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Data.CSVFile == "" {
		return fmt.Errorf("data file path cannot be empty")
	}

	if c.Data.SyntheticRows <= 0 {
		return fmt.Errorf("synthetic row count must be positive")
	}

	if c.Analytics.Contamination <= 0 || c.Analytics.Contamination >= 0.5 {
		return fmt.Errorf("contamination must be in (0, 0.5), got %g", c.Analytics.Contamination)
	}

	if c.Analytics.SevereThreshold > c.Analytics.ModerateThreshold {
		return fmt.Errorf("severe threshold %g must not exceed moderate threshold %g",
			c.Analytics.SevereThreshold, c.Analytics.ModerateThreshold)
	}

	if c.Analytics.ForestTrees <= 0 {
		return fmt.Errorf("forest tree count must be positive")
	}

	if c.Analytics.ForestSampleSize <= 1 {
		return fmt.Errorf("forest sample size must be greater than 1")
	}

	if c.Analytics.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
