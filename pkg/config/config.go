package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	BigQuery  BigQueryConfig
	Dashboard DashboardConfig
	LLM       LLMConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	SQLite    SQLiteConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type BigQueryConfig struct {
	Project               string
	Region                string
	Location              string
	MaxQueryResults       int
	QueryTimeoutSeconds   int
	DefaultTimeRangeHours int
}

type DashboardConfig struct {
	SlotUsageMax      int
	JobConcurrencyMax int
	// Pulse figures the warehouse does not expose through job telemetry.
	QueryCacheRate float64
	SlotCapacity   int
	TotalSlots     int
	TotalIdleSlots int
}

type LLMConfig struct {
	APIKey      string
	Model       string
	AppName     string
	Temperature float32
	MaxTokens   int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled              bool
	MaxRequestsPerMinute int
}

type SQLiteConfig struct {
	Path string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bq-insights")

	viper.SetEnvPrefix("BQ_INSIGHTS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// DefaultRegionCandidates is the candidate list used when a request carries no
// region hint. Order matters: the first candidate that yields rows wins.
func (c BigQueryConfig) DefaultRegionCandidates() []string {
	base := strings.ToLower(c.Region)
	return []string{
		"region-" + base,
		"region-" + strings.ToUpper(base),
		base,
		strings.ToUpper(base),
	}
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("bigquery.region", "us")
	viper.SetDefault("bigquery.location", "US")
	viper.SetDefault("bigquery.maxQueryResults", 20)
	viper.SetDefault("bigquery.queryTimeoutSeconds", 300)
	viper.SetDefault("bigquery.defaultTimeRangeHours", 24)

	viper.SetDefault("dashboard.slotUsageMax", 2000)
	viper.SetDefault("dashboard.jobConcurrencyMax", 100)
	viper.SetDefault("dashboard.queryCacheRate", 66.9)
	viper.SetDefault("dashboard.slotCapacity", 960)
	viper.SetDefault("dashboard.totalSlots", 1000)
	viper.SetDefault("dashboard.totalIdleSlots", 1000)

	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.appName", "query_optimizer")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 2048)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("ratelimit.enabled", true)
	viper.SetDefault("ratelimit.maxRequestsPerMinute", 120)

	viper.SetDefault("sqlite.path", "./data/bqinsights.db")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
