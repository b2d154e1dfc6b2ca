package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json console"`
}

// FIXConfig represents the market data session configuration
type FIXConfig struct {
	SettingsFile     string        `yaml:"settings_file" json:"settings_file" validate:"required"`
	Symbols          []string      `yaml:"symbols" json:"symbols"`
	Username         string        `yaml:"username" json:"username"`
	Password         string        `yaml:"password" json:"-"`
	FirstDataTimeout time.Duration `yaml:"first_data_timeout" json:"first_data_timeout" validate:"gte=0"`
	LogoutGrace      time.Duration `yaml:"logout_grace" json:"logout_grace" validate:"gte=0"`
	FileStorePath    string        `yaml:"file_store_path" json:"file_store_path"`
	FileLogPath      string        `yaml:"file_log_path" json:"file_log_path"`
}

// RedisConfig represents Redis fan-out configuration
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Address       string `yaml:"address" json:"address" validate:"required_if=Enabled true"`
	Password      string `yaml:"password" json:"-"`
	DB            int    `yaml:"db" json:"db" validate:"gte=0"`
	ChannelPrefix string `yaml:"channel_prefix" json:"channel_prefix" validate:"required_if=Enabled true"`
}

// KafkaConfig represents Kafka fan-out configuration
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Brokers []string `yaml:"brokers" json:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `yaml:"topic" json:"topic" validate:"required_if=Enabled true"`
}

// JournalConfig represents the SQL quote journal configuration
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Driver  string `yaml:"driver" json:"driver" validate:"oneof=sqlite postgres"`
	DSN     string `yaml:"dsn" json:"-" validate:"required_if=Enabled true"`
}

// StatusConfig represents the status/health HTTP server configuration
type StatusConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr" validate:"required_if=Enabled true"`
}

// TelemetryConfig selects the OpenTelemetry stdout exporters
type TelemetryConfig struct {
	Tracing        bool          `yaml:"tracing" json:"tracing"`
	Metrics        bool          `yaml:"metrics" json:"metrics"`
	MetricInterval time.Duration `yaml:"metric_interval" json:"metric_interval" validate:"gte=0"`
}

// Config represents the application configuration
type Config struct {
	Log       LogConfig       `yaml:"log" json:"log"`
	FIX       FIXConfig       `yaml:"fix" json:"fix"`
	Redis     RedisConfig     `yaml:"redis" json:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka" json:"kafka"`
	Journal   JournalConfig   `yaml:"journal" json:"journal"`
	Status    StatusConfig    `yaml:"status" json:"status"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	QueueSize int             `yaml:"queue_size" json:"queue_size" validate:"gt=0"`
}

// Default returns the configuration used before env and file overrides
func Default() *Config {
	config := &Config{}
	config.Log.Level = "info"
	config.Log.Format = "json"

	config.FIX.SettingsFile = "client.cfg"
	config.FIX.FirstDataTimeout = 60 * time.Second
	config.FIX.LogoutGrace = 300 * time.Millisecond

	config.Redis.Address = "localhost:6379"
	config.Redis.ChannelPrefix = "fixmd"

	config.Kafka.Brokers = []string{"localhost:9092"}
	config.Kafka.Topic = "fixmd.events"

	config.Journal.Driver = "sqlite"
	config.Journal.DSN = "fixmd.db"

	config.Status.Addr = ":8089"

	config.Telemetry.MetricInterval = time.Minute

	config.QueueSize = 4096
	return config
}

// ParseSymbols splits a comma separated symbol list, trimming blanks.
// Order is preserved and duplicates are kept.
func ParseSymbols(raw string) []string {
	out := make([]string, 0)
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadConfig loads the application configuration. path may be empty, in which
// case fixmd.yaml is searched in the usual locations and is optional.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	applyEnv(config)

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fixmd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/fixmd")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		applyFile(config, v)
	}

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Dump writes the effective configuration as YAML with secrets removed
func Dump(w io.Writer, config *Config) error {
	redacted := *config
	if redacted.FIX.Password != "" {
		redacted.FIX.Password = "***"
	}
	if redacted.Redis.Password != "" {
		redacted.Redis.Password = "***"
	}
	if redacted.Journal.DSN != "" && redacted.Journal.Driver == "postgres" {
		redacted.Journal.DSN = "***"
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&redacted); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// Validate checks struct constraints on the configuration
func Validate(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnv(config *Config) {
	if level := os.Getenv("FIXMD_LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	if format := os.Getenv("FIXMD_LOG_FORMAT"); format != "" {
		config.Log.Format = format
	}

	if settings := os.Getenv("FIXMD_FIX_SETTINGS"); settings != "" {
		config.FIX.SettingsFile = settings
	}
	if symbols := os.Getenv("FIXMD_SYMBOLS"); symbols != "" {
		config.FIX.Symbols = ParseSymbols(symbols)
	}
	if username := os.Getenv("FIXMD_USERNAME"); username != "" {
		config.FIX.Username = username
	}
	if password := os.Getenv("FIXMD_PASSWORD"); password != "" {
		config.FIX.Password = password
	}
	if timeout, err := time.ParseDuration(os.Getenv("FIXMD_FIRST_DATA_TIMEOUT")); err == nil {
		config.FIX.FirstDataTimeout = timeout
	}
	if grace, err := time.ParseDuration(os.Getenv("FIXMD_LOGOUT_GRACE")); err == nil {
		config.FIX.LogoutGrace = grace
	}

	if redisAddr := os.Getenv("FIXMD_REDIS_ADDRESS"); redisAddr != "" {
		config.Redis.Enabled = true
		config.Redis.Address = redisAddr
	}
	if redisPassword := os.Getenv("FIXMD_REDIS_PASSWORD"); redisPassword != "" {
		config.Redis.Password = redisPassword
	}
	if redisDB, err := strconv.Atoi(os.Getenv("FIXMD_REDIS_DB")); err == nil {
		config.Redis.DB = redisDB
	}

	if kafkaBrokers := os.Getenv("FIXMD_KAFKA_BROKERS"); kafkaBrokers != "" {
		config.Kafka.Enabled = true
		config.Kafka.Brokers = strings.Split(kafkaBrokers, ",")
	}
	if topic := os.Getenv("FIXMD_KAFKA_TOPIC"); topic != "" {
		config.Kafka.Topic = topic
	}

	if dsn := os.Getenv("FIXMD_JOURNAL_DSN"); dsn != "" {
		config.Journal.Enabled = true
		config.Journal.DSN = dsn
	}
	if driver := os.Getenv("FIXMD_JOURNAL_DRIVER"); driver != "" {
		config.Journal.Driver = driver
	}

	if addr := os.Getenv("FIXMD_STATUS_ADDR"); addr != "" {
		config.Status.Enabled = true
		config.Status.Addr = addr
	}

	if tracing, err := strconv.ParseBool(os.Getenv("FIXMD_OTEL_TRACING")); err == nil {
		config.Telemetry.Tracing = tracing
	}
	if otelMetrics, err := strconv.ParseBool(os.Getenv("FIXMD_OTEL_METRICS")); err == nil {
		config.Telemetry.Metrics = otelMetrics
	}
}

func applyFile(config *Config, v *viper.Viper) {
	if v.IsSet("log.level") {
		config.Log.Level = v.GetString("log.level")
	}
	if v.IsSet("log.format") {
		config.Log.Format = v.GetString("log.format")
	}

	if v.IsSet("fix.settings_file") {
		config.FIX.SettingsFile = v.GetString("fix.settings_file")
	}
	if v.IsSet("fix.symbols") {
		config.FIX.Symbols = symbolsValue(v.Get("fix.symbols"))
	}
	if v.IsSet("fix.username") {
		config.FIX.Username = v.GetString("fix.username")
	}
	if v.IsSet("fix.password") {
		config.FIX.Password = v.GetString("fix.password")
	}
	if v.IsSet("fix.first_data_timeout") {
		config.FIX.FirstDataTimeout = v.GetDuration("fix.first_data_timeout")
	}
	if v.IsSet("fix.logout_grace") {
		config.FIX.LogoutGrace = v.GetDuration("fix.logout_grace")
	}
	if v.IsSet("fix.file_store_path") {
		config.FIX.FileStorePath = v.GetString("fix.file_store_path")
	}
	if v.IsSet("fix.file_log_path") {
		config.FIX.FileLogPath = v.GetString("fix.file_log_path")
	}

	if v.IsSet("redis.enabled") {
		config.Redis.Enabled = v.GetBool("redis.enabled")
	}
	if v.IsSet("redis.address") {
		config.Redis.Address = v.GetString("redis.address")
	}
	if v.IsSet("redis.password") {
		config.Redis.Password = v.GetString("redis.password")
	}
	if v.IsSet("redis.db") {
		config.Redis.DB = v.GetInt("redis.db")
	}
	if v.IsSet("redis.channel_prefix") {
		config.Redis.ChannelPrefix = v.GetString("redis.channel_prefix")
	}

	if v.IsSet("kafka.enabled") {
		config.Kafka.Enabled = v.GetBool("kafka.enabled")
	}
	if v.IsSet("kafka.brokers") {
		config.Kafka.Brokers = v.GetStringSlice("kafka.brokers")
	}
	if v.IsSet("kafka.topic") {
		config.Kafka.Topic = v.GetString("kafka.topic")
	}

	if v.IsSet("journal.enabled") {
		config.Journal.Enabled = v.GetBool("journal.enabled")
	}
	if v.IsSet("journal.driver") {
		config.Journal.Driver = v.GetString("journal.driver")
	}
	if v.IsSet("journal.dsn") {
		config.Journal.DSN = v.GetString("journal.dsn")
	}

	if v.IsSet("status.enabled") {
		config.Status.Enabled = v.GetBool("status.enabled")
	}
	if v.IsSet("status.addr") {
		config.Status.Addr = v.GetString("status.addr")
	}

	if v.IsSet("telemetry.tracing") {
		config.Telemetry.Tracing = v.GetBool("telemetry.tracing")
	}
	if v.IsSet("telemetry.metrics") {
		config.Telemetry.Metrics = v.GetBool("telemetry.metrics")
	}
	if v.IsSet("telemetry.metric_interval") {
		config.Telemetry.MetricInterval = v.GetDuration("telemetry.metric_interval")
	}

	if v.IsSet("queue_size") {
		config.QueueSize = v.GetInt("queue_size")
	}
}

// symbolsValue accepts either a YAML list or a single comma separated string
func symbolsValue(raw interface{}) []string {
	switch val := raw.(type) {
	case string:
		return ParseSymbols(val)
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return ParseSymbols(strings.Join(val, ","))
	default:
		return nil
	}
}
