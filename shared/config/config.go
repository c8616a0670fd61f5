package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/KaiJun-SIT/Big-Data-amazon/shared/middleware"
	"github.com/KaiJun-SIT/Big-Data-amazon/shared/storage"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultNumMappers  = 4
	DefaultNumReducers = 1
	DefaultChunkLines  = 1000

	TransportMemory   = "memory"
	TransportRabbitMQ = "rabbitmq"
)

// Config holds the process-wide settings of the review cleaning job.
type Config struct {
	NumMappers       int                         `yaml:"num_mappers"`
	NumReducers      int                         `yaml:"num_reducers"`
	ChunkLines       int                         `yaml:"chunk_lines"`
	ShuffleTransport string                      `yaml:"shuffle_transport"`
	RabbitMQ         middleware.ConnectionConfig `yaml:"rabbitmq"`
	S3               storage.S3Config            `yaml:"s3"`
	MetricsAddr      string                      `yaml:"metrics_addr"`
	LogLevel         string                      `yaml:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		NumMappers:       DefaultNumMappers,
		NumReducers:      DefaultNumReducers,
		ChunkLines:       DefaultChunkLines,
		ShuffleTransport: TransportMemory,
		RabbitMQ:         *middleware.DefaultConnectionConfig(),
		LogLevel:         "info",
	}
}

// LoadConfig starts from Default, applies the YAML file named by CONFIG_FILE
// if any, then applies environment variables, and validates the result.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, xerrors.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, xerrors.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	var err error
	if cfg.NumMappers, err = getEnvInt("NUM_MAPPERS", cfg.NumMappers); err != nil {
		return nil, err
	}
	if cfg.NumReducers, err = getEnvInt("NUM_REDUCERS", cfg.NumReducers); err != nil {
		return nil, err
	}
	if cfg.ChunkLines, err = getEnvInt("CHUNK_LINES", cfg.ChunkLines); err != nil {
		return nil, err
	}
	cfg.ShuffleTransport = strings.ToLower(getEnv("SHUFFLE_TRANSPORT", cfg.ShuffleTransport))

	cfg.RabbitMQ.Host = getEnv("RABBITMQ_HOST", cfg.RabbitMQ.Host)
	if cfg.RabbitMQ.Port, err = getEnvInt("RABBITMQ_PORT", cfg.RabbitMQ.Port); err != nil {
		return nil, err
	}
	cfg.RabbitMQ.Username = getEnv("RABBITMQ_USER", cfg.RabbitMQ.Username)
	cfg.RabbitMQ.Password = getEnv("RABBITMQ_PASS", cfg.RabbitMQ.Password)
	cfg.RabbitMQ.VHost = getEnv("RABBITMQ_VHOST", cfg.RabbitMQ.VHost)

	cfg.S3.Endpoint = getEnv("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.AccessKey = getEnv("S3_ACCESS_KEY", cfg.S3.AccessKey)
	cfg.S3.SecretKey = getEnv("S3_SECRET_KEY", cfg.S3.SecretKey)
	if cfg.S3.UseSSL, err = getEnvBool("S3_USE_SSL", cfg.S3.UseSSL); err != nil {
		return nil, err
	}

	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.NumMappers < 1 {
		return xerrors.Errorf("NUM_MAPPERS must be positive (got %d)", c.NumMappers)
	}
	if c.NumReducers < 1 {
		return xerrors.Errorf("NUM_REDUCERS must be positive (got %d)", c.NumReducers)
	}
	if c.ChunkLines < 1 {
		return xerrors.Errorf("CHUNK_LINES must be positive (got %d)", c.ChunkLines)
	}
	switch c.ShuffleTransport {
	case TransportMemory, TransportRabbitMQ:
	default:
		return xerrors.Errorf("SHUFFLE_TRANSPORT must be %q or %q (got %q)", TransportMemory, TransportRabbitMQ, c.ShuffleTransport)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, xerrors.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, xerrors.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
