package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"multigateway-api/database"
	"multigateway-api/services/payment/registry"
)

type Config struct {
	Database database.DatabaseConfig
	Server   ServerConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Kafka    KafkaConfig
	Tracing  TracingConfig
	Log      LogConfig
	Gateways GatewaysConfig
	// PANHashKey keys the HMAC used to fingerprint stored cards.
	PANHashKey string
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
	// RateLimitPerMinute applies per merchant when redis is configured.
	RateLimitPerMinute int
	// TrustProxyHeaders makes the rate limiter key anonymous callers by
	// X-Forwarded-For instead of the peer address.
	TrustProxyHeaders bool
}

type RedisConfig struct {
	URL               string
	WorkerConcurrency int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	InternalSecret string
}

type KafkaConfig struct {
	Brokers string
	Topic   string
}

type TracingConfig struct {
	Endpoint string
}

type LogConfig struct {
	Level       string
	Environment string
}

type GatewaysConfig struct {
	File      string
	AllowLive bool
	Settings  map[string]registry.Settings
}

// Load reads .env (if present) and the process environment, then the
// gateways file named by GATEWAYS_FILE.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Database: database.DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", database.DriverMemory),
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
			DSN:      os.Getenv("DB_DSN"),
		},
		Server: ServerConfig{
			Port:               getEnv("SERVER_PORT", "8080"),
			CORSOrigins:        splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
			RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
			TrustProxyHeaders:  getEnvBool("TRUST_PROXY_HEADERS", false),
		},
		Redis: RedisConfig{
			URL:               os.Getenv("REDIS_URL"),
			WorkerConcurrency: clamp(getEnvInt("WORKER_CONCURRENCY", 2), 1, 8),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			JWTIssuer:      getEnv("JWT_ISSUER", "multigateway-api"),
			InternalSecret: os.Getenv("INTERNAL_API_SECRET"),
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "transactions"),
		},
		Tracing: TracingConfig{
			Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Gateways: GatewaysConfig{
			File:      os.Getenv("GATEWAYS_FILE"),
			AllowLive: getEnvBool("ALLOW_LIVE_GATEWAYS", false),
		},
		PANHashKey: os.Getenv("PAN_HASH_KEY"),
	}

	settings, err := LoadGateways(cfg.Gateways.File)
	if err != nil {
		return nil, err
	}
	cfg.Gateways.Settings = settings

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case database.DriverMemory, database.DriverMySQL, database.DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Database.Driver != database.DriverMemory && c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST or DB_DSN is required for %s", c.Database.Driver)
	}
	if c.Log.Environment == "production" {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.PANHashKey == "" {
			return fmt.Errorf("PAN_HASH_KEY is required in production")
		}
	}
	return nil
}

// LoadGateways reads per-gateway settings from a YAML (or any viper
// supported) file. Without a file only the bogus gateway is enabled.
//
//	gateways:
//	  authorize_net:
//	    mode: test
//	    enabled: true
//	    credentials:
//	      login: ${AUTHNET_LOGIN}
//	      transaction_key: ${AUTHNET_TRANSACTION_KEY}
//
// ${VAR} references in credentials are expanded from the environment.
func LoadGateways(path string) (map[string]registry.Settings, error) {
	if path == "" {
		return map[string]registry.Settings{
			"bogus": {Mode: "test", Enabled: true},
		}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading gateways file %s: %w", path, err)
	}

	var file struct {
		Gateways map[string]registry.Settings `mapstructure:"gateways"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("parsing gateways file %s: %w", path, err)
	}
	for name, s := range file.Gateways {
		for k, val := range s.Credentials {
			s.Credentials[k] = os.ExpandEnv(val)
		}
		s.Endpoint = os.ExpandEnv(s.Endpoint)
		file.Gateways[name] = s
	}
	if file.Gateways == nil {
		file.Gateways = map[string]registry.Settings{}
	}
	return file.Gateways, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
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

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
