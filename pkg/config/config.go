package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/observability"
	"github.com/platinummonkey/storefront/pkg/storage"
)

// EnvConfigFile names the optional YAML file read before the environment
const EnvConfigFile = "STOREFRONT_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       storage.Config      `yaml:"storage"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s liveness and readiness checks)
	HealthPort string `yaml:"health_port"`

	CORSOrigins     []string `yaml:"cors_origins"`
	TrustProxy      bool     `yaml:"trust_proxy"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
	AuditAllTraffic bool     `yaml:"audit_all_traffic"`
}

// AuthConfig holds session token and password hashing settings
type AuthConfig struct {
	// JWTSecret signs session tokens. It must be shared by every instance.
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	TokenIssuer string        `yaml:"token_issuer"`
	BcryptCost  int           `yaml:"bcrypt_cost"`
}

// RateLimitConfig holds login throttling settings
type RateLimitConfig struct {
	LoginAttempts int           `yaml:"login_attempts"`
	LoginWindow   time.Duration `yaml:"login_window"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
			MaxBodyBytes:    1 << 20,
		},
		Auth: AuthConfig{
			TokenTTL:    auth.DefaultTokenTTL,
			TokenIssuer: auth.DefaultTokenIssuer,
			BcryptCost:  bcrypt.DefaultCost,
		},
		Storage: storage.DefaultConfig(),
		RateLimit: RateLimitConfig{
			LoginAttempts: 10,
			LoginWindow:   15 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEnabled:        false,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "storefront-admin",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by STOREFRONT_CONFIG_FILE, and then STOREFRONT_* environment
// variables, in that order of precedence.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv(EnvConfigFile, ""); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Server = loadServerConfig(cfg.Server)
	cfg.Auth = loadAuthConfig(cfg.Auth)
	cfg.Storage = loadStorageConfig(cfg.Storage)
	cfg.RateLimit = loadRateLimitConfig(cfg.RateLimit)
	cfg.Observability = loadObservabilityConfig(cfg.Observability)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML document at path onto cfg. Unknown keys are errors.
func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadServerConfig applies server environment overrides to base
func loadServerConfig(base ServerConfig) ServerConfig {
	return ServerConfig{
		Host:            getEnv("STOREFRONT_HOST", base.Host),
		Port:            getEnv("STOREFRONT_PORT", base.Port),
		ReadTimeout:     getEnvDuration("STOREFRONT_READ_TIMEOUT", base.ReadTimeout),
		WriteTimeout:    getEnvDuration("STOREFRONT_WRITE_TIMEOUT", base.WriteTimeout),
		IdleTimeout:     getEnvDuration("STOREFRONT_IDLE_TIMEOUT", base.IdleTimeout),
		ShutdownTimeout: getEnvDuration("STOREFRONT_SHUTDOWN_TIMEOUT", base.ShutdownTimeout),
		HealthPort:      getEnv("STOREFRONT_HEALTH_PORT", base.HealthPort),
		CORSOrigins:     getEnvList("STOREFRONT_CORS_ORIGINS", base.CORSOrigins),
		TrustProxy:      getEnvBool("STOREFRONT_TRUST_PROXY", base.TrustProxy),
		MaxBodyBytes:    getEnvInt64("STOREFRONT_MAX_BODY_BYTES", base.MaxBodyBytes),
		AuditAllTraffic: getEnvBool("STOREFRONT_AUDIT_ALL_TRAFFIC", base.AuditAllTraffic),
	}
}

// loadAuthConfig applies token and hashing environment overrides to base
func loadAuthConfig(base AuthConfig) AuthConfig {
	return AuthConfig{
		JWTSecret:   getEnv("STOREFRONT_JWT_SECRET", base.JWTSecret),
		TokenTTL:    getEnvDuration("STOREFRONT_TOKEN_TTL", base.TokenTTL),
		TokenIssuer: getEnv("STOREFRONT_TOKEN_ISSUER", base.TokenIssuer),
		BcryptCost:  getEnvInt("STOREFRONT_BCRYPT_COST", base.BcryptCost),
	}
}

// loadStorageConfig applies storage environment overrides to base
func loadStorageConfig(base storage.Config) storage.Config {
	cfg := base

	cfg.Type = getEnv("STOREFRONT_STORAGE_TYPE", cfg.Type)

	// PostgreSQL config
	cfg.PostgresURL = getEnv("STOREFRONT_POSTGRES_URL", cfg.PostgresURL)
	cfg.PostgresReplicaURLs = getEnv("STOREFRONT_POSTGRES_REPLICA_URLS", cfg.PostgresReplicaURLs)
	if maxConns := getEnvInt("STOREFRONT_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("STOREFRONT_POSTGRES_MIN_CONNS", -1); minConns >= 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("STOREFRONT_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// Redis config
	cfg.RedisURL = getEnv("STOREFRONT_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("STOREFRONT_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("STOREFRONT_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisPoolSize := getEnvInt("STOREFRONT_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

// loadRateLimitConfig applies login throttling environment overrides to base
func loadRateLimitConfig(base RateLimitConfig) RateLimitConfig {
	return RateLimitConfig{
		LoginAttempts: getEnvInt("STOREFRONT_LOGIN_ATTEMPTS", base.LoginAttempts),
		LoginWindow:   getEnvDuration("STOREFRONT_LOGIN_WINDOW", base.LoginWindow),
	}
}

// loadObservabilityConfig applies observability environment overrides to base
func loadObservabilityConfig(base ObservabilityConfig) ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           getEnv("STOREFRONT_LOG_LEVEL", base.LogLevel),
		MetricsEnabled:     getEnvBool("STOREFRONT_METRICS_ENABLED", base.MetricsEnabled),
		OTelEnabled:        getEnvBool("STOREFRONT_OTEL_ENABLED", base.OTelEnabled),
		OTelEndpoint:       getEnv("STOREFRONT_OTEL_ENDPOINT", base.OTelEndpoint),
		OTelServiceName:    getEnv("STOREFRONT_OTEL_SERVICE_NAME", base.OTelServiceName),
		OTelServiceVersion: getEnv("STOREFRONT_OTEL_SERVICE_VERSION", base.OTelServiceVersion),
		OTelInsecure:       getEnvBool("STOREFRONT_OTEL_INSECURE", base.OTelInsecure),
		OTelSampleRatio:    getEnvFloat("STOREFRONT_OTEL_SAMPLE_RATIO", base.OTelSampleRatio),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}

	// Validate auth config
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is required (STOREFRONT_JWT_SECRET)")
	}
	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	// Validate rate limit config
	if c.RateLimit.LoginAttempts <= 0 {
		return errors.New("login attempts must be positive")
	}
	if c.RateLimit.LoginWindow <= 0 {
		return errors.New("login window must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
		return errors.New("OpenTelemetry sample ratio must be between 0 and 1")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
