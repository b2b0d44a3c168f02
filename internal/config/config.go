package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	JWT           JWTConfig           `envconfig:"JWT"`
	Token         TokenConfig         `envconfig:"TOKEN"`
	Coupon        CouponConfig        `envconfig:"COUPON"`
	DynamoDB      DynamoDBConfig      `envconfig:"DYNAMODB"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
	CORS          CORSConfig          `envconfig:"CORS"`
	Log           LogConfig           `envconfig:"LOG"`
	AWS           AWSConfig           `envconfig:"AWS"`
}

type AWSConfig struct {
	Region     string `envconfig:"REGION" default:"eu-north-1"`
	Profile    string `envconfig:"PROFILE" default:""`
	SecretName string `envconfig:"SECRET_NAME" default:""`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8000"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}

type RedisConfig struct {
	Address             string        `envconfig:"ADDRESS" default:"localhost:6379"`
	Password            string        `envconfig:"PASSWORD" default:""`
	Database            int           `envconfig:"DATABASE" default:"0"`
	MaxRetries          int           `envconfig:"MAX_RETRIES" default:"3"`
	PoolSize            int           `envconfig:"POOL_SIZE" default:"100"`
	PoolTimeout         time.Duration `envconfig:"POOL_TIMEOUT" default:"4s"`
	TLSEnabled          bool          `envconfig:"TLS_ENABLED" default:"false"`
	PasswordFromSecrets bool          `envconfig:"PASSWORD_FROM_SECRETS" default:"false"`
}

// JWTConfig holds the session-signing secret. It is deliberately separate from
// TokenConfig so session tokens and coupon tokens are never interchangeable.
type JWTConfig struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	TTL    time.Duration `envconfig:"TTL" default:"1h"`
	Issuer string        `envconfig:"ISSUER" default:"coupon-generator"`
}

// TokenConfig holds the coupon-token HMAC secret and issuance TTL.
type TokenConfig struct {
	HMACSecret string        `envconfig:"HMAC_SECRET" required:"true"`
	TTL        time.Duration `envconfig:"TTL" default:"24h"`
}

type CouponConfig struct {
	// Base URL embedded into redeem links, e.g. https://coupons.example.com
	RedeemBaseURL string `envconfig:"REDEEM_BASE_URL" default:"http://localhost:8000"`
}

type DynamoDBConfig struct {
	CouponsTableName string `envconfig:"COUPONS_TABLE_NAME" default:"coupons"`
	UsersTableName   string `envconfig:"USERS_TABLE_NAME" default:"users"`
	Region           string `envconfig:"REGION" default:"eu-north-1"`
}

type ObservabilityConfig struct {
	MetricsPath    string  `envconfig:"METRICS_PATH" default:"/metrics"`
	OTLPEndpoint   string  `envconfig:"OTLP_ENDPOINT" default:"http://localhost:4318"`
	TracingEnabled bool    `envconfig:"TRACING_ENABLED" default:"true"`
	SampleRate     float64 `envconfig:"SAMPLE_RATE" default:"0.1"`
}

type CORSConfig struct {
	AllowOrigins string `envconfig:"ALLOW_ORIGINS" default:"*"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", cfg.Server.Port)
	}

	// envconfig enforces presence, but an empty-string secret would sign
	// every token with "" and must be rejected just as hard
	if cfg.Token.HMACSecret == "" {
		return fmt.Errorf("TOKEN_HMAC_SECRET must not be empty")
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if cfg.Token.HMACSecret == cfg.JWT.Secret {
		return fmt.Errorf("TOKEN_HMAC_SECRET and JWT_SECRET must differ")
	}

	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return fmt.Errorf("invalid tracing sample rate: %f", cfg.Observability.SampleRate)
	}

	return nil
}
