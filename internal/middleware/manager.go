package middleware

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/EduardoDePatta/coupon-generator/internal/auth"
	"github.com/EduardoDePatta/coupon-generator/internal/config"
)

// Manager holds all middleware instances plus the credential service the
// auth gate and login handlers share
type Manager struct {
	Auth        *AuthMiddleware
	Idempotency *IdempotencyMiddleware
	ErrorLogger *ErrorLoggerMiddleware
	Credentials *auth.CredentialService
	RedisClient *redis.Client
	Config      *config.Config
	Logger      *logrus.Logger
}

// NewManager creates a new middleware manager with all middleware initialized
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	redisClient, err := NewRedisClient(&cfg.Redis, &cfg.AWS, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	credentials := auth.NewCredentialService(&cfg.JWT)

	return &Manager{
		Auth:        NewAuthMiddleware(credentials, logger),
		Idempotency: NewIdempotencyMiddleware(redisClient, logger),
		ErrorLogger: NewErrorLoggerMiddleware(logger),
		Credentials: credentials,
		RedisClient: redisClient,
		Config:      cfg,
		Logger:      logger,
	}, nil
}

// Close closes all middleware resources
func (m *Manager) Close() error {
	if m.RedisClient != nil {
		return m.RedisClient.Close()
	}
	return nil
}
