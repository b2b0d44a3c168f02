package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/EduardoDePatta/coupon-generator/internal/metrics"
	"github.com/EduardoDePatta/coupon-generator/internal/models"
)

// IdempotencyMiddleware replays a cached response when a client retries an
// issuance request with the same Idempotency-Key. The key is optional:
// redemption needs no key because the store's conditional write already makes
// retries safe.
type IdempotencyMiddleware struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	ttl         time.Duration
}

type idempotencyRecord struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func NewIdempotencyMiddleware(redisClient *redis.Client, logger *logrus.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		redisClient: redisClient,
		logger:      logger,
		ttl:         5 * time.Minute,
	}
}

// Handle checks for a cached response under the request's Idempotency-Key
func (i *IdempotencyMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		idempotencyKey := c.Get("Idempotency-Key")
		if idempotencyKey == "" {
			return c.Next()
		}

		if _, err := uuid.Parse(idempotencyKey); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.Response{
				StatusCode: fiber.StatusBadRequest,
				Message:    "Idempotency-Key must be a valid UUID",
				Data:       nil,
			})
		}

		fingerprint := i.generateFingerprint(c)
		redisKey := fmt.Sprintf("idempotency:%s", idempotencyKey)

		ctx := context.Background()
		existing, err := i.getRecord(ctx, redisKey)
		if err != nil && err != redis.Nil {
			i.logger.WithError(err).Error("Failed to get idempotency record")
			// cache lookup failure must not fail the request
		}

		if existing != nil {
			existingFingerprint, err := i.redisClient.Get(ctx, redisKey+":fingerprint").Result()
			if err != nil && err != redis.Nil {
				i.logger.WithError(err).Error("Failed to get fingerprint")
			}

			if existingFingerprint != "" && existingFingerprint != fingerprint {
				return c.Status(fiber.StatusConflict).JSON(models.Response{
					StatusCode: fiber.StatusConflict,
					Message:    "Request differs from original request with same Idempotency-Key",
					Data:       nil,
				})
			}

			metrics.RecordIdempotencyHit("hit")
			return i.replayResponse(c, existing)
		}

		metrics.RecordIdempotencyHit("miss")
		if err := i.redisClient.Set(ctx, redisKey+":fingerprint", fingerprint, i.ttl).Err(); err != nil {
			i.logger.WithError(err).Error("Failed to store fingerprint")
		}

		c.Locals("idempotency_key", idempotencyKey)
		c.Locals("idempotency_redis_key", redisKey)

		return c.Next()
	}
}

// ResponseCapture caches successful responses for later replay
func (i *IdempotencyMiddleware) ResponseCapture() fiber.Handler {
	return func(c *fiber.Ctx) error {
		idempotencyKey, ok := c.Locals("idempotency_key").(string)
		if !ok {
			return c.Next()
		}
		redisKey, ok := c.Locals("idempotency_redis_key").(string)
		if !ok {
			return c.Next()
		}

		err := c.Next()

		statusCode := c.Response().StatusCode()
		if statusCode >= 200 && statusCode < 300 {
			record := idempotencyRecord{
				StatusCode: statusCode,
				Headers:    map[string]string{"Content-Type": string(c.Response().Header.ContentType())},
				Body:       string(c.Response().Body()),
				CreatedAt:  time.Now(),
			}

			ctx := context.Background()
			if err := i.storeRecord(ctx, redisKey, &record); err != nil {
				i.logger.WithError(err).WithField("idempotency_key", idempotencyKey).Error("Failed to store idempotency record")
			}
		}

		return err
	}
}

func (i *IdempotencyMiddleware) generateFingerprint(c *fiber.Ctx) string {
	h := sha256.New()
	h.Write([]byte(c.Method()))
	h.Write([]byte(":"))
	h.Write([]byte(c.Path()))
	h.Write([]byte(":"))
	h.Write(c.Request().URI().QueryString())
	h.Write([]byte(":"))
	h.Write(c.Body())
	h.Write([]byte(":"))
	if userID := GetUserID(c); userID != "" {
		h.Write([]byte(userID))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (i *IdempotencyMiddleware) getRecord(ctx context.Context, key string) (*idempotencyRecord, error) {
	data, err := i.redisClient.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}
	return &record, nil
}

func (i *IdempotencyMiddleware) storeRecord(ctx context.Context, key string, record *idempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}
	return i.redisClient.Set(ctx, key, data, i.ttl).Err()
}

func (i *IdempotencyMiddleware) replayResponse(c *fiber.Ctx, record *idempotencyRecord) error {
	for key, value := range record.Headers {
		if strings.TrimSpace(value) != "" {
			c.Set(key, value)
		}
	}
	c.Set("X-Idempotency-Cached", "true")
	return c.Status(record.StatusCode).SendString(record.Body)
}
