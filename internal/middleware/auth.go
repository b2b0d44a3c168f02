package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/EduardoDePatta/coupon-generator/internal/auth"
	"github.com/EduardoDePatta/coupon-generator/internal/models"
	errs "github.com/EduardoDePatta/coupon-generator/pkg/errors"
)

// AuthMiddleware gates handlers behind a verified session credential. It is a
// pure composition wrapper: on success the wrapped handler runs with the
// resolved claims injected into the request context, on failure it never runs.
type AuthMiddleware struct {
	credentials *auth.CredentialService
	logger      *logrus.Logger
}

func NewAuthMiddleware(credentials *auth.CredentialService, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		credentials: credentials,
		logger:      logger,
	}
}

// RequireSession authenticates the bearer credential on each request
func (a *AuthMiddleware) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return a.unauthorized(c, errs.CodeMissingToken, "Authorization header is required")
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			return a.unauthorized(c, errs.CodeMissingToken, "Authorization header must be a Bearer token")
		}

		tokenString := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if tokenString == "" {
			return a.unauthorized(c, errs.CodeMissingToken, "Token is required")
		}

		claims, err := a.credentials.VerifySession(tokenString)
		if err != nil {
			a.logger.WithError(err).WithField("path", c.Path()).Debug("Session validation failed")
			if errors.Is(err, auth.ErrSessionExpired) {
				return a.unauthorized(c, errs.CodeSessionExpired, "Session has expired, please log in again")
			}
			return a.unauthorized(c, errs.CodeUnauthenticated, "Invalid session token")
		}

		c.Locals("session_claims", claims)
		c.Locals("user_id", claims.UserID)

		return c.Next()
	}
}

func (a *AuthMiddleware) unauthorized(c *fiber.Ctx, code errs.ErrorCode, message string) error {
	status := errs.HTTPStatusMap[code]
	return c.Status(status).JSON(models.Response{
		StatusCode: status,
		Message:    message,
		Data:       nil,
	})
}

// GetSessionClaims extracts the verified session claims from the context
func GetSessionClaims(c *fiber.Ctx) *auth.SessionClaims {
	if claims, ok := c.Locals("session_claims").(*auth.SessionClaims); ok {
		return claims
	}
	return nil
}

// GetUserID extracts the authenticated user id from the context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("user_id").(string); ok {
		return userID
	}
	return ""
}
