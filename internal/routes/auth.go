package routes

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/EduardoDePatta/coupon-generator/internal/auth"
	"github.com/EduardoDePatta/coupon-generator/internal/models"
	"github.com/EduardoDePatta/coupon-generator/internal/store"
	errs "github.com/EduardoDePatta/coupon-generator/pkg/errors"
)

// AuthHandler handles login and registration
type AuthHandler struct {
	users       store.UserStore
	credentials *auth.CredentialService
	logger      *logrus.Logger
}

func NewAuthHandler(users store.UserStore, credentials *auth.CredentialService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		users:       users,
		credentials: credentials,
		logger:      logger,
	}
}

// Login authenticates a user and returns a session token
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errs.New(errs.CodeBadRequest, "Invalid request body", err))
	}
	if req.Email == "" || req.Password == "" {
		return respondError(c, errs.New(errs.CodeValidation, "Email and password are required", nil))
	}

	user, err := h.users.GetUserByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// same response as a wrong password: account existence stays hidden
			return respondError(c, errs.New(errs.CodeUnauthenticated, "Invalid email or password", nil))
		}
		return respondError(c, errs.New(errs.CodeStoreUnavailable, "Failed to load user", err))
	}

	if !user.Active || !h.credentials.ComparePassword(req.Password, user.PasswordHash) {
		h.logger.WithField("email", req.Email).Warn("Invalid login attempt")
		return respondError(c, errs.New(errs.CodeUnauthenticated, "Invalid email or password", nil))
	}

	sessionToken, expiresIn, err := h.credentials.IssueSession(auth.SessionClaims{
		UserID: user.UserID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue session token")
		return respondError(c, errs.New(errs.CodeInternalError, "Failed to generate token", err))
	}

	h.logger.WithField("userId", user.UserID).Info("User logged in")

	return respond(c, fiber.StatusOK, "Login successful", models.AuthResponse{
		Token:     sessionToken,
		UserID:    user.UserID,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresIn: expiresIn,
	})
}

// Register creates a new user and returns a session token
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errs.New(errs.CodeBadRequest, "Invalid request body", err))
	}
	if req.Email == "" || req.Password == "" || req.RegionID == "" {
		return respondError(c, errs.New(errs.CodeValidation, "Email, password and regionId are required", nil))
	}

	passwordHash, err := h.credentials.HashPassword(req.Password)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		return respondError(c, errs.New(errs.CodeInternalError, "Failed to process password", err))
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		UserID:       uuid.New().String(),
		RegionID:     req.RegionID,
		Role:         "user",
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.users.PutUser(c.Context(), user); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return respond(c, fiber.StatusConflict, "Email already registered", nil)
		}
		return respondError(c, errs.New(errs.CodeStoreUnavailable, "Failed to create user", err))
	}

	sessionToken, expiresIn, err := h.credentials.IssueSession(auth.SessionClaims{
		UserID: user.UserID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue session token")
		return respondError(c, errs.New(errs.CodeInternalError, "Failed to generate token", err))
	}

	h.logger.WithField("userId", user.UserID).Info("User registered")

	return respond(c, fiber.StatusCreated, "User registered successfully", models.AuthResponse{
		Token:     sessionToken,
		UserID:    user.UserID,
		Email:     user.Email,
		Role:      user.Role,
		ExpiresIn: expiresIn,
	})
}
