package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/EduardoDePatta/coupon-generator/internal/auth"
	"github.com/EduardoDePatta/coupon-generator/internal/coupon"
	"github.com/EduardoDePatta/coupon-generator/internal/middleware"
	"github.com/EduardoDePatta/coupon-generator/internal/models"
	errs "github.com/EduardoDePatta/coupon-generator/pkg/errors"
)

// CouponHandler exposes the coupon lifecycle over HTTP
type CouponHandler struct {
	issuer    coupon.Issuer
	retriever coupon.Retriever
	redeemer  coupon.Redeemer
	logger    *logrus.Logger
}

func NewCouponHandler(issuer coupon.Issuer, retriever coupon.Retriever, redeemer coupon.Redeemer, logger *logrus.Logger) *CouponHandler {
	return &CouponHandler{
		issuer:    issuer,
		retriever: retriever,
		redeemer:  redeemer,
		logger:    logger,
	}
}

// Issue creates a coupon for the requested user
func (h *CouponHandler) Issue(c *fiber.Ctx) error {
	var req models.IssueCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, errs.New(errs.CodeBadRequest, "Invalid JSON body", err))
	}

	owner := auth.SessionClaims{}
	if claims := middleware.GetSessionClaims(c); claims != nil {
		owner = *claims
	}

	created, err := h.issuer.Issue(c.Context(), owner, req)
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, fiber.StatusOK, "Coupon created successfully", created)
}

// Retrieve fetches a coupon with its redeem URL and QR code
func (h *CouponHandler) Retrieve(c *fiber.Ctx) error {
	retrieved, err := h.retriever.Retrieve(c.Context(), c.Query("userId"), c.Query("couponId"))
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, fiber.StatusOK, "Coupon retrieved successfully", retrieved)
}

// Redeem marks a coupon as used, exactly once. The coupon is addressed either
// by the token query parameter (the QR-code path) or by a JSON body carrying
// its storage key.
func (h *CouponHandler) Redeem(c *fiber.Ctx) error {
	if tok := c.Query("token"); tok != "" {
		result, err := h.redeemer.Redeem(c.Context(), tok)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, "Coupon redeemed successfully", result)
	}

	var req models.RedeemByKeyRequest
	if err := c.BodyParser(&req); err != nil || (req.UserID == "" && req.CouponID == "") {
		return respondError(c, errs.New(errs.CodeValidation, "Token is required", nil))
	}

	result, err := h.redeemer.RedeemByKey(c.Context(), req.UserID, req.CouponID)
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, fiber.StatusOK, "Coupon redeemed successfully", result)
}
