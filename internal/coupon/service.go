// Package coupon orchestrates the coupon lifecycle: issuance, retrieval and
// exactly-once redemption.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/EduardoDePatta/coupon-generator/internal/auth"
	"github.com/EduardoDePatta/coupon-generator/internal/metrics"
	"github.com/EduardoDePatta/coupon-generator/internal/models"
	"github.com/EduardoDePatta/coupon-generator/internal/qr"
	"github.com/EduardoDePatta/coupon-generator/internal/store"
	"github.com/EduardoDePatta/coupon-generator/internal/token"
	errs "github.com/EduardoDePatta/coupon-generator/pkg/errors"
)

// Issuer creates coupons
type Issuer interface {
	Issue(ctx context.Context, owner auth.SessionClaims, req models.IssueCouponRequest) (*models.Coupon, error)
}

// Retriever fetches coupons and builds their redeem link
type Retriever interface {
	Retrieve(ctx context.Context, userID, couponID string) (*models.RetrievedCoupon, error)
}

// Redeemer flips a coupon to used exactly once, addressed either by a bare
// token or by its storage key
type Redeemer interface {
	Redeem(ctx context.Context, tok string) (*models.RedeemResult, error)
	RedeemByKey(ctx context.Context, userID, couponID string) (*models.RedeemResult, error)
}

// Service is the production implementation of Issuer, Retriever and Redeemer
type Service struct {
	store         store.CouponStore
	codec         *token.Codec
	renderer      qr.Renderer
	redeemBaseURL string
	ttl           time.Duration
	logger        *logrus.Logger
	validate      *requestValidator
}

var (
	_ Issuer    = (*Service)(nil)
	_ Retriever = (*Service)(nil)
	_ Redeemer  = (*Service)(nil)
)

func NewService(couponStore store.CouponStore, codec *token.Codec, renderer qr.Renderer, redeemBaseURL string, ttl time.Duration, logger *logrus.Logger) *Service {
	return &Service{
		store:         couponStore,
		codec:         codec,
		renderer:      renderer,
		redeemBaseURL: redeemBaseURL,
		ttl:           ttl,
		logger:        logger,
		validate:      newRequestValidator(),
	}
}

// Issue validates the request, generates a fresh coupon id and expiry, signs
// the claims into a token and persists the full record. One persisted write.
func (s *Service) Issue(ctx context.Context, owner auth.SessionClaims, req models.IssueCouponRequest) (*models.Coupon, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	claims := models.TokenClaims{
		UserID:        req.UserID,
		RegionID:      req.RegionID,
		RestaurantID:  req.RestaurantID,
		ProductCode:   req.ProductCode,
		DiscountValue: req.DiscountValue,
		CouponID:      uuid.New().String(),
		ExpiresAt:     now.Add(s.ttl),
	}

	signed, err := s.codec.Encode(claims)
	if err != nil {
		return nil, errs.New(errs.CodeInternalError, "Failed to generate coupon token", err)
	}

	coupon := &models.Coupon{
		UserID:        claims.UserID,
		CouponID:      claims.CouponID,
		RegionID:      claims.RegionID,
		RestaurantID:  claims.RestaurantID,
		ProductCode:   claims.ProductCode,
		DiscountValue: claims.DiscountValue,
		Token:         signed,
		ExpiresAt:     claims.ExpiresAt,
		Used:          false,
		CreatedAt:     now,
	}

	if err := s.store.PutCoupon(ctx, coupon); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			// uuid collision; negligible but the store enforces it anyway
			return nil, errs.New(errs.CodeInternalError, "Coupon id collision", err)
		}
		return nil, errs.New(errs.CodeStoreUnavailable, "Failed to persist coupon", err)
	}

	metrics.RecordCouponIssued()
	s.logger.WithFields(logrus.Fields{
		"couponId": coupon.CouponID,
		"userId":   coupon.UserID,
		"issuedBy": owner.UserID,
	}).Info("Coupon issued")

	return coupon, nil
}

// Retrieve fetches a coupon, verifies its embedded token, enforces expiry and
// used-state, and attaches a redeem URL plus a best-effort QR image. No store
// mutation.
func (s *Service) Retrieve(ctx context.Context, userID, couponID string) (*models.RetrievedCoupon, error) {
	if err := requireFields(map[string]string{"userId": userID, "couponId": couponID}); err != nil {
		return nil, err
	}

	coupon, err := s.store.GetCoupon(ctx, userID, couponID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.New(errs.CodeNotFound, "Coupon not found", err)
		}
		return nil, errs.New(errs.CodeStoreUnavailable, "Failed to load coupon", err)
	}

	claims, err := s.codec.Decode(coupon.Token)
	if err != nil {
		// data corruption rather than bad client input, but never reveal
		// which half of the verification failed
		return nil, errs.New(errs.CodeInvalidToken, "Invalid coupon token", err)
	}

	if claims.ExpiresAt.IsZero() {
		return nil, errs.New(errs.CodeCorruptRecord, "Coupon token carries no expiry", nil)
	}
	if time.Now().After(claims.ExpiresAt) {
		return nil, errs.New(errs.CodeCouponExpired, "Coupon has expired", nil)
	}
	if coupon.Used {
		return nil, errs.New(errs.CodeAlreadyUsed, "Coupon has already been used", nil)
	}

	redeemURL := s.buildRedeemURL(coupon.Token)
	out := &models.RetrievedCoupon{Coupon: *coupon, RedeemURL: redeemURL}

	if image, err := s.renderer.RenderDataURL(redeemURL); err != nil {
		s.logger.WithError(err).WithField("couponId", coupon.CouponID).Warn("Failed to render QR code")
	} else {
		out.QRCode = image
	}

	return out, nil
}

// Redeem is the stateless path: the token alone carries the claims needed to
// address the record, so a redeem link works without a prior lookup.
func (s *Service) Redeem(ctx context.Context, tok string) (*models.RedeemResult, error) {
	if tok == "" {
		return nil, errs.New(errs.CodeValidation, "Token is required", nil)
	}

	claims, err := s.codec.Decode(tok)
	if err != nil {
		metrics.RecordRedemption("invalid_token")
		return nil, errs.New(errs.CodeInvalidToken, "Invalid coupon token", err)
	}

	if claims.ExpiresAt.IsZero() {
		return nil, errs.New(errs.CodeCorruptRecord, "Coupon token carries no expiry", nil)
	}
	if time.Now().After(claims.ExpiresAt) {
		metrics.RecordRedemption("expired")
		return nil, errs.New(errs.CodeCouponExpired, "Coupon has expired", nil)
	}

	return s.markUsed(ctx, claims.UserID, claims.RegionID, claims.CouponID)
}

// RedeemByKey is the stateful path: fetch by key, verify the stored token,
// then converge on the same conditional write as Redeem.
func (s *Service) RedeemByKey(ctx context.Context, userID, couponID string) (*models.RedeemResult, error) {
	if err := requireFields(map[string]string{"userId": userID, "couponId": couponID}); err != nil {
		return nil, err
	}

	coupon, err := s.store.GetCoupon(ctx, userID, couponID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.New(errs.CodeNotFound, "Coupon not found", err)
		}
		return nil, errs.New(errs.CodeStoreUnavailable, "Failed to load coupon", err)
	}

	claims, err := s.codec.Decode(coupon.Token)
	if err != nil {
		metrics.RecordRedemption("invalid_token")
		return nil, errs.New(errs.CodeInvalidToken, "Invalid coupon token", err)
	}

	if claims.ExpiresAt.IsZero() {
		return nil, errs.New(errs.CodeCorruptRecord, "Coupon token carries no expiry", nil)
	}
	if time.Now().After(claims.ExpiresAt) {
		metrics.RecordRedemption("expired")
		return nil, errs.New(errs.CodeCouponExpired, "Coupon has expired", nil)
	}

	return s.markUsed(ctx, coupon.UserID, coupon.RegionID, coupon.CouponID)
}

// markUsed issues the single conditional write that is the sole point of
// truth for redemption. Two concurrent calls for the same coupon resolve to
// exactly one success at the store, never here.
func (s *Service) markUsed(ctx context.Context, userID, regionID, couponID string) (*models.RedeemResult, error) {
	if err := s.store.MarkUsed(ctx, userID, couponID); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			metrics.RecordRedemption("already_redeemed")
			return nil, errs.New(errs.CodeAlreadyRedeemed, "Coupon has already been redeemed or does not exist", err)
		}
		metrics.RecordRedemption("store_error")
		return nil, errs.New(errs.CodeStoreUnavailable, "Failed to redeem coupon", err)
	}

	metrics.RecordRedemption("success")
	s.logger.WithFields(logrus.Fields{
		"couponId": couponID,
		"userId":   userID,
	}).Info("Coupon redeemed")

	return &models.RedeemResult{
		UserID:   userID,
		RegionID: regionID,
		CouponID: couponID,
		Used:     true,
	}, nil
}

func (s *Service) buildRedeemURL(tok string) string {
	return fmt.Sprintf("%s/api/v1/redeem?token=%s", s.redeemBaseURL, url.QueryEscape(tok))
}
