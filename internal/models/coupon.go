package models

import "time"

// Coupon represents a stored coupon record.
//
// Attribute names intentionally match the wire/storage format of previously
// issued coupons: the table is keyed by (userId, couponId) and the embedded
// token claims must always agree with the stored record.
type Coupon struct {
	UserID        string    `json:"userId" dynamodbav:"userId"`     // Partition key
	CouponID      string    `json:"couponId" dynamodbav:"couponId"` // Sort key (uuid)
	RegionID      string    `json:"regionId" dynamodbav:"regionId"`
	RestaurantID  string    `json:"restaurantId" dynamodbav:"restaurantId"`
	ProductCode   string    `json:"productCode" dynamodbav:"productCode"`
	DiscountValue float64   `json:"discountValue" dynamodbav:"discountValue"`
	Token         string    `json:"token" dynamodbav:"token"`
	ExpiresAt     time.Time `json:"expiresAt" dynamodbav:"expiresAt"`
	Used          bool      `json:"used" dynamodbav:"used"`
	CreatedAt     time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// TokenClaims is the payload signed inside a coupon token. It is derived from
// the Coupon at issuance and re-derived from the token at verification time;
// it must round-trip byte-for-byte through the codec.
type TokenClaims struct {
	UserID        string    `json:"userId"`
	RegionID      string    `json:"regionId"`
	RestaurantID  string    `json:"restaurantId"`
	ProductCode   string    `json:"productCode"`
	DiscountValue float64   `json:"discountValue"`
	CouponID      string    `json:"couponId"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// IssueCouponRequest is the payload for creating a coupon
type IssueCouponRequest struct {
	UserID        string  `json:"userId" validate:"required"`
	RegionID      string  `json:"regionId" validate:"required"`
	RestaurantID  string  `json:"restaurantId" validate:"required"`
	ProductCode   string  `json:"productCode" validate:"required"`
	DiscountValue float64 `json:"discountValue" validate:"required,gt=0"`
}

// RetrievedCoupon is a coupon plus its redeem link and QR image
type RetrievedCoupon struct {
	Coupon
	RedeemURL string `json:"redeemUrl"`
	QRCode    string `json:"qrCode,omitempty"` // data URL; omitted when rendering fails
}

// RedeemResult is returned after a successful redemption
type RedeemResult struct {
	UserID   string `json:"userId"`
	RegionID string `json:"regionId"`
	CouponID string `json:"couponId"`
	Used     bool   `json:"used"`
}

// RedeemByKeyRequest addresses a coupon by its storage key instead of a token
type RedeemByKeyRequest struct {
	UserID   string `json:"userId" validate:"required"`
	CouponID string `json:"couponId" validate:"required"`
}
