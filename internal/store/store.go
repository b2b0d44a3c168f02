// Package store provides conditional single-item access to coupon and user
// records, keyed by (userId, couponId) and email respectively.
package store

import (
	"context"
	"errors"

	"github.com/EduardoDePatta/coupon-generator/internal/models"
)

var (
	// ErrNotFound is returned when the requested item does not exist
	ErrNotFound = errors.New("store: item not found")

	// ErrConditionFailed is returned when a conditional write's predicate did
	// not hold. For MarkUsed the store cannot distinguish "never existed" from
	// "already redeemed"; callers classify it as a single error kind.
	ErrConditionFailed = errors.New("store: condition failed")
)

// CouponStore is the persistence contract for coupon records
type CouponStore interface {
	GetCoupon(ctx context.Context, userID, couponID string) (*models.Coupon, error)
	// PutCoupon persists a new coupon, failing with ErrConditionFailed if the
	// id already exists.
	PutCoupon(ctx context.Context, coupon *models.Coupon) error
	// MarkUsed atomically flips used from false to true. The predicate is
	// evaluated by the store itself; this is the sole point of truth for
	// whether a coupon has been redeemed.
	MarkUsed(ctx context.Context, userID, couponID string) error
}

// UserStore is the persistence contract for user records
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	PutUser(ctx context.Context, user *models.User) error
}
