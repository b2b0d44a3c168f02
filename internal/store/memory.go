package store

import (
	"context"
	"sync"

	"github.com/EduardoDePatta/coupon-generator/internal/models"
)

// MemoryStore is an in-process CouponStore/UserStore with the same conditional
// write semantics as DynamoDB. Used in tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	coupons map[string]models.Coupon
	users   map[string]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		coupons: make(map[string]models.Coupon),
		users:   make(map[string]models.User),
	}
}

func (s *MemoryStore) GetCoupon(ctx context.Context, userID, couponID string) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coupon, ok := s.coupons[userID+"/"+couponID]
	if !ok {
		return nil, ErrNotFound
	}
	return &coupon, nil
}

func (s *MemoryStore) PutCoupon(ctx context.Context, coupon *models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := coupon.UserID + "/" + coupon.CouponID
	if _, exists := s.coupons[key]; exists {
		return ErrConditionFailed
	}
	s.coupons[key] = *coupon
	return nil
}

// MarkUsed evaluates the used=false predicate and flips the flag under a
// single lock, mirroring the atomicity of the DynamoDB condition expression.
func (s *MemoryStore) MarkUsed(ctx context.Context, userID, couponID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + "/" + couponID
	coupon, ok := s.coupons[key]
	if !ok || coupon.Used {
		return ErrConditionFailed
	}
	coupon.Used = true
	s.coupons[key] = coupon
	return nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) PutUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Email]; exists {
		return ErrConditionFailed
	}
	s.users[user.Email] = *user
	return nil
}

// CouponCount reports how many coupons have been persisted
func (s *MemoryStore) CouponCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.coupons)
}
