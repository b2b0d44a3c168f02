package coupon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EduardoDePatta/coupon-generator/internal/auth"
	"github.com/EduardoDePatta/coupon-generator/internal/models"
	"github.com/EduardoDePatta/coupon-generator/internal/store"
	"github.com/EduardoDePatta/coupon-generator/internal/token"
	errs "github.com/EduardoDePatta/coupon-generator/pkg/errors"
)

const testSecret = "unit-test-coupon-secret"

type stubRenderer struct {
	fail bool
}

func (r stubRenderer) RenderDataURL(url string) (string, error) {
	if r.fail {
		return "", errors.New("render failed")
	}
	return "data:image/png;base64,stub", nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(st store.CouponStore, renderer stubRenderer) *Service {
	return NewService(st, token.NewCodec(testSecret), renderer, "http://localhost:8000", 24*time.Hour, testLogger())
}

func validRequest() models.IssueCouponRequest {
	return models.IssueCouponRequest{
		UserID:        "user-1",
		RegionID:      "eu-north",
		RestaurantID:  "rest-42",
		ProductCode:   "BURGER",
		DiscountValue: 15.5,
	}
}

// seedCoupon persists a coupon with a well-signed token and the given expiry
// and used state, bypassing Issue.
func seedCoupon(t *testing.T, st *store.MemoryStore, userID, couponID string, expiresAt time.Time, used bool) *models.Coupon {
	t.Helper()

	codec := token.NewCodec(testSecret)
	claims := models.TokenClaims{
		UserID:        userID,
		RegionID:      "eu-north",
		RestaurantID:  "rest-42",
		ProductCode:   "BURGER",
		DiscountValue: 15.5,
		CouponID:      couponID,
		ExpiresAt:     expiresAt,
	}
	signed, err := codec.Encode(claims)
	require.NoError(t, err)

	coupon := &models.Coupon{
		UserID:        userID,
		CouponID:      couponID,
		RegionID:      claims.RegionID,
		RestaurantID:  claims.RestaurantID,
		ProductCode:   claims.ProductCode,
		DiscountValue: claims.DiscountValue,
		Token:         signed,
		ExpiresAt:     expiresAt,
		Used:          used,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, st.PutCoupon(context.Background(), coupon))
	return coupon
}

func TestIssue(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})

	before := time.Now().UTC()
	coupon, err := svc.Issue(context.Background(), auth.SessionClaims{UserID: "admin-1"}, validRequest())
	require.NoError(t, err)

	assert.Equal(t, "user-1", coupon.UserID)
	assert.NotEmpty(t, coupon.CouponID)
	assert.False(t, coupon.Used)
	assert.Equal(t, 1, st.CouponCount())

	// The embedded token must agree with the stored record
	claims, err := token.NewCodec(testSecret).Decode(coupon.Token)
	require.NoError(t, err)
	assert.Equal(t, coupon.CouponID, claims.CouponID)
	assert.Equal(t, coupon.UserID, claims.UserID)
	assert.Equal(t, coupon.DiscountValue, claims.DiscountValue)

	// Expiry is roughly now + ttl
	assert.WithinDuration(t, before.Add(24*time.Hour), coupon.ExpiresAt, 5*time.Second)
}

func TestIssue_ValidationListsAllFields(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})

	_, err := svc.Issue(context.Background(), auth.SessionClaims{}, models.IssueCouponRequest{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeValidation))

	// Every missing field is reported in one pass, and nothing was written
	for _, field := range []string{"userId", "regionId", "restaurantId", "productCode", "discountValue"} {
		assert.Contains(t, err.Error(), field)
	}
	assert.Equal(t, 0, st.CouponCount())
}

func TestIssue_RejectsNonPositiveDiscount(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})

	for _, value := range []float64{0, -5} {
		req := validRequest()
		req.DiscountValue = value

		_, err := svc.Issue(context.Background(), auth.SessionClaims{}, req)
		require.Error(t, err, "discountValue=%v", value)
		assert.True(t, errs.Is(err, errs.CodeValidation))
	}
	assert.Equal(t, 0, st.CouponCount())
}

func TestRetrieve(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})

	issued, err := svc.Issue(context.Background(), auth.SessionClaims{}, validRequest())
	require.NoError(t, err)

	got, err := svc.Retrieve(context.Background(), issued.UserID, issued.CouponID)
	require.NoError(t, err)

	assert.Equal(t, issued.CouponID, got.CouponID)
	assert.True(t, strings.HasPrefix(got.RedeemURL, "http://localhost:8000/api/v1/redeem?token="))
	assert.NotContains(t, got.RedeemURL, "+", "token must be query-escaped")
	assert.Equal(t, "data:image/png;base64,stub", got.QRCode)
}

func TestRetrieve_MissingParams(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), stubRenderer{})

	_, err := svc.Retrieve(context.Background(), "", "")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeValidation))
	assert.Contains(t, err.Error(), "userId")
	assert.Contains(t, err.Error(), "couponId")
}

func TestRetrieve_NotFound(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), stubRenderer{})

	_, err := svc.Retrieve(context.Background(), "user-1", "nope")
	assert.True(t, errs.Is(err, errs.CodeNotFound))
}

func TestRetrieve_Expired(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})
	seedCoupon(t, st, "user-1", "c-1", time.Now().Add(-time.Hour), false)

	_, err := svc.Retrieve(context.Background(), "user-1", "c-1")
	assert.True(t, errs.Is(err, errs.CodeCouponExpired))
}

func TestRetrieve_Used(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})
	seedCoupon(t, st, "user-1", "c-1", time.Now().Add(time.Hour), true)

	_, err := svc.Retrieve(context.Background(), "user-1", "c-1")
	assert.True(t, errs.Is(err, errs.CodeAlreadyUsed))
}

func TestRetrieve_ExpiredWinsOverUsed(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})
	seedCoupon(t, st, "user-1", "c-1", time.Now().Add(-time.Hour), true)

	_, err := svc.Retrieve(context.Background(), "user-1", "c-1")
	assert.True(t, errs.Is(err, errs.CodeCouponExpired))
}

func TestRetrieve_TamperedStoredToken(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})

	coupon := seedCoupon(t, store.NewMemoryStore(), "user-1", "c-1", time.Now().Add(time.Hour), false)
	coupon.Token = coupon.Token + "x"
	require.NoError(t, st.PutCoupon(context.Background(), coupon))

	_, err := svc.Retrieve(context.Background(), "user-1", "c-1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeInvalidToken))
	// error message must not reveal which verification step failed
	assert.Equal(t, "Invalid coupon token", errs.As(err).Message)
}

func TestRetrieve_QRFailureIsNonFatal(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{fail: true})

	issued, err := svc.Issue(context.Background(), auth.SessionClaims{}, validRequest())
	require.NoError(t, err)

	got, err := svc.Retrieve(context.Background(), issued.UserID, issued.CouponID)
	require.NoError(t, err)
	assert.Empty(t, got.QRCode)
	assert.NotEmpty(t, got.RedeemURL)
}

func TestRedeem(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})

	issued, err := svc.Issue(context.Background(), auth.SessionClaims{}, validRequest())
	require.NoError(t, err)

	result, err := svc.Redeem(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.CouponID, result.CouponID)
	assert.Equal(t, issued.UserID, result.UserID)
	assert.Equal(t, issued.RegionID, result.RegionID)
	assert.True(t, result.Used)

	// Second attempt hits the condition, not a second state flip
	_, err = svc.Redeem(context.Background(), issued.Token)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeAlreadyRedeemed))
	assert.Equal(t, "Coupon has already been redeemed or does not exist", errs.As(err).Message)
}

func TestRedeem_EmptyToken(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), stubRenderer{})

	_, err := svc.Redeem(context.Background(), "")
	assert.True(t, errs.Is(err, errs.CodeValidation))
}

func TestRedeem_InvalidToken(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), stubRenderer{})

	_, err := svc.Redeem(context.Background(), "not.a-token")
	assert.True(t, errs.Is(err, errs.CodeInvalidToken))
}

func TestRedeem_ExpiredToken(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})
	coupon := seedCoupon(t, st, "user-1", "c-1", time.Now().Add(-time.Hour), false)

	_, err := svc.Redeem(context.Background(), coupon.Token)
	assert.True(t, errs.Is(err, errs.CodeCouponExpired))

	// The record was not touched
	stored, gerr := st.GetCoupon(context.Background(), "user-1", "c-1")
	require.NoError(t, gerr)
	assert.False(t, stored.Used)
}

func TestRedeem_WellSignedTokenForMissingRecord(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), stubRenderer{})

	signed, err := token.NewCodec(testSecret).Encode(models.TokenClaims{
		UserID:    "ghost",
		CouponID:  "never-stored",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	// Absence and prior redemption are indistinguishable to the caller
	_, err = svc.Redeem(context.Background(), signed)
	assert.True(t, errs.Is(err, errs.CodeAlreadyRedeemed))
}

func TestRedeemByKey(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})

	issued, err := svc.Issue(context.Background(), auth.SessionClaims{}, validRequest())
	require.NoError(t, err)

	result, err := svc.RedeemByKey(context.Background(), issued.UserID, issued.CouponID)
	require.NoError(t, err)
	assert.True(t, result.Used)

	_, err = svc.RedeemByKey(context.Background(), issued.UserID, issued.CouponID)
	assert.True(t, errs.Is(err, errs.CodeAlreadyRedeemed))
}

func TestRedeemByKey_NotFound(t *testing.T) {
	svc := newTestService(store.NewMemoryStore(), stubRenderer{})

	_, err := svc.RedeemByKey(context.Background(), "user-1", "nope")
	assert.True(t, errs.Is(err, errs.CodeNotFound))
}

func TestRedeem_ConcurrentExactlyOnce(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st, stubRenderer{})

	issued, err := svc.Issue(context.Background(), auth.SessionClaims{}, validRequest())
	require.NoError(t, err)

	const attempts = 32
	results := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Redeem(context.Background(), issued.Token)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, errs.Is(err, errs.CodeAlreadyRedeemed), "attempt %d: %v", i, err)
	}
	assert.Equal(t, 1, successes, "exactly one concurrent redemption may succeed")
}

// flakyStore fails the first MarkUsed with a transient error, then delegates.
type flakyStore struct {
	*store.MemoryStore
	mu     sync.Mutex
	failed bool
}

func (f *flakyStore) MarkUsed(ctx context.Context, userID, couponID string) error {
	f.mu.Lock()
	first := !f.failed
	f.failed = true
	f.mu.Unlock()

	if first {
		return fmt.Errorf("connection reset")
	}
	return f.MemoryStore.MarkUsed(ctx, userID, couponID)
}

func TestRedeem_RetryAfterTransientStoreError(t *testing.T) {
	inner := store.NewMemoryStore()
	flaky := &flakyStore{MemoryStore: inner}
	svc := newTestService(flaky, stubRenderer{})

	issued, err := svc.Issue(context.Background(), auth.SessionClaims{}, validRequest())
	require.NoError(t, err)

	// First attempt surfaces a retryable store failure without flipping state
	_, err = svc.Redeem(context.Background(), issued.Token)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeStoreUnavailable))

	stored, gerr := inner.GetCoupon(context.Background(), issued.UserID, issued.CouponID)
	require.NoError(t, gerr)
	assert.False(t, stored.Used)

	// The retry succeeds and redeems exactly once
	result, err := svc.Redeem(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.True(t, result.Used)
}
