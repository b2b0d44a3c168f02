// Package auth provides password hashing and session-token issuance. Session
// tokens are self-issued HS256 JWTs signed with a secret distinct from the
// coupon-token HMAC secret, so the two token kinds are never interchangeable.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/EduardoDePatta/coupon-generator/internal/config"
)

var (
	ErrSessionExpired = errors.New("auth: session expired")
	ErrSessionInvalid = errors.New("auth: invalid session token")
)

// SessionClaims is the signed assertion of a logged-in identity
type SessionClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type sessionTokenClaims struct {
	SessionClaims
	jwt.RegisteredClaims
}

// CredentialService issues and verifies session credentials and password
// hashes. The secret is read-only after construction.
type CredentialService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewCredentialService(cfg *config.JWTConfig) *CredentialService {
	return &CredentialService{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
	}
}

// HashPassword returns a salted bcrypt hash of the plaintext
func (s *CredentialService) HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword reports whether plaintext matches the stored hash. It never
// returns an error on mismatch.
func (s *CredentialService) ComparePassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// IssueSession signs claims into a session token with a fixed short expiry.
// Returns the token and its lifetime in seconds.
func (s *CredentialService) IssueSession(claims SessionClaims) (string, int, error) {
	now := time.Now()
	tokenClaims := sessionTokenClaims{
		SessionClaims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", 0, err
	}
	return signed, int(s.ttl.Seconds()), nil
}

// VerifySession validates a session token. Expiry is reported as
// ErrSessionExpired, every other failure as ErrSessionInvalid, so callers can
// return different guidance (re-login vs retry).
func (s *CredentialService) VerifySession(tokenString string) (*SessionClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &sessionTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrSessionInvalid
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}

	claims, ok := tok.Claims.(*sessionTokenClaims)
	if !ok || !tok.Valid {
		return nil, ErrSessionInvalid
	}

	return &claims.SessionClaims, nil
}
