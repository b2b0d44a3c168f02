// Package token implements the coupon token wire format:
//
//	base64(gzip(JSON(claims))) + "." + hex(HMAC-SHA256(secret, base64(gzip(JSON(claims)))))
//
// The two-segment, dot-delimited shape must be preserved for interop with
// previously issued tokens.
package token

import (
	"bytes"
	"compress/gzip"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/EduardoDePatta/coupon-generator/internal/models"
)

var (
	ErrMissingSecret    = errors.New("token: signing secret not configured")
	ErrMalformedToken   = errors.New("token: malformed token")
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrCorruptPayload   = errors.New("token: corrupt payload")
)

// Codec serializes, compresses and signs coupon claims. It holds the server
// HMAC secret, read-only after construction, and is safe for concurrent use.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode serializes claims to JSON, compresses them and appends an HMAC-SHA256
// signature computed over the base64 payload. The secret is never embedded.
func (c *Codec) Encode(claims models.TokenClaims) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrMissingSecret
	}

	raw, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	payload := base64.StdEncoding.EncodeToString(buf.Bytes())
	return payload + "." + c.sign(payload), nil
}

// Decode verifies a token and returns its claims. Signature verification
// strictly precedes payload parsing: untrusted bytes are never decompressed
// or unmarshalled before the HMAC check passes.
func (c *Codec) Decode(tok string) (*models.TokenClaims, error) {
	if len(c.secret) == 0 {
		return nil, ErrMissingSecret
	}

	idx := strings.LastIndex(tok, ".")
	if idx <= 0 || idx == len(tok)-1 {
		return nil, ErrMalformedToken
	}
	payload, sig := tok[:idx], tok[idx+1:]

	given, err := hex.DecodeString(sig)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	if !hmac.Equal(mac.Sum(nil), given) {
		return nil, ErrInvalidSignature
	}

	compressed, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrCorruptPayload
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, ErrCorruptPayload
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, ErrCorruptPayload
	}
	if err := zr.Close(); err != nil {
		return nil, ErrCorruptPayload
	}

	var claims models.TokenClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, ErrCorruptPayload
	}

	return &claims, nil
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
