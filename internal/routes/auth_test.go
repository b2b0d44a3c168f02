package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/EduardoDePatta/coupon-generator/internal/auth"
	"github.com/EduardoDePatta/coupon-generator/internal/config"
	"github.com/EduardoDePatta/coupon-generator/internal/models"
	"github.com/EduardoDePatta/coupon-generator/internal/store"
)

func newAuthTestApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()

	credentials := auth.NewCredentialService(&config.JWTConfig{
		Secret: "routes-test-secret",
		TTL:    time.Hour,
		Issuer: "coupon-generator",
	})

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st := store.NewMemoryStore()
	handler := NewAuthHandler(st, credentials, logger)

	app := fiber.New()
	app.Post("/api/v1/auth/login", handler.Login)
	app.Post("/api/v1/auth/register", handler.Register)

	return app, st
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	return resp, parsed
}

func TestRegisterAndLogin(t *testing.T) {
	app, _ := newAuthTestApp(t)

	resp, body := postJSON(t, app, "/api/v1/auth/register", map[string]string{
		"email":    "user@example.com",
		"password": "s3cret-pass",
		"regionId": "eu-north",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "User registered successfully", body["message"])

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["token"])
	assert.NotEmpty(t, data["userId"])
	// password material never appears in the response
	_, hasPassword := data["password"]
	assert.False(t, hasPassword)

	resp, body = postJSON(t, app, "/api/v1/auth/login", map[string]string{
		"email":    "user@example.com",
		"password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Login successful", body["message"])

	data, ok = body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["token"])
	assert.Equal(t, "user", data["role"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	app, _ := newAuthTestApp(t)

	payload := map[string]string{
		"email":    "user@example.com",
		"password": "s3cret-pass",
		"regionId": "eu-north",
	}

	resp, _ := postJSON(t, app, "/api/v1/auth/register", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := postJSON(t, app, "/api/v1/auth/register", payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Email already registered", body["message"])
	assert.Nil(t, body["data"])
}

func TestRegister_MissingFields(t *testing.T) {
	app, _ := newAuthTestApp(t)

	resp, body := postJSON(t, app, "/api/v1/auth/register", map[string]string{"email": "user@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email, password and regionId are required", body["message"])
}

func TestLogin_WrongPassword(t *testing.T) {
	app, _ := newAuthTestApp(t)

	resp, _ := postJSON(t, app, "/api/v1/auth/register", map[string]string{
		"email":    "user@example.com",
		"password": "s3cret-pass",
		"regionId": "eu-north",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := postJSON(t, app, "/api/v1/auth/login", map[string]string{
		"email":    "user@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", body["message"])
}

func TestLogin_UnknownEmail(t *testing.T) {
	app, _ := newAuthTestApp(t)

	resp, body := postJSON(t, app, "/api/v1/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	// indistinguishable from a wrong password
	assert.Equal(t, "Invalid email or password", body["message"])
}

func TestLogin_InactiveUser(t *testing.T) {
	app, st := newAuthTestApp(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, st.PutUser(context.Background(), &models.User{
		Email:        "user@example.com",
		PasswordHash: string(hash),
		UserID:       "user-1",
		RegionID:     "eu-north",
		Role:         "user",
		Active:       false,
		CreatedAt:    time.Now().UTC(),
	}))

	resp, body := postJSON(t, app, "/api/v1/auth/login", map[string]string{
		"email":    "user@example.com",
		"password": "s3cret-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", body["message"])
}
