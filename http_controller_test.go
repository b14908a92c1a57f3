package auth_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
)

const testCookieName = "gubi"

func testConfig() *auth.EnvConfig {
	return &auth.EnvConfig{
		SigningKey:      string(testSigningKey),
		TokenExpiration: 24,
		CookieName:      testCookieName,
		Issuer:          "test-issuer",
		Audience:        []string{"test-audience"},
	}
}

type controllerFixture struct {
	app    *fiber.App
	api    *MockAuthAPI
	tokens auth.TokenService
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	cfg := testConfig()
	api := &MockAuthAPI{}
	tokens := auth.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(), cfg.GetIssuer(), cfg.GetAudience(), nil)

	app := fiber.New()
	auth.RegisterAuthRoutes(app,
		auth.WithControllerAccounts(api),
		auth.WithControllerSessions(auth.NewSessionManager(tokens, cfg)),
	)

	return &controllerFixture{app: app, api: api, tokens: tokens}
}

func jsonRequest(method, target string, payload any) *http.Request {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

func findCookie(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterEndpoint(t *testing.T) {
	t.Run("creates user", func(t *testing.T) {
		fx := newControllerFixture(t)

		user := &auth.User{ID: uuid.New(), Email: "pepe@example.com"}
		fx.api.On("Register", mock.Anything, mock.AnythingOfType("auth.RegisterUserMessage")).Return(user, nil)

		res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/register", fiber.Map{
			"first_name": "Pepe",
			"last_name":  "Rone",
			"email":      "pepe@example.com",
			"password":   "correct-password",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, res.StatusCode)

		body := decodeBody(t, res)
		assert.Equal(t, true, body["success"])
		assert.Contains(t, body["message"], "OTP")
	})

	t.Run("validation failure", func(t *testing.T) {
		fx := newControllerFixture(t)

		res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/register", fiber.Map{
			"first_name": "Pepe",
			"email":      "not-an-email",
			"password":   "x",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnprocessableEntity, res.StatusCode)

		body := decodeBody(t, res)
		assert.Equal(t, true, body["error"])
		fx.api.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("duplicate email", func(t *testing.T) {
		fx := newControllerFixture(t)

		fx.api.On("Register", mock.Anything, mock.Anything).Return(nil, auth.ErrDuplicateEmail)

		res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/register", fiber.Map{
			"first_name": "Pepe",
			"last_name":  "Rone",
			"email":      "pepe@example.com",
			"password":   "correct-password",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

		body := decodeBody(t, res)
		assert.Equal(t, auth.ErrDuplicateEmail.Message, body["message"])
	})

	t.Run("mail outage is a 500 with generic message", func(t *testing.T) {
		fx := newControllerFixture(t)

		fx.api.On("Register", mock.Anything, mock.Anything).
			Return(nil, goerrors.Wrap(errors.New("smtp down"), goerrors.CategoryExternal, "failed to send verification email"))

		res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/register", fiber.Map{
			"first_name": "Pepe",
			"last_name":  "Rone",
			"email":      "pepe@example.com",
			"password":   "correct-password",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, res.StatusCode)

		body := decodeBody(t, res)
		assert.NotContains(t, body["message"], "smtp")
	})
}

func TestVerifyEmailEndpoint(t *testing.T) {
	t.Run("valid code", func(t *testing.T) {
		fx := newControllerFixture(t)

		fx.api.On("VerifyEmail", mock.Anything, auth.VerifyEmailMessage{
			Identifier: "pepe@example.com",
			OTP:        "4821",
		}).Return(&auth.VerifyResult{Redirect: "/"}, nil)

		res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/verify/email", fiber.Map{
			"identifier": "pepe@example.com",
			"otp":        "4821",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)

		body := decodeBody(t, res)
		assert.Equal(t, "/", body["redirect"])
	})

	t.Run("rejects non numeric otp", func(t *testing.T) {
		fx := newControllerFixture(t)

		res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/verify/email", fiber.Map{
			"identifier": "pepe@example.com",
			"otp":        "12ab",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnprocessableEntity, res.StatusCode)
		fx.api.AssertNotCalled(t, "VerifyEmail", mock.Anything, mock.Anything)
	})

	t.Run("invalid code", func(t *testing.T) {
		fx := newControllerFixture(t)

		fx.api.On("VerifyEmail", mock.Anything, mock.Anything).Return(nil, auth.ErrInvalidOTP)

		res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/verify/email", fiber.Map{
			"identifier": "pepe@example.com",
			"otp":        "0000",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("expired challenge", func(t *testing.T) {
		fx := newControllerFixture(t)

		fx.api.On("VerifyEmail", mock.Anything, mock.Anything).Return(nil, auth.ErrChallengeNotFound)

		res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/verify/email", fiber.Map{
			"identifier": "pepe@example.com",
			"otp":        "0000",
		}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
	})
}

func TestVerificationStatusEndpoint(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		fx := newControllerFixture(t)

		fx.api.On("VerificationStatus", mock.Anything, "pepe@example.com").
			Return(&auth.VerificationStatus{Email: "pepe@example.com", ChallengePending: true}, nil)

		res, err := fx.app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/user/verify/email/pepe@example.com", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)

		body := decodeBody(t, res)
		assert.Equal(t, true, body["challenge_pending"])
	})

	t.Run("already verified", func(t *testing.T) {
		fx := newControllerFixture(t)

		fx.api.On("VerificationStatus", mock.Anything, "pepe@example.com").Return(nil, auth.ErrAlreadyVerified)

		res, err := fx.app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/user/verify/email/pepe@example.com", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	})
}

func TestLoginEndpoint(t *testing.T) {
	login := fiber.Map{
		"email":    "pepe@example.com",
		"password": "correct-password",
	}

	t.Run("sets session cookie", func(t *testing.T) {
		fx := newControllerFixture(t)

		token, err := fx.tokens.Generate("user-123")
		require.NoError(t, err)

		fx.api.On("Login", mock.Anything, mock.AnythingOfType("auth.LoginMessage")).
			Return(&auth.LoginResult{Token: token, Redirect: "/"}, nil)

		res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/login", login))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)

		cookie := findCookie(res, testCookieName)
		require.NotNil(t, cookie)
		assert.Equal(t, token, cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Expires.After(time.Now()))

		body := decodeBody(t, res)
		assert.Equal(t, "/", body["redirect"])
	})

	t.Run("every auth failure is a 401 with its own message", func(t *testing.T) {
		failures := []*goerrors.Error{
			auth.ErrAccountNotFound,
			auth.ErrInvalidCredentials,
			auth.ErrVerificationPending,
			auth.ErrVerificationResent,
		}

		for _, failure := range failures {
			fx := newControllerFixture(t)
			fx.api.On("Login", mock.Anything, mock.Anything).Return(nil, failure)

			res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/login", login))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)

			body := decodeBody(t, res)
			assert.Equal(t, failure.Message, body["message"])
			assert.Nil(t, findCookie(res, testCookieName))
		}
	})

	t.Run("storage outage is a 500", func(t *testing.T) {
		fx := newControllerFixture(t)

		fx.api.On("Login", mock.Anything, mock.Anything).
			Return(nil, goerrors.Wrap(errors.New("db gone"), goerrors.CategoryInternal, "failed to load user for login"))

		res, err := fx.app.Test(jsonRequest(fiber.MethodPost, "/api/v1/user/login", login))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, res.StatusCode)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	fx := newControllerFixture(t)

	res, err := fx.app.Test(httptest.NewRequest(fiber.MethodGet, "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, res.StatusCode)
	assert.Equal(t, "/", res.Header.Get("Location"))

	cookie := findCookie(res, testCookieName)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()))
}

func TestProfileEndpoint(t *testing.T) {
	t.Run("requires a session", func(t *testing.T) {
		fx := newControllerFixture(t)

		res, err := fx.app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/user/profile/user-123", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
		fx.api.AssertNotCalled(t, "Profile", mock.Anything, mock.Anything)
	})

	t.Run("valid session", func(t *testing.T) {
		fx := newControllerFixture(t)

		user := &auth.User{ID: uuid.New(), Email: "pepe@example.com"}
		fx.api.On("Profile", mock.Anything, user.ID.String()).Return(user, nil)

		token, err := fx.tokens.Generate(user.ID.String())
		require.NoError(t, err)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/user/profile/"+user.ID.String(), nil)
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: token})

		res, err := fx.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)

		body := decodeBody(t, res)
		assert.Equal(t, true, body["success"])
	})

	t.Run("expired session clears the cookie", func(t *testing.T) {
		fx := newControllerFixture(t)

		now := time.Now()
		expired, err := fx.tokens.SignClaims(&auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Subject:   "user-123",
				Audience:  jwt.ClaimStrings{"test-audience"},
				IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			},
			UID: "user-123",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/user/profile/user-123", nil)
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: expired})

		res, err := fx.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)

		body := decodeBody(t, res)
		assert.Equal(t, "Session has expired. Please log in again.", body["message"])

		cookie := findCookie(res, testCookieName)
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
	})

	t.Run("malformed session token", func(t *testing.T) {
		fx := newControllerFixture(t)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/user/profile/user-123", nil)
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: "garbage"})

		res, err := fx.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
		fx.api.AssertNotCalled(t, "Profile", mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		fx := newControllerFixture(t)

		fx.api.On("Profile", mock.Anything, "user-123").Return(nil, auth.ErrUserNotFound)

		token, err := fx.tokens.Generate("user-123")
		require.NoError(t, err)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/user/profile/user-123", nil)
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: token})

		res, err := fx.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
	})
}
