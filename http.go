package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// SessionManager handles the session cookie lifecycle for the HTTP
// surface: issuing the cookie on login, clearing it on logout, and
// guarding protected routes.
type SessionManager struct {
	cfg            Config
	tokens         TokenService
	cookieDuration time.Duration
	Logger         Logger
}

func NewSessionManager(tokens TokenService, cfg Config) *SessionManager {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	return &SessionManager{
		cfg:            cfg,
		tokens:         tokens,
		cookieDuration: cookieDuration,
		Logger:         defLogger{},
	}
}

// SetSessionCookie attaches the signed session token to the response.
func (s *SessionManager) SetSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     s.cfg.GetContextKey(),
		Value:    token,
		Expires:  time.Now().Add(s.cookieDuration),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func (s *SessionManager) ClearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.cfg.GetContextKey(),
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// RequireSession validates the session cookie and stores the decoded
// session in the request locals under the configured context key.
func (s *SessionManager) RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(s.cfg.GetContextKey())
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Please log in to continue.",
			})
		}

		claims, err := s.tokens.Validate(raw)
		if err != nil {
			if IsTokenExpiredError(err) {
				s.ClearSessionCookie(c)
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error":   true,
					"message": "Session has expired. Please log in again.",
				})
			}
			s.Logger.Error("session validation failed: %s", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid session. Please log in again.",
			})
		}

		session, err := sessionFromAuthClaims(claims)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid session. Please log in again.",
			})
		}

		c.Locals(s.cfg.GetContextKey(), session)
		c.SetUserContext(WithSessionContext(c.UserContext(), session))
		return c.Next()
	}
}

// GetRequestSession retrieves the session placed in the request locals
// by RequireSession.
func GetRequestSession(c *fiber.Ctx, key string) (*SessionObject, error) {
	val := c.Locals(key)
	if val == nil {
		return nil, ErrUnableToFindSession
	}

	session, ok := val.(*SessionObject)
	if session == nil || !ok {
		return nil, ErrUnableToDecodeSession
	}

	return session, nil
}

// statusFromError maps a rich error to the HTTP status the handlers
// respond with. Login failures are handled separately and always map
// to 401.
func statusFromError(err error) int {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return fiber.StatusInternalServerError
	}

	switch rich.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return fiber.StatusBadRequest
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}
