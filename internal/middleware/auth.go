package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"morality-quiz-backend/internal/token"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

func Auth(tokens *token.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := claimsFromHeader(c, tokens)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "malformed token subject")
			}

			c.Set(ContextUserID, userID)
			c.Set(ContextRole, claims.Role)
			return next(c)
		}
	}
}

// OptionalAuth lets guests through: a missing or invalid token just means
// an anonymous request. Guest quiz-taking and guest purchase verification
// depend on this.
func OptionalAuth(tokens *token.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := claimsFromHeader(c, tokens)
			if err != nil {
				return next(c)
			}

			if userID, err := uuid.Parse(claims.UserID); err == nil {
				c.Set(ContextUserID, userID)
				c.Set(ContextRole, claims.Role)
			}
			return next(c)
		}
	}
}

func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			current, ok := c.Get(ContextRole).(string)
			if !ok || current != role {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

// AuthedUserID returns the authenticated user id, or nil on an anonymous
// request.
func AuthedUserID(c echo.Context) *uuid.UUID {
	if userID, ok := c.Get(ContextUserID).(uuid.UUID); ok {
		return &userID
	}
	return nil
}

func claimsFromHeader(c echo.Context, tokens *token.Manager) (*token.UserClaims, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "malformed Authorization header")
	}

	return tokens.VerifyUser(parts[1])
}
