package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/auth"
	"github.com/pot-code/lesson-tutor/internal/user"
)

const contextUserKey = "user"

// LoadUserOption ...
type LoadUserOption struct {
	// Missing responds when the session points at a user that no longer exists
	Missing echo.HandlerFunc
}

// LoadUser resolve the session owner, must be chained after VerifyToken.
//
// A session whose user is gone is cleared.
func LoadUser(ju *auth.JWTUtil, users user.UserUseCase, options ...*LoadUserOption) echo.MiddlewareFunc {
	missing := func(c echo.Context) error {
		return user.ErrUserNotFound
	}
	if len(options) > 0 && options[0].Missing != nil {
		missing = options[0].Missing
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ju.GetContextToken(c)
			if claims == nil {
				return auth.ErrUnauthorized
			}
			u, err := users.Get(c.Request().Context(), claims.UID)
			if errors.Is(err, user.ErrUserNotFound) {
				ju.ClearClientToken(c)
				return missing(c)
			}
			if err != nil {
				return err
			}
			c.Set(contextUserKey, u)
			return next(c)
		}
	}
}

// CurrentUser user loaded by LoadUser, nil outside of it
func CurrentUser(c echo.Context) *user.UserModel {
	u, _ := c.Get(contextUserKey).(*user.UserModel)
	return u
}
