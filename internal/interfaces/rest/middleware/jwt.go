package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/auth"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/driver"
)

// ValidateTokenOption ...
type ValidateTokenOption struct {
	// KVStore holds revoked session IDs, nil disables the check
	KVStore driver.KeyValueDB
	// Optional pass requests without a valid session through instead of rejecting them
	Optional bool
	// Unauthorized responds to requests without a valid session
	Unauthorized echo.HandlerFunc
}

// RefreshTokenOption ...
type RefreshTokenOption struct {
	Threshold time.Duration
}

// VerifyToken validate the session token and put its claims into the context
func VerifyToken(ju *auth.JWTUtil, options ...*ValidateTokenOption) echo.MiddlewareFunc {
	cfg := &ValidateTokenOption{
		Unauthorized: func(c echo.Context) error {
			return auth.ErrUnauthorized
		},
	}
	if len(options) > 0 {
		option := options[0]
		cfg.KVStore = option.KVStore
		cfg.Optional = option.Optional
		if option.Unauthorized != nil {
			cfg.Unauthorized = option.Unauthorized
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reject := func() error {
				if cfg.Optional {
					return next(c)
				}
				return cfg.Unauthorized(c)
			}

			tokenStr, err := ju.ExtractToken(c)
			if err != nil {
				return reject()
			}
			claims, err := ju.Validate(tokenStr)
			if err != nil {
				return reject()
			}
			if cfg.KVStore != nil {
				revoked, err := cfg.KVStore.Exists(c.Request().Context(), auth.RevocationKey(claims))
				if err != nil {
					return err
				}
				if revoked {
					return reject()
				}
			}
			ju.SetContextToken(c, claims)
			return next(c)
		}
	}
}

// RefreshToken refresh jwt if necessary, must be chained after VerifyToken
func RefreshToken(ju *auth.JWTUtil, options ...*RefreshTokenOption) echo.MiddlewareFunc {
	threshold := 5 * time.Minute
	if len(options) > 0 {
		if option := options[0]; option.Threshold > 0 {
			threshold = option.Threshold
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ju.GetContextToken(c)
			if claims == nil {
				return next(c)
			}
			if claims.TimeRemaining() < threshold {
				ju.RefreshToken(claims)
				tokenStr, err := ju.Sign(claims)
				if err != nil {
					return err
				}
				ju.SetClientToken(c, tokenStr)
			}
			return next(c)
		}
	}
}
