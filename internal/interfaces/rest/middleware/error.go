package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorHandlingOption options for error handling
type ErrorHandlingOption struct {
	// Handler respond to an unexpected error
	Handler func(c echo.Context, err error)
	// HTTPError respond to an *echo.HTTPError, eg. unknown routes
	HTTPError func(c echo.Context, he *echo.HTTPError)
}

// ErrorHandling handle errors and panics returned from handlers
// **DO NOT return error anymore**
func ErrorHandling(options ...*ErrorHandlingOption) echo.MiddlewareFunc {
	custom := &ErrorHandlingOption{
		Handler: func(c echo.Context, err error) {
			c.String(http.StatusInternalServerError, err.Error())
		},
		HTTPError: func(c echo.Context, he *echo.HTTPError) {
			c.String(he.Code, fmt.Sprint(he.Message))
		},
	}
	if len(options) > 0 {
		option := options[0]
		if option.Handler != nil {
			custom.Handler = option.Handler
		}
		if option.HTTPError != nil {
			custom.HTTPError = option.HTTPError
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if v := recover(); v != nil {
					err, ok := v.(error)
					if !ok {
						err = fmt.Errorf("panic: %v", v)
					}
					custom.Handler(c, err)
				}
			}()
			if err := next(c); err != nil {
				if c.Response().Committed {
					return nil
				}
				if he, ok := err.(*echo.HTTPError); ok {
					custom.HTTPError(c, he)
				} else {
					custom.Handler(c, err)
				}
			}
			return nil
		}
	}
}
