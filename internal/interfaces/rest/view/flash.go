package view

import (
	"encoding/base64"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

const (
	flashCookie     = "flash"
	flashContextKey = "view.flashes"
)

// flash categories
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

// Flash one-shot message shown on the next rendered page
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// SetFlash queue a message for the next rendered page, which may be behind a redirect
func SetFlash(c echo.Context, category, message string) {
	flashes := append(pending(c), Flash{category, message})
	c.Set(flashContextKey, flashes)

	b, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(b),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlashes return and clear the queued messages
func PopFlashes(c echo.Context) []Flash {
	flashes := pending(c)
	if len(flashes) == 0 {
		return nil
	}
	c.Set(flashContextKey, []Flash(nil))
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return flashes
}

// pending messages carried by the request cookie plus the ones queued during this request
func pending(c echo.Context) []Flash {
	if v, ok := c.Get(flashContextKey).([]Flash); ok {
		return v
	}
	var flashes []Flash
	if cookie, err := c.Cookie(flashCookie); err == nil && cookie.Value != "" {
		if b, err := base64.RawURLEncoding.DecodeString(cookie.Value); err == nil {
			json.Unmarshal(b, &flashes)
		}
	}
	c.Set(flashContextKey, flashes)
	return flashes
}
