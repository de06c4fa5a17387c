package view

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRenderer_AllPages(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	e := echo.New()
	for _, page := range []string{PageIndex, PageLogin, PageRegister} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		var buf bytes.Buffer
		if err := r.Render(&buf, page, nil, c); err != nil {
			t.Errorf("Render(%s): %v", page, err)
		}
		if !strings.Contains(buf.String(), "<html") {
			t.Errorf("Render(%s) did not use the layout", page)
		}
	}

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := r.Render(new(bytes.Buffer), "missing.html", nil, c); err == nil {
		t.Error("expected an error for an unknown page")
	}
}

func TestFlash_SurvivesRedirectOnce(t *testing.T) {
	e := echo.New()

	// request that queues the message
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/register", nil), rec)
	SetFlash(c, FlashWarning, "User already exists!")
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}

	// next request renders it
	req := httptest.NewRequest(http.MethodGet, "/register", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	flashes := PopFlashes(c)
	if len(flashes) != 1 || flashes[0] != (Flash{FlashWarning, "User already exists!"}) {
		t.Fatalf("flashes = %+v", flashes)
	}
	if again := PopFlashes(c); again != nil {
		t.Fatalf("flashes popped twice: %+v", again)
	}
	cleared := rec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Fatalf("flash cookie not cleared: %+v", cleared)
	}
}

func TestFlash_RenderedInPage(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/login", nil), httptest.NewRecorder())
	SetFlash(c, FlashDanger, "Invalid username or password!")

	var buf bytes.Buffer
	if err := r.Render(&buf, PageLogin, nil, c); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), `flash-danger`) || !strings.Contains(buf.String(), "Invalid username or password!") {
		t.Fatalf("flash missing from page: %s", buf.String())
	}
}
