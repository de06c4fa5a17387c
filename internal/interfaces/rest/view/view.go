package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/labstack/echo/v4"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// page names
const (
	PageIndex     = "index.html"
	PageLogin     = "login.html"
	PageRegister  = "register.html"
	PageDashboard = "dashboard.html"
)

// Renderer echo.Renderer over the embedded page templates
type Renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = &Renderer{}

// pageData is what every page template receives
type pageData struct {
	Flashes []Flash
	Data    interface{}
}

// NewRenderer parse every page together with the base layout
func NewRenderer() (*Renderer, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{PageIndex, PageLogin, PageRegister, PageDashboard} {
		t, err := template.New(name).ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages}, nil
}

// Render render page name, pending flash messages are consumed
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page: %s", name)
	}
	return t.ExecuteTemplate(w, "base", &pageData{
		Flashes: PopFlashes(c),
		Data:    data,
	})
}

// StaticFS page assets
func StaticFS() fs.FS {
	return echo.MustSubFS(staticFS, "static")
}
