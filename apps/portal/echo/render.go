package echoportal

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/perception/core/user"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

const baseTemplate = "_base.gohtml"

// renderer renders the pages under templates/, each within the base layout.
type renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*renderer)(nil)

var funcs = template.FuncMap{
	"deref": func(i *int) int {
		if i == nil {
			return 0
		}
		return *i
	},
}

func newRenderer() (*renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, errors.Wrap(err, "listing templates")
	}

	r := &renderer{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		base := path.Base(name)
		if base == baseTemplate {
			continue
		}
		tmpl, err := template.New(base).Funcs(funcs).ParseFS(templateFS, "templates/"+baseTemplate, name)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", base)
		}
		r.pages[strings.TrimSuffix(base, path.Ext(base))] = tmpl
	}
	return r, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("no page %q", name)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// page is the data every template gets.
type page struct {
	AppName        string
	Title          string
	User           *user.User
	Flash          *flash
	Errors         map[string]string
	Form           interface{}
	CSRF           string
	GoogleClientID string
	Roles          []user.Role
	Data           interface{}
}

func (p *page) notice(level, msg string) {
	if msg != "" {
		p.Flash = &flash{Level: level, Message: msg}
	}
}
