// Package views renders the HTML pages of the vault from embedded templates.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

// MaskedPassword is shown in place of a hidden password.
const MaskedPassword = "••••••••"

// Page names accepted by Renderer.Render.
const (
	LoginPage     = "login.gohtml"
	RegisterPage  = "register.gohtml"
	DashboardPage = "dashboard.gohtml"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

// AuthForm is the data of the login and registration pages. The password
// is never echoed back.
type AuthForm struct {
	Email string
}

// EntryCard is one password entry as displayed on the dashboard.
type EntryCard struct {
	ID       string
	Website  string
	Username string
	Password string
	Revealed bool
}

// Dashboard is the data of the dashboard page.
type Dashboard struct {
	Email       string
	AddFormOpen bool
	Website     string
	Username    string
	Password    string
	Entries     []EntryCard
}

// Renderer holds one parsed template set per page, each made of the
// shared layout and the page body.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	pages := map[string]*template.Template{}
	for _, page := range []string{LoginPage, RegisterPage, DashboardPage} {
		tmpl, err := template.ParseFS(templatesFS, "templates/layout.gohtml", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", page, err)
		}
		pages[page] = tmpl
	}

	return &Renderer{pages: pages}, nil
}

// Render executes the page into a buffer first, so a template error never
// leaves a half-written response.
func (r *Renderer) Render(response http.ResponseWriter, status int, page string, data any) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}

	response.Header().Set("Content-Type", "text/html; charset=utf-8")
	response.WriteHeader(status)
	_, err := buf.WriteTo(response)

	return err
}
