package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed web/templates/*.html
var templateFS embed.FS

//go:embed web/static
var staticFS embed.FS

// pageData is what every template receives.
type pageData struct {
	Title   string
	Message string
}

type errorPage struct {
	title   string
	message string
}

// errorPages maps the ?reason= value of /error to its text. The empty reason
// is the rejected-extension page.
var errorPages = map[string]errorPage{
	"": {
		title:   "Error 415: Unacceptable content type",
		message: "ERROR 415: Please upload a .wacc file!",
	},
	reasonUpload: {
		title:   "Error 500: Upload failed",
		message: "ERROR 500: The package could not be stored, please try again.",
	},
	reasonTooLarge: {
		title:   "Error 413: Package too large",
		message: "ERROR 413: The package exceeds the upload size limit.",
	},
}

// pages renders the HTML views. Each view is parsed together with the
// shared layout.
type pages struct {
	views map[string]*template.Template
}

func loadPages() (*pages, error) {
	p := &pages{views: make(map[string]*template.Template)}
	for _, name := range []string{"index", "upload", "error", "download"} {
		t, err := template.ParseFS(templateFS, "web/templates/layout.html", "web/templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p.views[name] = t
	}
	return p, nil
}

// render executes into a buffer first so a template error never leaves a
// half-written page.
func (p *pages) render(w http.ResponseWriter, name string, data pageData) {
	t, ok := p.views[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (p *pages) page(name, title string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.render(w, name, pageData{Title: title})
	})
}

func (p *pages) errorHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ep, ok := errorPages[r.URL.Query().Get("reason")]
		if !ok {
			ep = errorPages[""]
		}
		p.render(w, "error", pageData{Title: ep.title, Message: ep.message})
	})
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}
