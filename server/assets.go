package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/go-auth-client/permissions"
)

const (
	pageLogin     = "login.html"
	pageDashboard = "dashboard.html"
	pageMetrics   = "metrics.html"

	layoutTemplate = "layout.html"
)

//go:embed templates static
var assets embed.FS

func assetsDir(dir string) fs.FS {
	sub, err := fs.Sub(assets, dir)
	if err != nil {
		panic("embedded " + dir + " directory missing: " + err.Error())
	}
	return sub
}

// ParseTemplate parses a page together with the shared layout. The permission functions are
// bound to a signed-out user here and rebound to the viewer on every render.
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).
		Funcs(permissions.TemplateFuncs(nil)).
		ParseFS(assetsDir("templates"), name, layoutTemplate)
}

// StaticHandler serves the embedded stylesheets under prefix.
func StaticHandler(prefix string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.FS(assetsDir("static"))))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}
