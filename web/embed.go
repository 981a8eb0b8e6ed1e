// Package web embeds the HTML templates served by the API server.
//
// Usage in the API server:
//
//	import "github.com/seenimoa/edgarkpi/web"
//	tmpl := web.Dashboard() // parsed once, safe for concurrent use
package web

import (
	"embed"
	"html/template"
	"sync"
)

//go:embed templates/*.html
var templates embed.FS

var (
	dashboardOnce sync.Once
	dashboard     *template.Template
)

// Dashboard returns the parsed company dashboard template.
func Dashboard() *template.Template {
	dashboardOnce.Do(func() {
		dashboard = template.Must(template.ParseFS(templates, "templates/dashboard.html"))
	})
	return dashboard
}
