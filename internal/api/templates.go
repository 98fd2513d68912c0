package api

import (
	"embed"
	"html/template"

	"statwizard/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoadTemplates parses the embedded page templates.
func LoadTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"markdown": render.Render,
	}).ParseFS(templateFS, "templates/*.html")
}
