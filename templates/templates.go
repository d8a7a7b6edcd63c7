// Package templates embeds the HTML pages served by the form handlers.
package templates

import (
	"embed"
	"html/template"

	"github.com/gin-contrib/multitemplate"
)

//go:embed *.html
var files embed.FS

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// Renderer returns the gin HTML renderer with every page registered.
func Renderer() multitemplate.Renderer {
	r := multitemplate.NewRenderer()
	r.Add("form", template.Must(template.New("layout.html").Funcs(funcs).ParseFS(files, "layout.html", "form.html")))
	return r
}
