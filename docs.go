package opal

import (
	"html/template"
	"net/http"
)

// DocsOption configures the documentation page.
type DocsOption func(*docsConfig)

type docsConfig struct {
	Path    string
	Title   string
	SpecURL string
}

// WithDocsTitle overrides the page title, which defaults to the router name.
func WithDocsTitle(title string) DocsOption {
	return func(c *docsConfig) { c.Title = title }
}

// ServeDocs registers an HTML documentation page at path. The page renders
// Stoplight Elements against the router's openapi.json endpoint. Like the
// other fixed endpoints it is installed ahead of the routes, so Validate
// flags any route that would shadow it.
func (r *Router) ServeDocs(path string, opts ...DocsOption) {
	cfg := &docsConfig{
		Path:    path,
		Title:   r.cfg.Name,
		SpecURL: r.cfg.BaseURL + "/openapi.json",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	r.docs = cfg
}

var docsTemplate = template.Must(template.New("docs").Parse(docsHTML))

func (r *Router) serveDocsPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = docsTemplate.Execute(w, r.docs)
}

const docsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements/styles.min.css">
  <script src="https://unpkg.com/@stoplight/elements/web-components.min.js"></script>
</head>
<body>
  <elements-api
    apiDescriptionUrl="{{.SpecURL}}"
    router="hash"
    layout="sidebar"
  />
</body>
</html>`
