package render

import (
	"html/template"
	"io"

	"github.com/xhad/sitecheck/internal/models"
	"github.com/xhad/sitecheck/pkg/config"
)

var previewLayout = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Page.Title }}{{ with .Site.Title }} | {{ . }}{{ end }}</title>
<link rel="canonical" href="{{ .Page.Permalink }}">
</head>
<body class="layout--{{ .Page.Layout }}">
{{- with .Page.Hero }}
<header class="page__hero">
  {{- with .OverlayImage }}
  <img class="page__hero-image" src="{{ . }}" alt="">
  {{- end }}
  <h1>{{ if .Title }}{{ .Title }}{{ else }}{{ $.Page.Title }}{{ end }}</h1>
</header>
{{- else }}
<h1>{{ .Page.Title }}</h1>
{{- end }}
{{- with .Page.Date }}
<time datetime="{{ . }}">{{ . }}</time>
{{- end }}
<main>
{{ .Page.HTML }}
</main>
</body>
</html>
`))

// WritePage writes page wrapped in a minimal standalone layout.
func (r *Renderer) WritePage(w io.Writer, page *models.Page) error {
	return previewLayout.Execute(w, struct {
		Site config.SiteConfig
		Page *models.Page
	}{Site: r.site, Page: page})
}
