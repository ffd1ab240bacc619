// Package render produces preview pages from processed documents. The site
// configuration is passed in explicitly; nothing is read from global state.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"html/template"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xhad/sitecheck/internal/models"
	"github.com/xhad/sitecheck/pkg/config"
	"github.com/xhad/sitecheck/pkg/embed"
	"github.com/xhad/sitecheck/pkg/logging"
)

const (
	MarkMalformed = "mark"
	OmitMalformed = "omit"
)

var rePostName = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})-(.+)$`)

type Options struct {
	// Malformed selects what replaces a malformed embed: MarkMalformed or
	// OmitMalformed.
	Malformed string
	Logger    logrus.FieldLogger
}

type Renderer struct {
	site   config.SiteConfig
	opts   Options
	md     goldmark.Markdown
	titler cases.Caser
	log    logrus.FieldLogger
}

func New(site config.SiteConfig, opts Options) *Renderer {
	if opts.Malformed == "" {
		opts.Malformed = MarkMalformed
	}
	return &Renderer{
		site: site,
		opts: opts,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				gmhtml.WithUnsafe(),
			),
		),
		titler: cases.Title(language.English),
		log:    logging.OrDiscard(opts.Logger),
	}
}

// Site returns the configuration the renderer was built with.
func (r *Renderer) Site() config.SiteConfig { return r.site }

// Render turns doc into a preview page. Malformed embeds recorded in
// doc.Problems are marked or dropped; the rest of the body renders normally.
func (r *Renderer) Render(doc models.ProcessedDocument) (*models.Page, error) {
	body, flagged := r.replaceMalformed(doc.Body, doc.Problems)
	body = ExpandLiquid(r.site, body)

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", doc.Path, err)
	}

	page := &models.Page{
		Path:      doc.Path,
		Permalink: r.Permalink(doc.Document),
		Layout:    doc.Header.Layout,
		Title:     r.Title(doc.Document),
		Date:      documentDate(doc.Document),
		HTML:      template.HTML(buf.String()),
		Embeds:    doc.Embeds,
		Flagged:   flagged,
	}
	if page.Layout == "" {
		page.Layout = "default"
	}
	if h := doc.Header.Hero; h != nil {
		hero := *h
		hero.OverlayImage = ExpandLiquid(r.site, hero.OverlayImage)
		if strings.HasPrefix(hero.OverlayImage, "/") {
			hero.OverlayImage = RelativeURL(r.site, hero.OverlayImage)
		}
		page.Hero = &hero
	}

	r.log.WithFields(logrus.Fields{
		"path":    doc.Path,
		"flagged": flagged,
	}).Debug("rendered page")
	return page, nil
}

// replaceMalformed swaps each malformed embed span for a marker, or removes
// it, working from the end of the body so earlier offsets stay valid.
func (r *Renderer) replaceMalformed(body string, problems []error) (string, int) {
	var bad []*embed.MalformedEmbedError
	for _, p := range problems {
		var m *embed.MalformedEmbedError
		if errors.As(p, &m) && m.Position.Length > 0 {
			bad = append(bad, m)
		}
	}
	sort.Slice(bad, func(i, j int) bool { return bad[i].Position.Offset > bad[j].Position.Offset })

	end := len(body) + 1
	flagged := 0
	for _, m := range bad {
		start, stop := m.Position.Offset, m.Position.Offset+m.Position.Length
		if start < 0 || stop > len(body) || stop > end {
			continue
		}
		replacement := ""
		if r.opts.Malformed == MarkMalformed {
			replacement = fmt.Sprintf("\n\n<div class=\"embed-error\" data-embed=\"%d\">Chart unavailable: %s</div>\n\n",
				m.Position.Index+1, html.EscapeString(m.Reason))
		}
		body = body[:start] + replacement + body[stop:]
		end = start
		flagged++
	}
	return body, flagged
}

// Title picks the header title, then the hero title, then a title made from
// the file name.
func (r *Renderer) Title(doc models.Document) string {
	if t := strings.TrimSpace(doc.Header.Title); t != "" {
		return t
	}
	if h := doc.Header.Hero; h != nil && strings.TrimSpace(h.Title) != "" {
		return strings.TrimSpace(h.Title)
	}
	name := doc.Name()
	if m := rePostName.FindStringSubmatch(name); m != nil {
		name = m[4]
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return r.titler.String(name)
}

// Permalink returns the URL of the rendered page under the site's base path.
func (r *Renderer) Permalink(doc models.Document) string {
	if p := strings.TrimSpace(doc.Header.Permalink); p != "" {
		return RelativeURL(r.site, ExpandLiquid(r.site, p))
	}

	dir, base := path.Split(doc.Path)
	name := strings.TrimSuffix(base, path.Ext(base))
	if m := rePostName.FindStringSubmatch(name); m != nil && path.Base(path.Clean(dir)) == "_posts" {
		return RelativeURL(r.site, fmt.Sprintf("/%s/%s/%s/%s.html", m[1], m[2], m[3], m[4]))
	}
	if strings.EqualFold(name, "index") {
		return RelativeURL(r.site, "/"+dir)
	}
	return RelativeURL(r.site, "/"+dir+name+".html")
}

func documentDate(doc models.Document) string {
	if d := doc.Header.Date; d != nil && d.Valid() {
		return d.Format("2006-01-02")
	}
	if m := rePostName.FindStringSubmatch(doc.Name()); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	return ""
}
