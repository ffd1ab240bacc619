// Package embed finds the chart directives in a document body and checks
// them against the shape the renderer expects.
package embed

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/xhad/sitecheck/internal/models"
	"github.com/xhad/sitecheck/pkg/logging"
)

var (
	reScript    = regexp.MustCompile(`(?is)<script\b((?:[^>"']|"[^"]*"|'[^']*')*)>(.*?)</script\s*>`)
	reIframe    = regexp.MustCompile(`(?is)<iframe\b(?:[^>"']|"[^"]*"|'[^']*')*>(?:[^<]*</iframe\s*>)?`)
	reOpenTag   = regexp.MustCompile(`(?is)^<[a-z][a-z0-9]*\b(?:[^>"']|"[^"]*"|'[^']*')*>`)
	reAttr      = regexp.MustCompile(`\s([^\s"'>/=]+)(?:\s*=\s*("[^"]*"|'[^']*'|[^\s"'>]+))?`)
	reComment   = regexp.MustCompile(`(?s)<!--.*?-->`)
	reHighlight = regexp.MustCompile(`(?s)\{%-?\s*(?:highlight\b|(?:raw|comment)\s*-?%\}).*?\{%-?\s*end(?:highlight|raw|comment)\s*-?%\}`)
)

type ClassifierConfig struct {
	// LibraryPatterns are substrings identifying the charting library's
	// script URL.
	LibraryPatterns []string
	// RequireLibrary flags scripted charts in documents that never load the
	// library.
	RequireLibrary bool
	Logger         logrus.FieldLogger
}

type Classifier struct {
	config ClassifierConfig
	md     goldmark.Markdown
	log    logrus.FieldLogger
}

// Result is the classification of one document body.
type Result struct {
	Embeds []models.Embed
	Errors []*MalformedEmbedError
}

// Malformed reports whether any directive failed validation.
func (r Result) Malformed() bool { return len(r.Errors) > 0 }

func NewWithConfig(config ClassifierConfig) *Classifier {
	return &Classifier{
		config: config,
		md:     goldmark.New(),
		log:    logging.OrDiscard(config.Logger),
	}
}

func New() *Classifier {
	return NewWithConfig(ClassifierConfig{
		LibraryPatterns: []string{"cdn.plot.ly"},
		RequireLibrary:  true,
	})
}

// directive is a located chart before validation.
type directive struct {
	kind   models.EmbedKind
	offset int
	length int
	line   int
	build  func(pos models.Position) (models.Embed, string)
}

// Classify locates every chart directive in doc's body and validates each
// one. Well-formed directives are returned as embeds in body order; the
// rest are reported as errors carrying their position.
func (c *Classifier) Classify(doc models.Document) Result {
	body := doc.Body
	masked := c.maskCode(body)

	ids := elementIDs(masked)
	scripts := reScript.FindAllStringSubmatchIndex(masked, -1)

	var library string
	for _, m := range scripts {
		if src := attrOf(masked[m[0]:m[3]+1], "script", "src"); src != "" && c.isLibrary(src) {
			library = src
			break
		}
	}

	var found []directive
	for _, m := range scripts {
		content := body[m[4]:m[5]]
		for _, call := range findPlotCalls(content) {
			found = append(found, c.scripted(body, m[0], m[1]-m[0], m[4]+call, content, call, library, ids))
		}
	}
	for _, m := range reIframe.FindAllStringIndex(masked, -1) {
		if insideAny(m[0], scripts) {
			continue
		}
		found = append(found, framed(body, m[0], m[1]-m[0]))
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].offset < found[j].offset })

	var res Result
	for i, d := range found {
		pos := models.Position{
			Index:    i,
			Line:     d.line,
			Offset:   d.offset,
			Length:   d.length,
			FileLine: doc.FileLine(d.line),
		}
		embed, reason := d.build(pos)
		if reason != "" {
			err := &MalformedEmbedError{Path: doc.Path, Kind: d.kind, Position: pos, Reason: reason}
			c.log.WithFields(logrus.Fields{
				"path": doc.Path,
				"line": pos.SourceLine(),
				"kind": d.kind,
			}).Debug(reason)
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Embeds = append(res.Embeds, embed)
	}
	return res
}

func (c *Classifier) isLibrary(src string) bool {
	for _, p := range c.config.LibraryPatterns {
		if p != "" && strings.Contains(src, p) {
			return true
		}
	}
	return false
}

func (c *Classifier) scripted(body string, start, length, callAt int, content string, call int, library string, ids map[string]bool) directive {
	return directive{
		kind:   models.KindScripted,
		offset: start,
		length: length,
		line:   lineAt(body, callAt),
		build: func(pos models.Position) (models.Embed, string) {
			chart, reason := parsePlotCall(content, call)
			if reason != "" {
				return nil, reason
			}
			if !ids[chart.TargetID] {
				return nil, "target element #" + chart.TargetID + " not found in document"
			}
			if library == "" && c.config.RequireLibrary {
				return nil, "charting library is never loaded"
			}
			chart.Position = pos
			chart.LibraryURL = library
			return chart, ""
		},
	}
}

func framed(body string, start, length int) directive {
	tag := body[start : start+length]
	return directive{
		kind:   models.KindFramed,
		offset: start,
		length: length,
		line:   lineAt(body, start),
		build: func(pos models.Position) (models.Embed, string) {
			chart := models.FramedChart{Position: pos}
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tag))
			if err != nil || doc.Find("iframe").Length() == 0 {
				return nil, "unreadable iframe markup"
			}
			chart.Attrs = rawAttrs(tag)
			seen := make(map[string]bool)
			for _, a := range chart.Attrs {
				key := strings.ToLower(a.Key)
				var field *string
				switch key {
				case "src":
					field = &chart.Src
				case "width":
					field = &chart.Width
				case "height":
					field = &chart.Height
				case "frameborder":
					field = &chart.FrameBorder
				default:
					continue
				}
				// the first occurrence wins, as in a browser
				if !seen[key] {
					seen[key] = true
					*field = a.Val
				}
			}
			if strings.TrimSpace(chart.Src) == "" {
				return nil, "iframe has no src"
			}
			return chart, ""
		},
	}
}

// rawAttrs returns the attributes of the opening tag in tag exactly as
// written: names keep their case and values are not entity-decoded.
func rawAttrs(tag string) []models.Attr {
	open := reOpenTag.FindString(tag)
	if open == "" {
		return nil
	}
	open = strings.TrimSuffix(open, ">")
	var attrs []models.Attr
	for _, m := range reAttr.FindAllStringSubmatch(open, -1) {
		val := m[2]
		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') {
			val = val[1 : len(val)-1]
		}
		attrs = append(attrs, models.Attr{Key: m[1], Val: val})
	}
	return attrs
}

// maskCode blanks out code blocks, code spans, Liquid highlight, raw and
// comment blocks and HTML comments, so markup shown as an example or
// commented out is never mistaken for a live directive. Byte
// offsets and line breaks are preserved.
func (c *Classifier) maskCode(body string) string {
	src := []byte(body)
	out := []byte(body)
	blank := func(start, stop int) {
		for i := start; i < stop && i < len(out); i++ {
			if out[i] != '\n' {
				out[i] = ' '
			}
		}
	}

	root := c.md.Parser().Parse(text.NewReader(src))
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				blank(seg.Start, seg.Stop)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if t, ok := child.(*ast.Text); ok {
					blank(t.Segment.Start, t.Segment.Stop)
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, m := range reHighlight.FindAllIndex(src, -1) {
		blank(m[0], m[1])
	}
	// comments are matched after code is blanked so a `<!--` shown in code
	// does not swallow the rest of the body
	for _, m := range reComment.FindAllIndex(out, -1) {
		blank(m[0], m[1])
	}
	return string(out)
}

func elementIDs(masked string) map[string]bool {
	ids := make(map[string]bool)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(masked))
	if err != nil {
		return ids
	}
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok {
			ids[id] = true
		}
	})
	return ids
}

func attrOf(markup, tag, name string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	val, _ := doc.Find(tag).First().Attr(name)
	return val
}

func insideAny(offset int, spans [][]int) bool {
	for _, s := range spans {
		if offset > s[0] && offset < s[1] {
			return true
		}
	}
	return false
}

func lineAt(body string, offset int) int {
	return 1 + strings.Count(body[:offset], "\n")
}
