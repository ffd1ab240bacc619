package models

import (
	"path"
	"strings"
	"time"
)

// Source records where a candidate document was discovered.
type Source struct {
	Root    string // content root the file was found under
	File    string // path of the file on disk
	Order   int    // position in discovery order
	ModTime time.Time
}

// Hero is the overlay image block of a page header.
type Hero struct {
	OverlayImage  string   `yaml:"overlay_image"`
	Title         string   `yaml:"title"`
	OverlayFilter *float64 `yaml:"overlay_filter" validate:"omitempty,gte=0,lte=1"`
}

// Header is the typed view of a document's front matter.
type Header struct {
	Layout    string `yaml:"layout"`
	Title     string `yaml:"title"`
	Date      *Date  `yaml:"date"`
	Hero      *Hero  `yaml:"header"`
	Permalink string `yaml:"permalink"`
}

type Document struct {
	Path           string
	Source         Source
	Header         Header
	Meta           map[string]interface{}
	Body           string
	HasFrontMatter bool
	// BodyLine is the 1-based line of the source file the body starts on.
	BodyLine int
}

// FileLine maps a 1-based body line to its line in the source file.
func (d Document) FileLine(bodyLine int) int {
	if d.BodyLine <= 1 {
		return bodyLine
	}
	return d.BodyLine + bodyLine - 1
}

// Name returns the file name of the document without its extension.
func (d Document) Name() string {
	base := path.Base(d.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Excerpt returns the first non-blank line of the body, cut to n runes.
func (d Document) Excerpt(n int) string {
	for _, line := range strings.Split(d.Body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r := []rune(line)
		if len(r) > n {
			return string(r[:n]) + "..."
		}
		return line
	}
	return ""
}

type ProcessedDocument struct {
	Document
	Embeds   []Embed
	Problems []error
}
