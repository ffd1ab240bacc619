package models

import "html/template"

// Page is a rendered preview of a document.
type Page struct {
	Path      string
	Permalink string
	Layout    string
	Title     string
	Date      string
	Hero      *Hero
	HTML      template.HTML
	Embeds    []Embed
	Flagged   int
}
