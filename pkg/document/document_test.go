package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aboutWithHero = `---
layout: splash
title: ""
date: 2023-01-05
header:
  overlay_image: /assets/images/anne-header.jpg
  title: "About"
  overlay_filter: 0.5
---
Hello, it's me -- Anne!
`

const aboutPlain = `---
layout: splash
title: "About"
---

Hi it's me, Anne!!!
`

func TestParseHeroHeader(t *testing.T) {
	parsed, err := Parse(strings.NewReader(aboutWithHero), "site/docs/about.md")
	require.NoError(t, err)

	assert.True(t, parsed.HasFrontMatter)
	assert.Equal(t, "splash", parsed.Header.Layout)
	assert.Equal(t, "", parsed.Header.Title)
	require.NotNil(t, parsed.Header.Date)
	assert.Equal(t, "2023-01-05", parsed.Header.Date.String())
	require.NotNil(t, parsed.Header.Hero)
	assert.Equal(t, "/assets/images/anne-header.jpg", parsed.Header.Hero.OverlayImage)
	assert.Equal(t, "About", parsed.Header.Hero.Title)
	require.NotNil(t, parsed.Header.Hero.OverlayFilter)
	assert.Equal(t, 0.5, *parsed.Header.Hero.OverlayFilter)
	assert.Equal(t, "Hello, it's me -- Anne!", strings.TrimSpace(parsed.Body))
	assert.Contains(t, parsed.Meta, "layout")
	assert.Empty(t, ValidateHeader("docs/about.md", parsed.Header))
}

func TestParseWithoutHero(t *testing.T) {
	parsed, err := Parse(strings.NewReader(aboutPlain), "drafts/docs/about.md")
	require.NoError(t, err)

	assert.Equal(t, "splash", parsed.Header.Layout)
	assert.Nil(t, parsed.Header.Hero)
	assert.Nil(t, parsed.Header.Date)
	assert.Contains(t, parsed.Body, "Hi it's me, Anne!!!")
}

func TestParseWithoutFrontMatter(t *testing.T) {
	parsed, err := Parse(strings.NewReader("# Notes\n\nplain body\n"), "notes.md")
	require.NoError(t, err)

	assert.False(t, parsed.HasFrontMatter)
	assert.Equal(t, "# Notes\n\nplain body\n", parsed.Body)
}

func TestParseBodyLine(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{name: "body right after front matter", content: aboutWithHero, line: 10},
		{name: "blank line after front matter", content: aboutPlain, line: 6},
		{name: "no front matter", content: "plain body\n", line: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(strings.NewReader(tt.content), "p.md")
			require.NoError(t, err)
			assert.Equal(t, tt.line, parsed.BodyLine)
			lines := strings.Split(tt.content, "\n")
			assert.Equal(t, strings.SplitN(parsed.Body, "\n", 2)[0], lines[tt.line-1])
		})
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse(strings.NewReader("---\nlayout: [single\n---\nbody\n"), "broken.md")
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "broken.md", parseErr.File)
}

func TestParseDateFormats(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
	}{
		{"2023-01-05", true},
		{"2023-01-05 10:30:00 -0500", true},
		{"2023-01-05T10:30:00Z", true},
		{"January fifth", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			input := "---\ndate: " + tt.raw + "\n---\nbody\n"
			parsed, err := Parse(strings.NewReader(input), "post.md")
			require.NoError(t, err)
			require.NotNil(t, parsed.Header.Date)
			assert.Equal(t, tt.valid, parsed.Header.Date.Valid())

			errs := ValidateHeader("post.md", parsed.Header)
			if tt.valid {
				assert.Empty(t, errs)
			} else {
				require.Len(t, errs, 1)
				assert.Contains(t, errs[0].Error(), "header date")
			}
		})
	}
}

func TestValidateHeaderOverlayFilter(t *testing.T) {
	input := "---\nheader:\n  overlay_image: /a.jpg\n  overlay_filter: 1.5\n---\nbody\n"
	parsed, err := Parse(strings.NewReader(input), "post.md")
	require.NoError(t, err)

	errs := ValidateHeader("posts/post.md", parsed.Header)
	require.Len(t, errs, 1)

	var headerErr *HeaderError
	require.True(t, errors.As(errs[0], &headerErr))
	assert.Equal(t, "posts/post.md", headerErr.Path)
	assert.Equal(t, "header.overlay_filter", headerErr.Field)
	assert.Contains(t, headerErr.Message, "must be <= 1")
}
