package checker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/sitecheck/pkg/assets"
	"github.com/xhad/sitecheck/pkg/config"
	"github.com/xhad/sitecheck/pkg/embed"
	"github.com/xhad/sitecheck/pkg/resolver"
)

const aboutWithHero = `---
layout: splash
header:
  overlay_image: /assets/images/anne-header.jpg
  overlay_filter: 0.5
---

Hello, it's me -- Anne!
`

const aboutPlain = `---
layout: splash
---

Hi it's me, Anne!!!
`

const cpiPost = `---
layout: single
title: CPI since 1984
date: 2023-01-05
---

<script src="https://cdn.plot.ly/plotly-latest.min.js"></script>
<div id="tester"></div>
<script>
  Plotly.newPlot('tester', [{x: [1, 2, 3, 4], y: [10, 15, 13, 17], type: 'scatter'}]);
</script>

<iframe src="{{ site.baseurl }}/assets/charts/01_cpi_chart_1984.html" width="100%" height="700" frameborder="0"></iframe>
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(dirs ...string) *config.Config {
	cfg := &config.Config{
		Site:   config.SiteConfig{Title: "yes", URL: "https://xhad.github.io", BaseURL: "/yes"},
		Embeds: config.EmbedConfig{LibraryPatterns: []string{"cdn.plot.ly"}, RequireLibrary: true},
		Content: config.ContentConfig{
			Extensions:  []string{".md"},
			Ignore:      []string{"_site"},
			Concurrency: 2,
		},
	}
	for _, d := range dirs {
		cfg.Content.Sources = append(cfg.Content.Sources, config.SourceConfig{Dir: d})
	}
	return cfg
}

func TestRunRejectsDuplicateAbout(t *testing.T) {
	root := t.TempDir()
	site := filepath.Join(root, "site")
	drafts := filepath.Join(root, "drafts")
	writeFile(t, filepath.Join(site, "docs", "about.md"), aboutWithHero)
	writeFile(t, filepath.Join(site, "_posts", "2023-01-05-cpi.md"), cpiPost)
	writeFile(t, filepath.Join(drafts, "docs", "about.md"), aboutPlain)

	var stages []string
	c, err := NewWithConfig(CheckerConfig{
		Config:  testConfig(site, drafts),
		OnStage: func(s string) { stages = append(stages, s) },
	})
	require.NoError(t, err)

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.False(t, report.Publishable)
	assert.Nil(t, report.Site)
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, []string{StageLoad, StageResolve, StageProcess}, stages)

	var dup *resolver.DuplicateContentError
	require.True(t, errors.As(report.Err(), &dup))
	assert.Equal(t, "docs/about.md", dup.Path)
	assert.Equal(t, []string{
		filepath.Join(site, "docs", "about.md"),
		filepath.Join(drafts, "docs", "about.md"),
	}, dup.Sources())
	assert.Contains(t, report.Err().Error(), "Hello, it's me -- Anne!")
	assert.Contains(t, report.Err().Error(), "Hi it's me, Anne!!!")

	summary := report.Summary()
	require.Len(t, summary.Problems, 1)
	assert.Equal(t, KindDuplicateContent, summary.Problems[0].Kind)
	assert.Equal(t, "docs/about.md", summary.Problems[0].Path)

	_, err = report.ProcessedFor()
	assert.Error(t, err)
}

func TestRunCleanSite(t *testing.T) {
	site := t.TempDir()
	writeFile(t, filepath.Join(site, "docs", "about.md"), aboutWithHero)
	writeFile(t, filepath.Join(site, "_posts", "2023-01-05-cpi.md"), cpiPost)
	writeFile(t, filepath.Join(site, "assets", "charts", "01_cpi_chart_1984.html"), "<html></html>")
	writeFile(t, filepath.Join(site, "_site", "docs", "about.md"), aboutPlain)

	cfg := testConfig(site)
	cfg.Assets = config.AssetConfig{Check: true, Root: site}

	c, err := New(cfg)
	require.NoError(t, err)

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	require.True(t, report.OK(), "%v", report.Err())
	assert.True(t, report.Publishable)
	assert.NotEqual(t, "", report.RunID.String())
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 2, report.Resolved)
	assert.Equal(t, 2, report.Embeds)
	assert.Equal(t, []string{"_posts/2023-01-05-cpi.md", "docs/about.md"}, report.Site.Paths())

	docs, err := report.ProcessedFor("docs/about.md")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Hello, it's me -- Anne!\n", docs[0].Body)

	_, err = report.ProcessedFor("missing.md")
	assert.Error(t, err)
}

func TestRunCollectsEveryProblem(t *testing.T) {
	site := t.TempDir()
	writeFile(t, filepath.Join(site, "_posts", "2023-01-05-cpi.md"), `---
title: CPI
---

<script src="https://cdn.plot.ly/plotly-latest.min.js"></script>
<div id="tester"></div>
<script>
  Plotly.newPlot('tester', [{x: [1, 2, 3, 4], y: [10, 15, 13], type: 'scatter'}]);
</script>

<iframe src="/assets/charts/missing.html" width="100%" height="700"></iframe>
`)
	writeFile(t, filepath.Join(site, "docs", "about.md"), `---
header:
  overlay_filter: 3
---
About.
`)
	writeFile(t, filepath.Join(site, "broken.md"), "---\ntitle: [unclosed\n---\nbody\n")

	cfg := testConfig(site)
	cfg.Assets = config.AssetConfig{Check: true, Root: site}
	c, err := New(cfg)
	require.NoError(t, err)

	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.True(t, report.Publishable)
	require.NotNil(t, report.Site)

	doc, ok := report.Site.Get("_posts/2023-01-05-cpi.md")
	require.True(t, ok)
	assert.Equal(t, "CPI", doc.Header.Title)

	kinds := map[string]int{}
	lines := map[string]int{}
	for _, p := range report.Summary().Problems {
		kinds[p.Kind]++
		lines[p.Kind] = p.Line
	}
	// lines in the source file, counting the front matter
	assert.Equal(t, 8, lines[KindMalformedEmbed])
	assert.Equal(t, 11, lines[KindMissingAsset])
	assert.Equal(t, map[string]int{
		KindParse:          1,
		KindMalformedEmbed: 1,
		KindHeader:         1,
		KindMissingAsset:   1,
	}, kinds)

	var malformed *embed.MalformedEmbedError
	require.True(t, errors.As(report.Err(), &malformed))
	assert.Equal(t, "_posts/2023-01-05-cpi.md", malformed.Path)
	assert.Equal(t, 4, malformed.Position.Line)

	var missing *assets.MissingAssetError
	require.True(t, errors.As(report.Err(), &missing))
	assert.Equal(t, "/assets/charts/missing.html", missing.Src)

	docs, err := report.ProcessedFor("_posts/2023-01-05-cpi.md")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEmpty(t, docs[0].Problems)

	_, err = report.ProcessedFor("broken.md")
	assert.Error(t, err)
}

func TestRunLastWins(t *testing.T) {
	root := t.TempDir()
	site := filepath.Join(root, "site")
	drafts := filepath.Join(root, "drafts")
	writeFile(t, filepath.Join(site, "docs", "about.md"), aboutWithHero)
	writeFile(t, filepath.Join(drafts, "docs", "about.md"), aboutPlain)

	cfg := testConfig(site, drafts)
	cfg.Resolution.Policy = string(resolver.LastWins)
	c, err := New(cfg)
	require.NoError(t, err)

	report, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	require.Len(t, report.Overwrites, 1)
	assert.Len(t, report.Summary().Overwrites, 1)

	doc, ok := report.Site.Get("docs/about.md")
	require.True(t, ok)
	assert.Equal(t, "Hi it's me, Anne!!!\n", doc.Body)
}

func TestRunMissingSource(t *testing.T) {
	c, err := New(testConfig(filepath.Join(t.TempDir(), "nope")))
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	assert.Error(t, err)
}

func TestNewWithConfigErrors(t *testing.T) {
	_, err := NewWithConfig(CheckerConfig{})
	assert.Error(t, err)

	cfg := testConfig(".")
	cfg.Resolution.Policy = "newest"
	_, err = New(cfg)
	assert.Error(t, err)
}
