package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/sitecheck/internal/models"
	"github.com/xhad/sitecheck/pkg/config"
)

func framedDoc(path string, srcs ...string) models.ProcessedDocument {
	doc := models.ProcessedDocument{Document: models.Document{Path: path}}
	for i, src := range srcs {
		doc.Embeds = append(doc.Embeds, models.FramedChart{
			Position: models.Position{Index: i, Line: i + 1},
			Src:      src,
		})
	}
	return doc
}

func TestCheckLocal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets", "charts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "charts", "01_cpi_chart_1984.html"), []byte("<html></html>"), 0o644))

	c, err := NewWithConfig(CheckerConfig{
		Site: config.SiteConfig{BaseURL: "/yes"},
		Root: root,
	})
	require.NoError(t, err)

	docs := []models.ProcessedDocument{
		framedDoc("_posts/2023-01-05-cpi.md",
			"/assets/charts/01_cpi_chart_1984.html",
			"{{ site.baseurl }}/assets/charts/01_cpi_chart_1984.html",
			"/yes/assets/charts/01_cpi_chart_1984.html",
			"https://example.org/elsewhere.html",
			"/assets/charts/02_missing.html",
		),
	}

	missing, err := c.Check(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	var assetErr *MissingAssetError
	require.True(t, errors.As(missing[0], &assetErr))
	assert.Equal(t, "_posts/2023-01-05-cpi.md", assetErr.Path)
	assert.Equal(t, "/assets/charts/02_missing.html", assetErr.Src)
	assert.Equal(t, 5, assetErr.Position.Line)
	assert.Contains(t, assetErr.Error(), "missing asset")
}

func TestCheckLocalRelativeSrc(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs", "charts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "charts", "a.html"), nil, 0o644))

	c := New(root)
	assert.NoError(t, c.CheckChart(context.Background(), "docs/about.md", models.FramedChart{Src: "charts/a.html"}))
	assert.Error(t, c.CheckChart(context.Background(), "docs/about.md", models.FramedChart{Src: "charts/b.html"}))
	assert.NoError(t, c.CheckChart(context.Background(), "docs/about.md", models.FramedChart{Src: "charts/a&#46;html?v=1&amp;w=2"}))
}

func TestCheckRemote(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/yes/assets/charts/01_cpi_chart_1984.html" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, err := NewWithConfig(CheckerConfig{
		Site:      config.SiteConfig{URL: server.URL, BaseURL: "/yes"},
		Remote:    true,
		RateLimit: 100,
	})
	require.NoError(t, err)

	docs := []models.ProcessedDocument{
		framedDoc("a.md", "/assets/charts/01_cpi_chart_1984.html", "/assets/charts/gone.html"),
		framedDoc("b.md", "/assets/charts/01_cpi_chart_1984.html"),
	}

	missing, err := c.Check(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, missing, 1)

	var assetErr *MissingAssetError
	require.True(t, errors.As(missing[0], &assetErr))
	assert.Equal(t, server.URL+"/yes/assets/charts/gone.html", assetErr.Target)
	assert.Equal(t, "status 404", assetErr.Reason)

	// repeated sources are answered from the cache
	_, err = c.Check(context.Background(), docs)
	require.NoError(t, err)
	assert.LessOrEqual(t, requests.Load(), int32(3))
}

func TestCheckerConfig(t *testing.T) {
	_, err := NewWithConfig(CheckerConfig{Remote: true})
	assert.Error(t, err)

	_, err = NewWithConfig(CheckerConfig{})
	assert.Error(t, err)

	c, err := NewWithConfig(CheckerConfig{Root: "."})
	require.NoError(t, err)
	assert.Equal(t, float64(5), c.config.RateLimit)
}

func TestSitePath(t *testing.T) {
	c, err := NewWithConfig(CheckerConfig{
		Site: config.SiteConfig{URL: "https://xhad.github.io", BaseURL: "/yes"},
		Root: ".",
	})
	require.NoError(t, err)

	tests := []struct {
		doc   string
		src   string
		want  string
		local bool
	}{
		{"a.md", "/assets/x.html", "assets/x.html", true},
		{"a.md", "/yes/assets/x.html", "assets/x.html", true},
		{"a.md", "/yesterday/x.html", "yesterday/x.html", true},
		{"docs/about.md", "charts/x.html", "docs/charts/x.html", true},
		{"a.md", "https://xhad.github.io/yes/assets/x.html?v=2", "assets/x.html", true},
		{"a.md", "https://cdn.example.com/x.html", "", false},
		{"a.md", "//cdn.example.com/x.html", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, local := c.sitePath(tt.doc, tt.src)
			assert.Equal(t, tt.local, local)
			assert.Equal(t, tt.want, got)
		})
	}
}
