package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "sitecheck.yaml")

	configData := `
site:
  title: "Numbers Desk"
  url: "https://numbers.example.com"
  baseurl: "/blog/"

content:
  sources:
    - dir: "site"
    - dir: "drafts"
      prefix: "docs"
  extensions: [".md"]
  concurrency: 2

resolution:
  policy: "last-wins"

assets:
  check: true
  root: "site"
  timeout: "3s"

log:
  level: "debug"
  format: "json"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "Numbers Desk", config.Site.Title)
	assert.Equal(t, "https://numbers.example.com", config.Site.URL)
	assert.Equal(t, "/blog", config.Site.BaseURL)
	require.Len(t, config.Content.Sources, 2)
	assert.Equal(t, "drafts", config.Content.Sources[1].Dir)
	assert.Equal(t, "docs", config.Content.Sources[1].Prefix)
	assert.Equal(t, []string{".md"}, config.Content.Extensions)
	assert.Equal(t, 2, config.Content.Concurrency)
	assert.Equal(t, "last-wins", config.Resolution.Policy)
	assert.True(t, config.Assets.Check)
	assert.Equal(t, 3*time.Second, config.Assets.Timeout)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, []SourceConfig{{Dir: "."}}, config.Content.Sources)
	assert.Equal(t, []string{".md", ".markdown"}, config.Content.Extensions)
	assert.Equal(t, "fail-fast", config.Resolution.Policy)
	assert.Equal(t, []string{"cdn.plot.ly"}, config.Embeds.LibraryPatterns)
	assert.True(t, config.Embeds.RequireLibrary)
	assert.Equal(t, "mark", config.Render.Malformed)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Empty(t, config.Validate())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SITECHECK_SITE_BASEURL", "/env-base")
	t.Setenv("SITECHECK_RESOLUTION_POLICY", "last-wins")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "/env-base", config.Site.BaseURL)
	assert.Equal(t, "last-wins", config.Resolution.Policy)
}

func TestJekyllConfigMerge(t *testing.T) {
	tmpDir := t.TempDir()
	jekyllPath := filepath.Join(tmpDir, "_config.yml")
	require.NoError(t, os.WriteFile(jekyllPath, []byte(`
title: "Anne's Data Notes"
url: "https://anne.example.org"
baseurl: "/notes"
theme: minimal-mistakes-jekyll
`), 0644))

	configPath := filepath.Join(tmpDir, "sitecheck.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
site:
  title: "Override"
  jekyll_config: "`+filepath.ToSlash(jekyllPath)+`"
`), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "Override", config.Site.Title)
	assert.Equal(t, "https://anne.example.org", config.Site.URL)
	assert.Equal(t, "/notes", config.Site.BaseURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		return Config{
			Site:       SiteConfig{URL: "https://example.com", BaseURL: "/blog"},
			Content:    ContentConfig{Sources: []SourceConfig{{Dir: "."}}, Extensions: []string{".md"}, Concurrency: 4},
			Resolution: ResolutionConfig{Policy: "fail-fast"},
			Assets:     AssetConfig{RateLimit: 1},
			Render:     RenderConfig{Malformed: "mark"},
			Log:        LogConfig{Level: "info", Format: "text"},
			Server:     ServerConfig{Port: 8080},
		}
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "bad site values",
			mutate: func(c *Config) {
				c.Site.URL = "example.com"
				c.Site.BaseURL = "blog"
			},
			errorMessages: []string{
				"site.url: url must be absolute",
				"site.baseurl: baseurl must start with /",
			},
		},
		{
			name: "bad content and policy",
			mutate: func(c *Config) {
				c.Content.Sources = []SourceConfig{{Dir: ""}}
				c.Content.Extensions = []string{"md"}
				c.Content.Concurrency = 0
				c.Resolution.Policy = "newest"
			},
			errorMessages: []string{
				"content.sources[0].dir: dir is required",
				"content.extensions: invalid extension format: md",
				"content.concurrency: concurrency must be positive",
				`resolution.policy: unknown policy "newest"`,
			},
		},
		{
			name: "asset check without a target",
			mutate: func(c *Config) {
				c.Assets.Check = true
			},
			errorMessages: []string{
				"assets.root: local asset checks need an asset root",
			},
		},
		{
			name: "remote asset check without site url",
			mutate: func(c *Config) {
				c.Site.URL = ""
				c.Assets.Check = true
				c.Assets.Remote = true
			},
			errorMessages: []string{
				"assets.remote: remote asset checks need site.url",
			},
		},
		{
			name: "bad render log and server",
			mutate: func(c *Config) {
				c.Render.Malformed = "hide"
				c.Log.Level = "loud"
				c.Log.Format = "xml"
				c.Server.Port = 0
			},
			errorMessages: []string{
				`render.malformed: unknown mode "hide"`,
				`log.level: unknown level "loud"`,
				`log.format: unknown format "xml"`,
				"server.port: port must be between 1 and 65535",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			errors := config.Validate()
			require.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}
