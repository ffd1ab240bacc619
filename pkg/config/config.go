package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. SITECHECK_SITE_BASEURL.
const EnvPrefix = "SITECHECK"

type Config struct {
	Site       SiteConfig       `mapstructure:"site"`
	Content    ContentConfig    `mapstructure:"content"`
	Resolution ResolutionConfig `mapstructure:"resolution"`
	Embeds     EmbedConfig      `mapstructure:"embeds"`
	Assets     AssetConfig      `mapstructure:"assets"`
	Render     RenderConfig     `mapstructure:"render"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
}

// SiteConfig is the site-wide configuration threaded into rendering.
type SiteConfig struct {
	Title        string `mapstructure:"title" yaml:"title"`
	URL          string `mapstructure:"url" yaml:"url"`
	BaseURL      string `mapstructure:"baseurl" yaml:"baseurl"`
	JekyllConfig string `mapstructure:"jekyll_config" yaml:"-"`
}

type SourceConfig struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
}

type ContentConfig struct {
	Sources     []SourceConfig `mapstructure:"sources"`
	Extensions  []string       `mapstructure:"extensions"`
	Ignore      []string       `mapstructure:"ignore"`
	Concurrency int            `mapstructure:"concurrency"`
}

type ResolutionConfig struct {
	Policy string `mapstructure:"policy"`
}

type EmbedConfig struct {
	LibraryPatterns []string `mapstructure:"library_patterns"`
	RequireLibrary  bool     `mapstructure:"require_library"`
}

type AssetConfig struct {
	Check     bool          `mapstructure:"check"`
	Root      string        `mapstructure:"root"`
	Remote    bool          `mapstructure:"remote"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type RenderConfig struct {
	Malformed string `mapstructure:"malformed"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoadConfig reads configuration from path, or from the first default
// location that exists when path is empty. Missing files fall back to defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		locations := []string{
			"sitecheck.yaml",
			"sitecheck.yml",
			filepath.Join(os.Getenv("HOME"), ".config/sitecheck/config.yaml"),
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := mergeJekyllConfig(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.title", "")
	v.SetDefault("site.url", "")
	v.SetDefault("site.baseurl", "")
	v.SetDefault("site.jekyll_config", "")

	v.SetDefault("content.extensions", []string{".md", ".markdown"})
	v.SetDefault("content.ignore", []string{".git", "_site", "node_modules", ".jekyll-cache", "vendor"})
	v.SetDefault("content.concurrency", 8)

	v.SetDefault("resolution.policy", "fail-fast")

	v.SetDefault("embeds.library_patterns", []string{"cdn.plot.ly"})
	v.SetDefault("embeds.require_library", true)

	v.SetDefault("assets.check", false)
	v.SetDefault("assets.root", "")
	v.SetDefault("assets.remote", false)
	v.SetDefault("assets.rate_limit", 5.0)
	v.SetDefault("assets.timeout", "10s")
	v.SetDefault("assets.cache_ttl", "10m")

	v.SetDefault("render.malformed", "mark")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("server.port", 8080)
}

// applyDefaults fills values a config file may have blanked out.
func applyDefaults(config *Config) {
	if len(config.Content.Sources) == 0 {
		config.Content.Sources = []SourceConfig{{Dir: "."}}
	}
	if len(config.Content.Extensions) == 0 {
		config.Content.Extensions = []string{".md", ".markdown"}
	}
	if config.Content.Concurrency == 0 {
		config.Content.Concurrency = 8
	}
	if config.Resolution.Policy == "" {
		config.Resolution.Policy = "fail-fast"
	}
	if config.Render.Malformed == "" {
		config.Render.Malformed = "mark"
	}
	if config.Assets.RateLimit == 0 {
		config.Assets.RateLimit = 5
	}
	if config.Assets.Timeout == 0 {
		config.Assets.Timeout = 10 * time.Second
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	config.Site.BaseURL = strings.TrimSuffix(config.Site.BaseURL, "/")
}

// mergeJekyllConfig fills unset site values from the site's _config.yml.
func mergeJekyllConfig(config *Config) error {
	if config.Site.JekyllConfig == "" {
		return nil
	}
	site, err := LoadSiteConfig(config.Site.JekyllConfig)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if config.Site.Title == "" {
		config.Site.Title = site.Title
	}
	if config.Site.URL == "" {
		config.Site.URL = site.URL
	}
	if config.Site.BaseURL == "" {
		config.Site.BaseURL = site.BaseURL
	}
	return nil
}

// LoadSiteConfig reads title, url and baseurl from a Jekyll _config.yml.
func LoadSiteConfig(path string) (SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SiteConfig{}, fmt.Errorf("error reading site config: %w", err)
	}

	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return SiteConfig{}, fmt.Errorf("error parsing site config %s: %w", path, err)
	}
	return site, nil
}
