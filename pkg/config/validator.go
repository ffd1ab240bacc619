package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate site config
	if c.Site.URL != "" {
		u, err := url.Parse(c.Site.URL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "site.url",
				Message: "url must be absolute, e.g. https://example.com",
			})
		}
	}

	if c.Site.BaseURL != "" && !strings.HasPrefix(c.Site.BaseURL, "/") {
		errors = append(errors, ValidationError{
			Field:   "site.baseurl",
			Message: "baseurl must start with /",
		})
	}

	// Validate content sources
	if len(c.Content.Sources) == 0 {
		errors = append(errors, ValidationError{
			Field:   "content.sources",
			Message: "at least one content source is required",
		})
	}

	for i, src := range c.Content.Sources {
		if src.Dir == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("content.sources[%d].dir", i),
				Message: "dir is required",
			})
		}
	}

	for _, ext := range c.Content.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errors = append(errors, ValidationError{
				Field:   "content.extensions",
				Message: fmt.Sprintf("invalid extension format: %s", ext),
			})
		}
	}

	if c.Content.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "content.concurrency",
			Message: "concurrency must be positive",
		})
	}

	// Validate resolution policy
	switch c.Resolution.Policy {
	case "fail-fast", "last-wins":
	default:
		errors = append(errors, ValidationError{
			Field:   "resolution.policy",
			Message: fmt.Sprintf("unknown policy %q, want fail-fast or last-wins", c.Resolution.Policy),
		})
	}

	// Validate asset checks
	if c.Assets.Check {
		if c.Assets.Remote && c.Site.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "assets.remote",
				Message: "remote asset checks need site.url",
			})
		}
		if !c.Assets.Remote && c.Assets.Root == "" {
			errors = append(errors, ValidationError{
				Field:   "assets.root",
				Message: "local asset checks need an asset root",
			})
		}
	}

	if c.Assets.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "assets.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	switch c.Render.Malformed {
	case "mark", "omit":
	default:
		errors = append(errors, ValidationError{
			Field:   "render.malformed",
			Message: fmt.Sprintf("unknown mode %q, want mark or omit", c.Render.Malformed),
		})
	}

	// Validate logging
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown level %q", c.Log.Level),
		})
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		errors = append(errors, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("unknown format %q, want text or json", c.Log.Format),
		})
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	return errors
}
