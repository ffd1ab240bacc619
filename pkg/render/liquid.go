package render

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/xhad/sitecheck/pkg/config"
)

var reOutput = regexp.MustCompile(`\{\{-?\s*(.*?)\s*-?\}\}`)

// ExpandLiquid substitutes the site variables and URL filters of Liquid
// output tags from site. Tags it does not understand are left untouched for
// the site generator.
func ExpandLiquid(site config.SiteConfig, s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return reOutput.ReplaceAllStringFunc(s, func(tag string) string {
		expr := reOutput.FindStringSubmatch(tag)[1]
		if out, ok := evalOutput(site, expr); ok {
			return out
		}
		return tag
	})
}

func evalOutput(site config.SiteConfig, expr string) (string, bool) {
	parts := strings.Split(expr, "|")
	value, ok := evalValue(site, strings.TrimSpace(parts[0]))
	if !ok {
		return "", false
	}
	for _, f := range parts[1:] {
		switch strings.TrimSpace(f) {
		case "relative_url":
			value = RelativeURL(site, value)
		case "absolute_url":
			value = AbsoluteURL(site, value)
		default:
			return "", false
		}
	}
	return value, true
}

func evalValue(site config.SiteConfig, v string) (string, bool) {
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1], true
	}
	switch v {
	case "site.baseurl":
		return site.BaseURL, true
	case "site.url":
		return site.URL, true
	case "site.title":
		return site.Title, true
	}
	return "", false
}

// RelativeURL prefixes p with the site's base path.
func RelativeURL(site config.SiteConfig, p string) string {
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		return p
	}
	base := strings.TrimSuffix(site.BaseURL, "/")
	return base + "/" + strings.TrimPrefix(p, "/")
}

// AbsoluteURL turns p into a URL on the site's host.
func AbsoluteURL(site config.SiteConfig, p string) string {
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		return p
	}
	return strings.TrimSuffix(site.URL, "/") + RelativeURL(site, p)
}
