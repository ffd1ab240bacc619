// Package assets verifies that framed charts point at assets that exist,
// either under a local asset root or on the deployed site.
package assets

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xhad/sitecheck/internal/models"
	"github.com/xhad/sitecheck/pkg/config"
	"github.com/xhad/sitecheck/pkg/logging"
	"github.com/xhad/sitecheck/pkg/render"
)

// MissingAssetError reports a framed chart whose source cannot be found.
type MissingAssetError struct {
	Path     string
	Src      string
	Target   string
	Position models.Position
	Reason   string
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("%s:%d: missing asset %s (%s)", e.Path, e.Position.SourceLine(), e.Src, e.Reason)
}

type CheckerConfig struct {
	Site       config.SiteConfig
	Root       string // local directory the site's assets are served from
	Remote     bool   // check against Site.URL instead of Root
	RateLimit  float64
	Timeout    time.Duration
	CacheTTL   time.Duration
	OnProgress func(target string)
	Logger     logrus.FieldLogger
	Client     *http.Client
}

type Checker struct {
	config  CheckerConfig
	client  *http.Client
	limiter *rate.Limiter
	cache   *gocache.Cache
	log     logrus.FieldLogger
}

func NewWithConfig(config CheckerConfig) (*Checker, error) {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 10 * time.Minute
	}

	if config.Remote {
		u, err := url.Parse(config.Site.URL)
		if err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("remote asset check needs an absolute site url, got %q", config.Site.URL)
		}
	} else if config.Root == "" {
		return nil, fmt.Errorf("local asset check needs an asset root")
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &Checker{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		cache:   gocache.New(config.CacheTTL, 2*config.CacheTTL),
		log:     logging.OrDiscard(config.Logger),
	}, nil
}

// New returns a checker that looks for assets under root.
func New(root string) *Checker {
	c, _ := NewWithConfig(CheckerConfig{Root: root})
	return c
}

type job struct {
	path  string
	chart models.FramedChart
}

// Check verifies every framed chart of docs and returns one error per
// missing asset, in document order.
func (c *Checker) Check(ctx context.Context, docs []models.ProcessedDocument) ([]error, error) {
	var jobs []job
	for _, doc := range docs {
		for _, e := range doc.Embeds {
			if chart, ok := e.(models.FramedChart); ok {
				jobs = append(jobs, job{path: doc.Path, chart: chart})
			}
		}
	}

	results := make([]error, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, j := range jobs {
		g.Go(func() error {
			err := c.CheckChart(ctx, j.path, j.chart)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			results[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var missing []error
	for _, err := range results {
		if err != nil {
			missing = append(missing, err)
		}
	}
	return missing, nil
}

// CheckChart verifies the source of one framed chart found in the document
// at docPath. Sources on other hosts are not checked.
func (c *Checker) CheckChart(ctx context.Context, docPath string, chart models.FramedChart) error {
	// Src is kept as authored, entities included
	src := render.ExpandLiquid(c.config.Site, html.UnescapeString(chart.Src))
	sitePath, local := c.sitePath(docPath, src)
	if !local {
		c.log.WithField("src", src).Debug("skipping external asset")
		return nil
	}

	missing := func(target, reason string) error {
		return &MissingAssetError{
			Path:     docPath,
			Src:      chart.Src,
			Target:   target,
			Position: chart.Position,
			Reason:   reason,
		}
	}

	if !c.config.Remote {
		target := filepath.Join(c.config.Root, filepath.FromSlash(sitePath))
		if c.config.OnProgress != nil {
			c.config.OnProgress(target)
		}
		info, err := os.Stat(target)
		if err != nil {
			return missing(target, "no such file")
		}
		if info.IsDir() {
			if _, err := os.Stat(filepath.Join(target, "index.html")); err != nil {
				return missing(target, "directory without index.html")
			}
		}
		return nil
	}

	target := render.AbsoluteURL(c.config.Site, sitePath)
	status, err := c.head(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return missing(target, err.Error())
	}
	if status != http.StatusOK {
		return missing(target, fmt.Sprintf("status %d", status))
	}
	return nil
}

// sitePath maps src to a path relative to the site root. The second return
// is false when src lives on another host.
func (c *Checker) sitePath(docPath, src string) (string, bool) {
	u, err := url.Parse(src)
	if err != nil {
		return src, true
	}
	p := u.Path
	if u.IsAbs() || u.Host != "" {
		site, err := url.Parse(c.config.Site.URL)
		if err != nil || site.Host == "" || !strings.EqualFold(site.Host, u.Host) {
			return "", false
		}
	} else if !strings.HasPrefix(p, "/") {
		p = path.Join(path.Dir(docPath), p)
	}

	if base := strings.TrimSuffix(c.config.Site.BaseURL, "/"); base != "" {
		if p == base || strings.HasPrefix(p, base+"/") {
			p = strings.TrimPrefix(p, base)
		}
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/"), true
}

func (c *Checker) head(ctx context.Context, target string) (int, error) {
	if v, ok := c.cache.Get(target); ok {
		return v.(int), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	if c.config.OnProgress != nil {
		c.config.OnProgress(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	c.cache.Set(target, resp.StatusCode, gocache.DefaultExpiration)
	return resp.StatusCode, nil
}
