// Package checker runs the build check: load every source, resolve the
// content tree, classify embeds, validate headers and optionally assets.
package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xhad/sitecheck/internal/types"
	"github.com/xhad/sitecheck/pkg/assets"
	"github.com/xhad/sitecheck/pkg/config"
	"github.com/xhad/sitecheck/pkg/loader"
	"github.com/xhad/sitecheck/pkg/logging"
	"github.com/xhad/sitecheck/pkg/processor"
	"github.com/xhad/sitecheck/pkg/resolver"
)

// Stages reported through OnStage.
const (
	StageLoad    = "load"
	StageResolve = "resolve"
	StageProcess = "process"
	StageAssets  = "assets"
)

type CheckerConfig struct {
	Config *config.Config

	// Loader, Processor and Assets replace the components built from
	// Config when set.
	Loader    types.Loader
	Processor types.Processor
	Assets    types.AssetChecker

	OnStage    func(stage string)
	OnDiscover func(total int)
	OnProgress func(item string)
	Logger     logrus.FieldLogger
}

type Checker struct {
	config    *config.Config
	policy    resolver.Policy
	loader    types.Loader
	processor types.Processor
	assets    types.AssetChecker
	hooks     CheckerConfig
	log       logrus.FieldLogger
}

func NewWithConfig(cc CheckerConfig) (*Checker, error) {
	if cc.Config == nil {
		return nil, errors.New("checker needs a config")
	}
	cfg := cc.Config
	log := logging.OrDiscard(cc.Logger)

	policy, err := resolver.ParsePolicy(cfg.Resolution.Policy)
	if err != nil {
		return nil, err
	}

	c := &Checker{
		config:    cfg,
		policy:    policy,
		loader:    cc.Loader,
		processor: cc.Processor,
		assets:    cc.Assets,
		hooks:     cc,
		log:       log,
	}

	if c.loader == nil {
		var sources []loader.Source
		for _, s := range cfg.Content.Sources {
			sources = append(sources, loader.Source{Dir: s.Dir, Prefix: s.Prefix})
		}
		c.loader = loader.NewWithConfig(loader.LoaderConfig{
			Sources:     sources,
			Extensions:  cfg.Content.Extensions,
			Ignore:      cfg.Content.Ignore,
			Concurrency: cfg.Content.Concurrency,
			OnDiscover:  cc.OnDiscover,
			OnProgress:  cc.OnProgress,
			Logger:      log,
		})
	}

	if c.processor == nil {
		c.processor = processor.NewWithConfig(processor.ProcessorConfig{
			LibraryPatterns: cfg.Embeds.LibraryPatterns,
			RequireLibrary:  cfg.Embeds.RequireLibrary,
			Concurrency:     cfg.Content.Concurrency,
			OnProgress:      cc.OnProgress,
			Logger:          log,
		})
	}

	if c.assets == nil && cfg.Assets.Check {
		ac, err := assets.NewWithConfig(assets.CheckerConfig{
			Site:       cfg.Site,
			Root:       cfg.Assets.Root,
			Remote:     cfg.Assets.Remote,
			RateLimit:  cfg.Assets.RateLimit,
			Timeout:    cfg.Assets.Timeout,
			CacheTTL:   cfg.Assets.CacheTTL,
			OnProgress: cc.OnProgress,
			Logger:     log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create asset checker: %w", err)
		}
		c.assets = ac
	}

	return c, nil
}

func New(cfg *config.Config) (*Checker, error) {
	return NewWithConfig(CheckerConfig{Config: cfg})
}

func (c *Checker) stage(name string) {
	c.log.WithField("stage", name).Debug("check stage")
	if c.hooks.OnStage != nil {
		c.hooks.OnStage(name)
	}
}

// Run performs one check over the configured sources. Problems in the
// content are collected into the report; the returned error is reserved for
// failures of the run itself, such as cancellation or unreadable sources.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:       uuid.New(),
		StartedAt:   time.Now(),
		Publishable: true,
	}
	log := c.log.WithField("run_id", report.RunID.String())

	c.stage(StageLoad)
	loaded, err := c.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load content: %w", err)
	}
	report.Candidates = len(loaded.Documents)
	report.Problems = append(report.Problems, loaded.Errors...)

	c.stage(StageResolve)
	docs := loaded.Documents
	site, err := resolver.Resolve(loaded.Documents, c.policy)
	var resErr *resolver.ResolutionError
	switch {
	case errors.As(err, &resErr):
		report.Problems = append(report.Problems, resErr.Problems...)
		report.Publishable = false
		log.WithField("problems", len(resErr.Problems)).Error("content tree does not resolve")
	case err != nil:
		return nil, err
	default:
		report.Site = site
		report.Resolved = site.Len()
		report.Overwrites = site.Overwrites()
		for _, o := range report.Overwrites {
			log.WithFields(logrus.Fields{
				"path":      o.Path,
				"discarded": o.Discarded.File,
				"kept":      o.Kept.File,
			}).Warn("document overwritten")
		}
		docs = site.Documents()
	}

	// An unresolved tree is still processed candidate by candidate so every
	// problem is reported in one run.
	c.stage(StageProcess)
	processed, err := c.processor.Process(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("failed to process documents: %w", err)
	}
	report.Documents = processed
	for _, pd := range processed {
		report.Embeds += len(pd.Embeds)
		report.Problems = append(report.Problems, pd.Problems...)
	}

	if c.assets != nil {
		c.stage(StageAssets)
		missing, err := c.assets.Check(ctx, processed)
		if err != nil {
			return nil, fmt.Errorf("failed to check assets: %w", err)
		}
		report.Problems = append(report.Problems, missing...)
	}

	report.Duration = time.Since(report.StartedAt)
	log.WithFields(logrus.Fields{
		"candidates": report.Candidates,
		"resolved":   report.Resolved,
		"embeds":     report.Embeds,
		"problems":   len(report.Problems),
		"duration":   report.Duration,
	}).Info("check finished")
	return report, nil
}
