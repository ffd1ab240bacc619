package processor

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xhad/sitecheck/internal/models"
	"github.com/xhad/sitecheck/pkg/document"
	"github.com/xhad/sitecheck/pkg/embed"
	"github.com/xhad/sitecheck/pkg/logging"
)

type ProcessorConfig struct {
	LibraryPatterns []string
	RequireLibrary  bool
	Concurrency     int
	OnProgress      func(path string)
	Logger          logrus.FieldLogger
}

type Processor struct {
	config     ProcessorConfig
	classifier *embed.Classifier
	log        logrus.FieldLogger
}

func NewWithConfig(config ProcessorConfig) *Processor {
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	if len(config.LibraryPatterns) == 0 {
		config.LibraryPatterns = []string{"cdn.plot.ly"}
	}
	log := logging.OrDiscard(config.Logger)

	return &Processor{
		config: config,
		classifier: embed.NewWithConfig(embed.ClassifierConfig{
			LibraryPatterns: config.LibraryPatterns,
			RequireLibrary:  config.RequireLibrary,
			Logger:          log,
		}),
		log: log,
	}
}

func New() *Processor {
	return NewWithConfig(ProcessorConfig{RequireLibrary: true})
}

// Process classifies the embeds and validates the header of every document.
// Problems are attached to each ProcessedDocument rather than returned, so a
// single pass reports everything. The output keeps the input order.
func (p *Processor) Process(ctx context.Context, docs []models.Document) ([]models.ProcessedDocument, error) {
	processed := make([]models.ProcessedDocument, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			processed[i] = p.processOne(doc)
			if p.config.OnProgress != nil {
				p.config.OnProgress(doc.Path)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return processed, nil
}

func (p *Processor) processOne(doc models.Document) models.ProcessedDocument {
	result := p.classifier.Classify(doc)

	pd := models.ProcessedDocument{
		Document: doc,
		Embeds:   result.Embeds,
	}
	pd.Problems = append(pd.Problems, document.ValidateHeader(doc.Path, doc.Header)...)
	for _, err := range result.Errors {
		pd.Problems = append(pd.Problems, err)
	}

	if len(pd.Problems) > 0 {
		p.log.WithFields(logrus.Fields{
			"path":     doc.Path,
			"problems": len(pd.Problems),
		}).Warn("document has problems")
	}
	return pd
}
