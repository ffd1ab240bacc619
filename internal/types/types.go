package types

import (
	"context"

	"github.com/xhad/sitecheck/internal/models"
	"github.com/xhad/sitecheck/pkg/loader"
)

// Core interfaces
type Loader interface {
	Load(ctx context.Context) (*loader.Result, error)
}

type Processor interface {
	Process(ctx context.Context, docs []models.Document) ([]models.ProcessedDocument, error)
}

type AssetChecker interface {
	Check(ctx context.Context, docs []models.ProcessedDocument) ([]error, error)
}

type Renderer interface {
	Render(doc models.ProcessedDocument) (*models.Page, error)
}
