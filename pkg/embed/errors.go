package embed

import (
	"fmt"

	"github.com/xhad/sitecheck/internal/models"
)

// MalformedEmbedError reports a chart directive that fails shape validation.
// The document still resolves; the directive is flagged instead of rendered.
type MalformedEmbedError struct {
	Path     string
	Kind     models.EmbedKind
	Position models.Position
	Reason   string
}

func (e *MalformedEmbedError) Error() string {
	return fmt.Sprintf("%s:%d: malformed %s embed #%d: %s",
		e.Path, e.Position.SourceLine(), e.Kind, e.Position.Index+1, e.Reason)
}
