package checker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xhad/sitecheck/internal/models"
	"github.com/xhad/sitecheck/pkg/assets"
	"github.com/xhad/sitecheck/pkg/document"
	"github.com/xhad/sitecheck/pkg/embed"
	"github.com/xhad/sitecheck/pkg/resolver"
)

// Problem kinds, as reported in summaries.
const (
	KindDuplicateContent = "duplicate_content"
	KindMalformedEmbed   = "malformed_embed"
	KindHeader           = "header"
	KindParse            = "parse"
	KindMissingAsset     = "missing_asset"
	KindOther            = "other"
)

// Report is the outcome of one check run.
type Report struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	Duration   time.Duration
	Candidates int
	Resolved   int
	Embeds     int
	Problems   []error
	Overwrites []resolver.Overwrite
	// Publishable is false when the content tree itself is ambiguous.
	Publishable bool

	Site      *resolver.Site
	Documents []models.ProcessedDocument
}

// OK reports whether the run found no problems.
func (r *Report) OK() bool { return len(r.Problems) == 0 }

// Err returns nil for a clean run and a *CheckError otherwise.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return &CheckError{Problems: r.Problems}
}

// Document returns the processed document at path.
func (r *Report) Document(path string) (models.ProcessedDocument, bool) {
	p := resolver.NormalizePath(path)
	for _, d := range r.Documents {
		if d.Path == p {
			return d, true
		}
	}
	return models.ProcessedDocument{}, false
}

// CheckError aggregates every problem found in a run.
type CheckError struct {
	Problems []error
}

func (e *CheckError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("check failed with %d problem(s): %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *CheckError) Unwrap() []error { return e.Problems }

// ProblemSummary is the serializable form of one problem.
type ProblemSummary struct {
	Kind    string `json:"kind"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

type Summary struct {
	RunID       string           `json:"run_id"`
	OK          bool             `json:"ok"`
	Publishable bool             `json:"publishable"`
	Candidates  int              `json:"candidates"`
	Resolved    int              `json:"resolved"`
	Embeds      int              `json:"embeds"`
	DurationMS  int64            `json:"duration_ms"`
	Problems    []ProblemSummary `json:"problems"`
	Overwrites  []string         `json:"overwrites,omitempty"`
}

func (r *Report) Summary() Summary {
	s := Summary{
		RunID:       r.RunID.String(),
		OK:          r.OK(),
		Publishable: r.Publishable,
		Candidates:  r.Candidates,
		Resolved:    r.Resolved,
		Embeds:      r.Embeds,
		DurationMS:  r.Duration.Milliseconds(),
		Problems:    make([]ProblemSummary, 0, len(r.Problems)),
	}
	for _, p := range r.Problems {
		s.Problems = append(s.Problems, Describe(p))
	}
	for _, o := range r.Overwrites {
		s.Overwrites = append(s.Overwrites, fmt.Sprintf("%s: %s replaced by %s", o.Path, o.Discarded.File, o.Kept.File))
	}
	return s
}

// Describe classifies err into a ProblemSummary.
func Describe(err error) ProblemSummary {
	var (
		dup     *resolver.DuplicateContentError
		bad     *embed.MalformedEmbedError
		header  *document.HeaderError
		parse   *document.ParseError
		missing *assets.MissingAssetError
	)
	ps := ProblemSummary{Kind: KindOther, Message: err.Error()}
	switch {
	case errors.As(err, &dup):
		ps.Kind, ps.Path = KindDuplicateContent, dup.Path
	case errors.As(err, &bad):
		ps.Kind, ps.Path, ps.Line = KindMalformedEmbed, bad.Path, bad.Position.SourceLine()
	case errors.As(err, &header):
		ps.Kind, ps.Path = KindHeader, header.Path
	case errors.As(err, &parse):
		ps.Kind, ps.Path = KindParse, parse.File
	case errors.As(err, &missing):
		ps.Kind, ps.Path, ps.Line = KindMissingAsset, missing.Path, missing.Position.SourceLine()
	}
	return ps
}

// ProcessedFor returns the processed documents at paths, the input the
// renderer accepts, or every resolved document when no path is given.
// Documents with problems are still returned so they can be viewed with
// their malformed embeds marked; only an ambiguous content tree refuses.
func (r *Report) ProcessedFor(paths ...string) ([]models.ProcessedDocument, error) {
	if !r.Publishable {
		return nil, fmt.Errorf("content tree is not publishable: %w", r.Err())
	}
	if len(paths) == 0 {
		return r.Documents, nil
	}
	var out []models.ProcessedDocument
	for _, p := range paths {
		d, ok := r.Document(p)
		if !ok {
			return nil, fmt.Errorf("no document at %q", p)
		}
		out = append(out, d)
	}
	return out, nil
}
