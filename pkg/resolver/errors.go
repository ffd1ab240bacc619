package resolver

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/xhad/sitecheck/internal/models"
)

const excerptLength = 60

// Claim is one candidate claiming a contested path.
type Claim struct {
	Source  models.Source
	Layout  string
	Excerpt string
	Body    string
}

// DuplicateContentError reports two or more documents sharing a path.
type DuplicateContentError struct {
	Path      string
	Claims    []Claim
	Divergent bool
}

func newDuplicateContentError(p string, group []models.Document) *DuplicateContentError {
	err := &DuplicateContentError{Path: p}
	for _, doc := range group {
		err.Claims = append(err.Claims, Claim{
			Source:  doc.Source,
			Layout:  doc.Header.Layout,
			Excerpt: doc.Excerpt(excerptLength),
			Body:    doc.Body,
		})
		if doc.Body != group[0].Body || !reflect.DeepEqual(doc.Header, group[0].Header) {
			err.Divergent = true
		}
	}
	return err
}

// Sources returns the files claiming the path, in discovery order.
func (e *DuplicateContentError) Sources() []string {
	files := make([]string, 0, len(e.Claims))
	for _, c := range e.Claims {
		files = append(files, c.Source.File)
	}
	return files
}

func (e *DuplicateContentError) Error() string {
	kind := "identical"
	if e.Divergent {
		kind = "divergent"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "duplicate content at %q: %d %s documents", e.Path, len(e.Claims), kind)
	for _, c := range e.Claims {
		fmt.Fprintf(&b, "; %s (%q)", c.Source.File, c.Excerpt)
	}
	return b.String()
}

// ResolutionError collects every problem found while resolving.
type ResolutionError struct {
	Problems []error
}

func (e *ResolutionError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0].Error()
	}
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("%d resolution problems: %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *ResolutionError) Unwrap() []error { return e.Problems }

// Duplicates returns the duplicate path problems.
func (e *ResolutionError) Duplicates() []*DuplicateContentError {
	var dups []*DuplicateContentError
	for _, p := range e.Problems {
		if d, ok := p.(*DuplicateContentError); ok {
			dups = append(dups, d)
		}
	}
	return dups
}
