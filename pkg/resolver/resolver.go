// Package resolver turns discovered candidates into the authoritative
// mapping from document path to document.
package resolver

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/xhad/sitecheck/internal/models"
)

type Policy string

const (
	// FailFast rejects the build when two candidates share a path.
	FailFast Policy = "fail-fast"
	// LastWins keeps the later candidate and records the overwrite.
	LastWins Policy = "last-wins"
)

// ErrEmptyPath is returned for a candidate without a path.
var ErrEmptyPath = errors.New("document has an empty path")

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case FailFast, LastWins:
		return Policy(s), nil
	case "":
		return FailFast, nil
	}
	return "", fmt.Errorf("unknown resolution policy %q", s)
}

// Overwrite records a candidate discarded under LastWins.
type Overwrite struct {
	Path      string
	Discarded models.Source
	Kept      models.Source
}

// Site is the resolved content tree.
type Site struct {
	docs       map[string]models.Document
	overwrites []Overwrite
}

func (s *Site) Get(p string) (models.Document, bool) {
	doc, ok := s.docs[NormalizePath(p)]
	return doc, ok
}

func (s *Site) Len() int { return len(s.docs) }

// Paths returns every resolved path in sorted order.
func (s *Site) Paths() []string {
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Documents returns the resolved documents ordered by path.
func (s *Site) Documents() []models.Document {
	docs := make([]models.Document, 0, len(s.docs))
	for _, p := range s.Paths() {
		docs = append(docs, s.docs[p])
	}
	return docs
}

func (s *Site) Overwrites() []Overwrite { return s.overwrites }

// Resolve builds the site from candidates in discovery order. Under FailFast
// every shared path is reported in one *ResolutionError and no site is
// returned.
func Resolve(candidates []models.Document, policy Policy) (*Site, error) {
	if policy == "" {
		policy = FailFast
	}
	if policy != FailFast && policy != LastWins {
		return nil, fmt.Errorf("unknown resolution policy %q", policy)
	}

	groups := make(map[string][]models.Document)
	var order []string
	var problems []error

	for _, doc := range candidates {
		p := NormalizePath(doc.Path)
		if p == "" {
			problems = append(problems, fmt.Errorf("%s: %w", doc.Source.File, ErrEmptyPath))
			continue
		}
		doc.Path = p
		if _, seen := groups[p]; !seen {
			order = append(order, p)
		}
		groups[p] = append(groups[p], doc)
	}

	site := &Site{docs: make(map[string]models.Document, len(groups))}
	for _, p := range order {
		group := groups[p]
		if len(group) > 1 && policy == FailFast {
			problems = append(problems, newDuplicateContentError(p, group))
			continue
		}

		kept := group[len(group)-1]
		for _, discarded := range group[:len(group)-1] {
			site.overwrites = append(site.overwrites, Overwrite{
				Path:      p,
				Discarded: discarded.Source,
				Kept:      kept.Source,
			})
		}
		site.docs[p] = kept
	}

	if len(problems) > 0 {
		return nil, &ResolutionError{Problems: problems}
	}
	return site, nil
}

// NormalizePath cleans p into the canonical slash separated form used as
// the site key.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	p = strings.TrimLeft(p, "/")
	if p == "." {
		return ""
	}
	return p
}
