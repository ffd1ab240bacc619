package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xhad/sitecheck/internal/models"
	"github.com/xhad/sitecheck/pkg/document"
	"github.com/xhad/sitecheck/pkg/logging"
)

// Source is a content root. Prefix is prepended to every document path
// found under Dir.
type Source struct {
	Dir    string
	Prefix string
}

type LoaderConfig struct {
	Sources     []Source
	Extensions  []string
	Ignore      []string
	Concurrency int
	OnDiscover  func(total int)
	OnProgress  func(file string)
	Logger      logrus.FieldLogger
}

// Result holds the parsed candidates in discovery order together with the
// files that could not be parsed.
type Result struct {
	Documents []models.Document
	Errors    []error
}

type Loader struct {
	config LoaderConfig
	log    logrus.FieldLogger
}

func NewWithConfig(config LoaderConfig) *Loader {
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".md", ".markdown"}
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}

	return &Loader{
		config: config,
		log:    logging.OrDiscard(config.Logger),
	}
}

func New(dirs ...string) *Loader {
	var sources []Source
	for _, dir := range dirs {
		sources = append(sources, Source{Dir: dir})
	}
	return NewWithConfig(LoaderConfig{Sources: sources})
}

type candidate struct {
	root string
	file string
	path string
}

// Load discovers every content file under the configured sources and parses
// them in parallel. Discovery order is source order, then lexical walk order.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	var found []candidate
	for _, src := range l.config.Sources {
		files, err := l.discover(src)
		if err != nil {
			return nil, err
		}
		found = append(found, files...)
	}

	l.log.WithField("files", len(found)).Debug("content discovered")
	if l.config.OnDiscover != nil {
		l.config.OnDiscover(len(found))
	}

	docs := make([]*models.Document, len(found))
	errs := make([]error, len(found))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.Concurrency)
	for i, c := range found {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := l.parseFile(c, i)
			if err != nil {
				errs[i] = err
			} else {
				docs[i] = doc
			}
			if l.config.OnProgress != nil {
				l.config.OnProgress(c.file)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{}
	for i := range found {
		if errs[i] != nil {
			l.log.WithError(errs[i]).WithField("file", found[i].file).Warn("failed to parse content file")
			result.Errors = append(result.Errors, errs[i])
			continue
		}
		result.Documents = append(result.Documents, *docs[i])
	}
	return result, nil
}

func (l *Loader) discover(src Source) ([]candidate, error) {
	info, err := os.Stat(src.Dir)
	if err != nil {
		return nil, fmt.Errorf("content source %s: %w", src.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content source %s is not a directory", src.Dir)
	}

	var found []candidate
	err = filepath.WalkDir(src.Dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", file, err)
		}
		if file != src.Dir && l.ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.hasExtension(file) {
			return nil
		}

		rel, err := filepath.Rel(src.Dir, file)
		if err != nil {
			return err
		}
		found = append(found, candidate{
			root: src.Dir,
			file: file,
			path: DocumentPath(src.Prefix, rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (l *Loader) parseFile(c candidate, order int) (*models.Document, error) {
	f, err := os.Open(c.file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	parsed, err := document.Parse(f, c.file)
	if err != nil {
		return nil, err
	}

	return &models.Document{
		Path: c.path,
		Source: models.Source{
			Root:    c.root,
			File:    c.file,
			Order:   order,
			ModTime: stat.ModTime(),
		},
		Header:         parsed.Header,
		Meta:           parsed.Meta,
		Body:           parsed.Body,
		HasFrontMatter: parsed.HasFrontMatter,
		BodyLine:       parsed.BodyLine,
	}, nil
}

func (l *Loader) ignored(name string) bool {
	return Ignored(name, l.config.Ignore)
}

// Ignored reports whether a file or directory name matches one of the
// ignore patterns, either exactly or as a filepath.Match glob.
func Ignored(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if name == pattern {
			return true
		}
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (l *Loader) hasExtension(file string) bool {
	ext := filepath.Ext(file)
	for _, allowed := range l.config.Extensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// DocumentPath joins a source prefix and a path relative to the source root
// into a slash separated document path.
func DocumentPath(prefix, rel string) string {
	p := path.Join(filepath.ToSlash(prefix), filepath.ToSlash(rel))
	return strings.TrimPrefix(p, "/")
}
