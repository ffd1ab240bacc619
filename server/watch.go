package server

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/xhad/sitecheck/pkg/loader"
)

const debounceDuration = 300 * time.Millisecond

// Watch re-runs the check whenever a file under the content sources changes
// and pushes the report to every connected client. It blocks until ctx is
// cancelled.
func (s *WSServer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, src := range s.config.Content.Sources {
		if err := addTree(watcher, src.Dir, s.config.Content.Ignore); err != nil {
			return err
		}
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	recheck := func() {
		report, ok := s.runCheck(ctx, nil)
		if !ok {
			s.broadcast(TypeError, "check failed to run", nil)
			return
		}
		s.log.WithField("problems", len(report.Problems)).Info("content changed, re-checked")
		s.broadcast(TypeReport, reportContent(report), report.Summary())
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := addTree(watcher, event.Name, s.config.Content.Ignore); err != nil {
					s.log.WithError(err).Warn("failed to watch new directory")
				}
			}
			s.log.WithField("file", event.Name).Debug("change detected")

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDuration, recheck)
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("watcher error")
		}
	}
}

func addTree(watcher *fsnotify.Watcher, root string, ignore []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && loader.Ignored(d.Name(), ignore) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
