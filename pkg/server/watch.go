package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Watch reloads the tree whenever its file is rewritten, until ctx is done.
// The directory is watched rather than the file so atomic replacements are
// seen.
func (s *Server) Watch(ctx context.Context) error {
	file := filepath.Clean(s.tree.File())

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(file)); err != nil {
		return fmt.Errorf("watch %q: %w", filepath.Dir(file), err)
	}
	s.log.Debugf("Watching %q for changes", file)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != file || event.Op&reloadOps == 0 {
				continue
			}

			s.log.Debugf("%s is updated (%s)", event.Name, event.Op)
			if nodes, files, err := s.reload(); err != nil {
				s.log.WithError(err).Warn("Failed reloading topic tree after change")
			} else {
				s.log.Infof("Reloaded topic tree after change: %d nodes, %d content files", nodes, files)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("Watcher error")
		}
	}
}
