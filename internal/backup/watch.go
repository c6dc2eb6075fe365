package backup

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch re-runs the auto-import check whenever the backup file changes in
// the watched directory, so a backup dropped in by a sync client is picked
// up while the app runs. Blocks until ctx is done; callers run it in a
// goroutine.
func (s *Service) Watch(ctx context.Context) error {
	s.mu.Lock()
	var dir *DirStrategy
	for _, st := range s.chain {
		if d, ok := st.(*DirStrategy); ok {
			dir = d
			break
		}
	}
	s.mu.Unlock()
	if dir == nil {
		return errors.New("backup: no directory strategy to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(dir.Path(s.filename))); err != nil {
		return err
	}
	target := dir.Path(s.filename)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if _, err := s.CheckAndAutoImport(ctx); err != nil {
				s.logger.Warn("auto import check failed", "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("backup watcher error", "err", err)
		}
	}
}
