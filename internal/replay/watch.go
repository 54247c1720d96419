package replay

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchImport watches path (typically ".hive/issues.jsonl") for writes
// and re-runs ImportJSONL whenever it changes, mirroring the teacher's
// own autoimport story but driven by fsnotify instead of a hash
// comparison on every CLI invocation. Runs until ctx is cancelled.
func (s *Service) WatchImport(ctx context.Context, projectKey, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, err := s.ImportJSONL(ctx, projectKey, path); err != nil {
				log.Printf("jsonl auto-import failed for %s: %v", path, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("jsonl watcher error: %v", err)
		}
	}
}
