package rules

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// StartWatching begins a single-path file watch on the configured rules
// file. On any write/create/rename event it fires RulesChanged; it does
// not call Load itself — the Orchestrator owns hot-reload dispatch and
// calls Engine.LoadRules() (which in turn calls Load) in response.
// The watcher stops when ctx is cancelled.
func (r *Repository) StartWatching(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(r.path); err != nil {
		watcher.Close()
		return err
	}

	go r.watchLoop(ctx, watcher)
	return nil
}

func (r *Repository) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if r.publisher != nil {
				_ = r.publisher.PublishRulesChanged(r.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("rules file watcher error", "error", err)
		}
	}
}
