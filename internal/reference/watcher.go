package reference

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher rebuilds the snapshot when the tables file changes or when asked to.
type Watcher struct {
	loader *Loader
	holder *Holder
	logger *slog.Logger

	// OnReload, when set, sees the outcome of every reload attempt.
	OnReload func(ctx context.Context, err error)
}

func NewWatcher(loader *Loader, holder *Holder, logger *slog.Logger) *Watcher {
	return &Watcher{loader: loader, holder: holder, logger: logger}
}

// Reload builds a fresh snapshot and swaps it in. On failure the current
// snapshot stays in place.
func (w *Watcher) Reload(ctx context.Context) error {
	snap, err := w.loader.Load(ctx)
	if err == nil {
		w.holder.Swap(snap)
		w.logger.Info("reference tables reloaded", "path", w.loader.Path, "proteins", len(snap.Proteins()))
	}
	if w.OnReload != nil {
		w.OnReload(ctx, err)
	}
	return err
}

// Run watches the file's directory (editors often replace files by rename)
// until ctx is done. Without a Path there is nothing to watch.
func (w *Watcher) Run(ctx context.Context) error {
	if w.loader.Path == "" {
		<-ctx.Done()
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.loader.Path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.loader.Path, err)
	}
	target := filepath.Clean(w.loader.Path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := w.Reload(ctx); err != nil {
				w.logger.Error("reference tables reload failed, keeping previous snapshot", "error", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}
