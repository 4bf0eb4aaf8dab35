package voice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchFile empties the transcript at path, then scans it on every
// write. A recognised command clears the file before it is applied.
// The parent directory is watched so a transcriber that replaces the
// file is still followed. WatchFile blocks until ctx ends.
func (in *Ingester) WatchFile(ctx context.Context, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving transcript path: %w", err)
	}
	if err := clearTranscript(path); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating transcript watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}
	in.logger.Info("watching transcript", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			in.scanTranscript(ctx, path)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Warn("transcript watcher error", "error", err)
		}
	}
}

func (in *Ingester) scanTranscript(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		in.logger.Warn("reading transcript failed", "path", path, "error", err)
		return
	}
	desired, ok := Parse(string(data))
	if !ok {
		return
	}
	if err := clearTranscript(path); err != nil {
		in.logger.Warn("clearing transcript failed", "path", path, "error", err)
	}
	in.apply(ctx, desired)
}

// clearTranscript truncates path, creating it when missing.
func clearTranscript(path string) error {
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("clearing transcript: %w", err)
	}
	return nil
}
