package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches the config file for changes and delivers reloaded
// configurations to a callback.
type Reloader struct {
	watcher *fsnotify.Watcher
	path    string
	onLoad  func(*Config, string)
}

// NewReloader creates a file watcher for the given config path. The
// callback receives the new config and its hash after each successful
// reload; failed reloads keep the previous config in effect.
func NewReloader(path string, onLoad func(cfg *Config, hash string)) (*Reloader, error) {
	if path == "" {
		return nil, fmt.Errorf("config: reloader requires a path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: cannot watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	return &Reloader{watcher: watcher, path: path, onLoad: onLoad}, nil
}

// Run watches for file changes and reloads. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Debounce: wait 500ms after last write before reloading.
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					cfg, hash, err := LoadWithHash(r.path)
					if err != nil {
						fmt.Fprintf(os.Stderr, "hot-reload failed: %v\n", err)
						return
					}
					r.onLoad(cfg, hash)
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "file watcher error: %v\n", err)
		}
	}
}
