package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nookcoding/e2e-harness/scenariodef"
)

const watchDebounce = 300 * time.Millisecond

// scenarioWatcher reruns the scenarios whenever a definition file under the watched paths
// is written, created, renamed or removed.
type scenarioWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	output   io.Writer
}

func newScenarioWatcher(paths []string, output io.Writer) (*scenarioWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &scenarioWatcher{watcher: watcher, debounce: watchDebounce, output: output}
	for _, p := range paths {
		if err := w.add(p); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}
	return w, nil
}

// add watches p, or every directory below it. A single file is watched through its
// directory, since editors often replace files instead of writing them in place.
func (w *scenarioWatcher) add(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.watcher.Add(filepath.Dir(p))
	}
	return filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %q: %w", path, err)
			}
		}
		return nil
	})
}

func isScenarioChange(event fsnotify.Event) bool {
	if !scenariodef.IsDefinitionFile(event.Name) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}

// Run calls rerun after each burst of changes, until ctx is cancelled. Reruns never overlap.
func (w *scenarioWatcher) Run(ctx context.Context, rerun func(context.Context)) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.add(event.Name)
				}
			}
			if !isScenarioChange(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			timer, fire = nil, nil
			fmt.Fprintln(w.output, "\nScenario files changed, running again")
			rerun(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(w.output, "file watcher error: %v\n", err)
		}
	}
}
