package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWaitTimeout is returned when the solver output never appears.
var ErrWaitTimeout = errors.New("runner: timed out waiting for solver output")

// pollInterval backs up the watcher; some network filesystems do not
// deliver inotify events for remote writes.
const pollInterval = 2 * time.Second

// WaitForFile blocks until path exists, the timeout passes or the context is
// cancelled. The parent directory is created if needed so it can be watched.
func WaitForFile(ctx context.Context, path string, timeout time.Duration) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("runner: ensure output dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return waitByPolling(ctx, path, timeout)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return waitByPolling(ctx, path, timeout)
	}

	// The file may have appeared between the stat and the watch.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s", ErrWaitTimeout, path)
		case event, ok := <-watcher.Events:
			if !ok {
				return waitByPolling(ctx, path, timeout)
			}
			if event.Name == path && event.Op.Has(fsnotify.Create|fsnotify.Write) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok || err != nil {
				return waitByPolling(ctx, path, timeout)
			}
		case <-poll.C:
			if _, err := os.Stat(path); err == nil {
				return nil
			}
		}
	}
}

func waitByPolling(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: %s", ErrWaitTimeout, path)
		case <-poll.C:
			if _, err := os.Stat(path); err == nil {
				return nil
			}
		}
	}
}
