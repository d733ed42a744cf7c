package anchors

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch flags out-of-band edits to the anchor directory. Files written
// through Save are indexed; files dropped in by hand are not, and the watcher
// logs the drift so an operator knows a resync is due. Blocks until ctx is
// cancelled.
func (ix *Index) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating anchor watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(ix.dir); err != nil {
		return fmt.Errorf("watching anchor dir: %w", err)
	}

	ix.log.Debug("watching anchor dir for drift", "dir", ix.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				ix.log.Warn("anchor dir changed outside the index; run resync if this was a hand edit",
					"file", event.Name,
					"op", event.Op.String())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ix.log.Warn("anchor watcher error", "error", err)
		}
	}
}
