package node

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Watch follows the config file and applies tuning updates to the node
// whenever it changes. Malformed edits are logged and skipped; the node keeps
// running on its last good config. Watch returns immediately; watching stops
// when ctx is cancelled.
func (n *Node) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "cannot create config watcher")
	}
	// Watch the directory rather than the file: editors and config
	// writers typically replace the file, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		utils.UncheckedError(watcher.Close())
		return errors.Wrapf(err, "cannot watch config directory for %q", path)
	}
	target := filepath.Clean(path)
	utils.PanicCapturingGo(func() {
		defer utils.UncheckedErrorFunc(watcher.Close)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := ReadConfig(path)
				if err != nil {
					n.logger.Warnw("ignoring unreadable config change", "error", err)
					continue
				}
				if err := n.Reconfigure(cfg); err != nil {
					n.logger.Warnw("ignoring invalid config change", "error", err)
					continue
				}
				n.logger.Infow("applied config change", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				n.logger.Warnw("config watcher error", "error", err)
			}
		}
	})
	return nil
}
