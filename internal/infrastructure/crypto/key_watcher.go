package crypto

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

// KeyWatcher invokes onChange whenever the signing key file is written,
// created or replaced. The parent directory is watched so that atomic
// rename-into-place rotations are seen.
type KeyWatcher struct {
	path     string
	onChange func()
	watcher  *fsnotify.Watcher
	logger   logger.Logger
	done     chan struct{}
}

// NewKeyWatcher starts watching path.
func NewKeyWatcher(path string, onChange func(), log logger.Logger) (*KeyWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrKeySource, err, "resolve key path")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.ErrKeySource, err, "create key watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, errors.Wrap(errors.ErrKeySource, err, "watch key directory")
	}

	kw := &KeyWatcher{
		path:     abs,
		onChange: onChange,
		watcher:  w,
		logger:   log.WithComponent("key_watcher"),
		done:     make(chan struct{}),
	}
	go kw.loop()
	return kw, nil
}

func (kw *KeyWatcher) loop() {
	defer close(kw.done)
	ctx := context.Background()
	for {
		select {
		case event, ok := <-kw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != kw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			kw.logger.Info(ctx, "signing key changed", logger.String("op", event.Op.String()))
			kw.onChange()
		case err, ok := <-kw.watcher.Errors:
			if !ok {
				return
			}
			kw.logger.Warn(ctx, "key watcher error", logger.Err(err))
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (kw *KeyWatcher) Close() error {
	err := kw.watcher.Close()
	<-kw.done
	return err
}
