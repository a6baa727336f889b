package agenda

import (
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/telesto-labs/chime/internal/logging"
)

// Watcher observes the agenda directory and invokes onChange when a source
// is written or created, so edits are picked up before the next poll.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *logging.Logger
	onChange func()
	done     chan struct{}
}

// NewWatcher starts watching dir. onChange may be called from the watcher's
// goroutine at any time until Close.
func NewWatcher(dir string, onChange func(), logger *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		watcher:  fw,
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				w.logger.Debugf("agenda change event=%s file=%s", event.Op, event.Name)
				w.onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("watcher error: %v", err)
		}
	}
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
