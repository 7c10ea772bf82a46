package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// notifier turns fsnotify events under a tree into wake-ups for the poll
// loop. It carries no change information; a wake-up only ends the current
// sleep so the next scan runs sooner.
type notifier struct {
	fsw  *fsnotify.Watcher
	wake chan struct{}
	log  zerolog.Logger
	wg   sync.WaitGroup
}

func newNotifier(root string, log zerolog.Logger) (*notifier, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	n := &notifier{
		fsw:  fsw,
		wake: make(chan struct{}, 1),
		log:  log,
	}
	if err := n.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	n.wg.Add(1)
	go n.run()
	return n, nil
}

// addTree registers root and every directory below it.
func (n *notifier) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return n.fsw.Add(path)
		}
		return nil
	})
}

func (n *notifier) run() {
	defer n.wg.Done()

	for {
		select {
		case ev, ok := <-n.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := n.addTree(ev.Name); err != nil {
						n.log.Debug().Err(err).Str("path", ev.Name).Msg("cannot watch new directory")
					}
				}
			}
			if ev.Has(fsnotify.Chmod) {
				continue
			}
			if IsWatchedFile(ev.Name) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) {
				n.signal()
			}
		case err, ok := <-n.fsw.Errors:
			if !ok {
				return
			}
			n.log.Debug().Err(err).Msg("filesystem notification error")
		}
	}
}

func (n *notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) close() {
	n.fsw.Close()
	n.wg.Wait()
}
