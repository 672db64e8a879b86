// Package watchdir watches a directory for newly dropped .torrent/magnet
// files and reports them on a channel once they have been stable for a
// short debounce period, so a file still being written by another
// process isn't picked up half-written. The debounce-map-plus-ticker
// shape is grounded on the fsnotify watcher pattern used elsewhere in
// the retrieved example pack.
package watchdir

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tearfur/transmission/internal/logger"
)

// Event reports one file that has settled and is ready to be added.
type Event struct {
	Path string
}

// WatchDir watches Dir for new .torrent files and magnet link files.
type WatchDir struct {
	watcher *fsnotify.Watcher
	EventsC chan Event

	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time

	closeC chan struct{}
	doneC  chan struct{}
	log    logger.Logger
}

// New starts watching dir. Files must be stable (no new write events)
// for debounce before they are reported.
func New(dir string, debounce time.Duration, l logger.Logger) (*WatchDir, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	w := &WatchDir{
		watcher:  fw,
		EventsC:  make(chan Event),
		debounce: debounce,
		pending:  make(map[string]time.Time),
		closeC:   make(chan struct{}),
		doneC:    make(chan struct{}),
		log:      l,
	}
	go w.processEvents()
	go w.processPending()
	return w, nil
}

func (w *WatchDir) processEvents() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isQualifying(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending[ev.Name] = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Debugln("watchdir error:", err)
		case <-w.closeC:
			return
		}
	}
}

func (w *WatchDir) processPending() {
	defer close(w.doneC)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			w.mu.Lock()
			var ready []string
			for path, last := range w.pending {
				if now.Sub(last) >= w.debounce {
					ready = append(ready, path)
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()
			for _, path := range ready {
				select {
				case w.EventsC <- Event{Path: path}:
				case <-w.closeC:
					return
				}
			}
		case <-w.closeC:
			return
		}
	}
}

// isQualifying reports whether path looks like a .torrent file or a
// magnet-link text file this engine should pick up (§6's watch-dir
// enable/force-generic knobs narrow this further at the session layer).
func isQualifying(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".torrent" || ext == ".magnet"
}

// Close stops the watcher.
func (w *WatchDir) Close() {
	close(w.closeC)
	w.watcher.Close()
	<-w.doneC
}
