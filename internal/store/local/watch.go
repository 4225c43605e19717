package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"memorialwall/internal/model"
	"memorialwall/internal/wall"
)

// watcher turns rewrites of a scope file by other processes into change events
type watcher struct {
	store    *Store
	scope    string
	path     string
	fsw      *fsnotify.Watcher
	onChange func(model.Event)

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// Subscribe watches the scope file for changes made by other processes.
// Writes made through this Store produce no events.
func (s *Store) Subscribe(ctx context.Context, scope string, onChange func(model.Event)) (wall.Subscription, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", wall.ErrConnectivity, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wall.ErrConnectivity, err)
	}
	// ファイル単体ではなくディレクトリを監視する (rename で inode が変わるため)
	if err := fsw.Add(s.dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("%w: %v", wall.ErrConnectivity, err)
	}

	s.mu.Lock()
	if _, ok := s.known[scope]; !ok {
		current, err := s.read(scope)
		if err != nil {
			current = []model.Entry{}
		}
		s.known[scope] = current
	}
	s.mu.Unlock()

	w := &watcher{
		store:    s,
		scope:    scope,
		path:     filepath.Clean(s.Path(scope)),
		fsw:      fsw,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run(ctx)

	s.log.Debugf("[local %s] 👀 Watching %s", scope, w.path)
	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit
func (w *watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
		err = w.fsw.Close()
	})
	return err
}

func (w *watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			for _, ev := range w.store.sync(w.scope) {
				w.onChange(ev)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.store.log.Warnf("[local %s] ⚠️  Watch error: %v", w.scope, err)
		}
	}
}

// sync re-reads scope and returns the events that turn the last known
// content into the current one
func (s *Store) sync(scope string) []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(scope)
	if err != nil {
		s.log.Debugf("[local %s] Ignoring unreadable data: %v", scope, err)
		current = []model.Entry{}
	}

	events := diff(scope, s.known[scope], current)
	s.known[scope] = current
	return events
}

// diff computes Deleted, Updated and Created events from old to cur.
// Created events are ordered oldest first so that prepending them
// reproduces the order of cur.
func diff(scope string, old, cur []model.Entry) []model.Event {
	oldByID := make(map[string]model.Entry, len(old))
	for _, e := range old {
		oldByID[e.ID] = e
	}
	curIDs := make(map[string]struct{}, len(cur))
	for _, e := range cur {
		curIDs[e.ID] = struct{}{}
	}

	var events []model.Event
	for _, e := range old {
		if _, ok := curIDs[e.ID]; !ok {
			events = append(events, model.Deleted(scope, e.ID, time.Now().UTC()))
		}
	}
	for _, e := range cur {
		if prev, ok := oldByID[e.ID]; ok && !sameEntry(prev, e) {
			events = append(events, model.Updated(e))
		}
	}
	for i := len(cur) - 1; i >= 0; i-- {
		if _, ok := oldByID[cur[i].ID]; !ok {
			events = append(events, model.Created(cur[i]))
		}
	}
	return events
}

func sameEntry(a, b model.Entry) bool {
	return a.ID == b.ID &&
		a.Scope == b.Scope &&
		a.Author == b.Author &&
		a.Body == b.Body &&
		a.CreatedAt.Equal(b.CreatedAt)
}
