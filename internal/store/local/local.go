// Package local persists the message wall as a JSON file on this device.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"memorialwall/internal/model"
	"memorialwall/internal/wall"
)

// keySuffix is appended to the scope to form the storage key
const keySuffix = "messages"

// Key returns the storage key for scope
func Key(scope string) string {
	return scope + ":" + keySuffix
}

// Store keeps each scope's entries in <dir>/<scope>_messages.json
type Store struct {
	dir string
	log *zap.SugaredLogger
	now func() time.Time

	mu sync.Mutex
	// known is the last content written or observed per scope, used to turn
	// file changes made by other processes into change events
	known map[string][]model.Entry
}

var (
	_ wall.Store   = (*Store)(nil)
	_ wall.Clearer = (*Store)(nil)
)

// New creates a Store rooted at dir
func New(dir string, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{
		dir:   dir,
		log:   log,
		now:   time.Now,
		known: make(map[string][]model.Entry),
	}
}

// Path returns the file backing scope
func (s *Store) Path(scope string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(Key(scope))
	return filepath.Join(s.dir, name+".json")
}

// Live is false: the local store never echoes its own writes
func (s *Store) Live() bool { return false }

// Load reads the persisted list. Missing, corrupt or unreadable data yields
// an empty list; only read failures other than corruption are logged as
// warnings.
func (s *Store) Load(_ context.Context, scope string) ([]model.Entry, error) {
	entries, err := s.read(scope)
	switch {
	case errors.Is(err, wall.ErrParse):
		s.log.Debugf("[local %s] Ignoring corrupt data: %v", scope, err)
		entries = []model.Entry{}
	case err != nil:
		s.log.Warnf("[local %s] ⚠️  Failed to read %s, continuing with an empty list: %v", scope, s.Path(scope), err)
		entries = []model.Entry{}
	}

	s.mu.Lock()
	s.known[scope] = entries
	s.mu.Unlock()

	return entries, nil
}

// read returns the file contents; wall.ErrParse marks corrupt data
func (s *Store) read(scope string) ([]model.Entry, error) {
	data, err := os.ReadFile(s.Path(scope))
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Entry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []model.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", wall.ErrParse, err)
	}
	if entries == nil {
		entries = []model.Entry{}
	}
	return entries, nil
}

// Insert prepends a new entry with a fresh id and the local time and
// persists the full list.
func (s *Store) Insert(ctx context.Context, scope, author, body string) (model.Entry, error) {
	e := model.Entry{
		ID:        uuid.NewString(),
		Scope:     scope,
		Author:    author,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(scope)
	if err != nil {
		s.log.Debugf("[local %s] Replacing unreadable data: %v", scope, err)
		current = []model.Entry{}
	}

	next := append([]model.Entry{e}, current...)
	if err := s.write(scope, next); err != nil {
		return model.Entry{}, fmt.Errorf("%w: %v", wall.ErrWrite, err)
	}
	return e, nil
}

// Clear removes every entry of scope from this device
func (s *Store) Clear(_ context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(scope, []model.Entry{}); err != nil {
		return fmt.Errorf("%w: %v", wall.ErrWrite, err)
	}
	return nil
}

// write replaces the file atomically. Callers hold s.mu.
func (s *Store) write(scope string, entries []model.Entry) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".wall-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.Path(scope)); err != nil {
		return err
	}

	s.known[scope] = entries
	return nil
}
