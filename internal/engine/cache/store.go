package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	entryExt   = ".json"
	bytesPerMB = 1 << 20
)

// Cache errors.
var (
	ErrMiss         = errors.New("cache miss")
	ErrDisabled     = errors.New("cache is disabled")
	ErrEmptyKey     = errors.New("cache key cannot be empty")
	ErrNoDirectory  = errors.New("cache directory cannot be empty")
	ErrCorruptEntry = errors.New("corrupt cache entry")
)

// Store is a directory of cached responses. It is safe for concurrent use
// by the goroutines of one batch window.
type Store struct {
	dir  string
	opts Options
	now  func() time.Time

	mu sync.RWMutex
}

// Stats describes the on-disk footprint of a Store.
type Stats struct {
	Entries int
	Expired int
	Bytes   int64
}

// Open prepares a store rooted at dir. A disabled store is returned as-is and
// never touches the filesystem.
func Open(dir string, opts Options) (*Store, error) {
	s := &Store{dir: dir, opts: opts, now: time.Now}
	if !opts.Enabled {
		return s, nil
	}
	if dir == "" {
		return nil, ErrNoDirectory
	}
	if opts.TTLSeconds <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTTL, opts.TTLSeconds)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return s, nil
}

// Enabled reports whether the store caches anything.
func (s *Store) Enabled() bool { return s != nil && s.opts.Enabled }

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// TTL returns the lifetime given to new entries.
func (s *Store) TTL() time.Duration { return s.opts.TTL() }

// Lookup returns the cached body for key. Expired entries are removed and
// reported as ErrMiss.
func (s *Store) Lookup(key string) (*Entry, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	s.mu.RLock()
	entry, err := s.read(s.path(key))
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if entry.ExpiredAt(s.now()) {
		s.mu.Lock()
		_ = os.Remove(s.path(key))
		s.mu.Unlock()
		return nil, ErrMiss
	}
	return entry, nil
}

// Put stores body under key, replacing any previous entry, then enforces
// the size limit.
func (s *Store) Put(key, method, path string, body json.RawMessage) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if key == "" {
		return ErrEmptyKey
	}

	data, err := json.Marshal(newEntry(key, method, path, body, s.opts.TTL(), s.now()))
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(key)
	tmp := target + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err = os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("committing cache entry: %w", err)
	}
	return s.enforceSizeLocked()
}

// Clear removes every entry and returns how many were removed.
func (s *Store) Clear() (int, error) {
	if !s.Enabled() {
		return 0, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listLocked()
	if err != nil {
		return 0, err
	}
	for i, f := range files {
		if rmErr := os.Remove(f.path); rmErr != nil && !os.IsNotExist(rmErr) {
			return i, fmt.Errorf("removing %s: %w", filepath.Base(f.path), rmErr)
		}
	}
	return len(files), nil
}

// InvalidatePrefix removes every entry whose request path starts with prefix
// and returns how many were removed. Unreadable entries are removed too.
func (s *Store) InvalidatePrefix(prefix string) (int, error) {
	if !s.Enabled() {
		return 0, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listLocked()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		entry, readErr := s.read(f.path)
		if readErr == nil && !strings.HasPrefix(entry.Path, prefix) {
			continue
		}
		if os.Remove(f.path) == nil {
			removed++
		}
	}
	return removed, nil
}

// Prune removes expired and unreadable entries and returns how many went.
func (s *Store) Prune() (int, error) {
	if !s.Enabled() {
		return 0, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listLocked()
	if err != nil {
		return 0, err
	}
	now := s.now()
	removed := 0
	for _, f := range files {
		entry, readErr := s.read(f.path)
		if readErr == nil && !entry.ExpiredAt(now) {
			continue
		}
		if os.Remove(f.path) == nil {
			removed++
		}
	}
	return removed, nil
}

// Stats walks the directory and reports entry counts and total size.
func (s *Store) Stats() (Stats, error) {
	if !s.Enabled() {
		return Stats{}, ErrDisabled
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := s.listLocked()
	if err != nil {
		return Stats{}, err
	}
	now := s.now()
	var st Stats
	for _, f := range files {
		st.Entries++
		st.Bytes += f.size
		if entry, readErr := s.read(f.path); readErr != nil || entry.ExpiredAt(now) {
			st.Expired++
		}
	}
	return st, nil
}

type cacheFile struct {
	path    string
	size    int64
	modTime time.Time
}

func (s *Store) listLocked() ([]cacheFile, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}
	files := make([]cacheFile, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != entryExt {
			continue
		}
		info, infoErr := de.Info()
		if infoErr != nil {
			continue
		}
		files = append(files, cacheFile{
			path:    filepath.Join(s.dir, de.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return files, nil
}

// enforceSizeLocked evicts the oldest entries until the directory fits in
// MaxSizeMB. Zero means unlimited.
func (s *Store) enforceSizeLocked() error {
	if s.opts.MaxSizeMB <= 0 {
		return nil
	}
	files, err := s.listLocked()
	if err != nil {
		return err
	}
	limit := int64(s.opts.MaxSizeMB) * bytesPerMB
	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= limit {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	for _, f := range files {
		if total <= limit {
			break
		}
		if os.Remove(f.path) == nil {
			total -= f.size
		}
	}
	return nil
}

func (s *Store) read(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	var entry Entry
	if err = json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptEntry, err)
	}
	return &entry, nil
}

// path maps a key to its file. Keys from RequestKey are hex and need no
// escaping; anything else is hashed so it cannot escape the directory.
func (s *Store) path(key string) string {
	if !isHex(key) {
		key = RequestKey("", key, nil, "")
	}
	return filepath.Join(s.dir, key+entryExt)
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return s != ""
}
