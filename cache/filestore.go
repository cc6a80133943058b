package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"
)

// FileStore persists one JSON envelope per key as a file. Writes are
// atomic (temp file + rename) so readers never observe a partial entry.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates a file-backed store rooted at dir. An empty dir
// falls back to ~/.paddock/cache.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		usr, err := user.Current()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(usr.HomeDir, ".paddock", "cache")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.GetStale(ctx, key)
	if err != nil {
		return nil, err
	}

	if !entry.Valid(s.now()) {
		_ = os.Remove(s.path(key))
		return nil, ErrNotFound
	}

	return entry.Data, nil
}

func (s *FileStore) GetStale(_ context.Context, key string) (Entry, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return Entry{}, ErrNotFound
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, ErrNotFound
	}

	return entry, nil
}

func (s *FileStore) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	entry := Entry{Data: data, StoredAt: s.now(), TTL: ttl}

	blob, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}

	// Write to a temporary file first, then rename (atomic operation).
	path := s.path(key)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, blob, 0o600); err != nil {
		return &WriteError{Key: key, Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &WriteError{Key: key, Err: err}
	}

	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context, ns Keyspace) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}

	prefix := sanitizeName(ns.Prefix())
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}

	return removed, nil
}

func (s *FileStore) Stats(_ context.Context, ns Keyspace) (Stats, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Stats{}, err
	}

	prefix := sanitizeName(ns.Prefix())
	stats := Stats{Keys: []string{}}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		stats.Keys = append(stats.Keys, strings.TrimSuffix(e.Name(), ".json"))
	}
	stats.Count = len(stats.Keys)

	return stats, nil
}

func (s *FileStore) Close() error { return nil }

// path generates the full filesystem path for a cache key.
func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, s.filename(key))
}

// filename maps a key to a safe file name. Very long keys fold their id
// into an md5 form but keep the namespace segment so Clear still finds
// them.
func (s *FileStore) filename(key string) string {
	name := sanitizeName(key)
	if len(name) <= 200 {
		return name + ".json"
	}

	if ns, rest, ok := strings.Cut(key, ":"); ok {
		return fmt.Sprintf("%s_hash_%x.json", sanitizeName(ns), md5.Sum([]byte(rest)))
	}
	return fmt.Sprintf("hash_%x.json", md5.Sum([]byte(key)))
}

// sanitizeName replaces characters that are unsafe in file names.
func sanitizeName(s string) string {
	unsafe := []string{":", "/", "\\", "?", "&", "=", "#", "<", ">", "|", "*", "\"", " "}
	for _, c := range unsafe {
		s = strings.ReplaceAll(s, c, "_")
	}
	return s
}
