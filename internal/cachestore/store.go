// Package cachestore implements the filesystem-backed, content-addressed
// memoization store: cached stage results are written as JSON files
// sharded by the first two hex characters of their cache key, and a hit
// is only honored once the entry's declared output files are confirmed
// still present.
package cachestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Result is the serializable outcome of a stage execution, as stored in
// a cache entry.
type Result struct {
	Success    bool     `json:"success"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
	ExitCode   int      `json:"exit_code"`
	Outputs    []string `json:"outputs"`
	DurationMS int64    `json:"duration_ms"`
}

// Entry is one cache record on disk.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	StageName string    `json:"stage_name"`
	CacheKey  string    `json:"cache_key"`
	Result    Result    `json:"result"`
}

// Stats summarizes the on-disk cache contents.
type Stats struct {
	Entries     int
	SizeBytes   int64
	OldestEntry *time.Time
	NewestEntry *time.Time
}

// FormattedSize renders SizeBytes in the largest unit that keeps the
// value readable.
func (s Stats) FormattedSize() string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case s.SizeBytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(s.SizeBytes)/gb)
	case s.SizeBytes >= mb:
		return fmt.Sprintf("%.2f MB", float64(s.SizeBytes)/mb)
	case s.SizeBytes >= kb:
		return fmt.Sprintf("%.2f KB", float64(s.SizeBytes)/kb)
	default:
		return fmt.Sprintf("%d bytes", s.SizeBytes)
	}
}

// Store is a single-writer, many-reader filesystem cache. One Store
// should be shared across a run's stage executions via a single
// goroutine, or guarded externally; the embedded mutex only protects
// against concurrent Store callers within the same process.
type Store struct {
	mu  sync.RWMutex
	dir string
}

// New opens (and creates, if absent) a cache store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) pathFor(key string) string {
	prefixLen := 2
	if len(key) < prefixLen {
		prefixLen = len(key)
	}
	prefix, rest := key[:prefixLen], key[prefixLen:]
	return filepath.Join(s.dir, prefix, rest+".json")
}

// Lookup returns the cached result for key, if present and still valid.
// An entry is considered stale (and evicted) if any of its declared
// output files no longer exist, or if the stored JSON cannot be parsed.
func (s *Store) Lookup(key string) (*Result, bool) {
	s.mu.RLock()
	path := s.pathFor(key)
	data, err := os.ReadFile(path)
	s.mu.RUnlock()
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.evict(path)
		return nil, false
	}

	for _, out := range entry.Result.Outputs {
		if _, err := os.Stat(out); err != nil {
			s.evict(path)
			return nil, false
		}
	}

	result := entry.Result
	return &result, true
}

func (s *Store) evict(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(path)
}

// Put stores a result under key, overwriting any existing entry.
func (s *Store) Put(key, stageName string, result Result, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	entry := Entry{
		Timestamp: now,
		StageName: stageName,
		CacheKey:  key,
		Result:    result,
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Invalidate removes a single entry, if present.
func (s *Store) Invalidate(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathFor(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes every entry from the store, recreating an empty
// cache directory afterward.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return err
	}
	return os.MkdirAll(s.dir, 0o755)
}

// Stats walks the cache directory and summarizes its contents. Corrupt
// entries are silently skipped, consistent with Lookup treating them as
// a miss rather than an error.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{}

	prefixDirs, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, err
	}

	for _, prefixDir := range prefixDirs {
		if !prefixDir.IsDir() {
			continue
		}
		prefixPath := filepath.Join(s.dir, prefixDir.Name())
		files, err := os.ReadDir(prefixPath)
		if err != nil {
			continue
		}
		for _, f := range files {
			if filepath.Ext(f.Name()) != ".json" {
				continue
			}
			entryPath := filepath.Join(prefixPath, f.Name())
			data, err := os.ReadFile(entryPath)
			if err != nil {
				continue
			}
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				continue
			}
			stats.Entries++
			if info, err := os.Stat(entryPath); err == nil {
				stats.SizeBytes += info.Size()
			}
			if stats.OldestEntry == nil || entry.Timestamp.Before(*stats.OldestEntry) {
				t := entry.Timestamp
				stats.OldestEntry = &t
			}
			if stats.NewestEntry == nil || entry.Timestamp.After(*stats.NewestEntry) {
				t := entry.Timestamp
				stats.NewestEntry = &t
			}
		}
	}

	return stats, nil
}
