// Package cache memoizes combined extraction results on the local
// filesystem, keyed by a content hash of the statement bytes. Re-uploading
// the same file skips extraction and fusion entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bankfuse/bankfuse/internal/fusion"
)

// ErrMiss is returned when no fresh entry exists for a key.
var ErrMiss = errors.New("cache miss")

// entry wraps a stored result with the metadata needed for expiry.
type entry struct {
	Key      string                 `json:"key"`
	StoredAt time.Time              `json:"stored_at"`
	Result   *fusion.CombinedResult `json:"result"`
}

// Store is a filesystem-backed result cache with TTL expiry.
type Store struct {
	dir    string
	ttl    time.Duration
	logger *slog.Logger
}

func NewStore(dir string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, ttl: ttl, logger: logger}, nil
}

// Key derives the cache key for statement bytes.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for a key, or ErrMiss when absent or stale.
func (s *Store) Get(ctx context.Context, key string) (*fusion.CombinedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read entry: %w", err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt entries behave like misses and get overwritten on Put.
		s.logger.Warn("discarding corrupt cache entry", slog.String("key", key))
		return nil, ErrMiss
	}

	if s.ttl > 0 && time.Since(e.StoredAt) > s.ttl {
		_ = os.Remove(s.path(key))
		return nil, ErrMiss
	}
	return e.Result, nil
}

// Put stores a result under a key. Writes go through a temp file and rename
// so readers never observe a partial entry.
func (s *Store) Put(ctx context.Context, key string, result *fusion.CombinedResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(entry{Key: key, StoredAt: time.Now(), Result: result})
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: close entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: store entry: %w", err)
	}
	return nil
}

// Sweep removes all expired entries and reports how many were deleted.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("cache: list entries: %w", err)
	}

	removed := 0
	for _, de := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if de.IsDir() || filepath.Ext(de.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.dir, de.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var e entry
		stale := json.Unmarshal(raw, &e) != nil ||
			(s.ttl > 0 && time.Since(e.StoredAt) > s.ttl)
		if stale {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Info("cache sweep finished", slog.Int("removed", removed))
	}
	return removed, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
