// Package localfs provides local filesystem payload storage for prcache.
package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/codeGROOVE-dev/prcache/pkg/persist"
	"github.com/codeGROOVE-dev/prcache/pkg/store/compress"
)

const baseExt = ".cache"

// Store implements persist.Store using one file per payload.
//
//nolint:govet // fieldalignment - current layout groups related fields logically (mutex with map it protects)
type Store struct {
	subdirsMu   sync.RWMutex
	Dir         string              // Exported for testing - directory path
	subdirsMade map[string]bool     // Cache of created subdirectories
	compressor  compress.Compressor // Compression algorithm
	ext         string              // File extension based on compressor
}

var (
	_ persist.Store  = (*Store)(nil)
	_ persist.Lister = (*Store)(nil)
)

// New creates a file-based payload store rooted at dir, creating it if needed.
// Optional compressor enables compression (default: plain JSON with .cache extension).
func New(dir string, c ...compress.Compressor) (*Store, error) {
	if dir == "" {
		return nil, errors.New("dir cannot be empty")
	}

	comp := compress.None()
	if len(c) > 0 && c[0] != nil {
		comp = c[0]
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("cache dir not writable: %w", err)
	}
	_ = os.Remove(testFile) //nolint:errcheck // best-effort cleanup

	return &Store{
		Dir:         dir,
		subdirsMade: make(map[string]bool),
		compressor:  comp,
		ext:         baseExt + comp.Extension(),
	}, nil
}

// Location converts a cache key to a relative filename with squid-style directory layout.
// Hashes the key and uses first 2 characters of hex hash as subdirectory for even distribution
// (e.g., key "repos/o/r/pulls" -> "a3/a3f2....cache" or "a3/a3f2....cache.s" with S2 compression).
func (s *Store) Location(key string) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(h[:2], h+s.ext)
}

// path resolves loc under the store directory. Locations come from the
// persisted index, so anything escaping the directory is rejected.
func (s *Store) path(loc string) (string, error) {
	if !filepath.IsLocal(loc) {
		return "", fmt.Errorf("invalid location %q", loc)
	}
	return filepath.Join(s.Dir, loc), nil
}

// Read returns the decoded payload at loc.
func (s *Store) Read(_ context.Context, loc string) ([]byte, error) {
	fn, err := s.path(loc)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fn)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persist.ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	out, err := s.compressor.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}

// Exists reports whether a payload file is present at loc.
func (s *Store) Exists(_ context.Context, loc string) (bool, error) {
	fn, err := s.path(loc)
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(fn)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}
	return fi.Mode().IsRegular(), nil
}

// Write saves a payload to loc atomically.
func (s *Store) Write(_ context.Context, loc string, data []byte) error {
	fn, err := s.path(loc)
	if err != nil {
		return err
	}
	dir := filepath.Dir(fn)

	// Check if subdirectory already created (cache to avoid syscalls)
	s.subdirsMu.RLock()
	exists := s.subdirsMade[dir]
	s.subdirsMu.RUnlock()

	if !exists {
		s.subdirsMu.Lock()
		if !s.subdirsMade[dir] {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				s.subdirsMu.Unlock()
				return fmt.Errorf("create subdirectory: %w", err)
			}
			s.subdirsMade[dir] = true
		}
		s.subdirsMu.Unlock()
	}

	enc, err := s.compressor.Encode(data)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, enc, 0o600); err != nil {
		// The subdirectory may have been removed underneath us.
		s.forget(dir)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, fn); err != nil {
		rmErr := os.Remove(tmp)
		return errors.Join(fmt.Errorf("rename file: %w", err), rmErr)
	}

	return nil
}

func (s *Store) forget(dir string) {
	s.subdirsMu.Lock()
	delete(s.subdirsMade, dir)
	s.subdirsMu.Unlock()
}

// Delete removes the payload at loc.
func (s *Store) Delete(_ context.Context, loc string) error {
	fn, err := s.path(loc)
	if err != nil {
		return err
	}
	if err := os.Remove(fn); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// List returns the location of every payload file under the shard
// subdirectories, whatever its compressor, plus leftover temp files.
func (s *Store) List(ctx context.Context) ([]string, error) {
	shards, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache directory: %w", err)
	}

	var locs []string
	for _, shard := range shards {
		select {
		case <-ctx.Done():
			return locs, ctx.Err()
		default:
		}

		if !shard.IsDir() || !isShard(shard.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.Dir, shard.Name()))
		if err != nil {
			return locs, fmt.Errorf("read shard directory: %w", err)
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.Contains(name, baseExt) {
				continue
			}
			locs = append(locs, filepath.Join(shard.Name(), name))
		}
	}
	return locs, nil
}

func isShard(name string) bool {
	if len(name) != 2 {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}

// Close cleans up resources.
func (*Store) Close() error {
	// No resources to clean up for file-based persistence
	return nil
}
