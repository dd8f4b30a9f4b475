// Package index builds listings of the files under the server root: one
// entry per regular file with its path relative to the root and the SHA-256
// of its contents.
package index

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agorgl/blocky/internal/protocol"
)

const hashCacheSize = 8192

// Indexer enumerates regular files under a root directory. Directories,
// symlinks and other non-regular files are skipped. Content hashes are
// cached by (size, mtime) so rebuilding a listing only re-hashes files
// that actually changed.
type Indexer struct {
	root     string
	excludes []string
	cache    *lru.Cache[string, hashCacheEntry]
}

type hashCacheEntry struct {
	size    int64
	modTime int64
	hash    string
}

// NewIndexer creates an indexer over root. Exclude patterns are doublestar
// globs matched against the forward-slash relative path (e.g. "**/*.tmp").
func NewIndexer(root string, excludes []string) (*Indexer, error) {
	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("index: invalid exclude pattern %q", pattern)
		}
	}
	cache, err := lru.New[string, hashCacheEntry](hashCacheSize)
	if err != nil {
		return nil, err
	}
	return &Indexer{root: root, excludes: excludes, cache: cache}, nil
}

// BuildListing walks the root and returns a fresh listing. Unreadable files
// are logged and skipped; one bad file never blocks the rest of the tree.
func (ix *Indexer) BuildListing() (*protocol.Listing, error) {
	listing := &protocol.Listing{Files: []protocol.ListingEntry{}}

	err := filepath.WalkDir(ix.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == ix.root {
				return err
			}
			slog.Warn("index walk", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(ix.root, p)
		if err != nil {
			slog.Warn("index rel path", "path", p, "error", err)
			return nil
		}
		rel = filepath.ToSlash(rel)

		if ix.excluded(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("index stat", "path", rel, "error", err)
			return nil
		}

		hash, err := ix.hashFile(p, rel, info)
		if err != nil {
			slog.Warn("index hash", "path", rel, "error", err)
			return nil
		}

		listing.Files = append(listing.Files, protocol.ListingEntry{Path: rel, Hash: hash})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index: walk %s: %w", ix.root, err)
	}
	return listing, nil
}

func (ix *Indexer) excluded(rel string) bool {
	for _, pattern := range ix.excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (ix *Indexer) hashFile(abs, rel string, info fs.FileInfo) (string, error) {
	if cached, ok := ix.cache.Get(rel); ok &&
		cached.size == info.Size() && cached.modTime == info.ModTime().UnixNano() {
		return cached.hash, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}

	hash := protocol.HashBytes(data)
	ix.cache.Add(rel, hashCacheEntry{
		size:    info.Size(),
		modTime: info.ModTime().UnixNano(),
		hash:    hash,
	})
	return hash, nil
}

// ReadFile reads a file under the root after validating the relative path.
func (ix *Indexer) ReadFile(rel string) ([]byte, error) {
	if err := protocol.ValidateRelPath(rel); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(rel)))
}
