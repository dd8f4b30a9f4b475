package index

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agorgl/blocky/internal/protocol"
)

// Service hands out immutable listing snapshots to concurrent request
// handlers. A snapshot is never mutated after construction: refreshing
// builds a new listing and swaps the pointer.
type Service struct {
	indexer *Indexer
	ttl     time.Duration

	mu      sync.Mutex // serializes rebuilds, not reads
	current atomic.Pointer[snapshot]
}

type snapshot struct {
	listing *protocol.Listing
	builtAt time.Time
}

// NewService wraps indexer with snapshot caching. A ttl of zero disables
// caching: every request gets a freshly built listing.
func NewService(indexer *Indexer, ttl time.Duration) *Service {
	return &Service{indexer: indexer, ttl: ttl}
}

// Listing returns the current listing snapshot, rebuilding it when the
// cached one is older than the ttl. Concurrent readers may share one
// snapshot; it is read-only by contract.
func (s *Service) Listing() (*protocol.Listing, error) {
	if snap := s.current.Load(); snap != nil && s.ttl > 0 && time.Since(snap.builtAt) < s.ttl {
		return snap.listing, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have refreshed while we waited for the lock.
	if snap := s.current.Load(); snap != nil && s.ttl > 0 && time.Since(snap.builtAt) < s.ttl {
		return snap.listing, nil
	}

	started := time.Now()
	listing, err := s.indexer.BuildListing()
	if err != nil {
		return nil, err
	}
	slog.Debug("index rebuilt", "files", len(listing.Files), "took", time.Since(started))

	s.current.Store(&snapshot{listing: listing, builtAt: time.Now()})
	return listing, nil
}

// ReadFile exposes validated reads against the indexed root.
func (s *Service) ReadFile(rel string) ([]byte, error) {
	return s.indexer.ReadFile(rel)
}
