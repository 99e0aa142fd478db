// Package draft provides an in-memory wizard draft store for local
// development and tests. Production deployments use the Supabase-backed
// store instead.
package draft

import (
	"context"
	"sync"
	"time"

	"github.com/makerlink/sourcing-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// MemoryStore holds wizard drafts keyed by device key with a TTL.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string]*domain.Draft
	ttl    time.Duration
	logger *zap.Logger
}

// NewMemoryStore creates an in-memory draft store. Drafts older than ttl
// are treated as absent.
func NewMemoryStore(ttl time.Duration, logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		drafts: make(map[string]*domain.Draft),
		ttl:    ttl,
		logger: logger,
	}
}

// AdoptIfOwnerMatches returns the stored draft only when its owner tag
// matches ownerID. A mismatch discards the draft: a draft left by one
// principal must never leak to another on the same device.
func (s *MemoryStore) AdoptIfOwnerMatches(_ context.Context, deviceKey, ownerID string) (*domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[deviceKey]
	if !ok {
		return nil, nil
	}
	if time.Since(d.UpdatedAt) > s.ttl {
		delete(s.drafts, deviceKey)
		return nil, nil
	}
	if d.OwnerID != ownerID {
		s.logger.Info("discarding wizard draft with mismatched owner tag",
			zap.String("stored_owner", d.OwnerID),
			zap.String("current_owner", ownerID),
		)
		delete(s.drafts, deviceKey)
		return nil, nil
	}

	copied := *d
	return &copied, nil
}

// Save stores the draft under deviceKey. Last write wins.
func (s *MemoryStore) Save(_ context.Context, deviceKey string, d *domain.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *d
	copied.UpdatedAt = time.Now()
	s.drafts[deviceKey] = &copied
	return nil
}

// Clear removes the draft under deviceKey, if any.
func (s *MemoryStore) Clear(_ context.Context, deviceKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, deviceKey)
	return nil
}
