package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/pkg/logger"
)

type entry struct {
	content   string
	createdAt time.Time
}

// MemoryStore keeps artifacts in process memory for the process lifetime.
// Writers only ever append new entries, so readers never observe a partially
// written artifact.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  logger.Logger
}

func NewMemoryStore(log logger.Logger) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		logger:  log,
	}
}

func (s *MemoryStore) Put(ctx context.Context, content string) (string, error) {
	id := uuid.New().String()

	s.mu.Lock()
	s.entries[id] = entry{content: content, createdAt: time.Now()}
	s.mu.Unlock()

	s.logger.Info("Artifact cached",
		logger.String("cacheId", id),
		logger.Int("chars", len(content)),
	)

	return id, nil
}

func (s *MemoryStore) GetSegment(ctx context.Context, id string, offset, segmentSize int) (models.SegmentResponse, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok {
		return models.SegmentResponse{}, fmt.Errorf("%w: %s", ErrUnknownCacheID, id)
	}

	total := len(e.content)
	if offset < 0 || offset > total {
		return models.SegmentResponse{}, fmt.Errorf("%w: offset %d, total length %d", ErrOffsetOutOfRange, offset, total)
	}
	if segmentSize < 0 {
		segmentSize = 0
	}

	end := offset + segmentSize
	if end > total {
		end = total
	}

	piece := trimToRuneBoundary(e.content[offset:end], end == total)

	return respond(id, piece, offset, total), nil
}

// Len reports the number of cached artifacts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
