package cache

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/pkg/logger"
)

const redisKeyPrefix = "artifact:"

// RedisStore serves the same Store contract out of redis, which lets several
// server replicas answer segment reads for each other's conversions. A zero
// TTL keeps artifacts until the keyspace is flushed.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

func (s *RedisStore) Put(ctx context.Context, content string) (string, error) {
	id := uuid.New().String()

	if err := s.client.Set(ctx, redisKeyPrefix+id, content, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to cache artifact: %w", err)
	}

	s.logger.Info("Artifact cached",
		logger.String("cacheId", id),
		logger.Int("chars", len(content)),
	)

	return id, nil
}

func (s *RedisStore) GetSegment(ctx context.Context, id string, offset, segmentSize int) (models.SegmentResponse, error) {
	key := redisKeyPrefix + id

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return models.SegmentResponse{}, fmt.Errorf("failed to check cache entry: %w", err)
	}
	if exists == 0 {
		return models.SegmentResponse{}, fmt.Errorf("%w: %s", ErrUnknownCacheID, id)
	}

	length, err := s.client.StrLen(ctx, key).Result()
	if err != nil {
		return models.SegmentResponse{}, fmt.Errorf("failed to read cache entry length: %w", err)
	}
	total := int(length)

	if offset < 0 || offset > total {
		return models.SegmentResponse{}, fmt.Errorf("%w: offset %d, total length %d", ErrOffsetOutOfRange, offset, total)
	}
	if segmentSize < 0 {
		segmentSize = 0
	}
	if offset == total {
		return respond(id, "", offset, total), nil
	}

	// Fetch a few spare bytes so the rune-boundary trim never starves the
	// segment. GETRANGE bounds are inclusive.
	raw, err := s.client.GetRange(ctx, key, int64(offset), int64(offset+segmentSize+utf8.UTFMax-1)).Result()
	if err != nil {
		return models.SegmentResponse{}, fmt.Errorf("failed to read cache segment: %w", err)
	}

	atEnd := offset+len(raw) >= total && len(raw) <= segmentSize
	piece := raw
	if len(piece) > segmentSize {
		piece = piece[:segmentSize]
		atEnd = false
	}
	piece = trimToRuneBoundary(piece, atEnd)

	return respond(id, piece, offset, total), nil
}
