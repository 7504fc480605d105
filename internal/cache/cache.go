package cache

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/doongeon/good-filings/internal/models"
)

var (
	// ErrUnknownCacheID means the id references no stored artifact.
	ErrUnknownCacheID = errors.New("unknown cache id")
	// ErrOffsetOutOfRange means offset > total length. Offset == total is
	// valid and yields the empty terminal segment.
	ErrOffsetOutOfRange = errors.New("offset out of range")
)

// Store holds completed artifacts under opaque identifiers and serves them
// back as bounded, resumable segments. Entries are immutable once visible;
// reads are idempotent and side-effect free.
type Store interface {
	// Put stores content under a fresh collision-resistant identifier.
	Put(ctx context.Context, content string) (string, error)
	// GetSegment returns the UTF-8-safe slice [offset, offset+segmentSize)
	// clamped to the artifact length, plus the derived pagination fields.
	GetSegment(ctx context.Context, id string, offset, segmentSize int) (models.SegmentResponse, error)
}

// trimToRuneBoundary shortens piece so it never ends mid-rune. atEnd marks a
// piece that already reaches the end of the artifact and is returned as is.
func trimToRuneBoundary(piece string, atEnd bool) string {
	if atEnd {
		return piece
	}
	for len(piece) > 0 {
		r, size := utf8.DecodeLastRuneInString(piece)
		if r != utf8.RuneError || size != 1 {
			break
		}
		piece = piece[:len(piece)-1]
	}
	return piece
}

// respond derives the pagination fields from an already-sliced piece.
func respond(id, piece string, offset, total int) models.SegmentResponse {
	resp := models.SegmentResponse{
		CacheID:     id,
		Segment:     piece,
		Offset:      offset,
		Length:      len(piece),
		TotalLength: total,
		HasMore:     offset+len(piece) < total,
	}
	if resp.HasMore {
		next := offset + len(piece)
		resp.NextOffset = &next
	}
	return resp
}
