package models

import (
	"fmt"
	"time"
)

// SourceDocument is an input file together with its page count. It is read
// once per conversion and never mutated afterwards.
type SourceDocument struct {
	Path  string `json:"path"`
	Pages int    `json:"pages"`
}

// Chunk is a contiguous page-range slice of a source document, the unit of
// independent conversion. StartPage is inclusive, EndPage exclusive.
// Path points at a standalone PDF holding exactly this page range; for a
// document small enough to convert in one call it is the source path itself.
type Chunk struct {
	Index     int            `json:"index"`
	StartPage int            `json:"startPage"`
	EndPage   int            `json:"endPage"`
	Path      string         `json:"path"`
	Source    SourceDocument `json:"source"`
}

// ConversionResult holds the outcome of converting one chunk.
type ConversionResult struct {
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
	Engine     string `json:"engine"`
	Succeeded  bool   `json:"succeeded"`
}

// SegmentResponse is a bounded slice of a cached artifact, derived per read.
// Offset + len(Segment) == NextOffset whenever HasMore is true. Field names
// follow the tool wire format consumed by MCP clients.
type SegmentResponse struct {
	CacheID     string `json:"cache_id"`
	Segment     string `json:"segment"`
	Offset      int    `json:"offset"`
	Length      int    `json:"length"`
	TotalLength int    `json:"total_length"`
	HasMore     bool   `json:"has_more"`
	NextOffset  *int   `json:"next_offset"`
}

// ConversionTask tracks an asynchronous conversion job.
type ConversionTask struct {
	ID        string            `json:"id"`
	Status    TaskStatus        `json:"status"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Progress  float64           `json:"progress"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// InvalidDocumentError reports a source that could not be opened or sized.
// It is fatal: nothing retries it.
type InvalidDocumentError struct {
	Path   string
	Reason string
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid document %s: %s", e.Path, e.Reason)
}
