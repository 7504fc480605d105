package convert

import (
	"context"
	"io"

	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/internal/sec"
	"github.com/doongeon/good-filings/pkg/queue"
)

// Output is the result of a synchronous conversion. Small artifacts come
// back inline; anything over the facade's response threshold is cached and
// referenced by CacheID for segmented retrieval.
type Output struct {
	FullText    string                    `json:"fullText,omitempty"`
	CacheID     string                    `json:"cacheId,omitempty"`
	TotalLength int                       `json:"totalLength"`
	Cached      bool                      `json:"cached"`
	Results     []models.ConversionResult `json:"results,omitempty"`
}

// Service is the conversion facade consumed by the HTTP handlers, the MCP
// tools and the background worker.
type Service interface {
	// Convert runs the fallback pipeline synchronously.
	Convert(ctx context.Context, path, enginePreference string) (*Output, error)
	// ReadSegment serves one bounded slice of a cached artifact.
	ReadSegment(ctx context.Context, cacheID string, offset int) (models.SegmentResponse, error)

	// SubmitConversion enqueues a background conversion.
	SubmitConversion(ctx context.Context, path, enginePreference string) (*models.ConversionTask, error)
	// HandleConvertTask is the worker-side entry point.
	HandleConvertTask(ctx context.Context, task *queue.Task) error
	GetTaskStatus(ctx context.Context, taskID string) (*models.ConversionTask, error)
	GetTaskResult(ctx context.Context, taskID string) (io.ReadCloser, error)
	CancelTask(ctx context.Context, taskID string) error

	// DownloadFiling acquires a filing document from EDGAR.
	DownloadFiling(ctx context.Context, req sec.FilingRequest) (*sec.Filing, error)
	// RenderPDF prints a local HTML file to PDF.
	RenderPDF(ctx context.Context, inputPath, outputPath string) error
}
