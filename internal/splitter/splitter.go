package splitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/pkg/logger"
)

// PageRange is a half-open [Start, End) page interval.
type PageRange struct {
	Start int
	End   int
}

// PageRanges partitions [0, totalPages) into contiguous ranges of at most
// pagesPerChunk pages. The last range may be shorter. totalPages <= 0 yields
// no ranges.
func PageRanges(totalPages, pagesPerChunk int) []PageRange {
	if totalPages <= 0 || pagesPerChunk <= 0 {
		return nil
	}

	ranges := make([]PageRange, 0, (totalPages+pagesPerChunk-1)/pagesPerChunk)
	for start := 0; start < totalPages; start += pagesPerChunk {
		end := start + pagesPerChunk
		if end > totalPages {
			end = totalPages
		}
		ranges = append(ranges, PageRange{Start: start, End: end})
	}
	return ranges
}

// Splitter partitions oversized PDFs into page-range chunk files small enough
// for a single engine call.
type Splitter struct {
	pagesPerChunk int
	logger        logger.Logger
}

func NewSplitter(pagesPerChunk int, log logger.Logger) *Splitter {
	if pagesPerChunk <= 0 {
		pagesPerChunk = 40
	}
	return &Splitter{
		pagesPerChunk: pagesPerChunk,
		logger:        log,
	}
}

// Inspect opens the source and reports it with its page count.
func (s *Splitter) Inspect(path string) (models.SourceDocument, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return models.SourceDocument{}, &models.InvalidDocumentError{Path: path, Reason: err.Error()}
	}
	defer f.Close()

	pages := r.NumPage()
	if pages <= 0 {
		return models.SourceDocument{}, &models.InvalidDocumentError{Path: path, Reason: "document reports no pages"}
	}

	return models.SourceDocument{Path: path, Pages: pages}, nil
}

// Split produces ordered chunks covering the whole document. Documents that
// fit in a single chunk are not rewritten: the chunk points at the source
// file itself and cleanup is a no-op. Larger documents get one standalone
// PDF per page range in a temp dir; cleanup removes the dir and must be
// called once the chunks are no longer needed.
func (s *Splitter) Split(ctx context.Context, doc models.SourceDocument) ([]models.Chunk, func(), error) {
	noop := func() {}

	ranges := PageRanges(doc.Pages, s.pagesPerChunk)
	if len(ranges) == 0 {
		return nil, noop, &models.InvalidDocumentError{Path: doc.Path, Reason: "document reports no pages"}
	}

	if len(ranges) == 1 {
		chunk := models.Chunk{
			Index:     0,
			StartPage: ranges[0].Start,
			EndPage:   ranges[0].End,
			Path:      doc.Path,
			Source:    doc,
		}
		return []models.Chunk{chunk}, noop, nil
	}

	tempDir, err := os.MkdirTemp("", "filing-chunks-*")
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create chunk dir: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(tempDir); err != nil {
			s.logger.Warn("Failed to remove chunk dir",
				logger.String("dir", tempDir),
				logger.Error(err),
			)
		}
	}

	chunks := make([]models.Chunk, 0, len(ranges))
	for i, pr := range ranges {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, noop, err
		}

		chunkPath := filepath.Join(tempDir, fmt.Sprintf("chunk_%d_%d.pdf", pr.Start, pr.End))
		// pdfcpu page selection is 1-based and inclusive.
		selection := []string{fmt.Sprintf("%d-%d", pr.Start+1, pr.End)}
		if err := api.TrimFile(doc.Path, chunkPath, selection, nil); err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("failed to write chunk %d (%d-%d): %w", i, pr.Start, pr.End, err)
		}

		chunks = append(chunks, models.Chunk{
			Index:     i,
			StartPage: pr.Start,
			EndPage:   pr.End,
			Path:      chunkPath,
			Source:    doc,
		})
	}

	s.logger.Info("Split document into chunks",
		logger.String("path", doc.Path),
		logger.Int("pages", doc.Pages),
		logger.Int("chunks", len(chunks)),
	)

	return chunks, cleanup, nil
}
