package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/doongeon/good-filings/internal/engine"
	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/pkg/logger"
)

// Source produces the ordered chunks of a document. The returned cleanup
// releases any chunk files and is called exactly once.
type Source interface {
	Split(ctx context.Context, doc models.SourceDocument) ([]models.Chunk, func(), error)
}

// ChunkError records one terminally failed chunk.
type ChunkError struct {
	ChunkIndex int    `json:"chunkIndex"`
	Reason     string `json:"reason"`
}

// ConversionError means every engine failed on at least one chunk. Partial
// results are never returned as if complete.
type ConversionError struct {
	ChunkErrors []ChunkError
}

func (e *ConversionError) Error() string {
	indices := e.FailedChunkIndices()
	parts := make([]string, 0, len(e.ChunkErrors))
	for _, ce := range e.ChunkErrors {
		parts = append(parts, fmt.Sprintf("chunk %d: %s", ce.ChunkIndex, ce.Reason))
	}
	return fmt.Sprintf("conversion failed on %d chunk(s) %v: %s", len(indices), indices, strings.Join(parts, "; "))
}

// FailedChunkIndices returns the failed chunk indices in ascending order.
func (e *ConversionError) FailedChunkIndices() []int {
	indices := make([]int, 0, len(e.ChunkErrors))
	for _, ce := range e.ChunkErrors {
		indices = append(indices, ce.ChunkIndex)
	}
	sort.Ints(indices)
	return indices
}

// Pipeline drives per-chunk conversion with a two-tier retry policy: every
// chunk goes to the primary engine first, failed chunks are retried once on
// the fallback, and the pieces are reassembled in chunk order. Chunks convert
// concurrently; correctness depends only on chunk index, never on completion
// order.
type Pipeline struct {
	splitter      Source
	primary       engine.Engine
	fallback      engine.Engine
	maxConcurrent int
	logger        logger.Logger
}

// NewPipeline wires a pipeline. A nil fallback disables the second tier,
// which is how a caller pins conversion to a single engine.
func NewPipeline(sp Source, primary, fallback engine.Engine, maxConcurrent int, log logger.Logger) *Pipeline {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Pipeline{
		splitter:      sp,
		primary:       primary,
		fallback:      fallback,
		maxConcurrent: maxConcurrent,
		logger:        log,
	}
}

// Convert turns the whole document into text. On success the returned string
// is the concatenation of all chunk texts in ascending chunk order, byte for
// byte. The per-chunk results are returned alongside for diagnostics.
func (p *Pipeline) Convert(ctx context.Context, doc models.SourceDocument) (string, []models.ConversionResult, error) {
	chunks, cleanup, err := p.splitter.Split(ctx, doc)
	if err != nil {
		return "", nil, err
	}
	defer cleanup()

	restore, err := suppressOutput()
	if err != nil {
		return "", nil, err
	}
	defer restore()

	results := make([]models.ConversionResult, len(chunks))
	failures := make([]*ChunkError, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.maxConcurrent)

	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			// Terminal chunk failures are recorded, not returned: every
			// chunk must end up with a result before the verdict.
			results[chunk.Index], failures[chunk.Index] = p.convertChunk(gctx, chunk)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	var chunkErrs []ChunkError
	for _, failure := range failures {
		if failure != nil {
			chunkErrs = append(chunkErrs, *failure)
		}
	}
	if len(chunkErrs) > 0 {
		failed := &ConversionError{ChunkErrors: chunkErrs}
		p.logger.Error("Conversion failed",
			logger.String("path", doc.Path),
			logger.Any("failedChunks", failed.FailedChunkIndices()),
		)
		return "", results, failed
	}

	var sb strings.Builder
	for _, res := range results {
		sb.WriteString(res.Text)
	}

	p.logger.Info("Conversion completed",
		logger.String("path", doc.Path),
		logger.Int("chunks", len(chunks)),
		logger.Int("chars", sb.Len()),
	)

	return sb.String(), results, nil
}

// convertChunk tries the primary engine, then the fallback on the same
// chunk. When both fail the chunk is terminal, with the fallback's reason.
func (p *Pipeline) convertChunk(ctx context.Context, chunk models.Chunk) (models.ConversionResult, *ChunkError) {
	text, err := p.primary.Convert(ctx, chunk)
	if err == nil {
		return models.ConversionResult{
			ChunkIndex: chunk.Index,
			Text:       text,
			Engine:     p.primary.Name(),
			Succeeded:  true,
		}, nil
	}

	if p.fallback == nil {
		p.logger.Error("Engine failed with no fallback configured",
			logger.Int("chunkIndex", chunk.Index),
			logger.String("engine", p.primary.Name()),
			logger.Error(err),
		)
		return models.ConversionResult{
			ChunkIndex: chunk.Index,
			Engine:     p.primary.Name(),
		}, &ChunkError{ChunkIndex: chunk.Index, Reason: err.Error()}
	}

	p.logger.Warn("Primary engine failed, retrying with fallback",
		logger.Int("chunkIndex", chunk.Index),
		logger.String("primary", p.primary.Name()),
		logger.String("fallback", p.fallback.Name()),
		logger.Error(err),
	)

	text, ferr := p.fallback.Convert(ctx, chunk)
	if ferr == nil {
		return models.ConversionResult{
			ChunkIndex: chunk.Index,
			Text:       text,
			Engine:     p.fallback.Name(),
			Succeeded:  true,
		}, nil
	}

	return models.ConversionResult{
		ChunkIndex: chunk.Index,
		Engine:     p.fallback.Name(),
	}, &ChunkError{ChunkIndex: chunk.Index, Reason: ferr.Error()}
}
