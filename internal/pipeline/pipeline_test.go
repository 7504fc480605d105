package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/pkg/logger"
)

// stubSource hands out a fixed chunk list without touching the filesystem.
type stubSource struct {
	chunks   []models.Chunk
	cleanups int32
}

func (s *stubSource) Split(ctx context.Context, doc models.SourceDocument) ([]models.Chunk, func(), error) {
	return s.chunks, func() { atomic.AddInt32(&s.cleanups, 1) }, nil
}

// stubEngine converts or fails per chunk index.
type stubEngine struct {
	name    string
	failOn  map[int]bool
	failAll bool
	delay   bool
	calls   int32
}

func (e *stubEngine) Name() string { return e.name }

func (e *stubEngine) Convert(ctx context.Context, chunk models.Chunk) (string, error) {
	atomic.AddInt32(&e.calls, 1)
	if e.delay {
		// Random delays force out-of-order completion.
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
	}
	if e.failAll || e.failOn[chunk.Index] {
		return "", errors.New(e.name + " refused chunk")
	}
	return fmt.Sprintf("[%s:%d]", e.name, chunk.Index), nil
}

func makeChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{Index: i, StartPage: i * 40, EndPage: (i + 1) * 40}
	}
	return chunks
}

func TestConvert_AllChunksOnPrimary(t *testing.T) {
	src := &stubSource{chunks: makeChunks(3)}
	primary := &stubEngine{name: "primary"}
	fallback := &stubEngine{name: "fallback"}

	p := NewPipeline(src, primary, fallback, 2, logger.NewTestLogger())
	text, results, err := p.Convert(context.Background(), models.SourceDocument{Path: "doc.pdf", Pages: 120})

	require.NoError(t, err)
	assert.Equal(t, "[primary:0][primary:1][primary:2]", text)
	assert.EqualValues(t, 0, fallback.calls)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, i, res.ChunkIndex)
		assert.Equal(t, "primary", res.Engine)
		assert.True(t, res.Succeeded)
	}
	assert.EqualValues(t, 1, src.cleanups)
}

func TestConvert_FallbackPicksUpFailedChunks(t *testing.T) {
	src := &stubSource{chunks: makeChunks(3)}
	primary := &stubEngine{name: "primary", failOn: map[int]bool{1: true}}
	fallback := &stubEngine{name: "fallback"}

	p := NewPipeline(src, primary, fallback, 2, logger.NewTestLogger())
	text, results, err := p.Convert(context.Background(), models.SourceDocument{Path: "doc.pdf", Pages: 120})

	require.NoError(t, err)
	assert.Equal(t, "[primary:0][fallback:1][primary:2]", text)
	assert.Equal(t, "fallback", results[1].Engine)
	assert.True(t, results[1].Succeeded)
	assert.EqualValues(t, 1, fallback.calls)
}

func TestConvert_BothEnginesFail(t *testing.T) {
	src := &stubSource{chunks: makeChunks(4)}
	primary := &stubEngine{name: "primary", failOn: map[int]bool{1: true, 3: true}}
	fallback := &stubEngine{name: "fallback", failAll: true}

	p := NewPipeline(src, primary, fallback, 2, logger.NewTestLogger())
	text, results, err := p.Convert(context.Background(), models.SourceDocument{Path: "doc.pdf", Pages: 160})

	require.Error(t, err)
	assert.Empty(t, text, "partial results must not come back as text")

	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, []int{1, 3}, convErr.FailedChunkIndices())

	// The fallback's failure reason wins.
	for _, ce := range convErr.ChunkErrors {
		assert.Contains(t, ce.Reason, "fallback refused chunk")
	}
	assert.False(t, results[1].Succeeded)
	assert.True(t, results[0].Succeeded)
	assert.EqualValues(t, 1, src.cleanups)
}

func TestConvert_NoFallbackConfigured(t *testing.T) {
	src := &stubSource{chunks: makeChunks(2)}
	primary := &stubEngine{name: "primary", failOn: map[int]bool{0: true}}

	p := NewPipeline(src, primary, nil, 2, logger.NewTestLogger())
	_, _, err := p.Convert(context.Background(), models.SourceDocument{Path: "doc.pdf", Pages: 80})

	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, []int{0}, convErr.FailedChunkIndices())
	assert.Contains(t, convErr.ChunkErrors[0].Reason, "primary refused chunk")
}

func TestConvert_OrderIsDeterministicUnderConcurrency(t *testing.T) {
	const n = 16
	src := &stubSource{chunks: makeChunks(n)}
	primary := &stubEngine{name: "primary", delay: true}

	want := ""
	for i := 0; i < n; i++ {
		want += fmt.Sprintf("[primary:%d]", i)
	}

	p := NewPipeline(src, primary, nil, 8, logger.NewTestLogger())
	for run := 0; run < 5; run++ {
		text, _, err := p.Convert(context.Background(), models.SourceDocument{Path: "doc.pdf", Pages: n * 40})
		require.NoError(t, err)
		assert.Equal(t, want, text)
	}
}

func TestConvert_SplitError(t *testing.T) {
	src := &failingSource{}
	p := NewPipeline(src, &stubEngine{name: "primary"}, nil, 2, logger.NewTestLogger())
	_, _, err := p.Convert(context.Background(), models.SourceDocument{Path: "doc.pdf"})
	require.Error(t, err)
}

type failingSource struct{}

func (f *failingSource) Split(ctx context.Context, doc models.SourceDocument) ([]models.Chunk, func(), error) {
	return nil, nil, errors.New("split failed")
}
