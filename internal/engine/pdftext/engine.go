package pdftext

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/doongeon/good-filings/internal/engine"
	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/pkg/logger"
)

const EngineName = "pdftext"

// Engine is the local fallback: plain-text extraction straight from the PDF
// content streams. No network, no credentials; quality is below the cloud
// parser but it always degrades gracefully.
type Engine struct {
	logger logger.Logger
}

func NewEngine(log logger.Logger) *Engine {
	return &Engine{logger: log}
}

func (e *Engine) Name() string {
	return EngineName
}

func (e *Engine) Convert(ctx context.Context, chunk models.Chunk) (string, error) {
	f, r, err := pdf.Open(chunk.Path)
	if err != nil {
		return "", engine.Fail(EngineName, fmt.Errorf("failed to open chunk: %w", err))
	}
	defer f.Close()

	numPages := r.NumPage()
	texts := make([]string, 0, numPages)

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", engine.Fail(EngineName, err)
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", engine.Fail(EngineName, fmt.Errorf("failed to get text from page %d: %w", i, err))
		}
		texts = append(texts, text)
	}

	e.logger.Debug("Chunk extracted locally",
		logger.Int("chunkIndex", chunk.Index),
		logger.Int("pages", numPages),
	)

	return strings.Join(texts, "\n\n"), nil
}
