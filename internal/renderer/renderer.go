package renderer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/doongeon/good-filings/pkg/logger"
)

// Renderer turns a local HTML file into a PDF. The destination directory is
// guaranteed to exist before anything is written.
type Renderer interface {
	RenderPDF(ctx context.Context, inputPath, outputPath string) error
}

// ChromeRenderer prints through headless Chrome. EDGAR primary documents are
// HTML; printing them yields the PDF the conversion pipeline expects.
type ChromeRenderer struct {
	timeout time.Duration
	logger  logger.Logger
}

func NewChromeRenderer(timeout time.Duration, log logger.Logger) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ChromeRenderer{
		timeout: timeout,
		logger:  log,
	}
}

func (r *ChromeRenderer) RenderPDF(ctx context.Context, inputPath, outputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("HTML file not found: %s", inputPath)
	}

	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return fmt.Errorf("failed to resolve input path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	browserCtx, cancelBrowser := chromedp.NewContext(ctx)
	defer cancelBrowser()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+absInput),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}

	if err := os.WriteFile(outputPath, pdf, 0644); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}

	r.logger.Info("Rendered HTML to PDF",
		logger.String("input", inputPath),
		logger.String("output", outputPath),
		logger.Int("bytes", len(pdf)),
	)

	return nil
}
