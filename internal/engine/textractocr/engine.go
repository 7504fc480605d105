package textractocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	cfg "github.com/doongeon/good-filings/config"
	"github.com/doongeon/good-filings/internal/engine"
	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/pkg/logger"
)

const EngineName = "textract"

// Engine runs AWS Textract text detection on a chunk. Useful for scanned
// exhibits where content-stream extraction comes back empty.
type Engine struct {
	client        *textract.Client
	minConfidence float32
	logger        logger.Logger
}

func NewEngine(ctx context.Context, c *cfg.TextractConfig, log logger.Logger) (*Engine, error) {
	creds := credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &Engine{
		client:        textract.NewFromConfig(awsCfg),
		minConfidence: float32(c.MinConfidence),
		logger:        log,
	}, nil
}

func (e *Engine) Name() string {
	return EngineName
}

func (e *Engine) Convert(ctx context.Context, chunk models.Chunk) (string, error) {
	data, err := os.ReadFile(chunk.Path)
	if err != nil {
		return "", engine.Fail(EngineName, fmt.Errorf("failed to read chunk: %w", err))
	}

	result, err := e.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{
			Bytes: data,
		},
	})
	if err != nil {
		return "", engine.Fail(EngineName, fmt.Errorf("failed to detect document text: %w", err))
	}

	lines := e.collectLines(result.Blocks)

	e.logger.Debug("Chunk OCRed",
		logger.Int("chunkIndex", chunk.Index),
		logger.Int("lines", len(lines)),
	)

	return strings.Join(lines, "\n"), nil
}

func (e *Engine) collectLines(blocks []types.Block) []string {
	var lines []string
	for _, block := range blocks {
		if block.BlockType == types.BlockTypeLine &&
			block.Text != nil &&
			block.Confidence != nil &&
			*block.Confidence >= e.minConfidence {
			lines = append(lines, *block.Text)
		}
	}
	return lines
}
