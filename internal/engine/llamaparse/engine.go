package llamaparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/doongeon/good-filings/config"
	"github.com/doongeon/good-filings/internal/engine"
	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/pkg/logger"
)

const EngineName = "llama-cloud"

// uploadResponse is the parsing job handle returned on upload.
type uploadResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type markdownResponse struct {
	Markdown string `json:"markdown"`
}

// Engine converts chunks with the LlamaParse cloud API: upload the chunk
// file, poll the parsing job, fetch the markdown result.
type Engine struct {
	config     *config.LlamaParseConfig
	httpClient *http.Client
	logger     logger.Logger
}

func NewEngine(cfg *config.LlamaParseConfig, log logger.Logger) *Engine {
	return &Engine{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log,
	}
}

func (e *Engine) Name() string {
	return EngineName
}

func (e *Engine) Convert(ctx context.Context, chunk models.Chunk) (string, error) {
	jobID, err := e.upload(ctx, chunk.Path)
	if err != nil {
		return "", engine.Fail(EngineName, err)
	}

	if err := e.waitForJob(ctx, jobID); err != nil {
		return "", engine.Fail(EngineName, err)
	}

	markdown, err := e.fetchMarkdown(ctx, jobID)
	if err != nil {
		return "", engine.Fail(EngineName, err)
	}

	e.logger.Debug("Chunk parsed",
		logger.Int("chunkIndex", chunk.Index),
		logger.String("jobId", jobID),
		logger.Int("chars", len(markdown)),
	)

	return markdown, nil
}

func (e *Engine) upload(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open chunk file: %w", err)
	}
	defer file.Close()

	buf := new(bytes.Buffer)
	writer := multipart.NewWriter(buf)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to copy chunk file: %w", err)
	}

	fields := map[string]string{
		"result_type":        e.config.ResultType,
		"language":           e.config.Language,
		"disable_ocr":        strconv.FormatBool(e.config.DisableOCR),
		"hide_headers":       strconv.FormatBool(e.config.HideHeaders),
		"hide_footers":       strconv.FormatBool(e.config.HideFooters),
		"skip_diagonal_text": "true",
		"split_by_page":      "true",
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.config.BaseURL+"/api/parsing/upload", buf)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	var result uploadResponse
	if err := e.doJSON(req, &result); err != nil {
		return "", err
	}
	if result.Error != "" {
		return "", fmt.Errorf("upload rejected: %s", result.Error)
	}
	if result.ID == "" {
		return "", fmt.Errorf("upload response missing job id")
	}

	return result.ID, nil
}

func (e *Engine) waitForJob(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, "GET", e.config.BaseURL+"/api/parsing/job/"+jobID, nil)
		if err != nil {
			return fmt.Errorf("failed to create job request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

		var job jobResponse
		if err := e.doJSON(req, &job); err != nil {
			return err
		}

		switch job.Status {
		case "SUCCESS":
			return nil
		case "ERROR", "CANCELED":
			if job.Error != "" {
				return fmt.Errorf("parsing job %s failed: %s", jobID, job.Error)
			}
			return fmt.Errorf("parsing job %s failed", jobID)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) fetchMarkdown(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", e.config.BaseURL+"/api/parsing/job/"+jobID+"/result/markdown", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create result request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)

	var result markdownResponse
	if err := e.doJSON(req, &result); err != nil {
		return "", err
	}

	return result.Markdown, nil
}

func (e *Engine) doJSON(req *http.Request, out interface{}) error {
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
