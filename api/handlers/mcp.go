package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/doongeon/good-filings/internal/sec"
	"github.com/doongeon/good-filings/internal/service/convert"
	"github.com/doongeon/good-filings/pkg/logger"
)

// MCPHandler exposes the conversion tools over MCP JSON-RPC so that LLM
// clients can call them directly. Tool results are JSON strings wrapped in
// the standard text content envelope.
type MCPHandler struct {
	service convert.Service
	logger  logger.Logger
}

func NewMCPHandler(service convert.Service, logger logger.Logger) *MCPHandler {
	return &MCPHandler{
		service: service,
		logger:  logger,
	}
}

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

type ReadAsMarkdownArgs struct {
	InputFilePath string `json:"input_file_path"`
	Engine        string `json:"engine"`
}

type GetSegmentArgs struct {
	CacheID string `json:"cache_id"`
	Offset  int    `json:"offset"`
}

type HTMLToPDFArgs struct {
	InputFilePath  string `json:"input_file_path"`
	OutputFilePath string `json:"output_file_path"`
}

type DownloadSECFilingArgs struct {
	CIK        string `json:"cik"`
	Year       int    `json:"year"`
	FilingType string `json:"filing_type"`
	OutputDir  string `json:"output_dir_path"`
}

// Handle is the POST /mcp entry point.
func (h *MCPHandler) Handle(c *gin.Context) {
	var req JSONRPCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp := makeErrorResponse(nil, ErrParse, "Parse error")
		c.JSON(http.StatusOK, resp)
		return
	}

	resp := h.processRequest(c.Request.Context(), req)
	if resp == nil {
		// Notifications must not generate a response.
		c.Status(http.StatusAccepted)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// processRequest processes the JSON-RPC request and returns a response.
// Returns nil for notifications.
func (h *MCPHandler) processRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	if req.Method == "initialize" {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": "2024-11-05",
				"capabilities": map[string]interface{}{
					"tools": map[string]interface{}{},
				},
				"serverInfo": map[string]interface{}{
					"name":    "good-filings",
					"version": "1.0.0",
				},
			},
		}
	}

	if req.Method == "notifications/initialized" {
		return nil
	}

	if req.Method == "tools/list" {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  ListToolsResult{Tools: toolCatalog()},
		}
	}

	if req.Method == "tools/call" {
		var params CallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			h.logger.Warn("Invalid params structure", logger.Error(err))
			resp := makeErrorResponse(req.ID, ErrInvalidParams, "Invalid params")
			return &resp
		}

		switch params.Name {
		case "read_as_markdown":
			return h.callReadAsMarkdown(ctx, req.ID, params.Arguments)
		case "get_markdown_segment":
			return h.callGetSegment(ctx, req.ID, params.Arguments)
		case "html_to_pdf":
			return h.callHTMLToPDF(ctx, req.ID, params.Arguments)
		case "download_sec_filing":
			return h.callDownloadSECFiling(ctx, req.ID, params.Arguments)
		}

		h.logger.Warn("Tool not found", logger.String("tool", params.Name))
		resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found: "+params.Name)
		return &resp
	}

	h.logger.Warn("Unknown jsonrpc method", logger.String("method", req.Method))
	resp := makeErrorResponse(req.ID, ErrMethodNotFound, "Method not found")
	return &resp
}

func (h *MCPHandler) callReadAsMarkdown(ctx context.Context, id interface{}, args json.RawMessage) *JSONRPCResponse {
	var a ReadAsMarkdownArgs
	if err := json.Unmarshal(args, &a); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid arguments")
		return &resp
	}
	if a.InputFilePath == "" {
		resp := makeErrorResponse(id, ErrInvalidParams, "input_file_path is required")
		return &resp
	}

	out, err := h.service.Convert(ctx, a.InputFilePath, a.Engine)
	if err != nil {
		h.logger.Error("read_as_markdown failed",
			logger.String("path", a.InputFilePath),
			logger.Error(err),
		)
		return toolError(id, "Conversion failed: "+err.Error())
	}

	var payload map[string]interface{}
	if out.Cached {
		totalKB := float64(out.TotalLength) / 1024
		payload = map[string]interface{}{
			"status":      "success",
			"cache_id":    out.CacheID,
			"total_chars": out.TotalLength,
			"total_kb":    roundTo(totalKB, 2),
			"message": fmt.Sprintf(
				"Markdown content cached. Use 'get_markdown_segment' tool to retrieve content in chunks. Total size: %.2f KB",
				totalKB,
			),
		}
	} else {
		payload = map[string]interface{}{
			"status":      "success",
			"full_text":   out.FullText,
			"total_chars": out.TotalLength,
		}
	}

	h.logger.Info("Tool execution completed",
		logger.String("tool", "read_as_markdown"),
		logger.Bool("cached", out.Cached),
		logger.Int("totalChars", out.TotalLength),
	)
	return toolJSON(id, payload)
}

func (h *MCPHandler) callGetSegment(ctx context.Context, id interface{}, args json.RawMessage) *JSONRPCResponse {
	var a GetSegmentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid arguments")
		return &resp
	}
	if a.CacheID == "" {
		resp := makeErrorResponse(id, ErrInvalidParams, "cache_id is required")
		return &resp
	}

	seg, err := h.service.ReadSegment(ctx, a.CacheID, a.Offset)
	if err != nil {
		h.logger.Error("get_markdown_segment failed",
			logger.String("cacheId", a.CacheID),
			logger.Int("offset", a.Offset),
			logger.Error(err),
		)
		return toolError(id, "Error: "+err.Error())
	}

	read := seg.Offset + seg.Length
	payload := map[string]interface{}{
		"status":       "success",
		"cache_id":     seg.CacheID,
		"segment":      seg.Segment,
		"offset":       seg.Offset,
		"length":       seg.Length,
		"total_length": seg.TotalLength,
		"has_more":     seg.HasMore,
		"next_offset":  seg.NextOffset,
		"progress":     fmt.Sprintf("%d/%d characters", read, seg.TotalLength),
	}
	return toolJSON(id, payload)
}

func (h *MCPHandler) callHTMLToPDF(ctx context.Context, id interface{}, args json.RawMessage) *JSONRPCResponse {
	var a HTMLToPDFArgs
	if err := json.Unmarshal(args, &a); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid arguments")
		return &resp
	}
	if a.InputFilePath == "" || a.OutputFilePath == "" {
		resp := makeErrorResponse(id, ErrInvalidParams, "input_file_path and output_file_path are required")
		return &resp
	}

	if err := h.service.RenderPDF(ctx, a.InputFilePath, a.OutputFilePath); err != nil {
		h.logger.Error("html_to_pdf failed",
			logger.String("input", a.InputFilePath),
			logger.Error(err),
		)
		return toolError(id, "Render failed: "+err.Error())
	}

	return toolJSON(id, map[string]interface{}{
		"output_file_path": a.OutputFilePath,
	})
}

func (h *MCPHandler) callDownloadSECFiling(ctx context.Context, id interface{}, args json.RawMessage) *JSONRPCResponse {
	var a DownloadSECFilingArgs
	if err := json.Unmarshal(args, &a); err != nil {
		resp := makeErrorResponse(id, ErrInvalidParams, "Invalid arguments")
		return &resp
	}
	if a.CIK == "" || a.FilingType == "" {
		resp := makeErrorResponse(id, ErrInvalidParams, "cik and filing_type are required")
		return &resp
	}

	filing, err := h.service.DownloadFiling(ctx, sec.FilingRequest{
		CIK:        a.CIK,
		Year:       a.Year,
		FilingType: a.FilingType,
		OutputDir:  a.OutputDir,
	})
	if err != nil {
		h.logger.Error("download_sec_filing failed",
			logger.String("cik", a.CIK),
			logger.Error(err),
		)
		return toolError(id, "Error: "+err.Error())
	}

	return toolJSON(id, map[string]interface{}{
		"local_path":       filing.LocalPath,
		"accession_number": filing.AccessionNumber,
		"filing_type":      filing.FilingType,
		"filing_date":      filing.FilingDate.Format("2006-01-02"),
		"primary_document": filing.PrimaryDocument,
	})
}

func toolCatalog() []Tool {
	return []Tool{
		{
			Name: "read_as_markdown",
			Description: `Read a PDF file and convert it to markdown format.

Large PDFs are split into page-range chunks and converted in parallel. If the
result exceeds the response size limit it is cached and a cache_id is
returned; use get_markdown_segment to page through the content.`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"input_file_path": map[string]string{
						"type":        "string",
						"description": "Path to the PDF file relative to the project root (e.g., \"pdf/file.pdf\")",
					},
					"engine": map[string]string{
						"type":        "string",
						"description": "Parsing engine to use. \"llama-cloud\" (default) uses the cloud parser, \"pdftext\" uses the local text extractor",
					},
				},
				"required": []string{"input_file_path"},
			},
		},
		{
			Name: "get_markdown_segment",
			Description: `Retrieve a segment of cached markdown content.

Returns a bounded slice (100KB) together with has_more and next_offset so the
full artifact can be read incrementally.`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"cache_id": map[string]string{
						"type":        "string",
						"description": "The cache ID returned from read_as_markdown",
					},
					"offset": map[string]interface{}{
						"type":        "integer",
						"description": "Starting character position (default: 0)",
						"minimum":     0,
					},
				},
				"required": []string{"cache_id"},
			},
		},
		{
			Name:        "html_to_pdf",
			Description: "Convert an HTML file to PDF using a headless browser.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"input_file_path": map[string]string{
						"type":        "string",
						"description": "Path to the HTML file relative to the project root (e.g., \"html/file.htm\")",
					},
					"output_file_path": map[string]string{
						"type":        "string",
						"description": "Path where the PDF will be saved relative to the project root (e.g., \"pdf/output.pdf\")",
					},
				},
				"required": []string{"input_file_path", "output_file_path"},
			},
		},
		{
			Name:        "download_sec_filing",
			Description: "Download a SEC / EDGAR filing document. Supported types: 8-K, 10-Q, 10-K, DEF 14A. Years 2021 through 2025.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"cik": map[string]string{
						"type":        "string",
						"description": "Company CIK (with or without leading zeros)",
					},
					"year": map[string]interface{}{
						"type":        "integer",
						"description": "Year to search for (2021 ~ 2025)",
					},
					"filing_type": map[string]string{
						"type":        "string",
						"description": "Type of filing (\"8-K\" | \"10-Q\" | \"10-K\" | \"DEF 14A\")",
					},
					"output_dir_path": map[string]string{
						"type":        "string",
						"description": "Output directory path under the html folder (e.g., \"html/amzn_2024_8_k\")",
					},
				},
				"required": []string{"cik", "year", "filing_type", "output_dir_path"},
			},
		},
	}
}

func makeErrorResponse(id interface{}, code int, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
		},
		ID: id,
	}
}

// toolJSON wraps a payload as a JSON text content result.
func toolJSON(id interface{}, payload map[string]interface{}) *JSONRPCResponse {
	data, err := json.Marshal(payload)
	if err != nil {
		resp := makeErrorResponse(id, ErrInternal, "Failed to marshal result")
		return &resp
	}
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: ToolResult{
			Content: []ToolContent{{Type: "text", Text: string(data)}},
		},
	}
}

// toolError reports a tool-level failure without failing the RPC itself.
func toolError(id interface{}, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: ToolResult{
			Content: []ToolContent{{Type: "text", Text: message}},
			IsError: true,
		},
	}
}

func roundTo(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}
