package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doongeon/good-filings/internal/cache"
	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/internal/sec"
	"github.com/doongeon/good-filings/internal/service/convert"
	"github.com/doongeon/good-filings/pkg/logger"
	"github.com/doongeon/good-filings/pkg/queue"
)

// stubService backs handler tests without real engines or redis.
type stubService struct {
	convertOut *convert.Output
	convertErr error
	segment    models.SegmentResponse
	segmentErr error
	filing     *sec.Filing
	renderErr  error
}

func (s *stubService) Convert(ctx context.Context, path, enginePreference string) (*convert.Output, error) {
	return s.convertOut, s.convertErr
}

func (s *stubService) ReadSegment(ctx context.Context, cacheID string, offset int) (models.SegmentResponse, error) {
	return s.segment, s.segmentErr
}

func (s *stubService) SubmitConversion(ctx context.Context, path, enginePreference string) (*models.ConversionTask, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubService) HandleConvertTask(ctx context.Context, task *queue.Task) error {
	return fmt.Errorf("not implemented")
}

func (s *stubService) GetTaskStatus(ctx context.Context, taskID string) (*models.ConversionTask, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubService) GetTaskResult(ctx context.Context, taskID string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubService) CancelTask(ctx context.Context, taskID string) error {
	return fmt.Errorf("not implemented")
}

func (s *stubService) DownloadFiling(ctx context.Context, req sec.FilingRequest) (*sec.Filing, error) {
	return s.filing, nil
}

func (s *stubService) RenderPDF(ctx context.Context, inputPath, outputPath string) error {
	return s.renderErr
}

func newMCPRouter(svc convert.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewMCPHandler(svc, logger.NewTestLogger())
	r.POST("/mcp", h.Handle)
	return r
}

func postRPC(t *testing.T, r *gin.Engine, body string) (*httptest.ResponseRecorder, JSONRPCResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/mcp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp JSONRPCResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// toolText digs the text payload out of a tools/call response.
func toolText(t *testing.T, resp JSONRPCResponse) string {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ToolResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.NotEmpty(t, result.Content)
	return result.Content[0].Text
}

func TestMCP_Initialize(t *testing.T) {
	r := newMCPRouter(&stubService{})
	w, resp := postRPC(t, r, `{"jsonrpc":"2.0","method":"initialize","id":1}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2.0", resp.JSONRPC)
	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
}

func TestMCP_NotificationHasNoResponse(t *testing.T) {
	r := newMCPRouter(&stubService{})
	w, _ := postRPC(t, r, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestMCP_ToolsList(t *testing.T) {
	r := newMCPRouter(&stubService{})
	_, resp := postRPC(t, r, `{"jsonrpc":"2.0","method":"tools/list","id":2}`)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ListToolsResult
	require.NoError(t, json.Unmarshal(raw, &result))

	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"read_as_markdown", "get_markdown_segment", "html_to_pdf", "download_sec_filing",
	}, names)
}

func TestMCP_ReadAsMarkdown_Inline(t *testing.T) {
	r := newMCPRouter(&stubService{
		convertOut: &convert.Output{FullText: "# Filing", TotalLength: 8},
	})
	_, resp := postRPC(t, r, `{"jsonrpc":"2.0","method":"tools/call","id":3,
		"params":{"name":"read_as_markdown","arguments":{"input_file_path":"pdf/f.pdf"}}}`)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, resp)), &payload))
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, "# Filing", payload["full_text"])
	assert.EqualValues(t, 8, payload["total_chars"])
}

func TestMCP_ReadAsMarkdown_Cached(t *testing.T) {
	r := newMCPRouter(&stubService{
		convertOut: &convert.Output{CacheID: "abc", TotalLength: 204800, Cached: true},
	})
	_, resp := postRPC(t, r, `{"jsonrpc":"2.0","method":"tools/call","id":4,
		"params":{"name":"read_as_markdown","arguments":{"input_file_path":"pdf/f.pdf"}}}`)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, resp)), &payload))
	assert.Equal(t, "abc", payload["cache_id"])
	assert.EqualValues(t, 204800, payload["total_chars"])
	assert.EqualValues(t, 200, payload["total_kb"])
	assert.Contains(t, payload["message"], "get_markdown_segment")
	assert.NotContains(t, payload, "full_text")
}

func TestMCP_ReadAsMarkdown_MissingPath(t *testing.T) {
	r := newMCPRouter(&stubService{})
	_, resp := postRPC(t, r, `{"jsonrpc":"2.0","method":"tools/call","id":5,
		"params":{"name":"read_as_markdown","arguments":{}}}`)

	require.NotNil(t, resp.Error)
	errObj := resp.Error.(map[string]interface{})
	assert.EqualValues(t, ErrInvalidParams, errObj["code"])
}

func TestMCP_GetSegment(t *testing.T) {
	next := 100000
	r := newMCPRouter(&stubService{
		segment: models.SegmentResponse{
			CacheID:     "abc",
			Segment:     strings.Repeat("x", 100000),
			Offset:      0,
			Length:      100000,
			TotalLength: 250000,
			HasMore:     true,
			NextOffset:  &next,
		},
	})
	_, resp := postRPC(t, r, `{"jsonrpc":"2.0","method":"tools/call","id":6,
		"params":{"name":"get_markdown_segment","arguments":{"cache_id":"abc","offset":0}}}`)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(toolText(t, resp)), &payload))
	assert.Equal(t, "success", payload["status"])
	assert.EqualValues(t, 100000, payload["length"])
	assert.Equal(t, true, payload["has_more"])
	assert.EqualValues(t, 100000, payload["next_offset"])
	assert.Equal(t, "100000/250000 characters", payload["progress"])
}

func TestMCP_GetSegment_UnknownCache(t *testing.T) {
	r := newMCPRouter(&stubService{
		segmentErr: fmt.Errorf("%w: nope", cache.ErrUnknownCacheID),
	})
	_, resp := postRPC(t, r, `{"jsonrpc":"2.0","method":"tools/call","id":7,
		"params":{"name":"get_markdown_segment","arguments":{"cache_id":"nope"}}}`)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ToolResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "unknown cache id")
}

func TestMCP_UnknownTool(t *testing.T) {
	r := newMCPRouter(&stubService{})
	_, resp := postRPC(t, r, `{"jsonrpc":"2.0","method":"tools/call","id":8,
		"params":{"name":"make_coffee","arguments":{}}}`)

	require.NotNil(t, resp.Error)
	errObj := resp.Error.(map[string]interface{})
	assert.EqualValues(t, ErrMethodNotFound, errObj["code"])
}

func TestMCP_UnknownMethod(t *testing.T) {
	r := newMCPRouter(&stubService{})
	_, resp := postRPC(t, r, `{"jsonrpc":"2.0","method":"resources/list","id":9}`)
	require.NotNil(t, resp.Error)
}
