package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doongeon/good-filings/internal/cache"
	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/internal/pipeline"
	"github.com/doongeon/good-filings/internal/service/convert"
	"github.com/doongeon/good-filings/pkg/logger"
)

func newConvertRouter(svc convert.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewConvertHandler(svc, logger.NewTestLogger())
	r.POST("/convert", h.Convert)
	r.GET("/segments/:cacheId", h.GetSegment)
	return r
}

func TestConvert_OK(t *testing.T) {
	r := newConvertRouter(&stubService{
		convertOut: &convert.Output{FullText: "# doc", TotalLength: 5},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/convert", bytes.NewBufferString(`{"path":"pdf/f.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out convert.Output
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "# doc", out.FullText)
}

func TestConvert_MissingBody(t *testing.T) {
	r := newConvertRouter(&stubService{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/convert", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConvert_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "invalid document",
			err:        &models.InvalidDocumentError{Path: "x.pdf", Reason: "file not found"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "all engines failed",
			err: &pipeline.ConversionError{ChunkErrors: []pipeline.ChunkError{
				{ChunkIndex: 2, Reason: "timeout"},
			}},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unexpected",
			err:        fmt.Errorf("redis down"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newConvertRouter(&stubService{convertErr: tc.err})
			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/convert", bytes.NewBufferString(`{"path":"pdf/f.pdf"}`))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}

func TestGetSegment_OK(t *testing.T) {
	r := newConvertRouter(&stubService{
		segment: models.SegmentResponse{CacheID: "abc", Segment: "hi", Length: 2, TotalLength: 2},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/segments/abc?offset=0", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var seg models.SegmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seg))
	assert.Equal(t, "hi", seg.Segment)
	assert.False(t, seg.HasMore)
}

func TestGetSegment_Errors(t *testing.T) {
	r := newConvertRouter(&stubService{
		segmentErr: fmt.Errorf("%w: abc", cache.ErrUnknownCacheID),
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/segments/abc", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	r = newConvertRouter(&stubService{
		segmentErr: fmt.Errorf("%w: offset 999", cache.ErrOffsetOutOfRange),
	})
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/segments/abc?offset=999", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = newConvertRouter(&stubService{})
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/segments/abc?offset=x", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
