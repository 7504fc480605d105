package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/doongeon/good-filings/internal/cache"
	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/internal/pipeline"
	"github.com/doongeon/good-filings/internal/sec"
	"github.com/doongeon/good-filings/internal/service/convert"
	"github.com/doongeon/good-filings/pkg/logger"
)

type ConvertHandler struct {
	service convert.Service
	logger  logger.Logger
}

// ConvertRequest names a local document and an optional engine preference.
type ConvertRequest struct {
	Path   string `json:"path" binding:"required"`
	Engine string `json:"engine"`
}

type RenderRequest struct {
	InputPath  string `json:"input_path" binding:"required"`
	OutputPath string `json:"output_path" binding:"required"`
}

type DownloadFilingRequest struct {
	CIK        string `json:"cik" binding:"required"`
	Year       int    `json:"year" binding:"required"`
	FilingType string `json:"filing_type" binding:"required"`
	OutputDir  string `json:"output_dir_path"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewConvertHandler(service convert.Service, logger logger.Logger) *ConvertHandler {
	return &ConvertHandler{
		service: service,
		logger:  logger,
	}
}

// Convert runs a conversion synchronously and returns the markdown inline or
// as a cache reference, depending on size.
func (h *ConvertHandler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	out, err := h.service.Convert(c.Request.Context(), req.Path, req.Engine)
	if err != nil {
		h.handleConversionError(c, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

// ConvertAsync enqueues a conversion and returns the task handle.
func (h *ConvertHandler) ConvertAsync(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	task, err := h.service.SubmitConversion(c.Request.Context(), req.Path, req.Engine)
	if err != nil {
		h.handleConversionError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"taskId":    task.ID,
		"status":    string(task.Status),
		"createdAt": task.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// GetStatus reports the state of an asynchronous conversion.
func (h *ConvertHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	task, err := h.service.GetTaskStatus(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":   task.ID,
		"status":   string(task.Status),
		"progress": task.Progress,
		"error":    task.Error,
		"metadata": task.Metadata,
	})
}

// DownloadResult streams the full markdown artifact of a completed task.
func (h *ConvertHandler) DownloadResult(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	result, err := h.service.GetTaskResult(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Failed to get result", err)
		return
	}
	defer result.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=result_%s.md", taskID))
	c.Header("Content-Type", "text/markdown")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, result); err != nil {
		h.logger.Error("Failed to stream result",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
	}
}

// CancelTask cancels a queued or running conversion.
func (h *ConvertHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	if err := h.service.CancelTask(c.Request.Context(), taskID); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to cancel task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

// GetSegment serves one bounded slice of a cached artifact.
func (h *ConvertHandler) GetSegment(c *gin.Context) {
	cacheID := c.Param("cacheId")
	if cacheID == "" {
		h.handleError(c, http.StatusBadRequest, "Cache ID is required", nil)
		return
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.handleError(c, http.StatusBadRequest, "Invalid offset", err)
			return
		}
		offset = parsed
	}

	seg, err := h.service.ReadSegment(c.Request.Context(), cacheID, offset)
	if err != nil {
		h.handleConversionError(c, err)
		return
	}

	c.JSON(http.StatusOK, seg)
}

// DownloadFiling fetches a filing document from EDGAR to local disk.
func (h *ConvertHandler) DownloadFiling(c *gin.Context) {
	var req DownloadFilingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	filing, err := h.service.DownloadFiling(c.Request.Context(), sec.FilingRequest{
		CIK:        req.CIK,
		Year:       req.Year,
		FilingType: req.FilingType,
		OutputDir:  req.OutputDir,
	})
	if err != nil {
		h.handleError(c, http.StatusBadGateway, "Failed to download filing", err)
		return
	}

	c.JSON(http.StatusOK, filing)
}

// Render prints a local HTML file to PDF.
func (h *ConvertHandler) Render(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.service.RenderPDF(c.Request.Context(), req.InputPath, req.OutputPath); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to render PDF", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "PDF rendered successfully",
		"outputPath": req.OutputPath,
	})
}

// handleConversionError maps domain errors to HTTP status codes.
func (h *ConvertHandler) handleConversionError(c *gin.Context, err error) {
	var invalidDoc *models.InvalidDocumentError
	var convErr *pipeline.ConversionError

	switch {
	case errors.Is(err, cache.ErrUnknownCacheID):
		h.handleError(c, http.StatusNotFound, "Unknown cache ID", err)
	case errors.Is(err, cache.ErrOffsetOutOfRange):
		h.handleError(c, http.StatusBadRequest, "Offset out of range", err)
	case errors.As(err, &invalidDoc):
		h.handleError(c, http.StatusBadRequest, "Invalid document", err)
	case errors.As(err, &convErr):
		h.handleError(c, http.StatusUnprocessableEntity, "Conversion failed", err)
	default:
		h.handleError(c, http.StatusInternalServerError, "Internal error", err)
	}
}

func (h *ConvertHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}
