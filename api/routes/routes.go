package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/doongeon/good-filings/api/handlers"
	"github.com/doongeon/good-filings/api/middleware"
)

// SetupRoutes wires all HTTP routes.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	// MCP endpoint lives outside the versioned API group; MCP clients speak
	// JSON-RPC to a fixed path.
	r.POST("/mcp", h.MCP.Handle)

	v1 := r.Group("/api/v1")

	filings := v1.Group("/filings")
	{
		filings.POST("/convert", h.Convert.Convert)
		filings.POST("/convert/async", h.Convert.ConvertAsync)
		filings.GET("/convert/status/:taskId", h.Convert.GetStatus)
		filings.GET("/convert/result/:taskId", h.Convert.DownloadResult)
		filings.DELETE("/convert/:taskId", h.Convert.CancelTask)
		filings.POST("/download", h.Convert.DownloadFiling)
		filings.POST("/render", h.Convert.Render)
	}

	v1.GET("/segments/:cacheId", h.Convert.GetSegment)
}
