package handlers

import (
	"github.com/doongeon/good-filings/internal/service/convert"
	"github.com/doongeon/good-filings/pkg/logger"
)

type Handlers struct {
	Convert *ConvertHandler
	MCP     *MCPHandler
}

func NewHandlers(
	convertService convert.Service,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Convert: NewConvertHandler(convertService, logger),
		MCP:     NewMCPHandler(convertService, logger),
	}
}
