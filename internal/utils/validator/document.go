package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/doongeon/good-filings/pkg/logger"
)

// DocumentValidator checks local input files before they enter a conversion
// or render.
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

type ValidatorConfig struct {
	MaxFileSize  int64
	AllowedTypes map[string]bool
}

type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type FileInfo struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

func NewDocumentValidator(logger logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = &ValidatorConfig{
			MaxFileSize: 200 * 1024 * 1024, // 200MB
			AllowedTypes: map[string]bool{
				".pdf":  true,
				".htm":  true,
				".html": true,
			},
		}
	}

	return &DocumentValidator{
		logger: logger,
		config: config,
	}
}

// ValidateFile checks that the path points at a readable file of an allowed
// type within the size limit.
func (v *DocumentValidator) ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		Errors:  make([]ValidationError, 0),
		FileInfo: FileInfo{
			Path:      path,
			Extension: strings.ToLower(filepath.Ext(path)),
		},
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Code:    "FILE_NOT_FOUND",
				Message: fmt.Sprintf("File not found: %s", path),
				Field:   "path",
			})
			return result, nil
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.IsDir() {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:    "NOT_A_FILE",
			Message: fmt.Sprintf("Path is a directory: %s", path),
			Field:   "path",
		})
		return result, nil
	}

	result.FileInfo.Size = info.Size()

	if info.Size() > v.config.MaxFileSize {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}

	if !v.config.AllowedTypes[result.FileInfo.Extension] {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:    "INVALID_FILE_TYPE",
			Message: fmt.Sprintf("File type %s is not allowed", result.FileInfo.Extension),
			Field:   "extension",
		})
	}

	if result.IsValid {
		hash, err := v.calculateHash(path)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate hash: %w", err)
		}
		result.FileInfo.Hash = hash
	}

	return result, nil
}

func (v *DocumentValidator) calculateHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
