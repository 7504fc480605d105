package engine

import (
	"context"
	"fmt"

	"github.com/doongeon/good-filings/internal/models"
)

// Engine converts one chunk of a source document to text. Implementations
// hide all engine-specific configuration; callers only see text or failure.
type Engine interface {
	Name() string
	Convert(ctx context.Context, chunk models.Chunk) (string, error)
}

// Failure is a single-engine, single-chunk conversion failure. The pipeline
// downgrades it to a fallback attempt; it only escalates when every engine
// has failed on the same chunk.
type Failure struct {
	Engine string
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("engine %s failed: %s", f.Engine, f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Fail wraps err as an engine failure.
func Fail(name string, err error) *Failure {
	return &Failure{Engine: name, Reason: err.Error(), Err: err}
}
