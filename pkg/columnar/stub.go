//go:build !duckdb

package columnar

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tsforge/tsforge/pkg/augment"
	"github.com/tsforge/tsforge/pkg/duckdb"
)

// Engine is a stub for the columnar backend.
type Engine struct{}

// New creates the stub backend.
func New() *Engine { return &Engine{} }

// SetMemoryLimit is a no-op stub.
func (c *Engine) SetMemoryLimit(_ int64) {}

func init() {
	augment.Register(augment.EngineColumnar, New())
}

// Apply fails: the columnar engine needs the duckdb build tag.
func (c *Engine) Apply(_ context.Context, _ memory.Allocator, _ arrow.Record, _ *augment.Plan) (arrow.Record, error) {
	return nil, fmt.Errorf("columnar: %w", duckdb.ErrDuckDBNotAvailable)
}
