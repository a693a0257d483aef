//go:build !duckdb

// Package duckdb manages embedded in-memory DuckDB instances used by the
// columnar backend. When compiled without the "duckdb" build tag, all
// functions return errors directing users to rebuild with -tags duckdb.
package duckdb

import (
	"context"
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ErrDuckDBNotAvailable is returned when DuckDB functions are called
// without the duckdb build tag.
var ErrDuckDBNotAvailable = errors.New("columnar engine requires building with -tags duckdb")

// Instance is a stub for DuckDB instance management.
type Instance struct{}

// NewInstance returns an error when DuckDB is not compiled in.
func NewInstance(_ memory.Allocator, _ int64) (*Instance, error) {
	return nil, ErrDuckDBNotAvailable
}

// Close is a no-op stub.
func (inst *Instance) Close() error { return nil }

// RegisterView is a stub.
func (inst *Instance) RegisterView(_ arrow.Record, _ string) error {
	return ErrDuckDBNotAvailable
}

// Query is a stub.
func (inst *Instance) Query(_ context.Context, _ string) (arrow.Record, error) {
	return nil, ErrDuckDBNotAvailable
}
