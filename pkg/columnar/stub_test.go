//go:build !duckdb

package columnar

import (
	"context"
	"errors"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tsforge/tsforge/pkg/augment"
	"github.com/tsforge/tsforge/pkg/duckdb"
)

func TestStubApplyFails(t *testing.T) {
	alloc := memory.DefaultAllocator

	bldr := array.NewInt64Builder(alloc)
	bldr.AppendValues([]int64{1, 2, 3}, nil)
	arr := bldr.NewArray()
	bldr.Release()
	schema := arrow.NewSchema([]arrow.Field{{Name: "date", Type: arrow.PrimitiveTypes.Int64}}, nil)
	rec := array.NewRecord(schema, []arrow.Array{arr}, 3)
	arr.Release()
	defer rec.Release()

	plan := &augment.Plan{Kind: augment.OpLags, DateColumn: "date"}
	out, err := New().Apply(context.Background(), alloc, rec, plan)
	if out != nil {
		t.Fatal("stub returned a record")
	}
	if !errors.Is(err, duckdb.ErrDuckDBNotAvailable) {
		t.Fatalf("expected ErrDuckDBNotAvailable, got %v", err)
	}
}
