//go:build duckdb

package columnar

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tsforge/tsforge/pkg/augment"
	"github.com/tsforge/tsforge/pkg/duckdb"
	"github.com/tsforge/tsforge/pkg/eager"
	"github.com/tsforge/tsforge/pkg/table"
)

// Engine is the columnar backend.
type Engine struct {
	memoryLimit int64
	fallback    *eager.Engine
}

// New creates the columnar backend with the default DuckDB memory limit.
func New() *Engine {
	return &Engine{fallback: eager.New()}
}

// SetMemoryLimit sets the per-call DuckDB memory limit in bytes.
func (c *Engine) SetMemoryLimit(limit int64) {
	c.memoryLimit = limit
}

func init() {
	augment.Register(augment.EngineColumnar, New())
}

// Apply evaluates the plan's built-in and configured outputs in one SQL
// query, routes custom outputs through the eager per-window path, and
// reassembles everything in plan order.
func (c *Engine) Apply(ctx context.Context, alloc memory.Allocator, rec arrow.Record, plan *augment.Plan) (arrow.Record, error) {
	if plan.Kind == augment.OpResample {
		return c.applyResample(ctx, alloc, rec, plan)
	}

	native, custom, nativePos, customPos := nativeSplit(plan)

	cols := make([]arrow.Array, len(plan.Outputs))
	releaseAll := func() {
		for _, col := range cols {
			if col != nil {
				col.Release()
			}
		}
	}

	if len(native) > 0 {
		arrs, err := c.queryNative(ctx, alloc, rec, plan, native)
		if err != nil {
			return nil, err
		}
		for i, arr := range arrs {
			cols[nativePos[i]] = arr
		}
	}

	if len(custom) > 0 {
		sub := &augment.Plan{
			Kind:       plan.Kind,
			GroupBy:    plan.GroupBy,
			DateColumn: plan.DateColumn,
			MinPeriods: plan.MinPeriods,
			Outputs:    custom,
		}
		arrs, err := c.fallback.Columns(ctx, alloc, rec, sub)
		if err != nil {
			releaseAll()
			return nil, err
		}
		for i, arr := range arrs {
			cols[customPos[i]] = arr
		}
	}

	names := make([]string, len(plan.Outputs))
	for i, out := range plan.Outputs {
		names[i] = out.Name
	}
	out, err := table.WithColumns(rec, names, cols)
	releaseAll()
	return out, err
}

// applyResample evaluates a resample plan as one GROUP BY query. The result
// shape is bucket-driven, so a custom func cannot be stitched in per column:
// any custom output sends the whole plan down the eager path instead.
func (c *Engine) applyResample(ctx context.Context, alloc memory.Allocator, rec arrow.Record, plan *augment.Plan) (arrow.Record, error) {
	for _, out := range plan.Outputs {
		if out.Func.Kind() == augment.FuncCustom {
			return c.fallback.Apply(ctx, alloc, rec, plan)
		}
	}

	inst, err := duckdb.NewInstance(alloc, c.memoryLimit)
	if err != nil {
		return nil, fmt.Errorf("columnar: %w", err)
	}
	defer inst.Close()

	indexed, err := withRowIndex(alloc, rec)
	if err != nil {
		return nil, err
	}
	defer indexed.Release()

	if err := inst.RegisterView(indexed, viewName); err != nil {
		return nil, fmt.Errorf("columnar: %w", err)
	}

	res, err := inst.Query(ctx, buildResampleQuery(plan, plan.Outputs))
	if err != nil {
		return nil, fmt.Errorf("columnar: %w", err)
	}
	defer res.Release()

	// Drop the group-order helper column, keep everything else in plan order.
	names := make([]string, 0, len(plan.GroupBy)+1+len(plan.Outputs))
	names = append(names, plan.GroupBy...)
	names = append(names, plan.DateColumn)
	for _, out := range plan.Outputs {
		names = append(names, out.Name)
	}
	out, err := table.Project(res, names...)
	if err != nil {
		return nil, fmt.Errorf("columnar: %w", err)
	}
	return out, nil
}

// queryNative runs the generated window-function query and returns one
// Float64 array per output, aligned to original row order.
func (c *Engine) queryNative(ctx context.Context, alloc memory.Allocator, rec arrow.Record, plan *augment.Plan, outputs []augment.Output) ([]arrow.Array, error) {
	inst, err := duckdb.NewInstance(alloc, c.memoryLimit)
	if err != nil {
		return nil, fmt.Errorf("columnar: %w", err)
	}
	defer inst.Close()

	indexed, err := withRowIndex(alloc, rec)
	if err != nil {
		return nil, err
	}
	defer indexed.Release()

	if err := inst.RegisterView(indexed, viewName); err != nil {
		return nil, fmt.Errorf("columnar: %w", err)
	}

	res, err := inst.Query(ctx, buildQuery(plan, outputs))
	if err != nil {
		return nil, fmt.Errorf("columnar: %w", err)
	}
	defer res.Release()

	if res.NumRows() != rec.NumRows() {
		return nil, fmt.Errorf("columnar: query returned %d rows for %d input rows", res.NumRows(), rec.NumRows())
	}

	arrs := make([]arrow.Array, 0, len(outputs))
	for _, out := range outputs {
		arr, err := table.Column(res, out.Name)
		if err != nil {
			for _, a := range arrs {
				a.Release()
			}
			return nil, fmt.Errorf("columnar: %w", err)
		}
		if _, ok := arr.(*array.Float64); !ok {
			for _, a := range arrs {
				a.Release()
			}
			return nil, fmt.Errorf("columnar: output %q came back as %s, want float64", out.Name, arr.DataType())
		}
		arr.Retain()
		arrs = append(arrs, arr)
	}
	return arrs, nil
}

// withRowIndex returns rec plus a trailing int64 index column used for
// ordering and reassembly. The input record is not modified.
func withRowIndex(alloc memory.Allocator, rec arrow.Record) (arrow.Record, error) {
	if table.ColumnIndex(rec, rowIndexColumn) >= 0 {
		return nil, fmt.Errorf("columnar: input already has a %q column", rowIndexColumn)
	}

	n := int(rec.NumRows())
	bldr := array.NewInt64Builder(alloc)
	defer bldr.Release()
	bldr.Reserve(n)
	for i := 0; i < n; i++ {
		bldr.Append(int64(i))
	}
	idx := bldr.NewArray()
	defer idx.Release()

	return table.WithColumns(rec, []string{rowIndexColumn}, []arrow.Array{idx})
}
