// Package eager implements the row-oriented augmentation backend. Every
// window is materialized as an explicit []float64 per row before the reducer
// runs, which makes it the reference strategy for arbitrary user functions
// at the cost of per-window allocation and call overhead.
package eager

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/tsforge/tsforge/pkg/augment"
	"github.com/tsforge/tsforge/pkg/table"
)

// Engine is the row-oriented backend.
type Engine struct{}

// New creates the eager backend.
func New() *Engine { return &Engine{} }

func init() {
	augment.Register(augment.EngineEager, New())
}

// floatColumn is a value column extracted once per call.
type floatColumn struct {
	values []float64
	valid  []bool
}

// Apply executes the plan. For every kind except resample the result is the
// input columns plus the computed columns, rows in original order; resample
// returns a new bucket-per-row table.
func (e *Engine) Apply(ctx context.Context, alloc memory.Allocator, rec arrow.Record, plan *augment.Plan) (arrow.Record, error) {
	if plan.Kind == augment.OpResample {
		return e.resample(alloc, rec, plan)
	}

	cols, err := e.Columns(ctx, alloc, rec, plan)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	names := make([]string, len(plan.Outputs))
	for i, out := range plan.Outputs {
		names[i] = out.Name
	}
	return table.WithColumns(rec, names, cols)
}

// Columns computes only the plan's output columns, in plan order. Used
// directly by the columnar backend as the fallback path for custom funcs.
// The caller releases the returned arrays.
func (e *Engine) Columns(ctx context.Context, alloc memory.Allocator, rec arrow.Record, plan *augment.Plan) ([]arrow.Array, error) {
	spans, err := partitions(rec, plan.GroupBy, plan.DateColumn)
	if err != nil {
		return nil, err
	}

	sources, err := extractSources(rec, plan)
	if err != nil {
		return nil, err
	}

	n := int(rec.NumRows())
	results := make([]resultBuffer, len(plan.Outputs))
	for i := range results {
		results[i] = resultBuffer{
			values: make([]float64, n),
			valid:  make([]bool, n),
		}
	}

	// Groups are independent by contract; each goroutine writes only to its
	// own span's row positions, so the shared buffers need no locking.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, sp := range spans {
		sp := sp
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return computeSpan(plan, sp, sources, results)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cols := make([]arrow.Array, len(results))
	for i, res := range results {
		bldr := array.NewFloat64Builder(alloc)
		for row := 0; row < n; row++ {
			if res.valid[row] {
				bldr.Append(res.values[row])
			} else {
				bldr.AppendNull()
			}
		}
		cols[i] = bldr.NewArray()
		bldr.Release()
	}
	return cols, nil
}

type resultBuffer struct {
	values []float64
	valid  []bool
}

func extractSources(rec arrow.Record, plan *augment.Plan) (map[string]*floatColumn, error) {
	sources := make(map[string]*floatColumn)
	if plan.Kind == augment.OpFourier {
		return sources, nil
	}
	for _, out := range plan.Outputs {
		if _, ok := sources[out.Column]; ok {
			continue
		}
		arr, err := table.Column(rec, out.Column)
		if err != nil {
			return nil, err
		}
		values, valid, err := table.Float64Column(arr)
		if err != nil {
			return nil, err
		}
		sources[out.Column] = &floatColumn{values: values, valid: valid}
	}
	return sources, nil
}

// computeSpan fills the result buffers for one group partition.
func computeSpan(plan *augment.Plan, sp span, sources map[string]*floatColumn, results []resultBuffer) error {
	switch plan.Kind {
	case augment.OpRolling, augment.OpExpanding:
		return computeWindows(plan, sp, sources, results)
	case augment.OpLags:
		computeLags(plan, sp, sources, results)
		return nil
	case augment.OpFourier:
		computeFourier(plan, sp, results)
		return nil
	default:
		return fmt.Errorf("eager: unsupported plan kind %s", plan.Kind)
	}
}

func computeWindows(plan *augment.Plan, sp span, sources map[string]*floatColumn, results []resultBuffer) error {
	var window []float64

	for oi, out := range plan.Outputs {
		src := sources[out.Column]
		res := results[oi]

		for pos, row := range sp.rows {
			lo, hi := 0, pos
			if plan.Kind == augment.OpRolling {
				lo, hi = pos-out.Window.Upper, pos-out.Window.Lower
			}
			if lo < 0 {
				lo = 0
			}
			if hi > len(sp.rows)-1 {
				hi = len(sp.rows) - 1
			}

			// NaN source values count as missing, like nulls: gonum's
			// reducers and DuckDB's aggregates disagree on NaN ordering,
			// so neither engine lets NaN into a window.
			window = window[:0]
			for p := lo; p <= hi; p++ {
				r := sp.rows[p]
				if src.valid[r] && !math.IsNaN(src.values[r]) {
					window = append(window, src.values[r])
				}
			}
			if len(window) < plan.MinPeriods {
				continue
			}

			v, ok, err := out.Func.Reduce(window)
			if err != nil {
				return &augment.ComputationError{
					Column: out.Name,
					Group:  sp.key,
					Row:    row,
					Window: out.Window,
					Err:    err,
				}
			}
			if ok {
				res.values[row] = v
				res.valid[row] = true
			}
		}
	}
	return nil
}

func computeLags(plan *augment.Plan, sp span, sources map[string]*floatColumn, results []resultBuffer) {
	for oi, out := range plan.Outputs {
		src := sources[out.Column]
		res := results[oi]

		for pos, row := range sp.rows {
			p := pos - out.Lag
			if p < 0 {
				continue
			}
			r := sp.rows[p]
			if !src.valid[r] {
				continue
			}
			res.values[row] = src.values[r]
			res.valid[row] = true
		}
	}
}

func computeFourier(plan *augment.Plan, sp span, results []resultBuffer) {
	for oi, out := range plan.Outputs {
		res := results[oi]
		for pos, row := range sp.rows {
			angle := 2 * math.Pi * float64(out.Order) * float64(pos) / float64(out.Period)
			if out.Trig == "sin" {
				res.values[row] = math.Sin(angle)
			} else {
				res.values[row] = math.Cos(angle)
			}
			res.valid[row] = true
		}
	}
}
