// Package augment is the public entry point for time-series augmentation of
// Arrow RecordBatches. Each call describes one logical operation (rolling
// window, expanding window, lags, Fourier terms) and an engine tag; the
// dispatcher normalizes the request into a Plan, validates it up front, and
// delegates execution to the selected backend. Both backends are required to
// produce identically named and ordered output columns for the same request.
package augment

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tsforge/tsforge/pkg/metrics"
)

// Engine selects the backend execution strategy.
type Engine int

const (
	// EngineEager executes per-group, per-window materialization in Go.
	EngineEager Engine = iota + 1
	// EngineColumnar translates the plan into SQL window expressions
	// evaluated by an embedded DuckDB over an Arrow view.
	EngineColumnar
)

func (e Engine) String() string {
	switch e {
	case EngineEager:
		return "eager"
	case EngineColumnar:
		return "columnar"
	default:
		return fmt.Sprintf("engine(%d)", int(e))
	}
}

// ParseEngine resolves an engine tag. Unknown tags are a ConfigError.
func ParseEngine(tag string) (Engine, error) {
	switch tag {
	case "eager":
		return EngineEager, nil
	case "columnar":
		return EngineColumnar, nil
	default:
		return 0, configErrorf("unknown engine tag %q (want %q or %q)", tag, "eager", "columnar")
	}
}

// RollingRequest describes a rolling-window aggregation over one or more
// value columns. Each (value column, window, func) combination yields one
// output column named {value}_{func}_win_{lower}_{upper}.
type RollingRequest struct {
	Engine       Engine
	GroupBy      []string
	DateColumn   string
	ValueColumns []string
	Windows      []Window
	Funcs        []Func
	MinPeriods   int
}

// ExpandingRequest describes an expanding-window aggregation: the window for
// a row spans from the partition start through the row itself. Output columns
// are named {value}_{func}_expanding.
type ExpandingRequest struct {
	Engine       Engine
	GroupBy      []string
	DateColumn   string
	ValueColumns []string
	Funcs        []Func
	MinPeriods   int
}

// LagsRequest describes lag generation. Each (value column, lag) combination
// yields one output column named {value}_lag_{k}.
type LagsRequest struct {
	Engine       Engine
	GroupBy      []string
	DateColumn   string
	ValueColumns []string
	Lags         []int
}

// FourierRequest describes Fourier feature generation from the date column.
// For each period and harmonic order 1..MaxOrder, two columns are produced:
// {date}_sin_{order}_{period} and {date}_cos_{order}_{period}. The argument
// is the row's zero-based step index within its date-ordered partition.
type FourierRequest struct {
	Engine     Engine
	GroupBy    []string
	DateColumn string
	Periods    []int
	MaxOrder   int
}

// ResampleRequest describes time-based resampling: rows are bucketed by
// truncating the date column to Freq, and each (value column, func)
// combination yields one output column named {value}_{func}_{freq} holding
// the per-bucket aggregate. The result is a new table of one row per
// (group, bucket): the group columns, the bucket start as the date column,
// then the outputs. Groups appear in first-seen input order, buckets
// ascending within each group; rows with a null date are dropped. This is
// the one operation that does not preserve input row order.
type ResampleRequest struct {
	Engine       Engine
	GroupBy      []string
	DateColumn   string
	ValueColumns []string
	Freq         Freq
	Funcs        []Func
	MinPeriods   int
}

// Rolling applies a rolling-window aggregation and returns a new record with
// the computed columns appended. The input record is not mutated. On any
// error, no record is returned.
func Rolling(ctx context.Context, alloc memory.Allocator, rec arrow.Record, req RollingRequest) (arrow.Record, error) {
	plan, err := compileRolling(rec, req)
	if err != nil {
		return nil, err
	}
	return run(ctx, alloc, rec, req.Engine, plan)
}

// Expanding applies an expanding-window aggregation.
func Expanding(ctx context.Context, alloc memory.Allocator, rec arrow.Record, req ExpandingRequest) (arrow.Record, error) {
	plan, err := compileExpanding(rec, req)
	if err != nil {
		return nil, err
	}
	return run(ctx, alloc, rec, req.Engine, plan)
}

// Lags appends lagged copies of the value columns.
func Lags(ctx context.Context, alloc memory.Allocator, rec arrow.Record, req LagsRequest) (arrow.Record, error) {
	plan, err := compileLags(rec, req)
	if err != nil {
		return nil, err
	}
	return run(ctx, alloc, rec, req.Engine, plan)
}

// Fourier appends sine and cosine features derived from the date column.
func Fourier(ctx context.Context, alloc memory.Allocator, rec arrow.Record, req FourierRequest) (arrow.Record, error) {
	plan, err := compileFourier(rec, req)
	if err != nil {
		return nil, err
	}
	return run(ctx, alloc, rec, req.Engine, plan)
}

// Resample aggregates the value columns into calendar time buckets and
// returns the summarized table.
func Resample(ctx context.Context, alloc memory.Allocator, rec arrow.Record, req ResampleRequest) (arrow.Record, error) {
	plan, err := compileResample(rec, req)
	if err != nil {
		return nil, err
	}
	return run(ctx, alloc, rec, req.Engine, plan)
}

func run(ctx context.Context, alloc memory.Allocator, rec arrow.Record, engine Engine, plan *Plan) (arrow.Record, error) {
	b, err := backendFor(engine)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := b.Apply(ctx, alloc, rec, plan)
	metrics.ObserveAugment(engine.String(), plan.Kind.String(), rec.NumRows(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}
