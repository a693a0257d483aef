// Command tsforge-bench generates a synthetic grouped time series, runs the
// same rolling augmentation on each engine, and reports per-engine wall time
// plus the largest cross-engine difference. The columnar engine needs a
// binary built with -tags duckdb; without it the run is reported and skipped.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tsforge/tsforge/pkg/augment"
	"github.com/tsforge/tsforge/pkg/dataset"
	"github.com/tsforge/tsforge/pkg/metrics"

	_ "github.com/tsforge/tsforge/pkg/columnar"
	_ "github.com/tsforge/tsforge/pkg/eager"
)

func main() {
	groups := flag.Int("groups", 100, "number of series")
	rows := flag.Int("rows", 1000, "rows per series")
	lower := flag.Int("lower", 1, "window lower offset (steps back)")
	upper := flag.Int("upper", 28, "window upper offset (steps back)")
	minPeriods := flag.Int("min-periods", 1, "minimum non-null values per window")
	iterations := flag.Int("iterations", 1, "times to repeat the run")
	seed := flag.Int64("seed", 42, "generator seed")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flag.Parse()

	if *metricsAddr != "" {
		metrics.ServeMetrics(*metricsAddr)
		slog.Info("serving metrics", "addr", *metricsAddr)
	}

	alloc := memory.DefaultAllocator
	rec := dataset.GenerateSeries(alloc, dataset.SeriesConfig{
		Groups:       *groups,
		RowsPerGroup: *rows,
		Seed:         *seed,
	})
	defer rec.Release()

	slog.Info("generated dataset", "groups", *groups, "rows_per_group", *rows, "total_rows", rec.NumRows())

	req := augment.RollingRequest{
		GroupBy:      []string{"id"},
		DateColumn:   "date",
		ValueColumns: []string{"value"},
		Windows:      []augment.Window{{Lower: *lower, Upper: *upper}},
		Funcs:        []augment.Func{augment.Mean, augment.Std, augment.Quantile("q75", 0.75)},
		MinPeriods:   *minPeriods,
	}

	ctx := context.Background()
	for iter := 0; iter < *iterations; iter++ {
		results := make(map[augment.Engine]arrow.Record)

		for _, engine := range []augment.Engine{augment.EngineEager, augment.EngineColumnar} {
			req.Engine = engine
			start := time.Now()
			out, err := augment.Rolling(ctx, alloc, rec, req)
			if err != nil {
				slog.Warn("engine unavailable or failed", "engine", engine.String(), "error", err)
				continue
			}
			slog.Info("engine finished",
				"engine", engine.String(),
				"elapsed", time.Since(start),
				"output_columns", out.NumCols(),
			)
			results[engine] = out
		}

		if eagerOut, ok := results[augment.EngineEager]; ok {
			if colOut, ok := results[augment.EngineColumnar]; ok {
				diff := maxDiff(eagerOut, colOut, int(rec.NumCols()))
				slog.Info("cross-engine comparison", "max_abs_diff", diff)
				if diff > 1e-9 {
					slog.Error("engines disagree beyond tolerance")
					os.Exit(1)
				}
			}
		}

		for _, out := range results {
			out.Release()
		}
	}
}

// maxDiff returns the largest absolute difference across the computed
// columns (everything after the first inputCols columns). Nulls must match
// positions exactly; a null mismatch is reported as +Inf.
func maxDiff(a, b arrow.Record, inputCols int) float64 {
	var worst float64
	for col := inputCols; col < int(a.NumCols()); col++ {
		ca := a.Column(col).(*array.Float64)
		cb := b.Column(col).(*array.Float64)
		for row := 0; row < ca.Len(); row++ {
			if ca.IsNull(row) != cb.IsNull(row) {
				return math.Inf(1)
			}
			if ca.IsNull(row) {
				continue
			}
			if d := math.Abs(ca.Value(row) - cb.Value(row)); d > worst {
				worst = d
			}
		}
	}
	return worst
}
