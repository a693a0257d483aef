// Package columnar implements the columnar augmentation backend. Built-in
// and configured functions are translated into SQL window expressions and
// evaluated by an embedded DuckDB in a single pass over an Arrow view of the
// input; custom functions fall back to the eager per-window materialization
// for their columns only. Requires the "duckdb" build tag; without it the
// backend registers a stub that fails at call time.
package columnar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tsforge/tsforge/pkg/augment"
)

// rowIndexColumn is appended to the registered view to pin partition order
// and restore original row order in the result.
const rowIndexColumn = "__tsforge_rowidx"

// viewName is the name the input record is registered under.
const viewName = "input"

// groupOrderColumn carries each group's first-seen input row index through a
// resample aggregation, so grouped results come back in first-seen order.
const groupOrderColumn = "__tsforge_grouporder"

// buildQuery renders the single SELECT that evaluates every native output.
// The result carries the row index first, then one DOUBLE column per output,
// rows in original order.
func buildQuery(plan *augment.Plan, outputs []augment.Output) string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(quoteIdent(rowIndexColumn))
	for _, out := range outputs {
		sb.WriteString(", ")
		sb.WriteString(selectExpr(plan, out))
		sb.WriteString(" AS ")
		sb.WriteString(quoteIdent(out.Name))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(viewName)
	sb.WriteString(" ORDER BY ")
	sb.WriteString(quoteIdent(rowIndexColumn))
	return sb.String()
}

func selectExpr(plan *augment.Plan, out augment.Output) string {
	over := overClause(plan)

	switch plan.Kind {
	case augment.OpRolling, augment.OpExpanding:
		frame := "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW"
		if plan.Kind == augment.OpRolling {
			frame = fmt.Sprintf("ROWS BETWEEN %s AND %s",
				frameBound(out.Window.Upper), frameBound(out.Window.Lower))
		}
		src := nanSafe(out.Column)
		win := fmt.Sprintf("OVER (%s %s)", over, frame)
		expr := fmt.Sprintf("CASE WHEN COUNT(%s) %s >= %d THEN %s %s END",
			src, win, plan.MinPeriods, aggExpr(out.Func, src), win)
		return fmt.Sprintf("CAST(%s AS DOUBLE)", expr)

	case augment.OpLags:
		return fmt.Sprintf("CAST(LAG(%s, %d) OVER (%s) AS DOUBLE)",
			castDouble(out.Column), out.Lag, over)

	case augment.OpFourier:
		trig := "SIN"
		if out.Trig == "cos" {
			trig = "COS"
		}
		// t is the zero-based position within the date-ordered partition.
		return fmt.Sprintf("CAST(%s(2 * PI() * %d * (ROW_NUMBER() OVER (%s) - 1) / %d) AS DOUBLE)",
			trig, out.Order, over, out.Period)

	default:
		return "NULL"
	}
}

// buildResampleQuery renders the GROUP BY that evaluates a resample plan:
// one result row per (group, date_trunc bucket), null dates dropped, groups
// in first-seen input order and buckets ascending within each group.
func buildResampleQuery(plan *augment.Plan, outputs []augment.Output) string {
	bucket := fmt.Sprintf("DATE_TRUNC('%s', %s)", plan.Freq, quoteIdent(plan.DateColumn))

	var sb strings.Builder
	sb.WriteString("SELECT ")
	for _, g := range plan.GroupBy {
		sb.WriteString(quoteIdent(g))
		sb.WriteString(", ")
	}
	sb.WriteString(fmt.Sprintf("CAST(%s AS TIMESTAMP) AS %s", bucket, quoteIdent(plan.DateColumn)))
	for _, out := range outputs {
		src := nanSafe(out.Column)
		expr := fmt.Sprintf("CASE WHEN COUNT(%s) >= %d THEN %s END",
			src, plan.MinPeriods, aggExpr(out.Func, src))
		sb.WriteString(fmt.Sprintf(", CAST(%s AS DOUBLE) AS %s", expr, quoteIdent(out.Name)))
	}
	if len(plan.GroupBy) > 0 {
		// Window over the aggregate: the group's smallest input row index.
		sb.WriteString(fmt.Sprintf(", MIN(MIN(%s)) OVER (PARTITION BY ", quoteIdent(rowIndexColumn)))
		for i, g := range plan.GroupBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quoteIdent(g))
		}
		sb.WriteString(") AS ")
		sb.WriteString(quoteIdent(groupOrderColumn))
	}

	sb.WriteString(" FROM ")
	sb.WriteString(viewName)
	sb.WriteString(" WHERE ")
	sb.WriteString(quoteIdent(plan.DateColumn))
	sb.WriteString(" IS NOT NULL GROUP BY ")
	for _, g := range plan.GroupBy {
		sb.WriteString(quoteIdent(g))
		sb.WriteString(", ")
	}
	sb.WriteString(bucket)

	sb.WriteString(" ORDER BY ")
	if len(plan.GroupBy) > 0 {
		sb.WriteString(quoteIdent(groupOrderColumn))
		sb.WriteString(", ")
	}
	sb.WriteString(bucket)
	sb.WriteString(" ASC")
	return sb.String()
}

// overClause renders the shared partitioning and ordering: group columns
// partition, date orders ascending with nulls last, the row index breaks
// ties so both engines walk partitions identically.
func overClause(plan *augment.Plan) string {
	var sb strings.Builder
	if len(plan.GroupBy) > 0 {
		sb.WriteString("PARTITION BY ")
		for i, g := range plan.GroupBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quoteIdent(g))
		}
		sb.WriteString(" ")
	}
	sb.WriteString("ORDER BY ")
	sb.WriteString(quoteIdent(plan.DateColumn))
	sb.WriteString(" ASC NULLS LAST, ")
	sb.WriteString(quoteIdent(rowIndexColumn))
	return sb.String()
}

// frameBound renders one window offset. Offsets count backwards, so a
// positive offset is PRECEDING and a negative one FOLLOWING.
func frameBound(offset int) string {
	switch {
	case offset > 0:
		return strconv.Itoa(offset) + " PRECEDING"
	case offset < 0:
		return strconv.Itoa(-offset) + " FOLLOWING"
	default:
		return "CURRENT ROW"
	}
}

func aggExpr(f augment.Func, src string) string {
	if f.Kind() == augment.FuncConfigured {
		return fmt.Sprintf("QUANTILE_CONT(%s, %s)", src,
			strconv.FormatFloat(f.QuantileLevel(), 'g', -1, 64))
	}
	switch f.Name() {
	case "mean":
		return "AVG(" + src + ")"
	case "median":
		return "MEDIAN(" + src + ")"
	case "sum":
		return "SUM(" + src + ")"
	case "std":
		return "STDDEV_SAMP(" + src + ")"
	case "min":
		return "MIN(" + src + ")"
	case "max":
		return "MAX(" + src + ")"
	case "count":
		return "COUNT(" + src + ")"
	default:
		return "NULL"
	}
}

func castDouble(column string) string {
	return "CAST(" + quoteIdent(column) + " AS DOUBLE)"
}

// nanSafe nulls out NaN source values before they reach an aggregate. DuckDB
// orders NaN greater than every other float, which would make MAX and the
// quantile family diverge from the eager engine's treat-NaN-as-missing
// materialization. Lags copy values verbatim, so they stay NaN on both sides.
func nanSafe(column string) string {
	src := castDouble(column)
	return fmt.Sprintf("CASE WHEN ISNAN(%s) THEN NULL ELSE %s END", src, src)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// nativeSplit partitions plan outputs into SQL-translatable ones and custom
// ones that need the eager fallback, keeping each output's position.
func nativeSplit(plan *augment.Plan) (native, custom []augment.Output, nativePos, customPos []int) {
	for i, out := range plan.Outputs {
		if out.Func.Kind() == augment.FuncCustom {
			custom = append(custom, out)
			customPos = append(customPos, i)
			continue
		}
		native = append(native, out)
		nativePos = append(nativePos, i)
	}
	return native, custom, nativePos, customPos
}
