package columnar

import (
	"strings"
	"testing"

	"github.com/tsforge/tsforge/pkg/augment"
)

func TestNanSafeSource(t *testing.T) {
	got := nanSafe("v")
	want := `CASE WHEN ISNAN(CAST("v" AS DOUBLE)) THEN NULL ELSE CAST("v" AS DOUBLE) END`
	if got != want {
		t.Errorf("nanSafe = %q, want %q", got, want)
	}
}

func TestBuildQueryLag(t *testing.T) {
	plan := &augment.Plan{
		Kind:       augment.OpLags,
		DateColumn: "date",
		Outputs:    []augment.Output{{Name: "value_lag_2", Column: "value", Lag: 2}},
	}
	got := buildQuery(plan, plan.Outputs)
	want := `SELECT "__tsforge_rowidx", ` +
		`CAST(LAG(CAST("value" AS DOUBLE), 2) OVER (ORDER BY "date" ASC NULLS LAST, "__tsforge_rowidx") AS DOUBLE) AS "value_lag_2" ` +
		`FROM input ORDER BY "__tsforge_rowidx"`
	if got != want {
		t.Errorf("query\n got: %s\nwant: %s", got, want)
	}
}

func TestBuildQueryRolling(t *testing.T) {
	plan := &augment.Plan{
		Kind:       augment.OpRolling,
		GroupBy:    []string{"id"},
		DateColumn: "date",
		MinPeriods: 2,
		Outputs: []augment.Output{{
			Name:   "value_mean_win_1_3",
			Column: "value",
			Func:   augment.Mean,
			Window: augment.Window{Lower: 1, Upper: 3},
		}},
	}
	got := buildQuery(plan, plan.Outputs)

	src := `CASE WHEN ISNAN(CAST("value" AS DOUBLE)) THEN NULL ELSE CAST("value" AS DOUBLE) END`
	for _, frag := range []string{
		`PARTITION BY "id"`,
		`ORDER BY "date" ASC NULLS LAST, "__tsforge_rowidx"`,
		`ROWS BETWEEN 3 PRECEDING AND 1 PRECEDING`,
		`CASE WHEN COUNT(` + src + `)`,
		`>= 2 THEN AVG(` + src + `)`,
		`AS "value_mean_win_1_3"`,
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("query missing %q:\n%s", frag, got)
		}
	}
}

func TestBuildQueryExpandingFrame(t *testing.T) {
	plan := &augment.Plan{
		Kind:       augment.OpExpanding,
		DateColumn: "date",
		Outputs: []augment.Output{{
			Name:   "value_sum_expanding",
			Column: "value",
			Func:   augment.Sum,
		}},
	}
	got := buildQuery(plan, plan.Outputs)
	if !strings.Contains(got, "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW") {
		t.Errorf("expanding frame missing:\n%s", got)
	}
}

func TestBuildQueryFourier(t *testing.T) {
	plan := &augment.Plan{
		Kind:       augment.OpFourier,
		DateColumn: "date",
		Outputs: []augment.Output{
			{Name: "date_sin_2_7", Column: "date", Trig: "sin", Order: 2, Period: 7},
			{Name: "date_cos_1_365", Column: "date", Trig: "cos", Order: 1, Period: 365},
		},
	}
	got := buildQuery(plan, plan.Outputs)
	if !strings.Contains(got, `SIN(2 * PI() * 2 * (ROW_NUMBER() OVER (ORDER BY "date" ASC NULLS LAST, "__tsforge_rowidx") - 1) / 7)`) {
		t.Errorf("sin term missing:\n%s", got)
	}
	if !strings.Contains(got, `COS(2 * PI() * 1 * (ROW_NUMBER() OVER (ORDER BY "date" ASC NULLS LAST, "__tsforge_rowidx") - 1) / 365)`) {
		t.Errorf("cos term missing:\n%s", got)
	}
}

func TestBuildResampleQuery(t *testing.T) {
	plan := &augment.Plan{
		Kind:       augment.OpResample,
		GroupBy:    []string{"id"},
		DateColumn: "date",
		MinPeriods: 2,
		Freq:       augment.FreqWeek,
		Outputs: []augment.Output{{
			Name:   "value_mean_week",
			Column: "value",
			Func:   augment.Mean,
		}},
	}
	got := buildResampleQuery(plan, plan.Outputs)

	src := `CASE WHEN ISNAN(CAST("value" AS DOUBLE)) THEN NULL ELSE CAST("value" AS DOUBLE) END`
	for _, frag := range []string{
		`CAST(DATE_TRUNC('week', "date") AS TIMESTAMP) AS "date"`,
		`CASE WHEN COUNT(` + src + `) >= 2 THEN AVG(` + src + `) END`,
		`AS "value_mean_week"`,
		`MIN(MIN("__tsforge_rowidx")) OVER (PARTITION BY "id") AS "__tsforge_grouporder"`,
		`WHERE "date" IS NOT NULL GROUP BY "id", DATE_TRUNC('week', "date")`,
		`ORDER BY "__tsforge_grouporder", DATE_TRUNC('week', "date") ASC`,
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("query missing %q:\n%s", frag, got)
		}
	}
}

func TestBuildResampleQueryUngrouped(t *testing.T) {
	plan := &augment.Plan{
		Kind:       augment.OpResample,
		DateColumn: "date",
		Freq:       augment.FreqMonth,
		Outputs: []augment.Output{{
			Name:   "value_count_month",
			Column: "value",
			Func:   augment.Count,
		}},
	}
	got := buildResampleQuery(plan, plan.Outputs)
	if strings.Contains(got, "__tsforge_grouporder") {
		t.Errorf("ungrouped query carries the group-order column:\n%s", got)
	}
	if !strings.Contains(got, `ORDER BY DATE_TRUNC('month', "date") ASC`) {
		t.Errorf("ungrouped query order clause:\n%s", got)
	}
}

func TestFrameBound(t *testing.T) {
	cases := []struct {
		offset int
		want   string
	}{
		{3, "3 PRECEDING"},
		{-2, "2 FOLLOWING"},
		{0, "CURRENT ROW"},
	}
	for _, tc := range cases {
		if got := frameBound(tc.offset); got != tc.want {
			t.Errorf("frameBound(%d) = %q, want %q", tc.offset, got, tc.want)
		}
	}
}

func TestAggExpr(t *testing.T) {
	src := `CAST("v" AS DOUBLE)`
	cases := []struct {
		f    augment.Func
		want string
	}{
		{augment.Mean, "AVG(" + src + ")"},
		{augment.Median, "MEDIAN(" + src + ")"},
		{augment.Sum, "SUM(" + src + ")"},
		{augment.Std, "STDDEV_SAMP(" + src + ")"},
		{augment.Min, "MIN(" + src + ")"},
		{augment.Max, "MAX(" + src + ")"},
		{augment.Count, "COUNT(" + src + ")"},
		{augment.Quantile("q75", 0.75), "QUANTILE_CONT(" + src + ", 0.75)"},
	}
	for _, tc := range cases {
		if got := aggExpr(tc.f, src); got != tc.want {
			t.Errorf("aggExpr(%s) = %q, want %q", tc.f.Name(), got, tc.want)
		}
	}
}

func TestOverClauseMultipleGroups(t *testing.T) {
	plan := &augment.Plan{
		Kind:       augment.OpLags,
		GroupBy:    []string{"region", "store"},
		DateColumn: "date",
	}
	got := overClause(plan)
	want := `PARTITION BY "region", "store" ORDER BY "date" ASC NULLS LAST, "__tsforge_rowidx"`
	if got != want {
		t.Errorf("overClause = %q, want %q", got, want)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := quoteIdent(`my"col`); got != `"my""col"` {
		t.Errorf("quoteIdent = %q", got)
	}
}

func TestNativeSplit(t *testing.T) {
	spread := augment.Custom("spread", func(values []float64) (float64, error) { return 0, nil })
	plan := &augment.Plan{
		Kind:       augment.OpRolling,
		DateColumn: "date",
		Outputs: []augment.Output{
			{Name: "a", Column: "v", Func: augment.Mean},
			{Name: "b", Column: "v", Func: spread},
			{Name: "c", Column: "v", Func: augment.Quantile("q50", 0.5)},
		},
	}
	native, custom, nativePos, customPos := nativeSplit(plan)
	if len(native) != 2 || native[0].Name != "a" || native[1].Name != "c" {
		t.Errorf("native = %+v", native)
	}
	if len(custom) != 1 || custom[0].Name != "b" {
		t.Errorf("custom = %+v", custom)
	}
	if nativePos[0] != 0 || nativePos[1] != 2 || customPos[0] != 1 {
		t.Errorf("positions = %v, %v", nativePos, customPos)
	}
}
