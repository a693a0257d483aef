package augment

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Window is a closed span of row offsets counted backwards from the current
// row: {Lower: 1, Upper: 10} covers the 1st through 10th prior rows.
// Negative offsets reach forward ({Lower: -3, Upper: 3} is centered).
// Lower must not exceed Upper.
type Window struct {
	Lower int
	Upper int
}

func (w Window) descriptor() string {
	return fmt.Sprintf("win_%d_%d", w.Lower, w.Upper)
}

// OpKind identifies the logical operation a Plan executes.
type OpKind int

const (
	OpRolling OpKind = iota + 1
	OpExpanding
	OpLags
	OpFourier
	OpResample
)

func (k OpKind) String() string {
	switch k {
	case OpRolling:
		return "rolling"
	case OpExpanding:
		return "expanding"
	case OpLags:
		return "lags"
	case OpFourier:
		return "fourier"
	case OpResample:
		return "resample"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// Freq is a calendar bucket width for resampling. The tag doubles as the
// frequency part of derived column names and as the SQL date_trunc part.
type Freq int

const (
	FreqMinute Freq = iota + 1
	FreqHour
	FreqDay
	FreqWeek
	FreqMonth
	FreqQuarter
	FreqYear
)

func (f Freq) String() string {
	switch f {
	case FreqMinute:
		return "minute"
	case FreqHour:
		return "hour"
	case FreqDay:
		return "day"
	case FreqWeek:
		return "week"
	case FreqMonth:
		return "month"
	case FreqQuarter:
		return "quarter"
	case FreqYear:
		return "year"
	default:
		return fmt.Sprintf("freq(%d)", int(f))
	}
}

// ParseFreq resolves a frequency tag. Unknown tags are a ConfigError.
func ParseFreq(tag string) (Freq, error) {
	for f := FreqMinute; f <= FreqYear; f++ {
		if f.String() == tag {
			return f, nil
		}
	}
	return 0, configErrorf("unknown frequency tag %q", tag)
}

func (f Freq) valid() bool {
	return f >= FreqMinute && f <= FreqYear
}

// Output is one derived column of the result. Which fields are meaningful
// depends on the plan kind; Name and Column are always set (Column is the
// date column for Fourier outputs).
type Output struct {
	Name   string
	Column string
	Func   Func   // rolling, expanding
	Window Window // rolling
	Lag    int    // lags
	Trig   string // fourier: "sin" or "cos"
	Order  int    // fourier harmonic order
	Period int    // fourier period
}

// Plan is the normalized, engine-independent representation of one request.
// Outputs is ordered; both backends must emit exactly these columns in this
// order. For every kind except OpResample they are appended after the input
// columns; OpResample builds a new table of group columns, the bucket date
// column, and the outputs.
type Plan struct {
	Kind       OpKind
	GroupBy    []string
	DateColumn string
	MinPeriods int
	Freq       Freq // resample only
	Outputs    []Output
}

// ── Compilation ─────────────────────────────────────────────────────

func compileRolling(rec arrow.Record, req RollingRequest) (*Plan, error) {
	if err := checkKeyColumns(rec, req.DateColumn, req.GroupBy); err != nil {
		return nil, err
	}
	if err := checkValueColumns(rec, req.ValueColumns); err != nil {
		return nil, err
	}
	if len(req.Windows) == 0 {
		return nil, configErrorf("rolling: at least one window is required")
	}
	for _, w := range req.Windows {
		if w.Lower > w.Upper {
			return nil, configErrorf("rolling: window lower offset %d exceeds upper offset %d", w.Lower, w.Upper)
		}
	}
	if err := checkFuncs(req.Funcs); err != nil {
		return nil, err
	}
	if req.MinPeriods < 0 {
		return nil, configErrorf("rolling: minPeriods must be >= 0, got %d", req.MinPeriods)
	}

	outputs := make([]Output, 0, len(req.ValueColumns)*len(req.Windows)*len(req.Funcs))
	for _, col := range req.ValueColumns {
		for _, w := range req.Windows {
			for _, f := range req.Funcs {
				outputs = append(outputs, Output{
					Name:   fmt.Sprintf("%s_%s_%s", col, f.Name(), w.descriptor()),
					Column: col,
					Func:   f,
					Window: w,
				})
			}
		}
	}

	plan := &Plan{
		Kind:       OpRolling,
		GroupBy:    req.GroupBy,
		DateColumn: req.DateColumn,
		MinPeriods: req.MinPeriods,
		Outputs:    outputs,
	}
	return plan, checkNaming(rec, plan)
}

func compileExpanding(rec arrow.Record, req ExpandingRequest) (*Plan, error) {
	if err := checkKeyColumns(rec, req.DateColumn, req.GroupBy); err != nil {
		return nil, err
	}
	if err := checkValueColumns(rec, req.ValueColumns); err != nil {
		return nil, err
	}
	if err := checkFuncs(req.Funcs); err != nil {
		return nil, err
	}
	if req.MinPeriods < 0 {
		return nil, configErrorf("expanding: minPeriods must be >= 0, got %d", req.MinPeriods)
	}

	outputs := make([]Output, 0, len(req.ValueColumns)*len(req.Funcs))
	for _, col := range req.ValueColumns {
		for _, f := range req.Funcs {
			outputs = append(outputs, Output{
				Name:   fmt.Sprintf("%s_%s_expanding", col, f.Name()),
				Column: col,
				Func:   f,
			})
		}
	}

	plan := &Plan{
		Kind:       OpExpanding,
		GroupBy:    req.GroupBy,
		DateColumn: req.DateColumn,
		MinPeriods: req.MinPeriods,
		Outputs:    outputs,
	}
	return plan, checkNaming(rec, plan)
}

func compileLags(rec arrow.Record, req LagsRequest) (*Plan, error) {
	if err := checkKeyColumns(rec, req.DateColumn, req.GroupBy); err != nil {
		return nil, err
	}
	if err := checkValueColumns(rec, req.ValueColumns); err != nil {
		return nil, err
	}
	if len(req.Lags) == 0 {
		return nil, configErrorf("lags: at least one lag step is required")
	}
	for _, k := range req.Lags {
		if k < 1 {
			return nil, configErrorf("lags: lag steps must be >= 1, got %d", k)
		}
	}

	outputs := make([]Output, 0, len(req.ValueColumns)*len(req.Lags))
	for _, col := range req.ValueColumns {
		for _, k := range req.Lags {
			outputs = append(outputs, Output{
				Name:   fmt.Sprintf("%s_lag_%d", col, k),
				Column: col,
				Lag:    k,
			})
		}
	}

	plan := &Plan{
		Kind:       OpLags,
		GroupBy:    req.GroupBy,
		DateColumn: req.DateColumn,
		Outputs:    outputs,
	}
	return plan, checkNaming(rec, plan)
}

func compileFourier(rec arrow.Record, req FourierRequest) (*Plan, error) {
	if err := checkKeyColumns(rec, req.DateColumn, req.GroupBy); err != nil {
		return nil, err
	}
	if len(req.Periods) == 0 {
		return nil, configErrorf("fourier: at least one period is required")
	}
	for _, p := range req.Periods {
		if p <= 0 {
			return nil, configErrorf("fourier: periods must be > 0, got %d", p)
		}
	}
	if req.MaxOrder < 1 {
		return nil, configErrorf("fourier: maxOrder must be >= 1, got %d", req.MaxOrder)
	}

	// sin before cos, order-major then period, matching the derived-name
	// convention {date}_{sin|cos}_{order}_{period}.
	outputs := make([]Output, 0, 2*req.MaxOrder*len(req.Periods))
	for _, trig := range []string{"sin", "cos"} {
		for order := 1; order <= req.MaxOrder; order++ {
			for _, period := range req.Periods {
				outputs = append(outputs, Output{
					Name:   fmt.Sprintf("%s_%s_%d_%d", req.DateColumn, trig, order, period),
					Column: req.DateColumn,
					Trig:   trig,
					Order:  order,
					Period: period,
				})
			}
		}
	}

	plan := &Plan{
		Kind:       OpFourier,
		GroupBy:    req.GroupBy,
		DateColumn: req.DateColumn,
		Outputs:    outputs,
	}
	return plan, checkNaming(rec, plan)
}

func compileResample(rec arrow.Record, req ResampleRequest) (*Plan, error) {
	if err := checkKeyColumns(rec, req.DateColumn, req.GroupBy); err != nil {
		return nil, err
	}
	if err := checkTimeColumn(rec, req.DateColumn); err != nil {
		return nil, err
	}
	if err := checkValueColumns(rec, req.ValueColumns); err != nil {
		return nil, err
	}
	if err := checkFuncs(req.Funcs); err != nil {
		return nil, err
	}
	if !req.Freq.valid() {
		return nil, configErrorf("resample: unknown frequency %s", req.Freq)
	}
	if req.MinPeriods < 0 {
		return nil, configErrorf("resample: minPeriods must be >= 0, got %d", req.MinPeriods)
	}

	outputs := make([]Output, 0, len(req.ValueColumns)*len(req.Funcs))
	for _, col := range req.ValueColumns {
		for _, f := range req.Funcs {
			outputs = append(outputs, Output{
				Name:   fmt.Sprintf("%s_%s_%s", col, f.Name(), req.Freq),
				Column: col,
				Func:   f,
			})
		}
	}

	plan := &Plan{
		Kind:       OpResample,
		GroupBy:    req.GroupBy,
		DateColumn: req.DateColumn,
		MinPeriods: req.MinPeriods,
		Freq:       req.Freq,
		Outputs:    outputs,
	}
	return plan, checkNaming(rec, plan)
}

// ── Validation helpers ──────────────────────────────────────────────

func checkKeyColumns(rec arrow.Record, dateColumn string, groupBy []string) error {
	if dateColumn == "" {
		return configErrorf("date column is required")
	}
	if !hasColumn(rec, dateColumn) {
		return &ColumnNotFoundError{Column: dateColumn}
	}
	for _, g := range groupBy {
		if !hasColumn(rec, g) {
			return &ColumnNotFoundError{Column: g}
		}
	}
	return nil
}

func checkTimeColumn(rec arrow.Record, col string) error {
	schema := rec.Schema()
	indices := schema.FieldIndices(col)
	if len(indices) == 0 {
		return &ColumnNotFoundError{Column: col}
	}
	switch schema.Field(indices[0]).Type.ID() {
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return nil
	default:
		return configErrorf("resample: date column %q must be a timestamp or date, got %s",
			col, schema.Field(indices[0]).Type)
	}
}

func checkValueColumns(rec arrow.Record, cols []string) error {
	if len(cols) == 0 {
		return configErrorf("at least one value column is required")
	}
	schema := rec.Schema()
	for _, col := range cols {
		indices := schema.FieldIndices(col)
		if len(indices) == 0 {
			return &ColumnNotFoundError{Column: col}
		}
		if !isNumeric(schema.Field(indices[0]).Type) {
			return configErrorf("value column %q has non-numeric type %s", col, schema.Field(indices[0]).Type)
		}
	}
	return nil
}

func checkFuncs(funcs []Func) error {
	if len(funcs) == 0 {
		return configErrorf("at least one function is required")
	}
	for _, f := range funcs {
		switch f.kind {
		case FuncBuiltIn:
			if _, ok := builtins[f.name]; !ok {
				return configErrorf("unknown built-in function %q", f.name)
			}
		case FuncConfigured:
			if f.name == "" {
				return configErrorf("configured function needs a name")
			}
			if f.quantile < 0 || f.quantile > 1 {
				return configErrorf("function %q: quantile level %v outside [0, 1]", f.name, f.quantile)
			}
		case FuncCustom:
			if f.name == "" {
				return configErrorf("custom function needs a name")
			}
			if f.fn == nil {
				return configErrorf("custom function %q has a nil implementation", f.name)
			}
		default:
			return configErrorf("zero-value Func in function list")
		}
	}
	return nil
}

// checkNaming enforces the fail-fast uniqueness contract: every resolved
// output name must be distinct from the input columns and from each other.
func checkNaming(rec arrow.Record, plan *Plan) error {
	seen := make(map[string]bool, len(plan.Outputs))
	for _, out := range plan.Outputs {
		if hasColumn(rec, out.Name) || seen[out.Name] {
			return &NamingConflictError{Name: out.Name}
		}
		seen[out.Name] = true
	}
	return nil
}

func hasColumn(rec arrow.Record, name string) bool {
	return len(rec.Schema().FieldIndices(name)) > 0
}

func isNumeric(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64:
		return true
	default:
		return false
	}
}
