package augment

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FuncKind distinguishes the three tiers of window functions. Only
// FuncCustom forces per-window materialization on the columnar backend.
type FuncKind int

const (
	// FuncBuiltIn is a named reducer resolved internally (mean, sum, ...).
	FuncBuiltIn FuncKind = iota + 1
	// FuncConfigured is a named reducer carrying numeric parameters,
	// currently a quantile level.
	FuncConfigured
	// FuncCustom is an arbitrary user-supplied window-to-scalar function.
	FuncCustom
)

// WindowFunc is the signature of a user-supplied reducer. It receives the
// non-null values of one materialized window, oldest first.
type WindowFunc func(values []float64) (float64, error)

// Func is a window reducer: a built-in tag, a configured quantile, or a
// custom function. The zero value is invalid.
type Func struct {
	name     string
	kind     FuncKind
	quantile float64
	fn       WindowFunc
}

// Built-in reducers. Tags double as the operation part of derived column names.
var (
	Mean   = Func{name: "mean", kind: FuncBuiltIn}
	Median = Func{name: "median", kind: FuncBuiltIn}
	Sum    = Func{name: "sum", kind: FuncBuiltIn}
	Std    = Func{name: "std", kind: FuncBuiltIn}
	Min    = Func{name: "min", kind: FuncBuiltIn}
	Max    = Func{name: "max", kind: FuncBuiltIn}
	Count  = Func{name: "count", kind: FuncBuiltIn}
)

var builtins = map[string]Func{
	"mean":   Mean,
	"median": Median,
	"sum":    Sum,
	"std":    Std,
	"min":    Min,
	"max":    Max,
	"count":  Count,
}

// BuiltIn resolves a built-in reducer by tag.
func BuiltIn(tag string) (Func, error) {
	f, ok := builtins[tag]
	if !ok {
		return Func{}, configErrorf("unknown built-in function %q", tag)
	}
	return f, nil
}

// Quantile returns a configured quantile reducer using linear interpolation
// between closest ranks. name becomes the operation tag in derived column
// names (e.g. "q75").
func Quantile(name string, q float64) Func {
	return Func{name: name, kind: FuncConfigured, quantile: q}
}

// Custom wraps an arbitrary window function. Custom funcs always take the
// per-window materialization path, on either engine.
func Custom(name string, fn WindowFunc) Func {
	return Func{name: name, kind: FuncCustom, fn: fn}
}

// Name returns the operation tag used in derived column names.
func (f Func) Name() string { return f.name }

// Kind returns the function tier.
func (f Func) Kind() FuncKind { return f.kind }

// QuantileLevel returns the configured quantile level. Only meaningful for
// FuncConfigured.
func (f Func) QuantileLevel() float64 { return f.quantile }

// Reduce applies the reducer to the non-null values of one window. ok is
// false when the result is the missing-value marker. The semantics mirror
// SQL aggregates so both engines agree: sum/mean/min/max of an empty window
// are missing, count of an empty window is 0, std needs at least two values.
func (f Func) Reduce(values []float64) (float64, bool, error) {
	switch f.kind {
	case FuncCustom:
		v, err := f.fn(values)
		if err != nil {
			return 0, false, err
		}
		return v, true, nil
	case FuncConfigured:
		if len(values) == 0 {
			return 0, false, nil
		}
		return quantileCont(values, f.quantile), true, nil
	}

	switch f.name {
	case "count":
		return float64(len(values)), true, nil
	case "mean":
		if len(values) == 0 {
			return 0, false, nil
		}
		return stat.Mean(values, nil), true, nil
	case "sum":
		if len(values) == 0 {
			return 0, false, nil
		}
		return floats.Sum(values), true, nil
	case "std":
		if len(values) < 2 {
			return 0, false, nil
		}
		return stat.StdDev(values, nil), true, nil
	case "min":
		if len(values) == 0 {
			return 0, false, nil
		}
		return floats.Min(values), true, nil
	case "max":
		if len(values) == 0 {
			return 0, false, nil
		}
		return floats.Max(values), true, nil
	case "median":
		if len(values) == 0 {
			return 0, false, nil
		}
		return quantileCont(values, 0.5), true, nil
	default:
		return 0, false, configErrorf("unknown built-in function %q", f.name)
	}
}

// quantileCont computes the q-quantile with linear interpolation between
// closest ranks, matching SQL quantile_cont. gonum's stat.Quantile is not
// used here: its CumulantKinds interpolate differently.
func quantileCont(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	h := q * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
