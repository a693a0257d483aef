package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

type orderKind int

const (
	orderInt orderKind = iota
	orderFloat
	orderString
)

// OrderKeys holds per-row sort keys extracted once from a column, so row
// index slices can be sorted without repeated type switches. Null rows
// compare greater than everything (nulls last).
type OrderKeys struct {
	kind orderKind
	ints []int64
	flts []float64
	strs []string
	null []bool
}

// NewOrderKeys extracts sort keys from a column. Supported types: integers,
// floats, timestamps, dates, and strings.
func NewOrderKeys(arr arrow.Array) (*OrderKeys, error) {
	n := arr.Len()
	k := &OrderKeys{null: make([]bool, n)}
	for i := 0; i < n; i++ {
		k.null[i] = arr.IsNull(i)
	}

	switch a := arr.(type) {
	case *array.Int64:
		k.kind = orderInt
		k.ints = make([]int64, n)
		for i := 0; i < n; i++ {
			k.ints[i] = a.Value(i)
		}
	case *array.Int32:
		k.kind = orderInt
		k.ints = make([]int64, n)
		for i := 0; i < n; i++ {
			k.ints[i] = int64(a.Value(i))
		}
	case *array.Timestamp:
		k.kind = orderInt
		k.ints = make([]int64, n)
		for i := 0; i < n; i++ {
			k.ints[i] = int64(a.Value(i))
		}
	case *array.Date32:
		k.kind = orderInt
		k.ints = make([]int64, n)
		for i := 0; i < n; i++ {
			k.ints[i] = int64(a.Value(i))
		}
	case *array.Date64:
		k.kind = orderInt
		k.ints = make([]int64, n)
		for i := 0; i < n; i++ {
			k.ints[i] = int64(a.Value(i))
		}
	case *array.Float64:
		k.kind = orderFloat
		k.flts = make([]float64, n)
		for i := 0; i < n; i++ {
			k.flts[i] = a.Value(i)
		}
	case *array.Float32:
		k.kind = orderFloat
		k.flts = make([]float64, n)
		for i := 0; i < n; i++ {
			k.flts[i] = float64(a.Value(i))
		}
	case *array.String:
		k.kind = orderString
		k.strs = make([]string, n)
		for i := 0; i < n; i++ {
			k.strs[i] = a.Value(i)
		}
	default:
		return nil, fmt.Errorf("column type %s cannot be used for ordering", arr.DataType())
	}
	return k, nil
}

// Less reports whether row i orders before row j.
func (k *OrderKeys) Less(i, j int) bool {
	if k.null[i] || k.null[j] {
		return !k.null[i] && k.null[j]
	}
	switch k.kind {
	case orderInt:
		return k.ints[i] < k.ints[j]
	case orderFloat:
		return k.flts[i] < k.flts[j]
	default:
		return k.strs[i] < k.strs[j]
	}
}
