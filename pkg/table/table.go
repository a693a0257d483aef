// Package table provides convenience helpers for working with Arrow
// RecordBatches as in-memory tables: column lookup, projection, appending
// computed columns, concatenation, and row ordering keys.
package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Column returns the named column from a record, or an error if not found.
func Column(rec arrow.Record, name string) (arrow.Array, error) {
	schema := rec.Schema()
	indices := schema.FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("column %q not found in schema", name)
	}
	return rec.Column(indices[0]), nil
}

// ColumnIndex returns the index of a named column, or -1 if not found.
func ColumnIndex(rec arrow.Record, name string) int {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return -1
	}
	return indices[0]
}

// ColumnNames returns the list of column names in a record's schema.
func ColumnNames(rec arrow.Record) []string {
	schema := rec.Schema()
	names := make([]string, schema.NumFields())
	for i := 0; i < schema.NumFields(); i++ {
		names[i] = schema.Field(i).Name
	}
	return names
}

// Project creates a new record with only the specified columns.
// The caller is responsible for releasing the returned record.
func Project(rec arrow.Record, cols ...string) (arrow.Record, error) {
	fields := make([]arrow.Field, 0, len(cols))
	arrays := make([]arrow.Array, 0, len(cols))

	for _, name := range cols {
		idx := ColumnIndex(rec, name)
		if idx < 0 {
			return nil, fmt.Errorf("column %q not found for projection", name)
		}
		fields = append(fields, rec.Schema().Field(idx))
		arrays = append(arrays, rec.Column(idx))
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, arrays, rec.NumRows()), nil
}

// WithColumns returns a new record consisting of all columns of rec followed
// by the given named arrays. Lengths must match the record's row count. The
// input record is not modified; the caller releases the returned record and
// still owns the passed-in arrays.
func WithColumns(rec arrow.Record, names []string, cols []arrow.Array) (arrow.Record, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("with columns: %d names for %d arrays", len(names), len(cols))
	}

	schema := rec.Schema()
	fields := make([]arrow.Field, 0, schema.NumFields()+len(cols))
	arrays := make([]arrow.Array, 0, schema.NumFields()+len(cols))
	for i := 0; i < schema.NumFields(); i++ {
		fields = append(fields, schema.Field(i))
		arrays = append(arrays, rec.Column(i))
	}
	for i, col := range cols {
		if int64(col.Len()) != rec.NumRows() {
			return nil, fmt.Errorf("with columns: column %q has %d rows, record has %d", names[i], col.Len(), rec.NumRows())
		}
		fields = append(fields, arrow.Field{Name: names[i], Type: col.DataType(), Nullable: true})
		arrays = append(arrays, col)
	}

	newSchema := arrow.NewSchema(fields, nil)
	return array.NewRecord(newSchema, arrays, rec.NumRows()), nil
}

// Float64Column extracts a numeric column as float64 values plus a validity
// mask. Non-numeric columns are an error.
func Float64Column(arr arrow.Array) ([]float64, []bool, error) {
	n := arr.Len()
	values := make([]float64, n)
	valid := make([]bool, n)

	assign := func(i int, v float64) {
		values[i] = v
		valid[i] = true
	}

	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			continue
		}
		switch a := arr.(type) {
		case *array.Float64:
			assign(i, a.Value(i))
		case *array.Float32:
			assign(i, float64(a.Value(i)))
		case *array.Int64:
			assign(i, float64(a.Value(i)))
		case *array.Int32:
			assign(i, float64(a.Value(i)))
		case *array.Int16:
			assign(i, float64(a.Value(i)))
		case *array.Int8:
			assign(i, float64(a.Value(i)))
		case *array.Uint64:
			assign(i, float64(a.Value(i)))
		case *array.Uint32:
			assign(i, float64(a.Value(i)))
		case *array.Uint16:
			assign(i, float64(a.Value(i)))
		case *array.Uint8:
			assign(i, float64(a.Value(i)))
		default:
			return nil, nil, fmt.Errorf("column type %s is not numeric", arr.DataType())
		}
	}
	return values, valid, nil
}

// Concatenate merges multiple records with identical schemas into one.
func Concatenate(alloc memory.Allocator, records []arrow.Record) (arrow.Record, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to concatenate")
	}

	schema := records[0].Schema()
	numCols := int(records[0].NumCols())

	var totalRows int64
	for _, r := range records {
		totalRows += r.NumRows()
	}

	builders := make([]array.Builder, numCols)
	for i := 0; i < numCols; i++ {
		builders[i] = array.NewBuilder(alloc, schema.Field(i).Type)
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for _, rec := range records {
		for col := 0; col < numCols; col++ {
			arr := rec.Column(col)
			for row := 0; row < int(rec.NumRows()); row++ {
				if arr.IsNull(row) {
					builders[col].AppendNull()
					continue
				}
				if err := AppendValue(builders[col], arr, row); err != nil {
					return nil, err
				}
			}
		}
	}

	arrays := make([]arrow.Array, numCols)
	for i, b := range builders {
		arrays[i] = b.NewArray()
	}

	result := array.NewRecord(schema, arrays, totalRows)
	for _, a := range arrays {
		a.Release()
	}
	return result, nil
}

// AppendValue copies one non-null value from src into a builder of the same
// type. The caller handles nulls.
func AppendValue(bldr array.Builder, src arrow.Array, row int) error {
	switch b := bldr.(type) {
	case *array.Int64Builder:
		b.Append(src.(*array.Int64).Value(row))
	case *array.Int32Builder:
		b.Append(src.(*array.Int32).Value(row))
	case *array.Float64Builder:
		b.Append(src.(*array.Float64).Value(row))
	case *array.Float32Builder:
		b.Append(src.(*array.Float32).Value(row))
	case *array.StringBuilder:
		b.Append(src.(*array.String).Value(row))
	case *array.BooleanBuilder:
		b.Append(src.(*array.Boolean).Value(row))
	case *array.TimestampBuilder:
		b.Append(src.(*array.Timestamp).Value(row))
	case *array.Date32Builder:
		b.Append(src.(*array.Date32).Value(row))
	case *array.Date64Builder:
		b.Append(src.(*array.Date64).Value(row))
	default:
		return fmt.Errorf("append value: unsupported column type %s", src.DataType())
	}
	return nil
}
