package table

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func makeBatch(names []string, arrays []arrow.Array) arrow.Record {
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: arrays[i].DataType(), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, arrays, int64(arrays[0].Len()))
	for _, a := range arrays {
		a.Release()
	}
	return rec
}

func makeInt64Arr(alloc memory.Allocator, vals []int64) arrow.Array {
	bldr := array.NewInt64Builder(alloc)
	defer bldr.Release()
	bldr.AppendValues(vals, nil)
	return bldr.NewArray()
}

func makeFloat64Arr(alloc memory.Allocator, vals []float64, valid []bool) arrow.Array {
	bldr := array.NewFloat64Builder(alloc)
	defer bldr.Release()
	bldr.AppendValues(vals, valid)
	return bldr.NewArray()
}

func twoColRec(alloc memory.Allocator) arrow.Record {
	return makeBatch([]string{"a", "b"},
		[]arrow.Array{
			makeInt64Arr(alloc, []int64{1, 2, 3}),
			makeFloat64Arr(alloc, []float64{1.5, 2.5, 3.5}, nil),
		})
}

func TestColumnLookup(t *testing.T) {
	alloc := memory.DefaultAllocator
	rec := twoColRec(alloc)
	defer rec.Release()

	arr, err := Column(rec, "b")
	if err != nil {
		t.Fatal(err)
	}
	if arr.(*array.Float64).Value(0) != 1.5 {
		t.Error("wrong column returned")
	}

	if _, err := Column(rec, "nope"); err == nil {
		t.Error("expected error for missing column")
	}
	if idx := ColumnIndex(rec, "a"); idx != 0 {
		t.Errorf("ColumnIndex(a) = %d", idx)
	}
	if idx := ColumnIndex(rec, "nope"); idx != -1 {
		t.Errorf("ColumnIndex(nope) = %d", idx)
	}

	names := ColumnNames(rec)
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("ColumnNames = %v", names)
	}
}

func TestProject(t *testing.T) {
	alloc := memory.DefaultAllocator
	rec := twoColRec(alloc)
	defer rec.Release()

	proj, err := Project(rec, "b")
	if err != nil {
		t.Fatal(err)
	}
	defer proj.Release()

	if proj.NumCols() != 1 || proj.Schema().Field(0).Name != "b" {
		t.Errorf("projection schema: %v", proj.Schema())
	}
	if proj.NumRows() != rec.NumRows() {
		t.Errorf("projection rows = %d", proj.NumRows())
	}

	if _, err := Project(rec, "nope"); err == nil {
		t.Error("expected error for missing column")
	}
}

func TestWithColumns(t *testing.T) {
	alloc := memory.DefaultAllocator
	rec := twoColRec(alloc)
	defer rec.Release()

	extra := makeFloat64Arr(alloc, []float64{9, 8, 7}, nil)
	defer extra.Release()

	out, err := WithColumns(rec, []string{"c"}, []arrow.Array{extra})
	if err != nil {
		t.Fatal(err)
	}
	defer out.Release()

	if out.NumCols() != 3 {
		t.Fatalf("expected 3 columns, got %d", out.NumCols())
	}
	if out.Schema().Field(2).Name != "c" || !out.Schema().Field(2).Nullable {
		t.Errorf("appended field: %v", out.Schema().Field(2))
	}
	if rec.NumCols() != 2 {
		t.Error("input record was modified")
	}

	short := makeFloat64Arr(alloc, []float64{1}, nil)
	defer short.Release()
	if _, err := WithColumns(rec, []string{"d"}, []arrow.Array{short}); err == nil {
		t.Error("expected error for length mismatch")
	}
	if _, err := WithColumns(rec, []string{"d", "e"}, []arrow.Array{extra}); err == nil {
		t.Error("expected error for name/array count mismatch")
	}
}

func TestFloat64Column(t *testing.T) {
	alloc := memory.DefaultAllocator

	arr := makeFloat64Arr(alloc, []float64{1, 0, 3}, []bool{true, false, true})
	values, valid, err := Float64Column(arr)
	arr.Release()
	if err != nil {
		t.Fatal(err)
	}
	if values[0] != 1 || values[2] != 3 {
		t.Errorf("values = %v", values)
	}
	if valid[0] != true || valid[1] != false || valid[2] != true {
		t.Errorf("valid = %v", valid)
	}

	// Integer widening.
	intArr := makeInt64Arr(alloc, []int64{5, 6})
	values, _, err = Float64Column(intArr)
	intArr.Release()
	if err != nil {
		t.Fatal(err)
	}
	if values[0] != 5 || values[1] != 6 {
		t.Errorf("widened values = %v", values)
	}

	// Strings are not numeric.
	sb := array.NewStringBuilder(alloc)
	sb.Append("x")
	strArr := sb.NewArray()
	sb.Release()
	_, _, err = Float64Column(strArr)
	strArr.Release()
	if err == nil {
		t.Error("expected error for string column")
	}
}

func TestConcatenate(t *testing.T) {
	alloc := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer alloc.AssertSize(t, 0)

	first := twoColRec(alloc)
	second := makeBatch([]string{"a", "b"},
		[]arrow.Array{
			makeInt64Arr(alloc, []int64{4}),
			makeFloat64Arr(alloc, []float64{0}, []bool{false}),
		})

	out, err := Concatenate(alloc, []arrow.Record{first, second})
	first.Release()
	second.Release()
	if err != nil {
		t.Fatal(err)
	}
	defer out.Release()

	if out.NumRows() != 4 {
		t.Fatalf("expected 4 rows, got %d", out.NumRows())
	}
	a := out.Column(0).(*array.Int64)
	if a.Value(3) != 4 {
		t.Errorf("last a = %v", a.Value(3))
	}
	b := out.Column(1).(*array.Float64)
	if !b.IsNull(3) {
		t.Error("null did not survive concatenation")
	}
}

func TestOrderKeysNullsLast(t *testing.T) {
	alloc := memory.DefaultAllocator

	bldr := array.NewInt64Builder(alloc)
	bldr.Append(5)
	bldr.AppendNull()
	bldr.Append(3)
	arr := bldr.NewArray()
	bldr.Release()
	defer arr.Release()

	keys, err := NewOrderKeys(arr)
	if err != nil {
		t.Fatal(err)
	}
	if !keys.Less(2, 0) {
		t.Error("3 should order before 5")
	}
	if !keys.Less(0, 1) {
		t.Error("values order before nulls")
	}
	if keys.Less(1, 0) {
		t.Error("nulls never order before values")
	}
	if keys.Less(1, 1) {
		t.Error("null is not less than itself")
	}
}

func TestOrderKeysTimestamp(t *testing.T) {
	alloc := memory.DefaultAllocator

	bldr := array.NewTimestampBuilder(alloc, arrow.FixedWidthTypes.Timestamp_us.(*arrow.TimestampType))
	bldr.Append(arrow.Timestamp(200))
	bldr.Append(arrow.Timestamp(100))
	arr := bldr.NewArray()
	bldr.Release()
	defer arr.Release()

	keys, err := NewOrderKeys(arr)
	if err != nil {
		t.Fatal(err)
	}
	if !keys.Less(1, 0) {
		t.Error("earlier timestamp should order first")
	}
}

func TestOrderKeysUnsupportedType(t *testing.T) {
	alloc := memory.DefaultAllocator

	bldr := array.NewBooleanBuilder(alloc)
	bldr.Append(true)
	arr := bldr.NewArray()
	bldr.Release()
	defer arr.Release()

	if _, err := NewOrderKeys(arr); err == nil {
		t.Error("expected error for boolean ordering column")
	}
}
